package library

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"swrfmods/internal/catalog"
	"swrfmods/internal/prefs"
	synchub "swrfmods/internal/sync"
	"swrfmods/pkg/models"
)

// lockStripes bounds the per-visitor mutation locks regardless of how many
// visitors a process serves.
const lockStripes = 64

// Service hands out visitors' saved sets. It keeps no per-visitor state:
// every call loads a fresh view from the backend, and mutations re-read the
// persisted set atomically, so processes sharing a backend stay consistent.
type Service struct {
	Prefs  prefs.Backend
	Hub    *synchub.Hub
	Logger *zap.Logger

	locks [lockStripes]sync.Mutex
}

func NewService(backend prefs.Backend, hub *synchub.Hub, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Prefs:  backend,
		Hub:    hub,
		Logger: logger.Named("library"),
	}
}

// Store loads the visitor's saved set. Changes made through it are
// published to the visitor's sync connections.
func (s *Service) Store(ctx context.Context, visitorID string) (*prefs.SavedStore, error) {
	st, err := prefs.LoadSavedStore(ctx, s.Prefs.For(visitorID))
	if err != nil {
		return nil, err
	}
	if s.Hub != nil {
		st.Subscribe(func(ch prefs.SavedChange) {
			s.Hub.Publish(visitorID, savedEvent(visitorID, ch))
		})
	}
	return st, nil
}

// lock serializes this process's mutations of one visitor's set.
func (s *Service) lock(visitorID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(visitorID))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Toggle flips id in the visitor's saved set.
func (s *Service) Toggle(ctx context.Context, visitorID string, id models.ModID) (bool, []models.ModID, error) {
	defer s.lock(visitorID)()

	st, err := s.Store(ctx, visitorID)
	if err != nil {
		return false, nil, err
	}
	saved, err := st.Toggle(ctx, id)
	if err != nil {
		return false, nil, err
	}
	return saved, st.IDs(), nil
}

// Remove unsaves id; removed is false when it was not saved.
func (s *Service) Remove(ctx context.Context, visitorID string, id models.ModID) (removed bool, ids []models.ModID, err error) {
	defer s.lock(visitorID)()

	st, err := s.Store(ctx, visitorID)
	if err != nil {
		return false, nil, err
	}
	removed, err = st.Remove(ctx, id)
	if err != nil {
		return false, nil, err
	}
	return removed, st.IDs(), nil
}

// SavedMods keeps the records whose id is saved, in dataset order.
func SavedMods(records []models.ModRecord, isSaved func(models.ModID) bool) []models.ModRecord {
	out := make([]models.ModRecord, 0)
	for _, rec := range records {
		if isSaved(rec.ID) {
			out = append(out, rec)
		}
	}
	return out
}

// SavedCards renders the saved page.
func SavedCards(records []models.ModRecord, store *prefs.SavedStore) []catalog.Card {
	saved := SavedMods(records, store.Has)
	return catalog.BuildCards(catalog.Annotate(saved), catalog.ViewCompact, store.Has)
}

func savedEvent(visitorID string, ch prefs.SavedChange) synchub.SavedEvent {
	ids := make([]string, 0, len(ch.IDs))
	for _, id := range ch.IDs {
		ids = append(ids, string(id))
	}
	return synchub.SavedEvent{
		Type:      synchub.SavedToggleEvent,
		VisitorID: visitorID,
		ModID:     string(ch.ID),
		Saved:     ch.Saved,
		SavedIDs:  ids,
		At:        time.Now().UTC(),
	}
}
