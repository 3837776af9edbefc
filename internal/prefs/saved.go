package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"swrfmods/pkg/models"
)

// SavedChange is delivered to subscribers after every persisted change.
type SavedChange struct {
	ID    models.ModID
	Saved bool
	IDs   []models.ModID
}

// SavedStore is a visitor's saved-mod set. The persisted value is the
// authority: every mutation re-reads it and rewrites it in one atomic update
// (see Update), so stores sharing a backend never lose each other's writes.
// The in-memory copy reflects the set as of the last load or mutation.
type SavedStore struct {
	mu      sync.Mutex
	storage Storage
	ids     []models.ModID
	index   map[models.ModID]struct{}

	nextSub int
	subs    map[int]func(SavedChange)
}

// LoadSavedStore reads the persisted set. A missing or malformed value
// yields an empty set; only storage failures are returned.
func LoadSavedStore(ctx context.Context, storage Storage) (*SavedStore, error) {
	s := &SavedStore{
		storage: storage,
		index:   make(map[models.ModID]struct{}),
		subs:    make(map[int]func(SavedChange)),
	}

	raw, ok, err := storage.Get(ctx, KeySavedMods)
	if err != nil {
		return nil, fmt.Errorf("load saved mods: %w", err)
	}
	s.replaceLocked(parseSaved(raw, ok))
	return s, nil
}

// parseSaved decodes a persisted set, dropping duplicates. Malformed input
// reads as empty.
func parseSaved(raw string, ok bool) []models.ModID {
	if !ok {
		return nil
	}
	var ids []models.ModID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	seen := make(map[models.ModID]struct{}, len(ids))
	out := make([]models.ModID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *SavedStore) replaceLocked(ids []models.ModID) {
	s.ids = ids
	s.index = make(map[models.ModID]struct{}, len(ids))
	for _, id := range ids {
		s.index[id] = struct{}{}
	}
}

func (s *SavedStore) Has(id models.ModID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

func (s *SavedStore) IDs() []models.ModID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ModID(nil), s.ids...)
}

func (s *SavedStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// errUnchanged aborts an update that has nothing to write.
var errUnchanged = errors.New("saved set unchanged")

// Toggle removes id when present and adds it otherwise. It reports whether
// id is saved afterwards. On a persistence error the set is left unchanged.
func (s *SavedStore) Toggle(ctx context.Context, id models.ModID) (bool, error) {
	saved, _, err := s.mutate(ctx, id, func(present bool) (bool, bool) {
		return !present, true
	})
	return saved, err
}

// Remove unsaves id. It reports false, without writing, when id was not
// saved. The check and the removal happen in one atomic update.
func (s *SavedStore) Remove(ctx context.Context, id models.ModID) (bool, error) {
	_, removed, err := s.mutate(ctx, id, func(present bool) (bool, bool) {
		return false, present
	})
	return removed, err
}

// mutate applies decide to the freshly persisted set. decide gets whether
// id is currently saved and returns whether it should be saved and whether
// anything must be written. Subscribers are notified only on a write.
func (s *SavedStore) mutate(ctx context.Context, id models.ModID, decide func(present bool) (want, write bool)) (saved, changed bool, err error) {
	s.mu.Lock()

	var current, next []models.ModID
	var want bool
	err = Update(ctx, s.storage, KeySavedMods, func(raw string, ok bool) (string, error) {
		current = parseSaved(raw, ok)
		w, write := decide(slices.Contains(current, id))
		want = w
		if !write {
			return "", errUnchanged
		}
		next = make([]models.ModID, 0, len(current)+1)
		for _, v := range current {
			if v != id {
				next = append(next, v)
			}
		}
		if want {
			next = append(next, id)
		}
		b, err := json.Marshal(next)
		if err != nil {
			return "", fmt.Errorf("marshal saved mods: %w", err)
		}
		return string(b), nil
	})
	if errors.Is(err, errUnchanged) {
		s.replaceLocked(current)
		s.mu.Unlock()
		return want, false, nil
	}
	if err != nil {
		_, present := s.index[id]
		s.mu.Unlock()
		return present, false, fmt.Errorf("persist saved mods: %w", err)
	}

	s.replaceLocked(next)
	change := SavedChange{ID: id, Saved: want, IDs: append([]models.ModID(nil), next...)}
	subs := make([]func(SavedChange), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(change)
	}
	return want, true, nil
}

// Subscribe registers fn for future changes. Subscribers run on the
// toggling goroutine, outside the store lock.
func (s *SavedStore) Subscribe(fn func(SavedChange)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
