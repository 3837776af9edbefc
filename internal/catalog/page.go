package catalog

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"swrfmods/internal/prefs"
	"swrfmods/pkg/models"
)

// Page is the state of one era page: the records of the selected era plus
// the user's filter selections. A Page owns a lifetime context; Close
// cancels it and any load still in flight is discarded.
type Page struct {
	Era   string
	Query Query
	View  ViewMode

	loader  *Loader
	storage prefs.Storage
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	mods  []models.Mod
	types []string
}

// NewPage opens an era page. storage may be nil when no visitor state is
// tracked.
func NewPage(parent context.Context, era string, loader *Loader, storage prefs.Storage, logger *zap.Logger) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Page{
		Era:     era,
		Query:   DefaultQuery(),
		View:    ViewCompact,
		loader:  loader,
		storage: storage,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Load records the era as last visited, fetches the dataset and selects the
// era's records. It replaces the type menu. A failed fetch leaves the page
// empty; ErrUnknownEra is returned for selectors outside the directory.
func (p *Page) Load() error {
	if p.storage != nil {
		if err := prefs.SetLastVisitedEra(p.ctx, p.storage, p.Era); err != nil {
			p.logger.Warn("persist last visited era", zap.String("era", p.Era), zap.Error(err))
		}
	}

	records := p.loader.Load(p.ctx)
	if err := p.ctx.Err(); err != nil {
		return err
	}

	mods, err := SelectEra(records, p.Era)
	p.mu.Lock()
	p.mods = mods
	p.types = AvailableTypes(mods)
	p.mu.Unlock()
	return err
}

// Mods returns every record of the loaded era, unfiltered.
func (p *Page) Mods() []models.Mod {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mods
}

// Types is the type menu computed at the last Load.
func (p *Page) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.types
}

// Visible applies the current query to the loaded records.
func (p *Page) Visible() []models.Mod {
	return Apply(p.Mods(), p.Query)
}

// Cards renders Visible for the current view mode.
func (p *Page) Cards(isSaved func(models.ModID) bool) []Card {
	return BuildCards(p.Visible(), p.View, isSaved)
}

func (p *Page) Close() {
	p.cancel()
}
