package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swrfmods/internal/prefs"
	"swrfmods/pkg/models"
)

type staticSource struct {
	records []models.ModRecord
	err     error
}

func (s staticSource) Name() string { return "static" }

func (s staticSource) FetchAll(ctx context.Context) ([]models.ModRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.records, s.err
}

func samplePageLoader() *Loader {
	return NewLoader(staticSource{records: []models.ModRecord{
		xwing(),
		{ID: "2", Title: "Kamino Map", Era: "P", ContentTypes: []string{"Map"}, CurrentSubscribers: 25},
		{ID: "3", Title: "Endor Map", Era: "O", ContentTypes: []string{"Map", "Tools"}, CurrentSubscribers: 40},
	}}, nil)
}

func TestPageLoadSelectsEraAndTypes(t *testing.T) {
	store := prefs.NewMemory()
	p := NewPage(context.Background(), "original", samplePageLoader(), store, nil)
	defer p.Close()

	require.NoError(t, p.Load())
	assert.Len(t, p.Mods(), 2)
	assert.Equal(t, []string{"Vehicles", "Skins", "Maps"}, p.Types())
	assert.Equal(t, "original", prefs.LastVisitedEra(context.Background(), store))

	p.Query.Type = "Maps"
	assert.Equal(t, []string{"3"}, idsOf(p.Visible()))
	assert.Equal(t, []string{"Vehicles", "Skins", "Maps"}, p.Types())
}

func TestPageLoadRecordsEraEvenWhenFetchFails(t *testing.T) {
	store := prefs.NewMemory()
	loader := NewLoader(staticSource{err: errors.New("offline")}, nil)
	p := NewPage(context.Background(), "sequel", loader, store, nil)
	defer p.Close()

	require.NoError(t, p.Load())
	assert.Empty(t, p.Mods())
	assert.Empty(t, p.Types())
	assert.Equal(t, "sequel", prefs.LastVisitedEra(context.Background(), store))
}

func TestPageLoadUnknownEra(t *testing.T) {
	p := NewPage(context.Background(), "clone-wars", samplePageLoader(), nil, nil)
	defer p.Close()
	assert.ErrorIs(t, p.Load(), ErrUnknownEra)
	assert.Empty(t, p.Mods())
}

func TestPageCloseDiscardsLoad(t *testing.T) {
	p := NewPage(context.Background(), "all", samplePageLoader(), nil, nil)
	p.Close()
	assert.ErrorIs(t, p.Load(), context.Canceled)
	assert.Empty(t, p.Mods())
}

func TestPageCardsMarkSaved(t *testing.T) {
	dir := t.TempDir()
	fs := prefs.NewFileStore(filepath.Join(dir, "local.json"))
	saved, err := prefs.LoadSavedStore(context.Background(), fs)
	require.NoError(t, err)
	_, err = saved.Toggle(context.Background(), "2")
	require.NoError(t, err)

	p := NewPage(context.Background(), "all", samplePageLoader(), fs, nil)
	defer p.Close()
	require.NoError(t, p.Load())

	for _, c := range p.Cards(saved.Has) {
		assert.Equal(t, c.ID == "2", c.Saved, c.ID)
	}
}
