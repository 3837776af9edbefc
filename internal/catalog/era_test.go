package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swrfmods/pkg/models"
)

func xwing() models.ModRecord {
	return models.ModRecord{
		ID:                 "1",
		Title:              "X-Wing Skin",
		Era:                "O",
		ContentTypes:       []string{"Vehicle Skin"},
		CurrentSubscribers: 10,
		Date:               "2020-01-01",
	}
}

func TestSelectEraXWing(t *testing.T) {
	records := []models.ModRecord{xwing()}

	got, err := SelectEra(records, "original")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"Vehicles", "Skins"}, got[0].NormalizedTypes)

	got, err = SelectEra(records, "sequel")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSelectEraCodes(t *testing.T) {
	records := []models.ModRecord{
		{ID: "p", Era: "P"},
		{ID: "po", Era: "p O"},
		{ID: "s", Era: "S"},
		{ID: "other", Era: "other"},
		{ID: "none", Era: ""},
	}

	ids := func(mods []models.Mod) []models.ModID {
		var out []models.ModID
		for _, m := range mods {
			out = append(out, m.ID)
		}
		return out
	}

	cases := map[string][]models.ModID{
		"prequel":  {"p", "po"},
		"original": {"po"},
		"sequel":   {"s"},
		"other":    {"other"},
		"OTHER":    {"other"},
		"all":      {"p", "po", "s", "other", "none"},
	}
	for sel, want := range cases {
		got, err := SelectEra(records, sel)
		require.NoError(t, err, sel)
		assert.Equal(t, want, ids(got), sel)
	}
}

func TestSelectEraUnknown(t *testing.T) {
	_, err := SelectEra([]models.ModRecord{xwing()}, "clone-wars")
	assert.ErrorIs(t, err, ErrUnknownEra)
}

func TestErasDirectory(t *testing.T) {
	require.Len(t, Eras, 5)
	assert.Equal(t, "all", Eras[0].Slug)
	assert.Equal(t, "/era/prequel", Eras[1].Path)
	assert.Equal(t, "/images/eras/other.png", Eras[4].Image)
}
