package catalog

import (
	"slices"
	"strings"

	"swrfmods/pkg/models"
)

type ViewMode string

const (
	ViewCompact ViewMode = "compact"
	ViewList    ViewMode = "list"
)

// ParseViewMode defaults to the compact grid.
func ParseViewMode(s string) ViewMode {
	if strings.EqualFold(strings.TrimSpace(s), string(ViewList)) {
		return ViewList
	}
	return ViewCompact
}

// Card is one rendered entry of an era or saved page.
type Card struct {
	models.Mod
	Saved        bool     `json:"saved"`
	Thumbnail    string   `json:"thumbnail"`
	DisplayTypes []string `json:"displayTypes"`
	Published    string   `json:"published,omitempty"`
}

func ThumbnailPath(id models.ModID) string {
	return "/thumbnails/" + string(id) + ".png"
}

// BuildCards renders mods for the given view. Compact cards hide
// ExcludedTypes; list cards show every normalized type and a month label.
func BuildCards(mods []models.Mod, view ViewMode, isSaved func(models.ModID) bool) []Card {
	cards := make([]Card, 0, len(mods))
	for _, m := range mods {
		c := Card{
			Mod:       m,
			Thumbnail: ThumbnailPath(m.ID),
		}
		if isSaved != nil {
			c.Saved = isSaved(m.ID)
		}
		if view == ViewList {
			c.DisplayTypes = append([]string(nil), m.NormalizedTypes...)
			if t, ok := ParseDate(m.Date); ok {
				c.Published = t.Format("January 2006")
			}
		} else {
			c.DisplayTypes = make([]string, 0, len(m.NormalizedTypes))
			for _, t := range m.NormalizedTypes {
				if !slices.Contains(ExcludedTypes, t) {
					c.DisplayTypes = append(c.DisplayTypes, t)
				}
			}
		}
		cards = append(cards, c)
	}
	return cards
}
