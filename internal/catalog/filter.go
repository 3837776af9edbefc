package catalog

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"swrfmods/pkg/models"
)

// AllTypes disables the type filter.
const AllTypes = "All"

type SortOption string

const (
	SortSubsDesc SortOption = "subs-desc"
	SortSubsAsc  SortOption = "subs-asc"
	SortDateDesc SortOption = "date-desc"
	SortDateAsc  SortOption = "date-asc"
)

// ExcludedTypes never appear in the type menu or on compact cards.
var ExcludedTypes = []string{"-", "Mod", "Tools", "Game"}

// Query holds the user-selected filters of an era page.
type Query struct {
	Type   string
	Search string
	Sort   SortOption
}

// DefaultQuery is the state of a freshly opened era page.
func DefaultQuery() Query {
	return Query{Type: AllTypes, Sort: SortSubsDesc}
}

// Apply filters by type, then by title search, then sorts stably. The
// input is not modified. An unrecognized sort option keeps input order.
func Apply(mods []models.Mod, q Query) []models.Mod {
	search := strings.ToLower(q.Search)
	out := make([]models.Mod, 0, len(mods))
	for _, m := range mods {
		if q.Type != "" && q.Type != AllTypes && !slices.Contains(m.NormalizedTypes, q.Type) {
			continue
		}
		if !strings.Contains(strings.ToLower(m.Title), search) {
			continue
		}
		out = append(out, m)
	}

	switch q.Sort {
	case SortSubsAsc:
		slices.SortStableFunc(out, func(a, b models.Mod) int {
			return cmp.Compare(a.CurrentSubscribers, b.CurrentSubscribers)
		})
	case SortSubsDesc:
		slices.SortStableFunc(out, func(a, b models.Mod) int {
			return cmp.Compare(b.CurrentSubscribers, a.CurrentSubscribers)
		})
	case SortDateAsc:
		slices.SortStableFunc(out, func(a, b models.Mod) int {
			return compareDates(a.Date, b.Date)
		})
	case SortDateDesc:
		slices.SortStableFunc(out, func(a, b models.Mod) int {
			return compareDates(b.Date, a.Date)
		})
	}
	return out
}

// AvailableTypes lists the distinct normalized types of mods in first-seen
// order, without ExcludedTypes.
func AvailableTypes(mods []models.Mod) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, m := range mods {
		for _, t := range m.NormalizedTypes {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			if slices.Contains(ExcludedTypes, t) {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 Jan, 2006",
	"Jan 2, 2006 @ 3:04pm",
	"2 Jan, 2006 @ 3:04pm",
	"January 2006",
}

// ParseDate accepts the date spellings found in the dataset.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// compareDates orders unparseable dates before every valid one.
func compareDates(a, b string) int {
	ta, _ := ParseDate(a)
	tb, _ := ParseDate(b)
	return ta.Compare(tb)
}
