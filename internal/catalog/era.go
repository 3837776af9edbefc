package catalog

import (
	"errors"
	"strings"

	"swrfmods/pkg/models"
)

// EraAll selects every record.
const EraAll = "all"

var ErrUnknownEra = errors.New("unknown era")

var eraCodes = map[string]string{
	"prequel":  "P",
	"original": "O",
	"sequel":   "S",
	"other":    "Other",
}

// EraInfo describes one entry of the era directory.
type EraInfo struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Image string `json:"image"`
	Path  string `json:"path"`
}

// Eras lists the era pages in display order.
var Eras = []EraInfo{
	eraInfo("all", "ALL MODS"),
	eraInfo("prequel", "PREQUEL TRILOGY"),
	eraInfo("original", "ORIGINAL TRILOGY"),
	eraInfo("sequel", "SEQUEL TRILOGY"),
	eraInfo("other", "OTHER"),
}

func eraInfo(slug, title string) EraInfo {
	return EraInfo{
		Slug:  slug,
		Title: title,
		Image: "/images/eras/" + slug + ".png",
		Path:  "/era/" + slug,
	}
}

// EraCode maps an era selector (case-insensitive) to the code used in the
// record's era field. EraAll has no code.
func EraCode(selector string) (string, error) {
	code, ok := eraCodes[strings.ToLower(strings.TrimSpace(selector))]
	if !ok {
		return "", ErrUnknownEra
	}
	return code, nil
}

// InEra reports whether the record's space separated era field holds code.
func InEra(rec models.ModRecord, code string) bool {
	if rec.Era == "" {
		return false
	}
	code = strings.ToLower(code)
	for _, e := range strings.Split(rec.Era, " ") {
		if strings.ToLower(strings.TrimSpace(e)) == code {
			return true
		}
	}
	return false
}

// Annotate attaches normalized types to every record.
func Annotate(records []models.ModRecord) []models.Mod {
	out := make([]models.Mod, 0, len(records))
	for _, rec := range records {
		out = append(out, models.Mod{ModRecord: rec, NormalizedTypes: NormalizeTypes(rec.ContentTypes)})
	}
	return out
}

// SelectEra returns the annotated records belonging to the selected era.
func SelectEra(records []models.ModRecord, selector string) ([]models.Mod, error) {
	if strings.EqualFold(strings.TrimSpace(selector), EraAll) {
		return Annotate(records), nil
	}
	code, err := EraCode(selector)
	if err != nil {
		return nil, err
	}

	out := make([]models.Mod, 0, len(records))
	for _, rec := range records {
		if InEra(rec, code) {
			out = append(out, models.Mod{ModRecord: rec, NormalizedTypes: NormalizeTypes(rec.ContentTypes)})
		}
	}
	return out, nil
}
