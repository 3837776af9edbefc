package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ModID identifies a mod record. The dataset carries ids either as JSON
// numbers or strings; both decode to their text form.
type ModID string

func (id *ModID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode mod id: %w", err)
		}
		*id = ModID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode mod id: %w", err)
	}
	*id = ModID(n.String())
	return nil
}

// ModRecord is one entry of mods_data.json, exactly as curated.
type ModRecord struct {
	ID                 ModID    `json:"id"`
	Title              string   `json:"title"`
	Author             string   `json:"author"`
	Link               string   `json:"link"`
	Era                string   `json:"era"`          // space separated codes: P, O, S, Other
	ContentTypes       []string `json:"contentTypes"` // free text, entries may hold several words
	CurrentSubscribers int      `json:"currentSubscribers"`
	UniqueVisitors     int      `json:"uniqueVisitors"`
	Date               string   `json:"date"`
	Notes              string   `json:"notes,omitempty"`
}

// Mod is a record plus the category labels derived from its content types
// at load time. NormalizedTypes is never persisted.
type Mod struct {
	ModRecord
	NormalizedTypes []string `json:"normalizedTypes"`
}
