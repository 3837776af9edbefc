package sync

import "time"

const SavedToggleEvent = "saved.toggle"

type SavedEvent struct {
	Type      string    `json:"type"` // "saved.toggle"
	VisitorID string    `json:"visitor_id"`
	ModID     string    `json:"mod_id"`
	Saved     bool      `json:"saved"`
	SavedIDs  []string  `json:"saved_ids"`
	At        time.Time `json:"at"`
}
