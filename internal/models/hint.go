package models

import "time"

// HintEntity names what a stale hint refers to.
type HintEntity string

const (
	HintPost    HintEntity = "post"
	HintProfile HintEntity = "profile"
	HintFeed    HintEntity = "feed"
)

// StaleHint tells caches that renderings of an entity may be out of date.
// Hints are advisory and may be dropped.
type StaleHint struct {
	Type   string     `json:"type"`
	Entity HintEntity `json:"entity"`
	IDs    []string   `json:"ids"`
	At     time.Time  `json:"at"`
}

// NewStaleHint builds a hint stamped with the current time.
func NewStaleHint(entity HintEntity, ids ...string) StaleHint {
	return StaleHint{Type: "stale", Entity: entity, IDs: ids, At: time.Now().UTC()}
}
