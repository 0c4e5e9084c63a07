package models

import "time"

// TableSnapshot is one fully built table as published to readers.
// Version counts builds within this process; BuildID is unique across
// processes and restarts and is what shared stores key on.
type TableSnapshot struct {
	Table   *MergedTable
	Version uint64
	BuildID string
	Source  string
	BuiltAt time.Time
}

// RebuildEvent is announced after a snapshot is published.
type RebuildEvent struct {
	Type       string    `json:"type"`
	Version    uint64    `json:"version"`
	BuildID    string    `json:"build_id"`
	Supersedes string    `json:"supersedes,omitempty"`
	Source     string    `json:"source"`
	Rows       int       `json:"rows"`
	Columns    []string  `json:"columns"`
	BuiltAt    time.Time `json:"built_at"`
	Duration   float64   `json:"duration_seconds"`
}

// EventTableRebuilt is the RebuildEvent type tag.
const EventTableRebuilt = "table_rebuilt"

// NewRebuildEvent describes snap.
func NewRebuildEvent(snap *TableSnapshot, took time.Duration) RebuildEvent {
	return RebuildEvent{
		Type:     EventTableRebuilt,
		Version:  snap.Version,
		BuildID:  snap.BuildID,
		Source:   snap.Source,
		Rows:     snap.Table.Len(),
		Columns:  snap.Table.Columns(),
		BuiltAt:  snap.BuiltAt,
		Duration: took.Seconds(),
	}
}
