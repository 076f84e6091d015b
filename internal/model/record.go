package model

import "time"

// SessionRecord is the persisted usage snapshot of one session.
type SessionRecord struct {
	SessionID string            `json:"sessionID"`
	ProjectID string            `json:"projectID,omitempty"`
	Timestamp int64             `json:"timestamp"` // epoch milliseconds
	Totals    TokenStats        `json:"totals"`
	ByModel   TokenStatsByModel `json:"byModel"`
	Cost      float64           `json:"cost"`
}

// Time returns the record timestamp in local time.
func (r SessionRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}
