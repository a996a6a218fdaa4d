package model

import "time"

// SessionHealthEntry summarizes recent interaction quality for one session.
// Score is in [0,1]; rewritten wholesale on every report, never read-touched.
type SessionHealthEntry struct {
	SessionID  string    `json:"sessionId"`
	Score      float64   `json:"score"`
	Issues     []string  `json:"issues,omitempty"`
	LastUpdate time.Time `json:"lastUpdate"`
}
