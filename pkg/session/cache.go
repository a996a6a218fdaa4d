// Package session maintains a small bounded cache of per-session health
// scores used to gate the premium avatar path.
package session

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"medavatar/pkg/model"
)

// DefaultCapacity bounds the number of tracked sessions.
const DefaultCapacity = 50

const scorePenaltyRTDivisor = 5000
const scorePenaltyPerError = 0.2

// Cache maps session ID to its latest health entry. Entries are rewritten
// wholesale on update; reads never promote, so eviction is strictly by
// least-recently-updated.
type Cache struct {
	entries *lru.Cache[string, model.SessionHealthEntry]
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	entries, _ := lru.New[string, model.SessionHealthEntry](capacity)
	return &Cache{entries: entries}
}

// Score derives a [0,1] health score from one interaction report.
func Score(responseTimeMs float64, errCount int) float64 {
	s := 1 - responseTimeMs/scorePenaltyRTDivisor - scorePenaltyPerError*float64(errCount)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Update overwrites the entry for sessionID, evicting the
// least-recently-updated entry if the cache is at capacity. The issues
// slice is copied so later caller mutation cannot alias into the entry.
func (c *Cache) Update(sessionID string, responseTimeMs float64, issues []string) model.SessionHealthEntry {
	var copied []string
	if len(issues) > 0 {
		copied = make([]string, len(issues))
		copy(copied, issues)
	}
	entry := model.SessionHealthEntry{
		SessionID:  sessionID,
		Score:      Score(responseTimeMs, len(issues)),
		Issues:     copied,
		LastUpdate: time.Now(),
	}
	c.entries.Add(sessionID, entry)
	return entry
}

// Get returns the last known entry for a session. Peek keeps reads from
// touching recency, preserving pure update-order eviction.
func (c *Cache) Get(sessionID string) (model.SessionHealthEntry, bool) {
	return c.entries.Peek(sessionID)
}

// Len reports the number of tracked sessions.
func (c *Cache) Len() int {
	return c.entries.Len()
}
