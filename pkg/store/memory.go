package store

import (
	"sync"
	"time"

	"medavatar/pkg/model"
)

// issueRetention bounds how far back the mirrored issue log reaches.
const issueRetention = time.Hour

// MemoryStore is the default single-instance implementation.
type MemoryStore struct {
	mu         sync.RWMutex
	health     model.SystemHealth
	hasHealth  bool
	services   map[string]model.ServiceHealth
	issues     []model.Issue
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{services: map[string]model.ServiceHealth{}}
}

func (m *MemoryStore) SaveHealth(h model.SystemHealth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health = h
	m.hasHealth = true
	return nil
}

func (m *MemoryStore) LatestHealth() (model.SystemHealth, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.health, m.hasHealth, nil
}

func (m *MemoryStore) SaveServiceHealth(services map[string]model.ServiceHealth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[string]model.ServiceHealth, len(services))
	for k, v := range services {
		copied[k] = v
	}
	m.services = copied
	return nil
}

func (m *MemoryStore) GetServiceHealth() (map[string]model.ServiceHealth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]model.ServiceHealth, len(m.services))
	for k, v := range m.services {
		out[k] = v
	}
	return out, nil
}

// AppendIssue records an issue and prunes entries past retention.
func (m *MemoryStore) AppendIssue(is model.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-issueRetention)
	keep := m.issues[:0]
	for _, existing := range m.issues {
		if existing.Timestamp.After(cutoff) {
			keep = append(keep, existing)
		}
	}
	m.issues = append(keep, is)
	return nil
}

func (m *MemoryStore) ListIssues(limit int) ([]model.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.issues) {
		limit = len(m.issues)
	}
	out := make([]model.Issue, 0, limit)
	out = append(out, m.issues[len(m.issues)-limit:]...)
	return out, nil
}

// Ping reports readiness for health/info endpoints.
func (m *MemoryStore) Ping() error { return nil }
