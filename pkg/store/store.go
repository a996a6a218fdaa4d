package store

import "medavatar/pkg/model"

// MonitorStore mirrors monitor snapshots and the issue log for operator
// dashboards. The monitor's in-memory state stays canonical; the store is
// written best-effort and read by the API layer for history.
type MonitorStore interface {
	SaveHealth(model.SystemHealth) error
	LatestHealth() (model.SystemHealth, bool, error)
	SaveServiceHealth(map[string]model.ServiceHealth) error
	GetServiceHealth() (map[string]model.ServiceHealth, error)
	AppendIssue(model.Issue) error
	ListIssues(limit int) ([]model.Issue, error)
	Ping() error
}

// NewMemory constructs the in-memory implementation without importing it directly.
func NewMemory() MonitorStore {
	return NewMemoryStore()
}
