package monitor

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"

	"medavatar/pkg/model"
)

// remediate dispatches every eligible open issue to its type-specific
// action, exactly once per tick, incrementing the attempt counter
// regardless of outcome. A successful action fixes every open issue of
// that type at once.
func (m *Monitor) remediate(ctx context.Context) {
	for _, is := range m.tracker.Dispatchable(time.Now()) {
		attempts := m.tracker.BumpAttempts(is)
		fixed := m.dispatch(ctx, is)
		outcome := "failed"
		if fixed {
			outcome = "fixed"
		}
		remediationAttempts.WithLabelValues(string(is.Type), outcome).Inc()

		if fixed {
			n := m.tracker.MarkTypeFixed(is.Type)
			m.log.Info("remediation succeeded",
				zap.String("type", string(is.Type)),
				zap.Int("attempts", attempts),
				zap.Int("issuesFixed", n))
			continue
		}
		if attempts >= m.cfg.FixAttemptCap {
			m.log.Warn("remediation abandoned after cap",
				zap.String("type", string(is.Type)),
				zap.String("description", is.Description),
				zap.Int("attempts", attempts))
			if m.archive != nil {
				m.archive.Record(*is)
			}
			m.adviseAsync(*is)
		}
	}
}

// dispatch runs the remediation action for an issue's type. Actions are
// idempotent and safe to retry.
func (m *Monitor) dispatch(ctx context.Context, is *model.Issue) bool {
	switch is.Type {
	case model.IssueDatabase:
		return m.fixDatabase(ctx)
	case model.IssueAvatar:
		return m.fixAvatar(ctx)
	case model.IssueMemory:
		return m.fixMemory()
	case model.IssueNetwork:
		return m.fixNetwork(ctx)
	case model.IssueAPI:
		m.adviseAsync(*is)
		return false
	default:
		return false
	}
}

// fixDatabase re-attempts the trivial round trip; on success the error
// counter resets and the database is marked healthy again.
func (m *Monitor) fixDatabase(ctx context.Context) bool {
	if m.deps.PingDB == nil {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	if err := m.deps.PingDB(cctx); err != nil {
		return false
	}
	m.mu.Lock()
	m.health.Database.Healthy = true
	m.health.Database.ErrorCount = 0
	m.health.Database.LastError = ""
	m.mu.Unlock()
	return true
}

// fixAvatar invokes the registered manager's re-creation routine.
func (m *Monitor) fixAvatar(ctx context.Context) bool {
	if m.deps.Avatar == nil {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	if err := m.deps.Avatar.Recreate(cctx); err != nil {
		return false
	}
	m.deps.Avatar.ResetErrors()
	m.mu.Lock()
	m.health.Avatar.Healthy = true
	m.health.Avatar.ErrorCount = 0
	m.health.Avatar.LastError = ""
	m.mu.Unlock()
	return true
}

// fixMemory prunes the issue log and hints the collector, then verifies
// utilization dropped below the warning threshold.
func (m *Monitor) fixMemory() bool {
	m.tracker.Prune(time.Now())
	runtime.GC()
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return heapRatio(ms.HeapAlloc, ms.HeapSys) <= m.cfg.MemWarnRatio
}

// fixNetwork re-analyzes the network; the issue clears once quality is
// back above poor.
func (m *Monitor) fixNetwork(ctx context.Context) bool {
	metrics := m.AnalyzeNetwork(ctx, nil)
	return metrics.ConnectionQuality != model.QualityPoor
}

// adviseAsync asks the generative-chat advisor for a one-line remediation
// suggestion, purely for operator visibility. It never blocks or fails the
// tick.
func (m *Monitor) adviseAsync(is model.Issue) {
	if m.deps.Advisor == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.log.Debug("advisor panicked", zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		suggestion, err := m.deps.Advisor.Suggest(ctx, is.Description)
		if err != nil {
			m.log.Debug("advisor unavailable", zap.Error(err))
			return
		}
		m.log.Info("remediation suggestion",
			zap.String("type", string(is.Type)),
			zap.String("issue", is.Description),
			zap.String("suggestion", suggestion))
	}()
}

// publishIssueGauges refreshes the open-issue gauges for every known type.
func (m *Monitor) publishIssueGauges() {
	counts := m.tracker.OpenCounts()
	for _, typ := range []model.IssueType{
		model.IssueDatabase, model.IssueAvatar, model.IssueNetwork,
		model.IssueMemory, model.IssueAPI, model.IssueInternal,
	} {
		openIssues.WithLabelValues(string(typ)).Set(float64(counts[typ]))
	}
}
