// Package monitor implements the adaptive health-monitoring and
// self-remediation control loop: resource and provider probes feed a
// bounded issue tracker, a remediation controller attempts bounded fixes,
// and the latest snapshots drive per-session optimization strategies.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"medavatar/pkg/model"
	"medavatar/pkg/session"
	"medavatar/pkg/strategy"
)

// Monitor owns the control loop state. Each snapshot field is written only
// by its owning tick; readers always receive copies.
type Monitor struct {
	cfg  Config
	deps Deps
	log  *zap.Logger

	mu        sync.RWMutex
	health    model.SystemHealth
	services  map[string]model.ServiceHealth
	network   model.NetworkMetrics
	networkAt time.Time

	tracker  *issueTracker
	sessions *session.Cache
	archive  *issueArchive
	events   chan model.Issue
	done     chan struct{}
	doneOnce sync.Once

	startedAt time.Time
	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	resourceBusy atomic.Bool
	serviceBusy  atomic.Bool
}

// New constructs a monitor. Deps.Prober must be set; everything else is
// optional and degrades gracefully when absent.
func New(cfg Config, deps Deps) *Monitor {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	m := &Monitor{
		cfg:      cfg,
		deps:     deps,
		log:      deps.Logger,
		services: map[string]model.ServiceHealth{},
		tracker:  newIssueTracker(cfg.DedupeWindow, cfg.RetentionWindow, cfg.FixAttemptCap),
		sessions: session.NewCache(cfg.SessionCacheSize),
		events:   make(chan model.Issue, 32),
		done:     make(chan struct{}),
	}
	if cfg.ArchivePath != "" {
		m.archive = newIssueArchive(cfg.ArchivePath, m.log)
	}
	return m
}

// Start launches the probe timers. Idempotent.
func (m *Monitor) Start() {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.startedAt = time.Now()
	m.log.Info("monitor started",
		zap.Duration("resourceInterval", m.cfg.ResourceInterval),
		zap.Duration("serviceInterval", m.cfg.ServiceInterval))

	m.every(ctx, m.cfg.ResourceInterval, &m.resourceBusy, m.guard("resource", m.resourceTick))
	m.every(ctx, m.cfg.ServiceInterval, &m.serviceBusy, m.guard("service", m.serviceTick))
}

// Stop cancels the timers. No in-flight tick is aborted, but no new tick is
// scheduled. Idempotent.
func (m *Monitor) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	m.cancel()
	m.wg.Wait()
	if m.archive != nil {
		m.archive.Close()
	}
	m.doneOnce.Do(func() { close(m.done) })
	m.log.Info("monitor stopped")
}

// every runs fn on a fixed interval, skipping a tick while the previous one
// is still running so overlap never grows unbounded.
func (m *Monitor) every(ctx context.Context, interval time.Duration, busy *atomic.Bool, fn func(context.Context)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		run := func() {
			if !busy.CompareAndSwap(false, true) {
				tickSkips.Inc()
				return
			}
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				defer busy.Store(false)
				fn(ctx)
			}()
		}
		run()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}

// guard converts a panic inside a tick into a critical issue instead of
// taking down the process.
func (m *Monitor) guard(name string, fn func(context.Context)) func(context.Context) {
	return func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				m.ReportCritical(fmt.Sprintf("%s tick panic: %v", name, r))
			}
		}()
		fn(ctx)
	}
}

// GetHealth returns a copy of the current system health snapshot.
func (m *Monitor) GetHealth() model.SystemHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.health
}

// GetRecentIssues returns up to limit most recent issues, newest last.
func (m *Monitor) GetRecentIssues(limit int) []model.Issue {
	return m.tracker.Recent(limit)
}

// GetServiceHealth returns a copy of the latest provider health map.
func (m *Monitor) GetServiceHealth() map[string]model.ServiceHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]model.ServiceHealth, len(m.services))
	for k, v := range m.services {
		out[k] = v
	}
	return out
}

// AnalyzeNetwork runs a network analysis and publishes the snapshot.
func (m *Monitor) AnalyzeNetwork(ctx context.Context, hint *model.ClientHint) model.NetworkMetrics {
	metrics := m.deps.Prober.Analyze(ctx, hint)
	m.mu.Lock()
	m.network = metrics
	m.networkAt = time.Now()
	m.mu.Unlock()
	return metrics
}

// GetOptimizedConfiguration derives the strategy for a session from the
// latest snapshots, refreshing the network analysis first when stale. It
// always returns a usable (possibly degraded) strategy.
func (m *Monitor) GetOptimizedConfiguration(ctx context.Context, sessionID string) model.OptimizationStrategy {
	m.mu.RLock()
	stale := time.Since(m.networkAt) > m.cfg.RecheckInterval
	m.mu.RUnlock()
	if stale {
		m.AnalyzeNetwork(ctx, nil)
	}

	in := strategy.Inputs{
		System:   m.GetHealth(),
		Services: m.GetServiceHealth(),
	}
	m.mu.RLock()
	in.Network = m.network
	m.mu.RUnlock()
	if entry, ok := m.sessions.Get(sessionID); ok {
		in.SessionScore = entry.Score
		in.SessionKnown = true
	}
	return strategy.Compute(in, m.cfg.Strategy)
}

// ReportSessionMetrics feeds one interaction report into the session
// health scorer.
func (m *Monitor) ReportSessionMetrics(sessionID string, responseTimeMs float64, issues []string) {
	entry := m.sessions.Update(sessionID, responseTimeMs, issues)
	sessionCacheSize.Set(float64(m.sessions.Len()))
	m.log.Debug("session metrics reported",
		zap.String("session", sessionID),
		zap.Float64("score", entry.Score),
		zap.Int("issues", len(issues)))
}

// HandleConnectionError records a connection failure for a session, forces
// a fresh network analysis, waits out the reconnection backoff for the new
// quality tier and reports whether the premium path should still be tried.
func (m *Monitor) HandleConnectionError(ctx context.Context, sessionID string, cause error) bool {
	desc := "connection error"
	if cause != nil {
		desc = fmt.Sprintf("connection error: %v", cause)
	}
	m.reportIssue(model.Issue{
		Type:        model.IssueNetwork,
		Severity:    model.SeverityMedium,
		Description: desc,
		Timestamp:   time.Now(),
	})

	metrics := m.AnalyzeNetwork(ctx, nil)
	delay := time.Duration(strategy.ReconnectDelayMs(metrics.ConnectionQuality)) * time.Millisecond
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
	}
	return m.GetOptimizedConfiguration(ctx, sessionID).UseAvatarService
}

// ReportCritical records a critical internal error. Such issues are never
// auto-remediated; they are archived and re-emitted for external alerting.
func (m *Monitor) ReportCritical(description string) {
	issue := model.Issue{
		Type:        model.IssueInternal,
		Severity:    model.SeverityCritical,
		Description: description,
		Timestamp:   time.Now(),
	}
	m.log.Error("critical error intercepted", zap.String("description", description))
	if m.tracker.Report(issue) {
		issuesReported.WithLabelValues(string(issue.Type)).Inc()
		if m.archive != nil {
			m.archive.Record(issue)
		}
	}
	select {
	case m.events <- issue:
	default:
		// alerting consumer is behind; dropping beats blocking the caller
	}
}

// Events exposes critical issues for external alerting. Consumers should
// select against Done so they unblock once the monitor stops.
func (m *Monitor) Events() <-chan model.Issue {
	return m.events
}

// Done is closed when the monitor has stopped for good.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// RecordAPIRequest folds one handled HTTP request into the rolling API
// health view (EWMA response time, EWMA error rate).
func (m *Monitor) RecordAPIRequest(responseTimeMs float64, failed bool, errMsg string) {
	const alpha = 0.2
	m.mu.Lock()
	defer m.mu.Unlock()
	api := &m.health.API
	if api.ResponseTimeMs == 0 {
		api.ResponseTimeMs = responseTimeMs
	} else {
		api.ResponseTimeMs = alpha*responseTimeMs + (1-alpha)*api.ResponseTimeMs
	}
	errSample := 0.0
	if failed {
		errSample = 1
		api.LastError = errMsg
	}
	api.ErrorRate = alpha*errSample + (1-alpha)*api.ErrorRate
}

// reportIssue records an issue (subject to type dedupe) and mirrors it to
// the store when one is configured.
func (m *Monitor) reportIssue(issue model.Issue) {
	if !m.tracker.Report(issue) {
		return
	}
	issuesReported.WithLabelValues(string(issue.Type)).Inc()
	m.log.Warn("issue reported",
		zap.String("type", string(issue.Type)),
		zap.String("severity", string(issue.Severity)),
		zap.String("description", issue.Description))
	if m.deps.Store != nil {
		if err := m.deps.Store.AppendIssue(issue); err != nil {
			m.log.Debug("issue mirror failed", zap.Error(err))
		}
	}
}
