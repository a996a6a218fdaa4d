package monitor

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"medavatar/pkg/model"
)

// resourceTick runs the three resource checks, prunes the issue log and
// dispatches remediation. Each check catches its own failures so one
// failing check never blocks the others in the same tick.
func (m *Monitor) resourceTick(ctx context.Context) {
	start := time.Now()
	m.runCheck("database", func() { m.checkDatabase(ctx) })
	m.runCheck("avatar", func() { m.checkAvatarSession() })
	m.runCheck("memory", func() { m.checkMemory() })
	m.runCheck("api", func() { m.checkAPI() })

	m.mu.Lock()
	m.health.UptimeSeconds = time.Since(m.startedAt).Seconds()
	snapshot := m.health
	m.mu.Unlock()

	m.tracker.Prune(time.Now())
	m.remediate(ctx)

	m.publishIssueGauges()
	tickDuration.WithLabelValues("resource").Observe(time.Since(start).Seconds())
	if m.deps.Store != nil {
		if err := m.deps.Store.SaveHealth(snapshot); err != nil {
			m.log.Debug("health mirror failed", zap.Error(err))
		}
	}
}

func (m *Monitor) runCheck(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("resource check panicked", zap.String("check", name), zap.Any("panic", r))
		}
	}()
	fn()
}

// checkDatabase acquires a pooled connection and runs a trivial round trip
// under the probe timeout, recording latency and failures.
func (m *Monitor) checkDatabase(ctx context.Context) {
	now := time.Now()
	if m.deps.PingDB == nil {
		m.mu.Lock()
		m.health.Database.Healthy = false
		m.health.Database.LastCheck = now
		m.health.Database.LastError = "no database handle configured"
		m.mu.Unlock()
		return
	}

	cctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()
	start := time.Now()
	err := m.deps.PingDB(cctx)
	rt := float64(time.Since(start).Microseconds()) / 1000

	conns := 0
	if m.deps.DBStats != nil {
		conns = m.deps.DBStats()
	}

	m.mu.Lock()
	db := &m.health.Database
	db.LastCheck = now
	db.ResponseTimeMs = rt
	db.ConnectionCount = conns
	if err != nil {
		db.Healthy = false
		db.ErrorCount++
		db.LastError = err.Error()
	} else {
		db.Healthy = true
		db.LastError = ""
	}
	m.mu.Unlock()

	if err != nil {
		m.reportIssue(model.Issue{
			Type:        model.IssueDatabase,
			Severity:    model.SeverityHigh,
			Description: fmt.Sprintf("database round trip failed: %v", err),
			Timestamp:   now,
		})
	} else if rt > m.cfg.DBLatencyWarnMs {
		m.reportIssue(model.Issue{
			Type:        model.IssueDatabase,
			Severity:    model.SeverityMedium,
			Description: fmt.Sprintf("database round trip slow: %.0fms", rt),
			Timestamp:   now,
		})
	}
}

// checkAvatarSession reads the registered avatar manager, if any. An active
// session without a live connection is unhealthy; more than the configured
// number of recent error markers degrades it as well.
func (m *Monitor) checkAvatarSession() {
	av := m.deps.Avatar
	if av == nil {
		m.mu.Lock()
		m.health.Avatar = model.AvatarHealth{Healthy: true}
		m.mu.Unlock()
		return
	}

	live := av.Live()
	active := av.Active()
	errs := av.RecentErrors()
	healthy := !active || live
	tooManyErrors := len(errs) > m.cfg.AvatarErrorThreshold
	if tooManyErrors {
		healthy = false
	}

	m.mu.Lock()
	avh := &m.health.Avatar
	avh.SessionActive = active
	avh.Healthy = healthy
	avh.ErrorCount = len(errs)
	if len(errs) > 0 {
		avh.LastError = errs[len(errs)-1]
	}
	m.mu.Unlock()

	now := time.Now()
	if active && !live {
		m.reportIssue(model.Issue{
			Type:        model.IssueAvatar,
			Severity:    model.SeverityMedium,
			Description: "avatar session connection not live",
			Timestamp:   now,
		})
	}
	if tooManyErrors {
		m.reportIssue(model.Issue{
			Type:        model.IssueAvatar,
			Severity:    model.SeverityMedium,
			Description: fmt.Sprintf("avatar session logged %d errors since last reset", len(errs)),
			Timestamp:   now,
		})
	}
}

// checkMemory snapshots heap usage and flags high utilization. Above the
// critical ratio a GC hint is issued; best effort, never blocking.
func (m *Monitor) checkMemory() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.mu.Lock()
	m.health.Memory = model.MemoryHealth{
		HeapUsedBytes:  ms.HeapAlloc,
		HeapTotalBytes: ms.HeapSys,
		ResidentBytes:  ms.Sys,
	}
	m.mu.Unlock()

	ratio := heapRatio(ms.HeapAlloc, ms.HeapSys)
	sev, report, gcHint := heapPressure(ratio, m.cfg.MemWarnRatio, m.cfg.MemCriticalRatio)
	if report {
		m.reportIssue(model.Issue{
			Type:        model.IssueMemory,
			Severity:    sev,
			Description: fmt.Sprintf("heap utilization %.0f%%", ratio*100),
			Timestamp:   time.Now(),
		})
	}
	if gcHint {
		go runtime.GC()
	}
}

func heapRatio(used, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(used) / float64(total)
}

// heapPressure classifies heap utilization against the warn/critical
// ratios; gcHint reports whether a collection should be nudged.
func heapPressure(ratio, warn, crit float64) (sev model.Severity, report, gcHint bool) {
	switch {
	case ratio > crit:
		return model.SeverityHigh, true, true
	case ratio > warn:
		return model.SeverityMedium, true, false
	default:
		return "", false, false
	}
}

// checkAPI converts a sustained rolling error rate into a tracked issue so
// the remediation controller can surface an advisor diagnostic for it.
func (m *Monitor) checkAPI() {
	m.mu.RLock()
	rate := m.health.API.ErrorRate
	m.mu.RUnlock()
	if rate > m.cfg.APIErrorRateMax {
		m.reportIssue(model.Issue{
			Type:        model.IssueAPI,
			Severity:    model.SeverityMedium,
			Description: fmt.Sprintf("api error rate %.0f%%", rate*100),
			Timestamp:   time.Now(),
		})
	}
}

// serviceTick refreshes provider reachability and raises issues for
// providers that dropped offline.
func (m *Monitor) serviceTick(ctx context.Context) {
	start := time.Now()
	services := m.deps.Prober.CheckServices(ctx)

	m.mu.Lock()
	m.services = services
	m.mu.Unlock()

	now := time.Now()
	for name, svc := range services {
		providerStatus.WithLabelValues(name).Set(statusGaugeValue(svc.Status))
		if svc.Status == model.ServiceOffline {
			m.reportIssue(model.Issue{
				Type:        model.IssueNetwork,
				Severity:    model.SeverityMedium,
				Description: fmt.Sprintf("provider %s unreachable", name),
				Timestamp:   now,
			})
		}
	}

	tickDuration.WithLabelValues("service").Observe(time.Since(start).Seconds())
	if m.deps.Store != nil {
		if err := m.deps.Store.SaveServiceHealth(services); err != nil {
			m.log.Debug("service health mirror failed", zap.Error(err))
		}
	}
}

func statusGaugeValue(s model.ServiceStatus) float64 {
	switch s {
	case model.ServiceOnline:
		return 1
	case model.ServiceDegraded:
		return 0.5
	default:
		return 0
	}
}
