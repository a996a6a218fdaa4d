package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"medavatar/pkg/model"
	"medavatar/pkg/store"
	"medavatar/pkg/strategy"
)

// Config carries every interval, threshold and cap of the control loop.
type Config struct {
	ResourceInterval time.Duration // resource probe tick
	ServiceInterval  time.Duration // provider reachability tick
	RecheckInterval  time.Duration // network snapshot staleness bound

	RetentionWindow time.Duration // issues older than this are pruned
	DedupeWindow    time.Duration // one open issue per type within this window
	FixAttemptCap   int

	ProbeTimeout         time.Duration
	DBLatencyWarnMs      float64
	MemWarnRatio         float64
	MemCriticalRatio     float64
	AvatarErrorThreshold int
	APIErrorRateMax      float64 // rolling error rate above this raises an api issue

	SessionCacheSize int
	ArchivePath      string // sqlite issue archive; empty disables

	Strategy strategy.Config
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ResourceInterval:     5 * time.Second,
		ServiceInterval:      30 * time.Second,
		RecheckInterval:      60 * time.Second,
		RetentionWindow:      time.Hour,
		DedupeWindow:         60 * time.Second,
		FixAttemptCap:        3,
		ProbeTimeout:         5 * time.Second,
		DBLatencyWarnMs:      1000,
		MemWarnRatio:         0.8,
		MemCriticalRatio:     0.9,
		AvatarErrorThreshold: 3,
		APIErrorRateMax:      0.5,
		SessionCacheSize:     50,
		Strategy:             strategy.DefaultConfig(),
	}
}

// AvatarSession is the monitor's view of the process-wide avatar manager.
// All methods must be safe to call concurrently; Recreate is idempotent.
type AvatarSession interface {
	Live() bool
	Active() bool
	RecentErrors() []string
	ResetErrors()
	Recreate(ctx context.Context) error
}

// NetworkProber abstracts the network & service probe.
type NetworkProber interface {
	Analyze(ctx context.Context, hint *model.ClientHint) model.NetworkMetrics
	CheckServices(ctx context.Context) map[string]model.ServiceHealth
}

// Advisor produces a one-line remediation suggestion for operator
// visibility. Implementations must honor the context deadline.
type Advisor interface {
	Suggest(ctx context.Context, description string) (string, error)
}

// Deps are the external collaborators handed to the monitor at
// construction. Only Prober is required; every other field may be nil and
// the corresponding check degrades to a reported-only signal.
type Deps struct {
	Logger  *zap.Logger
	PingDB  func(ctx context.Context) error
	DBStats func() int // open connections in the pool
	Avatar  AvatarSession
	Prober  NetworkProber
	Advisor Advisor
	Store   store.MonitorStore
}
