package netprobe

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"medavatar/pkg/model"
)

// Region identifies the fixed serving region the product runs in.
type Region struct {
	Name string
	Lat  float64
	Lng  float64
}

// Config controls probing behavior. Zero-value fields fall back to defaults.
type Config struct {
	Providers       []model.Provider
	BandwidthURL    string
	ProbeTimeout    time.Duration
	Region          Region
	DefaultLocation model.GeoLocation
	FallbackKbps    float64
	GeoURL          string // e.g. https://ipapi.co/%s/json/
	GeoCacheTTL     time.Duration
}

const (
	defaultProbeTimeout = 5 * time.Second
	defaultFallbackKbps = 5000
	defaultGeoURL       = "https://ipapi.co/%s/json/"
	defaultGeoCacheTTL  = 30 * time.Minute
)

// Prober estimates client network quality and external provider reachability.
// Analyze and CheckServices never fail; they return safe defaults instead.
type Prober struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger

	geoMu    sync.Mutex
	geoCache map[string]geoCacheEntry
}

func New(cfg Config, log *zap.Logger) *Prober {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.FallbackKbps <= 0 {
		cfg.FallbackKbps = defaultFallbackKbps
	}
	if cfg.GeoURL == "" {
		cfg.GeoURL = defaultGeoURL
	}
	if cfg.GeoCacheTTL <= 0 {
		cfg.GeoCacheTTL = defaultGeoCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Prober{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.ProbeTimeout},
		log:      log,
		geoCache: map[string]geoCacheEntry{},
	}
}

// Analyze produces a NetworkMetrics snapshot for the client described by
// hint. Every sub-step is best-effort; a failed step contributes its
// configured fallback rather than failing the analysis.
func (p *Prober) Analyze(ctx context.Context, hint *model.ClientHint) model.NetworkMetrics {
	loc := p.resolveLocation(ctx, hint)
	latency := p.meanLatency(ctx)
	bandwidth := p.estimateBandwidth(ctx)
	distance := Haversine(loc.Lat, loc.Lng, p.cfg.Region.Lat, p.cfg.Region.Lng)
	quality := ClassifyQuality(latency, bandwidth)

	return model.NetworkMetrics{
		LatencyMs:         latency,
		BandwidthKbps:     bandwidth,
		ConnectionQuality: quality,
		Location:          loc,
		ServerDistanceKm:  distance,
		RecommendedMode:   RecommendMode(quality, distance, bandwidth),
	}
}

// meanLatency probes every tracked endpoint in parallel and averages the
// round trips. A probe that errors or times out contributes the full probe
// timeout so one dead provider degrades the mean without dominating it.
func (p *Prober) meanLatency(ctx context.Context) float64 {
	if len(p.cfg.Providers) == 0 {
		return 0
	}
	timeoutMs := float64(p.cfg.ProbeTimeout.Milliseconds())
	samples := make([]float64, len(p.cfg.Providers))
	var wg sync.WaitGroup
	for i, prov := range p.cfg.Providers {
		wg.Add(1)
		go func(i int, prov model.Provider) {
			defer wg.Done()
			ms, err := p.probeOnce(ctx, http.MethodHead, prov.ProbeURL)
			if err != nil {
				p.log.Debug("latency probe failed", zap.String("provider", prov.Name), zap.Error(err))
				samples[i] = timeoutMs
				return
			}
			samples[i] = ms
		}(i, prov)
	}
	wg.Wait()

	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

func (p *Prober) probeOnce(ctx context.Context, method, url string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return float64(time.Since(start).Microseconds()) / 1000, nil
}

// estimateBandwidth times a small fixed download end-to-end. On any failure
// it assumes a conservative default instead of failing the analysis.
func (p *Prober) estimateBandwidth(ctx context.Context) float64 {
	if p.cfg.BandwidthURL == "" {
		return p.cfg.FallbackKbps
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BandwidthURL, nil)
	if err != nil {
		return p.cfg.FallbackKbps
	}
	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug("bandwidth probe failed", zap.Error(err))
		return p.cfg.FallbackKbps
	}
	defer resp.Body.Close()
	n, err := io.Copy(io.Discard, resp.Body)
	elapsed := time.Since(start)
	if err != nil || n == 0 || elapsed <= 0 {
		return p.cfg.FallbackKbps
	}
	bits := float64(n) * 8
	return bits / (float64(elapsed.Microseconds()) / 1000)
}
