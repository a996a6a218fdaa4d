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

// degradedErrorRate is recorded when a provider answers with a non-success
// status; an unreachable provider is pinned at 1.
const degradedErrorRate = 0.1

// CheckServices probes every tracked provider (CDN endpoints excluded) and
// classifies each as online, degraded or offline. The whole pass is bounded
// by the per-probe timeout; a straggler never blocks the others.
func (p *Prober) CheckServices(ctx context.Context) map[string]model.ServiceHealth {
	out := make(map[string]model.ServiceHealth)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, prov := range p.cfg.Providers {
		if prov.Kind == model.ProviderCDN {
			continue
		}
		wg.Add(1)
		go func(prov model.Provider) {
			defer wg.Done()
			h := p.checkService(ctx, prov)
			mu.Lock()
			out[prov.Name] = h
			mu.Unlock()
		}(prov)
	}
	wg.Wait()
	return out
}

func (p *Prober) checkService(ctx context.Context, prov model.Provider) model.ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()
	now := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, prov.ProbeURL, nil)
	if err != nil {
		return model.ServiceHealth{Status: model.ServiceOffline, ErrorRate: 1, LastChecked: now}
	}
	start := time.Now()
	resp, err := p.client.Do(req)
	rt := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		p.log.Debug("service probe failed", zap.String("provider", prov.Name), zap.Error(err))
		return model.ServiceHealth{
			Status:         model.ServiceOffline,
			ResponseTimeMs: float64(p.cfg.ProbeTimeout.Milliseconds()),
			ErrorRate:      1,
			LastChecked:    now,
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.ServiceHealth{
			Status:         model.ServiceDegraded,
			ResponseTimeMs: rt,
			ErrorRate:      degradedErrorRate,
			LastChecked:    now,
		}
	}
	return model.ServiceHealth{Status: model.ServiceOnline, ResponseTimeMs: rt, LastChecked: now}
}
