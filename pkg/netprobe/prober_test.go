package netprobe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medavatar/pkg/model"
)

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckServicesClassification(t *testing.T) {
	online := okServer(t)
	degraded := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(degraded.Close)
	offline := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	offline.Close()

	p := New(Config{
		Providers: []model.Provider{
			{Name: "avatar", Kind: model.ProviderAvatar, ProbeURL: online.URL},
			{Name: "tts", Kind: model.ProviderTTS, ProbeURL: degraded.URL},
			{Name: "chat", Kind: model.ProviderChat, ProbeURL: offline.URL},
			{Name: "cdn", Kind: model.ProviderCDN, ProbeURL: online.URL},
		},
		ProbeTimeout: 2 * time.Second,
	}, nil)

	out := p.CheckServices(context.Background())
	require.Len(t, out, 3, "cdn endpoints are not service-checked")

	assert.Equal(t, model.ServiceOnline, out["avatar"].Status)
	assert.Zero(t, out["avatar"].ErrorRate)

	assert.Equal(t, model.ServiceDegraded, out["tts"].Status)
	assert.Equal(t, 0.1, out["tts"].ErrorRate)

	assert.Equal(t, model.ServiceOffline, out["chat"].Status)
	assert.Equal(t, 1.0, out["chat"].ErrorRate)
	assert.Equal(t, float64(2000), out["chat"].ResponseTimeMs)
}

func TestMeanLatencyFailureContributesTimeout(t *testing.T) {
	online := okServer(t)
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	dead.Close()

	p := New(Config{
		Providers: []model.Provider{
			{Name: "up", Kind: model.ProviderTTS, ProbeURL: online.URL},
			{Name: "down", Kind: model.ProviderTTS, ProbeURL: dead.URL},
		},
		ProbeTimeout: time.Second,
	}, nil)

	mean := p.meanLatency(context.Background())
	// the dead endpoint pins its sample at 1000ms; the live one is near zero
	assert.Greater(t, mean, 400.0)
	assert.Less(t, mean, 600.0)
}

func TestEstimateBandwidthFallback(t *testing.T) {
	p := New(Config{ProbeTimeout: time.Second}, nil)
	assert.Equal(t, float64(defaultFallbackKbps), p.estimateBandwidth(context.Background()))

	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	dead.Close()
	p = New(Config{BandwidthURL: dead.URL, ProbeTimeout: time.Second, FallbackKbps: 3000}, nil)
	assert.Equal(t, 3000.0, p.estimateBandwidth(context.Background()))
}

func TestEstimateBandwidthMeasures(t *testing.T) {
	payload := make([]byte, 256*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	p := New(Config{BandwidthURL: srv.URL, ProbeTimeout: 5 * time.Second}, nil)
	kbps := p.estimateBandwidth(context.Background())
	assert.Greater(t, kbps, 0.0)
	assert.NotEqual(t, float64(defaultFallbackKbps), kbps)
}

func TestResolveLocationHintWins(t *testing.T) {
	p := New(Config{DefaultLocation: model.GeoLocation{Lat: 50.11, Lng: 8.68, Source: "default"}}, nil)

	lat, lng := 48.85, 2.35
	loc := p.resolveLocation(context.Background(), &model.ClientHint{Lat: &lat, Lng: &lng})
	assert.Equal(t, "client", loc.Source)
	assert.Equal(t, 48.85, loc.Lat)

	// no hint at all falls back to the configured region
	loc = p.resolveLocation(context.Background(), nil)
	assert.Equal(t, "default", loc.Source)

	// a malformed IP is ignored, not looked up
	loc = p.resolveLocation(context.Background(), &model.ClientHint{IP: "not-an-ip"})
	assert.Equal(t, "default", loc.Source)
}

func TestResolveGeoCaches(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"latitude":52.52,"longitude":13.405,"city":"Berlin","country_name":"Germany"}`))
	}))
	t.Cleanup(srv.Close)

	p := New(Config{GeoURL: srv.URL + "/%s/json/", GeoCacheTTL: time.Minute, ProbeTimeout: time.Second}, nil)

	loc, ok := p.resolveGeo(context.Background(), "203.0.113.7")
	require.True(t, ok)
	assert.Equal(t, "Berlin", loc.City)
	assert.Equal(t, "ipapi", loc.Source)

	_, ok = p.resolveGeo(context.Background(), "203.0.113.7")
	require.True(t, ok)
	assert.Equal(t, 1, hits)
}

func TestAnalyzeNeverFails(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	dead.Close()

	p := New(Config{
		Providers:       []model.Provider{{Name: "avatar", Kind: model.ProviderAvatar, ProbeURL: dead.URL}},
		BandwidthURL:    dead.URL,
		ProbeTimeout:    time.Second,
		Region:          Region{Name: "eu-central", Lat: 50.11, Lng: 8.68},
		DefaultLocation: model.GeoLocation{Lat: 50.11, Lng: 8.68, Source: "default"},
	}, nil)

	m := p.Analyze(context.Background(), nil)
	assert.Equal(t, float64(1000), m.LatencyMs)
	assert.Equal(t, float64(defaultFallbackKbps), m.BandwidthKbps)
	assert.Equal(t, model.QualityPoor, m.ConnectionQuality)
	assert.Equal(t, model.ModeDegraded, m.RecommendedMode)
	assert.Equal(t, "default", m.Location.Source)
}
