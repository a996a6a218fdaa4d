package netprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"medavatar/pkg/model"
)

type geoCacheEntry struct {
	loc     model.GeoLocation
	expires time.Time
}

// resolveLocation picks the best available client location: explicit hint
// coordinates, then a cached/fresh IP lookup, then the configured default.
// It never fails.
func (p *Prober) resolveLocation(ctx context.Context, hint *model.ClientHint) model.GeoLocation {
	if hint != nil && hint.Lat != nil && hint.Lng != nil {
		return model.GeoLocation{Lat: *hint.Lat, Lng: *hint.Lng, Source: "client"}
	}
	if hint != nil && hint.IP != "" && net.ParseIP(hint.IP) != nil {
		if loc, ok := p.resolveGeo(ctx, hint.IP); ok {
			return loc
		}
	}
	return p.cfg.DefaultLocation
}

func (p *Prober) resolveGeo(ctx context.Context, ip string) (model.GeoLocation, bool) {
	p.geoMu.Lock()
	if entry, ok := p.geoCache[ip]; ok && time.Now().Before(entry.expires) {
		p.geoMu.Unlock()
		return entry.loc, true
	}
	p.geoMu.Unlock()

	loc, ok := p.fetchGeo(ctx, ip)
	if ok {
		p.geoMu.Lock()
		p.geoCache[ip] = geoCacheEntry{loc: loc, expires: time.Now().Add(p.cfg.GeoCacheTTL)}
		p.geoMu.Unlock()
	}
	return loc, ok
}

func (p *Prober) fetchGeo(ctx context.Context, ip string) (model.GeoLocation, bool) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(p.cfg.GeoURL, ip), nil)
	if err != nil {
		return model.GeoLocation{}, false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug("geo lookup failed", zap.String("ip", ip), zap.Error(err))
		return model.GeoLocation{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return model.GeoLocation{}, false
	}
	var body struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		City      string  `json:"city"`
		Region    string  `json:"region"`
		Country   string  `json:"country_name"`
		Timezone  string  `json:"timezone"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.GeoLocation{}, false
	}
	return model.GeoLocation{
		IP:       ip,
		Lat:      body.Latitude,
		Lng:      body.Longitude,
		City:     body.City,
		Region:   body.Region,
		Country:  body.Country,
		Timezone: body.Timezone,
		Source:   "ipapi",
	}, true
}
