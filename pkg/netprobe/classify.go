package netprobe

import (
	"math"

	"medavatar/pkg/model"
)

// Classification thresholds. Latency in ms, bandwidth in Kbps.
const (
	excellentLatencyMs = 50
	goodLatencyMs      = 100
	fairLatencyMs      = 200

	excellentKbps = 10000
	goodKbps      = 5000
	fairKbps      = 2000

	// nearRegionKm bounds the client-to-region distance for the premium tier.
	nearRegionKm = 2000
)

// ClassifyQuality maps latency and bandwidth onto a quality tier.
// Improving either metric never downgrades the tier.
func ClassifyQuality(latencyMs, bandwidthKbps float64) model.ConnectionQuality {
	switch {
	case latencyMs < excellentLatencyMs && bandwidthKbps > excellentKbps:
		return model.QualityExcellent
	case latencyMs < goodLatencyMs && bandwidthKbps > goodKbps:
		return model.QualityGood
	case latencyMs < fairLatencyMs && bandwidthKbps > fairKbps:
		return model.QualityFair
	default:
		return model.QualityPoor
	}
}

// RecommendMode derives the experience tier from quality plus distance.
// Premium needs excellent quality close to the serving region; degraded is
// offered while bandwidth still carries audio+stills; otherwise audio only.
func RecommendMode(q model.ConnectionQuality, distanceKm, bandwidthKbps float64) model.RecommendedMode {
	switch q {
	case model.QualityExcellent:
		if distanceKm < nearRegionKm {
			return model.ModePremium
		}
		return model.ModeStandard
	case model.QualityGood:
		return model.ModeStandard
	case model.QualityFair:
		return model.ModeDegraded
	default:
		if bandwidthKbps >= fairKbps {
			return model.ModeDegraded
		}
		return model.ModeAudioOnly
	}
}

const earthRadiusKm = 6371

// Haversine returns the great-circle distance in km between two coordinates.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
