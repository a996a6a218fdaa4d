// Package strategy derives the adaptive session configuration from the
// latest health, provider and network snapshots. Compute is a pure
// function; callers own snapshot freshness.
package strategy

import (
	"medavatar/pkg/model"
)

// Config fixes the providers and thresholds the engine selects between.
type Config struct {
	AvatarProvider      string
	TTSProviders        []string
	FallbackTTSProvider string
	MaxAvatarRespMs     float64
	MinSessionScore     float64
}

// DefaultConfig matches the product's tracked providers.
func DefaultConfig() Config {
	return Config{
		AvatarProvider:      "avatar",
		TTSProviders:        []string{"tts-primary", "tts-secondary"},
		FallbackTTSProvider: "tts-primary",
		MaxAvatarRespMs:     3000,
		MinSessionScore:     0.7,
	}
}

// Inputs carries the snapshots one computation reads. SessionKnown reports
// whether a health score exists for the session; an unknown session is
// allowed the premium path.
type Inputs struct {
	System       model.SystemHealth
	Services     map[string]model.ServiceHealth
	Network      model.NetworkMetrics
	SessionScore float64
	SessionKnown bool
}

// Compute derives the optimization strategy for one session.
func Compute(in Inputs, cfg Config) model.OptimizationStrategy {
	q := in.Network.ConnectionQuality

	useAvatar := false
	if svc, ok := in.Services[cfg.AvatarProvider]; ok {
		useAvatar = svc.Status == model.ServiceOnline && svc.ResponseTimeMs < cfg.MaxAvatarRespMs
	}
	if in.SessionKnown && in.SessionScore <= cfg.MinSessionScore {
		useAvatar = false
	}

	return model.OptimizationStrategy{
		UseAvatarService:     useAvatar,
		PreferredTTSProvider: pickTTS(in.Services, cfg),
		FidelityTier:         fidelityFor(q),
		PreloadStrategy:      preloadFor(q),
		ReconnectionPolicy:   reconnectPolicyFor(q),
		ReconnectDelayMs:     int(ReconnectDelayMs(q)),
	}
}

// pickTTS prefers the online candidate with the lowest observed round trip;
// when none are online the fixed fallback is used.
func pickTTS(services map[string]model.ServiceHealth, cfg Config) string {
	best := ""
	bestRT := 0.0
	for _, name := range cfg.TTSProviders {
		svc, ok := services[name]
		if !ok || svc.Status != model.ServiceOnline {
			continue
		}
		if best == "" || svc.ResponseTimeMs < bestRT {
			best = name
			bestRT = svc.ResponseTimeMs
		}
	}
	if best == "" {
		return cfg.FallbackTTSProvider
	}
	return best
}

func fidelityFor(q model.ConnectionQuality) model.FidelityTier {
	switch q {
	case model.QualityExcellent:
		return model.FidelityHigh
	case model.QualityGood:
		return model.FidelityMedium
	default:
		// Below good the avatar is replaced by a pre-rendered idle asset.
		return model.FidelityPlaceholder
	}
}

func preloadFor(q model.ConnectionQuality) model.PreloadStrategy {
	switch q {
	case model.QualityExcellent:
		return model.PreloadAggressive
	case model.QualityGood:
		return model.PreloadModerate
	default:
		return model.PreloadConservative
	}
}

func reconnectPolicyFor(q model.ConnectionQuality) model.ReconnectionPolicy {
	switch q {
	case model.QualityExcellent:
		return model.ReconnectImmediate
	case model.QualityGood, model.QualityFair:
		return model.ReconnectDelayed
	default:
		return model.ReconnectBackgroundOnly
	}
}

// ReconnectDelayMs returns the reconnection backoff for a quality tier.
func ReconnectDelayMs(q model.ConnectionQuality) float64 {
	switch q {
	case model.QualityExcellent:
		return 500
	case model.QualityGood:
		return 1000
	case model.QualityFair:
		return 2000
	default:
		return 5000
	}
}
