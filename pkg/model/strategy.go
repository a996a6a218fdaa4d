package model

// FidelityTier is the quality level of the avatar experience offered to a session.
type FidelityTier string

const (
	FidelityHigh        FidelityTier = "high"
	FidelityMedium      FidelityTier = "medium"
	FidelityLow         FidelityTier = "low"
	FidelityPlaceholder FidelityTier = "placeholder"
)

// PreloadStrategy controls how eagerly avatar assets are fetched ahead of use.
type PreloadStrategy string

const (
	PreloadAggressive   PreloadStrategy = "aggressive"
	PreloadModerate     PreloadStrategy = "moderate"
	PreloadConservative PreloadStrategy = "conservative"
)

// ReconnectionPolicy controls how a dropped real-time connection is retried.
type ReconnectionPolicy string

const (
	ReconnectImmediate      ReconnectionPolicy = "immediate"
	ReconnectDelayed        ReconnectionPolicy = "delayed"
	ReconnectBackgroundOnly ReconnectionPolicy = "background_only"
)

// OptimizationStrategy is the adaptive configuration handed to the session
// layer. Derived from the latest snapshots, never persisted.
type OptimizationStrategy struct {
	UseAvatarService     bool               `json:"useAvatarService"`
	PreferredTTSProvider string             `json:"preferredTtsProvider"`
	FidelityTier         FidelityTier       `json:"fidelityTier"`
	PreloadStrategy      PreloadStrategy    `json:"preloadStrategy"`
	ReconnectionPolicy   ReconnectionPolicy `json:"reconnectionPolicy"`
	ReconnectDelayMs     int                `json:"reconnectDelayMs"`
}
