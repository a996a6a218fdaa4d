package model

// ConnectionQuality is a coarse classification of client network conditions.
type ConnectionQuality string

const (
	QualityExcellent ConnectionQuality = "excellent"
	QualityGood      ConnectionQuality = "good"
	QualityFair      ConnectionQuality = "fair"
	QualityPoor      ConnectionQuality = "poor"
)

// RecommendedMode is the experience tier suggested by network analysis alone.
type RecommendedMode string

const (
	ModePremium   RecommendedMode = "premium"
	ModeStandard  RecommendedMode = "standard"
	ModeDegraded  RecommendedMode = "degraded"
	ModeAudioOnly RecommendedMode = "audio_only"
)

// GeoLocation carries best-effort IP geolocation.
type GeoLocation struct {
	IP       string  `json:"ip,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Lng      float64 `json:"lng,omitempty"`
	City     string  `json:"city,omitempty"`
	Region   string  `json:"region,omitempty"`
	Country  string  `json:"country,omitempty"`
	Timezone string  `json:"timezone,omitempty"`
	Source   string  `json:"source,omitempty"`
}

// ClientHint is optional caller-supplied context for network analysis.
type ClientHint struct {
	IP  string   `json:"ip,omitempty"`
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

// NetworkMetrics is the result of one network analysis pass.
// Each analysis supersedes the previous one; no history is kept.
type NetworkMetrics struct {
	LatencyMs         float64           `json:"latencyMs"`
	BandwidthKbps     float64           `json:"bandwidthKbps"`
	ConnectionQuality ConnectionQuality `json:"connectionQuality"`
	Location          GeoLocation       `json:"location"`
	ServerDistanceKm  float64           `json:"serverDistanceKm"`
	RecommendedMode   RecommendedMode   `json:"recommendedMode"`
}
