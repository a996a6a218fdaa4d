package model

import "time"

// ServiceStatus classifies reachability of one external provider.
type ServiceStatus string

const (
	ServiceOnline   ServiceStatus = "online"
	ServiceDegraded ServiceStatus = "degraded"
	ServiceOffline  ServiceStatus = "offline"
)

// ServiceHealth is the latest reachability probe result for one provider.
type ServiceHealth struct {
	Status         ServiceStatus `json:"status"`
	ResponseTimeMs float64       `json:"responseTimeMs"`
	ErrorRate      float64       `json:"errorRate"`
	LastChecked    time.Time     `json:"lastChecked"`
}

// ProviderKind distinguishes what role a probed endpoint plays.
type ProviderKind string

const (
	ProviderAvatar ProviderKind = "avatar"
	ProviderTTS    ProviderKind = "tts"
	ProviderChat   ProviderKind = "chat"
	ProviderCDN    ProviderKind = "cdn"
)

// Provider describes one tracked external endpoint. Only HTTP status and
// timing are interpreted; payload semantics stay with the product layer.
type Provider struct {
	Name     string       `json:"name"`
	Kind     ProviderKind `json:"kind"`
	ProbeURL string       `json:"probeUrl"`
}
