package model

import "time"

// DatabaseHealth captures the last probe of the pooled database handle.
type DatabaseHealth struct {
	Healthy         bool      `json:"healthy"`
	LastCheck       time.Time `json:"lastCheck"`
	ResponseTimeMs  float64   `json:"responseTimeMs"`
	ConnectionCount int       `json:"connectionCount"`
	ErrorCount      int       `json:"errorCount"`
	LastError       string    `json:"lastError,omitempty"`
}

// AvatarHealth captures liveness of the in-process avatar session, if one is registered.
type AvatarHealth struct {
	Healthy       bool   `json:"healthy"`
	SessionActive bool   `json:"sessionActive"`
	LastError     string `json:"lastError,omitempty"`
	ErrorCount    int    `json:"errorCount"`
}

// APIHealth is a rolling view of request handling, fed by the HTTP layer.
type APIHealth struct {
	ResponseTimeMs float64 `json:"responseTimeMs"`
	ErrorRate      float64 `json:"errorRate"`
	LastError      string  `json:"lastError,omitempty"`
}

// MemoryHealth is a point-in-time snapshot of heap usage.
type MemoryHealth struct {
	HeapUsedBytes  uint64 `json:"heapUsedBytes"`
	HeapTotalBytes uint64 `json:"heapTotalBytes"`
	ResidentBytes  uint64 `json:"residentBytes"`
}

// SystemHealth aggregates the resource probe's view of the process.
// Replaced in place every tick; readers receive copies.
type SystemHealth struct {
	Database      DatabaseHealth `json:"database"`
	Avatar        AvatarHealth   `json:"avatarSession"`
	API           APIHealth      `json:"api"`
	Memory        MemoryHealth   `json:"memory"`
	UptimeSeconds float64        `json:"uptimeSeconds"`
}
