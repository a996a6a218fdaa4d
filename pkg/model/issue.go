package model

import "time"

// IssueType classifies the resource or dependency an anomaly belongs to.
type IssueType string

const (
	IssueDatabase IssueType = "database"
	IssueAvatar   IssueType = "avatar"
	IssueNetwork  IssueType = "network"
	IssueMemory   IssueType = "memory"
	IssueAPI      IssueType = "api"
	IssueInternal IssueType = "internal_error"
)

// Severity orders anomalies for operator triage.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Issue is one tracked anomaly. The remediation controller mutates
// FixAttempts and AutoFixed; nothing else touches an issue after creation.
type Issue struct {
	Type        IssueType `json:"type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	AutoFixed   bool      `json:"autoFixed"`
	FixAttempts int       `json:"fixAttempts"`
}
