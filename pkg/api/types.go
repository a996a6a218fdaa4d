package api

import "medavatar/pkg/model"

// SessionMetricsRequest is one interaction report from the session layer.
type SessionMetricsRequest struct {
	SessionID      string   `json:"sessionId"`
	ResponseTimeMs float64  `json:"responseTimeMs"`
	Errors         []string `json:"errors,omitempty"`
}

// ConnectionErrorRequest reports a dropped real-time connection.
type ConnectionErrorRequest struct {
	SessionID string `json:"sessionId"`
	Error     string `json:"error,omitempty"`
}

// ConnectionErrorResponse reports whether the premium path should still be
// attempted after re-analysis and backoff.
type ConnectionErrorResponse struct {
	RetryPremium bool                       `json:"retryPremium"`
	Strategy     model.OptimizationStrategy `json:"strategy"`
}

// NetworkAnalysisRequest optionally narrows the analysis to a client.
type NetworkAnalysisRequest struct {
	Hint *model.ClientHint `json:"hint,omitempty"`
}
