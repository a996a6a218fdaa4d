package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medavatar/pkg/auth"
	"medavatar/pkg/monitor"
	"medavatar/pkg/store"
)

// RegisterRoutes wires the monitor HTTP surface on the provided mux. token
// is the bootstrap auth token; a valid operator JWT is accepted as well.
func RegisterRoutes(mux *http.ServeMux, m *monitor.Monitor, st store.MonitorStore, token string) {
	authed := authFunc(token)

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("medavatar monitor"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if st != nil {
			if err := st.Ping(); err != nil {
				http.Error(w, "store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/v1/monitor/health", instrument(m, func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, m.GetHealth())
	}))

	mux.HandleFunc("/api/v1/monitor/issues", instrument(m, func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, m.GetRecentIssues(limit))
	}))

	mux.HandleFunc("/api/v1/monitor/services", instrument(m, func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, m.GetServiceHealth())
	}))

	mux.HandleFunc("/api/v1/monitor/network", instrument(m, func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req NetworkAnalysisRequest
		// an empty or malformed body analyzes with defaults
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusOK, m.AnalyzeNetwork(r.Context(), req.Hint))
	}))

	mux.HandleFunc("/api/v1/monitor/config", instrument(m, func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		sessionID := r.URL.Query().Get("sessionId")
		if sessionID == "" {
			http.Error(w, "sessionId is required", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, m.GetOptimizedConfiguration(r.Context(), sessionID))
	}))

	mux.HandleFunc("/api/v1/sessions/metrics", instrument(m, func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req SessionMetricsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		m.ReportSessionMetrics(req.SessionID, req.ResponseTimeMs, req.Errors)
		w.WriteHeader(http.StatusNoContent)
	}))

	mux.HandleFunc("/api/v1/sessions/connection-error", instrument(m, func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req ConnectionErrorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		var cause error
		if req.Error != "" {
			cause = errors.New(req.Error)
		}
		retry := m.HandleConnectionError(r.Context(), req.SessionID, cause)
		writeJSON(w, http.StatusOK, ConnectionErrorResponse{
			RetryPremium: retry,
			Strategy:     m.GetOptimizedConfiguration(r.Context(), req.SessionID),
		})
	}))

	mux.HandleFunc("/api/v1/monitor/history/issues", instrument(m, func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if st == nil {
			http.Error(w, "no store configured", http.StatusNotFound)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		issues, err := st.ListIssues(limit)
		if err != nil {
			http.Error(w, "failed to list issues", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, issues)
	}))
}

// instrument feeds request timing and failure into the monitor's rolling
// API health view.
func instrument(m *monitor.Monitor, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)
		ms := float64(time.Since(start).Microseconds()) / 1000
		failed := rec.status >= 500
		msg := ""
		if failed {
			msg = r.URL.Path + ": " + http.StatusText(rec.status)
		}
		m.RecordAPIRequest(ms, failed, msg)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// authFunc accepts the bootstrap token (header or bearer) or a valid
// operator JWT. An empty token disables auth, for dev.
func authFunc(token string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if token == "" {
			return true
		}
		if r.Header.Get("X-Auth-Token") == token {
			return true
		}
		h := r.Header.Get("Authorization")
		if strings.HasPrefix(h, "Bearer ") {
			t := strings.TrimPrefix(h, "Bearer ")
			if t == token {
				return true
			}
			if _, err := auth.Parse(t); err == nil {
				return true
			}
		}
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
