package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"composehook/internal/history"
	"composehook/internal/metrics"

	"github.com/google/uuid"
)

const (
	// MaxBodyBytes caps how much of the request body is drained. Webhook
	// senders attach payloads (registry push notifications, CI metadata)
	// that the deploy decision never looks at.
	MaxBodyBytes = 1_000_000 // 1 MB

	// RecentDeploymentsLimit is the number of records served by the history endpoint
	RecentDeploymentsLimit = 10
)

// Exact webhook response bodies. Remote callers script against these
// strings, so nothing may decorate them.
const (
	MsgSuccess      = "Deployment successful"
	MsgUnauthorized = "Unauthorized"
	MsgInProgress   = "Deployment already in progress"

	FailedPrefix = "Deployment failed: "
	ErrorPrefix  = "Error: "
)

// HandleWebhook triggers a deployment. The request body is irrelevant: any
// authenticated POST, whatever its path or payload, redeploys the stack.
// The handler blocks until the deployment finishes so the response reports
// the real outcome.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if !CheckAuthToken(r.Header.Get("Authorization"), s.Config.Secret) {
		metrics.UnauthorizedTotal.Inc()
		s.Logger.Warn("Unauthorized webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		s.respondText(w, http.StatusUnauthorized, MsgUnauthorized)
		return
	}

	// Drain and discard the payload so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, MaxBodyBytes))

	s.Logger.Info("Received deployment webhook",
		"remote_addr", r.RemoteAddr,
		"path", r.URL.Path)

	deployID := uuid.NewString()
	w.Header().Set("X-Deploy-Id", deployID)

	// Once triggered, a deployment runs to completion: a caller hanging up
	// while compose is mid-restart must not kill the subprocess.
	ctx := context.WithoutCancel(r.Context())

	if !s.Gate.TryAcquire() {
		s.Logger.Warn("Deployment already in progress, rejecting", "deploy_id", deployID)
		metrics.DeploymentsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		s.recordHistory(ctx, r, &history.Record{
			DeployID:     deployID,
			Status:       history.StatusRejected,
			ErrorMessage: stringPtr(MsgInProgress),
			StartedAt:    time.Now(),
		})
		s.respondText(w, http.StatusConflict, MsgInProgress)
		return
	}
	defer s.Gate.Release()

	start := time.Now()
	result, err := s.Deployer.Deploy(ctx)
	duration := time.Since(start)
	durationSeconds := duration.Seconds()

	metrics.DeployDuration.Observe(durationSeconds)

	switch {
	case err != nil:
		metrics.DeploymentsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		s.Logger.Error("Deployment error",
			"deploy_id", deployID,
			"error", err)
		s.recordHistory(ctx, r, &history.Record{
			DeployID:        deployID,
			Status:          history.StatusError,
			ErrorMessage:    stringPtr(err.Error()),
			DurationSeconds: &durationSeconds,
			StartedAt:       start,
		})
		s.respondText(w, http.StatusInternalServerError, ErrorPrefix+err.Error())

	case result.OK():
		metrics.DeploymentsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
		s.Logger.Info("Deployment successful",
			"deploy_id", deployID,
			"duration_ms", duration.Milliseconds())
		stage := string(result.Stage)
		s.recordHistory(ctx, r, &history.Record{
			DeployID:        deployID,
			Status:          history.StatusSuccess,
			Stage:           &stage,
			ExitCode:        &result.ExitCode,
			DurationSeconds: &durationSeconds,
			StartedAt:       start,
		})
		s.respondText(w, http.StatusOK, MsgSuccess)

	default:
		metrics.DeploymentsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.Logger.Error("Deployment failed",
			"deploy_id", deployID,
			"stage", string(result.Stage),
			"exit_code", result.ExitCode,
			"stderr", result.Stderr)
		stage := string(result.Stage)
		s.recordHistory(ctx, r, &history.Record{
			DeployID:        deployID,
			Status:          history.StatusFailed,
			Stage:           &stage,
			ExitCode:        &result.ExitCode,
			Stderr:          stringPtrOrNil(result.Stderr),
			DurationSeconds: &durationSeconds,
			StartedAt:       start,
		})
		s.respondText(w, http.StatusInternalServerError, FailedPrefix+result.Stderr)
	}
}

// HandleHealth handles liveness checks.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":             "ok",
		"deploy_in_progress": s.Gate.InProgress(),
		"compose_file":       s.Config.ComposePath(),
	}

	s.respondJSON(w, http.StatusOK, response)
}

// HandleHistory serves the most recent deployment attempts.
func (s *Server) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "History is disabled"})
		return
	}

	latest, err := s.History.Latest(r.Context())
	if err != nil {
		s.Logger.Error("Failed to get latest deployment", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch deployment history"})
		return
	}

	recent, err := s.History.Recent(r.Context(), RecentDeploymentsLimit)
	if err != nil {
		s.Logger.Error("Failed to get deployment history", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch deployment history"})
		return
	}
	if recent == nil {
		recent = []history.Record{}
	}

	s.respondJSON(w, http.StatusOK, history.Summary{
		Latest: latest,
		Recent: recent,
	})
}

// recordHistory stores a deployment attempt when history is enabled.
// Authentication failures never reach this point: an unauthenticated
// request has no deploy side effects to audit.
func (s *Server) recordHistory(ctx context.Context, r *http.Request, record *history.Record) {
	if s.History == nil {
		return
	}

	record.RemoteAddr = r.RemoteAddr
	if _, err := s.History.Add(ctx, record); err != nil {
		s.Logger.Error("Failed to record deployment history",
			"error", err,
			"deploy_id", record.DeployID)
	}
}

// respondText sends a plaintext response.
func (s *Server) respondText(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := io.WriteString(w, body); err != nil {
		s.Logger.Error("Failed to write response", "error", err)
	}
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}

// Helper functions
func stringPtr(s string) *string {
	return &s
}

func stringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
