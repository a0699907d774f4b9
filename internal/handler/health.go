// Package handler contains the HTTP handlers of the worker's ops listener.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
)

const checkTimeout = 5 * time.Second

// Pinger is satisfied by *sql.DB and allows tests to inject a mock.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ToolChecker is satisfied by *transcoder.Runner.
type ToolChecker interface {
	CheckTools(ctx context.Context) error
}

// HealthResponse is the JSON body returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
	Tools  string `json:"tools"`
}

// NewHealthHandler returns an http.HandlerFunc for GET /health.
// It pings the database and checks that ffmpeg and ffprobe run. Either
// dependency may be nil, in which case it is reported as "skipped".
//
// The endpoint is protected by a shared secret token: callers must supply the
// value of the HEALTH_TOKEN environment variable in the X-Health-Token header.
// When HEALTH_TOKEN is unset the check is skipped (suitable for local dev).
//
// Error details are logged server-side only; the response body carries the
// generic string "unavailable".
func NewHealthHandler(db Pinger, tools ToolChecker, logger hclog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("health")
	return func(w http.ResponseWriter, r *http.Request) {
		token := os.Getenv("HEALTH_TOKEN")
		if token != "" && r.Header.Get("X-Health-Token") != token {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		resp := HealthResponse{Status: "ok", DB: "skipped", Tools: "skipped"}
		if db != nil {
			resp.DB = "connected"
			if err := db.PingContext(ctx); err != nil {
				logger.Error("db ping failed", "error", err)
				resp.Status, resp.DB = "error", "unavailable"
			}
		}
		if tools != nil {
			resp.Tools = "available"
			if err := tools.CheckTools(ctx); err != nil {
				logger.Error("tool check failed", "error", err)
				resp.Status, resp.Tools = "error", "unavailable"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
