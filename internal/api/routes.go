package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"clipforge/internal/paths"
	"clipforge/internal/persist"
	"clipforge/internal/telemetry"
)

// Telemetry listing bounds.
const (
	telemetryDefaultLimit = 80
	telemetryMaxLimit     = 400
)

// NewRouter wires the read-only project endpoints.
func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(recoveryMiddleware(cfg.Logger))
	r.Use(loggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Get("/projects/{projectID}/job", jobHandler(cfg))
	r.Get("/projects/{projectID}/history", historyHandler(cfg))
	r.Get("/projects/{projectID}/telemetry", telemetryHandler(cfg))

	return r
}

type healthResponse struct {
	Status  string `json:"status"`
	UptimeS int64  `json:"uptimeS"`
}

type historyResponse struct {
	Entries []persist.HistoryEntry `json:"entries"`
}

type telemetryResponse struct {
	Runs    []telemetry.Run `json:"runs"`
	LastRun *lastRunDetail  `json:"lastRun,omitempty"`
}

type lastRunDetail struct {
	Run            telemetry.Run             `json:"run"`
	StageDurations []telemetry.StageDuration `json:"stageDurations"`
	RetryEvents    []telemetry.RetryEvent    `json:"retryEvents"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func jobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pp, err := paths.Resolve(cfg.DataDir, chi.URLParam(r, "projectID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		doc, err := persist.ReadJob(pp.JobFile)
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "no render job recorded", "NOT_FOUND")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func historyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pp, err := paths.Resolve(cfg.DataDir, chi.URLParam(r, "projectID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		entries, err := persist.ReadHistory(pp.HistoryFile)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if entries == nil {
			entries = []persist.HistoryEntry{}
		}
		writeJSON(w, http.StatusOK, historyResponse{Entries: entries})
	}
}

func telemetryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pp, err := paths.Resolve(cfg.DataDir, chi.URLParam(r, "projectID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		limit := ClampLimit(r.URL.Query().Get("limit"))

		exists, err := paths.FileExists(pp.TelemetryDB)
		if err != nil || !exists {
			writeJSON(w, http.StatusOK, telemetryResponse{Runs: []telemetry.Run{}})
			return
		}

		sink, err := telemetry.Open(pp.TelemetryDB)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		defer sink.Close()

		runs, err := sink.RecentRuns(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		resp := telemetryResponse{Runs: runs}
		if resp.Runs == nil {
			resp.Runs = []telemetry.Run{}
		}
		if len(runs) > 0 {
			last := runs[0]
			durations, _ := sink.StageDurations(last.RunID)
			events, _ := sink.RetryEvents(last.RunID)
			resp.LastRun = &lastRunDetail{
				Run:            last,
				StageDurations: durations,
				RetryEvents:    events,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ClampLimit parses a telemetry limit query value and clamps it to the
// allowed range, defaulting when absent or unparsable.
func ClampLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return telemetryDefaultLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > telemetryMaxLimit {
		return telemetryMaxLimit
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
