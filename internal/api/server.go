// Package api provides the HTTP API for running and inspecting experiments.
// GET endpoints are public (read-only).
// POST endpoints require a bearer token and are rate limited per IP.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/money-model/internal/engine"
	"github.com/talgya/money-model/internal/entropy"
	"github.com/talgya/money-model/internal/experiment"
	"github.com/talgya/money-model/internal/persistence"
	"github.com/talgya/money-model/internal/report"
)

// maxSampleSize caps trials × agents for a single POST.
const maxSampleSize = 5_000_000

// maxAgentSteps caps trials × agents × steps, the number of agent
// activations a single POST may ask for.
const maxAgentSteps = 2_000_000_000

// maxBodyBytes caps the POST body.
const maxBodyBytes = 1 << 16

// Server serves experiments over HTTP.
type Server struct {
	DB            *persistence.DB // Nil = results not stored
	Entropy       *entropy.Client // Seed source for requests without a seed
	Port          int
	AdminKey      string // Bearer token for POST endpoints. Empty = POST disabled.
	RateLimitHour int    // POSTs per IP per hour; 0 = 60
	TrustProxy    bool   // Key the rate limit on X-Forwarded-For (only behind a proxy)

	startedAt   time.Time
	experiments atomic.Int64
	trials      atomic.Int64
	metrics     *Metrics
}

// experimentRequest is the POST body. Seed is optional.
type experimentRequest struct {
	Trials      int    `json:"trials"`
	Agents      int    `json:"agents"`
	Steps       int    `json:"steps"`
	Seed        *int64 `json:"seed,omitempty"`
	ExcludeSelf bool   `json:"exclude_self"`
}

type experimentResponse struct {
	ID          string                     `json:"id"`
	Params      experiment.Params          `json:"params"`
	Samples     int                        `json:"samples"`
	TotalWealth uint64                     `json:"total_wealth"`
	DurationMs  int64                      `json:"duration_ms"`
	Stored      bool                       `json:"stored"`
	Histogram   []report.Bin[uint64]       `json:"histogram"`
	Request     *report.Request            `json:"request,omitempty"`
	Row         *persistence.ExperimentRow `json:"row,omitempty"`
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	if s.startedAt.IsZero() {
		s.startedAt = time.Now()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	rate := s.RateLimitHour
	if rate <= 0 {
		rate = 60
	}
	runLimiter := NewRateLimiter(rate, time.Hour)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/experiments", s.adminOnly(s.handleExperiments(runLimiter)))
	mux.HandleFunc("/api/v1/experiment/", s.handleExperimentDetail)
	mux.Handle("/metrics", s.metrics.Handler())

	return mux
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "storage", s.DB != nil)

	handler := s.Handler()
	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no MONEYSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"name":        "money-model",
		"uptime":      time.Since(s.startedAt).Round(time.Second).String(),
		"experiments": s.experiments.Load(),
		"trials":      s.trials.Load(),
		"storage":     s.DB != nil,
	})
}

// handleExperiments lists stored experiments (GET) or runs a new one (POST).
// Only runs count against the rate limit.
func (s *Server) handleExperiments(limiter *RateLimiter) http.HandlerFunc {
	run := RateLimitMiddleware(limiter, s.TrustProxy, s.runExperiment)
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.listExperiments(w, r)
		case http.MethodPost:
			run(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) listExperiments(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "storage disabled", http.StatusServiceUnavailable)
		return
	}
	rows, err := s.DB.ListExperiments(50)
	if err != nil {
		slog.Error("list experiments failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (s *Server) runExperiment(w http.ResponseWriter, r *http.Request) {
	var req experimentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := checkWorkload(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p := experiment.Params{
		Trials:      req.Trials,
		Agents:      req.Agents,
		Steps:       req.Steps,
		ExcludeSelf: req.ExcludeSelf,
	}
	if req.Seed != nil {
		p.Seed = *req.Seed
	} else {
		p.Seed = entropy.SeedFromSource(s.Entropy)
	}

	exp, err := experiment.RunExperimentContext(r.Context(), p)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidParameter) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			slog.Info("experiment abandoned", "error", err)
			http.Error(w, "experiment cancelled", http.StatusServiceUnavailable)
			return
		}
		slog.Error("experiment failed", "error", err)
		http.Error(w, "experiment failed", http.StatusInternalServerError)
		return
	}

	s.experiments.Add(1)
	s.trials.Add(int64(p.Trials))
	s.metrics.Observe(exp)

	stored := false
	if s.DB != nil {
		if err := s.DB.SaveExperiment(exp); err != nil {
			slog.Error("save experiment failed", "id", exp.ID, "error", err)
		} else {
			stored = true
		}
	}

	writeJSONStatus(w, http.StatusCreated, experimentResponse{
		ID:          exp.ID.String(),
		Params:      exp.Params,
		Samples:     len(exp.Sample),
		TotalWealth: exp.TotalWealth(),
		DurationMs:  exp.Duration.Milliseconds(),
		Stored:      stored,
		Histogram:   report.Tally(exp.Sample),
	})
}

// checkWorkload bounds the sample size and total agent activations of a
// request. Non-positive fields are left to Params.Validate. Limits are
// compared by division so oversized inputs cannot overflow.
func checkWorkload(req experimentRequest) error {
	if req.Trials <= 0 || req.Agents <= 0 {
		return nil
	}
	if req.Agents > maxSampleSize/req.Trials {
		return fmt.Errorf("trials × agents exceeds %d", maxSampleSize)
	}
	if req.Steps > 0 && req.Steps > maxAgentSteps/(req.Trials*req.Agents) {
		return fmt.Errorf("trials × agents × steps exceeds %d", maxAgentSteps)
	}
	return nil
}

// handleExperimentDetail returns a stored experiment: GET /api/v1/experiment/:id.
// Append ?values=1 to include the raw sample as a visualization request.
func (s *Server) handleExperimentDetail(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "storage disabled", http.StatusServiceUnavailable)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/experiment/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "missing experiment id", http.StatusBadRequest)
		return
	}

	row, err := s.DB.GetExperiment(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "experiment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("get experiment failed", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	sample, err := s.DB.LoadSample(id)
	if err != nil {
		slog.Error("load sample failed", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var total uint64
	for _, v := range sample {
		total += v
	}

	resp := experimentResponse{
		ID: row.ID,
		Params: experiment.Params{
			Trials:      row.Trials,
			Agents:      row.Agents,
			Steps:       row.Steps,
			Seed:        row.Seed,
			ExcludeSelf: row.ExcludeSelf,
		},
		Samples:     len(sample),
		TotalWealth: total,
		DurationMs:  row.DurationMs,
		Stored:      true,
		Histogram:   report.Tally(sample),
		Row:         &row,
	}
	if r.URL.Query().Get("values") == "1" {
		req := report.NewWealthRequest(sample)
		resp.Request = &req
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
