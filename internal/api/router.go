// Package api exposes the backtest trigger, run status and results over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"sma-vol-breakdown/internal/backtest"
	"sma-vol-breakdown/internal/model"
	"sma-vol-breakdown/internal/pipeline"
)

// Runner is the part of pipeline.Runner the API drives.
type Runner interface {
	Start(ctx context.Context) (string, error)
	Status(ctx context.Context) model.RunStatus
	LastSummary() (backtest.Summary, bool)
}

// OutcomeLoader reads persisted trade outcomes.
type OutcomeLoader interface {
	LoadOutcomes(ctx context.Context, table string) ([]model.TradeOutcome, error)
}

// Deps wires the handlers. Outcomes, Health and Events are optional.
type Deps struct {
	Runner       Runner
	Outcomes     OutcomeLoader
	ResultsTable string
	Health       http.Handler
	Events       http.Handler // WebSocket hub
}

type response struct {
	Status  string           `json:"status"`
	Message string           `json:"message"`
	RunID   string           `json:"run_id,omitempty"`
	Run     *model.RunStatus `json:"run,omitempty"`
}

type summaryResponse struct {
	Source  string           `json:"source"` // "store" or "last_run"
	Summary backtest.Summary `json:"summary"`
}

// NewRouter builds the HTTP routes.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()
	h := &handlers{d: d}

	r.HandleFunc("/start", h.start).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/status", h.status).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/summary", h.summary).Methods(http.MethodGet)
	if d.Health != nil {
		v1.Handle("/health", d.Health).Methods(http.MethodGet)
	} else {
		v1.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		}).Methods(http.MethodGet)
	}

	if d.Events != nil {
		r.Handle("/ws", d.Events)
	}
	r.Use(cors)
	return r
}

type handlers struct {
	d Deps
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	runID, err := h.d.Runner.Start(r.Context())
	switch {
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		log.Printf("[api] /start rejected: backtest already running")
		writeJSON(w, http.StatusConflict, response{
			Status:  "error",
			Message: "Backtest is already in progress.",
		})
	case err != nil:
		log.Printf("[api] /start failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, response{Status: "error", Message: err.Error()})
	default:
		log.Printf("[api] /start accepted run %s", runID)
		writeJSON(w, http.StatusAccepted, response{
			Status:  "success",
			Message: "Backtest started in the background. Check logs for progress.",
			RunID:   runID,
		})
	}
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	st := h.d.Runner.Status(r.Context())
	resp := response{Status: string(st.State), RunID: st.RunID, Run: &st}
	if st.State == model.RunStateRunning {
		resp.Message = "A backtest is currently in progress."
	} else {
		resp.Status = string(model.RunStateIdle)
		resp.Message = "No backtest is running."
	}
	writeJSON(w, http.StatusOK, resp)
}

// summary prefers the persisted results table and falls back to the last
// run finished by this process.
func (h *handlers) summary(w http.ResponseWriter, r *http.Request) {
	if h.d.Outcomes != nil {
		outcomes, err := h.d.Outcomes.LoadOutcomes(r.Context(), h.d.ResultsTable)
		if err == nil {
			writeJSON(w, http.StatusOK, summaryResponse{Source: "store", Summary: backtest.Summarize(outcomes)})
			return
		}
		log.Printf("[api] load outcomes from %s: %v", h.d.ResultsTable, err)
	}

	if s, ok := h.d.Runner.LastSummary(); ok {
		writeJSON(w, http.StatusOK, summaryResponse{Source: "last_run", Summary: s})
		return
	}
	writeJSON(w, http.StatusNotFound, response{Status: "error", Message: "No backtest results available."})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		next.ServeHTTP(w, r)
	})
}
