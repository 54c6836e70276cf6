package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Probe checks one dependency. A failing required probe makes the service
// unhealthy; a failing optional probe only degrades it.
type Probe struct {
	Name     string
	Required bool
	Check    func(ctx context.Context) error
}

// SQLiteProbe pings the results database. Always required.
func SQLiteProbe(db *sql.DB) Probe {
	return Probe{Name: "sqlite", Required: true, Check: db.PingContext}
}

// RedisProbe pings the shared run-state store. Optional: without Redis the
// server still runs, only cross-instance locking is lost.
func RedisProbe(rdb *goredis.Client) Probe {
	return Probe{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }}
}

// DepStatus is the last probe result for one dependency.
type DepStatus struct {
	OK        bool      `json:"ok"`
	Required  bool      `json:"required"`
	LatencyMs float64   `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthStatus aggregates dependency probes, the broker circuit breaker
// and the last completed run.
type HealthStatus struct {
	mu sync.RWMutex

	probes        []Probe
	deps          map[string]DepStatus
	upstoxBreaker string
	lastRunAt     time.Time
	startedAt     time.Time
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		deps:          make(map[string]DepStatus),
		upstoxBreaker: "closed",
		startedAt:     time.Now(),
	}
}

// AddProbe registers p. It reports as failing until its first check runs.
func (h *HealthStatus) AddProbe(p Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, p)
	h.deps[p.Name] = DepStatus{Required: p.Required, Error: "not checked yet"}
}

func (h *HealthStatus) SetUpstoxBreaker(state string) {
	h.mu.Lock()
	h.upstoxBreaker = state
	h.mu.Unlock()
}

// UpstoxBreaker returns the last reported breaker state.
func (h *HealthStatus) UpstoxBreaker() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.upstoxBreaker
}

func (h *HealthStatus) SetLastRunAt(t time.Time) {
	h.mu.Lock()
	h.lastRunAt = t
	h.mu.Unlock()
}

// Dep returns the last result of the named probe.
func (h *HealthStatus) Dep(name string) (DepStatus, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	d, ok := h.deps[name]
	return d, ok
}

// CheckNow runs every probe once, each bounded by timeout.
func (h *HealthStatus) CheckNow(ctx context.Context, timeout time.Duration) {
	h.mu.RLock()
	probes := append([]Probe(nil), h.probes...)
	h.mu.RUnlock()

	for _, p := range probes {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		err := p.Check(pctx)
		cancel()

		d := DepStatus{
			OK:        err == nil,
			Required:  p.Required,
			LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
			CheckedAt: time.Now(),
		}
		if err != nil {
			d.Error = err.Error()
		}
		h.mu.Lock()
		h.deps[p.Name] = d
		h.mu.Unlock()
	}
}

// StartLivenessChecker probes now and then every interval until ctx ends.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, interval time.Duration) {
	h.CheckNow(ctx, 3*time.Second)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.CheckNow(ctx, 3*time.Second)
			}
		}
	}()
}

type healthReport struct {
	Status        string               `json:"status"`
	Uptime        string               `json:"uptime"`
	Dependencies  map[string]DepStatus `json:"dependencies"`
	UpstoxBreaker string               `json:"upstox_breaker"`
	LastRunAt     *time.Time           `json:"last_run_at,omitempty"`
}

// report classifies the service: unhealthy when a required probe fails,
// degraded when an optional probe fails or the broker breaker is not closed.
func (h *HealthStatus) report() (healthReport, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rep := healthReport{
		Status:        "healthy",
		Uptime:        time.Since(h.startedAt).Round(time.Second).String(),
		Dependencies:  make(map[string]DepStatus, len(h.deps)),
		UpstoxBreaker: h.upstoxBreaker,
	}
	if !h.lastRunAt.IsZero() {
		t := h.lastRunAt
		rep.LastRunAt = &t
	}

	code := http.StatusOK
	for name, d := range h.deps {
		rep.Dependencies[name] = d
		if d.OK {
			continue
		}
		if d.Required {
			rep.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		} else if rep.Status == "healthy" {
			rep.Status = "degraded"
		}
	}
	if rep.Status == "healthy" && h.upstoxBreaker != "closed" {
		rep.Status = "degraded"
	}
	return rep, code
}

// Err summarizes required-dependency failures, nil when none.
func (h *HealthStatus) Err() error {
	rep, _ := h.report()
	var errs []error
	for name, d := range rep.Dependencies {
		if d.Required && !d.OK {
			errs = append(errs, errors.New(name+": "+d.Error))
		}
	}
	return errors.Join(errs...)
}

// ServeHTTP reports health as JSON; 503 when unhealthy.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rep, code := h.report()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		log.Printf("[metrics] encode health: %v", err)
	}
}

// Server serves /metrics and /healthz on their own port.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server. gatherer defaults to
// prometheus.DefaultGatherer when nil.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Printf("[metrics] shutdown: %v", err)
	}
}
