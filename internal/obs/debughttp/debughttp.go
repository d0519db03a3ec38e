// Package debughttp serves the admin daemon's operational side-channel:
// health probes, Prometheus metrics and pprof over a small chi router. The
// admin RPC surface itself stays on gRPC; nothing here carries application
// traffic.
package debughttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/pprof"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tiiuae/ghaf-givc/internal/identity/devtoken"
	"github.com/tiiuae/ghaf-givc/internal/obs/logging"
)

// HealthReport is the /healthz response body: the admin daemon's own vital
// signs rather than a generic check list.
type HealthReport struct {
	Status            string  `json:"status"` // starting | healthy | degraded
	Version           string  `json:"version,omitempty"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	RegistryEntries   int     `json:"registry_entries"`
	SupervisorTickAge float64 `json:"supervisor_tick_age_seconds,omitempty"`
	SupervisorStarted bool    `json:"supervisor_started"`
}

// Health reports the admin daemon's liveness: whether the RPC surface is up,
// how many units are registered, and how stale the supervisor's last pass
// is. A tick older than StaleAfter means the supervision loop is wedged and
// the daemon reports degraded.
type Health struct {
	version    string
	started    time.Time
	staleAfter time.Duration

	registryCount func() int
	lastTick      func() time.Time

	mu    sync.Mutex
	ready bool
}

// NewHealth builds the daemon's health source. registryCount and lastTick
// may be nil (the corresponding fields then report their zero values);
// staleAfter <= 0 disables the wedged-supervisor check.
func NewHealth(version string, registryCount func() int, lastTick func() time.Time, staleAfter time.Duration) *Health {
	return &Health{
		version:       version,
		started:       time.Now(),
		staleAfter:    staleAfter,
		registryCount: registryCount,
		lastTick:      lastTick,
		ready:         true,
	}
}

// SetReady flips the RPC-surface readiness flag; the daemon clears it while
// shutting down so load balancers stop routing early.
func (h *Health) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// Report assembles the current HealthReport.
func (h *Health) Report() HealthReport {
	h.mu.Lock()
	ready := h.ready
	h.mu.Unlock()

	report := HealthReport{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: time.Since(h.started).Seconds(),
	}
	if !ready {
		report.Status = "starting"
	}
	if h.registryCount != nil {
		report.RegistryEntries = h.registryCount()
	}
	if h.lastTick != nil {
		if last := h.lastTick(); !last.IsZero() {
			report.SupervisorStarted = true
			report.SupervisorTickAge = time.Since(last).Seconds()
			if h.staleAfter > 0 && time.Since(last) > h.staleAfter {
				report.Status = "degraded"
			}
		}
	}
	return report
}

// Handler serves the health report, 503 unless healthy.
func (h *Health) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		report := h.Report()
		w.Header().Set("Content-Type", "application/json")
		if report.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}

// RuntimeStats reports Go runtime statistics for the /debug/stats endpoint.
func RuntimeStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
		"alloc_mb":   m.Alloc / 1024 / 1024,
		"sys_mb":     m.Sys / 1024 / 1024,
		"num_gc":     m.NumGC,
		"go_version": runtime.Version(),
		"num_cpu":    runtime.NumCPU(),
	}
}

// Recovery converts handler panics into 500 responses with a logged stack.
func Recovery(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.WithFields(map[string]interface{}{
						"panic":  fmt.Sprintf("%v", err),
						"stack":  string(debug.Stack()),
						"path":   r.URL.Path,
						"method": r.Method,
					}).Error("panic recovered")
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// BearerAuth gates every request on a devtoken bearer token. NewRouter
// installs it only when Config.TokenSecret is set; without a secret the
// router serves every request ungated.
func BearerAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if _, err := devtoken.Verify(secret, token); err != nil {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Config tunes the debug listener.
type Config struct {
	Addr        string
	Version     string
	Logger      *logging.Logger
	Health      *Health
	Metrics     bool
	TokenSecret []byte       // non-nil enables the devtoken gate
	Limiter     *RateLimiter // nil disables rate limiting
}

// NewRouter assembles the side-channel routes.
func NewRouter(cfg Config) chi.Router {
	if cfg.Health == nil {
		cfg.Health = NewHealth(cfg.Version, nil, nil, 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	r := chi.NewRouter()
	r.Use(Recovery(cfg.Logger))
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.Middleware())
	}
	if cfg.TokenSecret != nil {
		r.Use(BearerAuth(cfg.TokenSecret))
	}

	r.Get("/healthz", cfg.Health.Handler())
	r.Get("/debug/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(RuntimeStats())
	})
	if cfg.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.HandleFunc("/debug/pprof/", pprof.Index)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return r
}

// Serve runs the debug listener until ctx is cancelled, then shuts it down
// with a short drain deadline.
func Serve(ctx context.Context, cfg Config) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
