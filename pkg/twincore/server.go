// Package twincore provides the base HTTP server, flags, middleware chain
// and response helpers shared by the flowcheck twins.
package twincore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/bouvet-sqad/flowcheck/internal/logging"
)

// Config holds the settings common to all twins.
type Config struct {
	Port     int
	Latency  time.Duration
	FailRate float64
	SeedFile string
	Verbose  bool
	Name     string
}

// ParseFlags parses the common twin flags from args. PORT in the
// environment is used when --port is not given.
func ParseFlags(twinName string, args []string) (*Config, error) {
	cfg := &Config{Name: twinName}
	fs := pflag.NewFlagSet(twinName, pflag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", 0, "HTTP listen port (default: auto-assigned)")
	fs.DurationVar(&cfg.Latency, "latency", 0, "Base simulated latency")
	fs.Float64Var(&cfg.FailRate, "fail-rate", 0.0, "Random failure rate 0.0-1.0")
	fs.StringVar(&cfg.SeedFile, "seed-file", "", "Path to JSON fixture for initial state")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable request logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Port == 0 {
		if p := os.Getenv("PORT"); p != "" {
			if _, err := fmt.Sscanf(p, "%d", &cfg.Port); err != nil {
				return nil, fmt.Errorf("invalid PORT %q: %w", p, err)
			}
		}
	}
	if cfg.FailRate < 0 || cfg.FailRate > 1 {
		return nil, fmt.Errorf("--fail-rate must be between 0.0 and 1.0")
	}
	return cfg, nil
}

// Twin is the base server for a twin: a chi router with the common
// middleware and lifecycle handling.
type Twin struct {
	Config *Config
	Router *chi.Mux
	Logger *zap.Logger
	mw     *Middleware
	mu     sync.RWMutex // guards Config during runtime updates
}

// New creates a Twin. A nil logger gets a JSON logger on stdout at info,
// or debug when cfg.Verbose is set.
func New(cfg *Config, logger *zap.Logger) *Twin {
	if logger == nil {
		level := "info"
		if cfg.Verbose {
			level = "debug"
		}
		l, err := logging.New(logging.Config{Level: level, Format: "json", Output: "stdout"})
		if err != nil {
			l = zap.NewNop()
		}
		logger = l
	}
	logger = logger.With(zap.String("twin", cfg.Name))

	t := &Twin{
		Config: cfg,
		Router: chi.NewRouter(),
		Logger: logger,
	}
	t.mw = NewMiddleware(t.settings, logger)

	// Latency and failure middleware are always mounted; they act only when
	// their settings are non-zero, so runtime updates apply immediately.
	t.Router.Use(chimw.RequestID)
	t.Router.Use(chimw.RealIP)
	t.Router.Use(t.mw.CORS)
	t.Router.Use(t.mw.RequestLog)
	t.Router.Use(t.mw.LatencyInjection)
	t.Router.Use(t.mw.RandomFailure)
	return t
}

// Middleware returns the middleware for fault injection and request logs.
func (t *Twin) Middleware() *Middleware {
	return t.mw
}

func (t *Twin) settings() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return *t.Config
}

// GetConfig returns the runtime configuration as a map.
func (t *Twin) GetConfig() map[string]any {
	c := t.settings()
	return map[string]any{
		"name":      c.Name,
		"port":      c.Port,
		"latency":   c.Latency.String(),
		"fail_rate": c.FailRate,
		"verbose":   c.Verbose,
	}
}

// UpdateConfig applies latency, fail_rate and verbose updates. Every key is
// validated before any is applied.
func (t *Twin) UpdateConfig(updates map[string]any) error {
	var (
		latency  *time.Duration
		failRate *float64
		verbose  *bool
	)

	for k, v := range updates {
		switch k {
		case "latency":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("latency must be a duration string")
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("invalid latency duration: %w", err)
			}
			if d < 0 {
				return fmt.Errorf("latency must not be negative")
			}
			latency = &d
		case "fail_rate":
			f, ok := v.(float64)
			if !ok {
				return fmt.Errorf("fail_rate must be a number")
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("fail_rate must be between 0.0 and 1.0")
			}
			failRate = &f
		case "verbose":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("verbose must be a boolean")
			}
			verbose = &b
		case "name", "port":
			return fmt.Errorf("%s cannot be changed at runtime", k)
		default:
			return fmt.Errorf("unknown config key: %s", k)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if latency != nil {
		t.Config.Latency = *latency
	}
	if failRate != nil {
		t.Config.FailRate = *failRate
	}
	if verbose != nil {
		t.Config.Verbose = *verbose
	}
	return nil
}

// Serve listens on the configured port and blocks until ctx is done, then
// shuts down gracefully.
func (t *Twin) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", t.Config.Port))
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}

	srv := &http.Server{
		Handler:      t.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.Logger.Info("starting twin", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	t.Logger.Info("shutting down twin")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler so a Twin can back an httptest server.
func (t *Twin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.Router.ServeHTTP(w, r)
}

// Envelope is the response body shape of the Notes API family:
// {"success": ..., "status": ..., "message": ..., "data": ...}.
type Envelope struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes v as JSON with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Success writes a successful envelope.
func Success(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: true, Status: status, Message: message, Data: data})
}

// Error writes a failed envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Status: status, Message: message})
}
