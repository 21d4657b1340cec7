package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"iplog/internal/api/dto"
	"iplog/internal/app/version"
	"iplog/internal/config"
	"iplog/internal/domain"
	"iplog/internal/metrics"
)

type IPService interface {
	AddIP(ctx context.Context, ip string) (domain.IPRecord, bool, error)
	CheckIP(ctx context.Context, ip string) (*domain.IPRecord, error)
	ListIPs(ctx context.Context) ([]dto.IPRecordWithExpiry, error)
	DeleteIP(ctx context.Context, id uint64) (bool, error)
	ClearAll(ctx context.Context) (int64, error)
}

type SettingsService interface {
	Timeout(ctx context.Context) (int, error)
	SetTimeout(ctx context.Context, seconds int) error
	AutoCleanup(ctx context.Context) (config.AutoCleanup, error)
	SetAutoCleanup(ctx context.Context, enabled bool, interval int) error
}

type SweepScheduler interface {
	Restart(ctx context.Context)
	NextSweepTimestamp() time.Time
}

// Server maps the IP log operations onto JSON routes under /api.
type Server struct {
	ips       IPService
	settings  SettingsService
	scheduler SweepScheduler
	staticDir string
	now       func() time.Time
}

type Option func(*Server)

// WithStaticDir serves a built frontend from dir for every non-API path,
// falling back to index.html.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func New(ips IPService, settings SettingsService, scheduler SweepScheduler, opts ...Option) *Server {
	s := &Server{
		ips:       ips,
		settings:  settings,
		scheduler: scheduler,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, dto.StatusResponse{Success: false, Message: msg})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) Handler() http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /api/ip/add", s.addIP)
	router.HandleFunc("GET /api/ip/check", s.checkIP)
	router.HandleFunc("GET /api/ip/list", s.listIPs)
	router.HandleFunc("DELETE /api/ip/delete/{id}", s.deleteIP)
	router.HandleFunc("DELETE /api/ip/clear", s.clearIPs)

	router.HandleFunc("GET /api/ip/timeout", s.getTimeout)
	router.HandleFunc("GET /api/ip/set", s.setTimeout)
	router.HandleFunc("GET /api/ip/auto-cleanup", s.getAutoCleanup)
	router.HandleFunc("POST /api/ip/auto-cleanup", s.setAutoCleanup)
	router.HandleFunc("GET /api/ip/next-cleanup", s.nextCleanup)

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dto.StatusResponse{Success: true, Message: "ok"})
	})
	router.HandleFunc("GET /api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, version.Get())
	})
	router.Handle("GET /metrics", promhttp.HandlerFor(metrics.DefaultGatherer, promhttp.HandlerOpts{}))

	router.HandleFunc("/api/", apiNotFound)

	if s.staticDir != "" {
		router.HandleFunc("/", s.serveStatic)
		log.Debugf("Frontend assets served from %s", s.staticDir)
	} else {
		router.HandleFunc("/", apiNotFound)
	}

	return enableCORS(router)
}

func apiNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "API not found"})
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		apiNotFound(w, r)
		return
	}
	path := filepath.Join(s.staticDir, filepath.Clean("/"+r.URL.Path))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		http.ServeFile(w, r, path)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.staticDir, "index.html"))
}
