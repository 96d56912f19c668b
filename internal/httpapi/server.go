package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	apimw "github.com/hamed0406/sitewatch/internal/httpapi/middleware"
	"github.com/hamed0406/sitewatch/internal/registry"
	"github.com/hamed0406/sitewatch/internal/repo"
	"github.com/hamed0406/sitewatch/internal/status"
)

type Server struct {
	Logger   *zap.Logger
	Registry *registry.Registry
	Status   *status.Store
	Downtime repo.DowntimeLog
	// History backs /api/uptime. Nil reports every target as fully up.
	History repo.StatusHistory
	// AdminLimit applies to the admin write path.
	AdminLimit apimw.RateLimitOptions
	Now        func() time.Time
}

func NewServer(l *zap.Logger, reg *registry.Registry, st *status.Store, dl repo.DowntimeLog) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{
		Logger:   l,
		Registry: reg,
		Status:   st,
		Downtime: dl,
		Now:      time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/downtime-log", s.handleDowntimeLog)
	r.Get("/api/uptime", s.handleUptime)

	r.With(apimw.RateLimit(s.AdminLimit)).Post("/admin", s.handleAdminUpsert)
	r.With(apimw.RequireSecret(s.Registry)).Get("/api/admin/targets", s.handleAdminList)

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
