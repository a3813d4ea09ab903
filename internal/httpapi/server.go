package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeprobe/internal/aggregate"
	"github.com/hamed0406/uptimeprobe/internal/domain"
	apimw "github.com/hamed0406/uptimeprobe/internal/httpapi/middleware"
)

// Sites is the registry surface the API drives.
type Sites interface {
	Create(ctx context.Context, in domain.SiteInput) (domain.Site, error)
	Get(ctx context.Context, id domain.SiteID) (domain.Site, error)
	List(ctx context.Context) ([]domain.Site, error)
	Update(ctx context.Context, id domain.SiteID, patch domain.SitePatch) (domain.Site, error)
	Delete(ctx context.Context, id domain.SiteID) error
	SetActiveForAll(ctx context.Context, active bool) (int, error)
}

// Stats answers read-side queries over recorded checks.
type Stats interface {
	Stats(ctx context.Context, id domain.SiteID, windowDays int) (domain.AggregateReport, error)
	Recent(ctx context.Context, id domain.SiteID, limit int, status domain.Status) ([]domain.CheckResult, error)
}

type Server struct {
	Logger *zap.Logger
	Sites  Sites
	Stats  Stats
}

func NewServer(l *zap.Logger, sites Sites, stats Stats) *Server {
	return &Server{Logger: l, Sites: sites, Stats: stats}
}

type RouterOptions struct {
	Keys           apimw.Keys
	AllowedOrigins []string
	PublicRPM      int
	PublicBurst    int
	AdminRPM       int
	AdminBurst     int
}

const defaultStatsDays = 7

func (s *Server) Router(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.accessLog)
	r.Use(corsHandler(opts.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/sites", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(opts.PublicRPM, opts.PublicBurst))
			r.Use(apimw.RequireAny(opts.Keys))
			r.Get("/", s.handleListSites)
			r.Get("/{id}", s.handleGetSite)
			r.Get("/{id}/stats", s.handleStats)
			r.Get("/{id}/checks", s.handleChecks)
		})
		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(opts.AdminRPM, opts.AdminBurst))
			r.Use(apimw.RequireAdmin(opts.Keys))
			r.Post("/", s.handleCreateSite)
			r.Post("/start-all", s.handleSetActiveForAll(true))
			r.Post("/stop-all", s.handleSetActiveForAll(false))
			r.Patch("/{id}", s.handleUpdateSite)
			r.Delete("/{id}", s.handleDeleteSite)
		})
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.Sites.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sites == nil {
		sites = []domain.Site{}
	}
	writeJSON(w, http.StatusOK, sites)
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	site, err := s.Sites.Get(r.Context(), siteID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	var in domain.SiteInput
	if err := decode(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad payload"})
		return
	}
	site, err := s.Sites.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, site)
}

func (s *Server) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	var patch domain.SitePatch
	if err := decode(w, r, &patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad payload"})
		return
	}
	site, err := s.Sites.Update(r.Context(), siteID(r), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	if err := s.Sites.Delete(r.Context(), siteID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetActiveForAll(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.Sites.SetActiveForAll(r.Context(), active)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"affected": n})
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	days := defaultStatsDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "days must be an integer"})
			return
		}
		days = n
	}
	rep, err := s.Stats.Stats(r.Context(), siteID(r), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	limit := aggregate.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	status := domain.Status(r.URL.Query().Get("status"))
	out, err := s.Stats.Recent(r.Context(), siteID(r), limit, status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case domain.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		s.Logger.Error("http_internal_error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func siteID(r *http.Request) domain.SiteID {
	return domain.SiteID(chi.URLParam(r, "id"))
}
