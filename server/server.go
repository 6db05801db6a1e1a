package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"propsync/ingest"
	"propsync/provider"
	"propsync/ratelimit"
	"propsync/storage"
)

// Rate limit for the ingestion surface, per caller IP.
const (
	ingestMaxRequests  = 30
	ingestWindow       = time.Minute
	defaultRunListSize = 50
)

type Server struct {
	orch    *ingest.Orchestrator
	client  *provider.Client
	limiter *ratelimit.Limiter
	store   *storage.PostgresStore
}

func New(orch *ingest.Orchestrator, client *provider.Client, limiter *ratelimit.Limiter, store *storage.PostgresStore) *Server {
	return &Server{orch: orch, client: client, limiter: limiter, store: store}
}

// Router builds the HTTP surface: a single action-dispatch ingestion
// endpoint plus the run-log audit listing.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.rateLimit("ingest", ingestMaxRequests, ingestWindow)).
			Post("/ingest", s.handleIngest)
		r.Get("/runs", s.handleListRuns)
		r.Get("/healthz", s.handleHealthz)
	})

	return r
}

// rateLimit rejects callers over their window with a 429 and a Retry-After
// hint derived from the window reset time.
func (s *Server) rateLimit(fn string, max int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ratelimit.IPKey(fn, ratelimit.ClientIP(r))
			res := s.limiter.Check(r.Context(), key, max, window)

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				retryAfter := int(time.Until(res.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"success": false,
					"message": "too many requests",
					"resetAt": res.ResetAt.UTC().Format(time.RFC3339),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunListSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	runs, err := s.store.ListSyncRuns(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"runs":    runs,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
