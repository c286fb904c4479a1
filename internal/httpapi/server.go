// Package httpapi serves the routine quest REST API under /api/v1.
//
// Every /api/v1 route requires a bearer access token. Handlers return
// errors instead of writing failures themselves; writeError maps the
// store, domain and resequencer sentinels to status codes in one place.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/HendryAvila/routine-quest/internal/auth"
	"github.com/HendryAvila/routine-quest/internal/routine"
	"github.com/HendryAvila/routine-quest/internal/store"
)

// Store is the persistence the API needs. *store.Store satisfies it.
type Store interface {
	Ping(ctx context.Context) error

	CreateRoutine(ctx context.Context, userID int64, p routine.NewRoutineParams) (*routine.Routine, error)
	ListRoutines(ctx context.Context, userID int64, opts store.ListOptions) ([]routine.Routine, error)
	GetRoutine(ctx context.Context, userID, routineID int64) (*routine.Routine, error)
	UpdateRoutine(ctx context.Context, userID, routineID int64, p routine.UpdateRoutineParams) (*routine.Routine, error)
	DeleteRoutine(ctx context.Context, userID, routineID int64) error
	ToggleActive(ctx context.Context, userID, routineID int64) (bool, error)
	ToggleTodayDisplay(ctx context.Context, userID, routineID int64) (bool, error)
	RoutineStats(ctx context.Context, userID, routineID int64) (*routine.Stats, error)

	AddStep(ctx context.Context, userID, routineID int64, p routine.NewStepParams) (*routine.Step, error)
	UpdateStep(ctx context.Context, userID, routineID, stepID int64, p routine.UpdateStepParams) (*routine.Step, error)
	DeleteStep(ctx context.Context, userID, routineID, stepID int64) error
	ReorderStep(ctx context.Context, userID, routineID, stepID int64, newPosition, expectedVersion int) (*store.ReorderResult, error)
}

// Options configures a Server.
type Options struct {
	CORSOrigins []string
	Version     string
}

// Server is the REST API.
type Server struct {
	store    Store
	verifier *auth.Verifier
	logger   *slog.Logger
	opts     Options
}

// New creates a Server.
func New(st Store, verifier *auth.Verifier, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: st, verifier: verifier, logger: logger, opts: opts}
}

// Handler returns the fully wrapped API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /health", s.handle(s.health))

	api := func(pattern string, h handlerFunc) {
		mux.Handle(pattern, s.authenticate(s.handle(h)))
	}

	api("GET /api/v1/routines", s.listRoutines)
	api("POST /api/v1/routines", s.createRoutine)
	api("GET /api/v1/routines/{id}", s.getRoutine)
	api("PUT /api/v1/routines/{id}", s.updateRoutine)
	api("DELETE /api/v1/routines/{id}", s.deleteRoutine)
	api("PATCH /api/v1/routines/{id}/toggle", s.toggleRoutine)
	api("PATCH /api/v1/routines/{id}/today-display", s.toggleTodayDisplay)
	api("GET /api/v1/routines/{id}/stats", s.routineStats)

	api("POST /api/v1/routines/{id}/steps", s.addStep)
	api("PUT /api/v1/routines/{id}/steps/{step_id}", s.updateStep)
	api("DELETE /api/v1/routines/{id}/steps/{step_id}", s.deleteStep)
	api("PATCH /api/v1/routines/{id}/steps/{step_id}/reorder", s.reorderStep)

	return s.requestID(s.accessLog(s.recoverPanics(s.newCORS().Handler(mux))))
}

// NewHTTPServer wraps Handler in an *http.Server listening on addr.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "If-Match", headerRequestID},
		ExposedHeaders:   []string{headerRequestID, "ETag"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	})
}

// ─── Middleware ──────────────────────────────────────────────────────────────

const headerRequestID = "X-Request-ID"

type ctxKey string

const requestIDKey ctxKey = "request_id"

// requestID propagates the caller's X-Request-ID or assigns a new one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.LogAttrs(r.Context(), level, "request",
			slog.String("request_id", requestIDFrom(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// recoverPanics turns a handler panic into the generic 500 response.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("panic serving request",
					"request_id", requestIDFrom(r.Context()),
					"path", r.URL.Path,
					"panic", v,
				)
				writeInternal(w, r)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate verifies the bearer token and stores the identity in the
// request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.verifier.Verify(auth.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			s.logger.Debug("rejected token", "request_id", requestIDFrom(r.Context()), "error", err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="routinequest"`)
			writeJSON(w, http.StatusUnauthorized, errorBody{Detail: "Could not validate credentials"})
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}
