package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/claude/trainaspower/internal/models"
	"github.com/claude/trainaspower/internal/upload"
	"github.com/claude/trainaspower/internal/workout"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options are the conversion settings applied to uploaded workouts.
type Options struct {
	Adjust   models.PowerAdjust
	PaceOnly bool
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	state  *upload.StateDB
	power  workout.PowerSource
	opts   Options
	log    *slog.Logger
	apiKey string
	router chi.Router
	now    func() time.Time

	mu       sync.Mutex
	powerDay string
}

// New creates a new Server with all routes configured.
func New(state *upload.StateDB, power workout.PowerSource, opts Options, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		state:  state,
		power:  power,
		opts:   opts,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
		now:    time.Now,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(CORS)

	s.router.Get("/api/v1/health", s.handleHealth)

	// Conversion calls Stryd on the caller's behalf (API key required)
	s.router.Route("/api/v1/convert", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/", s.handleConvert)
	})

	// Read-only sync state (no auth, tsnet handles access)
	s.router.Get("/api/v1/workouts", s.handleListWorkouts)
	s.router.Get("/api/v1/workouts/{id}", s.handleGetWorkout)
	s.router.Get("/api/v1/stats", s.handleStats)
}

// refreshPower drops cached Stryd values on the first conversion of each
// day, so a long-running server follows critical power updates.
func (s *Server) refreshPower() {
	r, ok := s.power.(workout.Resetter)
	if !ok {
		return
	}
	day := s.now().Format("2006-01-02")
	s.mu.Lock()
	defer s.mu.Unlock()
	if day == s.powerDay {
		return
	}
	if s.powerDay != "" {
		r.Reset()
		s.log.Info("reset stryd cache", "day", day)
	}
	s.powerDay = day
}
