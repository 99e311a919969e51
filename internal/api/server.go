// Package api serves a read-only JSON view of the running simulation.
// The scheduler goroutine publishes immutable Views; handlers never touch
// live psyches or the world.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/talgya/psyche/internal/agents"
	"github.com/talgya/psyche/internal/engine"
	"github.com/talgya/psyche/internal/psyche"
	"github.com/talgya/psyche/internal/world"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// EventSource supplies recent scheduler events, oldest first.
type EventSource interface {
	Recent(n int) []engine.Event
}

// Options configure a Server.
type Options struct {
	Events EventSource
	// RateLimit is requests per minute per client. Zero disables limiting.
	RateLimit int
	Logger    *slog.Logger
}

// Server is the observation HTTP API.
type Server struct {
	router    chi.Router
	published atomic.Pointer[View]
	events    EventSource
	logger    *slog.Logger
	started   time.Time
	rateLimit int
}

// New creates a Server with no published view yet.
func New(opts Options) *Server {
	s := &Server{
		events:    opts.Events,
		logger:    opts.Logger,
		started:   time.Now(),
		rateLimit: opts.RateLimit,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Publish replaces the view served to clients. Safe from any goroutine.
func (s *Server) Publish(v *View) {
	s.published.Store(v)
}

// Attach publishes a fresh view on simulation start and stop and on every
// every-th tick. chars is called on the scheduler goroutine. w may be nil.
func (s *Server) Attach(sch *engine.Scheduler, every int, chars func() []*agents.Character, w *world.World) {
	if every < 1 {
		every = 1
	}
	ticks := 0
	publish := func(e engine.Event) error {
		s.Publish(BuildView(e.Time, sch.Running(), chars(), w))
		return nil
	}
	sch.RegisterEventListener(engine.EventStart, publish)
	sch.RegisterEventListener(engine.EventStop, publish)
	sch.RegisterEventListener(engine.EventTick, func(e engine.Event) error {
		ticks++
		if ticks%every != 0 {
			return nil
		}
		return publish(e)
	})
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	if s.rateLimit > 0 {
		r.Use(RateLimit(NewRateLimiter(s.rateLimit, time.Minute)))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(s.requireView)
			r.Get("/world", s.handleWorld)
			r.Get("/characters", s.handleCharacters)
			r.Route("/characters/{id}", func(r chi.Router) {
				r.Get("/", s.handleCharacter)
				r.Get("/graph", s.handleGraph)
				r.Get("/emotions", s.handleEmotions)
				r.Get("/memories", s.handleMemories)
			})
		})
	})

	s.router = r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// requireView answers 503 until the first view is published.
func (s *Server) requireView(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.published.Load() == nil {
			writeError(w, http.StatusServiceUnavailable, "simulation state not yet available")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"uptime":    time.Since(s.started).Seconds(),
		"published": false,
	}
	if v := s.published.Load(); v != nil {
		status["published"] = true
		status["time"] = v.Time
		status["running"] = v.Running
		status["characters"] = len(v.Characters)
		if v.World != nil {
			status["entities"] = len(v.World.Entities)
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}
	events := []engine.Event{}
	if s.events != nil {
		events = recentOfType(s.events, r.URL.Query().Get("type"), limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// recentOfType returns the last limit events of type t, oldest first.
// An empty t matches every type.
func recentOfType(src EventSource, t string, limit int) []engine.Event {
	if t == "" {
		return append([]engine.Event{}, src.Recent(limit)...)
	}
	all := src.Recent(0)
	out := []engine.Event{}
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if all[i].Type == t {
			out = append(out, all[i])
		}
	}
	slices.Reverse(out)
	return out
}

func (s *Server) handleWorld(w http.ResponseWriter, r *http.Request) {
	v := s.published.Load()
	if v.World == nil {
		writeError(w, http.StatusNotFound, "no world attached")
		return
	}
	writeJSON(w, http.StatusOK, v.World)
}

func (s *Server) handleCharacters(w http.ResponseWriter, r *http.Request) {
	v := s.published.Load()
	out := make([]CharacterSummary, 0, len(v.Characters))
	for _, c := range v.Characters {
		out = append(out, c.Summary)
	}
	writeJSON(w, http.StatusOK, map[string]any{"time": v.Time, "characters": out})
}

// character resolves {id} or writes a 404.
func (s *Server) character(w http.ResponseWriter, r *http.Request) (*CharacterView, bool) {
	id := chi.URLParam(r, "id")
	c, ok := s.published.Load().Character(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown character "+id)
		return nil, false
	}
	return c, true
}

func (s *Server) handleCharacter(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.character(w, r); ok {
		writeJSON(w, http.StatusOK, c.Detail)
	}
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.character(w, r); ok {
		writeJSON(w, http.StatusOK, c.Graph)
	}
}

// handleEmotions lists emotions above the significance threshold, or all
// of them with ?all=true.
func (s *Server) handleEmotions(w http.ResponseWriter, r *http.Request) {
	c, ok := s.character(w, r)
	if !ok {
		return
	}
	all := r.URL.Query().Get("all") == "true"
	out := make([]EmotionView, 0, len(c.Emotions))
	for _, e := range c.Emotions {
		if all || e.Intensity > psyche.SignificanceThreshold {
			out = append(out, e)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"character": c.Summary.ID, "emotions": out})
}

// handleMemories lists memories, only cornerstones with ?cornerstone=true.
func (s *Server) handleMemories(w http.ResponseWriter, r *http.Request) {
	c, ok := s.character(w, r)
	if !ok {
		return
	}
	onlyCore := r.URL.Query().Get("cornerstone") == "true"
	out := make([]MemoryView, 0, len(c.Memories))
	for _, m := range c.Memories {
		if !onlyCore || m.Cornerstone {
			out = append(out, m)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"character": c.Summary.ID, "memories": out})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
