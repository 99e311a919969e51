// Package engine provides the tick-based simulation scheduler.
// A tick is a strictly sequential pipeline: world, then agents in
// registration order, then listeners in registration order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Lifecycle event types.
const (
	EventTick  = "tick"
	EventStart = "simulation_start"
	EventStop  = "simulation_stop"
)

var (
	ErrInvalidTimeStep       = errors.New("time step must be a positive finite number")
	ErrInvalidRealTimeFactor = errors.New("real-time factor must be a positive finite number")
)

// Agent is anything that advances once per tick.
type Agent interface {
	Update(now, dt float64) error
}

// World is the optional shared environment, updated before agents.
type World interface {
	Update(now float64) error
}

// Event is a lifecycle notification delivered to listeners.
type Event struct {
	Type string         `json:"type"`
	Time float64        `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// Listener receives events synchronously. A returned error halts the run.
type Listener func(Event) error

// Scheduler owns the logical clock and the agent, world and listener
// registries. Single owner, single writer: call it from one goroutine.
type Scheduler struct {
	timeStep    float64
	currentTime float64
	running     bool

	agents     map[string]Agent
	agentOrder []string
	world      World
	listeners  map[string][]Listener

	logger *slog.Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock replaces the wall clock and sleeper used for real-time pacing.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(s *Scheduler) {
		s.now = now
		s.sleep = sleep
	}
}

// WithStartTime resumes the logical clock from a saved time.
func WithStartTime(t float64) Option {
	return func(s *Scheduler) { s.currentTime = t }
}

// NewScheduler creates a stopped scheduler advancing timeStep per tick.
func NewScheduler(timeStep float64, opts ...Option) (*Scheduler, error) {
	if !positiveFinite(timeStep) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimeStep, timeStep)
	}
	s := &Scheduler{
		timeStep:  timeStep,
		agents:    make(map[string]Agent),
		listeners: make(map[string][]Listener),
		logger:    slog.Default(),
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CurrentTime returns the logical time of the last tick.
func (s *Scheduler) CurrentTime() float64 { return s.currentTime }

// TimeStep returns the logical time added by each tick.
func (s *Scheduler) TimeStep() float64 { return s.timeStep }

// Running reports whether the scheduler is in the Running state.
func (s *Scheduler) Running() bool { return s.running }

// ── Lifecycle ─────────────────────────────────────────────────────────

// Start moves Stopped to Running and fires simulation_start.
// Calling Start while running does nothing and fires no event.
func (s *Scheduler) Start() error {
	if s.running {
		return nil
	}
	s.running = true
	s.logger.Info("simulation started", "time", s.currentTime, "agents", len(s.agentOrder))
	return s.TriggerEvent(EventStart, map[string]any{"time": s.currentTime})
}

// Stop moves Running to Stopped and fires simulation_stop.
// Calling Stop while stopped does nothing and fires no event.
func (s *Scheduler) Stop() error {
	if !s.running {
		return nil
	}
	s.running = false
	s.logger.Info("simulation stopped", "time", s.currentTime)
	return s.TriggerEvent(EventStop, map[string]any{"time": s.currentTime})
}

// ── Registries ────────────────────────────────────────────────────────

// RegisterAgent adds an agent. Re-registering an id replaces the agent but
// keeps its original position in the update order.
func (s *Scheduler) RegisterAgent(id string, a Agent) {
	if _, exists := s.agents[id]; !exists {
		s.agentOrder = append(s.agentOrder, id)
	}
	s.agents[id] = a
}

// UnregisterAgent removes an agent. Unknown ids are ignored.
func (s *Scheduler) UnregisterAgent(id string) {
	if _, exists := s.agents[id]; !exists {
		return
	}
	delete(s.agents, id)
	for i, v := range s.agentOrder {
		if v == id {
			s.agentOrder = append(s.agentOrder[:i], s.agentOrder[i+1:]...)
			break
		}
	}
}

// Agent looks up a registered agent.
func (s *Scheduler) Agent(id string) (Agent, bool) {
	a, ok := s.agents[id]
	return a, ok
}

// AgentIDs returns registered ids in update order.
func (s *Scheduler) AgentIDs() []string {
	return append([]string(nil), s.agentOrder...)
}

// SetWorld replaces the world. Nil clears it.
func (s *Scheduler) SetWorld(w World) { s.world = w }

// RegisterEventListener appends a listener for one event type.
func (s *Scheduler) RegisterEventListener(eventType string, l Listener) {
	s.listeners[eventType] = append(s.listeners[eventType], l)
}

// TriggerEvent calls every listener for eventType in registration order.
// The first listener error stops dispatch and is returned.
func (s *Scheduler) TriggerEvent(eventType string, data map[string]any) error {
	ls := s.listeners[eventType]
	if len(ls) == 0 {
		return nil
	}
	ev := Event{Type: eventType, Time: s.currentTime, Data: data}
	// Listeners registered during dispatch take effect from the next event.
	for i, l := range append([]Listener(nil), ls...) {
		if err := l(ev); err != nil {
			return fmt.Errorf("%s listener %d: %w", eventType, i, err)
		}
	}
	return nil
}

// ── Ticking ───────────────────────────────────────────────────────────

// Tick advances the clock by the time step, updates the world, then each agent,
// then fires a tick event. Any error aborts the rest of the tick.
func (s *Scheduler) Tick() error {
	s.currentTime += s.timeStep
	now := s.currentTime

	if s.world != nil {
		if err := s.world.Update(now); err != nil {
			return fmt.Errorf("world update at t=%g: %w", now, err)
		}
	}

	for _, id := range append([]string(nil), s.agentOrder...) {
		a, ok := s.agents[id]
		if !ok {
			continue
		}
		if err := a.Update(now, s.timeStep); err != nil {
			return fmt.Errorf("agent %s update at t=%g: %w", id, now, err)
		}
	}

	s.logger.Debug("tick", "time", now, "agents", len(s.agentOrder))
	return s.TriggerEvent(EventTick, map[string]any{"time": now})
}

// RunOptions controls pacing. One unit of logical time lasts one second of
// wall-clock time divided by Factor. A zero Factor means 1.
type RunOptions struct {
	RealTime bool
	Factor   float64
}

// Run starts the scheduler, ticks up to steps times, then stops it.
// A listener calling Stop ends the loop early. A failing tick leaves the
// scheduler stopped without a stop event and returns the error.
// Cancelling ctx stops the scheduler and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context, steps int, opts RunOptions) error {
	factor := opts.Factor
	if factor == 0 {
		factor = 1
	}
	if opts.RealTime && !positiveFinite(factor) {
		return fmt.Errorf("%w: %v", ErrInvalidRealTimeFactor, opts.Factor)
	}

	if err := s.Start(); err != nil {
		s.running = false
		return err
	}

	target := time.Duration(s.timeStep / factor * float64(time.Second))
	for i := 0; i < steps && s.running; i++ {
		if err := ctx.Err(); err != nil {
			return s.cancelled(err)
		}

		started := s.now()
		if err := s.Tick(); err != nil {
			s.running = false
			s.logger.Error("simulation halted", "time", s.currentTime, "error", err)
			return err
		}

		if opts.RealTime && s.running {
			if remaining := target - s.now().Sub(started); remaining > 0 {
				if err := s.sleep(ctx, remaining); err != nil {
					return s.cancelled(err)
				}
			}
		}
	}

	return s.Stop()
}

func (s *Scheduler) cancelled(cause error) error {
	if err := s.Stop(); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
