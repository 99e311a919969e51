package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	who     string
	now, dt float64
}

type fakeAgent struct {
	name  string
	log   *[]call
	fail  error
	calls int
}

func (a *fakeAgent) Update(now, dt float64) error {
	a.calls++
	*a.log = append(*a.log, call{who: a.name, now: now, dt: dt})
	return a.fail
}

type fakeWorld struct {
	log  *[]call
	fail error
}

func (w *fakeWorld) Update(now float64) error {
	*w.log = append(*w.log, call{who: "world", now: now})
	return w.fail
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(t *testing.T, step float64, opts ...Option) *Scheduler {
	t.Helper()
	s, err := NewScheduler(step, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return s
}

func TestNewSchedulerRejectsBadStep(t *testing.T) {
	for _, step := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := NewScheduler(step)
		assert.ErrorIs(t, err, ErrInvalidTimeStep, "step=%v", step)
	}

	s := newTestScheduler(t, 0.25)
	assert.Equal(t, 0.25, s.TimeStep())
	require.NoError(t, s.Tick())
	assert.Equal(t, 0.25, s.CurrentTime())
}

func TestTickOrdersWorldThenAgents(t *testing.T) {
	var log []call
	s := newTestScheduler(t, 0.5)
	a := &fakeAgent{name: "A", log: &log}
	b := &fakeAgent{name: "B", log: &log}
	s.RegisterAgent("a", a)
	s.RegisterAgent("b", b)
	s.SetWorld(&fakeWorld{log: &log})

	var ticks []Event
	s.RegisterEventListener(EventTick, func(e Event) error {
		log = append(log, call{who: "listener", now: e.Time})
		ticks = append(ticks, e)
		return nil
	})

	require.NoError(t, s.Tick())
	assert.Equal(t, []call{
		{who: "world", now: 0.5},
		{who: "A", now: 0.5, dt: 0.5},
		{who: "B", now: 0.5, dt: 0.5},
		{who: "listener", now: 0.5},
	}, log)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	require.Len(t, ticks, 1)
	assert.Equal(t, 0.5, ticks[0].Data["time"])
}

func TestAgentOrderIsRegistrationOrder(t *testing.T) {
	var log []call
	s := newTestScheduler(t, 1)
	for _, id := range []string{"zed", "amy", "mo", "bea"} {
		s.RegisterAgent(id, &fakeAgent{name: id, log: &log})
	}
	s.UnregisterAgent("mo")
	s.UnregisterAgent("nobody")
	replacement := &fakeAgent{name: "zed2", log: &log}
	s.RegisterAgent("zed", replacement)

	assert.Equal(t, []string{"zed", "amy", "bea"}, s.AgentIDs())
	require.NoError(t, s.Tick())

	var order []string
	for _, c := range log {
		order = append(order, c.who)
	}
	assert.Equal(t, []string{"zed2", "amy", "bea"}, order)

	got, ok := s.Agent("zed")
	require.True(t, ok)
	assert.Same(t, replacement, got)
	_, ok = s.Agent("mo")
	assert.False(t, ok)
}

func TestRunFiresLifecycleEvents(t *testing.T) {
	s := newTestScheduler(t, 1.0)
	var seen []string
	var times []float64
	for _, et := range []string{EventStart, EventTick, EventStop} {
		s.RegisterEventListener(et, func(e Event) error {
			seen = append(seen, e.Type)
			if e.Type == EventTick {
				times = append(times, e.Time)
			}
			return nil
		})
	}

	require.NoError(t, s.Run(context.Background(), 5, RunOptions{}))
	assert.Equal(t, 5.0, s.CurrentTime())
	assert.False(t, s.Running())
	assert.Equal(t, []string{EventStart, EventTick, EventTick, EventTick, EventTick, EventTick, EventStop}, seen)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, times)
}

func TestStartStopSuppressDuplicates(t *testing.T) {
	s := newTestScheduler(t, 1)
	r := NewRecorder(10)
	r.Attach(s, EventStart, EventStop)

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.True(t, s.Running())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.False(t, s.Running())

	events := r.Recent(0)
	require.Len(t, events, 2)
	assert.Equal(t, EventStart, events[0].Type)
	assert.Equal(t, EventStop, events[1].Type)
}

func TestListenerStopEndsRunEarly(t *testing.T) {
	s := newTestScheduler(t, 1)
	stops := 0
	s.RegisterEventListener(EventStop, func(Event) error { stops++; return nil })
	s.RegisterEventListener(EventTick, func(e Event) error {
		if e.Time >= 2 {
			return s.Stop()
		}
		return nil
	})

	require.NoError(t, s.Run(context.Background(), 10, RunOptions{}))
	assert.Equal(t, 2.0, s.CurrentTime())
	assert.Equal(t, 1, stops)
}

func TestTickErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")

	t.Run("world", func(t *testing.T) {
		var log []call
		s := newTestScheduler(t, 1)
		a := &fakeAgent{name: "A", log: &log}
		s.RegisterAgent("a", a)
		s.SetWorld(&fakeWorld{log: &log, fail: boom})
		err := s.Tick()
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 0, a.calls, "agents must not run after a failed world update")
	})

	t.Run("agent", func(t *testing.T) {
		var log []call
		s := newTestScheduler(t, 1)
		first := &fakeAgent{name: "A", log: &log, fail: boom}
		second := &fakeAgent{name: "B", log: &log}
		s.RegisterAgent("a", first)
		s.RegisterAgent("b", second)
		err := s.Tick()
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "agent a")
		assert.Equal(t, 0, second.calls)
	})

	t.Run("listener halts run", func(t *testing.T) {
		s := newTestScheduler(t, 1)
		stops := 0
		s.RegisterEventListener(EventStop, func(Event) error { stops++; return nil })
		s.RegisterEventListener(EventTick, func(e Event) error {
			if e.Time == 3 {
				return boom
			}
			return nil
		})
		err := s.Run(context.Background(), 10, RunOptions{})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 3.0, s.CurrentTime())
		assert.False(t, s.Running())
		assert.Equal(t, 0, stops)
	})
}

func TestTriggerEventOrderAndFailure(t *testing.T) {
	s := newTestScheduler(t, 1)
	var order []int
	boom := errors.New("listener failed")
	s.RegisterEventListener("custom", func(Event) error { order = append(order, 1); return nil })
	s.RegisterEventListener("custom", func(Event) error { order = append(order, 2); return boom })
	s.RegisterEventListener("custom", func(Event) error { order = append(order, 3); return nil })

	err := s.TriggerEvent("custom", map[string]any{"k": "v"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1, 2}, order)

	assert.NoError(t, s.TriggerEvent("nobody-listens", nil))
}

func TestRealTimePacing(t *testing.T) {
	clock := time.Unix(0, 0)
	var slept []time.Duration
	now := func() time.Time { return clock }
	sleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock = clock.Add(d)
		return nil
	}

	s := newTestScheduler(t, 0.5, WithClock(now, sleep))
	// Each tick consumes 100ms of wall time.
	s.RegisterEventListener(EventTick, func(Event) error {
		clock = clock.Add(100 * time.Millisecond)
		return nil
	})

	require.NoError(t, s.Run(context.Background(), 3, RunOptions{RealTime: true, Factor: 2}))
	assert.Equal(t, []time.Duration{150 * time.Millisecond, 150 * time.Millisecond, 150 * time.Millisecond}, slept)
}

func TestRealTimeNeverSleepsNegative(t *testing.T) {
	clock := time.Unix(0, 0)
	slept := 0
	s := newTestScheduler(t, 1, WithClock(
		func() time.Time { return clock },
		func(context.Context, time.Duration) error { slept++; return nil },
	))
	s.RegisterEventListener(EventTick, func(Event) error {
		clock = clock.Add(5 * time.Second)
		return nil
	})
	require.NoError(t, s.Run(context.Background(), 2, RunOptions{RealTime: true}))
	assert.Equal(t, 0, slept)
}

func TestRunRejectsBadFactor(t *testing.T) {
	s := newTestScheduler(t, 1)
	err := s.Run(context.Background(), 1, RunOptions{RealTime: true, Factor: -1})
	assert.ErrorIs(t, err, ErrInvalidRealTimeFactor)
	assert.False(t, s.Running())
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestScheduler(t, 1)
	stops := 0
	s.RegisterEventListener(EventStop, func(Event) error { stops++; return nil })
	s.RegisterEventListener(EventTick, func(e Event) error {
		if e.Time == 2 {
			cancel()
		}
		return nil
	})

	err := s.Run(ctx, 10, RunOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2.0, s.CurrentTime())
	assert.False(t, s.Running())
	assert.Equal(t, 1, stops)
}

func TestStartTimeResumesClock(t *testing.T) {
	s := newTestScheduler(t, 0.25, WithStartTime(10))
	require.NoError(t, s.Tick())
	assert.Equal(t, 10.25, s.CurrentTime())
}
