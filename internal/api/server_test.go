package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/psyche/internal/agents"
	"github.com/talgya/psyche/internal/engine"
	"github.com/talgya/psyche/internal/psyche"
	"github.com/talgya/psyche/internal/world"
)

func testCharacter(t *testing.T) *agents.Character {
	t.Helper()
	c, err := agents.FromArchetype("aria", "Aria", psyche.DefaultLibrary()[psyche.ArchHero])
	require.NoError(t, err)
	trait := c.Psyche.PersonalityTraits()[0]
	_, err = c.Psyche.AddMemory(psyche.Memory{Nodes: []string{trait.ID()}, Description: "The fire", Cornerstone: true, Salience: 1})
	require.NoError(t, err)
	_, err = c.Psyche.AddMemory(psyche.Memory{Nodes: []string{trait.ID()}, Description: "Breakfast", Salience: 0.1})
	require.NoError(t, err)
	_, err = c.Psyche.AddEmotion(psyche.Emotion{Nodes: []string{trait.ID()}, Emotion: "Resolve", Intensity: 0.7})
	require.NoError(t, err)
	_, err = c.Psyche.AddEmotion(psyche.Emotion{Nodes: []string{trait.ID()}, Emotion: "Boredom", Intensity: 0.05})
	require.NoError(t, err)
	return c
}

func testWorld(t *testing.T) *world.World {
	t.Helper()
	w := world.New()
	require.NoError(t, w.AddLocation(world.NewLocation("l1", "Square", world.Vec3{}, world.Area{Width: 10, Height: 10, Depth: 10})))
	require.NoError(t, w.AddEntity(world.NewEntity("aria", "Character", "Aria", world.Vec3{})))
	return w
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestUnpublishedServer(t *testing.T) {
	s := New(Options{})

	rec, body := get(t, s, "/api/v1/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["published"])

	rec, _ = get(t, s, "/api/v1/characters")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, body = get(t, s, "/api/v1/events")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, body["count"])
}

func TestCharacterEndpoints(t *testing.T) {
	s := New(Options{})
	s.Publish(BuildView(3, true, []*agents.Character{testCharacter(t)}, testWorld(t)))

	rec, body := get(t, s, "/api/v1/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["published"])
	assert.Equal(t, 3.0, body["time"])
	assert.Equal(t, 1.0, body["characters"])

	_, body = get(t, s, "/api/v1/characters")
	list := body["characters"].([]any)
	require.Len(t, list, 1)
	first := list[0].(map[string]any)
	assert.Equal(t, "aria", first["id"])
	assert.Equal(t, psyche.ArchHero, first["archetype"])
	assert.Equal(t, "Square", first["location"])

	rec, body = get(t, s, "/api/v1/characters/aria")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Aria", body["name"])
	assert.Len(t, body["personality"], 2)
	assert.Len(t, body["beliefs"], 1)

	_, body = get(t, s, "/api/v1/characters/aria/graph")
	assert.Equal(t, "psyche_aria", body["id"])
	assert.Len(t, body["edges"], 4)

	_, body = get(t, s, "/api/v1/characters/aria/emotions")
	assert.Len(t, body["emotions"], 1, "faint emotions are hidden")
	_, body = get(t, s, "/api/v1/characters/aria/emotions?all=true")
	assert.Len(t, body["emotions"], 2)

	_, body = get(t, s, "/api/v1/characters/aria/memories")
	assert.Len(t, body["memories"], 2)
	_, body = get(t, s, "/api/v1/characters/aria/memories?cornerstone=true")
	mems := body["memories"].([]any)
	require.Len(t, mems, 1)
	assert.Equal(t, "The fire", mems[0].(map[string]any)["description"])

	rec, body = get(t, s, "/api/v1/characters/nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"], "nobody")

	_, body = get(t, s, "/api/v1/world")
	assert.Len(t, body["entities"], 2)
}

func TestWorldMissing(t *testing.T) {
	s := New(Options{})
	s.Publish(BuildView(0, false, nil, nil))
	rec, _ := get(t, s, "/api/v1/world")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsEndpoint(t *testing.T) {
	rec := engine.NewRecorder(10)
	for i := 1; i <= 4; i++ {
		require.NoError(t, rec.Record(engine.Event{Type: engine.EventTick, Time: float64(i)}))
	}
	require.NoError(t, rec.Record(engine.Event{Type: engine.EventStop, Time: 4}))
	s := New(Options{Events: rec})

	_, body := get(t, s, "/api/v1/events?limit=2")
	events := body["events"].([]any)
	require.Len(t, events, 2)
	assert.Equal(t, 4.0, events[0].(map[string]any)["time"])
	assert.Equal(t, engine.EventStop, events[1].(map[string]any)["type"])

	_, body = get(t, s, "/api/v1/events?type=tick")
	assert.Equal(t, 4.0, body["count"])

	r, _ := get(t, s, "/api/v1/events?limit=zero")
	assert.Equal(t, http.StatusBadRequest, r.Code)
}

func TestEventsTypeFilterAppliesBeforeLimit(t *testing.T) {
	rec := engine.NewRecorder(100)
	require.NoError(t, rec.Record(engine.Event{Type: engine.EventStart, Time: 0}))
	for i := 1; i <= 20; i++ {
		require.NoError(t, rec.Record(engine.Event{Type: engine.EventTick, Time: float64(i)}))
	}
	require.NoError(t, rec.Record(engine.Event{Type: engine.EventStop, Time: 20}))
	s := New(Options{Events: rec})

	_, body := get(t, s, "/api/v1/events?type=simulation_start&limit=5")
	assert.Equal(t, 1.0, body["count"])
	events := body["events"].([]any)
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventStart, events[0].(map[string]any)["type"])

	_, body = get(t, s, "/api/v1/events?type=tick&limit=5")
	events = body["events"].([]any)
	require.Len(t, events, 5)
	assert.Equal(t, 16.0, events[0].(map[string]any)["time"], "keeps the last matches, oldest first")
	assert.Equal(t, 20.0, events[4].(map[string]any)["time"])

	_, body = get(t, s, "/api/v1/events?type=nothing")
	assert.Equal(t, 0.0, body["count"])
	assert.Empty(t, body["events"])
}

func TestAttachPublishesFromScheduler(t *testing.T) {
	sch, err := engine.NewScheduler(1)
	require.NoError(t, err)
	c := testCharacter(t)
	sch.RegisterAgent(c.ID, c)

	s := New(Options{})
	s.Attach(sch, 2, func() []*agents.Character { return []*agents.Character{c} }, nil)

	require.NoError(t, sch.Start())
	v := s.published.Load()
	require.NotNil(t, v)
	assert.True(t, v.Running)

	require.NoError(t, sch.Tick())
	assert.Equal(t, 0.0, s.published.Load().Time, "odd tick is skipped")
	require.NoError(t, sch.Tick())
	assert.Equal(t, 2.0, s.published.Load().Time)

	require.NoError(t, sch.Stop())
	assert.False(t, s.published.Load().Running)
}

func TestRateLimit(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "buckets are per client")
	assert.Equal(t, 61, rl.RetryAfter("1.2.3.4"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("1.2.3.4"), "window resets")

	now = now.Add(5 * time.Minute)
	rl.Allow("9.9.9.9")
	assert.Len(t, rl.buckets, 1, "stale buckets are dropped")
}

func TestRateLimitMiddleware(t *testing.T) {
	s := New(Options{RateLimit: 1})
	req := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		s.ServeHTTP(rec, r)
		return rec
	}
	assert.Equal(t, http.StatusOK, req().Code)
	limited := req()
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
}
