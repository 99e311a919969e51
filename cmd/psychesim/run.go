package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/psyche/internal/agents"
	"github.com/talgya/psyche/internal/api"
	"github.com/talgya/psyche/internal/config"
	"github.com/talgya/psyche/internal/engine"
	"github.com/talgya/psyche/internal/persistence"
	"github.com/talgya/psyche/internal/psyche"
	"github.com/talgya/psyche/internal/world"
)

var (
	runSteps    int
	runRealTime bool
	runFactor   float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation, resuming any saved state",
	RunE:  runSimulation,
}

func init() {
	runCmd.Flags().IntVar(&runSteps, "steps", 0, "ticks to run, 0 runs until interrupted (overrides simulation.steps)")
	runCmd.Flags().BoolVar(&runRealTime, "real-time", false, "pace ticks against the wall clock")
	runCmd.Flags().Float64Var(&runFactor, "factor", 1, "real-time speed-up factor")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	sim := cfg.Simulation
	if cmd.Flags().Changed("steps") {
		sim.Steps = runSteps
	}
	if cmd.Flags().Changed("real-time") {
		sim.RealTime = runRealTime
	}
	if cmd.Flags().Changed("factor") {
		sim.RealTimeFactor = runFactor
	}
	if sim.Steps < 0 {
		return fmt.Errorf("steps must be at least 0, got %d", sim.Steps)
	}

	// ── Database ──────────────────────────────────────────────────────
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	lib, err := psyche.LoadLibrary(cfg.Psyche.ArchetypesFile)
	if err != nil {
		return err
	}

	// ── Load or create state ─────────────────────────────────────────
	startTime, resumed, err := db.CurrentTime()
	if err != nil {
		return fmt.Errorf("read saved time: %w", err)
	}
	chars, err := loadCharacters(db, lib)
	if err != nil {
		return err
	}
	w, err := loadWorld(db, chars)
	if err != nil {
		return err
	}
	wireCognition(chars, w)

	// ── Scheduler ─────────────────────────────────────────────────────
	sch, err := engine.NewScheduler(sim.TimeStep, engine.WithStartTime(startTime))
	if err != nil {
		return err
	}
	for _, c := range chars {
		sch.RegisterAgent(c.ID, c)
	}
	if w != nil {
		sch.SetWorld(w)
	}
	rec := engine.NewRecorder(engine.DefaultRecorderCapacity)
	rec.Attach(sch)

	warnDropped := dropWarner(rec)
	save := func() error {
		warnDropped()
		return db.SaveState(persistence.State{
			Time:       sch.CurrentTime(),
			Characters: chars,
			World:      w,
			Events:     rec.Drain(),
		})
	}
	if sim.SaveEvery > 0 {
		everyTicks(sch, sim.SaveEvery, func() {
			// A failed save is logged and the run continues.
			if err := save(); err != nil {
				slog.Error("periodic save failed", "error", err)
			}
		})
	} else {
		flushEvents(sch, db, rec, eventFlushEvery, warnDropped)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	httpServer := startAPI(sch, rec, chars, w)

	// ── Run ───────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	steps := sim.Steps
	if steps == 0 {
		steps = math.MaxInt
	}
	slog.Info("starting simulation",
		"characters", len(chars),
		"resumed", resumed,
		"time", startTime,
		"steps", sim.Steps,
		"real_time", sim.RealTime,
	)
	runErr := sch.Run(ctx, steps, engine.RunOptions{RealTime: sim.RealTime, Factor: sim.RealTimeFactor})
	if errors.Is(runErr, context.Canceled) {
		slog.Info("interrupted, shutting down")
		runErr = nil
	}

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP shutdown", "error", err)
		}
	}

	// Final save on shutdown.
	if err := save(); err != nil {
		return errors.Join(runErr, fmt.Errorf("final save: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Simulation stopped at t=%g. State saved to %s.\n", sch.CurrentTime(), cfg.Database.Path)
	return runErr
}

// eventFlushEvery is how many ticks pass between event writes when
// periodic saves are off.
const eventFlushEvery = 100

// everyTicks calls fn on every n-th tick of sch.
func everyTicks(sch *engine.Scheduler, n int, fn func()) {
	ticks := 0
	sch.RegisterEventListener(engine.EventTick, func(engine.Event) error {
		ticks++
		if ticks%n == 0 {
			fn()
		}
		return nil
	})
}

// flushEvents writes recorded events to db every n ticks without saving
// psyches or the clock. Register it after rec is attached so each flush
// includes the tick that triggered it.
func flushEvents(sch *engine.Scheduler, db *persistence.DB, rec *engine.Recorder, n int, warnDropped func()) {
	everyTicks(sch, n, func() {
		warnDropped()
		if err := db.SaveEvents(rec.Drain()); err != nil {
			slog.Error("event flush failed", "error", err)
		}
	})
}

// dropWarner returns a func that logs how many events rec has discarded
// since its previous call.
func dropWarner(rec *engine.Recorder) func() {
	reported := 0
	return func() {
		if n := rec.Dropped(); n > reported {
			slog.Warn("event queue full, oldest events dropped", "dropped", n-reported)
			reported = n
		}
	}
}

// loadCharacters restores saved characters in save order and creates any
// configured character that has no saved psyche yet.
func loadCharacters(db *persistence.DB, lib psyche.Library) ([]*agents.Character, error) {
	chars, err := db.LoadPsyches()
	if err != nil {
		return nil, fmt.Errorf("load psyches: %w", err)
	}
	if len(chars) > 0 {
		slog.Info("characters restored", "count", len(chars))
	}
	known := make(map[string]bool, len(chars))
	for _, c := range chars {
		known[c.ID] = true
	}
	for _, cc := range cfg.Characters {
		if known[cc.ID] {
			continue
		}
		c, err := newCharacter(cc, lib)
		if err != nil {
			return nil, err
		}
		known[cc.ID] = true
		chars = append(chars, c)
		slog.Info("character created", "id", c.ID, "name", c.Name, "archetype", c.Archetype)
	}
	return chars, nil
}

func newCharacter(cc config.CharacterConfig, lib psyche.Library) (*agents.Character, error) {
	if cc.Archetype == "" {
		return agents.New(cc.ID, cc.Name), nil
	}
	a, ok := lib.Lookup(cc.Archetype)
	if !ok {
		return nil, fmt.Errorf("character %s: unknown archetype %q", cc.ID, cc.Archetype)
	}
	return agents.FromArchetype(cc.ID, cc.Name, a)
}

// loadWorld restores the saved world or generates a new one, then places
// characters that have no entity yet. It returns nil when the world is
// disabled.
func loadWorld(db *persistence.DB, chars []*agents.Character) (*world.World, error) {
	if !cfg.World.Enabled {
		return nil, nil
	}
	w, err := db.LoadWorld()
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		gen := world.GenConfig{
			Radius:        cfg.World.Radius,
			Spacing:       cfg.World.Spacing,
			Seed:          cfg.World.Seed,
			SeaLevel:      cfg.World.SeaLevel,
			MountainLevel: cfg.World.MountainLevel,
		}
		if gen.Seed == 0 {
			gen.Seed = rand.Int63()
		}
		slog.Info("no saved world found, generating...", "seed", gen.Seed, "radius", gen.Radius)
		w = world.Generate(gen)
		for terrain, n := range world.TerrainCounts(w) {
			slog.Debug("terrain", "type", terrain, "count", n)
		}
		if err := db.SaveMeta(persistence.MetaWorldSeed, strconv.FormatInt(gen.Seed, 10)); err != nil {
			return nil, fmt.Errorf("save world seed: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load world: %w", err)
	default:
		slog.Info("world restored", "entities", len(w.Entities()), "time", w.CurrentTime())
	}
	w.SetLogger(slog.Default())

	var missing []*agents.Character
	for _, c := range chars {
		if _, ok := w.Entity(c.ID); !ok {
			missing = append(missing, c)
		}
	}
	spots := world.SpawnPoints(w, len(missing))
	for i, c := range missing {
		var pos world.Vec3
		if i < len(spots) {
			pos = spots[i].Position
		}
		e := world.NewEntity(c.ID, world.TypeCharacter, c.Name, pos)
		if c.Archetype != "" {
			e.Properties["archetype"] = c.Archetype
		}
		if err := w.AddEntity(e); err != nil {
			return nil, fmt.Errorf("place %s: %w", c.ID, err)
		}
		slog.Debug("character placed", "id", c.ID, "x", pos.X, "y", pos.Y)
	}
	return w, nil
}

// wireCognition gives every character its built-in cognition chain:
// needs drift, then movement, then observation.
func wireCognition(chars []*agents.Character, w *world.World) {
	for i, c := range chars {
		var cogs []agents.Cognition
		if cfg.Psyche.NeedDriftRate > 0 {
			cogs = append(cogs, agents.NewNeedDrift(cfg.Psyche.NeedDriftRate))
		}
		if w != nil {
			if cfg.Psyche.WanderChance > 0 {
				cogs = append(cogs, agents.NewWanderer(w, cfg.Psyche.WanderChance, cfg.World.Seed+int64(i)+1))
			}
			if cfg.Psyche.Observe {
				cogs = append(cogs, agents.NewObserver(w, 0))
			}
		}
		if len(cogs) > 0 {
			c.Cognition = agents.Chain(cogs...)
		}
		c.MemoryLimit = cfg.Psyche.MemoryLimit
		c.Logger = slog.Default().With("character", c.ID)
	}
}

// startAPI serves the observation API in a goroutine when enabled.
func startAPI(sch *engine.Scheduler, rec *engine.Recorder, chars []*agents.Character, w *world.World) *http.Server {
	if !cfg.API.Enabled {
		return nil
	}
	srv := api.New(api.Options{Events: rec, RateLimit: cfg.API.RateLimit})
	srv.Attach(sch, cfg.API.PublishEvery, func() []*agents.Character { return chars }, w)
	srv.Publish(api.BuildView(sch.CurrentTime(), false, chars, w))

	httpServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("HTTP API starting", "addr", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return httpServer
}
