// Package config loads simulation settings.
// Order: defaults -> YAML file (optional) -> PSYCHESIM_* environment variables,
// then struct validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/talgya/psyche/internal/psyche"
)

// Config is the full simulation configuration.
type Config struct {
	Simulation SimulationConfig  `yaml:"simulation"`
	Psyche     PsycheConfig      `yaml:"psyche"`
	World      WorldConfig       `yaml:"world"`
	Database   DatabaseConfig    `yaml:"database"`
	API        APIConfig         `yaml:"api"`
	Logging    LoggingConfig     `yaml:"logging"`
	Characters []CharacterConfig `yaml:"characters" validate:"dive"`
}

// SimulationConfig controls the scheduler.
type SimulationConfig struct {
	TimeStep       float64 `yaml:"time_step" validate:"gt=0"`
	Steps          int     `yaml:"steps" validate:"gte=0"` // 0 runs until interrupted
	RealTime       bool    `yaml:"real_time"`
	RealTimeFactor float64 `yaml:"real_time_factor" validate:"gt=0"`
	SaveEvery      int     `yaml:"save_every" validate:"gte=0"` // ticks between saves, 0 saves only at exit
}

// PsycheConfig controls built-in cognition.
type PsycheConfig struct {
	MemoryLimit    int     `yaml:"memory_limit" validate:"gte=0"`
	ArchetypesFile string  `yaml:"archetypes_file"`
	NeedDriftRate  float64 `yaml:"need_drift_rate" validate:"gte=0,lte=1"`
	Observe        bool    `yaml:"observe"`
	WanderChance   float64 `yaml:"wander_chance" validate:"gte=0,lte=1"`
}

// WorldConfig controls world generation.
type WorldConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Seed          int64   `yaml:"seed"`
	Radius        int     `yaml:"radius" validate:"gte=0,lte=25"`
	Spacing       float64 `yaml:"spacing" validate:"gt=0"`
	SeaLevel      float64 `yaml:"sea_level" validate:"gte=0,lte=1"`
	MountainLevel float64 `yaml:"mountain_level" validate:"gte=0,lte=1,gtefield=SeaLevel"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// APIConfig controls the observation HTTP API.
type APIConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Addr         string `yaml:"addr" validate:"required_if=Enabled true"`
	PublishEvery int    `yaml:"publish_every" validate:"gte=1"` // ticks between published views
	RateLimit    int    `yaml:"rate_limit" validate:"gte=0"`    // requests per minute per client, 0 disables
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// CharacterConfig seeds one character on first run.
type CharacterConfig struct {
	ID        string `yaml:"id" validate:"required"`
	Name      string `yaml:"name" validate:"required"`
	Archetype string `yaml:"archetype"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			TimeStep:       1.0,
			Steps:          100,
			RealTime:       false,
			RealTimeFactor: 1.0,
			SaveEvery:      25,
		},
		Psyche: PsycheConfig{
			MemoryLimit:   50,
			NeedDriftRate: 0.0025,
			Observe:       true,
			WanderChance:  0.2,
		},
		World: WorldConfig{
			Enabled:       true,
			Seed:          42,
			Radius:        3,
			Spacing:       20,
			SeaLevel:      0.25,
			MountainLevel: 0.72,
		},
		Database: DatabaseConfig{Path: "data/psyche.db"},
		API: APIConfig{
			Enabled:      false,
			Addr:         ":8080",
			PublishEvery: 1,
			RateLimit:    120,
		},
		Logging: LoggingConfig{Level: "info"},
		Characters: []CharacterConfig{
			{ID: "aria", Name: "Aria", Archetype: psyche.ArchHero},
			{ID: "morden", Name: "Morden", Archetype: psyche.ArchVillain},
			{ID: "tobin", Name: "Tobin", Archetype: psyche.ArchCommoner},
		},
	}
}

// Load builds a validated Config. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads a YAML file over the defaults without validating.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PSYCHESIM_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PSYCHESIM_API_ADDR"); v != "" {
		cfg.API.Addr = v
		cfg.API.Enabled = true
	}
	if v := os.Getenv("PSYCHESIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("PSYCHESIM_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PSYCHESIM_STEPS: %w", err)
		}
		cfg.Simulation.Steps = n
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML names.
	v.RegisterTagNameFunc(yamlName)
	v.RegisterStructValidation(validateCharacterIDs, Config{})
	return v
}

func yamlName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

// validateCharacterIDs reports duplicate character ids. Blank ids are left
// to the per-element required check.
func validateCharacterIDs(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)
	seen := make(map[string]bool, len(c.Characters))
	for _, cc := range c.Characters {
		if cc.ID == "" {
			continue
		}
		if seen[cc.ID] {
			sl.ReportError(c.Characters, "characters", "Characters", "unique", "id")
			return
		}
		seen[cc.ID] = true
	}
}

// paramFieldName maps a Go field name used as a tag parameter to its YAML
// name, looking it up in the struct that holds the failing field.
func paramFieldName(e validator.FieldError) string {
	t := reflect.TypeOf(Config{})
	parts := strings.Split(e.StructNamespace(), ".")
	for _, p := range parts[1 : len(parts)-1] {
		if i := strings.IndexByte(p, '['); i >= 0 {
			p = p[:i]
		}
		f, ok := t.FieldByName(p)
		if !ok {
			return e.Param()
		}
		t = f.Type
		for t.Kind() == reflect.Slice || t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
	}
	f, ok := t.FieldByName(e.Param())
	if !ok {
		return e.Param()
	}
	return yamlName(f)
}

// Validate checks every field constraint and reports all failures at once.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, formatFieldError(e))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// formatFieldError formats a single field validation error
func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be below %s", field, paramFieldName(e))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "unique":
		return fmt.Sprintf("%s must have unique %s values", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// SlogLevel maps the configured level onto slog.
func (c LoggingConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
