package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Stryd      Credentials `yaml:"stryd"`
	TrainAsOne Credentials `yaml:"trainasone"`
	FinalSurge Credentials `yaml:"finalsurge"`

	// PowerAdjust is added to the low and high end of every power target.
	PowerAdjust        []float64 `yaml:"power_adjust"`
	NumberOfWorkouts   int       `yaml:"number_of_workouts"`
	IncludeRunBackStep bool      `yaml:"include_runback_step"`
	PaceOnly           bool      `yaml:"pace_only"`
	SourceFormat       string    `yaml:"source_format"`
	StateDir           string    `yaml:"state_dir"`

	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`

	// Warnings collects notices about deprecated keys found while loading.
	Warnings []string `yaml:"-"`
}

type Credentials struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type ServerConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// removedKeys were per-pace-zone adjustments, superseded by power_adjust.
var removedKeys = []string{
	"recovery_pace_adjust",
	"very_easy_pace_adjust",
	"easy_pace_adjust",
	"fast_pace_adjust",
	"extreme_pace_adjust",
}

// Default returns a config with every optional value filled in.
func Default() *Config {
	return &Config{
		PowerAdjust:      []float64{0, 0},
		NumberOfWorkouts: 1,
		SourceFormat:     "fit",
		StateDir:         "state",
		Log: LogConfig{
			File:       "trainaspower.log",
			Level:      "info",
			MaxAgeDays: 6,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Tailscale: TailscaleConfig{
			Hostname: "trainaspower",
			StateDir: "tsnet",
		},
	}
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix TRAINASPOWER_ and underscore-separated paths:
//
//	TRAINASPOWER_STRYD_EMAIL, TRAINASPOWER_STRYD_PASSWORD,
//	TRAINASPOWER_TRAINASONE_EMAIL, TRAINASPOWER_TRAINASONE_PASSWORD,
//	TRAINASPOWER_FINALSURGE_EMAIL, TRAINASPOWER_FINALSURGE_PASSWORD,
//	TRAINASPOWER_NUMBER_OF_WORKOUTS, TRAINASPOWER_PACE_ONLY,
//	TRAINASPOWER_SOURCE_FORMAT, TRAINASPOWER_STATE_DIR,
//	TRAINASPOWER_LOG_FILE, TRAINASPOWER_LOG_LEVEL,
//	TRAINASPOWER_SERVER_HOST, TRAINASPOWER_SERVER_PORT, TRAINASPOWER_SERVER_API_KEY
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// decode strips removed keys with a warning, then decodes the rest with
// unknown keys rejected.
func (c *Config) decode(data []byte) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if len(root.Content) == 0 {
		return nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return errors.New("top level must be a mapping")
	}

	kept := doc.Content[:0]
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i].Value
		if isRemovedKey(key) {
			c.Warnings = append(c.Warnings, fmt.Sprintf("config field %q was removed; use power_adjust instead", key))
			continue
		}
		kept = append(kept, doc.Content[i], doc.Content[i+1])
	}
	doc.Content = kept

	cleaned, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(cleaned))
	dec.KnownFields(true)
	return dec.Decode(c)
}

func isRemovedKey(key string) bool {
	for _, k := range removedKeys {
		if k == key {
			return true
		}
	}
	return false
}

func applyEnvOverrides(cfg *Config) {
	strs := map[string]*string{
		"TRAINASPOWER_STRYD_EMAIL":         &cfg.Stryd.Email,
		"TRAINASPOWER_STRYD_PASSWORD":      &cfg.Stryd.Password,
		"TRAINASPOWER_TRAINASONE_EMAIL":    &cfg.TrainAsOne.Email,
		"TRAINASPOWER_TRAINASONE_PASSWORD": &cfg.TrainAsOne.Password,
		"TRAINASPOWER_FINALSURGE_EMAIL":    &cfg.FinalSurge.Email,
		"TRAINASPOWER_FINALSURGE_PASSWORD": &cfg.FinalSurge.Password,
		"TRAINASPOWER_SOURCE_FORMAT":       &cfg.SourceFormat,
		"TRAINASPOWER_STATE_DIR":           &cfg.StateDir,
		"TRAINASPOWER_LOG_FILE":            &cfg.Log.File,
		"TRAINASPOWER_LOG_LEVEL":           &cfg.Log.Level,
		"TRAINASPOWER_SERVER_HOST":         &cfg.Server.Host,
		"TRAINASPOWER_SERVER_API_KEY":      &cfg.Server.APIKey,
		"TRAINASPOWER_TAILSCALE_HOSTNAME":  &cfg.Tailscale.Hostname,
		"TRAINASPOWER_TAILSCALE_STATE_DIR": &cfg.Tailscale.StateDir,
	}
	for env, dst := range strs {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("TRAINASPOWER_NUMBER_OF_WORKOUTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NumberOfWorkouts = n
		}
	}
	if v := os.Getenv("TRAINASPOWER_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TRAINASPOWER_PACE_ONLY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PaceOnly = b
		}
	}
	if v := os.Getenv("TRAINASPOWER_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
}

func (c *Config) validate() error {
	if len(c.PowerAdjust) != 2 {
		return fmt.Errorf("power_adjust must have two values (low, high), got %d", len(c.PowerAdjust))
	}
	if c.NumberOfWorkouts < 1 {
		return fmt.Errorf("number_of_workouts must be at least 1")
	}
	switch strings.ToLower(c.SourceFormat) {
	case "fit", "html":
		c.SourceFormat = strings.ToLower(c.SourceFormat)
	default:
		return fmt.Errorf("source_format must be fit or html, got %q", c.SourceFormat)
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log.max_age_days must not be negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}

// RequireSync checks the credentials the sync command needs.
func (c *Config) RequireSync() error {
	for _, s := range []struct {
		name string
		cred Credentials
	}{
		{"stryd", c.Stryd},
		{"trainasone", c.TrainAsOne},
		{"finalsurge", c.FinalSurge},
	} {
		if s.cred.Email == "" || s.cred.Password == "" {
			return fmt.Errorf("%s.email and %s.password are required", s.name, s.name)
		}
	}
	return nil
}

// RequireServer checks what the HTTP server needs.
func (c *Config) RequireServer() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("server.api_key is required")
	}
	if c.Stryd.Email == "" || c.Stryd.Password == "" {
		return fmt.Errorf("stryd.email and stryd.password are required")
	}
	return nil
}
