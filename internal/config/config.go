package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/himanishpuri/AirplayDNA/pkg/airplay"
	"github.com/himanishpuri/AirplayDNA/pkg/logger"
)

// DefaultPath is read when no explicit config file is given and it exists.
const DefaultPath = "airplaydna.toml"

type Server struct {
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

type Database struct {
	Path string `toml:"path"`
}

type AcoustID struct {
	APIKey    string  `toml:"api_key"`
	Threshold float64 `toml:"threshold"`
}

type AudD struct {
	APIToken          string  `toml:"api_token"`
	DefaultConfidence float64 `toml:"default_confidence"`
}

// Providers configures the two recognition services. A provider without a
// key is disabled.
type Providers struct {
	AcoustID       AcoustID `toml:"acoustid"`
	AudD           AudD     `toml:"audd"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

type Monitoring struct {
	DefaultIntervalSeconds int `toml:"default_interval_seconds"`
	MinIntervalSeconds     int `toml:"min_interval_seconds"`
	DetailLimit            int `toml:"detail_limit"`
	NotifyTimeoutSeconds   int `toml:"notify_timeout_seconds"`
}

type Audio struct {
	TempDir        string `toml:"temp_dir"`
	CaptureSeconds int    `toml:"capture_seconds"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the process configuration shared by the server and the CLI.
type Config struct {
	Server     Server     `toml:"server"`
	Database   Database   `toml:"database"`
	Providers  Providers  `toml:"providers"`
	Monitoring Monitoring `toml:"monitoring"`
	Audio      Audio      `toml:"audio"`
	Log        Log        `toml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:               8080,
			CORSAllowedOrigins: []string{"*"},
		},
		Database: Database{Path: "airplaydna.sqlite3"},
		Providers: Providers{
			AcoustID:       AcoustID{Threshold: airplay.DefaultProviderAThreshold},
			AudD:           AudD{DefaultConfidence: airplay.DefaultProviderBConfidence},
			TimeoutSeconds: int(airplay.DefaultProviderTimeout / time.Second),
		},
		Monitoring: Monitoring{
			DefaultIntervalSeconds: airplay.DefaultIntervalSeconds,
			MinIntervalSeconds:     airplay.DefaultMinIntervalSeconds,
			DetailLimit:            airplay.DefaultDetailLimit,
			NotifyTimeoutSeconds:   10,
		},
		Audio: Audio{
			TempDir:        os.TempDir(),
			CaptureSeconds: 10,
		},
		Log: Log{Level: "info", Format: "console"},
	}
}

// Load applies defaults, then the TOML file at path, then environment
// overrides, and validates the result. An empty path reads DefaultPath when
// it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("AIRPLAY_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("AIRPLAY_TEMP_DIR"); v != "" {
		c.Audio.TempDir = v
	}
	if v := os.Getenv("ACOUSTID_API_KEY"); v != "" {
		c.Providers.AcoustID.APIKey = v
	}
	if v := os.Getenv("AUDD_API_TOKEN"); v != "" {
		c.Providers.AudD.APIToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("AIRPLAY_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AIRPLAY_PORT must be a number, got %q", v)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must be set")
	}
	if t := c.Providers.AcoustID.Threshold; t <= 0 || t > 1 {
		return errors.New("providers.acoustid.threshold must be in (0, 1]")
	}
	if d := c.Providers.AudD.DefaultConfidence; d <= 0 || d > 100 {
		return errors.New("providers.audd.default_confidence must be in (0, 100]")
	}
	if c.Providers.TimeoutSeconds <= 0 {
		return errors.New("providers.timeout_seconds must be positive")
	}
	m := c.Monitoring
	if m.MinIntervalSeconds <= 0 {
		return errors.New("monitoring.min_interval_seconds must be positive")
	}
	if m.DefaultIntervalSeconds < m.MinIntervalSeconds {
		return fmt.Errorf("monitoring.default_interval_seconds (%d) is below min_interval_seconds (%d)",
			m.DefaultIntervalSeconds, m.MinIntervalSeconds)
	}
	if m.DetailLimit <= 0 {
		return errors.New("monitoring.detail_limit must be positive")
	}
	if c.Audio.CaptureSeconds <= 0 {
		return errors.New("audio.capture_seconds must be positive")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// Logger builds the process logger described by the log section.
func (c *Config) Logger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.ParseLevel(c.Log.Level)
	cfg.Format = c.Log.Format
	return logger.New(cfg)
}

// ServiceOptions translates the configuration into engine options.
func (c *Config) ServiceOptions() []airplay.Option {
	return []airplay.Option{
		airplay.WithDBPath(c.Database.Path),
		airplay.WithTempDir(c.Audio.TempDir),
		airplay.WithCaptureSeconds(c.Audio.CaptureSeconds),
		airplay.WithAcoustIDKey(c.Providers.AcoustID.APIKey),
		airplay.WithAudDToken(c.Providers.AudD.APIToken),
		airplay.WithProviderAThreshold(c.Providers.AcoustID.Threshold),
		airplay.WithProviderBConfidence(c.Providers.AudD.DefaultConfidence),
		airplay.WithProviderTimeout(time.Duration(c.Providers.TimeoutSeconds) * time.Second),
		airplay.WithNotifyTimeout(time.Duration(c.Monitoring.NotifyTimeoutSeconds) * time.Second),
		airplay.WithIntervals(c.Monitoring.DefaultIntervalSeconds, c.Monitoring.MinIntervalSeconds),
		airplay.WithDetailLimit(c.Monitoring.DetailLimit),
	}
}
