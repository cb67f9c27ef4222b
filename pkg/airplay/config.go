package airplay

import "time"

type Config struct {
	DBPath      string
	TempDir     string
	Logger      Logger
	Storage     Storage
	Sampler     AudioSampler
	ProviderA   ProviderA
	ProviderB   ProviderB
	Notifier    Notifier
	Probe       AvailabilityProbe
	Scheduler   *SchedulerState
	AcoustIDKey string
	AudDToken   string

	CaptureSeconds         int
	ProviderAThreshold     float64
	ProviderBConfidence    float64
	ProviderTimeout        time.Duration
	NotifyTimeout          time.Duration
	DefaultIntervalSeconds int
	MinIntervalSeconds     int
	DetailLimit            int
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

func WithSampler(s AudioSampler) Option {
	return func(c *Config) {
		c.Sampler = s
	}
}

func WithProviderA(p ProviderA) Option {
	return func(c *Config) {
		c.ProviderA = p
	}
}

func WithProviderB(p ProviderB) Option {
	return func(c *Config) {
		c.ProviderB = p
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Config) {
		c.Notifier = n
	}
}

func WithProbe(p AvailabilityProbe) Option {
	return func(c *Config) {
		c.Probe = p
	}
}

// WithScheduler injects the scheduler state; NewService creates one otherwise.
func WithScheduler(s *SchedulerState) Option {
	return func(c *Config) {
		c.Scheduler = s
	}
}

// WithAcoustIDKey enables the built-in provider A client.
func WithAcoustIDKey(key string) Option {
	return func(c *Config) {
		c.AcoustIDKey = key
	}
}

// WithAudDToken enables the built-in provider B client.
func WithAudDToken(token string) Option {
	return func(c *Config) {
		c.AudDToken = token
	}
}

func WithCaptureSeconds(n int) Option {
	return func(c *Config) {
		c.CaptureSeconds = n
	}
}

func WithProviderAThreshold(score float64) Option {
	return func(c *Config) {
		c.ProviderAThreshold = score
	}
}

func WithProviderBConfidence(confidence float64) Option {
	return func(c *Config) {
		c.ProviderBConfidence = confidence
	}
}

func WithProviderTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ProviderTimeout = d
	}
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.NotifyTimeout = d
	}
}

func WithIntervals(defaultSeconds, minSeconds int) Option {
	return func(c *Config) {
		c.DefaultIntervalSeconds = defaultSeconds
		c.MinIntervalSeconds = minSeconds
	}
}

func WithDetailLimit(n int) Option {
	return func(c *Config) {
		c.DetailLimit = n
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:                 "airplaydna.sqlite3",
		TempDir:                "/tmp",
		CaptureSeconds:         10,
		ProviderAThreshold:     DefaultProviderAThreshold,
		ProviderBConfidence:    DefaultProviderBConfidence,
		ProviderTimeout:        DefaultProviderTimeout,
		NotifyTimeout:          10 * time.Second,
		DefaultIntervalSeconds: DefaultIntervalSeconds,
		MinIntervalSeconds:     DefaultMinIntervalSeconds,
		DetailLimit:            DefaultDetailLimit,
	}
}
