package airplay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/airplay/audio"
	"github.com/himanishpuri/AirplayDNA/pkg/airplay/notify"
	"github.com/himanishpuri/AirplayDNA/pkg/airplay/providers/acoustid"
	"github.com/himanishpuri/AirplayDNA/pkg/airplay/providers/audd"
	"github.com/himanishpuri/AirplayDNA/pkg/logger"
	"github.com/himanishpuri/AirplayDNA/pkg/models"
	"github.com/himanishpuri/AirplayDNA/pkg/utils"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Service is the engine surface consumed by the HTTP API and the CLI.
type Service interface {
	// Identify captures a sample from the channel's stream and identifies it.
	Identify(ctx context.Context, channelID string) (Outcome, error)
	IdentifyFromCapturedSample(ctx context.Context, channelID string, sample *models.AudioSample) (Outcome, error)
	GetRecentDetections(ctx context.Context, q models.DetectionQuery) (*models.DetectionPage, error)
	ApplyCorrection(ctx context.Context, detectionID, songID, reason, correctedBy string) (*models.ManualCorrection, error)
	StartMonitoring(ctx context.Context, channelID string, intervalSeconds int, callbackURL string) (*models.MonitoringSession, error)
	StopMonitoring(ctx context.Context, channelID string) (*models.MonitoringSession, error)
	ListActiveSessions(ctx context.Context) ([]models.MonitoringSession, error)
	GetSessionDetails(ctx context.Context, sessionID string) (*models.SessionDetails, error)
	GetChannel(ctx context.Context, channelID string) (*models.Channel, error)
	RegisterChannel(ctx context.Context, ch *models.Channel) error
	// Close stops every monitoring session and releases storage.
	Close(ctx context.Context) error
}

type airplayService struct {
	storage    Storage
	sampler    AudioSampler
	identifier *Identifier
	corrector  *CorrectionHandler
	monitor    *Manager
	log        Logger
	config     *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	if cfg.Sampler == nil {
		cfg.Sampler = audio.NewFFmpegSampler(audio.SamplerConfig{
			TempDir: cfg.TempDir,
			Seconds: cfg.CaptureSeconds,
		})
	}
	if cfg.ProviderA == nil && cfg.AcoustIDKey != "" {
		cfg.ProviderA = acoustid.New(cfg.AcoustIDKey, acoustid.WithFingerprinter(acoustid.Fpcalc{TempDir: cfg.TempDir}))
	}
	if cfg.ProviderB == nil && cfg.AudDToken != "" {
		cfg.ProviderB = audd.New(cfg.AudDToken)
	}
	if cfg.ProviderA == nil && cfg.ProviderB == nil {
		cfg.Logger.Warnf("No recognition provider configured; every identification will report no match")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewWebhook(cfg.NotifyTimeout)
	}
	if cfg.Probe == nil {
		cfg.Probe = audio.NewStreamProbe(0)
	}

	resolver := NewSongResolver(stor, cfg.Logger)
	identifier := NewIdentifier(stor, stor, resolver, cfg.ProviderA, cfg.ProviderB, cfg.Logger, IdentifierConfig{
		ProviderAThreshold:  cfg.ProviderAThreshold,
		ProviderBConfidence: cfg.ProviderBConfidence,
		ProviderTimeout:     cfg.ProviderTimeout,
	})
	monitor := NewManager(cfg.Scheduler, stor, stor, identifier, cfg.Sampler, cfg.Notifier, cfg.Probe, cfg.Logger, ManagerConfig{
		DefaultIntervalSeconds: cfg.DefaultIntervalSeconds,
		MinIntervalSeconds:     cfg.MinIntervalSeconds,
		DetailLimit:            cfg.DetailLimit,
	})

	if _, err := monitor.Recover(context.Background()); err != nil {
		stor.Close()
		return nil, fmt.Errorf("recovering monitoring sessions: %w", err)
	}

	return &airplayService{
		storage:    stor,
		sampler:    cfg.Sampler,
		identifier: identifier,
		corrector:  NewCorrectionHandler(stor, stor, cfg.Logger),
		monitor:    monitor,
		log:        cfg.Logger,
		config:     cfg,
	}, nil
}

func (s *airplayService) Identify(ctx context.Context, channelID string) (Outcome, error) {
	channel, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return Outcome{}, err
	}
	sample, err := s.sampler.Capture(ctx, channel.StreamURL)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}
	if sample == nil || len(sample.Data) == 0 {
		s.log.Debugf("No sample captured from %s", channel.Name)
		return Outcome{}, nil
	}
	return s.identifier.Identify(ctx, channel.ID, sample, sample.CapturedAt)
}

func (s *airplayService) IdentifyFromCapturedSample(ctx context.Context, channelID string, sample *models.AudioSample) (Outcome, error) {
	var at time.Time
	if sample != nil {
		at = sample.CapturedAt
	}
	return s.identifier.Identify(ctx, channelID, sample, at)
}

// GetRecentDetections pages detections newest first. Page defaults to 1 and
// limit to DefaultPageLimit; limit is capped at MaxPageLimit.
func (s *airplayService) GetRecentDetections(ctx context.Context, q models.DetectionQuery) (*models.DetectionPage, error) {
	if q.Page < 0 {
		return nil, &ValidationError{Field: "page", Message: "must be at least 1"}
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit < 0 {
		return nil, &ValidationError{Field: "limit", Message: "must be positive"}
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	if q.StartDate != nil && q.EndDate != nil && q.StartDate.After(*q.EndDate) {
		return nil, &ValidationError{Field: "start_date", Message: "must not be after end_date"}
	}
	q.ChannelID = strings.TrimSpace(q.ChannelID)

	items, total, err := s.storage.QueryDetections(ctx, q)
	if err != nil {
		return nil, storageErr("query detections", err)
	}
	if items == nil {
		items = []models.DetectionView{}
	}
	return &models.DetectionPage{
		Items: items,
		Total: total,
		Page:  q.Page,
		Limit: q.Limit,
		Pages: int(math.Ceil(float64(total) / float64(q.Limit))),
	}, nil
}

func (s *airplayService) ApplyCorrection(ctx context.Context, detectionID, songID, reason, correctedBy string) (*models.ManualCorrection, error) {
	return s.corrector.Correct(ctx, detectionID, songID, reason, correctedBy)
}

func (s *airplayService) StartMonitoring(ctx context.Context, channelID string, intervalSeconds int, callbackURL string) (*models.MonitoringSession, error) {
	return s.monitor.Start(ctx, channelID, intervalSeconds, callbackURL)
}

func (s *airplayService) StopMonitoring(ctx context.Context, channelID string) (*models.MonitoringSession, error) {
	return s.monitor.Stop(ctx, channelID)
}

func (s *airplayService) ListActiveSessions(ctx context.Context) ([]models.MonitoringSession, error) {
	return s.monitor.ListActive(ctx)
}

func (s *airplayService) GetSessionDetails(ctx context.Context, sessionID string) (*models.SessionDetails, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, &ValidationError{Field: "session_id", Message: "must not be empty"}
	}
	return s.monitor.GetDetails(ctx, sessionID)
}

func (s *airplayService) GetChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, &ValidationError{Field: "channel_id", Message: "must not be empty"}
	}
	ch, err := s.storage.GetChannelByID(ctx, channelID)
	if err != nil {
		return nil, storageErr("get channel", err)
	}
	if ch == nil {
		return nil, notFound("channel", channelID)
	}
	return ch, nil
}

func (s *airplayService) RegisterChannel(ctx context.Context, ch *models.Channel) error {
	w, ok := s.storage.(ChannelWriter)
	if !ok {
		return errors.New("storage backend does not support channel registration")
	}
	if ch == nil || strings.TrimSpace(ch.Name) == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if strings.TrimSpace(ch.StreamURL) == "" {
		return &ValidationError{Field: "stream_url", Message: "must not be empty"}
	}
	switch ch.Type {
	case "":
		ch.Type = models.ChannelRadio
	case models.ChannelRadio, models.ChannelTV:
	default:
		return &ValidationError{Field: "type", Message: "must be radio or tv"}
	}
	if ch.ID == "" {
		ch.ID = utils.GenerateUUID()
	}
	if err := w.CreateChannel(ctx, ch); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return &ValidationError{Field: "id", Message: "channel already exists"}
		}
		return storageErr("create channel", err)
	}
	s.log.Infof("Registered channel %s (%s)", ch.Name, ch.ID)
	return nil
}

func (s *airplayService) Close(ctx context.Context) error {
	var errs []error
	if err := s.monitor.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.storage.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
