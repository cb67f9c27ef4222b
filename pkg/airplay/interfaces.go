package airplay

import (
	"context"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/models"
)

// ChannelStore reads channels. GetChannelByID returns (nil, nil) when absent.
type ChannelStore interface {
	GetChannelByID(ctx context.Context, id string) (*models.Channel, error)
}

// SongPatch carries backfill values. A nil field is left untouched, and the
// store only writes a field whose stored value is still NULL.
type SongPatch struct {
	ISRC        *string
	Fingerprint *string
}

// SongStore persists songs. Find* methods return (nil, nil) on a miss.
type SongStore interface {
	FindSongByFingerprint(ctx context.Context, fingerprint string) (*models.Song, error)
	FindSongByISRC(ctx context.Context, isrc string) (*models.Song, error)
	FindSongByTitleArtist(ctx context.Context, title, artist string) (*models.Song, error)
	GetSongByID(ctx context.Context, id string) (*models.Song, error)
	InsertSong(ctx context.Context, song *models.Song) error
	BackfillSong(ctx context.Context, id string, patch SongPatch) error
}

// DetectionStore persists detections and their corrections.
type DetectionStore interface {
	InsertDetection(ctx context.Context, d *models.AirplayDetection) error
	GetDetectionByID(ctx context.Context, id string) (*models.AirplayDetection, error)
	QueryDetections(ctx context.Context, q models.DetectionQuery) ([]models.DetectionView, int64, error)
	InsertCorrection(ctx context.Context, c *models.ManualCorrection) error
}

// SessionStore persists monitoring sessions, their detection links and errors.
type SessionStore interface {
	InsertSession(ctx context.Context, s *models.MonitoringSession) error
	// EndSession moves an active session to a terminal status. It is a no-op
	// for sessions that already ended.
	EndSession(ctx context.Context, id string, status models.SessionStatus, endedAt time.Time) error
	GetSession(ctx context.Context, id string) (*models.MonitoringSession, error)
	ListSessionsByStatus(ctx context.Context, status models.SessionStatus) ([]models.MonitoringSession, error)
	// RecordSessionDetection links a detection to a session and bumps its
	// detection_count and last_detection_at atomically.
	RecordSessionDetection(ctx context.Context, sessionID, detectionID string, at time.Time) error
	InsertSessionError(ctx context.Context, e *models.MonitoringError) error
	RecentSessionDetections(ctx context.Context, sessionID string, limit int) ([]models.DetectionView, error)
	RecentSessionErrors(ctx context.Context, sessionID string, limit int) ([]models.MonitoringError, error)
}

// Storage is the full persistence surface the service needs.
type Storage interface {
	ChannelStore
	SongStore
	DetectionStore
	SessionStore
	Close() error
}

// AudioSampler captures a short clip from a stream. Returning (nil, nil) means
// no sample was available this time; that is a normal outcome, not an error.
type AudioSampler interface {
	Capture(ctx context.Context, streamURL string) (*models.AudioSample, error)
}

// ProviderA is the primary fingerprint-lookup recognition provider.
type ProviderA interface {
	Name() string
	Lookup(ctx context.Context, sample *models.AudioSample) (*models.ProviderAResult, error)
}

// ProviderB is the fallback recognition provider.
type ProviderB interface {
	Name() string
	Lookup(ctx context.Context, sample *models.AudioSample) (*models.ProviderBResult, error)
}

// Notifier delivers callback payloads. Errors are logged and never abort a session.
type Notifier interface {
	Post(ctx context.Context, callbackURL string, payload any) error
}

// AvailabilityProbe checks that a channel can be monitored right now.
type AvailabilityProbe interface {
	Check(ctx context.Context, channel *models.Channel) error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
