package models

import (
	"encoding/json"
	"time"
)

// ChannelType distinguishes radio from TV streams.
type ChannelType string

const (
	ChannelRadio ChannelType = "radio"
	ChannelTV    ChannelType = "tv"
)

// ChannelStatusActive marks a channel that may be monitored.
const ChannelStatusActive = "active"

// Channel is a broadcast stream. Owned by channel management; read-only here.
type Channel struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	StreamURL string      `json:"stream_url"`
	Type      ChannelType `json:"type"`
	Status    string      `json:"status"`
}

// Song is a deduplicated recording. ISRC and Fingerprint are only ever
// backfilled from nil, never replaced.
type Song struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Artist      string          `json:"artist"`
	Album       string          `json:"album,omitempty"`
	ISRC        *string         `json:"isrc,omitempty"`
	DurationSec *int            `json:"duration_sec,omitempty"`
	Fingerprint *string         `json:"fingerprint,omitempty"`
	ReleaseYear int             `json:"release_year,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SongData is the provider-neutral song candidate produced by identification.
type SongData struct {
	Title          string          `json:"title"`
	Artist         string          `json:"artist"`
	Album          string          `json:"album,omitempty"`
	ISRC           string          `json:"isrc,omitempty"`            // canonical, normalized
	ISRCCandidates []string        `json:"isrc_candidates,omitempty"` // every valid code seen, deduplicated
	DurationSec    float64         `json:"duration_sec,omitempty"`    // 0 when unknown
	Fingerprint    string          `json:"fingerprint,omitempty"`
	ReleaseYear    int             `json:"release_year,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// AirplayDetection is a single logged play of a song on a channel.
type AirplayDetection struct {
	ID               string          `json:"id"`
	SongID           string          `json:"song_id"`
	ChannelID        string          `json:"channel_id"`
	PlayTimestamp    time.Time       `json:"play_timestamp"`
	EndTimestamp     *time.Time      `json:"end_timestamp,omitempty"`
	DurationSec      *int            `json:"duration_sec,omitempty"`
	Confidence       float64         `json:"confidence"`
	PlaybackPosition float64         `json:"playback_position"`
	DetectedAt       time.Time       `json:"detected_at"`
	Provider         string          `json:"provider"`
	RawPayload       json.RawMessage `json:"raw_payload,omitempty"`
}

// ManualCorrection is an append-only operator override of a detection's song.
type ManualCorrection struct {
	ID              string    `json:"id"`
	DetectionID     string    `json:"detection_id"`
	CorrectedSongID string    `json:"corrected_song_id"`
	Reason          string    `json:"reason"`
	CorrectedBy     string    `json:"corrected_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// SessionStatus is the lifecycle state of a monitoring session.
type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionStopped SessionStatus = "stopped"
	SessionFailed  SessionStatus = "failed"
)

// MonitoringSession is one continuous sampling run for a channel.
type MonitoringSession struct {
	ID              string        `json:"id"`
	ChannelID       string        `json:"channel_id"`
	ChannelName     string        `json:"channel_name,omitempty"`
	IntervalSeconds int           `json:"interval_seconds"`
	CallbackURL     string        `json:"callback_url,omitempty"`
	Status          SessionStatus `json:"status"`
	StartedAt       time.Time     `json:"started_at"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
	LastDetectionAt *time.Time    `json:"last_detection_at,omitempty"`
	DetectionCount  int           `json:"detection_count"`
}

// MonitoringError records an unexpected failure inside a sampling cycle.
type MonitoringError struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AudioSample is a short clip captured from a stream.
type AudioSample struct {
	Data       []byte        `json:"-"`
	Format     string        `json:"format"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
	CapturedAt time.Time     `json:"captured_at"`
	Source     string        `json:"source"`
}
