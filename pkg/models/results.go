package models

import (
	"encoding/json"
	"time"
)

// ProviderAResult is the fingerprint-lookup provider's response. Scores are on a 0-1 scale.
type ProviderAResult struct {
	Candidates []ProviderACandidate
	Raw        json.RawMessage
}

// ProviderACandidate is one scored track match with the recordings linked to it.
type ProviderACandidate struct {
	TrackID    string
	Score      float64
	OffsetSec  float64
	Recordings []ProviderARecording
}

// ProviderARecording is recording metadata attached to a provider A track.
type ProviderARecording struct {
	ID          string
	Title       string
	Artists     []string
	Album       string
	DurationSec float64
	ReleaseYear int
	ISRCs       []string
}

// ProviderBResult is the fallback provider's response. Match is nil when nothing was recognized.
type ProviderBResult struct {
	Match *ProviderBMatch
	Raw   json.RawMessage
}

// ProviderBMatch is the single result payload returned by provider B.
type ProviderBMatch struct {
	Title       string
	Artist      string
	Album       string
	ReleaseYear int
	OffsetSec   float64
	DurationSec float64
	ISRCs       []string
	SongLink    string
	// Confidence is on the provider's 0-100 scale; zero means it supplied none.
	Confidence float64
}

// DetectionResult is what a successful identification returns.
type DetectionResult struct {
	DetectionID      string     `json:"detection_id"`
	SongID           string     `json:"song_id"`
	Song             SongData   `json:"song"`
	Channel          Channel    `json:"channel"`
	Provider         string     `json:"provider"`
	Confidence       float64    `json:"confidence"`
	PlaybackPosition float64    `json:"playback_position"`
	PlayTimestamp    time.Time  `json:"play_timestamp"`
	EndTimestamp     *time.Time `json:"end_timestamp,omitempty"`
	DetectedAt       time.Time  `json:"detected_at"`
}

// SongRef is a compact song reference used in listings.
type SongRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// DetectionView joins a detection with its song, channel and latest correction.
type DetectionView struct {
	AirplayDetection
	Song        SongRef           `json:"song"`
	ChannelName string            `json:"channel_name"`
	Correction  *ManualCorrection `json:"correction,omitempty"`
	// CurrentSong is the corrected song when a correction exists, else the detected one.
	CurrentSong SongRef `json:"current_song"`
}

// DetectionQuery filters and paginates detections.
type DetectionQuery struct {
	Page      int
	Limit     int
	ChannelID string
	StartDate *time.Time
	EndDate   *time.Time
}

// DetectionPage is one page of detections, newest first.
type DetectionPage struct {
	Items []DetectionView `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Pages int             `json:"pages"`
}

// SessionDetails is a session with its most recent detections and errors.
type SessionDetails struct {
	Session          MonitoringSession `json:"session"`
	RecentDetections []DetectionView   `json:"recent_detections"`
	RecentErrors     []MonitoringError `json:"recent_errors"`
}
