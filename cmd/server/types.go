package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/models"
)

// MaxSampleUploadBytes bounds POST /api/v1/detections/identify/sample bodies.
const MaxSampleUploadBytes = 20 << 20

// IdentifyRequest is the request body for POST /api/v1/detections/identify
type IdentifyRequest struct {
	ChannelID string `json:"channel_id"`
}

func (r *IdentifyRequest) Validate() error {
	if strings.TrimSpace(r.ChannelID) == "" {
		return fmt.Errorf("channel_id is required")
	}
	return nil
}

// IdentifyResponse is returned by both identify endpoints. Success is false
// when no provider recognized the sample.
type IdentifyResponse struct {
	Success   bool                    `json:"success"`
	Message   string                  `json:"message,omitempty"`
	Detection *models.DetectionResult `json:"detection,omitempty"`
}

// CorrectionRequest is the request body for POST /api/v1/detections/{id}/corrections
type CorrectionRequest struct {
	SongID      string `json:"song_id"`
	Reason      string `json:"reason,omitempty"`
	CorrectedBy string `json:"corrected_by,omitempty"`
}

func (r *CorrectionRequest) Validate() error {
	if strings.TrimSpace(r.SongID) == "" {
		return fmt.Errorf("song_id is required")
	}
	return nil
}

// StartMonitoringRequest is the request body for POST /api/v1/monitoring/start
type StartMonitoringRequest struct {
	ChannelID       string `json:"channel_id"`
	IntervalSeconds int    `json:"interval_seconds,omitempty"`
	CallbackURL     string `json:"callback_url,omitempty"`
}

func (r *StartMonitoringRequest) Validate() error {
	if strings.TrimSpace(r.ChannelID) == "" {
		return fmt.Errorf("channel_id is required")
	}
	if r.IntervalSeconds < 0 {
		return fmt.Errorf("interval_seconds cannot be negative")
	}
	return nil
}

// StopMonitoringRequest is the request body for POST /api/v1/monitoring/stop
type StopMonitoringRequest struct {
	ChannelID string `json:"channel_id"`
}

func (r *StopMonitoringRequest) Validate() error {
	if strings.TrimSpace(r.ChannelID) == "" {
		return fmt.Errorf("channel_id is required")
	}
	return nil
}

// RegisterChannelRequest is the request body for POST /api/v1/channels
type RegisterChannelRequest struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	StreamURL string `json:"stream_url"`
	Type      string `json:"type,omitempty"`
}

func (r *RegisterChannelRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(r.StreamURL) == "" {
		return fmt.Errorf("stream_url is required")
	}
	return nil
}

func (r *RegisterChannelRequest) toChannel() *models.Channel {
	return &models.Channel{
		ID:        strings.TrimSpace(r.ID),
		Name:      strings.TrimSpace(r.Name),
		StreamURL: strings.TrimSpace(r.StreamURL),
		Type:      models.ChannelType(strings.ToLower(strings.TrimSpace(r.Type))),
	}
}

// SessionsResponse is the response for GET /api/v1/monitoring/sessions
type SessionsResponse struct {
	Sessions []models.MonitoringSession `json:"sessions"`
	Count    int                        `json:"count"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status         string `json:"status"`
	Time           string `json:"time"`
	ActiveSessions int    `json:"active_sessions"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates. A plain
// end date covers the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
