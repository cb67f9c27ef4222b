package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/himanishpuri/AirplayDNA/pkg/airplay"
	"github.com/himanishpuri/AirplayDNA/pkg/airplay/audio"
	"github.com/himanishpuri/AirplayDNA/pkg/logger"
	"github.com/himanishpuri/AirplayDNA/pkg/models"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service airplay.Service
	config  *ServerConfig
	log     *logger.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service airplay.Service, config *ServerConfig, log *logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Server{
		service: service,
		config:  config,
		log:     log.Named("api"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// respondServiceError maps an engine error onto an HTTP status.
func (s *Server) respondServiceError(w http.ResponseWriter, op string, err error) {
	kind := airplay.ErrorKind(err)
	status := http.StatusInternalServerError
	switch kind {
	case "not_found":
		status = http.StatusNotFound
	case "validation":
		status = http.StatusBadRequest
	case "provider":
		status = http.StatusBadGateway
	}

	message := err.Error()
	if status >= 500 {
		s.log.Errorf("%s failed: %v", op, err)
		if kind == "storage" || kind == "internal" {
			message = op + " failed"
		}
	} else {
		s.log.Debugf("%s rejected: %v", op, err)
	}
	s.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
		Kind:    kind,
	})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{ Validate() error }) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.log.Debugf("Failed to decode request: %v", err)
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := dst.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListActiveSessions(r.Context())
	if err != nil {
		s.log.Errorf("Health check failed: %v", err)
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Time:   time.Now().Format(time.RFC3339),
		})
		return
	}
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		Time:           time.Now().Format(time.RFC3339),
		ActiveSessions: len(sessions),
	})
}

// handleRegisterChannel handles POST /api/v1/channels
func (s *Server) handleRegisterChannel(w http.ResponseWriter, r *http.Request) {
	var req RegisterChannelRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	ch := req.toChannel()
	if err := s.service.RegisterChannel(r.Context(), ch); err != nil {
		s.respondServiceError(w, "register channel", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, ch)
}

// handleGetChannel handles GET /api/v1/channels/{id}
func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := s.service.GetChannel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, "get channel", err)
		return
	}
	s.respondJSON(w, http.StatusOK, ch)
}

// handleIdentify handles POST /api/v1/detections/identify
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req IdentifyRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	outcome, err := s.service.Identify(ctx, req.ChannelID)
	if errors.Is(err, airplay.ErrCaptureFailed) {
		s.log.Warnf("Identify on %s: %v", req.ChannelID, err)
		s.respondJSON(w, http.StatusOK, IdentifyResponse{Success: false, Message: err.Error()})
		return
	}
	if err != nil {
		s.respondServiceError(w, "identify", err)
		return
	}
	s.respondOutcome(w, outcome)
}

// handleIdentifySample handles POST /api/v1/detections/identify/sample (multipart upload)
func (s *Server) handleIdentifySample(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, MaxSampleUploadBytes)
	if err := r.ParseMultipartForm(MaxSampleUploadBytes); err != nil {
		s.log.Debugf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	channelID := strings.TrimSpace(r.FormValue("channel_id"))
	if channelID == "" {
		s.respondError(w, http.StatusBadRequest, "channel_id is required")
		return
	}

	capturedAt := time.Now().UTC()
	if raw := strings.TrimSpace(r.FormValue("captured_at")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "captured_at must be an RFC 3339 timestamp")
			return
		}
		capturedAt = t
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.log.Errorf("Failed to read upload: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	sample, err := audio.SampleFromBytes(data, format, "upload:"+header.Filename, capturedAt)
	if errors.Is(err, audio.ErrSilence) {
		s.respondJSON(w, http.StatusOK, IdentifyResponse{Success: false, Message: "sample is silent"})
		return
	}
	if err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Unreadable audio: %v", err))
		return
	}
	if sample == nil {
		s.respondError(w, http.StatusBadRequest, "audio file is empty")
		return
	}

	s.log.Debugf("Identifying uploaded sample %s (%d bytes) for channel %s", header.Filename, len(data), channelID)
	outcome, err := s.service.IdentifyFromCapturedSample(ctx, channelID, sample)
	if err != nil {
		s.respondServiceError(w, "identify sample", err)
		return
	}
	s.respondOutcome(w, outcome)
}

func (s *Server) respondOutcome(w http.ResponseWriter, outcome airplay.Outcome) {
	if !outcome.Matched {
		s.respondJSON(w, http.StatusOK, IdentifyResponse{Success: false, Message: "no match"})
		return
	}
	s.respondJSON(w, http.StatusOK, IdentifyResponse{Success: true, Detection: outcome.Result})
}

// handleListDetections handles GET /api/v1/detections
func (s *Server) handleListDetections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.DetectionQuery{ChannelID: q.Get("channel_id")}

	var err error
	if query.Page, err = intParam(q.Get("page")); err != nil {
		s.respondError(w, http.StatusBadRequest, "page must be a number")
		return
	}
	if query.Limit, err = intParam(q.Get("limit")); err != nil {
		s.respondError(w, http.StatusBadRequest, "limit must be a number")
		return
	}
	if query.StartDate, err = parseDate(q.Get("start_date"), false); err != nil {
		s.respondError(w, http.StatusBadRequest, "start_date: "+err.Error())
		return
	}
	if query.EndDate, err = parseDate(q.Get("end_date"), true); err != nil {
		s.respondError(w, http.StatusBadRequest, "end_date: "+err.Error())
		return
	}

	page, err := s.service.GetRecentDetections(r.Context(), query)
	if err != nil {
		s.respondServiceError(w, "list detections", err)
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// handleCorrectDetection handles POST /api/v1/detections/{id}/corrections
func (s *Server) handleCorrectDetection(w http.ResponseWriter, r *http.Request) {
	var req CorrectionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	correction, err := s.service.ApplyCorrection(r.Context(), chi.URLParam(r, "id"), req.SongID, req.Reason, req.CorrectedBy)
	if err != nil {
		s.respondServiceError(w, "apply correction", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, correction)
}

// handleStartMonitoring handles POST /api/v1/monitoring/start
func (s *Server) handleStartMonitoring(w http.ResponseWriter, r *http.Request) {
	var req StartMonitoringRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	session, err := s.service.StartMonitoring(r.Context(), req.ChannelID, req.IntervalSeconds, req.CallbackURL)
	if err != nil {
		s.respondServiceError(w, "start monitoring", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, session)
}

// handleStopMonitoring handles POST /api/v1/monitoring/stop
func (s *Server) handleStopMonitoring(w http.ResponseWriter, r *http.Request) {
	var req StopMonitoringRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	session, err := s.service.StopMonitoring(r.Context(), req.ChannelID)
	if err != nil {
		s.respondServiceError(w, "stop monitoring", err)
		return
	}
	s.respondJSON(w, http.StatusOK, session)
}

// handleListSessions handles GET /api/v1/monitoring/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListActiveSessions(r.Context())
	if err != nil {
		s.respondServiceError(w, "list sessions", err)
		return
	}
	if sessions == nil {
		sessions = []models.MonitoringSession{}
	}
	s.respondJSON(w, http.StatusOK, SessionsResponse{Sessions: sessions, Count: len(sessions)})
}

// handleGetSession handles GET /api/v1/monitoring/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	details, err := s.service.GetSessionDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, "get session", err)
		return
	}
	s.respondJSON(w, http.StatusOK, details)
}
