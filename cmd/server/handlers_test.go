package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/airplay"
	"github.com/himanishpuri/AirplayDNA/pkg/airplay/audio"
	"github.com/himanishpuri/AirplayDNA/pkg/logger"
	"github.com/himanishpuri/AirplayDNA/pkg/models"
)

// stubService records the arguments it receives and returns canned values.
type stubService struct {
	outcome   airplay.Outcome
	err       error
	lastQuery models.DetectionQuery
	lastAudio *models.AudioSample
	channels  map[string]*models.Channel
}

func (s *stubService) Identify(ctx context.Context, channelID string) (airplay.Outcome, error) {
	return s.outcome, s.err
}

func (s *stubService) IdentifyFromCapturedSample(ctx context.Context, channelID string, sample *models.AudioSample) (airplay.Outcome, error) {
	s.lastAudio = sample
	return s.outcome, s.err
}

func (s *stubService) GetRecentDetections(ctx context.Context, q models.DetectionQuery) (*models.DetectionPage, error) {
	s.lastQuery = q
	if s.err != nil {
		return nil, s.err
	}
	return &models.DetectionPage{Items: []models.DetectionView{}, Page: 1, Limit: 20}, nil
}

func (s *stubService) ApplyCorrection(ctx context.Context, detectionID, songID, reason, correctedBy string) (*models.ManualCorrection, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.ManualCorrection{ID: "corr-1", DetectionID: detectionID, CorrectedSongID: songID, Reason: reason, CorrectedBy: correctedBy}, nil
}

func (s *stubService) StartMonitoring(ctx context.Context, channelID string, intervalSeconds int, callbackURL string) (*models.MonitoringSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.MonitoringSession{ID: "sess-1", ChannelID: channelID, IntervalSeconds: intervalSeconds, CallbackURL: callbackURL, Status: models.SessionActive}, nil
}

func (s *stubService) StopMonitoring(ctx context.Context, channelID string) (*models.MonitoringSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.MonitoringSession{ID: "sess-1", ChannelID: channelID, Status: models.SessionStopped}, nil
}

func (s *stubService) ListActiveSessions(ctx context.Context) ([]models.MonitoringSession, error) {
	return nil, s.err
}

func (s *stubService) GetSessionDetails(ctx context.Context, sessionID string) (*models.SessionDetails, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.SessionDetails{Session: models.MonitoringSession{ID: sessionID}}, nil
}

func (s *stubService) GetChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	if ch, ok := s.channels[channelID]; ok {
		return ch, nil
	}
	return nil, &airplay.NotFoundError{Resource: "channel", ID: channelID}
}

func (s *stubService) RegisterChannel(ctx context.Context, ch *models.Channel) error {
	if s.err != nil {
		return s.err
	}
	if ch.ID == "" {
		ch.ID = "generated"
	}
	if s.channels == nil {
		s.channels = map[string]*models.Channel{}
	}
	s.channels[ch.ID] = ch
	return nil
}

func (s *stubService) Close(ctx context.Context) error { return nil }

func newTestServer(svc airplay.Service) http.Handler {
	log := logger.New(logger.Config{Level: logger.ERROR, Output: &bytes.Buffer{}})
	return NewServer(svc, &ServerConfig{Port: 0, AllowedOrigins: []string{"*"}}, log).routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(&stubService{}), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Status != "healthy" {
		t.Errorf("unexpected body %q (%v)", rec.Body.String(), err)
	}
}

func TestIdentifyResponses(t *testing.T) {
	matched := airplay.Outcome{Matched: true, Result: &models.DetectionResult{DetectionID: "d1", Song: models.SongData{Title: "7 Seconds"}}}
	tests := []struct {
		name       string
		svc        *stubService
		body       string
		wantStatus int
		wantMatch  bool
	}{
		{"match", &stubService{outcome: matched}, `{"channel_id":"C1"}`, http.StatusOK, true},
		{"no match", &stubService{}, `{"channel_id":"C1"}`, http.StatusOK, false},
		{"missing channel id", &stubService{}, `{}`, http.StatusBadRequest, false},
		{"bad json", &stubService{}, `{`, http.StatusBadRequest, false},
		{"unknown channel", &stubService{err: &airplay.NotFoundError{Resource: "channel", ID: "X"}}, `{"channel_id":"X"}`, http.StatusNotFound, false},
		{"capture failure", &stubService{err: fmt.Errorf("%w: stream offline", airplay.ErrCaptureFailed)}, `{"channel_id":"C1"}`, http.StatusOK, false},
		{"storage failure", &stubService{err: &airplay.StorageError{Op: "insert detection", Err: fmt.Errorf("disk full")}}, `{"channel_id":"C1"}`, http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(tt.svc), http.MethodPost, "/api/v1/detections/identify", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if rec.Code != http.StatusOK {
				return
			}
			var resp IdentifyResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Success != tt.wantMatch {
				t.Errorf("success = %v, want %v", resp.Success, tt.wantMatch)
			}
			if tt.wantMatch && resp.Detection.Song.Title != "7 Seconds" {
				t.Errorf("unexpected detection %+v", resp.Detection)
			}
		})
	}
}

func TestStorageErrorsAreNotLeaked(t *testing.T) {
	svc := &stubService{err: &airplay.StorageError{Op: "query detections", Err: fmt.Errorf("near \"SELEC\": syntax error")}}
	rec := do(t, newTestServer(svc), http.MethodGet, "/api/v1/detections", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "SELEC") {
		t.Errorf("storage detail leaked: %s", rec.Body.String())
	}
}

func multipartSample(t *testing.T, channelID, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if channelID != "" {
		mw.WriteField("channel_id", channelID)
	}
	mw.WriteField("captured_at", "2024-06-01T12:00:00Z")
	if data != nil {
		part, err := mw.CreateFormFile("audio", filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		part.Write(data)
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

func postSample(h http.Handler, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/detections/identify/sample", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdentifySampleUpload(t *testing.T) {
	svc := &stubService{outcome: airplay.Outcome{Matched: true, Result: &models.DetectionResult{DetectionID: "d1"}}}
	h := newTestServer(svc)

	body, ct := multipartSample(t, "C1", "clip.mp3", []byte("ID3-not-really-mp3"))
	rec := postSample(h, body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastAudio == nil || svc.lastAudio.Format != "mp3" {
		t.Fatalf("sample not forwarded: %+v", svc.lastAudio)
	}
	want := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if !svc.lastAudio.CapturedAt.Equal(want) {
		t.Errorf("captured_at = %v, want %v", svc.lastAudio.CapturedAt, want)
	}

	body, ct = multipartSample(t, "", "clip.mp3", []byte("data"))
	if rec := postSample(h, body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("missing channel_id: status = %d", rec.Code)
	}
	body, ct = multipartSample(t, "C1", "", nil)
	if rec := postSample(h, body, ct); rec.Code != http.StatusBadRequest {
		t.Errorf("missing file: status = %d", rec.Code)
	}
}

func TestIdentifySilentSample(t *testing.T) {
	silent, err := audio.EncodeWAV(make([]int, 11025), 11025)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	svc := &stubService{}
	body, ct := multipartSample(t, "C1", "quiet.wav", silent)
	rec := postSample(newTestServer(svc), body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	var resp IdentifyResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Success || svc.lastAudio != nil {
		t.Errorf("silent sample should short-circuit, got %+v", resp)
	}
}

func TestListDetectionsQuery(t *testing.T) {
	svc := &stubService{}
	h := newTestServer(svc)

	rec := do(t, h, http.MethodGet, "/api/v1/detections?page=2&limit=5&channel_id=C1&start_date=2024-06-01&end_date=2024-06-02", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	q := svc.lastQuery
	if q.Page != 2 || q.Limit != 5 || q.ChannelID != "C1" {
		t.Errorf("unexpected query %+v", q)
	}
	if q.StartDate == nil || !q.StartDate.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start date = %v", q.StartDate)
	}
	if q.EndDate == nil || q.EndDate.Before(time.Date(2024, 6, 2, 23, 59, 59, 0, time.UTC)) {
		t.Errorf("end date should cover the whole day, got %v", q.EndDate)
	}

	for _, path := range []string{
		"/api/v1/detections?page=abc",
		"/api/v1/detections?limit=x",
		"/api/v1/detections?start_date=yesterday",
	} {
		if rec := do(t, h, http.MethodGet, path, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s: status = %d, want 400", path, rec.Code)
		}
	}

	svc.err = &airplay.ValidationError{Field: "start_date", Message: "must not be after end_date"}
	if rec := do(t, h, http.MethodGet, "/api/v1/detections", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("validation error: status = %d, want 400", rec.Code)
	}
}

func TestCorrectionRoute(t *testing.T) {
	h := newTestServer(&stubService{})
	rec := do(t, h, http.MethodPost, "/api/v1/detections/d42/corrections", `{"song_id":"s9","reason":"wrong edit","corrected_by":"ops"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	var c models.ManualCorrection
	json.NewDecoder(rec.Body).Decode(&c)
	if c.DetectionID != "d42" || c.CorrectedSongID != "s9" {
		t.Errorf("unexpected correction %+v", c)
	}

	if rec := do(t, h, http.MethodPost, "/api/v1/detections/d42/corrections", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing song_id: status = %d", rec.Code)
	}
}

func TestMonitoringRoutes(t *testing.T) {
	svc := &stubService{}
	h := newTestServer(svc)

	rec := do(t, h, http.MethodPost, "/api/v1/monitoring/start", `{"channel_id":"C1","interval_seconds":30}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/monitoring/start", `{"channel_id":"C1","interval_seconds":-1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("negative interval: status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/monitoring/stop", `{"channel_id":"C1"}`); rec.Code != http.StatusOK {
		t.Errorf("stop: status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/v1/monitoring/sessions", "")
	var list SessionsResponse
	json.NewDecoder(rec.Body).Decode(&list)
	if rec.Code != http.StatusOK || list.Sessions == nil || list.Count != 0 {
		t.Errorf("sessions: status = %d, body = %+v", rec.Code, list)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/monitoring/sessions/sess-1", ""); rec.Code != http.StatusOK {
		t.Errorf("session details: status = %d", rec.Code)
	}

	svc.err = &airplay.NotFoundError{Resource: "active monitoring session for channel", ID: "C2"}
	if rec := do(t, h, http.MethodPost, "/api/v1/monitoring/stop", `{"channel_id":"C2"}`); rec.Code != http.StatusNotFound {
		t.Errorf("stop without session: status = %d", rec.Code)
	}
}

func TestChannelRoutes(t *testing.T) {
	h := newTestServer(&stubService{})

	rec := do(t, h, http.MethodPost, "/api/v1/channels", `{"id":"nova","name":"Radio Nova","stream_url":"http://nova.example/live","type":"Radio"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status = %d (%s)", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodGet, "/api/v1/channels/nova", "")
	var ch models.Channel
	json.NewDecoder(rec.Body).Decode(&ch)
	if rec.Code != http.StatusOK || ch.Type != models.ChannelRadio {
		t.Errorf("get: status = %d, channel = %+v", rec.Code, ch)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/channels/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing channel: status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/channels", `{"name":"No URL"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid channel: status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := do(t, newTestServer(&stubService{}), http.MethodOptions, "/api/v1/detections", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS header")
	}
}
