package airplay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/models"
	"github.com/himanishpuri/AirplayDNA/pkg/utils"
)

const (
	DefaultIntervalSeconds    = 60
	DefaultMinIntervalSeconds = 10
	DefaultDetailLimit        = 10
	DefaultCycleTimeout       = 2 * time.Minute
)

// ErrSchedulerClosed is returned by Start after Shutdown.
var ErrSchedulerClosed = errors.New("monitoring scheduler is shut down")

type ManagerConfig struct {
	DefaultIntervalSeconds int
	MinIntervalSeconds     int
	DetailLimit            int
	CycleTimeout           time.Duration
}

// Manager runs one sampling loop per channel.
//
// Sessions move NONE -> ACTIVE -> STOPPED and never come back; starting a
// channel again creates a new session. A tick that arrives while the previous
// cycle for the same session is still running is skipped, not queued. Stop
// only prevents future ticks: a cycle already in flight finishes and writes
// its result.
type Manager struct {
	state      *SchedulerState
	channels   ChannelStore
	sessions   SessionStore
	identifier *Identifier
	sampler    AudioSampler
	notifier   Notifier
	probe      AvailabilityProbe
	log        Logger
	cfg        ManagerConfig

	newTicker tickerFunc
	now       func() time.Time
}

func NewManager(state *SchedulerState, channels ChannelStore, sessions SessionStore, identifier *Identifier,
	sampler AudioSampler, notifier Notifier, probe AvailabilityProbe, log Logger, cfg ManagerConfig) *Manager {
	if state == nil {
		state = NewScheduler()
	}
	if cfg.DefaultIntervalSeconds <= 0 {
		cfg.DefaultIntervalSeconds = DefaultIntervalSeconds
	}
	if cfg.MinIntervalSeconds <= 0 {
		cfg.MinIntervalSeconds = DefaultMinIntervalSeconds
	}
	if cfg.DetailLimit <= 0 {
		cfg.DetailLimit = DefaultDetailLimit
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultCycleTimeout
	}
	return &Manager{
		state:      state,
		channels:   channels,
		sessions:   sessions,
		identifier: identifier,
		sampler:    sampler,
		notifier:   notifier,
		probe:      probe,
		log:        log,
		cfg:        cfg,
		newTicker:  realTicker,
		now:        time.Now,
	}
}

// Recover fails sessions left active by a previous process. No timer exists
// for them anymore, so they can never produce detections.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	stale, err := m.sessions.ListSessionsByStatus(ctx, models.SessionActive)
	if err != nil {
		return 0, storageErr("list active sessions", err)
	}
	n := 0
	for _, s := range stale {
		if rs := m.state.get(s.ChannelID); rs != nil && rs.session.ID == s.ID {
			continue
		}
		now := m.now().UTC()
		if err := m.sessions.EndSession(ctx, s.ID, models.SessionFailed, now); err != nil {
			return n, storageErr("fail stale session", err)
		}
		m.recordError(ctx, s.ID, "session interrupted by process restart")
		n++
	}
	if n > 0 {
		m.log.Warnf("Marked %d stale monitoring session(s) as failed", n)
	}
	return n, nil
}

// Start begins monitoring channelID, replacing any active session for it.
// intervalSeconds of zero selects the default interval.
func (m *Manager) Start(ctx context.Context, channelID string, intervalSeconds int, callbackURL string) (*models.MonitoringSession, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, &ValidationError{Field: "channel_id", Message: "must not be empty"}
	}
	if intervalSeconds == 0 {
		intervalSeconds = m.cfg.DefaultIntervalSeconds
	}
	if intervalSeconds < m.cfg.MinIntervalSeconds {
		return nil, &ValidationError{
			Field:   "interval_seconds",
			Message: fmt.Sprintf("must be at least %d", m.cfg.MinIntervalSeconds),
		}
	}
	callbackURL = strings.TrimSpace(callbackURL)
	if err := validateCallbackURL(callbackURL); err != nil {
		return nil, err
	}
	if m.state.isClosed() {
		return nil, ErrSchedulerClosed
	}

	channel, err := m.channels.GetChannelByID(ctx, channelID)
	if err != nil {
		return nil, storageErr("get channel", err)
	}
	if channel == nil {
		return nil, notFound("channel", channelID)
	}
	if m.probe != nil {
		if err := m.probe.Check(ctx, channel); err != nil {
			return nil, &ValidationError{Field: "channel", Message: fmt.Sprintf("%s is not available: %v", channel.Name, err)}
		}
	}

	unlock := m.state.lockChannel(channelID)
	defer unlock()

	if old := m.state.get(channelID); old != nil {
		m.log.Infof("Replacing active session %s on %s", old.session.ID, channel.Name)
		if err := m.stopSession(ctx, old); err != nil {
			return nil, err
		}
	}
	if err := m.endOrphans(ctx, channelID); err != nil {
		return nil, err
	}

	session := models.MonitoringSession{
		ID:              utils.GenerateUUID(),
		ChannelID:       channel.ID,
		ChannelName:     channel.Name,
		IntervalSeconds: intervalSeconds,
		CallbackURL:     callbackURL,
		Status:          models.SessionActive,
		StartedAt:       m.now().UTC(),
	}
	if err := m.sessions.InsertSession(ctx, &session); err != nil {
		return nil, storageErr("insert session", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	rs := &runningSession{
		session:  session,
		channel:  *channel,
		interval: time.Duration(intervalSeconds) * time.Second,
		ctx:      loopCtx,
		cancel:   cancel,
	}
	m.state.wg.Add(1)
	if !m.state.put(rs) {
		m.state.wg.Done()
		cancel()
		_ = m.sessions.EndSession(ctx, session.ID, models.SessionStopped, m.now().UTC())
		return nil, ErrSchedulerClosed
	}
	go m.loop(rs)

	m.log.Infof("Started monitoring %s every %ds (session %s)", channel.Name, intervalSeconds, session.ID)
	return &session, nil
}

// endOrphans stops persisted active sessions for the channel that have no timer.
func (m *Manager) endOrphans(ctx context.Context, channelID string) error {
	active, err := m.sessions.ListSessionsByStatus(ctx, models.SessionActive)
	if err != nil {
		return storageErr("list active sessions", err)
	}
	for _, s := range active {
		if s.ChannelID != channelID {
			continue
		}
		if err := m.sessions.EndSession(ctx, s.ID, models.SessionStopped, m.now().UTC()); err != nil {
			return storageErr("end session", err)
		}
	}
	return nil
}

// Stop ends the active session for channelID.
func (m *Manager) Stop(ctx context.Context, channelID string) (*models.MonitoringSession, error) {
	channelID = strings.TrimSpace(channelID)
	unlock := m.state.lockChannel(channelID)
	defer unlock()

	rs := m.state.get(channelID)
	if rs == nil {
		return nil, notFound("active monitoring session for channel", channelID)
	}
	if err := m.stopSession(ctx, rs); err != nil {
		return nil, err
	}

	stored, err := m.sessions.GetSession(ctx, rs.session.ID)
	if err != nil || stored == nil {
		s := rs.session
		s.Status = models.SessionStopped
		ended := m.now().UTC()
		s.EndedAt = &ended
		return &s, nil
	}
	return stored, nil
}

// stopSession cancels the timer and persists STOPPED. The timer is cancelled
// even when the write fails.
func (m *Manager) stopSession(ctx context.Context, rs *runningSession) error {
	rs.cancel()
	m.state.remove(rs.session.ChannelID, rs.session.ID)
	if err := m.sessions.EndSession(ctx, rs.session.ID, models.SessionStopped, m.now().UTC()); err != nil {
		return storageErr("end session", err)
	}
	m.log.Infof("Stopped monitoring session %s (%s), %d tick(s) skipped",
		rs.session.ID, rs.channel.Name, rs.skipped.Load())
	return nil
}

// ListActive returns every active session with its channel name.
func (m *Manager) ListActive(ctx context.Context) ([]models.MonitoringSession, error) {
	sessions, err := m.sessions.ListSessionsByStatus(ctx, models.SessionActive)
	if err != nil {
		return nil, storageErr("list active sessions", err)
	}
	return sessions, nil
}

// GetDetails returns a session with its most recent detections and errors.
func (m *Manager) GetDetails(ctx context.Context, sessionID string) (*models.SessionDetails, error) {
	session, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storageErr("get session", err)
	}
	if session == nil {
		return nil, notFound("monitoring session", sessionID)
	}
	detections, err := m.sessions.RecentSessionDetections(ctx, sessionID, m.cfg.DetailLimit)
	if err != nil {
		return nil, storageErr("recent session detections", err)
	}
	errs, err := m.sessions.RecentSessionErrors(ctx, sessionID, m.cfg.DetailLimit)
	if err != nil {
		return nil, storageErr("recent session errors", err)
	}
	return &models.SessionDetails{
		Session:          *session,
		RecentDetections: detections,
		RecentErrors:     errs,
	}, nil
}

// SkippedTicks reports how many ticks the active session for channelID dropped
// because a cycle was still running.
func (m *Manager) SkippedTicks(channelID string) int64 {
	if rs := m.state.get(channelID); rs != nil {
		return rs.skipped.Load()
	}
	return 0
}

// Shutdown stops every active session and waits for loops and in-flight
// cycles to finish, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, rs := range m.state.close() {
		unlock := m.state.lockChannel(rs.session.ChannelID)
		if err := m.stopSession(ctx, rs); err != nil {
			errs = append(errs, err)
		}
		unlock()
	}
	if err := m.state.wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("waiting for sampling cycles: %w", err))
	}
	return errors.Join(errs...)
}

func (m *Manager) loop(rs *runningSession) {
	defer m.state.wg.Done()

	m.dispatch(rs)

	ticks, stop := m.newTicker(rs.interval)
	defer stop()
	for {
		select {
		case <-rs.ctx.Done():
			return
		case <-ticks:
			m.dispatch(rs)
		}
	}
}

// dispatch starts a cycle on its own goroutine unless one is still running.
func (m *Manager) dispatch(rs *runningSession) {
	if rs.ctx.Err() != nil {
		return
	}
	if !rs.inFlight.CompareAndSwap(false, true) {
		n := rs.skipped.Add(1)
		m.log.Debugf("Session %s: previous cycle still running, skipping tick (%d skipped)", rs.session.ID, n)
		return
	}
	m.state.wg.Add(1)
	go func() {
		defer m.state.wg.Done()
		defer rs.inFlight.Store(false)
		m.cycle(rs)
	}()
}

// cycle captures, identifies and books one sample. It runs on its own context,
// not rs.ctx, so Stop never interrupts a write in progress.
func (m *Manager) cycle(rs *runningSession) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CycleTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			m.log.Errorf("Session %s: sampling cycle panicked: %v", rs.session.ID, r)
			m.recordError(ctx, rs.session.ID, fmt.Sprintf("panic: %v", r))
		}
	}()

	sample, err := m.sampler.Capture(ctx, rs.channel.StreamURL)
	if err != nil {
		m.log.Warnf("Session %s: capture from %s failed: %v", rs.session.ID, rs.channel.Name, err)
		return
	}
	if sample == nil || len(sample.Data) == 0 {
		m.log.Debugf("Session %s: no sample captured, skipping cycle", rs.session.ID)
		return
	}

	outcome, err := m.identifier.Identify(ctx, rs.channel.ID, sample, sample.CapturedAt)
	if err != nil {
		m.log.Errorf("Session %s: identification failed: %v", rs.session.ID, err)
		m.recordError(ctx, rs.session.ID, err.Error())
		return
	}
	if !outcome.Matched {
		return
	}

	result := outcome.Result
	if err := m.sessions.RecordSessionDetection(ctx, rs.session.ID, result.DetectionID, m.now().UTC()); err != nil {
		m.log.Errorf("Session %s: booking detection %s failed: %v", rs.session.ID, result.DetectionID, err)
		m.recordError(ctx, rs.session.ID, storageErr("record session detection", err).Error())
		return
	}

	if rs.session.CallbackURL != "" && m.notifier != nil {
		if err := m.notifier.Post(ctx, rs.session.CallbackURL, callbackPayload(rs.session, result)); err != nil {
			m.log.Warnf("Session %s: callback to %s failed: %v", rs.session.ID, rs.session.CallbackURL, err)
		}
	}
}

func (m *Manager) recordError(ctx context.Context, sessionID, message string) {
	e := &models.MonitoringError{
		ID:         utils.GenerateUUID(),
		SessionID:  sessionID,
		Message:    message,
		OccurredAt: m.now().UTC(),
	}
	if err := m.sessions.InsertSessionError(ctx, e); err != nil {
		m.log.Errorf("Session %s: could not record error %q: %v", sessionID, message, err)
	}
}

// CallbackPayload is POSTed to a session's callback URL for every detection.
type CallbackPayload struct {
	Event         string       `json:"event"`
	SessionID     string       `json:"session_id"`
	ChannelID     string       `json:"channel_id"`
	ChannelName   string       `json:"channel_name"`
	DetectionID   string       `json:"detection_id"`
	Song          CallbackSong `json:"song"`
	Confidence    float64      `json:"confidence"`
	Provider      string       `json:"provider"`
	PlayTimestamp time.Time    `json:"play_timestamp"`
	EndTimestamp  *time.Time   `json:"end_timestamp,omitempty"`
	DetectedAt    time.Time    `json:"detected_at"`
}

type CallbackSong struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
	ISRC   string `json:"isrc,omitempty"`
}

func callbackPayload(s models.MonitoringSession, r *models.DetectionResult) CallbackPayload {
	return CallbackPayload{
		Event:       "detection",
		SessionID:   s.ID,
		ChannelID:   r.Channel.ID,
		ChannelName: r.Channel.Name,
		DetectionID: r.DetectionID,
		Song: CallbackSong{
			ID:     r.SongID,
			Title:  r.Song.Title,
			Artist: r.Song.Artist,
			Album:  r.Song.Album,
			ISRC:   r.Song.ISRC,
		},
		Confidence:    r.Confidence,
		Provider:      r.Provider,
		PlayTimestamp: r.PlayTimestamp,
		EndTimestamp:  r.EndTimestamp,
		DetectedAt:    r.DetectedAt,
	}
}

func validateCallbackURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "callback_url", Message: "must be an absolute http(s) URL"}
	}
	return nil
}
