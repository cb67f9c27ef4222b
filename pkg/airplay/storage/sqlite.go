package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/himanishpuri/AirplayDNA/pkg/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "airplaydna.sqlite3"
const errDBClientNil = "db client is nil"

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Channel struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Name      string `gorm:"not null"`
	StreamURL string `gorm:"not null"`
	Type      string `gorm:"type:varchar(10);not null;default:radio"`
	Status    string `gorm:"type:varchar(20);not null;default:active"`
	CreatedAt time.Time
}

type Song struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	Title       string `gorm:"not null;uniqueIndex:idx_song_unique,priority:1"`
	Artist      string `gorm:"not null;uniqueIndex:idx_song_unique,priority:2"`
	Album       string
	ISRC        *string `gorm:"column:isrc;type:varchar(12);uniqueIndex:idx_song_isrc"`
	DurationSec *int
	Fingerprint *string `gorm:"uniqueIndex:idx_song_fingerprint"`
	ReleaseYear int
	Metadata    datatypes.JSON
	CreatedAt   time.Time
}

type Detection struct {
	ID               string    `gorm:"primaryKey;type:varchar(36)"`
	SongID           string    `gorm:"type:varchar(36);not null;index:idx_detection_song"`
	ChannelID        string    `gorm:"type:varchar(36);not null;index:idx_detection_channel_time,priority:1"`
	PlayTimestamp    time.Time `gorm:"not null"`
	EndTimestamp     *time.Time
	DurationSec      *int
	Confidence       float64
	PlaybackPosition float64
	DetectedAt       time.Time `gorm:"not null;index:idx_detection_channel_time,priority:2;index:idx_detection_time"`
	Provider         string    `gorm:"type:varchar(32)"`
	RawPayload       datatypes.JSON
}

func (Detection) TableName() string { return "airplay_detections" }

type Correction struct {
	ID              string `gorm:"primaryKey;type:varchar(36)"`
	DetectionID     string `gorm:"type:varchar(36);not null;index:idx_correction_detection"`
	CorrectedSongID string `gorm:"type:varchar(36);not null"`
	Reason          string
	CorrectedBy     string
	CreatedAt       time.Time `gorm:"not null"`
}

func (Correction) TableName() string { return "manual_corrections" }

type Session struct {
	ID              string `gorm:"primaryKey;type:varchar(36)"`
	ChannelID       string `gorm:"type:varchar(36);not null;index:idx_session_channel"`
	IntervalSeconds int    `gorm:"not null"`
	CallbackURL     string
	Status          string    `gorm:"type:varchar(20);not null;index:idx_session_status"`
	StartedAt       time.Time `gorm:"not null"`
	EndedAt         *time.Time
	LastDetectionAt *time.Time
	DetectionCount  int `gorm:"not null;default:0"`
}

func (Session) TableName() string { return "monitoring_sessions" }

type SessionDetection struct {
	SessionID   string    `gorm:"primaryKey;type:varchar(36)"`
	DetectionID string    `gorm:"primaryKey;type:varchar(36)"`
	RecordedAt  time.Time `gorm:"not null;index:idx_session_detection_time"`
}

func (SessionDetection) TableName() string { return "monitoring_session_detections" }

type SessionError struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)"`
	SessionID  string    `gorm:"type:varchar(36);not null;index:idx_session_error,priority:1"`
	Message    string    `gorm:"not null"`
	OccurredAt time.Time `gorm:"not null;index:idx_session_error,priority:2"`
}

func (SessionError) TableName() string { return "monitoring_errors" }

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("AIRPLAY_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// SQLite allows one writer; a single connection serializes the
	// backfill and session-counter updates.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Channel{}, &Song{}, &Detection{}, &Correction{},
		&Session{}, &SessionDetection{}, &SessionError{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) ready() error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// first runs q.Take and maps a miss to (false, nil).
func first(q *gorm.DB, dest any) (bool, error) {
	err := q.Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Channels

func (c *DBClient) CreateChannel(ctx context.Context, ch *models.Channel) error {
	if err := c.ready(); err != nil {
		return err
	}
	row := Channel{
		ID:        ch.ID,
		Name:      ch.Name,
		StreamURL: ch.StreamURL,
		Type:      string(ch.Type),
		Status:    ch.Status,
	}
	if row.Type == "" {
		row.Type = string(models.ChannelRadio)
	}
	if row.Status == "" {
		row.Status = models.ChannelStatusActive
	}
	if err := c.DB.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("creating channel %s: %w", ch.ID, models.ErrDuplicate)
		}
		return fmt.Errorf("creating channel: %w", err)
	}
	ch.Type = models.ChannelType(row.Type)
	ch.Status = row.Status
	return nil
}

func (c *DBClient) GetChannelByID(ctx context.Context, id string) (*models.Channel, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var row Channel
	ok, err := first(c.DB.WithContext(ctx).Where("id = ?", id), &row)
	if err != nil {
		return nil, fmt.Errorf("querying channel: %w", err)
	}
	if !ok {
		return nil, nil
	}
	ch := toChannel(row)
	return &ch, nil
}

func (c *DBClient) ListChannels(ctx context.Context) ([]models.Channel, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rows []Channel
	if err := c.DB.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	out := make([]models.Channel, 0, len(rows))
	for _, r := range rows {
		out = append(out, toChannel(r))
	}
	return out, nil
}

func toChannel(r Channel) models.Channel {
	return models.Channel{
		ID:        r.ID,
		Name:      r.Name,
		StreamURL: r.StreamURL,
		Type:      models.ChannelType(r.Type),
		Status:    r.Status,
	}
}

// Songs

func (c *DBClient) findSong(ctx context.Context, query string, args ...any) (*models.Song, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var row Song
	ok, err := first(c.DB.WithContext(ctx).Where(query, args...), &row)
	if err != nil {
		return nil, fmt.Errorf("querying song: %w", err)
	}
	if !ok {
		return nil, nil
	}
	s := toSong(row)
	return &s, nil
}

func (c *DBClient) FindSongByFingerprint(ctx context.Context, fingerprint string) (*models.Song, error) {
	return c.findSong(ctx, "fingerprint = ?", fingerprint)
}

func (c *DBClient) FindSongByISRC(ctx context.Context, isrc string) (*models.Song, error) {
	return c.findSong(ctx, "isrc = ?", isrc)
}

func (c *DBClient) FindSongByTitleArtist(ctx context.Context, title, artist string) (*models.Song, error) {
	return c.findSong(ctx, "title = ? AND artist = ?", title, artist)
}

func (c *DBClient) GetSongByID(ctx context.Context, id string) (*models.Song, error) {
	return c.findSong(ctx, "id = ?", id)
}

// InsertSong creates a song row. A unique-constraint conflict on title/artist,
// ISRC or fingerprint is reported as models.ErrDuplicate.
func (c *DBClient) InsertSong(ctx context.Context, s *models.Song) error {
	if err := c.ready(); err != nil {
		return err
	}
	row := Song{
		ID:          s.ID,
		Title:       s.Title,
		Artist:      s.Artist,
		Album:       s.Album,
		ISRC:        s.ISRC,
		DurationSec: s.DurationSec,
		Fingerprint: s.Fingerprint,
		ReleaseYear: s.ReleaseYear,
		Metadata:    datatypes.JSON(s.Metadata),
		CreatedAt:   s.CreatedAt.UTC(),
	}
	if err := c.DB.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("creating song %q by %q: %w", s.Title, s.Artist, models.ErrDuplicate)
		}
		return fmt.Errorf("creating song: %w", err)
	}
	return nil
}

// BackfillSong sets isrc and fingerprint only where the stored value is NULL,
// in a single statement.
func (c *DBClient) BackfillSong(ctx context.Context, id string, isrc, fingerprint *string) error {
	if err := c.ready(); err != nil {
		return err
	}
	updates := map[string]any{}
	if isrc != nil {
		updates["isrc"] = gorm.Expr("COALESCE(isrc, ?)", *isrc)
	}
	if fingerprint != nil {
		updates["fingerprint"] = gorm.Expr("COALESCE(fingerprint, ?)", *fingerprint)
	}
	if len(updates) == 0 {
		return nil
	}
	err := c.DB.WithContext(ctx).Model(&Song{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("backfilling song %s: %w", id, models.ErrDuplicate)
		}
		return fmt.Errorf("backfilling song %s: %w", id, err)
	}
	return nil
}

func toSong(r Song) models.Song {
	return models.Song{
		ID:          r.ID,
		Title:       r.Title,
		Artist:      r.Artist,
		Album:       r.Album,
		ISRC:        r.ISRC,
		DurationSec: r.DurationSec,
		Fingerprint: r.Fingerprint,
		ReleaseYear: r.ReleaseYear,
		Metadata:    json.RawMessage(r.Metadata),
		CreatedAt:   r.CreatedAt,
	}
}

// Detections

func (c *DBClient) InsertDetection(ctx context.Context, d *models.AirplayDetection) error {
	if err := c.ready(); err != nil {
		return err
	}
	row := Detection{
		ID:               d.ID,
		SongID:           d.SongID,
		ChannelID:        d.ChannelID,
		PlayTimestamp:    d.PlayTimestamp.UTC(),
		EndTimestamp:     utcPtr(d.EndTimestamp),
		DurationSec:      d.DurationSec,
		Confidence:       d.Confidence,
		PlaybackPosition: d.PlaybackPosition,
		DetectedAt:       d.DetectedAt.UTC(),
		Provider:         d.Provider,
		RawPayload:       datatypes.JSON(d.RawPayload),
	}
	if err := c.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("creating detection: %w", err)
	}
	return nil
}

func (c *DBClient) GetDetectionByID(ctx context.Context, id string) (*models.AirplayDetection, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var row Detection
	ok, err := first(c.DB.WithContext(ctx).Where("id = ?", id), &row)
	if err != nil {
		return nil, fmt.Errorf("querying detection: %w", err)
	}
	if !ok {
		return nil, nil
	}
	d := toDetection(row)
	return &d, nil
}

func toDetection(r Detection) models.AirplayDetection {
	return models.AirplayDetection{
		ID:               r.ID,
		SongID:           r.SongID,
		ChannelID:        r.ChannelID,
		PlayTimestamp:    r.PlayTimestamp,
		EndTimestamp:     r.EndTimestamp,
		DurationSec:      r.DurationSec,
		Confidence:       r.Confidence,
		PlaybackPosition: r.PlaybackPosition,
		DetectedAt:       r.DetectedAt,
		Provider:         r.Provider,
		RawPayload:       json.RawMessage(r.RawPayload),
	}
}

// detectionRow is a detection joined with its song and channel.
type detectionRow struct {
	Detection   `gorm:"embedded"`
	SongTitle   string
	SongArtist  string
	ChannelName string
}

const detectionColumns = "d.*, s.title AS song_title, s.artist AS song_artist, c.name AS channel_name"

func (c *DBClient) detectionsJoined(ctx context.Context) *gorm.DB {
	return c.DB.WithContext(ctx).
		Table("airplay_detections AS d").
		Joins("JOIN songs s ON s.id = d.song_id").
		Joins("LEFT JOIN channels c ON c.id = d.channel_id")
}

// QueryDetections returns one page of detections, newest play first, and the
// total number of rows matching the filters.
func (c *DBClient) QueryDetections(ctx context.Context, q models.DetectionQuery) ([]models.DetectionView, int64, error) {
	if err := c.ready(); err != nil {
		return nil, 0, err
	}
	filtered := func() *gorm.DB {
		tx := c.detectionsJoined(ctx)
		if q.ChannelID != "" {
			tx = tx.Where("d.channel_id = ?", q.ChannelID)
		}
		if q.StartDate != nil {
			tx = tx.Where("d.detected_at >= ?", q.StartDate.UTC())
		}
		if q.EndDate != nil {
			tx = tx.Where("d.detected_at <= ?", q.EndDate.UTC())
		}
		return tx
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting detections: %w", err)
	}
	if total == 0 {
		return []models.DetectionView{}, 0, nil
	}

	var rows []detectionRow
	err := filtered().
		Select(detectionColumns).
		Order("d.detected_at DESC, d.id DESC").
		Limit(q.Limit).
		Offset((q.Page - 1) * q.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("querying detections: %w", err)
	}

	views, err := c.toViews(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (c *DBClient) InsertCorrection(ctx context.Context, mc *models.ManualCorrection) error {
	if err := c.ready(); err != nil {
		return err
	}
	row := Correction{
		ID:              mc.ID,
		DetectionID:     mc.DetectionID,
		CorrectedSongID: mc.CorrectedSongID,
		Reason:          mc.Reason,
		CorrectedBy:     mc.CorrectedBy,
		CreatedAt:       mc.CreatedAt.UTC(),
	}
	if err := c.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("creating correction: %w", err)
	}
	return nil
}

// toViews converts joined rows and attaches the latest correction of each
// detection together with the song it points at.
func (c *DBClient) toViews(ctx context.Context, rows []detectionRow) ([]models.DetectionView, error) {
	views := make([]models.DetectionView, 0, len(rows))
	if len(rows) == 0 {
		return views, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	var corrections []Correction
	err := c.DB.WithContext(ctx).
		Where("detection_id IN ?", ids).
		Order("created_at DESC, id DESC").
		Find(&corrections).Error
	if err != nil {
		return nil, fmt.Errorf("querying corrections: %w", err)
	}
	latest := make(map[string]Correction, len(corrections))
	songIDs := make([]string, 0, len(corrections))
	for _, corr := range corrections {
		if _, seen := latest[corr.DetectionID]; seen {
			continue
		}
		latest[corr.DetectionID] = corr
		songIDs = append(songIDs, corr.CorrectedSongID)
	}

	corrected := make(map[string]Song, len(songIDs))
	if len(songIDs) > 0 {
		var songs []Song
		if err := c.DB.WithContext(ctx).Where("id IN ?", songIDs).Find(&songs).Error; err != nil {
			return nil, fmt.Errorf("querying corrected songs: %w", err)
		}
		for _, s := range songs {
			corrected[s.ID] = s
		}
	}

	for _, r := range rows {
		v := models.DetectionView{
			AirplayDetection: toDetection(r.Detection),
			Song:             models.SongRef{ID: r.SongID, Title: r.SongTitle, Artist: r.SongArtist},
			ChannelName:      r.ChannelName,
		}
		v.CurrentSong = v.Song
		if corr, ok := latest[r.ID]; ok {
			v.Correction = &models.ManualCorrection{
				ID:              corr.ID,
				DetectionID:     corr.DetectionID,
				CorrectedSongID: corr.CorrectedSongID,
				Reason:          corr.Reason,
				CorrectedBy:     corr.CorrectedBy,
				CreatedAt:       corr.CreatedAt,
			}
			s := corrected[corr.CorrectedSongID]
			v.CurrentSong = models.SongRef{ID: corr.CorrectedSongID, Title: s.Title, Artist: s.Artist}
		}
		views = append(views, v)
	}
	return views, nil
}

// Sessions

type sessionRow struct {
	Session     `gorm:"embedded"`
	ChannelName string
}

func (c *DBClient) sessionsJoined(ctx context.Context) *gorm.DB {
	return c.DB.WithContext(ctx).
		Table("monitoring_sessions AS ms").
		Select("ms.*, c.name AS channel_name").
		Joins("LEFT JOIN channels c ON c.id = ms.channel_id")
}

func (c *DBClient) InsertSession(ctx context.Context, s *models.MonitoringSession) error {
	if err := c.ready(); err != nil {
		return err
	}
	row := Session{
		ID:              s.ID,
		ChannelID:       s.ChannelID,
		IntervalSeconds: s.IntervalSeconds,
		CallbackURL:     s.CallbackURL,
		Status:          string(s.Status),
		StartedAt:       s.StartedAt.UTC(),
		EndedAt:         utcPtr(s.EndedAt),
		LastDetectionAt: utcPtr(s.LastDetectionAt),
		DetectionCount:  s.DetectionCount,
	}
	if err := c.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// EndSession moves an active session to status. Sessions that already ended
// are left as they are.
func (c *DBClient) EndSession(ctx context.Context, id string, status models.SessionStatus, endedAt time.Time) error {
	if err := c.ready(); err != nil {
		return err
	}
	err := c.DB.WithContext(ctx).
		Model(&Session{}).
		Where("id = ? AND status = ?", id, string(models.SessionActive)).
		Updates(map[string]any{"status": string(status), "ended_at": endedAt.UTC()}).Error
	if err != nil {
		return fmt.Errorf("ending session %s: %w", id, err)
	}
	return nil
}

func (c *DBClient) GetSession(ctx context.Context, id string) (*models.MonitoringSession, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rows []sessionRow
	if err := c.sessionsJoined(ctx).Where("ms.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	s := toSession(rows[0])
	return &s, nil
}

func (c *DBClient) ListSessionsByStatus(ctx context.Context, status models.SessionStatus) ([]models.MonitoringSession, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rows []sessionRow
	err := c.sessionsJoined(ctx).
		Where("ms.status = ?", string(status)).
		Order("ms.started_at DESC, ms.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	out := make([]models.MonitoringSession, 0, len(rows))
	for _, r := range rows {
		out = append(out, toSession(r))
	}
	return out, nil
}

// RecordSessionDetection links the detection to the session and bumps the
// session's counter and last detection time in one transaction.
func (c *DBClient) RecordSessionDetection(ctx context.Context, sessionID, detectionID string, at time.Time) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		link := SessionDetection{SessionID: sessionID, DetectionID: detectionID, RecordedAt: at.UTC()}
		if err := tx.Create(&link).Error; err != nil {
			return fmt.Errorf("linking detection to session: %w", err)
		}
		res := tx.Model(&Session{}).
			Where("id = ?", sessionID).
			Updates(map[string]any{
				"detection_count":   gorm.Expr("detection_count + 1"),
				"last_detection_at": at.UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("updating session counters: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("session %s: %w", sessionID, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

func (c *DBClient) InsertSessionError(ctx context.Context, e *models.MonitoringError) error {
	if err := c.ready(); err != nil {
		return err
	}
	row := SessionError{
		ID:         e.ID,
		SessionID:  e.SessionID,
		Message:    e.Message,
		OccurredAt: e.OccurredAt.UTC(),
	}
	if err := c.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("creating session error: %w", err)
	}
	return nil
}

func (c *DBClient) RecentSessionDetections(ctx context.Context, sessionID string, limit int) ([]models.DetectionView, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rows []detectionRow
	err := c.detectionsJoined(ctx).
		Select(detectionColumns).
		Joins("JOIN monitoring_session_detections msd ON msd.detection_id = d.id").
		Where("msd.session_id = ?", sessionID).
		Order("msd.recorded_at DESC, d.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying session detections: %w", err)
	}
	return c.toViews(ctx, rows)
}

func (c *DBClient) RecentSessionErrors(ctx context.Context, sessionID string, limit int) ([]models.MonitoringError, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var rows []SessionError
	err := c.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("occurred_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying session errors: %w", err)
	}
	out := make([]models.MonitoringError, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.MonitoringError{
			ID:         r.ID,
			SessionID:  r.SessionID,
			Message:    r.Message,
			OccurredAt: r.OccurredAt,
		})
	}
	return out, nil
}

func toSession(r sessionRow) models.MonitoringSession {
	return models.MonitoringSession{
		ID:              r.ID,
		ChannelID:       r.ChannelID,
		ChannelName:     r.ChannelName,
		IntervalSeconds: r.IntervalSeconds,
		CallbackURL:     r.CallbackURL,
		Status:          models.SessionStatus(r.Status),
		StartedAt:       r.StartedAt,
		EndedAt:         r.EndedAt,
		LastDetectionAt: r.LastDetectionAt,
		DetectionCount:  r.DetectionCount,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
