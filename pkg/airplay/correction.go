package airplay

import (
	"context"
	"strings"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/models"
	"github.com/himanishpuri/AirplayDNA/pkg/utils"
)

// CorrectionHandler records operator overrides. The original detection row is
// never modified; the latest correction decides a detection's current song.
type CorrectionHandler struct {
	songs      SongStore
	detections DetectionStore
	log        Logger
	now        func() time.Time
}

func NewCorrectionHandler(songs SongStore, detections DetectionStore, log Logger) *CorrectionHandler {
	return &CorrectionHandler{songs: songs, detections: detections, log: log, now: time.Now}
}

func (h *CorrectionHandler) Correct(ctx context.Context, detectionID, songID, reason, correctedBy string) (*models.ManualCorrection, error) {
	detectionID = strings.TrimSpace(detectionID)
	songID = strings.TrimSpace(songID)
	if detectionID == "" {
		return nil, &ValidationError{Field: "detection_id", Message: "must not be empty"}
	}
	if songID == "" {
		return nil, &ValidationError{Field: "song_id", Message: "must not be empty"}
	}

	detection, err := h.detections.GetDetectionByID(ctx, detectionID)
	if err != nil {
		return nil, storageErr("get detection", err)
	}
	if detection == nil {
		return nil, notFound("detection", detectionID)
	}
	song, err := h.songs.GetSongByID(ctx, songID)
	if err != nil {
		return nil, storageErr("get song", err)
	}
	if song == nil {
		return nil, notFound("song", songID)
	}

	c := &models.ManualCorrection{
		ID:              utils.GenerateUUID(),
		DetectionID:     detection.ID,
		CorrectedSongID: song.ID,
		Reason:          strings.TrimSpace(reason),
		CorrectedBy:     strings.TrimSpace(correctedBy),
		CreatedAt:       h.now().UTC(),
	}
	if err := h.detections.InsertCorrection(ctx, c); err != nil {
		return nil, storageErr("insert correction", err)
	}

	h.log.Infof("Detection %s corrected from song %s to %s by %q", detection.ID, detection.SongID, song.ID, c.CorrectedBy)
	return c, nil
}
