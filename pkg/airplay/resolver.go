package airplay

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/airplay/isrc"
	"github.com/himanishpuri/AirplayDNA/pkg/models"
	"github.com/himanishpuri/AirplayDNA/pkg/utils"
)

// SongResolver maps a song candidate onto a single Song identity.
//
// Lookup precedence is fingerprint, then ISRC, then exact (title, artist);
// the first hit wins. A hit may backfill a missing ISRC or fingerprint on the
// stored record but never replaces one that is already set, and title/artist
// are never rewritten. Only a full miss creates a new Song.
type SongResolver struct {
	songs SongStore
	log   Logger
	now   func() time.Time
}

func NewSongResolver(songs SongStore, log Logger) *SongResolver {
	return &SongResolver{songs: songs, log: log, now: time.Now}
}

// Resolve returns the ID of the song matching c, creating it if needed.
func (r *SongResolver) Resolve(ctx context.Context, c models.SongData) (string, error) {
	fp := strings.TrimSpace(c.Fingerprint)
	code := ""
	if c.ISRC != "" && isrc.Validate(c.ISRC) {
		code = isrc.Normalize(c.ISRC)
	}
	title := strings.TrimSpace(c.Title)
	artist := strings.TrimSpace(c.Artist)

	if id, ok, err := r.lookup(ctx, title, artist, code, fp); err != nil || ok {
		return id, err
	}
	if title == "" {
		return "", &ValidationError{Field: "title", Message: "song candidate has no title"}
	}

	song := &models.Song{
		ID:          utils.GenerateUUID(),
		Title:       title,
		Artist:      artist,
		Album:       strings.TrimSpace(c.Album),
		ReleaseYear: c.ReleaseYear,
		Metadata:    c.Metadata,
		CreatedAt:   r.now().UTC(),
	}
	if code != "" {
		song.ISRC = &code
	}
	if fp != "" {
		song.Fingerprint = &fp
	}
	if c.DurationSec > 0 {
		d := int(math.Round(c.DurationSec))
		song.DurationSec = &d
	}

	if err := r.songs.InsertSong(ctx, song); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			// Lost a creation race; the winner may hold the fingerprint or ISRC.
			if id, ok, ferr := r.lookup(ctx, title, artist, code, fp); ferr != nil || ok {
				return id, ferr
			}
		}
		return "", storageErr("insert song", err)
	}

	r.log.Infof("Created song %s: %s by %s", song.ID, song.Title, song.Artist)
	return song.ID, nil
}

// lookup runs the fingerprint, ISRC, title/artist precedence and reports
// whether any step matched.
func (r *SongResolver) lookup(ctx context.Context, title, artist, code, fp string) (string, bool, error) {
	if fp != "" {
		song, err := r.songs.FindSongByFingerprint(ctx, fp)
		if err != nil {
			return "", false, storageErr("find song by fingerprint", err)
		}
		if song != nil {
			if song.ISRC == nil && code != "" {
				r.backfill(ctx, song.ID, SongPatch{ISRC: &code})
			}
			return song.ID, true, nil
		}
	}

	if code != "" {
		song, err := r.songs.FindSongByISRC(ctx, code)
		if err != nil {
			return "", false, storageErr("find song by isrc", err)
		}
		if song != nil {
			if song.Fingerprint == nil && fp != "" {
				r.backfill(ctx, song.ID, SongPatch{Fingerprint: &fp})
			}
			return song.ID, true, nil
		}
	}

	if title == "" {
		return "", false, nil
	}
	return r.matchTitleArtist(ctx, title, artist, code, fp)
}

func (r *SongResolver) matchTitleArtist(ctx context.Context, title, artist, code, fp string) (string, bool, error) {
	song, err := r.songs.FindSongByTitleArtist(ctx, title, artist)
	if err != nil {
		return "", false, storageErr("find song by title/artist", err)
	}
	if song == nil {
		return "", false, nil
	}

	var patch SongPatch
	if song.ISRC == nil && code != "" {
		patch.ISRC = &code
	}
	if song.Fingerprint == nil && fp != "" {
		patch.Fingerprint = &fp
	}
	if patch.ISRC != nil || patch.Fingerprint != nil {
		r.backfill(ctx, song.ID, patch)
	}
	return song.ID, true, nil
}

// backfill failures are logged; the resolved ID stays valid.
func (r *SongResolver) backfill(ctx context.Context, id string, patch SongPatch) {
	if err := r.songs.BackfillSong(ctx, id, patch); err != nil {
		r.log.Warnf("Backfill of song %s failed: %v", id, err)
	}
}
