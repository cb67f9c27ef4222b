package airplay

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/airplay/isrc"
	"github.com/himanishpuri/AirplayDNA/pkg/models"
	"github.com/himanishpuri/AirplayDNA/pkg/utils"
)

const (
	// DefaultProviderAThreshold is the minimum provider A score (0-1) accepted as a match.
	DefaultProviderAThreshold = 0.6
	// DefaultProviderBConfidence is used when provider B returns a result without a score.
	DefaultProviderBConfidence = 80.0
	DefaultProviderTimeout     = 15 * time.Second

	unknownArtist = "Unknown Artist"
)

// Outcome is the result of one identification attempt. Matched is false when
// neither provider recognized the sample, which is not an error.
type Outcome struct {
	Matched bool
	Result  *models.DetectionResult
}

// match is a provider response normalized into provider-neutral form.
type match struct {
	provider   string
	song       models.SongData
	confidence float64 // 0-100
	offsetSec  float64
	raw        json.RawMessage
}

// Identifier runs a sample through provider A, falls back to provider B,
// resolves the song and records an airplay detection.
type Identifier struct {
	channels   ChannelStore
	detections DetectionStore
	resolver   *SongResolver
	providerA  ProviderA
	providerB  ProviderB
	log        Logger

	minScoreA   float64
	defaultConf float64
	timeout     time.Duration
	now         func() time.Time
}

type IdentifierConfig struct {
	ProviderAThreshold  float64
	ProviderBConfidence float64
	ProviderTimeout     time.Duration
}

func NewIdentifier(channels ChannelStore, detections DetectionStore, resolver *SongResolver, a ProviderA, b ProviderB, log Logger, cfg IdentifierConfig) *Identifier {
	if cfg.ProviderAThreshold <= 0 {
		cfg.ProviderAThreshold = DefaultProviderAThreshold
	}
	if cfg.ProviderBConfidence <= 0 {
		cfg.ProviderBConfidence = DefaultProviderBConfidence
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	return &Identifier{
		channels:    channels,
		detections:  detections,
		resolver:    resolver,
		providerA:   a,
		providerB:   b,
		log:         log,
		minScoreA:   cfg.ProviderAThreshold,
		defaultConf: cfg.ProviderBConfidence,
		timeout:     cfg.ProviderTimeout,
		now:         time.Now,
	}
}

// Identify recognizes sample for channelID. capturedAt is the wall-clock time
// of the sampling event; zero falls back to sample.CapturedAt, then now.
//
// Provider failures are absorbed. Only a missing channel or a storage failure
// produces an error.
func (id *Identifier) Identify(ctx context.Context, channelID string, sample *models.AudioSample, capturedAt time.Time) (Outcome, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return Outcome{}, &ValidationError{Field: "channel_id", Message: "must not be empty"}
	}
	if sample == nil || len(sample.Data) == 0 {
		return Outcome{}, &ValidationError{Field: "sample", Message: "audio sample is empty"}
	}
	if capturedAt.IsZero() {
		capturedAt = sample.CapturedAt
	}
	if capturedAt.IsZero() {
		capturedAt = id.now()
	}

	channel, err := id.channels.GetChannelByID(ctx, channelID)
	if err != nil {
		return Outcome{}, storageErr("get channel", err)
	}
	if channel == nil {
		return Outcome{}, notFound("channel", channelID)
	}

	m := id.tryProviderA(ctx, sample)
	if m == nil {
		m = id.tryProviderB(ctx, sample)
	}
	if m == nil {
		id.log.Debugf("No match for channel %s sample at %s", channel.Name, capturedAt.Format(time.RFC3339))
		return Outcome{}, nil
	}

	songID, err := id.resolver.Resolve(ctx, m.song)
	if err != nil {
		return Outcome{}, err
	}

	start, end := playWindow(capturedAt, m.offsetSec, m.song.DurationSec)
	detection := &models.AirplayDetection{
		ID:               utils.GenerateUUID(),
		SongID:           songID,
		ChannelID:        channel.ID,
		PlayTimestamp:    start,
		EndTimestamp:     end,
		Confidence:       m.confidence,
		PlaybackPosition: m.offsetSec,
		DetectedAt:       capturedAt,
		Provider:         m.provider,
		RawPayload:       m.raw,
	}
	if m.song.DurationSec > 0 {
		d := int(math.Round(m.song.DurationSec))
		detection.DurationSec = &d
	}
	if err := id.detections.InsertDetection(ctx, detection); err != nil {
		return Outcome{}, storageErr("insert detection", err)
	}

	id.log.Infof("Detected %q by %s on %s (provider=%s confidence=%.0f)",
		m.song.Title, m.song.Artist, channel.Name, m.provider, m.confidence)

	return Outcome{
		Matched: true,
		Result: &models.DetectionResult{
			DetectionID:      detection.ID,
			SongID:           songID,
			Song:             m.song,
			Channel:          *channel,
			Provider:         m.provider,
			Confidence:       m.confidence,
			PlaybackPosition: m.offsetSec,
			PlayTimestamp:    start,
			EndTimestamp:     end,
			DetectedAt:       capturedAt,
		},
	}, nil
}

// playWindow back-calculates when the song started from where the sample sits
// in the recording, and when it ends if the duration is known.
func playWindow(capturedAt time.Time, offsetSec, durationSec float64) (time.Time, *time.Time) {
	start := capturedAt.Add(-seconds(offsetSec))
	if durationSec <= 0 {
		return start, nil
	}
	end := start.Add(seconds(durationSec))
	return start, &end
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func (id *Identifier) tryProviderA(ctx context.Context, sample *models.AudioSample) *match {
	if id.providerA == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, id.timeout)
	defer cancel()

	res, err := id.providerA.Lookup(ctx, sample)
	if err != nil {
		id.log.Warnf("%v; falling back", &ProviderError{Provider: id.providerA.Name(), Err: err})
		return nil
	}
	if res == nil {
		return nil
	}

	best, rec := bestCandidateA(res.Candidates)
	if best == nil {
		id.log.Debugf("Provider %s returned no usable candidates", id.providerA.Name())
		return nil
	}
	if best.Score < id.minScoreA {
		id.log.Debugf("Provider %s best score %.2f below threshold %.2f",
			id.providerA.Name(), best.Score, id.minScoreA)
		return nil
	}

	codes := append([]string{}, rec.ISRCs...)
	for _, other := range best.Recordings {
		codes = append(codes, other.ISRCs...)
	}

	song := models.SongData{
		Title:       strings.TrimSpace(rec.Title),
		Artist:      joinArtists(rec.Artists),
		Album:       strings.TrimSpace(rec.Album),
		DurationSec: rec.DurationSec,
		Fingerprint: strings.TrimSpace(best.TrackID),
		ReleaseYear: rec.ReleaseYear,
	}
	applyISRCs(&song, codes)
	song.Metadata = metadataBlob(id.providerA.Name(), map[string]any{
		"track_id":     best.TrackID,
		"recording_id": rec.ID,
		"score":        best.Score,
	})

	return &match{
		provider:   id.providerA.Name(),
		song:       song,
		confidence: percent(best.Score, 1),
		offsetSec:  best.OffsetSec,
		raw:        res.Raw,
	}
}

// bestCandidateA picks the highest-scoring candidate that carries a titled
// recording. Ties keep the first encountered.
func bestCandidateA(candidates []models.ProviderACandidate) (*models.ProviderACandidate, *models.ProviderARecording) {
	var best *models.ProviderACandidate
	var bestRec *models.ProviderARecording
	bestScore := -1.0
	for i := range candidates {
		c := &candidates[i]
		rec := firstTitled(c.Recordings)
		if rec == nil {
			continue
		}
		if c.Score > bestScore {
			best, bestRec, bestScore = c, rec, c.Score
		}
	}
	return best, bestRec
}

func firstTitled(recs []models.ProviderARecording) *models.ProviderARecording {
	for i := range recs {
		if strings.TrimSpace(recs[i].Title) != "" {
			return &recs[i]
		}
	}
	return nil
}

func (id *Identifier) tryProviderB(ctx context.Context, sample *models.AudioSample) *match {
	if id.providerB == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, id.timeout)
	defer cancel()

	res, err := id.providerB.Lookup(ctx, sample)
	if err != nil {
		id.log.Warnf("%v", &ProviderError{Provider: id.providerB.Name(), Err: err})
		return nil
	}
	if res == nil || res.Match == nil || strings.TrimSpace(res.Match.Title) == "" {
		return nil
	}
	r := res.Match

	confidence := id.defaultConf
	if r.Confidence > 0 {
		confidence = percent(r.Confidence, 100)
	}

	song := models.SongData{
		Title:       strings.TrimSpace(r.Title),
		Artist:      strings.TrimSpace(r.Artist),
		Album:       strings.TrimSpace(r.Album),
		DurationSec: r.DurationSec,
		ReleaseYear: r.ReleaseYear,
	}
	if song.Artist == "" {
		song.Artist = unknownArtist
	}
	applyISRCs(&song, r.ISRCs)
	song.Metadata = metadataBlob(id.providerB.Name(), map[string]any{
		"song_link": r.SongLink,
	})

	return &match{
		provider:   id.providerB.Name(),
		song:       song,
		confidence: confidence,
		offsetSec:  r.OffsetSec,
		raw:        res.Raw,
	}
}

func applyISRCs(song *models.SongData, codes []string) {
	song.ISRCCandidates = isrc.Candidates(codes...)
	if len(song.ISRCCandidates) > 0 {
		song.ISRC = song.ISRCCandidates[0]
	}
}

func joinArtists(artists []string) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, a)
		}
	}
	if len(names) == 0 {
		return unknownArtist
	}
	return strings.Join(names, ", ")
}

// percent converts a score on a 0-scale range into 0-100, clamped.
func percent(score, scale float64) float64 {
	v := score / scale * 100
	v = math.Round(v*100) / 100
	return math.Max(0, math.Min(100, v))
}

func metadataBlob(provider string, fields map[string]any) json.RawMessage {
	fields["provider"] = provider
	b, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return b
}
