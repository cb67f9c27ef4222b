package airplay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/models"
)

type identifierEnv struct {
	store Storage
	a     *fakeProviderA
	b     *fakeProviderB
	id    *Identifier
}

func setupIdentifier(t *testing.T) *identifierEnv {
	t.Helper()
	store := newTestStorage(t)
	log, _ := newTestLogger()
	seedChannel(t, store, "C1", "Channel One")

	env := &identifierEnv{store: store, a: &fakeProviderA{}, b: &fakeProviderB{}}
	env.id = NewIdentifier(store, store, NewSongResolver(store, log), env.a, env.b, log, IdentifierConfig{})
	return env
}

func testSample() *models.AudioSample {
	return &models.AudioSample{Data: []byte("clip"), Format: "wav"}
}

func TestIdentifySevenSecondsScenario(t *testing.T) {
	env := setupIdentifier(t)
	env.a.res = sevenSecondsResult()
	ctx := context.Background()
	capturedAt := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	out, err := env.id.Identify(ctx, "C1", testSample(), capturedAt)
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if !out.Matched {
		t.Fatal("expected a match")
	}
	if env.b.calls.Load() != 0 {
		t.Error("provider B must not be called when A matches")
	}

	res := out.Result
	if res.Confidence != 85 {
		t.Errorf("confidence = %v, want 85", res.Confidence)
	}
	if res.Provider != "provider-a" {
		t.Errorf("provider = %q", res.Provider)
	}

	song, err := env.store.GetSongByID(ctx, res.SongID)
	if err != nil || song == nil {
		t.Fatalf("song not stored: %v", err)
	}
	if song.ISRC == nil || *song.ISRC != "FRGFV9400246" {
		t.Errorf("song ISRC = %v", song.ISRC)
	}
	if song.Title != "7 Seconds" || song.Artist != "Youssou N'Dour" {
		t.Errorf("song = %s by %s", song.Title, song.Artist)
	}

	det, err := env.store.GetDetectionByID(ctx, res.DetectionID)
	if err != nil || det == nil {
		t.Fatalf("detection not stored: %v", err)
	}
	if det.Confidence != 85 {
		t.Errorf("stored confidence = %v", det.Confidence)
	}
	if det.EndTimestamp == nil || det.EndTimestamp.Sub(det.PlayTimestamp) != 250*time.Second {
		t.Errorf("end - play = %v, want 250s", det.EndTimestamp)
	}
	if !det.DetectedAt.Equal(capturedAt) {
		t.Errorf("detected_at = %v, want %v", det.DetectedAt, capturedAt)
	}
}

func TestIdentifyFallsBackBelowThreshold(t *testing.T) {
	env := setupIdentifier(t)
	low := sevenSecondsResult()
	low.Candidates[0].Score = 0.4
	env.a.res = low
	env.b.res = &models.ProviderBResult{Match: &models.ProviderBMatch{
		Title:     "Warriors",
		Artist:    "Imagine Dragons",
		OffsetSec: 40,
		ISRCs:     []string{"usum71414443", "not-an-isrc"},
	}}

	out, err := env.id.Identify(context.Background(), "C1", testSample(), time.Now())
	if err != nil {
		t.Fatalf("Identify failed: %v", err)
	}
	if !out.Matched {
		t.Fatal("expected provider B match")
	}
	r := out.Result
	if r.Provider != "provider-b" || r.Song.Title != "Warriors" {
		t.Errorf("expected provider B song, got %s from %s", r.Song.Title, r.Provider)
	}
	if r.Confidence != DefaultProviderBConfidence {
		t.Errorf("confidence = %v, want default %v", r.Confidence, DefaultProviderBConfidence)
	}
	if r.Song.ISRC != "USUM71414443" || len(r.Song.ISRCCandidates) != 1 {
		t.Errorf("ISRC candidates = %v", r.Song.ISRCCandidates)
	}
	if r.EndTimestamp != nil {
		t.Error("end timestamp must be nil without a duration")
	}
}

func TestIdentifyProviderBConfidenceIsUsed(t *testing.T) {
	env := setupIdentifier(t)
	env.a.err = errors.New("timeout")
	env.b.res = &models.ProviderBResult{Match: &models.ProviderBMatch{Title: "Song", Confidence: 92.5}}

	out, err := env.id.Identify(context.Background(), "C1", testSample(), time.Now())
	if err != nil {
		t.Fatalf("provider A failure must be absorbed: %v", err)
	}
	if !out.Matched || out.Result.Confidence != 92.5 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Result.Song.Artist != unknownArtist {
		t.Errorf("artist = %q, want %q", out.Result.Song.Artist, unknownArtist)
	}
}

func TestIdentifyNoMatch(t *testing.T) {
	env := setupIdentifier(t)
	env.a.res = &models.ProviderAResult{}
	env.b.res = &models.ProviderBResult{}

	out, err := env.id.Identify(context.Background(), "C1", testSample(), time.Now())
	if err != nil {
		t.Fatalf("no match is not an error: %v", err)
	}
	if out.Matched || out.Result != nil {
		t.Errorf("expected no match, got %+v", out)
	}

	env.b.err = errors.New("503")
	if out, err := env.id.Identify(context.Background(), "C1", testSample(), time.Now()); err != nil || out.Matched {
		t.Errorf("provider B failure should be a plain no-match, got %+v, %v", out, err)
	}
}

func TestIdentifyUnknownChannel(t *testing.T) {
	env := setupIdentifier(t)
	env.a.res = sevenSecondsResult()

	_, err := env.id.Identify(context.Background(), "missing", testSample(), time.Now())
	if !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if ErrorKind(err) != "not_found" {
		t.Errorf("ErrorKind = %q", ErrorKind(err))
	}
	if env.a.calls.Load() != 0 {
		t.Error("providers must not be called for an unknown channel")
	}
}

func TestIdentifyRejectsEmptySample(t *testing.T) {
	env := setupIdentifier(t)
	if _, err := env.id.Identify(context.Background(), "C1", &models.AudioSample{}, time.Now()); !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestBestCandidateTieKeepsFirst(t *testing.T) {
	rec := func(title string) []models.ProviderARecording {
		return []models.ProviderARecording{{Title: title}}
	}
	cands := []models.ProviderACandidate{
		{TrackID: "untitled", Score: 0.99, Recordings: []models.ProviderARecording{{Title: " "}}},
		{TrackID: "first", Score: 0.9, Recordings: rec("A")},
		{TrackID: "second", Score: 0.9, Recordings: rec("B")},
		{TrackID: "lower", Score: 0.7, Recordings: rec("C")},
	}
	best, r := bestCandidateA(cands)
	if best == nil || best.TrackID != "first" || r.Title != "A" {
		t.Errorf("bestCandidateA = %+v", best)
	}
}

func TestPlayWindow(t *testing.T) {
	T := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	start, end := playWindow(T, 15, 200)
	if !start.Equal(T.Add(-15 * time.Second)) {
		t.Errorf("start = %v, want T-15s", start)
	}
	if end == nil || !end.Equal(T.Add(-15*time.Second).Add(200*time.Second)) {
		t.Errorf("end = %v, want T-15s+200s", end)
	}

	start, end = playWindow(T, 0, 0)
	if !start.Equal(T) || end != nil {
		t.Errorf("unknown duration: start=%v end=%v", start, end)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		score, scale, want float64
	}{
		{0.85, 1, 85},
		{0.123456, 1, 12.35},
		{1.2, 1, 100},
		{-1, 1, 0},
		{92.5, 100, 92.5},
	}
	for _, tt := range tests {
		if got := percent(tt.score, tt.scale); got != tt.want {
			t.Errorf("percent(%v, %v) = %v, want %v", tt.score, tt.scale, got, tt.want)
		}
	}
}
