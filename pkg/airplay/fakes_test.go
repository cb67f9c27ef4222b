package airplay

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/logger"
	"github.com/himanishpuri/AirplayDNA/pkg/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeProviderA struct {
	res   *models.ProviderAResult
	err   error
	calls atomic.Int32
}

func (f *fakeProviderA) Name() string { return "provider-a" }

func (f *fakeProviderA) Lookup(context.Context, *models.AudioSample) (*models.ProviderAResult, error) {
	f.calls.Add(1)
	return f.res, f.err
}

type fakeProviderB struct {
	res   *models.ProviderBResult
	err   error
	calls atomic.Int32
}

func (f *fakeProviderB) Name() string { return "provider-b" }

func (f *fakeProviderB) Lookup(context.Context, *models.AudioSample) (*models.ProviderBResult, error) {
	f.calls.Add(1)
	return f.res, f.err
}

// fakeSampler returns a fixed clip. When release is set, Capture blocks until
// it is closed and signals started first.
type fakeSampler struct {
	empty   bool
	err     error
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (f *fakeSampler) Capture(ctx context.Context, streamURL string) (*models.AudioSample, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return nil, nil
	}
	return &models.AudioSample{
		Data:       []byte("RIFF-clip"),
		Format:     "wav",
		CapturedAt: time.Now().UTC(),
		Source:     streamURL,
	}, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	posts []CallbackPayload
	err   error
}

func (f *fakeNotifier) Post(_ context.Context, _ string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := payload.(CallbackPayload); ok {
		f.posts = append(f.posts, p)
	}
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

type fakeProbe struct {
	err error
}

func (f fakeProbe) Check(context.Context, *models.Channel) error { return f.err }

func newTestStorage(t *testing.T) Storage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "airplay_test.sqlite3"))
	if err != nil {
		t.Fatalf("Failed to create test storage: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func newTestLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return logger.FromZap(zap.New(core), zap.NewAtomicLevelAt(zap.DebugLevel)), logs
}

func seedChannel(t *testing.T, s Storage, id, name string) {
	t.Helper()
	w := s.(ChannelWriter)
	ch := &models.Channel{ID: id, Name: name, StreamURL: "http://stream.example/" + id, Type: models.ChannelRadio}
	if err := w.CreateChannel(context.Background(), ch); err != nil {
		t.Fatalf("Failed to seed channel: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func sevenSecondsResult() *models.ProviderAResult {
	return &models.ProviderAResult{
		Candidates: []models.ProviderACandidate{{
			TrackID: "acoustid-7s",
			Score:   0.85,
			Recordings: []models.ProviderARecording{{
				ID:          "rec-7s",
				Title:       "7 Seconds",
				Artists:     []string{"Youssou N'Dour"},
				DurationSec: 250,
				ISRCs:       []string{"FRGFV9400246"},
			}},
		}},
		Raw: []byte(`{"status":"ok"}`),
	}
}
