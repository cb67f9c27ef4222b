package audio

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/models"
)

func sineWAV(t *testing.T, seconds float64, amplitude float64) []byte {
	t.Helper()
	const rate = 8000
	n := int(seconds * rate)
	samples := make([]int, n)
	for i := range samples {
		samples[i] = int(amplitude * 32767 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	data, err := EncodeWAV(samples, rate)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	return data
}

func TestSampleFromBytesWAV(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sample, err := SampleFromBytes(sineWAV(t, 2, 0.5), "wav", "test", at)
	if err != nil {
		t.Fatalf("SampleFromBytes: %v", err)
	}
	if sample.SampleRate != 8000 {
		t.Errorf("sample rate = %d, want 8000", sample.SampleRate)
	}
	if d := sample.Duration; d < 1900*time.Millisecond || d > 2100*time.Millisecond {
		t.Errorf("duration = %v, want ~2s", d)
	}
	if !sample.CapturedAt.Equal(at) || sample.Source != "test" {
		t.Errorf("unexpected sample metadata %+v", sample)
	}
}

func TestSampleFromBytesSilence(t *testing.T) {
	_, err := SampleFromBytes(sineWAV(t, 1, 0), "wav", "test", time.Now())
	if !errors.Is(err, ErrSilence) {
		t.Fatalf("expected ErrSilence, got %v", err)
	}
}

func TestSampleFromBytesPassthrough(t *testing.T) {
	sample, err := SampleFromBytes([]byte("ID3\x03mp3data"), "mp3", "upload", time.Now())
	if err != nil {
		t.Fatalf("SampleFromBytes: %v", err)
	}
	if sample.Format != "mp3" || sample.SampleRate != 0 {
		t.Errorf("unexpected sample %+v", sample)
	}

	empty, err := SampleFromBytes(nil, "mp3", "upload", time.Now())
	if err != nil || empty != nil {
		t.Errorf("empty input should yield (nil, nil), got %v, %v", empty, err)
	}
}

func TestInspectWAVRejectsGarbage(t *testing.T) {
	if _, err := SampleFromBytes([]byte("RIFFnot really a wav"), "wav", "x", time.Now()); err == nil {
		t.Fatal("expected error for invalid WAV data")
	}
}

func TestLoadSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, sineWAV(t, 1, 0.3), 0o644); err != nil {
		t.Fatal(err)
	}
	sample, err := LoadSample(path, path, time.Now())
	if err != nil {
		t.Fatalf("LoadSample: %v", err)
	}
	if sample.Format != "wav" || len(sample.Data) == 0 {
		t.Errorf("unexpected sample %+v", sample)
	}
}

func TestStreamProbe(t *testing.T) {
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte{0xFF, 0xFB, 0x90})
	}))
	defer live.Close()
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer dead.Close()

	file := filepath.Join(t.TempDir(), "stream.mp3")
	if err := os.WriteFile(file, []byte{1}, 0o644); err != nil {
		t.Fatal(err)
	}

	probe := NewStreamProbeWithClient(live.Client())
	tests := []struct {
		name    string
		channel models.Channel
		wantErr bool
	}{
		{"live http", models.Channel{StreamURL: live.URL, Status: "active"}, false},
		{"http 404", models.Channel{StreamURL: dead.URL, Status: "active"}, true},
		{"inactive", models.Channel{StreamURL: live.URL, Status: "disabled"}, true},
		{"local file", models.Channel{StreamURL: file, Status: "active"}, false},
		{"file url", models.Channel{StreamURL: "file://" + file, Status: "active"}, false},
		{"missing file", models.Channel{StreamURL: file + ".nope", Status: "active"}, true},
		{"empty url", models.Channel{Status: "active"}, true},
		{"rtsp passthrough", models.Channel{StreamURL: "rtsp://example.invalid/live", Status: "active"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := tt.channel
			err := probe.Check(context.Background(), &ch)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
