package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/models"
	"github.com/himanishpuri/AirplayDNA/pkg/utils"
)

const (
	DefaultCaptureSeconds = 10
	DefaultSampleRate     = 11025
	// silenceLevel is the peak below which a clip counts as dead air.
	silenceLevel = 0.001
)

// ErrSilence is returned by LoadSample for clips with no audible signal.
var ErrSilence = errors.New("audio clip is silent")

type SamplerConfig struct {
	FFmpegPath string
	TempDir    string
	Seconds    int
	SampleRate int
}

// FFmpegSampler records a short mono WAV clip from a stream URL or a local
// file with ffmpeg.
type FFmpegSampler struct {
	cfg SamplerConfig
	now func() time.Time
}

func NewFFmpegSampler(cfg SamplerConfig) *FFmpegSampler {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Seconds <= 0 {
		cfg.Seconds = DefaultCaptureSeconds
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	return &FFmpegSampler{cfg: cfg, now: time.Now}
}

// Capture returns (nil, nil) when the stream produced no audible audio.
// Errors are reserved for ffmpeg failing to run or read the source.
func (s *FFmpegSampler) Capture(ctx context.Context, streamURL string) (*models.AudioSample, error) {
	streamURL = strings.TrimSpace(streamURL)
	if streamURL == "" {
		return nil, errors.New("empty stream URL")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.Seconds)*time.Second+30*time.Second)
		defer cancel()
	}

	if err := utils.MakeDir(s.cfg.TempDir); err != nil {
		return nil, err
	}
	outPath := filepath.Join(s.cfg.TempDir, "capture-"+utils.GenerateUUID()+".wav")
	defer utils.DeleteFile(outPath)

	capturedAt := s.now().UTC()
	cmd := exec.CommandContext(
		ctx,
		s.cfg.FFmpegPath,
		"-y",
		"-v", "quiet",
		"-i", streamURL,
		"-t", strconv.Itoa(s.cfg.Seconds),
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(s.cfg.SampleRate),
		"-c:a", "pcm_s16le",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	sample, err := LoadSample(outPath, streamURL, capturedAt)
	if errors.Is(err, ErrSilence) {
		return nil, nil
	}
	return sample, err
}

// LoadSample reads a clip from disk. WAV files are decoded to fill in the
// sample rate and duration; other formats are passed through as is.
func LoadSample(path, source string, capturedAt time.Time) (*models.AudioSample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sample: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return SampleFromBytes(data, format, source, capturedAt)
}

// SampleFromBytes wraps raw audio bytes. Empty input yields (nil, nil).
func SampleFromBytes(data []byte, format, source string, capturedAt time.Time) (*models.AudioSample, error) {
	if len(data) == 0 {
		return nil, nil
	}
	sample := &models.AudioSample{
		Data:       data,
		Format:     format,
		CapturedAt: capturedAt,
		Source:     source,
	}
	if format != "wav" && !bytes.HasPrefix(data, []byte("RIFF")) {
		return sample, nil
	}

	info, err := InspectWAV(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if info.Duration == 0 || info.PeakLevel < silenceLevel {
		return nil, ErrSilence
	}
	sample.Format = "wav"
	sample.SampleRate = info.SampleRate
	sample.Duration = info.Duration
	return sample, nil
}
