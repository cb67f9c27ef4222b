package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavInfo describes a decoded PCM WAV clip.
type WavInfo struct {
	SampleRate int
	NumChans   int
	BitDepth   int
	Duration   time.Duration
	// PeakLevel is the largest absolute sample normalized to [0, 1].
	PeakLevel float64
}

// InspectWAV decodes a WAV clip and reports its format, length and peak level.
func InspectWAV(r io.ReadSeeker) (*WavInfo, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("not a valid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	info := &WavInfo{
		SampleRate: int(decoder.SampleRate),
		NumChans:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
	}
	if info.SampleRate > 0 && info.NumChans > 0 {
		frames := len(buf.Data) / info.NumChans
		info.Duration = time.Duration(float64(frames) / float64(info.SampleRate) * float64(time.Second))
	}
	info.PeakLevel = peak(buf, info.BitDepth)
	return info, nil
}

func peak(buf *goaudio.IntBuffer, bitDepth int) float64 {
	if bitDepth <= 0 || len(buf.Data) == 0 {
		return 0
	}
	maxVal := float64(int(1) << (uint(bitDepth) - 1))
	p := 0
	for _, v := range buf.Data {
		if v < 0 {
			v = -v
		}
		if v > p {
			p = v
		}
	}
	return math.Min(1, float64(p)/maxVal)
}

// EncodeWAV writes mono 16-bit PCM samples as a WAV file into memory.
func EncodeWAV(samples []int, sampleRate int) ([]byte, error) {
	ws := &writeSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoding WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing WAV: %w", err)
	}
	return ws.buf.Bytes(), nil
}

// writeSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type writeSeeker struct {
	buf bytes.Buffer
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > w.buf.Len() {
		w.buf.Grow(end - w.buf.Len())
		w.buf.Write(make([]byte, end-w.buf.Len()))
	}
	copy(w.buf.Bytes()[w.pos:end], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(w.pos) + offset
	case io.SeekEnd:
		next = int64(w.buf.Len()) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative position")
	}
	w.pos = int(next)
	return next, nil
}
