package acoustid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/models"
	"github.com/tidwall/gjson"
)

// Print is a Chromaprint fingerprint with the duration of the audio it covers.
type Print struct {
	Fingerprint string
	DurationSec float64
}

// Fingerprinter computes the Chromaprint fingerprint AcoustID looks up.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, sample *models.AudioSample) (Print, error)
}

// Fpcalc runs the chromaprint fpcalc binary on the sample.
type Fpcalc struct {
	Binary  string
	TempDir string
}

func (f Fpcalc) Fingerprint(ctx context.Context, sample *models.AudioSample) (Print, error) {
	bin := f.Binary
	if bin == "" {
		bin = "fpcalc"
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	ext := sample.Format
	if ext == "" {
		ext = "wav"
	}
	tmp, err := os.CreateTemp(f.TempDir, "airplay-fp-*."+ext)
	if err != nil {
		return Print{}, fmt.Errorf("create temp sample: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(sample.Data); err != nil {
		tmp.Close()
		return Print{}, fmt.Errorf("write temp sample: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Print{}, err
	}

	out, err := exec.CommandContext(ctx, bin, "-json", tmp.Name()).Output()
	if err != nil {
		if ctx.Err() != nil {
			return Print{}, ctx.Err()
		}
		return Print{}, fmt.Errorf("fpcalc failed: %w", err)
	}
	return parseFpcalc(out)
}

func parseFpcalc(out []byte) (Print, error) {
	if !gjson.ValidBytes(out) {
		return Print{}, errors.New("fpcalc returned invalid JSON")
	}
	res := gjson.ParseBytes(out)
	p := Print{
		Fingerprint: strings.TrimSpace(res.Get("fingerprint").String()),
		DurationSec: res.Get("duration").Float(),
	}
	if p.Fingerprint == "" {
		return Print{}, errors.New("fpcalc returned no fingerprint")
	}
	return p, nil
}
