package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/models"
	"github.com/himanishpuri/AirplayDNA/pkg/utils"
)

// StreamProbe checks that a channel is enabled and its stream answers.
type StreamProbe struct {
	client *http.Client
}

func NewStreamProbe(timeout time.Duration) *StreamProbe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &StreamProbe{client: &http.Client{Timeout: timeout}}
}

func NewStreamProbeWithClient(client *http.Client) *StreamProbe {
	return &StreamProbe{client: client}
}

func (p *StreamProbe) Check(ctx context.Context, ch *models.Channel) error {
	if ch == nil {
		return errors.New("no channel")
	}
	if ch.Status != "" && ch.Status != models.ChannelStatusActive {
		return fmt.Errorf("channel status is %q", ch.Status)
	}
	raw := strings.TrimSpace(ch.StreamURL)
	if raw == "" {
		return errors.New("channel has no stream URL")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid stream URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return p.checkHTTP(ctx, raw)
	case "file":
		return checkFile(u.Path)
	case "":
		return checkFile(raw)
	default:
		// rtmp, rtsp, udp and friends are left to ffmpeg.
		return nil
	}
}

// checkHTTP issues a GET and reads the first bytes; live streams never end,
// so the body is not drained.
func (p *StreamProbe) checkHTTP(ctx context.Context, streamURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Icy-MetaData", "0")
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("stream unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("stream returned %d", resp.StatusCode)
	}
	var first [1]byte
	if _, err := io.ReadFull(resp.Body, first[:]); err != nil {
		return fmt.Errorf("stream sent no data: %w", err)
	}
	return nil
}

func checkFile(path string) error {
	if !utils.FileExists(path) {
		return fmt.Errorf("stream file %s does not exist", path)
	}
	return nil
}
