// Package acoustid looks up Chromaprint fingerprints against the AcoustID web
// service. Result scores are on a 0-1 scale.
package acoustid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/models"
)

const (
	Name           = "acoustid"
	DefaultBaseURL = "https://api.acoustid.org/v2/lookup"
	defaultMeta    = "recordings releasegroups releases compress"
)

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	fp      Fingerprinter
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

func WithFingerprinter(f Fingerprinter) Option {
	return func(c *Client) {
		c.fp = f
	}
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
		fp:      Fpcalc{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return Name }

type lookupResponse struct {
	Status string `json:"status"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Results []struct {
		ID         string      `json:"id"`
		Score      float64     `json:"score"`
		Recordings []recording `json:"recordings"`
	} `json:"results"`
}

type recording struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Artists  []struct {
		Name string `json:"name"`
	} `json:"artists"`
	ReleaseGroups []struct {
		Title    string `json:"title"`
		Type     string `json:"type"`
		Releases []struct {
			Date struct {
				Year int `json:"year"`
			} `json:"date"`
		} `json:"releases"`
	} `json:"releasegroups"`
	ISRCs []string `json:"isrcs"`
}

// Lookup fingerprints the sample and asks AcoustID for matching tracks.
func (c *Client) Lookup(ctx context.Context, sample *models.AudioSample) (*models.ProviderAResult, error) {
	if c.apiKey == "" {
		return nil, errors.New("acoustid: api key not configured")
	}
	p, err := c.fp.Fingerprint(ctx, sample)
	if err != nil {
		return nil, fmt.Errorf("acoustid: fingerprint sample: %w", err)
	}
	duration := p.DurationSec
	if duration <= 0 {
		duration = sample.Duration.Seconds()
	}

	form := url.Values{}
	form.Set("client", c.apiKey)
	form.Set("format", "json")
	form.Set("meta", defaultMeta)
	form.Set("duration", strconv.Itoa(int(math.Round(duration))))
	form.Set("fingerprint", p.Fingerprint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("acoustid: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("acoustid: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("acoustid: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("acoustid: status %d: %s", resp.StatusCode, snippet(body))
	}
	return parseLookup(body)
}

func parseLookup(body []byte) (*models.ProviderAResult, error) {
	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("acoustid: decode response: %w", err)
	}
	if lr.Status != "ok" {
		if lr.Error != nil {
			return nil, fmt.Errorf("acoustid: error %d: %s", lr.Error.Code, lr.Error.Message)
		}
		return nil, fmt.Errorf("acoustid: status %q", lr.Status)
	}

	res := &models.ProviderAResult{Raw: json.RawMessage(body)}
	for _, r := range lr.Results {
		cand := models.ProviderACandidate{TrackID: r.ID, Score: r.Score}
		for _, rec := range r.Recordings {
			cand.Recordings = append(cand.Recordings, toRecording(rec))
		}
		res.Candidates = append(res.Candidates, cand)
	}
	return res, nil
}

func toRecording(rec recording) models.ProviderARecording {
	out := models.ProviderARecording{
		ID:          rec.ID,
		Title:       rec.Title,
		DurationSec: rec.Duration,
		ISRCs:       rec.ISRCs,
	}
	for _, a := range rec.Artists {
		out.Artists = append(out.Artists, a.Name)
	}
	// Prefer the first release group typed "Album", else the first one listed.
	albumFound := false
	for _, rg := range rec.ReleaseGroups {
		if !albumFound && strings.EqualFold(rg.Type, "album") {
			out.Album, albumFound = rg.Title, true
		} else if out.Album == "" {
			out.Album = rg.Title
		}
		for _, rel := range rg.Releases {
			if y := rel.Date.Year; y > 0 && (out.ReleaseYear == 0 || y < out.ReleaseYear) {
				out.ReleaseYear = y
			}
		}
	}
	return out
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
