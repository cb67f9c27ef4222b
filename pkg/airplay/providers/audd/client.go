// Package audd recognizes audio clips with the AudD API. AudD returns a
// single result with metadata from several catalogues attached.
package audd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/AirplayDNA/pkg/models"
	"github.com/tidwall/gjson"
)

const (
	Name           = "audd"
	DefaultBaseURL = "https://api.audd.io/"
	defaultReturn  = "apple_music,spotify,deezer,musicbrainz"
)

type Client struct {
	token   string
	baseURL string
	http    *http.Client
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

func New(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return Name }

// Lookup uploads the sample. A response with a null result is a valid "no
// match" and yields a ProviderBResult with a nil Match.
func (c *Client) Lookup(ctx context.Context, sample *models.AudioSample) (*models.ProviderBResult, error) {
	if c.token == "" {
		return nil, errors.New("audd: api token not configured")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("api_token", c.token)
	_ = mw.WriteField("return", defaultReturn)
	ext := sample.Format
	if ext == "" {
		ext = "wav"
	}
	part, err := mw.CreateFormFile("file", "sample."+ext)
	if err != nil {
		return nil, fmt.Errorf("audd: build form: %w", err)
	}
	if _, err := part.Write(sample.Data); err != nil {
		return nil, fmt.Errorf("audd: build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("audd: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("audd: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audd: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("audd: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audd: status %d", resp.StatusCode)
	}
	return parseResponse(body)
}

func parseResponse(body []byte) (*models.ProviderBResult, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("audd: invalid JSON response")
	}
	doc := gjson.ParseBytes(body)
	if status := doc.Get("status").String(); status != "success" {
		return nil, fmt.Errorf("audd: error %d: %s",
			doc.Get("error.error_code").Int(), doc.Get("error.error_message").String())
	}

	out := &models.ProviderBResult{Raw: json.RawMessage(body)}
	r := doc.Get("result")
	if !r.Exists() || r.Type == gjson.Null {
		return out, nil
	}

	out.Match = &models.ProviderBMatch{
		Title:       r.Get("title").String(),
		Artist:      r.Get("artist").String(),
		Album:       r.Get("album").String(),
		ReleaseYear: releaseYear(r.Get("release_date").String()),
		OffsetSec:   parseTimecode(r.Get("timecode").String()),
		DurationSec: durationSec(r),
		ISRCs:       isrcs(r),
		SongLink:    r.Get("song_link").String(),
	}
	return out, nil
}

// isrcs collects ISRCs from every attached catalogue, in a fixed source order.
func isrcs(r gjson.Result) []string {
	var out []string
	for _, path := range []string{
		"apple_music.isrc",
		"spotify.external_ids.isrc",
		"deezer.isrc",
		"musicbrainz.#.isrcs|@flatten",
		"isrc",
	} {
		v := r.Get(path)
		if v.IsArray() {
			for _, code := range v.Array() {
				if s := code.String(); s != "" {
					out = append(out, s)
				}
			}
			continue
		}
		if s := v.String(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// durationSec returns the first duration reported by a catalogue, or 0.
func durationSec(r gjson.Result) float64 {
	if ms := r.Get("apple_music.durationInMillis").Float(); ms > 0 {
		return ms / 1000
	}
	if ms := r.Get("spotify.duration_ms").Float(); ms > 0 {
		return ms / 1000
	}
	if s := r.Get("deezer.duration").Float(); s > 0 {
		return s
	}
	if ms := r.Get("musicbrainz.0.length").Float(); ms > 0 {
		return ms / 1000
	}
	return 0
}

// parseTimecode converts "mm:ss" or "hh:mm:ss" to seconds. Unparseable input is 0.
func parseTimecode(tc string) float64 {
	tc = strings.TrimSpace(tc)
	if tc == "" {
		return 0
	}
	total := 0
	for _, part := range strings.Split(tc, ":") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return float64(total)
}

func releaseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}
