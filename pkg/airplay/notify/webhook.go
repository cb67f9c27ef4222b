package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultTimeout = 10 * time.Second

// Version is reported in the User-Agent of callback requests.
var Version = "dev"

// Webhook POSTs JSON payloads to callback URLs. Any status outside 2xx is an error.
type Webhook struct {
	client    *http.Client
	userAgent string
}

func NewWebhook(timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Webhook{
		client:    &http.Client{Timeout: timeout},
		userAgent: "AirplayDNA/" + Version,
	}
}

// NewWebhookWithClient uses client as is, e.g. an httptest server's client.
func NewWebhookWithClient(client *http.Client) *Webhook {
	return &Webhook{client: client, userAgent: "AirplayDNA/" + Version}
}

func (w *Webhook) Post(ctx context.Context, callbackURL string, payload any) error {
	if w == nil || w.client == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("callback returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
