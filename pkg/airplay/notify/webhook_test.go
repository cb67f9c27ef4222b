package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/himanishpuri/AirplayDNA/pkg/airplay/notify"
)

func TestWebhookPostsJSON(t *testing.T) {
	var gotBody map[string]any
	var gotUA, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotUA = r.Header.Get("User-Agent")
		gotCT = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := notify.NewWebhookWithClient(srv.Client())
	payload := map[string]any{"event": "detection", "detection_id": "d1"}
	if err := hook.Post(context.Background(), srv.URL, payload); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	if gotCT != "application/json" {
		t.Errorf("Content-Type = %q", gotCT)
	}
	if !strings.HasPrefix(gotUA, "AirplayDNA/") {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotBody["detection_id"] != "d1" {
		t.Errorf("body detection_id = %v", gotBody["detection_id"])
	}
}

func TestWebhookNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := notify.NewWebhookWithClient(srv.Client()).Post(context.Background(), srv.URL, map[string]string{})
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "nope") {
		t.Errorf("error should carry status and body, got %v", err)
	}
}

func TestWebhookUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if err := notify.NewWebhook(0).Post(context.Background(), url, map[string]string{}); err == nil {
		t.Fatal("expected error posting to a closed server")
	}
}
