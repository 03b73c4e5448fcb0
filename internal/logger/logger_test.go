package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFatal_PostsToWebhookWithRoleMention(t *testing.T) {
	var gotBody webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	l := New(map[Category]string{Fatal: srv.URL}, "role1", nil)
	l.Fatal(context.Background(), "worker down: %s", "timeout")

	if len(gotBody.Embeds) != 1 {
		t.Fatalf("embeds = %+v", gotBody.Embeds)
	}
	if !strings.Contains(gotBody.Embeds[0].Description, "<@&role1>") {
		t.Errorf("description = %q, want a role mention", gotBody.Embeds[0].Description)
	}
	if gotBody.Embeds[0].Color != Fatal.color() {
		t.Errorf("color = %x, want %x", gotBody.Embeds[0].Color, Fatal.color())
	}
}

func TestInfo_FallsBackToSlogWhenNoWebhookConfigured(t *testing.T) {
	var buf bytes.Buffer
	fallback := slog.New(slog.NewTextHandler(&buf, nil))
	l := New(nil, "", fallback)

	l.Info(context.Background(), "guild count: %d", 12)

	if !strings.Contains(buf.String(), "guild count: 12") {
		t.Errorf("fallback log missing message: %s", buf.String())
	}
}

func TestPost_TruncatesToMessageLimit(t *testing.T) {
	var gotBody webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	l := New(map[Category]string{Info: srv.URL}, "", nil)
	l.Info(context.Background(), "%s", strings.Repeat("x", 2100))

	if len([]rune(gotBody.Embeds[0].Description)) != maxMessageLength {
		t.Errorf("len = %d, want %d", len([]rune(gotBody.Embeds[0].Description)), maxMessageLength)
	}
}

func TestVote_UsesVoteWebhookWhenConfigured(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	l := New(map[Category]string{Vote: srv.URL}, "", nil)
	l.Vote(context.Background(), "user %s voted", "u1")

	if !hit {
		t.Fatal("vote webhook was not called")
	}
}
