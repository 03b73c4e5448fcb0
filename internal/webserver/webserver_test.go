package webserver

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeMetrics struct{ body string }

func (f *fakeMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, f.body)
	})
}

type fakeVoteLogger struct{ messages []string }

func (f *fakeVoteLogger) Vote(ctx context.Context, format string, args ...any) {
	f.messages = append(f.messages, format)
}

func TestHandleVote_RejectsMissingOrWrongSecret(t *testing.T) {
	logger := &fakeVoteLogger{}
	s := &Server{DBLSecret: "shh", Logger: logger}
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/dbl", strings.NewReader(`{"user":"1"}`))
	req.Header.Set("Authorization", "wrong")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if len(logger.messages) != 0 {
		t.Fatal("expected no vote to be logged for an unauthorized request")
	}
}

func TestHandleVote_AcceptsCorrectSecretAndLogs(t *testing.T) {
	logger := &fakeVoteLogger{}
	s := &Server{DBLSecret: "shh", Logger: logger}
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/dbl", strings.NewReader(`{"user":"42"}`))
	req.Header.Set("Authorization", "shh")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(logger.messages) != 1 {
		t.Fatalf("expected exactly one vote to be logged, got %d", len(logger.messages))
	}
}

func TestHandleMetrics_WritesRegistryOutput(t *testing.T) {
	s := &Server{Metrics: &fakeMetrics{body: "assyst_commands_total 5\n"}}
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	io.Copy(&buf, resp.Body)
	if buf.String() != "assyst_commands_total 5\n" {
		t.Fatalf("body = %q", buf.String())
	}
}

func TestHandleLanding_RedirectsToConfiguredURL(t *testing.T) {
	s := &Server{LandingPage: "https://example.com/land"}
	client := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error { return http.ErrUseLastResponse }}
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := client.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != "https://example.com/land" {
		t.Fatalf("Location = %q", got)
	}
}
