package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *HTTPService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPService(srv.URL, "tok")
}

func TestHTTPService_Translate_ReturnsText(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var body translateRequestBody
		json.NewDecoder(r.Body).Decode(&body)
		if body.TargetLang != "fr" {
			t.Errorf("TargetLang = %q, want fr", body.TargetLang)
		}
		json.NewEncoder(w).Encode(translateResponseBody{Text: "bonjour"})
	})

	text, err := s.Translate(context.Background(), Request{Text: "hello", TargetLang: "fr"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if text != "bonjour" {
		t.Errorf("text = %q, want bonjour", text)
	}
}

func TestHTTPService_Translate_ServiceErrorForwardedVerbatim(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(translateResponseBody{Error: "unsupported language"})
	})

	text, err := s.Translate(context.Background(), Request{Text: "hello", TargetLang: "xx"})
	if err != nil {
		t.Fatalf("Translate returned a transport error for a service-rendered error: %v", err)
	}
	if text != "unsupported language" {
		t.Errorf("text = %q, want the verbatim service error", text)
	}
}

func TestHTTPService_Translate_ServerErrorIsTransportFailure(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := s.Translate(context.Background(), Request{Text: "hello", TargetLang: "fr"})
	if err == nil {
		t.Fatal("expected a transport error for a 502 response")
	}
}
