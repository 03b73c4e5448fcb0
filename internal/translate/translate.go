// Package translate defines the narrow contract BadTranslator depends on
// for the external translation service, plus a net/http-backed client.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is the fully-resolved translation call BadTranslator issues
// (spec.md §4.H step 6).
type Request struct {
	Text       string
	UserID     string
	GuildID    string
	TargetLang string
}

// Service is the translation-service contract; BadTranslator depends only
// on this, continuing the teacher's dependency-inversion style.
type Service interface {
	// Translate returns the rendered text on success, including a
	// service-rendered error message (forwarded verbatim per spec.md §4.H
	// step 6) — that case returns a nil error. A non-nil error means a
	// transport failure the caller should drop silently.
	Translate(ctx context.Context, req Request) (string, error)
}

// HTTPService calls a JSON translation endpoint, grounded on the same bare
// http.Client/status-code-error idiom as internal/platform.HTTPClient
// (itself grounded on the pack's discord channel driver) since the
// translation service in spec.md §6 is plain HTTP, not gRPC.
type HTTPService struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPService constructs a client against baseURL, authenticating with
// token via a bearer header.
func NewHTTPService(baseURL, token string) *HTTPService {
	return &HTTPService{baseURL: baseURL, token: token, client: &http.Client{Timeout: 15 * time.Second}}
}

type translateRequestBody struct {
	Text       string `json:"text"`
	UserID     string `json:"user_id"`
	GuildID    string `json:"guild_id"`
	TargetLang string `json:"target_lang"`
}

type translateResponseBody struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

func (s *HTTPService) Translate(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(translateRequestBody{
		Text:       req.Text,
		UserID:     req.UserID,
		GuildID:    req.GuildID,
		TargetLang: req.TargetLang,
	})
	if err != nil {
		return "", fmt.Errorf("translate: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("translate: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("translate: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("translate: service returned %d: %s", resp.StatusCode, body)
	}

	var out translateResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("translate: decode response: %w", err)
	}
	if out.Error != "" {
		return out.Error, nil
	}
	return out.Text, nil
}
