// Package media supplies the concrete parser.ContentFetcher,
// parser.TenorResolver and parser.StickerConverter implementations that the
// command parser's media resolution chain depends on (spec.md §4.D),
// grounded on the same bare-http.Client idiom as internal/platform and
// internal/translate: a plain client, a fixed timeout, status-code-keyed
// error wrapping.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"regexp"
	"time"

	"github.com/jacherr/assystbot/internal/workerrpc"
)

const fetchTimeout = 20 * time.Second

// stickerCDNBase mirrors the fixed asset host internal/parser already uses
// for non-Lottie stickers and emoji, so the Lottie path downloads from the
// same namespace rather than inventing a second one.
const stickerCDNBase = "https://cdn.chatplatform.example/stickers/"

// Fetcher implements parser.ContentFetcher: a direct download, or one routed
// through a content-proxy for untrusted hosts.
type Fetcher struct {
	ProxyBase string
	client    *http.Client
}

// NewFetcher constructs a Fetcher routing proxied requests through proxyBase.
func NewFetcher(proxyBase string) *Fetcher {
	return &Fetcher{ProxyBase: proxyBase, client: &http.Client{Timeout: fetchTimeout}}
}

// Fetch downloads url, capping the response body at maxBytes. When useProxy
// is set, the request goes to ProxyBase with the target URL as a query
// parameter instead of dialing the host directly.
func (f *Fetcher) Fetch(ctx context.Context, url string, maxBytes int64, useProxy bool) ([]byte, error) {
	target := url
	if useProxy && f.ProxyBase != "" {
		target = f.ProxyBase + "?url=" + neturl.QueryEscape(url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("media: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("media: fetch %s returned %d", url, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("media: read body of %s: %w", url, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("media: %s exceeds %d byte cap", url, maxBytes)
	}
	return data, nil
}

// tenorGIFRe extracts a tenor.com view page's direct .gif or .mp4 URL out of its
// og:video meta tag, the one piece of markup tenor has kept stable across
// page redesigns.
var tenorGIFRe = regexp.MustCompile(`<meta property="og:video" content="([^"]+\.(?:gif|mp4))"`)

// TenorResolver scrapes a tenor.com/view/ page for its direct .gif or .mp4 URL.
type TenorResolver struct {
	client *http.Client
}

// NewTenorResolver constructs a TenorResolver.
func NewTenorResolver() *TenorResolver {
	return &TenorResolver{client: &http.Client{Timeout: fetchTimeout}}
}

// ResolveTenorURL implements parser.TenorResolver.
func (r *TenorResolver) ResolveTenorURL(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("media: build tenor request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("media: fetch tenor page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("media: tenor page returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("media: read tenor page: %w", err)
	}

	m := tenorGIFRe.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("media: no gif url found on tenor page")
	}
	return string(m[1]), nil
}

// stickerFetcher is the subset of Fetcher's behavior the converter needs to
// download the raw Lottie JSON before handing it to the worker.
type stickerFetcher interface {
	Fetch(ctx context.Context, url string, maxBytes int64, useProxy bool) ([]byte, error)
}

// workerClient is the subset of workerrpc.Client the converter calls.
type workerClient interface {
	ConvertSticker(ctx context.Context, tier uint8, lottie []byte) ([]byte, error)
}

const maxLottieBytes = 5 << 20

// Converter implements parser.StickerConverter: it downloads a sticker's
// Lottie JSON payload and renders it to a GIF via the worker RPC client,
// since no Lottie rasterizer exists in this process (spec.md §4.E assigns
// every render-heavy operation to the worker, and composite/vector
// operations are no exception).
type Converter struct {
	Fetch  stickerFetcher
	Worker workerClient
	Logger *slog.Logger
}

// NewConverter constructs a Converter. fetcher supplies raw downloads and
// worker performs the actual Lottie-to-GIF render.
func NewConverter(fetcher stickerFetcher, worker *workerrpc.Client, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{Fetch: fetcher, Worker: worker, Logger: logger}
}

func (c *Converter) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// ConvertLottieToGIF implements parser.StickerConverter.
func (c *Converter) ConvertLottieToGIF(ctx context.Context, stickerID string) ([]byte, error) {
	lottie, err := c.Fetch.Fetch(ctx, stickerCDNBase+stickerID+".json", maxLottieBytes, false)
	if err != nil {
		return nil, fmt.Errorf("media: download lottie sticker %s: %w", stickerID, err)
	}

	gif, err := c.Worker.ConvertSticker(ctx, 0, lottie)
	if err != nil {
		c.logger().Warn("media: sticker conversion failed", "sticker_id", stickerID, "error", err)
		return nil, fmt.Errorf("media: convert sticker %s: %w", stickerID, err)
	}
	return gif, nil
}
