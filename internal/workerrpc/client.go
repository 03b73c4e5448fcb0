package workerrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"github.com/jacherr/assystbot/internal/rpc"
)

// Client is the worker RPC client described in spec.md §4.E, built on the
// generic transport in internal/rpc.
type Client struct {
	inner *rpc.Client[Job]
}

// New constructs a worker client dialing the given unix socket path.
func New(socketPath string, logger *slog.Logger) *Client {
	dial := func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", socketPath)
	}
	return &Client{inner: rpc.NewClient[Job]("worker", dial, logger)}
}

// Run drives the reconnect state machine; call in its own goroutine.
func (c *Client) Run(ctx context.Context) { c.inner.Run(ctx) }

// Connected reports the client's current connection flag.
func (c *Client) Connected() bool { return c.inner.Connected() }

// Call submits a job at the given premium tier and returns the raw result
// bytes, or an error classified by internal/shared at the caller.
func (c *Client) Call(ctx context.Context, tier uint8, job Job) ([]byte, error) {
	resp, err := c.inner.Call(ctx, tier, job)
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// Stats issues the stats introspection job and decodes its JSON payload.
func (c *Client) Stats(ctx context.Context) (StatsResult, error) {
	payload, err := c.Call(ctx, 0, Stats{})
	if err != nil {
		return StatsResult{}, err
	}
	var out StatsResult
	if err := json.Unmarshal(payload, &out); err != nil {
		return StatsResult{}, fmt.Errorf("decode stats payload: %w", err)
	}
	return out, nil
}

// ImageInfo issues the image-info job and decodes its JSON payload.
func (c *Client) ImageInfo(ctx context.Context, image []byte) (ImageInfoResult, error) {
	payload, err := c.Call(ctx, 0, ImageInfo{Image: image})
	if err != nil {
		return ImageInfoResult{}, err
	}
	var out ImageInfoResult
	if err := json.Unmarshal(payload, &out); err != nil {
		return ImageInfoResult{}, fmt.Errorf("decode image-info payload: %w", err)
	}
	return out, nil
}

// ConvertSticker renders a Lottie animation to GIF bytes. Used by
// internal/media to implement parser.StickerConverter.
func (c *Client) ConvertSticker(ctx context.Context, tier uint8, lottie []byte) ([]byte, error) {
	gif, err := c.Call(ctx, tier, StickerConvert{Lottie: lottie})
	if err != nil {
		return nil, fmt.Errorf("convert sticker: %w", err)
	}
	return gif, nil
}

// HeartLocket is a derived operation: a sequence of worker jobs composed in
// this client method (spec.md §4.E "derived operations"), not a single wire job.
func (c *Client) HeartLocket(ctx context.Context, tier uint8, image []byte, caption string) ([]byte, error) {
	rendered, err := c.Call(ctx, tier, TextRender{Text: caption})
	if err != nil {
		return nil, fmt.Errorf("heart locket text render: %w", err)
	}
	resized, err := c.Call(ctx, tier, Resize{Image: image, Width: 256, Height: 256})
	if err != nil {
		return nil, fmt.Errorf("heart locket resize: %w", err)
	}
	gif, err := c.Call(ctx, tier, ConstructGIF{Frames: [][]byte{resized, rendered}, DelayMS: 80})
	if err != nil {
		return nil, fmt.Errorf("heart locket construct gif: %w", err)
	}
	result, err := c.Call(ctx, tier, Makesweet{Template: "heart_locket", Images: [][]byte{gif}})
	if err != nil {
		return nil, fmt.Errorf("heart locket makesweet: %w", err)
	}
	return result, nil
}
