// Package rpc implements the reconnecting, length-prefixed,
// correlation-ID-multiplexed request/response transport shared by the
// worker RPC client (spec.md §4.E) and the cache RPC client (§4.F) — "same
// shape, different message schema". The schema itself is a type parameter:
// callers instantiate Client[J] with their own tagged-variant job type J.
package rpc

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	reconnectDelay = 10 * time.Second
	callTimeout    = 3 * time.Minute
	maxFrameBytes  = 64 << 20 // 64 MiB; generous cap against a corrupt length prefix
)

// ErrUnavailable is returned by Call when the client is known to be
// disconnected at call time (spec.md §4.E: "fails fast ... ServiceUnavailable").
var ErrUnavailable = errors.New("rpc: service unavailable")

// ErrTimeout is returned by Call when no response arrives within 3 minutes.
var ErrTimeout = errors.New("rpc: timeout")

// Request is the wire envelope for one call: correlation id, premium tier,
// and the job payload (spec.md §3 "Worker job envelope").
type Request[J any] struct {
	CorrID uint32
	Tier   uint8
	Job    J
}

// Response is the wire envelope for one reply: Result<bytes, error-kind>
// collapsed into a boolean-discriminated struct since gob has no native sum
// type.
type Response struct {
	CorrID  uint32
	OK      bool
	Payload []byte
	ErrKind string
}

type pendingSend[J any] struct {
	corrID uint32
	tier   uint8
	job    J
}

// Dialer is injected so the worker and cache clients can both use
// net.Dial("unix", path) without this package hardcoding a network kind.
type Dialer func(ctx context.Context) (net.Conn, error)

// Client is a generic reconnecting RPC client parameterized over the job
// type J. It is safe for concurrent use by many callers of Call.
type Client[J any] struct {
	dial   Dialer
	logger *slog.Logger
	name   string

	connected atomic.Bool
	corrID    atomic.Uint32

	pendingMu sync.Mutex
	pending   map[uint32]chan Response

	queue *queue[pendingSend[J]]
}

// NewClient constructs a Client. name is used only for log lines (e.g.
// "worker" or "cache").
func NewClient[J any](name string, dial Dialer, logger *slog.Logger) *Client[J] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client[J]{
		dial:    dial,
		logger:  logger,
		name:    name,
		pending: make(map[uint32]chan Response),
		queue:   newQueue[pendingSend[J]](),
	}
}

// Connected reports the client's current connection flag.
func (c *Client[J]) Connected() bool {
	return c.connected.Load()
}

// Run drives the connect/reconnect state machine described in spec.md §4.E
// until ctx is cancelled. It is meant to be run in its own goroutine.
func (c *Client[J]) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			c.queue.close()
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("rpc connect failed", "client", c.name, "error", err)
			if !c.sleepOrDone(ctx, reconnectDelay) {
				c.queue.close()
				return
			}
			continue
		}

		c.logger.Info("rpc connected", "client", c.name)
		c.connected.Store(true)
		c.runConnection(ctx, conn)
		c.connected.Store(false)
		c.failAllPending()
		c.logger.Warn("rpc disconnected, retrying", "client", c.name, "delay", reconnectDelay)

		if !c.sleepOrDone(ctx, reconnectDelay) {
			return
		}
	}
}

func (c *Client[J]) sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// runConnection runs the reader and writer cooperatively until either fails
// or ctx is cancelled, then closes the connection and returns.
func (c *Client[J]) runConnection(ctx context.Context, conn net.Conn) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := c.readLoop(connCtx, conn); err != nil && connCtx.Err() == nil {
			c.logger.Warn("rpc reader failed", "client", c.name, "error", err)
		}
		cancel()
	}()

	go func() {
		defer wg.Done()
		if err := c.writeLoop(connCtx, conn); err != nil && connCtx.Err() == nil {
			c.logger.Warn("rpc writer failed", "client", c.name, "error", err)
		}
		cancel()
	}()

	wg.Wait()
}

func (c *Client[J]) writeLoop(ctx context.Context, conn net.Conn) error {
	for {
		send, ok := c.queue.pop(ctx)
		if !ok {
			return nil
		}

		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(Request[J]{CorrID: send.corrID, Tier: send.tier, Job: send.job}); err != nil {
			c.failPending(send.corrID, fmt.Errorf("encode request: %w", err))
			continue
		}

		if err := writeFrame(conn, buf.Bytes()); err != nil {
			c.queue.pushFront(send)
			return fmt.Errorf("write frame: %w", err)
		}
	}
}

func (c *Client[J]) readLoop(ctx context.Context, conn net.Conn) error {
	for {
		payload, err := readFrame(conn)
		if err != nil {
			return err
		}

		var resp Response
		if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&resp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}

		c.deliver(resp)
	}
}

func (c *Client[J]) deliver(resp Response) {
	c.pendingMu.Lock()
	ch, ok := c.pending[resp.CorrID]
	if ok {
		delete(c.pending, resp.CorrID)
	}
	c.pendingMu.Unlock()

	if !ok {
		// Either a duplicate or a response that arrived after the caller's
		// timeout already fired; spec.md §4.E: discarded silently.
		return
	}
	ch <- resp
}

func (c *Client[J]) failPending(corrID uint32, err error) {
	c.pendingMu.Lock()
	ch, ok := c.pending[corrID]
	if ok {
		delete(c.pending, corrID)
	}
	c.pendingMu.Unlock()
	if ok {
		ch <- Response{CorrID: corrID, OK: false, ErrKind: err.Error()}
	}
}

func (c *Client[J]) failAllPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		ch <- Response{CorrID: id, OK: false, ErrKind: "connection lost"}
		delete(c.pending, id)
	}
}

// Call submits job at the given premium tier and blocks for a response, a
// timeout, or ctx cancellation (spec.md §4.E per-request timeout of 3
// minutes).
func (c *Client[J]) Call(ctx context.Context, tier uint8, job J) (Response, error) {
	if !c.connected.Load() {
		return Response{}, ErrUnavailable
	}

	corrID := c.corrID.Add(1)
	respCh := make(chan Response, 1)

	c.pendingMu.Lock()
	c.pending[corrID] = respCh
	c.pendingMu.Unlock()

	c.queue.push(pendingSend[J]{corrID: corrID, tier: tier, job: job})

	timer := time.NewTimer(callTimeout)
	defer timer.Stop()

	select {
	case resp := <-respCh:
		if !resp.OK {
			return resp, fmt.Errorf("rpc: %s", resp.ErrKind)
		}
		return resp, nil
	case <-timer.C:
		c.pendingMu.Lock()
		delete(c.pending, corrID)
		c.pendingMu.Unlock()
		return Response{}, ErrTimeout
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, corrID)
		c.pendingMu.Unlock()
		return Response{}, ctx.Err()
	}
}

func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if size > maxFrameBytes {
		return nil, fmt.Errorf("frame size %d exceeds limit %d", size, maxFrameBytes)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
