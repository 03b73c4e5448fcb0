package workerrpc

import (
	"bytes"
	"context"
	"encoding/gob"
	"net"
	"testing"
	"time"

	"github.com/jacherr/assystbot/internal/rpc"
)

// echoServer replies to every job with a payload derived from its jobName,
// letting tests assert on the sequence of jobs a derived operation issues
// without needing a real image worker.
type echoServer struct {
	ln  net.Listener
	log chan string
}

func newEchoServer(t *testing.T) *echoServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &echoServer{ln: ln, log: make(chan string, 32)}
	go s.acceptLoop()
	return s
}

func (s *echoServer) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *echoServer) serve(conn net.Conn) {
	defer conn.Close()
	for {
		payload, err := readFrameForTest(conn)
		if err != nil {
			return
		}
		var req rpc.Request[Job]
		if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&req); err != nil {
			return
		}
		s.log <- req.Job.jobName()

		var buf bytes.Buffer
		resp := rpc.Response{CorrID: req.CorrID, OK: true, Payload: []byte(req.Job.jobName())}
		if err := gob.NewEncoder(&buf).Encode(resp); err != nil {
			return
		}
		if err := writeFrameForTest(conn, buf.Bytes()); err != nil {
			return
		}
	}
}

func readFrameForTest(conn net.Conn) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := readFull(conn, lenBuf[:]); err != nil {
		return nil, err
	}
	size := int(lenBuf[0])<<24 | int(lenBuf[1])<<16 | int(lenBuf[2])<<8 | int(lenBuf[3])
	buf := make([]byte, size)
	_, err := readFull(conn, buf)
	return buf, err
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func writeFrameForTest(conn net.Conn, payload []byte) error {
	lenBuf := []byte{byte(len(payload) >> 24), byte(len(payload) >> 16), byte(len(payload) >> 8), byte(len(payload))}
	if _, err := conn.Write(lenBuf); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

func dialTCP(addr string) func(ctx context.Context) (net.Conn, error) {
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
}

func TestClient_HeartLocket_ComposesExpectedJobSequence(t *testing.T) {
	srv := newEchoServer(t)
	defer srv.ln.Close()

	inner := rpc.NewClient[Job]("worker-test", dialTCP(srv.ln.Addr().String()), nil)
	c := &Client{inner: inner}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inner.Run(ctx)

	deadline := time.After(2 * time.Second)
	for !inner.Connected() {
		select {
		case <-deadline:
			t.Fatal("client never connected")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := c.HeartLocket(context.Background(), 0, []byte("img"), "caption"); err != nil {
		t.Fatalf("HeartLocket returned error: %v", err)
	}

	want := []string{"text_render", "resize", "construct_gif", "makesweet"}
	for _, w := range want {
		select {
		case got := <-srv.log:
			if got != w {
				t.Errorf("job sequence: got %q, want %q", got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for job %q", w)
		}
	}
}
