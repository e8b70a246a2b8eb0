package ws

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// SSEClient delivers hub payloads as Server-Sent Events. A failed write marks
// the stream closed; the hub drops closed subscribers on the next delivery.
type SSEClient struct {
	mu      sync.Mutex
	writer  io.Writer
	flusher http.Flusher
	log     *slog.Logger
	closed  bool
}

// NewSSEClient wraps a streaming response writer.
func NewSSEClient(writer io.Writer, flusher http.Flusher, logger *slog.Logger) *SSEClient {
	return &SSEClient{writer: writer, flusher: flusher, log: logger}
}

// Send emits one data event.
func (c *SSEClient) Send(payload []byte) error {
	return c.emit("data: " + string(payload) + "\n\n")
}

// Heartbeat emits a comment frame so proxies keep the connection open.
func (c *SSEClient) Heartbeat() error {
	return c.emit(": keepalive\n\n")
}

// Close marks the stream closed. The response writer belongs to the handler
// and is not touched here.
func (c *SSEClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *SSEClient) emit(frame string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	if _, err := io.WriteString(c.writer, frame); err != nil {
		c.closed = true
		if c.log != nil {
			c.log.Warn("sse write failed", "error", err)
		}
		return err
	}
	c.flusher.Flush()
	return nil
}
