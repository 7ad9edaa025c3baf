package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// closeCooldown lets the transport settle after a socket is released.
var closeCooldown = 250 * time.Millisecond

// SocketConfig configures a Socket.
type SocketConfig struct {
	HandshakeTimeout time.Duration
	CloseTimeout     time.Duration
	WriteTimeout     time.Duration
}

// Socket wraps a single websocket connection to the gateway.
//
// Receive must only be called from one goroutine. Sends are serialized.
// Close may be called concurrently with both.
type Socket struct {
	conn   *websocket.Conn
	cfg    SocketConfig
	logger *slog.Logger

	writeMu sync.Mutex
	closed  atomic.Bool
}

// Dial opens a socket to url. Failures other than ctx ending are returned as
// *ConnectionError.
func Dial(ctx context.Context, url string, cfg SocketConfig, logger *slog.Logger) (*Socket, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sleep(ctx, closeCooldown)

		reason := err.Error()
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			reason = "connection timed out"
		}
		return nil, &ConnectionError{Reason: reason, Err: err}
	}

	logger.Debug("websocket connected", "url", url)

	return &Socket{conn: conn, cfg: cfg, logger: logger}, nil
}

// SendJSON writes v as a text frame.
func (s *Socket) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &GatewayError{Reason: "encode payload", Err: err}
	}

	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.logger.Debug("sending payload", "size", len(data), "payload", string(data))
	}

	if s.closed.Load() {
		return &ConnectionError{Reason: ErrSocketClosed.Error(), Err: ErrSocketClosed}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &ConnectionError{Reason: err.Error(), Err: err}
	}
	return nil
}

// Receive reads the next text frame and decodes its envelope.
func (s *Socket) Receive() (Payload, error) {
	mt, data, err := s.conn.ReadMessage()
	if err != nil {
		return Payload{}, s.classifyReadError(err)
	}

	if mt != websocket.TextMessage {
		return Payload{}, &GatewayError{Reason: "unexpected message type: received BINARY, expected TEXT"}
	}

	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.logger.Debug("received payload", "size", len(data), "payload", string(data))
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, &GatewayError{Reason: "malformed payload", Err: err}
	}
	if p.Op == "" {
		return Payload{}, &GatewayError{Reason: "payload has no opcode"}
	}
	return p, nil
}

func (s *Socket) classifyReadError(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return &ConnectionClosedError{Code: closeErr.Code, Reason: closeErr.Text}
	}
	if s.closed.Load() {
		return &ConnectionError{Reason: ErrSocketClosed.Error(), Err: ErrSocketClosed}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ConnectionError{Reason: "read timed out", Err: err}
	}
	return &ConnectionError{Reason: err.Error(), Err: err}
}

// setReadDeadline bounds the next reads. A zero t removes the bound.
func (s *Socket) setReadDeadline(t time.Time) {
	_ = s.conn.SetReadDeadline(t)
}

// Closed reports whether Close has been called.
func (s *Socket) Closed() bool {
	return s.closed.Load()
}

// Close sends a close frame and releases the connection. Only the first call
// has any effect. A close frame that cannot be sent in time is ignored.
func (s *Socket) Close(code int, reason string) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.logger.Debug("sending close frame", "code", code, "reason", reason)

	timeout := s.cfg.CloseTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().CloseTimeout
	}

	deadline := time.Now().Add(timeout)
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		s.logger.Debug("failed to send close frame, connection may be faulty", "error", err)
	}

	_ = s.conn.Close()
	time.Sleep(closeCooldown)
}

// sleep waits for d or until ctx is done. It reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
