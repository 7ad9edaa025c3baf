package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rickgao/eludris-client/internal/backoff"
	"github.com/rickgao/eludris-client/internal/dispatch"
	"github.com/rickgao/eludris-client/internal/entity"
	"github.com/rickgao/eludris-client/internal/event"
)

// EventManager is the part of the dispatch manager the gateway needs.
type EventManager interface {
	Subscribe(t event.Type, cb event.Callback) (*dispatch.Listener, error)
	Dispatch(ctx context.Context, ev event.Event) *dispatch.Completion
	ConsumeRawEvent(ctx context.Context, name string, gw dispatch.Gateway, payload json.RawMessage)
}

// Handler owns the gateway connection and keeps it alive.
type Handler struct {
	cfg    Config
	events EventManager
	logger *slog.Logger
	epoch  time.Time

	mu        sync.Mutex
	started   bool          // Start has been called at least once
	cancel    context.CancelFunc
	loopDone  chan struct{} // Closed when the keep-alive loop returns
	loopErr   error
	sock      *Socket
	attempt   uuid.UUID     // Current connection attempt
	authed    chan struct{} // Closed when the current attempt authenticates
	user      *entity.User
	closeOnce singleflight.Group

	state         atomic.Int32
	lastHeartbeat atomic.Int64 // Nanoseconds since epoch
	lastAck       atomic.Int64 // Nanoseconds since epoch
	latency       atomic.Int64
}

// NewHandler creates a Handler publishing to events.
func NewHandler(cfg Config, events EventManager, logger *slog.Logger) (*Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		cfg:    cfg.withDefaults(),
		events: events,
		logger: logger.With("component", "gateway"),
		epoch:  time.Now(),
	}

	if _, err := events.Subscribe(event.TypeAuthenticated, h.handleAuthenticated); err != nil {
		return nil, fmt.Errorf("subscribe to authenticated events: %w", err)
	}

	return h, nil
}

// attemptKey tags the context of every payload read during one connection
// attempt with that attempt's ID.
type attemptKey struct{}

func (h *Handler) handleAuthenticated(ctx context.Context, ev event.Event) error {
	auth, ok := ev.(event.AuthenticatedEvent)
	if !ok {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if id, tagged := ctx.Value(attemptKey{}).(uuid.UUID); tagged && id != h.attempt {
		h.logger.Debug("ignoring authentication from a previous attempt", "attempt", id)
		return nil
	}

	user := auth.User
	h.user = &user
	if h.authed != nil {
		select {
		case <-h.authed:
		default:
			close(h.authed)
		}
	}
	return nil
}

// Start launches the keep-alive loop and blocks until the first connection
// is established. If the loop fails before that, its error is returned and
// the handler may be started again. ctx only bounds the wait.
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		return ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	connected := make(chan struct{})

	h.started = true
	h.cancel = cancel
	h.loopDone = done
	h.loopErr = nil
	h.mu.Unlock()

	go func() {
		err := h.keepAlive(loopCtx, connected)

		h.mu.Lock()
		h.loopErr = err
		h.mu.Unlock()
		close(done)
	}()

	select {
	case <-connected:
		return nil
	case <-done:
		err := h.reap(done)
		if err != nil {
			return fmt.Errorf("start gateway: %w", err)
		}
		return ErrClosedBeforeStart
	case <-ctx.Done():
		select {
		case <-connected:
			return nil
		default:
		}
		cancel()
		<-done
		h.reap(done)
		return ctx.Err()
	}
}

// reap clears the loop bookkeeping once the loop identified by done has
// returned, and returns the loop's error.
func (h *Handler) reap(done chan struct{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	err := h.loopErr
	if h.loopDone == done {
		h.cancel = nil
		h.loopDone = nil
	}
	return err
}

// Close stops the keep-alive loop and waits for it to finish. Concurrent
// calls share one shutdown. Closing a stopped handler is a no-op; closing a
// handler that was never started returns ErrNotStarted.
func (h *Handler) Close(ctx context.Context) error {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()

	if !started {
		return ErrNotStarted
	}

	ch := h.closeOnce.DoChan("close", func() (any, error) {
		h.shutdown()
		return nil, nil
	})

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) shutdown() {
	h.mu.Lock()
	cancel, done := h.cancel, h.loopDone
	h.mu.Unlock()

	if cancel == nil {
		return
	}

	h.logger.Info("closing gateway connection")

	cancel()
	<-done
	h.reap(done)

	h.setState(StateClosed)
	h.logger.Info("gateway connection closed")
}

// keepAlive reconnects until ctx is cancelled. Before the first successful
// connection any failure ends the loop and is returned.
func (h *Handler) keepAlive(ctx context.Context, connected chan struct{}) error {
	bo := backoff.New(h.cfg.BackoffBase, h.cfg.BackoffMax, 0)

	var (
		startedAt     time.Time
		everConnected bool
	)

	for {
		if !startedAt.IsZero() && time.Since(startedAt) < h.cfg.BackoffWindow {
			wait := bo.Next()
			h.setState(StateBackoff)
			h.logger.Info("backing off before reconnecting", "backoff", wait)

			if !sleep(ctx, wait) {
				h.setState(StateDisconnecting)
				return nil
			}
		}

		startedAt = time.Now()
		wasConnected, err := h.runOnce(ctx, func() {
			if !everConnected {
				everConnected = true
				close(connected)
			}
		})

		switch {
		case ctx.Err() != nil:
			h.setState(StateDisconnecting)
			return nil
		case !wasConnected && !everConnected:
			return err
		case err == nil:
			bo.Reset()
		case IsConnectionError(err):
			h.logger.Warn("failed to communicate with the gateway, reconnecting shortly", "error", err)
		default:
			h.logger.Error("unhandled error communicating with the gateway", "error", err)
		}
	}
}

// runOnce performs one connection attempt and blocks until it ends. onConnect
// is called once authentication succeeds.
func (h *Handler) runOnce(ctx context.Context, onConnect func()) (connected bool, err error) {
	attempt := uuid.New()
	logger := h.logger.With("attempt", attempt)

	attemptCtx, stop := context.WithCancel(context.WithValue(ctx, attemptKey{}, attempt))
	defer stop()

	var g errgroup.Group
	finished := make(chan error, 2)

	h.setState(StateConnecting)

	sock, err := Dial(attemptCtx, h.cfg.URL, SocketConfig{
		HandshakeTimeout: h.cfg.HandshakeTimeout,
		CloseTimeout:     h.cfg.CloseTimeout,
		WriteTimeout:     h.cfg.WriteTimeout,
	}, logger)

	defer func() {
		h.setState(StateDisconnecting)
		stop()

		if sock != nil {
			sock.Close(CloseNormal, "see ya")
		}
		_ = g.Wait()

		h.mu.Lock()
		h.sock = nil
		h.attempt = uuid.Nil
		h.authed = nil
		h.mu.Unlock()

		h.events.Dispatch(context.WithoutCancel(ctx), event.DisconnectEvent{})
	}()

	if err != nil {
		return false, err
	}

	authed := make(chan struct{})
	h.mu.Lock()
	h.sock = sock
	h.attempt = attempt
	h.authed = authed
	h.mu.Unlock()

	h.setState(StateAwaitingHello)

	interval, err := h.pollHello(attemptCtx, sock)
	if err != nil {
		return false, err
	}

	h.setState(StateAuthenticating)

	token, _ := json.Marshal(h.cfg.Token)
	if err := sock.SendJSON(Payload{Op: OpAuthenticate, D: token}); err != nil {
		return false, err
	}

	now := h.now()
	h.lastAck.Store(now)
	h.lastHeartbeat.Store(now - 1)

	spawn := func(task func(context.Context, *Socket) error) {
		g.Go(func() error {
			err := task(attemptCtx, sock)
			finished <- err
			return err
		})
	}
	spawn(func(ctx context.Context, s *Socket) error { return h.heartbeat(ctx, s, interval) })
	spawn(h.poll)

	timer := time.NewTimer(h.cfg.AuthTimeout)
	defer timer.Stop()

	select {
	case <-authed:
	case err := <-finished:
		if err == nil {
			err = &ConnectionError{Reason: "connection ended before authentication"}
		}
		return false, err
	case <-timer.C:
		return false, &ConnectionError{Reason: ErrAuthenticationTimeout.Error(), Err: ErrAuthenticationTimeout}
	case <-attemptCtx.Done():
		return false, attemptCtx.Err()
	}

	h.setState(StateRunning)
	logger.Info("gateway connected", "heartbeat_interval", interval)

	onConnect()
	h.events.Dispatch(context.WithoutCancel(ctx), event.ConnectionEvent{})

	// Run until either lifetime task stops.
	select {
	case err := <-finished:
		return true, err
	case <-attemptCtx.Done():
		return true, attemptCtx.Err()
	}
}

// pollHello reads the first frame, which must be HELLO, and returns the
// heartbeat interval. The HELLO payload is also handed to the consumers.
func (h *Handler) pollHello(ctx context.Context, sock *Socket) (time.Duration, error) {
	sock.setReadDeadline(time.Now().Add(h.cfg.HandshakeTimeout))
	defer sock.setReadDeadline(time.Time{})

	stop := context.AfterFunc(ctx, func() { sock.setReadDeadline(time.Now()) })
	defer stop()

	p, err := sock.Receive()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, err
	}

	if p.Op != OpHello {
		h.logger.Debug("unexpected opcode during handshake, closing", "expected", OpHello, "received", p.Op)
		sock.Close(CloseProtocolError, "Expected HELLO op.")
		return 0, &ProtocolError{Expected: OpHello, Received: p.Op}
	}

	var hello struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(p.D, &hello); err != nil {
		return 0, &GatewayError{Reason: "malformed HELLO payload", Err: err}
	}
	if hello.HeartbeatInterval <= 0 {
		return 0, &GatewayError{Reason: fmt.Sprintf("invalid heartbeat interval %d", hello.HeartbeatInterval)}
	}

	h.events.ConsumeRawEvent(ctx, OpHello, h, p.D)

	return time.Duration(hello.HeartbeatInterval) * time.Millisecond, nil
}

func (h *Handler) now() int64 {
	return int64(time.Since(h.epoch))
}

func (h *Handler) setState(s State) {
	h.state.Store(int32(s))
}

// State returns the current lifecycle state.
func (h *Handler) State() State {
	return State(h.state.Load())
}

// IsAlive reports whether the keep-alive loop is running.
func (h *Handler) IsAlive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancel != nil
}

// IsConnected reports whether an authenticated connection is up.
func (h *Handler) IsConnected() bool {
	return h.State() == StateRunning
}

// HeartbeatLatency returns the round trip of the last acknowledged
// heartbeat, or zero before the first acknowledgement.
func (h *Handler) HeartbeatLatency() time.Duration {
	return time.Duration(h.latency.Load())
}

// User returns the authenticated user.
func (h *Handler) User() (entity.User, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.user == nil {
		return entity.User{}, ErrNotAuthenticated
	}
	return *h.user, nil
}
