package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/eludris-client/internal/api"
	"github.com/rickgao/eludris-client/internal/dispatch"
	"github.com/rickgao/eludris-client/internal/event"
	"github.com/rickgao/eludris-client/internal/gateway"
)

const testToken = "secret-token"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type frame struct {
	Op string `json:"op"`
	D  any    `json:"d,omitempty"`
}

// gatewayServer plays a minimal gateway: HELLO, AUTHENTICATED, then the
// given frames, then PONG for every PING.
func gatewayServer(t *testing.T, after ...frame) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		_ = conn.WriteJSON(frame{Op: "HELLO", D: map[string]any{
			"heartbeat_interval": 20000,
			"instance_info":      map[string]any{"instance_name": "test"},
			"pandemonium_info":   map[string]any{"url": "ws://test"},
		}})

		var auth gateway.Payload
		if err := conn.ReadJSON(&auth); err != nil || auth.Op != gateway.OpAuthenticate {
			return
		}
		var token string
		if json.Unmarshal(auth.D, &token) != nil || token != testToken {
			return
		}

		_ = conn.WriteJSON(frame{Op: "AUTHENTICATED", D: map[string]any{
			"user":  map[string]any{"id": 7, "username": "me", "status": map[string]any{"type": "ONLINE"}},
			"users": []any{},
		}})

		// Give listeners registered after Start a moment to subscribe.
		time.Sleep(50 * time.Millisecond)
		for _, f := range after {
			_ = conn.WriteJSON(f)
		}

		for {
			var p gateway.Payload
			if err := conn.ReadJSON(&p); err != nil {
				return
			}
			if p.Op == gateway.OpPing {
				_ = conn.WriteJSON(frame{Op: gateway.OpPong})
			}
		}
	}))
}

func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()

	cfg := gateway.DefaultConfig()
	cfg.URL = "ws" + strings.TrimPrefix(server.URL, "http")
	cfg.BackoffMax = 0.05
	cfg.CloseTimeout = time.Second

	opts = append([]Option{
		WithLogger(testLogger()),
		WithGatewayConfig(cfg),
		WithRestURL(server.URL),
	}, opts...)

	c, err := New(testToken, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	c, err := New(testToken,
		WithLogger(testLogger()),
		WithRestURL("https://api.example.com"),
		WithAPIOptions(api.WithRetries(0, time.Millisecond)),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if c.REST().Token() != testToken {
		t.Errorf("REST().Token() = %q, want %q", c.REST().Token(), testToken)
	}
	if c.Manager() == nil || c.Gateway() == nil || c.EntityFactory() == nil || c.EventFactory() == nil {
		t.Error("components should not be nil")
	}
	if c.State() != gateway.StateIdle {
		t.Errorf("State() = %s, want idle", c.State())
	}
	if c.IsAlive() {
		t.Error("IsAlive() = true before Start")
	}

	// The gateway subscribes to authenticated events on construction.
	if got := len(c.GetListeners(event.TypeAuthenticated, false)); got != 1 {
		t.Errorf("authenticated listeners = %d, want 1", got)
	}
}

func TestClient_CloseBeforeStart(t *testing.T) {
	c, err := New(testToken, WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestClient_ReceivesMessages(t *testing.T) {
	server := gatewayServer(t, frame{Op: "MESSAGE_CREATE", D: map[string]any{
		"author":  map[string]any{"id": 9, "username": "yendri"},
		"content": "hi there",
	}})
	defer server.Close()

	c := newTestClient(t, server)

	received := make(chan event.MessageCreateEvent, 1)
	if _, err := Listen(c, func(_ context.Context, ev event.MessageCreateEvent) error {
		received <- ev
		return nil
	}); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case ev := <-received:
		if ev.Content != "hi there" || ev.Author.Username != "yendri" {
			t.Errorf("event = %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for MessageCreateEvent")
	}

	user, err := c.User()
	if err != nil || user.ID != 7 {
		t.Errorf("User() = %+v, %v", user, err)
	}

	if err := c.Close(ctx); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := c.Close(ctx); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if c.IsAlive() {
		t.Error("IsAlive() = true after Close")
	}
}

func TestClient_Await(t *testing.T) {
	server := gatewayServer(t,
		frame{Op: "PRESENCE_UPDATE", D: map[string]any{"user_id": 1, "status": map[string]any{"type": "IDLE"}}},
		frame{Op: "PRESENCE_UPDATE", D: map[string]any{"user_id": 2, "status": map[string]any{"type": "BUSY"}}},
	)
	defer server.Close()

	c := newTestClient(t, server)

	type result struct {
		ev  event.PresenceUpdateEvent
		err error
	}
	got := make(chan result, 1)
	waiting := make(chan struct{})
	go func() {
		close(waiting)
		ev, err := Await(context.Background(), c, 5*time.Second, func(ev event.PresenceUpdateEvent) bool {
			return ev.UserID == 2
		})
		got <- result{ev, err}
	}()
	<-waiting
	// Let the waiter register before the frames arrive.
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer c.Close(ctx)

	select {
	case r := <-got:
		if r.err != nil {
			t.Fatalf("Await() error = %v", r.err)
		}
		if r.ev.UserID != 2 || r.ev.Status.Type != "BUSY" {
			t.Errorf("Await() = %+v", r.ev)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for Await")
	}
}

func TestClient_Run(t *testing.T) {
	server := gatewayServer(t)
	defer server.Close()

	c := newTestClient(t, server, WithCloseTimeout(2*time.Second))

	var connects atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	_, _ = c.Subscribe(event.TypeConnection, func(context.Context, event.Event) error {
		connects.Add(1)
		cancel()
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("Run() did not return")
	}

	if connects.Load() != 1 {
		t.Errorf("connects = %d, want 1", connects.Load())
	}
	if c.State() != gateway.StateClosed {
		t.Errorf("State() = %s, want closed", c.State())
	}
}

func TestClient_RunStartFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := newTestClient(t, server)

	err := c.Run(context.Background())
	var connErr *gateway.ConnectionError
	if !errors.As(err, &connErr) {
		t.Errorf("Run() error = %v, want *gateway.ConnectionError", err)
	}
}

func TestClient_Dispatch(t *testing.T) {
	c, err := New(testToken, WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var calls atomic.Int32
	l, err := c.Subscribe(event.TypeMessage, func(context.Context, event.Event) error {
		calls.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := c.Dispatch(context.Background(), event.MessageCreateEvent{Content: "x"}).Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}

	if err := c.Unsubscribe(l); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if err := c.Unsubscribe(l); !errors.Is(err, dispatch.ErrListenerNotFound) {
		t.Errorf("second Unsubscribe() error = %v, want ErrListenerNotFound", err)
	}
}
