package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/eludris-client/internal/backoff"
)

// DefaultURL is the gateway of the reference instance.
const DefaultURL = "wss://ws.eludris.gay"

// Opcodes handled by the gateway itself. Every other opcode is handed to the
// consumer registry.
const (
	OpHello        = "HELLO"
	OpAuthenticate = "AUTHENTICATE"
	OpPing         = "PING"
	OpPong         = "PONG"
)

// Close codes sent by the client.
const (
	CloseNormal        = 1000
	CloseProtocolError = 1002
)

// Payload is the envelope of every gateway frame.
type Payload struct {
	Op string          `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
}

// Errors
var (
	ErrAlreadyStarted        = errors.New("gateway handler already started")
	ErrNotStarted            = errors.New("gateway handler was never started")
	ErrClosedBeforeStart     = errors.New("connection was closed before it could start")
	ErrNotAuthenticated      = errors.New("user is not available before authentication")
	ErrAuthenticationTimeout = errors.New("failed to authenticate with the gateway")
	ErrSocketClosed          = errors.New("socket was closed")
)

// ConnectionError is a transport failure: dial, read, write, or an attempt
// that could not finish its handshake.
type ConnectionError struct {
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	return "gateway connection error: " + e.Reason
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ConnectionClosedError reports a close frame received from the server.
type ConnectionClosedError struct {
	Code   int
	Reason string
}

func (e *ConnectionClosedError) Error() string {
	return fmt.Sprintf("gateway closed the connection with code %d: %s", e.Code, e.Reason)
}

// ProtocolError reports an unexpected opcode.
type ProtocolError struct {
	Expected string
	Received string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("expected opcode %s, received %s instead", e.Expected, e.Received)
}

// GatewayError reports a frame that could not be processed.
type GatewayError struct {
	Reason string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is a transport level failure that is
// retried with backoff.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	var closedErr *ConnectionClosedError
	return errors.As(err, &connErr) || errors.As(err, &closedErr)
}

// State is the lifecycle state of a Handler.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateAwaitingHello
	StateAuthenticating
	StateRunning
	StateDisconnecting
	StateBackoff
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHello:
		return "awaiting_hello"
	case StateAuthenticating:
		return "authenticating"
	case StateRunning:
		return "running"
	case StateDisconnecting:
		return "disconnecting"
	case StateBackoff:
		return "backoff"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config configures a Handler.
type Config struct {
	URL   string // Gateway URL, DefaultURL when empty
	Token string // Sent with AUTHENTICATE

	BackoffBase   float64       // Seconds, raised to the attempt number
	BackoffMax    float64       // Seconds
	BackoffWindow time.Duration // Attempts started closer together than this back off

	HandshakeTimeout time.Duration // Websocket upgrade and HELLO
	AuthTimeout      time.Duration // AUTHENTICATE until AUTHENTICATED
	CloseTimeout     time.Duration // Sending the close frame
	WriteTimeout     time.Duration // Every other frame
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:              DefaultURL,
		BackoffBase:      backoff.DefaultBase,
		BackoffMax:       backoff.DefaultMaximum,
		BackoffWindow:    15 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		AuthTimeout:      10 * time.Second,
		CloseTimeout:     5 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = d.BackoffMax
	}
	if c.BackoffWindow <= 0 {
		c.BackoffWindow = d.BackoffWindow
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = d.AuthTimeout
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = d.CloseTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	return c
}
