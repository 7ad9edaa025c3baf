// Package client ties the gateway, the dispatch manager and the REST client
// together behind one handle.
package client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/eludris-client/internal/api"
	"github.com/rickgao/eludris-client/internal/dispatch"
	"github.com/rickgao/eludris-client/internal/entity"
	"github.com/rickgao/eludris-client/internal/event"
	"github.com/rickgao/eludris-client/internal/gateway"
)

// Client is a connected Eludris client.
type Client struct {
	logger   *slog.Logger
	entities entity.Factory
	events   event.Factory
	manager  *dispatch.Manager
	rest     *api.Client
	gateway  *gateway.Handler

	closeTimeout time.Duration
}

type options struct {
	logger     *slog.Logger
	entities   entity.Factory
	gateway    gateway.Config
	restURL    string
	apiOpts    []api.ClientOption
	errBuffer  int
	closeAfter time.Duration
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEntityFactory replaces the payload decoder.
func WithEntityFactory(f entity.Factory) Option {
	return func(o *options) {
		o.entities = f
	}
}

// WithGatewayConfig sets the gateway settings. The token is always taken
// from New.
func WithGatewayConfig(cfg gateway.Config) Option {
	return func(o *options) {
		o.gateway = cfg
	}
}

// WithRestURL sets the REST API base URL.
func WithRestURL(url string) Option {
	return func(o *options) {
		o.restURL = url
	}
}

// WithAPIOptions passes options through to the REST client.
func WithAPIOptions(opts ...api.ClientOption) Option {
	return func(o *options) {
		o.apiOpts = append(o.apiOpts, opts...)
	}
}

// WithErrorBuffer sets the capacity of the consumer error channel.
func WithErrorBuffer(n int) Option {
	return func(o *options) {
		o.errBuffer = n
	}
}

// WithCloseTimeout bounds the shutdown performed by Run.
func WithCloseTimeout(d time.Duration) Option {
	return func(o *options) {
		o.closeAfter = d
	}
}

// New builds a client for token. Nothing connects until Start.
func New(token string, opts ...Option) (*Client, error) {
	o := options{
		logger:     slog.Default(),
		entities:   entity.NewFactory(),
		gateway:    gateway.DefaultConfig(),
		closeAfter: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.entities == nil {
		o.entities = entity.NewFactory()
	}

	events := event.NewFactory(o.entities)

	managerOpts := []dispatch.Option{dispatch.WithLogger(o.logger)}
	if o.errBuffer > 0 {
		managerOpts = append(managerOpts, dispatch.WithErrorBuffer(o.errBuffer))
	}
	manager := dispatch.NewManager(events, managerOpts...)

	gwCfg := o.gateway
	gwCfg.Token = token
	gw, err := gateway.NewHandler(gwCfg, manager, o.logger)
	if err != nil {
		return nil, err
	}

	apiOpts := append([]api.ClientOption{
		api.WithLogger(o.logger),
		api.WithEntityFactory(o.entities),
	}, o.apiOpts...)

	return &Client{
		logger:       o.logger,
		entities:     o.entities,
		events:       events,
		manager:      manager,
		rest:         api.NewClient(o.restURL, token, apiOpts...),
		gateway:      gw,
		closeTimeout: o.closeAfter,
	}, nil
}

// Start connects to the gateway and returns once the first session is
// authenticated.
func (c *Client) Start(ctx context.Context) error {
	return c.gateway.Start(ctx)
}

// Close disconnects the gateway, then releases the REST client. Closing a
// client that is not running is a no-op.
func (c *Client) Close(ctx context.Context) error {
	err := c.gateway.Close(ctx)
	if errors.Is(err, gateway.ErrNotStarted) {
		err = nil
	}
	c.rest.Close()
	return err
}

// Run starts the client, blocks until ctx is done and then closes it.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.closeTimeout)
	defer cancel()
	return c.Close(closeCtx)
}

// Subscribe registers cb for events of type t and its subtypes.
func (c *Client) Subscribe(t event.Type, cb event.Callback) (*dispatch.Listener, error) {
	return c.manager.Subscribe(t, cb)
}

// Unsubscribe removes a listener returned by Subscribe or Listen.
func (c *Client) Unsubscribe(l *dispatch.Listener) error {
	return c.manager.Unsubscribe(l)
}

// Dispatch publishes ev to its listeners and waiters.
func (c *Client) Dispatch(ctx context.Context, ev event.Event) *dispatch.Completion {
	return c.manager.Dispatch(ctx, ev)
}

// WaitFor blocks until an event of type t satisfies pred.
func (c *Client) WaitFor(ctx context.Context, t event.Type, timeout time.Duration, pred dispatch.Predicate) (event.Event, error) {
	return c.manager.WaitFor(ctx, t, timeout, pred)
}

// GetListeners returns the listeners of t, including those of its parent
// types when polymorphic is set.
func (c *Client) GetListeners(t event.Type, polymorphic bool) []*dispatch.Listener {
	return c.manager.GetListeners(t, polymorphic)
}

// RegisterConsumer adds a gateway payload consumer.
func (c *Client) RegisterConsumer(name string, fn dispatch.ConsumerFunc, types ...event.Type) error {
	return c.manager.RegisterConsumer(name, fn, types...)
}

// Errors reports consumer failures.
func (c *Client) Errors() <-chan error {
	return c.manager.Errors()
}

// IsAlive reports whether the gateway keep-alive loop is running.
func (c *Client) IsAlive() bool { return c.gateway.IsAlive() }

// HeartbeatLatency returns the last measured heartbeat round trip.
func (c *Client) HeartbeatLatency() time.Duration { return c.gateway.HeartbeatLatency() }

// State returns the gateway connection state.
func (c *Client) State() gateway.State { return c.gateway.State() }

// User returns the authenticated user.
func (c *Client) User() (entity.User, error) { return c.gateway.User() }

// REST returns the REST client.
func (c *Client) REST() *api.Client { return c.rest }

// Manager returns the dispatch manager.
func (c *Client) Manager() *dispatch.Manager { return c.manager }

// Gateway returns the gateway handler.
func (c *Client) Gateway() *gateway.Handler { return c.gateway }

// EntityFactory returns the entity decoder.
func (c *Client) EntityFactory() entity.Factory { return c.entities }

// EventFactory returns the event decoder.
func (c *Client) EventFactory() event.Factory { return c.events }

// Listen subscribes fn to events of type E on c.
func Listen[E event.Event](c *Client, fn func(context.Context, E) error, types ...event.Type) ([]*dispatch.Listener, error) {
	return dispatch.Listen(c.manager, fn, types...)
}

// Await waits for the first event of type E accepted by pred.
func Await[E event.Event](ctx context.Context, c *Client, timeout time.Duration, pred func(E) bool) (E, error) {
	return dispatch.Await(ctx, c.manager, timeout, pred)
}
