package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rickgao/eludris-client/internal/event"
)

// printer writes events to out, one line each.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

func (p *printer) printf(format string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, format, args...)
	return err
}

func (p *printer) dump(tag string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return p.printf("[%s] %s\n", tag, data)
}

func (p *printer) message(_ context.Context, ev event.MessageCreateEvent) error {
	if p.verbose {
		return p.dump("MESSAGE", ev)
	}
	name := ev.Author.Username
	if ev.Author.DisplayName != nil {
		name = *ev.Author.DisplayName
	}
	return p.printf("[MESSAGE] %s: %s\n", name, ev.Content)
}

func (p *printer) presence(_ context.Context, ev event.PresenceUpdateEvent) error {
	if p.verbose {
		return p.dump("PRESENCE", ev)
	}
	return p.printf("[PRESENCE] user=%d status=%s\n", ev.UserID, ev.Status.Type)
}

func (p *printer) userUpdate(_ context.Context, ev event.UserUpdateEvent) error {
	if p.verbose {
		return p.dump("USER", ev)
	}
	return p.printf("[USER] id=%d username=%s\n", ev.User.ID, ev.User.Username)
}

func (p *printer) ratelimit(_ context.Context, ev event.RatelimitEvent) error {
	return p.printf("[RATELIMIT] wait=%s\n", ev.Wait)
}

func (p *printer) lifecycle(_ context.Context, ev event.Event) error {
	switch ev.(type) {
	case event.ConnectionEvent:
		return p.printf("[CONNECTED]\n")
	case event.DisconnectEvent:
		return p.printf("[DISCONNECTED]\n")
	}
	return nil
}

// exception reports a failed listener and retries it once.
func (p *printer) exception(ctx context.Context, ev event.ExceptionEvent) error {
	if err := p.printf("[ERROR] listener for %T failed: %v\n", ev.FailedEvent, ev.Err); err != nil {
		return err
	}
	if err := ev.Retry(ctx); err != nil {
		return p.printf("[ERROR] retry failed: %v\n", err)
	}
	return nil
}
