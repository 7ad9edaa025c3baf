package gateway

import (
	"context"
	"math/rand/v2"
	"time"
)

// jitter delays the first heartbeat so that clients started together do not
// beat in lockstep.
var jitter = func(interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	return rand.N(interval)
}

// heartbeat sends PING every interval. It returns nil when ctx is done or
// when the previous PING was never acknowledged.
func (h *Handler) heartbeat(ctx context.Context, sock *Socket, interval time.Duration) error {
	delay := jitter(interval)
	h.logger.Debug("starting heartbeat", "jitter", delay, "interval", interval)

	if !sleep(ctx, delay) {
		return nil
	}

	for {
		if h.lastAck.Load() <= h.lastHeartbeat.Load() {
			h.logger.Error("heartbeat was not acknowledged, reconnecting",
				"since_ack", time.Duration(h.now()-h.lastAck.Load()),
			)
			return nil
		}

		h.logger.Debug("sending heartbeat")
		h.lastHeartbeat.Store(h.now())
		if err := sock.SendJSON(Payload{Op: OpPing}); err != nil {
			return err
		}

		if !sleep(ctx, interval) {
			return nil
		}
	}
}

// poll reads frames until the socket fails. PONG updates the heartbeat
// bookkeeping, PING is answered, everything else goes to the consumers.
func (h *Handler) poll(ctx context.Context, sock *Socket) error {
	for {
		p, err := sock.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		switch p.Op {
		case OpPong:
			now := h.now()
			h.lastAck.Store(now)
			latency := time.Duration(now - h.lastHeartbeat.Load())
			h.latency.Store(int64(latency))
			h.logger.Debug("received heartbeat ack", "latency", latency)

		case OpPing:
			if err := sock.SendJSON(Payload{Op: OpPong}); err != nil {
				return err
			}

		default:
			h.events.ConsumeRawEvent(ctx, p.Op, h, p.D)
		}
	}
}
