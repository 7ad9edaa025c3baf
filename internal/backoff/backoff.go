// Package backoff produces reconnect wait durations.
package backoff

import (
	"math"
	"time"
)

// Default parameters, in seconds.
const (
	DefaultBase    = 2.0
	DefaultMaximum = 60.0
)

// Exponential yields min(base^attempt, maximum) seconds per draw.
//
// It is owned by a single goroutine and is not safe for concurrent use.
type Exponential struct {
	base    float64
	maximum float64

	initial int
	attempt int
}

// New creates an Exponential backoff starting at initialAttempt.
func New(base, maximum float64, initialAttempt int) *Exponential {
	return &Exponential{
		base:    base,
		maximum: maximum,
		initial: initialAttempt,
		attempt: initialAttempt,
	}
}

// Default returns a backoff with base 2 and a 60 second cap.
func Default() *Exponential {
	return New(DefaultBase, DefaultMaximum, 0)
}

// NextSeconds returns the next wait in seconds and advances the attempt
// counter unless the cap has been reached.
func (b *Exponential) NextSeconds() float64 {
	value := math.Pow(b.base, float64(b.attempt))

	if value >= b.maximum {
		return b.maximum
	}

	b.attempt++
	return value
}

// Next returns the next wait as a duration.
func (b *Exponential) Next() time.Duration {
	return time.Duration(b.NextSeconds() * float64(time.Second))
}

// Reset restores the attempt counter to its initial value.
func (b *Exponential) Reset() {
	b.attempt = b.initial
}

// Attempt returns the current attempt counter.
func (b *Exponential) Attempt() int {
	return b.attempt
}
