// Package source produces gesture samples for the engine. Sources are how
// raw events enter the daemon: the replay source feeds recorded samples
// back at their original pacing, the synthetic source generates seeded
// random gesture traffic for testing and load work.
//
// A source is started once. Its sample channel closes when the source
// stops or its context is cancelled; the daemon pumps the channel into
// Engine.Submit.
package source

import (
	"context"
	"errors"

	"gestured/internal/gesture"
)

// Source produces gesture samples.
type Source interface {
	// Start begins producing samples.
	Start(ctx context.Context) error

	// Stop halts production and closes the sample channel.
	Stop() error

	// Samples returns the channel samples are delivered on.
	Samples() <-chan gesture.Sample

	// Available reports whether the source can produce samples right now,
	// with a human-readable reason.
	Available() (bool, string)
}

// ErrAlreadyRunning is returned when Start is called on a running source.
var ErrAlreadyRunning = errors.New("source already running")

// ErrNotRunning is returned when Stop is called on a stopped source.
var ErrNotRunning = errors.New("source not running")
