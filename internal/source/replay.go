package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gestured/internal/gesture"
	"gestured/internal/logging"
)

// DefaultReplayBuffer is the sample channel capacity for replay sources.
const DefaultReplayBuffer = 64

// ReplayConfig configures a Replay source.
type ReplayConfig struct {
	// Path is the JSONL file to replay, one gesture.Sample per line.
	Path string

	// Speed scales the inter-sample delays derived from recorded
	// timestamps. 2.0 plays back twice as fast. Zero means 1.0.
	Speed float64

	// Delay, when positive, is a fixed inter-sample delay that overrides
	// the recorded timestamps.
	Delay time.Duration

	// Loop restarts the file from the beginning after the last sample.
	Loop bool

	// Buffer is the sample channel capacity.
	Buffer int

	// Logger receives replay logs. Nil selects the default logger.
	Logger *slog.Logger
}

// Replay feeds recorded samples from a JSONL file, pacing them by their
// recorded timestamps. Malformed lines are skipped with a warning so a
// partially damaged recording still plays.
type Replay struct {
	cfg ReplayConfig
	log *slog.Logger

	out     chan gesture.Sample
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ Source = (*Replay)(nil)

// NewReplay creates a replay source for the given file.
func NewReplay(cfg ReplayConfig) *Replay {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultReplayBuffer
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Default().WithComponent("replay").Logger
	}
	return &Replay{
		cfg: cfg,
		log: log,
		out: make(chan gesture.Sample, cfg.Buffer),
	}
}

// Start begins playback. The file must exist and be readable.
func (r *Replay) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	if _, err := os.Stat(r.cfg.Path); err != nil {
		r.running.Store(false)
		return fmt.Errorf("replay: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	go r.run(ctx)

	r.log.Info("replay started", "path", r.cfg.Path, "loop", r.cfg.Loop)
	return nil
}

// Stop halts playback and closes the sample channel.
func (r *Replay) Stop() error {
	if !r.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}
	r.cancel()
	r.wg.Wait()
	return nil
}

// Samples returns the replayed sample channel. It closes when playback
// finishes or the source stops.
func (r *Replay) Samples() <-chan gesture.Sample {
	return r.out
}

// Available reports whether the replay file is readable.
func (r *Replay) Available() (bool, string) {
	if _, err := os.Stat(r.cfg.Path); err != nil {
		return false, err.Error()
	}
	return true, "replay file readable"
}

func (r *Replay) run(ctx context.Context) {
	defer r.wg.Done()
	defer close(r.out)

	for {
		if err := r.playFile(ctx); err != nil {
			if ctx.Err() == nil {
				r.log.Error("replay aborted", "error", err)
			}
			return
		}
		if !r.cfg.Loop {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// playFile streams the file once, sleeping between samples according to
// the recorded timestamps.
func (r *Replay) playFile(ctx context.Context) error {
	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	var prev time.Time
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var s gesture.Sample
		if err := json.Unmarshal(line, &s); err != nil {
			r.log.Warn("skipping malformed sample", "error", err)
			continue
		}

		if d := r.delayBetween(prev, s.Timestamp); d > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
		}
		prev = s.Timestamp

		select {
		case <-ctx.Done():
			return ctx.Err()
		case r.out <- s:
		}
	}
	return scanner.Err()
}

func (r *Replay) delayBetween(prev, cur time.Time) time.Duration {
	if r.cfg.Delay > 0 {
		return r.cfg.Delay
	}
	if prev.IsZero() || cur.IsZero() {
		return 0
	}
	d := cur.Sub(prev)
	if d <= 0 {
		return 0
	}
	speed := r.cfg.Speed
	if speed <= 0 {
		speed = 1.0
	}
	return time.Duration(float64(d) / speed)
}
