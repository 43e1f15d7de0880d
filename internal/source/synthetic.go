package source

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"gioui.org/f32"

	"gestured/internal/gesture"
	"gestured/internal/logging"
)

// Defaults for SyntheticConfig fields left zero.
const (
	DefaultSyntheticRate   = 60.0
	DefaultSyntheticBuffer = 64
	DefaultCancelRatio     = 0.1
)

// SyntheticConfig configures a Synthetic source.
type SyntheticConfig struct {
	// Seed seeds the generator. Zero seeds from the current time, which
	// makes the stream non-reproducible.
	Seed int64

	// Rate is the emission rate in samples per second.
	Rate float64

	// Bounds is the region gesture locations walk inside. A zero rectangle
	// selects a 1920x1080 surface.
	Bounds gesture.Rect

	// Kinds is the set of gesture kinds to generate. Empty selects all.
	Kinds []gesture.Kind

	// CancelRatio is the fraction of gestures that end unsuccessfully.
	CancelRatio float64

	// Buffer is the sample channel capacity.
	Buffer int

	// Logger receives generator logs. Nil selects the default logger.
	Logger *slog.Logger
}

// Synthetic generates plausible gesture traffic from a seeded random
// source: each gesture is a began sample, a short random walk of changed
// samples, and a terminal sample. Useful for exercising the engine without
// an input device.
type Synthetic struct {
	cfg SyntheticConfig
	log *slog.Logger
	rng *rand.Rand

	out     chan gesture.Sample
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ Source = (*Synthetic)(nil)

// NewSynthetic creates a synthetic source.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultSyntheticRate
	}
	if cfg.Bounds == (gesture.Rect{}) {
		cfg.Bounds = gesture.Rect{Max: f32.Pt(1920, 1080)}
	}
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = gesture.Kinds()
	}
	if cfg.CancelRatio <= 0 {
		cfg.CancelRatio = DefaultCancelRatio
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultSyntheticBuffer
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Default().WithComponent("synthetic").Logger
	}
	return &Synthetic{
		cfg: cfg,
		log: log,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		out: make(chan gesture.Sample, cfg.Buffer),
	}
}

// Start begins generating samples.
func (s *Synthetic) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx)

	s.log.Info("synthetic generator started",
		"seed", s.cfg.Seed, "rate", s.cfg.Rate)
	return nil
}

// Stop halts generation and closes the sample channel.
func (s *Synthetic) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}
	s.cancel()
	s.wg.Wait()
	return nil
}

// Samples returns the generated sample channel.
func (s *Synthetic) Samples() <-chan gesture.Sample {
	return s.out
}

// Available always reports true.
func (s *Synthetic) Available() (bool, string) {
	return true, "synthetic generator"
}

func (s *Synthetic) run(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.out)

	interval := time.Duration(float64(time.Second) / s.cfg.Rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var script []gesture.Sample
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if len(script) == 0 {
			script = s.nextGesture()
		}
		next := script[0]
		script = script[1:]
		next.Timestamp = time.Now()

		select {
		case <-ctx.Done():
			return
		case s.out <- next:
		}
	}
}

// nextGesture scripts one full gesture: began, zero or more changed
// samples random-walking from the origin, then a terminal sample.
func (s *Synthetic) nextGesture() []gesture.Sample {
	kind := s.cfg.Kinds[s.rng.Intn(len(s.cfg.Kinds))]
	loc := s.randomPoint()
	touches := touchesFor(kind)

	steps := s.rng.Intn(5)
	terminal := gesture.Ended
	if s.rng.Float64() < s.cfg.CancelRatio {
		if s.rng.Float64() < 0.5 {
			terminal = gesture.Cancelled
		} else {
			terminal = gesture.Failed
		}
	}

	script := make([]gesture.Sample, 0, steps+2)
	script = append(script, gesture.Sample{
		Kind: kind, Phase: gesture.Began, Location: loc, Touches: touches,
	})
	for i := 0; i < steps; i++ {
		var vel f32.Point
		loc, vel = s.walk(loc)
		script = append(script, gesture.Sample{
			Kind: kind, Phase: gesture.Changed, Location: loc,
			Velocity: vel, Touches: touches,
		})
	}
	script = append(script, gesture.Sample{
		Kind: kind, Phase: terminal, Location: loc, Touches: touches,
	})
	return script
}

func (s *Synthetic) randomPoint() f32.Point {
	b := s.cfg.Bounds
	return f32.Pt(
		b.Min.X+s.rng.Float32()*(b.Max.X-b.Min.X),
		b.Min.Y+s.rng.Float32()*(b.Max.Y-b.Min.Y),
	)
}

// walk moves the location by a bounded random step, clamped to the
// configured bounds, and returns the new location with its step velocity.
func (s *Synthetic) walk(p f32.Point) (f32.Point, f32.Point) {
	step := func() float32 { return (s.rng.Float32() - 0.5) * 30 }
	vel := f32.Pt(step(), step())
	next := p.Add(vel)

	b := s.cfg.Bounds
	if next.X < b.Min.X {
		next.X = b.Min.X
	}
	if next.X > b.Max.X {
		next.X = b.Max.X
	}
	if next.Y < b.Min.Y {
		next.Y = b.Min.Y
	}
	if next.Y > b.Max.Y {
		next.Y = b.Max.Y
	}
	return next, vel
}

func touchesFor(k gesture.Kind) int {
	switch k {
	case gesture.Pinch, gesture.Magnify, gesture.Rotate:
		return 2
	default:
		return 1
	}
}
