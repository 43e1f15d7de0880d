// Package engine implements the interaction-routing core: it admits raw
// gesture samples, routes them to zones, arbitrates conflicts between
// in-flight gestures, drives the gesture lifecycle and keeps the completed
// history.
//
// All mutations of engine-owned state (zones, configuration, the active
// table, history) are serialized: sample processing runs on a single worker
// goroutine, and operations take the state lock. Samples cross into the
// engine through Submit, which never blocks the caller.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gioui.org/f32"
	"github.com/google/uuid"

	"gestured/internal/arbiter"
	"gestured/internal/gesture"
	"gestured/internal/history"
	"gestured/internal/logging"
	"gestured/internal/metrics"
	"gestured/internal/zone"
)

// Defaults for Config fields left zero.
const (
	// DefaultThrottleInterval admits at most one sample per display frame
	// at 60 Hz.
	DefaultThrottleInterval = 16 * time.Millisecond

	DefaultQueueSize    = 256
	DefaultNotifyBuffer = 128
)

// Config configures an Engine.
type Config struct {
	// ThrottleInterval is the minimum spacing between admitted samples.
	// Zero selects DefaultThrottleInterval; negative disables the throttle.
	ThrottleInterval time.Duration

	// QueueSize bounds the intake queue between Submit and the worker.
	QueueSize int

	// NotifyBuffer bounds the observer notification queue.
	NotifyBuffer int

	// HistoryCap bounds the completed-gesture history.
	HistoryCap int

	// StatsWindow is how many recent completions Statistics aggregates.
	StatsWindow int

	// Gestures is the initial gesture configuration.
	Gestures gesture.Configuration

	// Logger receives engine logs. Nil selects the default logger.
	Logger *slog.Logger

	// Metrics receives engine metrics. Nil creates a private set.
	Metrics *metrics.GesturedMetrics
}

// DefaultConfig returns an engine configuration with every gesture kind
// enabled and frame-rate throttling.
func DefaultConfig() Config {
	return Config{
		ThrottleInterval: DefaultThrottleInterval,
		QueueSize:        DefaultQueueSize,
		NotifyBuffer:     DefaultNotifyBuffer,
		HistoryCap:       history.DefaultCap,
		StatsWindow:      history.DefaultWindow,
		Gestures:         gesture.DefaultConfiguration(),
	}
}

// Statistics is a point-in-time aggregate over the engine's state and the
// rolling history window.
type Statistics struct {
	TotalProcessed uint64 `json:"total_processed"`
	ActiveCount    int    `json:"active_count"`
	history.Summary
}

// Engine is the interaction-routing core. Create one with New, feed it
// samples with Submit, and observe lifecycle transitions via Subscribe.
type Engine struct {
	throttle    time.Duration
	statsWindow int
	log         *slog.Logger
	met         *metrics.GesturedMetrics

	// now is replaceable for tests.
	now func() time.Time

	// lifeMu serializes Start, Stop and Close against each other.
	lifeMu sync.Mutex

	// mu serializes all engine-owned state below it.
	mu             sync.RWMutex
	zones          *zone.Registry
	resolver       *arbiter.Resolver
	gcfg           gesture.Configuration
	active         []gesture.Active
	hist           *history.Ring
	totalProcessed uint64
	closed         bool

	// cfgSnapshot mirrors gcfg for lock-free reads on the Submit path.
	cfgSnapshot atomic.Value

	// lastAdmitted is the unix-nano timestamp of the last sample to pass
	// the throttle. Checked and advanced atomically at the hand-off so two
	// near-simultaneous submissions cannot both pass the gate.
	lastAdmitted atomic.Int64

	tasks   chan gesture.Sample
	running atomic.Bool
	cancel  context.CancelFunc

	events      chan engineEvent
	obsMu       sync.RWMutex
	observers   []observerEntry
	nextObsID   uint64
	workerWG    sync.WaitGroup
	notifierWG  sync.WaitGroup
	closeOnce   sync.Once
}

// New creates an Engine from cfg. The notification dispatcher starts
// immediately; sample processing starts with Start.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Gestures.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid gesture configuration: %w", err)
	}

	if cfg.ThrottleInterval == 0 {
		cfg.ThrottleInterval = DefaultThrottleInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.NotifyBuffer <= 0 {
		cfg.NotifyBuffer = DefaultNotifyBuffer
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = history.DefaultWindow
	}

	log := cfg.Logger
	if log == nil {
		log = logging.Default().WithComponent("engine").Logger
	}
	met := cfg.Metrics
	if met == nil {
		met = metrics.NewGesturedMetrics(nil)
	}

	e := &Engine{
		throttle:    cfg.ThrottleInterval,
		statsWindow: cfg.StatsWindow,
		log:         log,
		met:         met,
		now:         time.Now,
		zones:       zone.NewRegistry(),
		resolver:    arbiter.NewResolver(cfg.Gestures),
		gcfg:        cfg.Gestures.Clone(),
		hist:        history.NewRing(cfg.HistoryCap),
		tasks:       make(chan gesture.Sample, cfg.QueueSize),
		events:      make(chan engineEvent, cfg.NotifyBuffer),
	}
	e.cfgSnapshot.Store(e.gcfg)

	e.notifierWG.Add(1)
	go e.notifierLoop()

	return e, nil
}

// Start begins sample processing and announces detection start.
func (e *Engine) Start() error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("engine: closed")
	}
	if e.running.Load() {
		return fmt.Errorf("engine: already running")
	}

	// Discard samples that raced into the queue while stopped.
drain:
	for {
		select {
		case <-e.tasks:
			e.met.DroppedNotRunning.Inc()
		default:
			break drain
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.workerWG.Add(1)
	go e.worker(ctx)
	e.running.Store(true)

	e.emit(engineEvent{kind: evDetectionStarted})
	e.log.Info("gesture detection started")
	return nil
}

// Stop halts sample processing after draining already-admitted samples,
// then announces detection stop. Zone, configuration and query operations
// remain available while stopped.
func (e *Engine) Stop() error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	return e.stop()
}

// stop is the body of Stop. Callers hold e.lifeMu.
func (e *Engine) stop() error {
	e.mu.Lock()
	if !e.running.Load() {
		e.mu.Unlock()
		return fmt.Errorf("engine: not running")
	}
	e.running.Store(false)
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.workerWG.Wait()

	e.mu.Lock()
	e.emit(engineEvent{kind: evDetectionStopped})
	e.mu.Unlock()

	e.log.Info("gesture detection stopped")
	return nil
}

// Running reports whether sample processing is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Close stops the engine if needed and shuts down notification dispatch.
// The engine is unusable afterwards.
func (e *Engine) Close() error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()

	if e.running.Load() {
		_ = e.stop()
	}
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.events)
		e.mu.Unlock()
		e.notifierWG.Wait()
	})
	return nil
}

func (e *Engine) worker(ctx context.Context) {
	defer e.workerWG.Done()
	for {
		select {
		case <-ctx.Done():
			// Drain what was already admitted before exiting.
			for {
				select {
				case s := <-e.tasks:
					e.mu.Lock()
					e.process(s)
					e.mu.Unlock()
				default:
					return
				}
			}
		case s := <-e.tasks:
			e.mu.Lock()
			e.process(s)
			e.mu.Unlock()
		}
	}
}

// Submit offers one raw sample to the engine. It never blocks and never
// returns an error: samples that do not pass filtering, throttling or the
// queue bound are dropped as a matter of policy, visible only in metrics.
// Admitted samples are processed asynchronously, in submission order.
func (e *Engine) Submit(s gesture.Sample) {
	e.met.SamplesSubmitted.Inc()

	if !e.running.Load() {
		e.met.DroppedNotRunning.Inc()
		return
	}
	cfg := e.cfgSnapshot.Load().(gesture.Configuration)
	if !cfg.KindEnabled(s.Kind) {
		e.met.DroppedKindDisabled.Inc()
		return
	}
	if !e.admitThrottle() {
		e.met.DroppedThrottled.Inc()
		return
	}

	select {
	case e.tasks <- s:
		e.met.SamplesAdmitted.Inc()
	default:
		e.met.DroppedQueueFull.Inc()
		e.log.Debug("intake queue full, sample dropped", "kind", s.Kind.String())
	}
}

// admitThrottle atomically checks and advances the throttle timestamp.
func (e *Engine) admitThrottle() bool {
	if e.throttle <= 0 {
		return true
	}
	now := e.now().UnixNano()
	for {
		last := e.lastAdmitted.Load()
		if last != 0 && now-last < int64(e.throttle) {
			return false
		}
		if e.lastAdmitted.CompareAndSwap(last, now) {
			return true
		}
	}
}

// process runs one admitted sample through zone routing, arbitration and
// the lifecycle state machine. Callers hold e.mu.
func (e *Engine) process(s gesture.Sample) {
	ts := s.Timestamp
	if ts.IsZero() {
		ts = e.now()
	}

	z, inZone := e.zones.FindZone(s.Location)
	if inZone && !z.Allows(s.Kind) {
		e.met.DroppedZonePolicy.Inc()
		e.log.Debug("gesture disallowed by zone",
			"zone", z.ID, "kind", s.Kind.String())
		return
	}

	// A sample for an already-active kind is that gesture's continuation:
	// replace location and phase in place, no re-arbitration.
	for i := range e.active {
		if e.active[i].Kind != s.Kind {
			continue
		}
		e.active[i].Phase = s.Phase
		e.active[i].Location = s.Location
		a := e.active[i]
		e.emit(engineEvent{kind: evGestureUpdated, active: a})
		if s.Phase.Terminal() {
			e.complete(a.ID, ts, s.Phase.Successful())
		}
		return
	}

	cand := gesture.Active{
		ID:          uuid.NewString(),
		Kind:        s.Kind,
		Phase:       s.Phase,
		Location:    s.Location,
		Sensitivity: 1.0,
		StartedAt:   ts,
	}
	if inZone {
		cand.ZoneID = z.ID
		cand.Sensitivity = z.Sensitivity
	}

	e.applyDecision(cand, e.resolver.Resolve(cand, e.active), ts)
}

// rejectDeferred is the reason surfaced when arbitration defers: deferred
// gestures are not queued, they are rejected immediately.
const rejectDeferred = "deferred recognition not supported"

// applyDecision applies one arbitration outcome to the candidate.
// Callers hold e.mu.
func (e *Engine) applyDecision(cand gesture.Active, d arbiter.Decision, ts time.Time) {
	switch d := d.(type) {
	case arbiter.Allow:
		e.store(cand, ts)
	case arbiter.Cancel:
		e.log.Debug("cancelling conflicting gestures",
			"reason", d.Reason, "count", len(d.IDs))
		for _, id := range d.IDs {
			e.complete(id, ts, false)
		}
		e.store(cand, ts)
	case arbiter.Defer:
		e.reject(cand.Kind, rejectDeferred)
	case arbiter.Reject:
		e.reject(cand.Kind, d.Reason)
	}
}

// store admits the candidate into the active table. A candidate whose own
// phase is already terminal completes immediately so no entry can get
// stuck. Callers hold e.mu.
func (e *Engine) store(a gesture.Active, ts time.Time) {
	e.active = append(e.active, a)
	e.totalProcessed++
	e.met.GesturesProcessed.Inc()
	e.met.ActiveGestures.Set(int64(len(e.active)))
	e.emit(engineEvent{kind: evGestureProcessed, active: a})

	if a.Phase.Terminal() {
		e.complete(a.ID, ts, a.Phase.Successful())
	}
}

// complete removes the active entry with the given id and records its
// completion. Callers hold e.mu.
func (e *Engine) complete(id string, end time.Time, successful bool) {
	for i := range e.active {
		if e.active[i].ID != id {
			continue
		}
		a := e.active[i]
		e.active = append(e.active[:i], e.active[i+1:]...)

		c := a.Complete(end, successful)
		e.hist.Record(c)
		e.met.GesturesCompleted.Inc()
		e.met.ActiveGestures.Set(int64(len(e.active)))
		e.met.HistoryLength.Set(int64(e.hist.Len()))
		e.met.GestureDuration.ObserveDuration(c.Duration)
		e.emit(engineEvent{kind: evGestureCompleted, completed: c})
		return
	}
}

func (e *Engine) reject(k gesture.Kind, reason string) {
	e.met.GesturesRejected.Inc()
	e.emit(engineEvent{kind: evGestureRejected, gestureKind: k, reason: reason})
}

// forceCancel completes every active entry matching the predicate as
// unsuccessful and returns how many were cancelled. Callers hold e.mu.
func (e *Engine) forceCancel(match func(gesture.Active) bool, reason string) int {
	end := e.now()
	var ids []string
	for _, a := range e.active {
		if match(a) {
			ids = append(ids, a.ID)
		}
	}
	for _, id := range ids {
		e.complete(id, end, false)
	}
	if len(ids) > 0 {
		e.log.Debug("force-cancelled active gestures",
			"reason", reason, "count", len(ids))
	}
	return len(ids)
}

// AddZone registers a new zone.
func (e *Engine) AddZone(z zone.Zone) error {
	if err := z.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.zones.Get(z.ID); ok {
		return fmt.Errorf("engine: zone %s already registered", z.ID)
	}
	e.zones.Add(z)
	e.met.ZonesRegistered.Set(int64(e.zones.Len()))
	e.emit(engineEvent{kind: evZoneAdded, zone: z})
	return nil
}

// RemoveZone deletes a zone, force-cancelling its active gestures first.
func (e *Engine) RemoveZone(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	z, ok := e.zones.Get(id)
	if !ok {
		return fmt.Errorf("engine: zone %s not found", id)
	}
	e.forceCancel(func(a gesture.Active) bool { return a.ZoneID == id }, "zone removed")
	e.zones.Remove(id)
	e.met.ZonesRegistered.Set(int64(e.zones.Len()))
	e.emit(engineEvent{kind: evZoneRemoved, zone: z})
	return nil
}

// EnableZone re-enables a disabled zone.
func (e *Engine) EnableZone(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.zones.Enable(id) {
		return fmt.Errorf("engine: zone %s not found", id)
	}
	z, _ := e.zones.Get(id)
	e.emit(engineEvent{kind: evZoneEnabled, zone: z})
	return nil
}

// DisableZone disables a zone without removing it, force-cancelling its
// active gestures.
func (e *Engine) DisableZone(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.zones.Disable(id) {
		return fmt.Errorf("engine: zone %s not found", id)
	}
	e.forceCancel(func(a gesture.Active) bool { return a.ZoneID == id }, "zone disabled")
	z, _ := e.zones.Get(id)
	e.emit(engineEvent{kind: evZoneDisabled, zone: z})
	return nil
}

// UpdateZone replaces a zone by identity. An update that lands the zone
// disabled behaves like DisableZone for its active gestures.
func (e *Engine) UpdateZone(z zone.Zone) error {
	if err := z.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.zones.Update(z) {
		return fmt.Errorf("engine: zone %s not found", z.ID)
	}
	if !z.Enabled {
		e.forceCancel(func(a gesture.Active) bool { return a.ZoneID == z.ID }, "zone disabled by update")
	}
	e.emit(engineEvent{kind: evZoneUpdated, zone: z})
	return nil
}

// ClearZones removes every zone, force-cancelling all zone-bound gestures,
// and returns how many zones were dropped.
func (e *Engine) ClearZones() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clearZones()
}

// clearZones is the lock-held body shared with ReplaceZones.
func (e *Engine) clearZones() int {
	e.forceCancel(func(a gesture.Active) bool { return a.ZoneID != "" }, "zones cleared")
	n := e.zones.Clear()
	e.met.ZonesRegistered.Set(0)
	e.emit(engineEvent{kind: evZonesCleared, count: n})
	return n
}

// ReplaceZones swaps the whole zone set in one serialized step, as a clear
// followed by adds. Used by profile reloads.
func (e *Engine) ReplaceZones(zones []zone.Zone) error {
	seen := make(map[string]bool, len(zones))
	for _, z := range zones {
		if err := z.Validate(); err != nil {
			return err
		}
		if seen[z.ID] {
			return fmt.Errorf("engine: duplicate zone id %s", z.ID)
		}
		seen[z.ID] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.clearZones()
	for _, z := range zones {
		e.zones.Add(z)
		e.emit(engineEvent{kind: evZoneAdded, zone: z})
	}
	e.met.ZonesRegistered.Set(int64(e.zones.Len()))
	return nil
}

// UpdateConfiguration replaces the gesture configuration wholesale. Active
// gestures whose kind is no longer enabled are force-cancelled.
func (e *Engine) UpdateConfiguration(cfg gesture.Configuration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.gcfg = cfg.Clone()
	e.cfgSnapshot.Store(e.gcfg)
	e.resolver.SetConfiguration(e.gcfg)
	e.forceCancel(func(a gesture.Active) bool { return !e.gcfg.KindEnabled(a.Kind) }, "kind disabled")
	e.emit(engineEvent{kind: evConfigurationUpdated, config: e.gcfg.Clone()})
	return nil
}

// CancelAll force-cancels every active gesture and returns how many.
func (e *Engine) CancelAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forceCancel(func(gesture.Active) bool { return true }, "cancel all")
}

// Configuration returns a copy of the current gesture configuration.
func (e *Engine) Configuration() gesture.Configuration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gcfg.Clone()
}

// FindZone returns the highest-priority enabled zone containing p.
func (e *Engine) FindZone(p f32.Point) (zone.Zone, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.zones.FindZone(p)
}

// ZonesAt returns every enabled zone containing p, priority-descending.
func (e *Engine) ZonesAt(p f32.Point) []zone.Zone {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.zones.ZonesContaining(p)
}

// Zones returns all registered zones, priority-descending.
func (e *Engine) Zones() []zone.Zone {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.zones.Zones()
}

// Zone returns the zone with the given id.
func (e *Engine) Zone(id string) (zone.Zone, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.zones.Get(id)
}

// GestureAllowed reports whether a gesture of kind k may proceed at p.
func (e *Engine) GestureAllowed(k gesture.Kind, p f32.Point) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.zones.GestureAllowed(k, p)
}

// ActiveGestures returns a copy of the in-flight gesture table.
func (e *Engine) ActiveGestures() []gesture.Active {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]gesture.Active, len(e.active))
	copy(out, e.active)
	return out
}

// ActiveCount returns the number of in-flight gestures.
func (e *Engine) ActiveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.active)
}

// History returns the most recent n completions, oldest first. n <= 0
// returns everything retained.
func (e *Engine) History(n int) []gesture.Completed {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if n <= 0 {
		return e.hist.Entries()
	}
	return e.hist.Window(n)
}

// Statistics aggregates the engine state and the rolling history window.
func (e *Engine) Statistics() Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Statistics{
		TotalProcessed: e.totalProcessed,
		ActiveCount:    len(e.active),
		Summary:        history.Summarize(e.hist.Window(e.statsWindow)),
	}
}

// Metrics returns the engine's metric set.
func (e *Engine) Metrics() *metrics.GesturedMetrics {
	return e.met
}
