package engine

import (
	"gestured/internal/gesture"
	"gestured/internal/zone"
)

// Observer receives engine notifications. Only the callbacks that are set
// are invoked. Callbacks run on the engine's dispatch goroutine, in emit
// order, after the triggering operation has already taken effect; they
// must not block for long, and they may call back into the engine.
type Observer struct {
	ZoneAdded    func(z zone.Zone)
	ZoneRemoved  func(z zone.Zone)
	ZoneEnabled  func(z zone.Zone)
	ZoneDisabled func(z zone.Zone)
	ZoneUpdated  func(z zone.Zone)
	ZonesCleared func(count int)

	GestureProcessed func(a gesture.Active)
	GestureUpdated   func(a gesture.Active)
	GestureCompleted func(c gesture.Completed)
	GestureRejected  func(k gesture.Kind, reason string)

	ConfigurationUpdated func(cfg gesture.Configuration)

	DetectionStarted func()
	DetectionStopped func()
}

// Handle identifies one subscription.
type Handle struct {
	id uint64
	e  *Engine
}

// Remove cancels the subscription. Safe to call more than once.
func (h Handle) Remove() {
	if h.e != nil {
		h.e.unsubscribe(h.id)
	}
}

type observerEntry struct {
	id  uint64
	obs Observer
}

// Subscribe registers an observer and returns a handle for removal.
func (e *Engine) Subscribe(obs Observer) Handle {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.nextObsID++
	e.observers = append(e.observers, observerEntry{id: e.nextObsID, obs: obs})
	return Handle{id: e.nextObsID, e: e}
}

func (e *Engine) unsubscribe(id uint64) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	for i := range e.observers {
		if e.observers[i].id == id {
			e.observers = append(e.observers[:i], e.observers[i+1:]...)
			return
		}
	}
}

type eventKind int

const (
	evZoneAdded eventKind = iota
	evZoneRemoved
	evZoneEnabled
	evZoneDisabled
	evZoneUpdated
	evZonesCleared
	evGestureProcessed
	evGestureUpdated
	evGestureCompleted
	evGestureRejected
	evConfigurationUpdated
	evDetectionStarted
	evDetectionStopped
)

func (k eventKind) String() string {
	switch k {
	case evZoneAdded:
		return "zone_added"
	case evZoneRemoved:
		return "zone_removed"
	case evZoneEnabled:
		return "zone_enabled"
	case evZoneDisabled:
		return "zone_disabled"
	case evZoneUpdated:
		return "zone_updated"
	case evZonesCleared:
		return "zones_cleared"
	case evGestureProcessed:
		return "gesture_processed"
	case evGestureUpdated:
		return "gesture_updated"
	case evGestureCompleted:
		return "gesture_completed"
	case evGestureRejected:
		return "gesture_rejected"
	case evConfigurationUpdated:
		return "configuration_updated"
	case evDetectionStarted:
		return "detection_started"
	case evDetectionStopped:
		return "detection_stopped"
	default:
		return "unknown"
	}
}

// engineEvent carries one notification through the dispatch queue. Only
// the fields relevant to its kind are set.
type engineEvent struct {
	kind        eventKind
	zone        zone.Zone
	count       int
	active      gesture.Active
	completed   gesture.Completed
	gestureKind gesture.Kind
	reason      string
	config      gesture.Configuration
}

// emit queues one notification. Emits never block state mutation: when the
// dispatch queue is full the notification is dropped and counted. Callers
// hold e.mu.
func (e *Engine) emit(ev engineEvent) {
	if e.closed {
		e.met.NotificationsDropped.Inc()
		return
	}
	select {
	case e.events <- ev:
	default:
		e.met.NotificationsDropped.Inc()
		e.log.Debug("notification queue full, event dropped", "event", ev.kind.String())
	}
}

// notifierLoop delivers queued notifications to subscribers until the
// engine closes.
func (e *Engine) notifierLoop() {
	defer e.notifierWG.Done()
	for ev := range e.events {
		e.dispatch(ev)
	}
}

func (e *Engine) dispatch(ev engineEvent) {
	e.obsMu.RLock()
	subs := make([]Observer, len(e.observers))
	for i := range e.observers {
		subs[i] = e.observers[i].obs
	}
	e.obsMu.RUnlock()

	for _, obs := range subs {
		switch ev.kind {
		case evZoneAdded:
			if obs.ZoneAdded != nil {
				obs.ZoneAdded(ev.zone)
			}
		case evZoneRemoved:
			if obs.ZoneRemoved != nil {
				obs.ZoneRemoved(ev.zone)
			}
		case evZoneEnabled:
			if obs.ZoneEnabled != nil {
				obs.ZoneEnabled(ev.zone)
			}
		case evZoneDisabled:
			if obs.ZoneDisabled != nil {
				obs.ZoneDisabled(ev.zone)
			}
		case evZoneUpdated:
			if obs.ZoneUpdated != nil {
				obs.ZoneUpdated(ev.zone)
			}
		case evZonesCleared:
			if obs.ZonesCleared != nil {
				obs.ZonesCleared(ev.count)
			}
		case evGestureProcessed:
			if obs.GestureProcessed != nil {
				obs.GestureProcessed(ev.active)
			}
		case evGestureUpdated:
			if obs.GestureUpdated != nil {
				obs.GestureUpdated(ev.active)
			}
		case evGestureCompleted:
			if obs.GestureCompleted != nil {
				obs.GestureCompleted(ev.completed)
			}
		case evGestureRejected:
			if obs.GestureRejected != nil {
				obs.GestureRejected(ev.gestureKind, ev.reason)
			}
		case evConfigurationUpdated:
			if obs.ConfigurationUpdated != nil {
				obs.ConfigurationUpdated(ev.config)
			}
		case evDetectionStarted:
			if obs.DetectionStarted != nil {
				obs.DetectionStarted()
			}
		case evDetectionStopped:
			if obs.DetectionStopped != nil {
				obs.DetectionStopped()
			}
		}
	}
}
