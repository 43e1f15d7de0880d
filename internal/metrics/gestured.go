package metrics

// GesturedMetrics holds all gestured-specific metrics.
type GesturedMetrics struct {
	registry *Registry

	// Counters
	SamplesSubmitted     *Counter
	SamplesAdmitted      *Counter
	DroppedNotRunning    *Counter
	DroppedKindDisabled  *Counter
	DroppedThrottled     *Counter
	DroppedQueueFull     *Counter
	DroppedZonePolicy    *Counter
	GesturesProcessed    *Counter
	GesturesCompleted    *Counter
	GesturesRejected     *Counter
	NotificationsDropped *Counter
	ArchiveInserts       *Counter
	ArchiveDropped       *Counter
	RequestsTotal        *Counter

	// Gauges
	ActiveGestures  *Gauge
	ZonesRegistered *Gauge
	HistoryLength   *Gauge

	// Histograms
	GestureDuration *Histogram
	RequestDuration *Histogram
}

// NewGesturedMetrics creates and registers all gestured metrics. A nil
// registry gets a private one.
func NewGesturedMetrics(registry *Registry) *GesturedMetrics {
	if registry == nil {
		registry = NewRegistry()
	}

	return &GesturedMetrics{
		registry: registry,

		SamplesSubmitted: registry.RegisterCounter(
			"samples_submitted_total",
			"Total gesture samples offered to the engine",
		),
		SamplesAdmitted: registry.RegisterCounter(
			"samples_admitted_total",
			"Total gesture samples admitted past filtering and throttling",
		),
		DroppedNotRunning: registry.RegisterCounter(
			"samples_dropped_not_running_total",
			"Samples dropped because detection was stopped",
		),
		DroppedKindDisabled: registry.RegisterCounter(
			"samples_dropped_kind_disabled_total",
			"Samples dropped because the gesture kind is not enabled",
		),
		DroppedThrottled: registry.RegisterCounter(
			"samples_dropped_throttled_total",
			"Samples dropped by the frame-rate throttle",
		),
		DroppedQueueFull: registry.RegisterCounter(
			"samples_dropped_queue_full_total",
			"Samples dropped because the intake queue was full",
		),
		DroppedZonePolicy: registry.RegisterCounter(
			"samples_dropped_zone_policy_total",
			"Samples dropped by a zone whitelist",
		),
		GesturesProcessed: registry.RegisterCounter(
			"gestures_processed_total",
			"Gestures admitted and made active",
		),
		GesturesCompleted: registry.RegisterCounter(
			"gestures_completed_total",
			"Gestures that reached a terminal phase",
		),
		GesturesRejected: registry.RegisterCounter(
			"gestures_rejected_total",
			"Gestures refused by arbitration",
		),
		NotificationsDropped: registry.RegisterCounter(
			"notifications_dropped_total",
			"Observer notifications dropped on overflow",
		),
		ArchiveInserts: registry.RegisterCounter(
			"archive_inserts_total",
			"Completed gestures written to the archive",
		),
		ArchiveDropped: registry.RegisterCounter(
			"archive_dropped_total",
			"Completed gestures dropped before archiving",
		),
		RequestsTotal: registry.RegisterCounter(
			"ipc_requests_total",
			"Control-socket requests handled",
		),

		ActiveGestures: registry.RegisterGauge(
			"active_gestures",
			"Gestures currently in flight",
		),
		ZonesRegistered: registry.RegisterGauge(
			"zones_registered",
			"Zones currently registered",
		),
		HistoryLength: registry.RegisterGauge(
			"history_length",
			"Completed gestures currently retained",
		),

		GestureDuration: registry.RegisterHistogram(
			"gesture_duration_ms",
			"Duration of completed gestures in milliseconds",
			nil,
		),
		RequestDuration: registry.RegisterHistogram(
			"ipc_request_duration_ms",
			"Control-socket request handling time in milliseconds",
			nil,
		),
	}
}

// Registry returns the backing registry.
func (m *GesturedMetrics) Registry() *Registry {
	return m.registry
}

// Snapshot captures the current value of every metric.
func (m *GesturedMetrics) Snapshot() Snapshot {
	return m.registry.Snapshot()
}
