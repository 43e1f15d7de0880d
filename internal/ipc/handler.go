package ipc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gestured/internal/archive"
	"gestured/internal/engine"
	"gestured/internal/gesture"
	"gestured/internal/health"
	"gestured/internal/logging"
	"gestured/internal/metrics"
	"gestured/internal/zone"
)

// DaemonHandler answers control requests against the running daemon.
type DaemonHandler struct {
	engine    *engine.Engine
	archive   *archive.Recorder
	checker   *health.Checker
	met       *metrics.GesturedMetrics
	version   string
	startedAt time.Time
	log       *slog.Logger

	broadcast func(*Event)
}

// DaemonHandlerConfig wires the handler to daemon components. Archive and
// Checker may be nil when those subsystems are disabled.
type DaemonHandlerConfig struct {
	Engine  *engine.Engine
	Archive *archive.Recorder
	Checker *health.Checker
	Metrics *metrics.GesturedMetrics
	Version string
	Logger  *slog.Logger
}

// NewDaemonHandler creates a handler bound to the daemon's components.
func NewDaemonHandler(cfg DaemonHandlerConfig) *DaemonHandler {
	log := cfg.Logger
	if log == nil {
		log = logging.Default().WithComponent("ipc-handler").Logger
	}
	return &DaemonHandler{
		engine:    cfg.Engine,
		archive:   cfg.Archive,
		checker:   cfg.Checker,
		met:       cfg.Metrics,
		version:   cfg.Version,
		startedAt: time.Now(),
		log:       log,
	}
}

// SetBroadcaster installs the event sink used by EngineObserver. Typically
// Server.Broadcast.
func (h *DaemonHandler) SetBroadcaster(fn func(*Event)) {
	h.broadcast = fn
}

// HandleMessage implements Handler.
func (h *DaemonHandler) HandleMessage(ctx context.Context, client *Client, msg *Message) (*Message, error) {
	start := time.Now()
	defer func() {
		if h.met != nil {
			h.met.RequestsTotal.Inc()
			h.met.RequestDuration.ObserveDuration(time.Since(start))
		}
	}()

	switch msg.Header.Type {
	case MsgStatus:
		return h.handleStatus(msg)

	case MsgZoneList:
		return NewResponse(MsgZoneListResp, msg.Header.RequestID, &ZoneListResponse{Zones: h.engine.Zones()})
	case MsgZoneAdd:
		return h.handleZoneAdd(msg)
	case MsgZoneRemove:
		return h.handleZoneID(msg, MsgZoneRemoveResp, h.engine.RemoveZone)
	case MsgZoneEnable:
		return h.handleZoneID(msg, MsgZoneEnableResp, h.engine.EnableZone)
	case MsgZoneDisable:
		return h.handleZoneID(msg, MsgZoneDisableResp, h.engine.DisableZone)
	case MsgZoneUpdate:
		return h.handleZoneUpdate(msg)
	case MsgZoneClear:
		removed := h.engine.ClearZones()
		return NewResponse(MsgZoneClearResp, msg.Header.RequestID, &ZoneClearResponse{Removed: removed})

	case MsgConfigGet:
		return NewResponse(MsgConfigGetResp, msg.Header.RequestID, &ConfigGetResponse{Config: h.engine.Configuration()})
	case MsgConfigSet:
		return h.handleConfigSet(msg)

	case MsgStats:
		return NewResponse(MsgStatsResp, msg.Header.RequestID, &StatsResponse{Stats: h.engine.Statistics()})
	case MsgHistory:
		return h.handleHistory(msg)
	case MsgMetrics:
		return h.handleMetrics(msg)
	case MsgHealth:
		return h.handleHealth(ctx, msg)
	case MsgArchive:
		return h.handleArchive(msg)

	case MsgCancelAll:
		n := h.engine.CancelAll()
		return NewResponse(MsgCancelAllResp, msg.Header.RequestID, &CancelAllResponse{Cancelled: n})
	case MsgDetectionStart:
		return h.handleDetectionStart(msg)
	case MsgDetectionStop:
		return h.handleDetectionStop(msg)
	case MsgSubmit:
		return h.handleSubmit(msg)

	default:
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "unknown message type"), nil
	}
}

func (h *DaemonHandler) handleStatus(msg *Message) (*Message, error) {
	stats := h.engine.Statistics()
	resp := &StatusResponse{
		Version:        h.version,
		StartedAt:      h.startedAt,
		Uptime:         time.Since(h.startedAt),
		Running:        h.engine.Running(),
		ActiveGestures: stats.ActiveCount,
		Zones:          len(h.engine.Zones()),
		HistoryLength:  stats.WindowSize,
		TotalProcessed: stats.TotalProcessed,
		ArchiveEnabled: h.archive != nil,
	}
	if h.archive != nil {
		if n, err := h.archive.Count(); err == nil {
			resp.ArchivedCount = n
		}
	}
	return NewResponse(MsgStatusResp, msg.Header.RequestID, resp)
}

func (h *DaemonHandler) handleZoneAdd(msg *Message) (*Message, error) {
	var req ZoneRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid zone payload"), nil
	}
	if err := h.engine.AddZone(req.Zone); err != nil {
		return NewErrorMessage(msg.Header.RequestID, errorCode(err), err.Error()), nil
	}
	return NewResponse(MsgZoneAddResp, msg.Header.RequestID, &AckResponse{Success: true})
}

func (h *DaemonHandler) handleZoneUpdate(msg *Message) (*Message, error) {
	var req ZoneRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid zone payload"), nil
	}
	if err := h.engine.UpdateZone(req.Zone); err != nil {
		return NewErrorMessage(msg.Header.RequestID, errorCode(err), err.Error()), nil
	}
	return NewResponse(MsgZoneUpdateResp, msg.Header.RequestID, &AckResponse{Success: true})
}

func (h *DaemonHandler) handleZoneID(msg *Message, respType MessageType, op func(string) error) (*Message, error) {
	var req ZoneIDRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid zone id payload"), nil
	}
	if err := op(req.ID); err != nil {
		return NewErrorMessage(msg.Header.RequestID, errorCode(err), err.Error()), nil
	}
	return NewResponse(respType, msg.Header.RequestID, &AckResponse{Success: true})
}

func (h *DaemonHandler) handleConfigSet(msg *Message) (*Message, error) {
	var req ConfigSetRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid configuration payload"), nil
	}
	if err := h.engine.UpdateConfiguration(req.Config); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, err.Error()), nil
	}
	return NewResponse(MsgConfigSetResp, msg.Header.RequestID, &AckResponse{Success: true})
}

func (h *DaemonHandler) handleHistory(msg *Message) (*Message, error) {
	var req HistoryRequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid history request"), nil
		}
	}
	return NewResponse(MsgHistoryResp, msg.Header.RequestID, &HistoryResponse{
		Entries: h.engine.History(req.Limit),
	})
}

func (h *DaemonHandler) handleMetrics(msg *Message) (*Message, error) {
	if h.met == nil {
		return NewErrorMessage(msg.Header.RequestID, ErrNotFound, "metrics not enabled"), nil
	}
	return NewResponse(MsgMetricsResp, msg.Header.RequestID, &MetricsResponse{Metrics: h.met.Snapshot()})
}

func (h *DaemonHandler) handleHealth(ctx context.Context, msg *Message) (*Message, error) {
	if h.checker == nil {
		return NewErrorMessage(msg.Header.RequestID, ErrNotFound, "health checks not enabled"), nil
	}
	results := h.checker.RunChecks(ctx)
	return NewResponse(MsgHealthResp, msg.Header.RequestID, &HealthResponse{
		Overall:    h.checker.Overall(),
		Ready:      h.checker.Ready(),
		Components: results,
	})
}

func (h *DaemonHandler) handleArchive(msg *Message) (*Message, error) {
	if h.archive == nil {
		return NewErrorMessage(msg.Header.RequestID, ErrNotFound, "archive not enabled"), nil
	}
	var req ArchiveRequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid archive request"), nil
		}
	}

	count, err := h.archive.Count()
	if err != nil {
		return nil, err
	}
	rate, err := h.archive.SuccessRate()
	if err != nil {
		return nil, err
	}
	byKind, err := h.archive.CountByKind()
	if err != nil {
		return nil, err
	}
	recent, err := h.archive.Recent(req.Limit)
	if err != nil {
		return nil, err
	}

	resp := &ArchiveResponse{Count: count, SuccessRate: rate, Recent: recent}
	for _, kc := range byKind {
		resp.ByKind = append(resp.ByKind, KindCount{Kind: kc.Kind, Count: kc.Count})
	}
	return NewResponse(MsgArchiveResp, msg.Header.RequestID, resp)
}

func (h *DaemonHandler) handleDetectionStart(msg *Message) (*Message, error) {
	if h.engine.Running() {
		return NewErrorMessage(msg.Header.RequestID, ErrAlreadyRunning, "detection already running"), nil
	}
	if err := h.engine.Start(); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInternalError, err.Error()), nil
	}
	return NewResponse(MsgDetectionStartResp, msg.Header.RequestID, &AckResponse{Success: true})
}

func (h *DaemonHandler) handleDetectionStop(msg *Message) (*Message, error) {
	if !h.engine.Running() {
		return NewErrorMessage(msg.Header.RequestID, ErrNotRunning, "detection not running"), nil
	}
	if err := h.engine.Stop(); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInternalError, err.Error()), nil
	}
	return NewResponse(MsgDetectionStopResp, msg.Header.RequestID, &AckResponse{Success: true})
}

func (h *DaemonHandler) handleSubmit(msg *Message) (*Message, error) {
	var req SubmitRequest
	if err := Decode(msg.Payload, &req); err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid submit payload"), nil
	}
	for _, s := range req.Samples {
		h.engine.Submit(s)
	}
	return NewResponse(MsgSubmitResp, msg.Header.RequestID, &SubmitResponse{Submitted: len(req.Samples)})
}

// errorCode maps engine errors to protocol error codes.
func errorCode(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		return ErrNotFound
	case strings.Contains(msg, "already registered"), strings.Contains(msg, "duplicate"):
		return ErrAlreadyExists
	default:
		return ErrInvalidRequest
	}
}

// EngineObserver returns an observer that mirrors engine notifications onto
// the event stream. Register it with engine.Subscribe after calling
// SetBroadcaster.
func (h *DaemonHandler) EngineObserver() engine.Observer {
	return engine.Observer{
		ZoneAdded:    func(z zone.Zone) { h.zoneEvent("added", z, 0) },
		ZoneRemoved:  func(z zone.Zone) { h.zoneEvent("removed", z, 0) },
		ZoneEnabled:  func(z zone.Zone) { h.zoneEvent("enabled", z, 0) },
		ZoneDisabled: func(z zone.Zone) { h.zoneEvent("disabled", z, 0) },
		ZoneUpdated:  func(z zone.Zone) { h.zoneEvent("updated", z, 0) },
		ZonesCleared: func(count int) { h.zoneEvent("cleared", zone.Zone{}, count) },

		GestureProcessed: func(a gesture.Active) { h.emit(EventGestureProcessed, a) },
		GestureUpdated:   func(a gesture.Active) { h.emit(EventGestureUpdated, a) },
		GestureCompleted: func(c gesture.Completed) { h.emit(EventGestureCompleted, c) },
		GestureRejected: func(k gesture.Kind, reason string) {
			h.emit(EventGestureRejected, &GestureRejectedEvent{Kind: k.String(), Reason: reason})
		},

		ConfigurationUpdated: func(cfg gesture.Configuration) { h.emit(EventConfigUpdated, cfg) },

		DetectionStarted: func() { h.emit(EventDetectionStarted, nil) },
		DetectionStopped: func() { h.emit(EventDetectionStopped, nil) },
	}
}

func (h *DaemonHandler) zoneEvent(change string, z zone.Zone, count int) {
	h.emit(EventZoneChanged, &ZoneChangedEvent{Change: change, Zone: z, Count: count})
}

func (h *DaemonHandler) emit(t EventType, data any) {
	if h.broadcast == nil {
		return
	}
	ev := &Event{Type: t, Timestamp: time.Now()}
	if data != nil {
		raw, err := Encode(data)
		if err != nil {
			h.log.Debug("event payload encode failed", "type", t, "error", err)
			return
		}
		ev.Data = raw
	}
	h.broadcast(ev)
}
