// Package ipc provides the control protocol between the gestured daemon
// and client tools (gesturectl, third-party integrations).
//
// Messages are a fixed 16-byte binary header followed by a JSON payload.
// Requests and responses are correlated by request id; the server also
// streams lifecycle events to subscribed clients.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gestured/internal/engine"
	"gestured/internal/gesture"
	"gestured/internal/health"
	"gestured/internal/metrics"
	"gestured/internal/zone"
)

// Protocol version for compatibility checking.
const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x47535443 // "GSTC" - Gestured Socket Control
)

// MessageType identifies the type of IPC message.
type MessageType uint16

const (
	// Control messages (0x00xx)
	MsgPing       MessageType = 0x0001
	MsgPong       MessageType = 0x0002
	MsgStatus     MessageType = 0x0003
	MsgStatusResp MessageType = 0x0004

	// Zone operations (0x01xx)
	MsgZoneList        MessageType = 0x0100
	MsgZoneListResp    MessageType = 0x0101
	MsgZoneAdd         MessageType = 0x0102
	MsgZoneAddResp     MessageType = 0x0103
	MsgZoneRemove      MessageType = 0x0104
	MsgZoneRemoveResp  MessageType = 0x0105
	MsgZoneEnable      MessageType = 0x0106
	MsgZoneEnableResp  MessageType = 0x0107
	MsgZoneDisable     MessageType = 0x0108
	MsgZoneDisableResp MessageType = 0x0109
	MsgZoneUpdate      MessageType = 0x010A
	MsgZoneUpdateResp  MessageType = 0x010B
	MsgZoneClear       MessageType = 0x010C
	MsgZoneClearResp   MessageType = 0x010D

	// Configuration (0x02xx)
	MsgConfigGet     MessageType = 0x0200
	MsgConfigGetResp MessageType = 0x0201
	MsgConfigSet     MessageType = 0x0202
	MsgConfigSetResp MessageType = 0x0203

	// Statistics and introspection (0x03xx)
	MsgStats       MessageType = 0x0300
	MsgStatsResp   MessageType = 0x0301
	MsgHistory     MessageType = 0x0302
	MsgHistoryResp MessageType = 0x0303
	MsgMetrics     MessageType = 0x0304
	MsgMetricsResp MessageType = 0x0305
	MsgHealth      MessageType = 0x0306
	MsgHealthResp  MessageType = 0x0307
	MsgArchive     MessageType = 0x0308
	MsgArchiveResp MessageType = 0x0309

	// Detection control (0x04xx)
	MsgCancelAll          MessageType = 0x0400
	MsgCancelAllResp      MessageType = 0x0401
	MsgDetectionStart     MessageType = 0x0402
	MsgDetectionStartResp MessageType = 0x0403
	MsgDetectionStop      MessageType = 0x0404
	MsgDetectionStopResp  MessageType = 0x0405
	MsgSubmit             MessageType = 0x0406
	MsgSubmitResp         MessageType = 0x0407

	// Event streaming (0x05xx)
	MsgSubscribe       MessageType = 0x0500
	MsgSubscribeResp   MessageType = 0x0501
	MsgUnsubscribe     MessageType = 0x0502
	MsgUnsubscribeResp MessageType = 0x0503

	// Out-of-band messages (0x80xx)
	MsgEvent MessageType = 0x8000
	MsgError MessageType = 0x8001
)

// EventType identifies the type of streamed event.
type EventType uint16

const (
	EventZoneChanged      EventType = 0x0001
	EventGestureProcessed EventType = 0x0002
	EventGestureUpdated   EventType = 0x0003
	EventGestureCompleted EventType = 0x0004
	EventGestureRejected  EventType = 0x0005
	EventConfigUpdated    EventType = 0x0006
	EventDetectionStarted EventType = 0x0007
	EventDetectionStopped EventType = 0x0008
)

// Header is the fixed-size message header (16 bytes).
type Header struct {
	Magic     uint32      // Protocol magic number
	Version   uint8       // Protocol version
	Flags     uint8       // Message flags
	Type      MessageType // Message type
	RequestID uint32      // Request ID for correlation
	Length    uint32      // Payload length (not including header)
}

// HeaderSize is the size of the header in bytes.
const HeaderSize = 16

// Header flags.
const (
	FlagJSON  uint8 = 0x01
	FlagError uint8 = 0x02
	FlagEvent uint8 = 0x04
)

// MaxPayloadSize bounds a single message payload.
const MaxPayloadSize = 16 * 1024 * 1024

// Message wraps a header and payload.
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage creates a new message with the given type and payload.
func NewMessage(msgType MessageType, requestID uint32, payload []byte) *Message {
	return &Message{
		Header: Header{
			Magic:     ProtocolMagic,
			Version:   ProtocolVersion,
			Flags:     FlagJSON,
			Type:      msgType,
			RequestID: requestID,
			Length:    uint32(len(payload)),
		},
		Payload: payload,
	}
}

// Write writes the header to a writer.
func (h *Header) Write(w io.Writer) error {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Flags
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Type))
	binary.BigEndian.PutUint32(buf[8:12], h.RequestID)
	binary.BigEndian.PutUint32(buf[12:16], h.Length)
	_, err := w.Write(buf)
	return err
}

// ReadHeader reads a header from a reader.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	h := &Header{
		Magic:     binary.BigEndian.Uint32(buf[0:4]),
		Version:   buf[4],
		Flags:     buf[5],
		Type:      MessageType(binary.BigEndian.Uint16(buf[6:8])),
		RequestID: binary.BigEndian.Uint32(buf[8:12]),
		Length:    binary.BigEndian.Uint32(buf[12:16]),
	}

	if h.Magic != ProtocolMagic {
		return nil, fmt.Errorf("invalid magic number: %x", h.Magic)
	}
	if h.Version > ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", h.Version)
	}

	return h, nil
}

// Write writes the message to a writer.
func (m *Message) Write(w io.Writer) error {
	if err := m.Header.Write(w); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		_, err := w.Write(m.Payload)
		return err
	}
	return nil
}

// ReadMessage reads a complete message from a reader.
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: *h}
	if h.Length > 0 {
		if h.Length > MaxPayloadSize {
			return nil, fmt.Errorf("payload too large: %d bytes", h.Length)
		}
		m.Payload = make([]byte, h.Length)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Error codes.
const (
	ErrUnknown        = 1
	ErrInvalidRequest = 2
	ErrNotFound       = 3
	ErrInternalError  = 4
	ErrAlreadyExists  = 5
	ErrNotRunning     = 6
	ErrAlreadyRunning = 7
)

// ErrorResponse is sent when an operation fails.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Request/response payloads

// PongResponse answers a ping with the server's version.
type PongResponse struct {
	Version string `json:"version"`
}

// StatusResponse contains daemon status.
type StatusResponse struct {
	Version        string        `json:"version"`
	StartedAt      time.Time     `json:"started_at"`
	Uptime         time.Duration `json:"uptime_ns"`
	Running        bool          `json:"running"`
	ActiveGestures int           `json:"active_gestures"`
	Zones          int           `json:"zones"`
	HistoryLength  int           `json:"history_length"`
	TotalProcessed uint64        `json:"total_processed"`
	ArchiveEnabled bool          `json:"archive_enabled"`
	ArchivedCount  int64         `json:"archived_count,omitempty"`
}

// ZoneListResponse contains the registered zones, priority-descending.
type ZoneListResponse struct {
	Zones []zone.Zone `json:"zones"`
}

// ZoneRequest carries one zone for add/update operations.
type ZoneRequest struct {
	Zone zone.Zone `json:"zone"`
}

// ZoneIDRequest addresses a zone by identity.
type ZoneIDRequest struct {
	ID string `json:"id"`
}

// AckResponse acknowledges a mutation.
type AckResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ZoneClearResponse reports how many zones were removed.
type ZoneClearResponse struct {
	Removed int `json:"removed"`
}

// ConfigGetResponse contains the current gesture configuration.
type ConfigGetResponse struct {
	Config gesture.Configuration `json:"config"`
}

// ConfigSetRequest replaces the gesture configuration wholesale.
type ConfigSetRequest struct {
	Config gesture.Configuration `json:"config"`
}

// StatsResponse contains the engine statistics snapshot.
type StatsResponse struct {
	Stats engine.Statistics `json:"stats"`
}

// HistoryRequest requests recent completions.
type HistoryRequest struct {
	Limit int `json:"limit,omitempty"`
}

// HistoryResponse contains recent completions, oldest first.
type HistoryResponse struct {
	Entries []gesture.Completed `json:"entries"`
}

// MetricsResponse contains the metrics registry snapshot.
type MetricsResponse struct {
	Metrics metrics.Snapshot `json:"metrics"`
}

// HealthResponse contains component health.
type HealthResponse struct {
	Overall    health.Status        `json:"overall"`
	Ready      bool                 `json:"ready"`
	Components []health.CheckResult `json:"components"`
}

// ArchiveRequest requests archived completions.
type ArchiveRequest struct {
	Limit int `json:"limit,omitempty"`
}

// ArchiveResponse contains archive aggregates and recent rows.
type ArchiveResponse struct {
	Count       int64               `json:"count"`
	SuccessRate float64             `json:"success_rate"`
	ByKind      []KindCount         `json:"by_kind"`
	Recent      []gesture.Completed `json:"recent"`
}

// KindCount is one per-kind archive aggregate row.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

// CancelAllResponse reports how many gestures were cancelled.
type CancelAllResponse struct {
	Cancelled int `json:"cancelled"`
}

// SubmitRequest feeds samples into the engine, in order.
type SubmitRequest struct {
	Samples []gesture.Sample `json:"samples"`
}

// SubmitResponse reports how many samples were offered.
type SubmitResponse struct {
	Submitted int `json:"submitted"`
}

// SubscribeRequest requests event subscription. An empty set subscribes
// to every event type.
type SubscribeRequest struct {
	Events []EventType `json:"events,omitempty"`
}

// SubscribeResponse acknowledges subscription.
type SubscribeResponse struct {
	Success bool `json:"success"`
}

// Event is one streamed lifecycle event.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ZoneChangedEvent is the payload of EventZoneChanged.
type ZoneChangedEvent struct {
	Change string    `json:"change"` // added, removed, enabled, disabled, updated, cleared
	Zone   zone.Zone `json:"zone,omitempty"`
	Count  int       `json:"count,omitempty"`
}

// GestureRejectedEvent is the payload of EventGestureRejected.
type GestureRejectedEvent struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Encode encodes a payload to JSON bytes.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode decodes JSON bytes into a payload.
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewErrorMessage creates an error message.
func NewErrorMessage(requestID uint32, code int, message string) *Message {
	payload, _ := Encode(&ErrorResponse{
		Code:    code,
		Message: message,
	})
	m := NewMessage(MsgError, requestID, payload)
	m.Header.Flags |= FlagError
	return m
}

// NewResponse creates a response message with an encoded payload.
func NewResponse(msgType MessageType, requestID uint32, v any) (*Message, error) {
	payload, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return NewMessage(msgType, requestID, payload), nil
}

// NewEventMessage wraps an event for streaming.
func NewEventMessage(requestID uint32, ev *Event) (*Message, error) {
	payload, err := Encode(ev)
	if err != nil {
		return nil, err
	}
	m := NewMessage(MsgEvent, requestID, payload)
	m.Header.Flags |= FlagEvent
	return m, nil
}
