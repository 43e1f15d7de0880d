package ipc

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"gestured/internal/gesture"
	"gestured/internal/zone"
)

// DefaultRequestTimeout bounds one request/response round trip.
const DefaultRequestTimeout = 10 * time.Second

// ErrClientClosed is returned for requests on a closed client.
var ErrClientClosed = errors.New("ipc: client closed")

// RemoteError is a failure reported by the daemon.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("ipc: remote error %d: %s", e.Code, e.Message)
}

// EventHandler receives streamed events after Subscribe.
type EventHandler func(ev *Event)

// IPCClient is a client for the daemon's control socket. Safe for
// concurrent use; requests are correlated by id so callers can overlap.
type IPCClient struct {
	conn    net.Conn
	timeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint32]chan *Message
	handler EventHandler
	closed  bool

	nextRequestID atomic.Uint32
	readDone      chan struct{}
}

// Connect connects to the daemon's control socket.
func Connect(socketPath string) (*IPCClient, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ipc: connect to %s: %w", socketPath, err)
	}

	c := &IPCClient{
		conn:     conn,
		timeout:  DefaultRequestTimeout,
		pending:  make(map[uint32]chan *Message),
		readDone: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// SetTimeout changes the per-request timeout.
func (c *IPCClient) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// OnEvent installs the handler for streamed events. Set before Subscribe.
func (c *IPCClient) OnEvent(fn EventHandler) {
	c.mu.Lock()
	c.handler = fn
	c.mu.Unlock()
}

// Close closes the connection. Pending requests fail.
func (c *IPCClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.Close()
	<-c.readDone
	return err
}

func (c *IPCClient) readLoop() {
	defer close(c.readDone)
	defer func() {
		c.mu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.closed = true
		c.mu.Unlock()
	}()

	for {
		msg, err := ReadMessage(c.conn)
		if err != nil {
			return
		}

		if msg.Header.Flags&FlagEvent != 0 {
			var ev Event
			if err := Decode(msg.Payload, &ev); err == nil {
				c.mu.Lock()
				handler := c.handler
				c.mu.Unlock()
				if handler != nil {
					handler(&ev)
				}
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.Header.RequestID]
		if ok {
			delete(c.pending, msg.Header.RequestID)
		}
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// request sends one message and waits for the correlated response.
func (c *IPCClient) request(msgType MessageType, payload any) (*Message, error) {
	var raw []byte
	if payload != nil {
		var err error
		raw, err = Encode(payload)
		if err != nil {
			return nil, fmt.Errorf("ipc: encode request: %w", err)
		}
	}

	id := c.nextRequestID.Add(1)
	msg := NewMessage(msgType, id, raw)

	ch := make(chan *Message, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	err := msg.Write(c.conn)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("ipc: send request: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClientClosed
		}
		if resp.Header.Flags&FlagError != 0 {
			var er ErrorResponse
			if err := Decode(resp.Payload, &er); err != nil {
				return nil, fmt.Errorf("ipc: malformed error response: %w", err)
			}
			return nil, &RemoteError{Code: er.Code, Message: er.Message}
		}
		return resp, nil
	case <-time.After(c.timeout):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("ipc: request timed out after %s", c.timeout)
	}
}

// call performs a request and decodes the response payload into out. A nil
// out discards the payload.
func (c *IPCClient) call(msgType MessageType, payload, out any) error {
	resp, err := c.request(msgType, payload)
	if err != nil {
		return err
	}
	if out != nil && len(resp.Payload) > 0 {
		if err := Decode(resp.Payload, out); err != nil {
			return fmt.Errorf("ipc: decode response: %w", err)
		}
	}
	return nil
}

// Ping checks liveness of the daemon.
func (c *IPCClient) Ping() error {
	return c.call(MsgPing, nil, nil)
}

// Status returns daemon status.
func (c *IPCClient) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call(MsgStatus, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Zones lists registered zones, priority-descending.
func (c *IPCClient) Zones() ([]zone.Zone, error) {
	var resp ZoneListResponse
	if err := c.call(MsgZoneList, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Zones, nil
}

// AddZone registers a zone.
func (c *IPCClient) AddZone(z zone.Zone) error {
	return c.call(MsgZoneAdd, &ZoneRequest{Zone: z}, nil)
}

// RemoveZone removes a zone by id.
func (c *IPCClient) RemoveZone(id string) error {
	return c.call(MsgZoneRemove, &ZoneIDRequest{ID: id}, nil)
}

// EnableZone enables a zone by id.
func (c *IPCClient) EnableZone(id string) error {
	return c.call(MsgZoneEnable, &ZoneIDRequest{ID: id}, nil)
}

// DisableZone disables a zone by id.
func (c *IPCClient) DisableZone(id string) error {
	return c.call(MsgZoneDisable, &ZoneIDRequest{ID: id}, nil)
}

// UpdateZone replaces a registered zone in place.
func (c *IPCClient) UpdateZone(z zone.Zone) error {
	return c.call(MsgZoneUpdate, &ZoneRequest{Zone: z}, nil)
}

// ClearZones removes every zone and reports how many were removed.
func (c *IPCClient) ClearZones() (int, error) {
	var resp ZoneClearResponse
	if err := c.call(MsgZoneClear, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// Configuration returns the daemon's gesture configuration.
func (c *IPCClient) Configuration() (gesture.Configuration, error) {
	var resp ConfigGetResponse
	if err := c.call(MsgConfigGet, nil, &resp); err != nil {
		return gesture.Configuration{}, err
	}
	return resp.Config, nil
}

// SetConfiguration replaces the daemon's gesture configuration.
func (c *IPCClient) SetConfiguration(cfg gesture.Configuration) error {
	return c.call(MsgConfigSet, &ConfigSetRequest{Config: cfg}, nil)
}

// Stats returns the engine statistics snapshot.
func (c *IPCClient) Stats() (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.call(MsgStats, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns up to limit recent completions, oldest first. A limit of
// zero returns the full retained window.
func (c *IPCClient) History(limit int) ([]gesture.Completed, error) {
	var resp HistoryResponse
	if err := c.call(MsgHistory, &HistoryRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Metrics returns the daemon's metrics snapshot.
func (c *IPCClient) Metrics() (*MetricsResponse, error) {
	var resp MetricsResponse
	if err := c.call(MsgMetrics, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health runs the daemon's health checks and returns the results.
func (c *IPCClient) Health() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.call(MsgHealth, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Archive returns archive aggregates and up to limit recent rows.
func (c *IPCClient) Archive(limit int) (*ArchiveResponse, error) {
	var resp ArchiveResponse
	if err := c.call(MsgArchive, &ArchiveRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelAll force-cancels every active gesture.
func (c *IPCClient) CancelAll() (int, error) {
	var resp CancelAllResponse
	if err := c.call(MsgCancelAll, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Cancelled, nil
}

// StartDetection starts sample processing.
func (c *IPCClient) StartDetection() error {
	return c.call(MsgDetectionStart, nil, nil)
}

// StopDetection stops sample processing.
func (c *IPCClient) StopDetection() error {
	return c.call(MsgDetectionStop, nil, nil)
}

// Submit feeds samples to the engine, in order.
func (c *IPCClient) Submit(samples []gesture.Sample) (int, error) {
	var resp SubmitResponse
	if err := c.call(MsgSubmit, &SubmitRequest{Samples: samples}, &resp); err != nil {
		return 0, err
	}
	return resp.Submitted, nil
}

// Subscribe starts event streaming for the given event types. An empty set
// subscribes to everything. Events arrive on the handler set with OnEvent.
func (c *IPCClient) Subscribe(events ...EventType) error {
	return c.call(MsgSubscribe, &SubscribeRequest{Events: events}, nil)
}

// Unsubscribe stops event streaming.
func (c *IPCClient) Unsubscribe() error {
	return c.call(MsgUnsubscribe, nil, nil)
}
