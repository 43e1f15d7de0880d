package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"gestured/internal/logging"
)

// Handler processes IPC requests that the server does not answer itself.
type Handler interface {
	HandleMessage(ctx context.Context, client *Client, msg *Message) (*Message, error)
}

// HandlerFunc is a function that implements Handler.
type HandlerFunc func(ctx context.Context, client *Client, msg *Message) (*Message, error)

func (f HandlerFunc) HandleMessage(ctx context.Context, client *Client, msg *Message) (*Message, error) {
	return f(ctx, client, msg)
}

// Client represents one connected control client.
type Client struct {
	ID           string
	conn         net.Conn
	ConnectedAt  time.Time
	lastActivity atomic.Int64

	// writeMu serializes responses and streamed events on the socket.
	writeMu sync.Mutex
}

// subscription tracks one client's event subscription.
type subscription struct {
	all    bool
	events map[EventType]bool
}

func (s *subscription) wants(t EventType) bool {
	return s.all || s.events[t]
}

// ServerConfig configures the IPC server.
type ServerConfig struct {
	SocketPath     string
	Version        string
	MaxConnections int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Logger         *slog.Logger
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig(socketPath string) ServerConfig {
	return ServerConfig{
		SocketPath:     socketPath,
		Version:        "1.0.0",
		MaxConnections: 10,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Server listens on a unix socket and dispatches control requests to its
// handler. Lifecycle events broadcast through a buffered channel so the
// producing goroutine never blocks on a slow client.
type Server struct {
	cfg     ServerConfig
	handler Handler
	log     *slog.Logger

	mu          sync.RWMutex
	listener    net.Listener
	clients     map[string]*Client
	subscribers map[string]*subscription

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool

	nextClientID atomic.Uint64
	nextEventID  atomic.Uint32

	eventChan chan *Event
}

// NewServer creates an IPC server for the given handler.
func NewServer(cfg ServerConfig, handler Handler) *Server {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 10
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Default().WithComponent("ipc").Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:         cfg,
		handler:     handler,
		log:         log,
		clients:     make(map[string]*Client),
		subscribers: make(map[string]*subscription),
		ctx:         ctx,
		cancel:      cancel,
		eventChan:   make(chan *Event, 100),
	}
}

// Start begins listening for connections.
func (s *Server) Start() error {
	if s.running.Load() {
		return fmt.Errorf("ipc: server already running")
	}

	socketDir := filepath.Dir(s.cfg.SocketPath)
	if err := os.MkdirAll(socketDir, 0700); err != nil {
		return fmt.Errorf("ipc: create socket directory: %w", err)
	}

	// Remove a stale socket left by an unclean shutdown.
	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ipc: remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("ipc: listen on socket: %w", err)
	}

	// Owner-only access is the authentication model.
	if err := os.Chmod(s.cfg.SocketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("ipc: set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.running.Store(true)

	s.wg.Add(2)
	go s.eventBroadcaster()
	go s.acceptLoop(listener)

	s.log.Info("control socket listening", "path", s.cfg.SocketPath)
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.cancel()

	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	for _, client := range s.clients {
		client.conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.log.Warn("ipc shutdown timed out waiting for connections")
	}

	os.Remove(s.cfg.SocketPath)
	s.log.Info("control socket closed")
	return nil
}

// SocketPath returns the socket path.
func (s *Server) SocketPath() string {
	return s.cfg.SocketPath
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast queues an event for delivery to subscribed clients. A full
// queue drops the event.
func (s *Server) Broadcast(event *Event) {
	if !s.running.Load() {
		return
	}
	select {
	case s.eventChan <- event:
	default:
		s.log.Debug("event queue full, broadcast dropped", "type", event.Type)
	}
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				if errors.Is(err, net.ErrClosed) {
					return
				}
				continue
			}
		}

		s.mu.RLock()
		count := len(s.clients)
		s.mu.RUnlock()
		if count >= s.cfg.MaxConnections {
			s.log.Warn("connection limit reached, rejecting client")
			conn.Close()
			continue
		}

		client := &Client{
			ID:          fmt.Sprintf("client-%d", s.nextClientID.Add(1)),
			conn:        conn,
			ConnectedAt: time.Now(),
		}
		client.lastActivity.Store(time.Now().UnixNano())

		s.mu.Lock()
		s.clients[client.ID] = client
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(client)
	}
}

func (s *Server) handleConnection(client *Client) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.clients, client.ID)
		delete(s.subscribers, client.ID)
		s.mu.Unlock()
		client.conn.Close()
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		client.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		msg, err := ReadMessage(client.conn)
		if err != nil {
			if err == io.EOF || errors.Is(err, net.ErrClosed) {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// Idle connection; keep waiting.
				continue
			}
			s.log.Debug("client read failed", "client", client.ID, "error", err)
			return
		}

		client.lastActivity.Store(time.Now().UnixNano())

		response, err := s.processMessage(client, msg)
		if err != nil {
			response = NewErrorMessage(msg.Header.RequestID, ErrInternalError, err.Error())
		}
		if response != nil {
			if err := s.sendMessage(client, response); err != nil {
				return
			}
		}
	}
}

// processMessage answers protocol-level messages itself and delegates the
// rest to the handler.
func (s *Server) processMessage(client *Client, msg *Message) (*Message, error) {
	switch msg.Header.Type {
	case MsgPing:
		return NewResponse(MsgPong, msg.Header.RequestID, &PongResponse{Version: s.cfg.Version})

	case MsgSubscribe:
		return s.handleSubscribe(client, msg)

	case MsgUnsubscribe:
		s.mu.Lock()
		delete(s.subscribers, client.ID)
		s.mu.Unlock()
		return NewMessage(MsgUnsubscribeResp, msg.Header.RequestID, nil), nil

	default:
		if s.handler == nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "no handler"), nil
		}
		return s.handler.HandleMessage(s.ctx, client, msg)
	}
}

func (s *Server) handleSubscribe(client *Client, msg *Message) (*Message, error) {
	var req SubscribeRequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid subscribe request"), nil
		}
	}

	sub := &subscription{events: make(map[EventType]bool)}
	if len(req.Events) == 0 {
		sub.all = true
	}
	for _, et := range req.Events {
		sub.events[et] = true
	}

	s.mu.Lock()
	s.subscribers[client.ID] = sub
	s.mu.Unlock()

	return NewResponse(MsgSubscribeResp, msg.Header.RequestID, &SubscribeResponse{Success: true})
}

// eventBroadcaster delivers queued events to subscribed clients. The event
// channel is never closed; the broadcaster exits on context cancellation so
// a Broadcast racing Stop can never send on a closed channel.
func (s *Server) eventBroadcaster() {
	defer s.wg.Done()

	for {
		var event *Event
		select {
		case <-s.ctx.Done():
			return
		case event = <-s.eventChan:
		}

		msg, err := NewEventMessage(s.nextEventID.Add(1), event)
		if err != nil {
			continue
		}

		s.mu.RLock()
		targets := make([]*Client, 0, len(s.subscribers))
		for clientID, sub := range s.subscribers {
			if !sub.wants(event.Type) {
				continue
			}
			if client, ok := s.clients[clientID]; ok {
				targets = append(targets, client)
			}
		}
		s.mu.RUnlock()

		for _, client := range targets {
			if err := s.sendMessage(client, msg); err != nil {
				s.log.Debug("event delivery failed", "client", client.ID, "error", err)
			}
		}
	}
}

func (s *Server) sendMessage(client *Client, msg *Message) error {
	client.writeMu.Lock()
	defer client.writeMu.Unlock()

	client.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return msg.Write(client.conn)
}
