// Package server exposes the settlement coordinator over WebSocket: the
// operator authenticates, submits plays as JSON messages, and receives
// result or error replies. All plays funnel through one dispatch loop so
// settlements never interleave.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/hausgames/treasury/internal/settle"
)

// Server represents the WebSocket play-submission server
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	dispatch    chan func()
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	coordinator *settle.Coordinator
	validator   Validator
	stats       *settle.Stats

	listenerMu sync.Mutex
	listener   net.Listener
}

// Option configures optional server behaviour
type Option func(*Server)

// WithStats exposes the given collector through the get_stats message
func WithStats(stats *settle.Stats) Option {
	return func(s *Server) { s.stats = stats }
}

// NewServer creates a new WebSocket server over the given coordinator
func NewServer(addr string, coordinator *settle.Coordinator, validator Validator, logger *log.Logger, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The operator API is not browser-facing.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		dispatch:    make(chan func(), 64),
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
		coordinator: coordinator,
		validator:   validator,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the WebSocket server and blocks until it stops
func (s *Server) Start() error {
	go s.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.addr, err)
	}
	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()

	s.logger.Info("Starting WebSocket server", "addr", listener.Addr())
	err = http.Serve(listener, mux)
	select {
	case <-s.ctx.Done():
		return nil
	default:
		return err
	}
}

// Addr returns the bound listen address, useful when port 0 was requested
func (s *Server) Addr() net.Addr {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops the WebSocket server
func (s *Server) Stop() error {
	s.cancel()

	s.listenerMu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.listenerMu.Unlock()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()

	return nil
}

// run owns the connection lifecycle and the serialized settlement
// dispatch: one goroutine executes every submitted play in order.
func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client connected", "total", total)

		case conn := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.connections[conn]; ok {
				delete(s.connections, conn)
				_ = conn.Close()
			}
			total := len(s.connections)
			s.mu.Unlock()
			s.logger.Info("Client disconnected", "total", total)

		case play := <-s.dispatch:
			play()

		case <-s.ctx.Done():
			return
		}
	}
}

// submit queues a play for serialized execution
func (s *Server) submit(play func()) {
	select {
	case s.dispatch <- play:
	case <-s.ctx.Done():
	}
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.logger, s)
	s.register <- client
	client.Start()

	go func() {
		<-client.ctx.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}
