// Package dashboard serves the task board over HTTP and pushes change events
// to WebSocket clients in real time.
//
// The server mounts the JSON API under /api/, the broadcast stream at /ws and
// a health probe at /health. Every lifecycle event becomes one Message fanned
// out to all connected clients.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mschirtzinger/taskboard/internal/events"
	"github.com/mschirtzinger/taskboard/internal/types"
)

// MessageTypeStats carries per-column task counts. It is sent on connect and
// after every task change.
const MessageTypeStats events.Type = "stats"

// Message is one WebSocket frame.
type Message struct {
	ID        string          `json:"id"`
	Type      events.Type     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// StatsFunc reports current task counts.
type StatsFunc func(ctx context.Context) (*types.Stats, error)

// outbound is one queued frame. withStats asks the broadcast loop to follow
// it with a fresh stats frame.
type outbound struct {
	msg       Message
	withStats bool
}

// Server manages WebSocket connections and broadcasts dashboard messages
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	api      http.Handler
	stats    StatsFunc

	// WebSocket client management
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	// Message broadcasting
	broadcast chan outbound

	// Lifecycle management
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	shutdownTimeout time.Duration

	logger zerolog.Logger
}

// Config holds server configuration
type Config struct {
	// Host to bind (default: all interfaces)
	Host string

	// Port to listen on; 0 picks a free port
	Port int

	// API is mounted at /api/ when set
	API http.Handler

	// Stats feeds the welcome message and post-change stats frames
	Stats StatsFunc

	// ShutdownTimeout bounds graceful shutdown (default: 5s)
	ShutdownTimeout time.Duration

	Logger zerolog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:            8080,
		ShutdownTimeout: 5 * time.Second,
		Logger:          zerolog.Nop(),
	}
}

// NewServer creates a new dashboard server
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:            net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		api:             config.API,
		stats:           config.Stats,
		clients:         make(map[*websocket.Conn]bool),
		broadcast:       make(chan outbound, 100),
		ctx:             ctx,
		cancel:          cancel,
		shutdownTimeout: config.ShutdownTimeout,
		logger:          config.Logger.With().Str("component", "dashboard").Logger(),
	}
}

// Handler returns the server's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	if s.api != nil {
		mux.Handle("/api/", s.api)
	}
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// Start begins the HTTP server and WebSocket handler
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("dashboard server listening")
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("server error")
		}
	}()

	return nil
}

// Run starts the server and blocks until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.logger.Info().Msg("stopping dashboard server")

	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()

	s.logger.Info().Msg("dashboard server stopped")
	return nil
}

// Broadcast queues a message for every connected client. It never blocks;
// when the queue is full the message is dropped.
func (s *Server) Broadcast(msg Message) {
	s.enqueue(outbound{msg: msg})
}

// broadcastWithStats queues msg followed by a stats frame. The stats query
// runs on the broadcast loop, never on the caller.
func (s *Server) broadcastWithStats(msg Message) {
	s.enqueue(outbound{msg: msg, withStats: s.stats != nil})
}

func (s *Server) enqueue(out outbound) {
	msg := &out.msg
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	select {
	case s.broadcast <- out:
	case <-s.ctx.Done():
		return
	default:
		s.logger.Warn().Str("type", string(msg.Type)).Msg("broadcast channel full, dropping message")
	}
}

// broadcastLoop handles message broadcasting to all clients
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case out := <-s.broadcast:
			s.send(out.msg)
			if out.withStats {
				ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
				stats := s.statsMessage(ctx)
				cancel()
				s.send(stats)
			}
		}
	}
}

// send writes msg to every connected client, dropping clients that fail.
func (s *Server) send(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal message")
		return
	}

	s.clientsMu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		clients = append(clients, conn)
	}
	s.clientsMu.RUnlock()

	// Send outside the read lock so a slow client cannot stall registration.
	for _, conn := range clients {
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		err := conn.Write(ctx, websocket.MessageText, data)
		cancel()

		if err != nil {
			s.logger.Debug().Err(err).Msg("failed to send to client")
			s.removeClient(conn)
		}
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	// The welcome frame goes out before the client joins the broadcast set so
	// it is always the first frame a client reads.
	welcome := s.statsMessage(r.Context())
	welcomeData, _ := json.Marshal(welcome)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	err = conn.Write(ctx, websocket.MessageText, welcomeData)
	cancel()
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "welcome failed")
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Debug().Int("clients", clientCount).Msg("client connected")

	go s.readLoop(conn)
}

// statsMessage builds a stats frame. A stats failure yields a frame without data.
func (s *Server) statsMessage(ctx context.Context) Message {
	msg := Message{ID: uuid.NewString(), Type: MessageTypeStats, Timestamp: time.Now().UTC()}
	if s.stats == nil {
		return msg
	}
	stats, err := s.stats(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load stats")
		return msg
	}
	if data, err := json.Marshal(stats); err == nil {
		msg.Data = data
	}
	return msg
}

// readLoop keeps the WebSocket connection alive and handles client disconnects
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		// Client frames are ignored; reading only detects disconnects.
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

// removeClient safely removes a client connection
func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Debug().Int("clients", clientCount).Msg("client disconnected")
	} else {
		s.clientsMu.Unlock()
	}
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

// handleRoot returns basic server information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Taskboard</title>
</head>
<body>
    <h1>Taskboard Server</h1>
    <p>API: <code>http://%[1]s/api/tasks</code></p>
    <p>WebSocket endpoint: <code>ws://%[1]s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
</body>
</html>`, r.Host)
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
