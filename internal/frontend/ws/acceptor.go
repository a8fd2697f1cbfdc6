// Package ws provides the WebSocket frontend: it accepts client
// connections, assigns opaque connection IDs, and pumps messages between
// sockets and the session handler.
package ws

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/spritefight/arena/internal/config"
)

// SessionHandler receives connection lifecycle events and inbound messages.
// Connect returns the connection's outbound delivery channel; the acceptor
// drains it onto the socket until it is closed.
type SessionHandler interface {
	Connect(connID string) (<-chan []byte, error)
	Message(connID string, data []byte)
	Disconnect(connID string)
}

// Acceptor listens for WebSocket connections on an HTTP port and runs the
// read/write pumps for each accepted client.
type Acceptor struct {
	cfg     config.ServerConfig
	handler SessionHandler
	logger  *zap.Logger

	upgrader websocket.Upgrader
	server   *http.Server

	mu       sync.Mutex
	listener net.Listener
	clients  map[string]*websocket.Conn
	running  bool
	quit     chan struct{}
	wg       sync.WaitGroup
}

// NewAcceptor creates a WebSocket acceptor with the given configuration.
//
// Precondition: cfg must have a valid port; handler and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe.
func NewAcceptor(cfg config.ServerConfig, handler SessionHandler, logger *zap.Logger) *Acceptor {
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The coordinator has no auth layer; origin filtering belongs
			// to the deployment's proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*websocket.Conn),
		quit:    make(chan struct{}),
	}
}

// ListenAndServe starts the HTTP listener and accepts WebSocket upgrades on
// /ws until Stop is called. This method blocks until the acceptor is stopped.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", a.serveWS)
	server := &http.Server{Handler: mux}

	a.mu.Lock()
	a.listener = listener
	a.server = server
	a.running = true
	a.mu.Unlock()

	a.logger.Info("websocket acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		select {
		case <-a.quit:
			return nil
		default:
			return fmt.Errorf("serving websocket connections: %w", err)
		}
	}
	return nil
}

// serveWS upgrades one HTTP request and runs its session until disconnect.
func (a *Acceptor) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Error("websocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	connID := uuid.NewString()
	start := time.Now()

	events, err := a.handler.Connect(connID)
	if err != nil {
		a.logger.Error("registering connection",
			zap.String("conn", connID),
			zap.Error(err),
		)
		conn.Close()
		return
	}

	a.mu.Lock()
	a.clients[connID] = conn
	a.mu.Unlock()

	a.logger.Info("client connected",
		zap.String("conn", connID),
		zap.String("remote_addr", r.RemoteAddr),
	)

	a.wg.Add(1)
	go a.writePump(connID, conn, events)

	a.readPump(connID, conn)

	// Read pump exit means the client is gone (or we are shutting down):
	// run the synchronous cleanup path, then tear the socket down. Closing
	// the outbox via Disconnect also stops the write pump.
	a.handler.Disconnect(connID)

	a.mu.Lock()
	delete(a.clients, connID)
	a.mu.Unlock()
	conn.Close()

	a.logger.Info("client disconnected",
		zap.String("conn", connID),
		zap.Duration("duration", time.Since(start)),
	)
}

// Stop gracefully stops the acceptor, closing the listener and every live
// client socket, and waits for all pumps to finish.
//
// Postcondition: All connections are closed and goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.quit)

	if a.server != nil {
		a.server.Close()
	}
	// http.Server.Close does not reach hijacked connections; close the
	// sockets directly so the read pumps unblock.
	for _, conn := range a.clients {
		conn.Close()
	}
	a.mu.Unlock()

	a.wg.Wait()
	a.logger.Info("websocket acceptor stopped")
}

// Addr returns the actual listening address, or empty string if not yet
// listening.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}
