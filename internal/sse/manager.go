// Package sse broadcasts server-sent events for scan and transcode progress.
package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/homeflixapp/homeflix-server/internal/id"
)

const (
	// eventBufferSize bounds the broadcast queue; events beyond it are
	// dropped rather than blocking emitters.
	eventBufferSize = 1000

	// clientBufferSize bounds each client's queue; slow clients miss events
	// instead of stalling the broadcast loop.
	clientBufferSize = 100

	heartbeatInterval = 30 * time.Second
)

// Client is one connected event stream consumer.
type Client struct {
	ID        string
	EventChan chan Event
	Done      chan struct{}
}

// Manager fans events out to connected clients.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*Client

	events chan Event
	logger *slog.Logger

	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewManager creates an event manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		clients: make(map[string]*Client),
		events:  make(chan Event, eventBufferSize),
		logger:  logger,
	}
}

// Start runs the broadcast loop until ctx is canceled.
func (m *Manager) Start(ctx context.Context) {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-m.events:
			m.broadcast(event)
		case <-heartbeat.C:
			m.broadcast(NewHeartbeatEvent())
		}
	}
}

// Connect registers a new client.
func (m *Manager) Connect() *Client {
	client := &Client{
		ID:        id.MustGenerate("sse"),
		EventChan: make(chan Event, clientBufferSize),
		Done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.clients[client.ID] = client
	m.mu.Unlock()

	m.logger.Debug("SSE client connected", "client_id", client.ID)
	return client
}

// Disconnect removes a client and signals its handler to stop.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	client, ok := m.clients[clientID]
	if ok {
		delete(m.clients, clientID)
	}
	m.mu.Unlock()

	if ok {
		close(client.Done)
		m.logger.Debug("SSE client disconnected", "client_id", clientID)
	}
}

// Emit queues an event for broadcast. Non-blocking: when the queue is full
// the event is dropped.
func (m *Manager) Emit(event Event) {
	m.shutdownMu.RLock()
	defer m.shutdownMu.RUnlock()
	if m.shutdown {
		return
	}

	select {
	case m.events <- event:
	default:
		m.logger.Warn("SSE event queue full, dropping event", "type", event.Type)
	}
}

// Shutdown stops accepting events and disconnects all clients.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownMu.Lock()
	m.shutdown = true
	m.shutdownMu.Unlock()

	// Drain whatever is already queued, bounded by ctx.
	for {
		select {
		case event := <-m.events:
			m.broadcast(event)
		case <-ctx.Done():
			m.disconnectAll()
			return ctx.Err()
		default:
			m.disconnectAll()
			return nil
		}
	}
}

func (m *Manager) disconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for clientID, client := range m.clients {
		close(client.Done)
		delete(m.clients, clientID)
	}
}

func (m *Manager) broadcast(event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, client := range m.clients {
		select {
		case client.EventChan <- event:
		default:
			// Slow consumer; skip.
		}
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
