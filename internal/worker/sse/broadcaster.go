// Package sse provides Server-Sent Events streaming for slidetrace: live
// event-batch feeds and replay frame delivery.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// WriteTimeout bounds writes to SSE clients so one stale connection never
// blocks a broadcast.
const WriteTimeout = 2 * time.Second

// Client represents one connected SSE subscriber.
type Client struct {
	Writer  http.ResponseWriter
	Flusher http.Flusher
	Done    chan struct{}
	ID      string
}

// Broadcaster fans messages out to every subscriber of one stream.
type Broadcaster struct {
	clients map[string]*Client
	mu      sync.RWMutex
	nextID  int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*Client),
	}
}

// AddClient registers a subscriber. The writer must support flushing.
func (b *Broadcaster) AddClient(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	b.nextID++
	id := fmt.Sprintf("client-%d", b.nextID)
	client := &Client{
		ID:      id,
		Writer:  w,
		Flusher: flusher,
		Done:    make(chan struct{}),
	}
	b.clients[id] = client
	count := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Str("clientId", id).
		Int("totalClients", count).
		Msg("SSE client connected")

	return client, nil
}

// RemoveClient unregisters a subscriber and releases its waiters.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	_, exists := b.clients[client.ID]
	delete(b.clients, client.ID)
	count := len(b.clients)
	b.mu.Unlock()

	if exists {
		close(client.Done)
	}

	log.Debug().
		Str("clientId", client.ID).
		Int("totalClients", count).
		Msg("SSE client disconnected")
}

// Broadcast sends a named event with a JSON payload to every subscriber.
// Writes run concurrently with per-client timeouts; clients that fail or
// stall are dropped.
func (b *Broadcaster) Broadcast(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to marshal SSE payload")
		return
	}
	message := fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload)

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	deadCh := make(chan *Client, len(clients))
	var wg sync.WaitGroup
	for _, client := range clients {
		select {
		case <-client.Done:
			continue
		default:
		}
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if !writeWithTimeout(c, message) {
				deadCh <- c
			}
		}(client)
	}
	wg.Wait()
	close(deadCh)

	for client := range deadCh {
		b.RemoveClient(client)
	}
}

// writeWithTimeout writes one frame to one client, reporting whether the
// client is still alive.
func writeWithTimeout(client *Client, message string) bool {
	done := make(chan error, 1)
	go func() {
		_, err := client.Writer.Write([]byte(message))
		if err == nil {
			client.Flusher.Flush()
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Debug().Str("clientId", client.ID).Err(err).Msg("SSE write failed")
			return false
		}
		return true
	case <-time.After(WriteTimeout):
		log.Warn().Str("clientId", client.ID).Msg("SSE write timed out")
		return false
	case <-client.Done:
		return false
	}
}

// ClientCount returns the number of connected subscribers.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Serve upgrades the request to an SSE stream and blocks until the client
// disconnects.
func (b *Broadcaster) Serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client, err := b.AddClient(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	fmt.Fprintf(w, "event: connected\ndata: {\"clientId\":%q}\n\n", client.ID)
	client.Flusher.Flush()

	<-r.Context().Done()
}

// Hub manages one broadcaster per live session stream.
type Hub struct {
	mu      sync.Mutex
	streams map[string]*Broadcaster
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{streams: make(map[string]*Broadcaster)}
}

// Stream returns the broadcaster for a session, creating it on first use.
func (h *Hub) Stream(sessionID string) *Broadcaster {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.streams[sessionID]
	if !ok {
		b = NewBroadcaster()
		h.streams[sessionID] = b
	}
	return b
}

// Publish broadcasts to a session's subscribers, if any.
func (h *Hub) Publish(sessionID, event string, data any) {
	h.mu.Lock()
	b, ok := h.streams[sessionID]
	h.mu.Unlock()
	if ok {
		b.Broadcast(event, data)
	}
}
