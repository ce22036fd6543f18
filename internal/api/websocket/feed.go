package websocket

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"site-pulse/internal/model"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
	clientBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(r.Host), strings.TrimSpace(u.Host))
	},
}

// Message is the frame pushed to feed subscribers.
type Message struct {
	Type        string            `json:"type"`
	Observation model.Observation `json:"observation"`
	Healthy     bool              `json:"healthy"`
}

// Hub fans committed observations out to websocket clients.
// Slow clients drop messages instead of blocking the probe.
type Hub struct {
	policy model.StatusPolicy
	log    zerolog.Logger

	mu      sync.Mutex
	clients map[chan Message]struct{}
}

func NewHub(policy model.StatusPolicy, log zerolog.Logger) *Hub {
	return &Hub{
		policy:  policy,
		log:     log.With().Str("component", "feed").Logger(),
		clients: make(map[chan Message]struct{}),
	}
}

// Publish implements monitor.Listener.
func (h *Hub) Publish(obs model.Observation) {
	msg := Message{Type: "observation", Observation: obs, Healthy: h.policy.Reachable(obs.StatusCode)}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.log.Debug().Msg("feed client too slow, message dropped")
		}
	}
}

func (h *Hub) subscribe() chan Message {
	ch := make(chan Message, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan Message) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// FeedHandler upgrades the request and streams observations until the client leaves.
func (h *Hub) FeedHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
