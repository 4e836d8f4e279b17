package ws

import (
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tierhub/backend/internal/service"

	"github.com/go-chi/chi/v5"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is handled at the HTTP level
	},
}

// sendBuffer bounds how many undelivered events a slow dashboard can
// queue before further events are dropped for that connection.
const sendBuffer = 16

// feedClient is one dashboard connection. The websocket conn has a
// single writer: writePump. Everyone else only enqueues on send.
type feedClient struct {
	conn *websocket.Conn
	send chan service.FeedEvent
	done chan struct{}
}

// FeedHub broadcasts committed settlement events to connected merchant
// dashboards. It implements service.Notifier; Publish never blocks the
// settlement path.
type FeedHub struct {
	auth *service.AuthService

	mu    sync.RWMutex
	conns map[uuid.UUID]map[*feedClient]struct{}
}

// NewFeedHub creates a new FeedHub.
func NewFeedHub(auth *service.AuthService) *FeedHub {
	return &FeedHub{
		auth:  auth,
		conns: make(map[uuid.UUID]map[*feedClient]struct{}),
	}
}

// Publish fans the event out to every dashboard watching the merchant.
// It only enqueues; each connection's writePump owns the actual write.
// Full queues are dropped, never waited on.
func (h *FeedHub) Publish(ev service.FeedEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[ev.MerchantID] {
		select {
		case c.send <- ev:
		default:
			// Slow consumer; drop the event for this connection.
		}
	}
}

// Handle upgrades HTTP to WebSocket for a merchant feed.
// URL: /merchants/{id}/feed?token=JWT_TOKEN
func (h *FeedHub) Handle(w http.ResponseWriter, r *http.Request) {
	merchantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid merchant id", http.StatusBadRequest)
		return
	}

	// Authenticate via query param token
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}
	claims, err := h.auth.VerifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if claims.Sub != merchantID.String() && claims.Role != "staff" && claims.Role != "admin" {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &feedClient{
		conn: conn,
		send: make(chan service.FeedEvent, sendBuffer),
		done: make(chan struct{}),
	}
	h.add(merchantID, c)
	log.Printf("feed connected for merchant %s", merchantID)

	go h.writePump(merchantID, c)

	// Drain the read side so pings and close frames are processed; the
	// feed is write-only from the server.
	go func() {
		defer func() {
			h.remove(merchantID, c)
			c.conn.Close()
			close(c.done)
		}()
		for {
			if _, _, err := c.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// writePump is the connection's only writer. It exits when the write
// fails or the read side closes done.
func (h *FeedHub) writePump(merchantID uuid.UUID, c *feedClient) {
	for {
		select {
		case ev := <-c.send:
			if err := c.conn.WriteJSON(ev); err != nil {
				h.remove(merchantID, c)
				c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *FeedHub) add(merchantID uuid.UUID, c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[merchantID] == nil {
		h.conns[merchantID] = make(map[*feedClient]struct{})
	}
	h.conns[merchantID][c] = struct{}{}
}

func (h *FeedHub) remove(merchantID uuid.UUID, c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[merchantID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, merchantID)
		}
	}
}
