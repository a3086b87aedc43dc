package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/metrics"
)

// Hub fans score and pass updates out to every open connection of a user.
// It implements service.Notifier.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		log:     log.With("component", "ws"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	metrics.WSClients.Inc()
	h.log.Debug("client connected", "user_id", c.UserID, "connections", len(set))
}

// Unregister removes c and closes its send queue. It is safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

func (h *Hub) remove(c *Client) {
	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
	close(c.Send)
	metrics.WSClients.Dec()
	h.log.Debug("client disconnected", "user_id", c.UserID)
}

// Connections returns how many sockets userID has open.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// SendTo queues msg on every connection of userID. A connection whose queue
// is full is dropped.
func (h *Hub) SendTo(userID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal ws message", "type", msg.Type, "error", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients[userID] {
		select {
		case c.Send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, c := range slow {
		h.log.Warn("dropping slow ws client", "user_id", userID)
		h.remove(c)
	}
	h.mu.Unlock()
}

func (h *Hub) PointsAwarded(userID int64, rule string, awarded, total int64) {
	h.SendTo(userID, Message{
		Type:    MsgPointsAwarded,
		Payload: PointsPayload{Rule: rule, Awarded: awarded, Total: total},
	})
}

func (h *Hub) PassRecorded(userID int64, res domain.LedgerResult) {
	h.SendTo(userID, Message{
		Type:    MsgPassRecorded,
		Payload: PassPayload{TxHash: res.TxHash, PassID: res.PassID},
	})
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			h.remove(c)
		}
	}
}
