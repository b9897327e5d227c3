package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vedran77/dreamnest/internal/metrics"
)

// Hub tracks every open connection per user and fans events out to them.
type Hub struct {
	// clients maps userID → that user's open connections (one per tab).
	clients map[uuid.UUID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg
	direct     chan *directMsg
	done       chan struct{}

	metrics *metrics.Metrics
	log     *logrus.Logger
}

type broadcastMsg struct {
	userID uuid.UUID
	data   []byte
}

type directMsg struct {
	client *Client
	data   []byte
}

func NewHub(m *metrics.Metrics, log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
		direct:     make(chan *directMsg, 64),
		done:       make(chan struct{}),
		metrics:    m,
		log:        log,
	}
}

// Run is the hub's event loop. It owns the client set and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.clients {
				for client := range conns {
					h.drop(client)
				}
			}
			return nil

		case client := <-h.register:
			conns, ok := h.clients[client.userID]
			if !ok {
				conns = make(map[*Client]struct{})
				h.clients[client.userID] = conns
			}
			conns[client] = struct{}{}
			h.metrics.WSConnected()
			h.log.WithField("user_id", client.userID).Debugf("ws hub: connected (%d for user)", len(conns))

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.broadcast:
			for client := range h.clients[msg.userID] {
				select {
				case client.send <- msg.data:
				default:
					// Client buffer full - disconnect
					h.drop(client)
				}
			}

		case msg := <-h.direct:
			if _, ok := h.clients[msg.client.userID][msg.client]; !ok {
				continue
			}
			select {
			case msg.client.send <- msg.data:
			default:
				h.drop(msg.client)
			}
		}
	}
}

// SendToUser queues an event for every connection of userID.
func (h *Hub) SendToUser(userID uuid.UUID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("ws hub: marshal")
		return
	}
	select {
	case h.broadcast <- &broadcastMsg{userID: userID, data: data}:
	default:
		h.log.WithField("user_id", userID).Warn("ws hub: broadcast queue full, event dropped")
	}
}

// reply queues data for a single connection.
func (h *Hub) reply(c *Client, data []byte) {
	select {
	case h.direct <- &directMsg{client: c, data: data}:
	case <-h.done:
	}
}

// Register hands a new client to the hub; false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) drop(client *Client) {
	conns, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.clients, client.userID)
	}
	close(client.send)
	h.metrics.WSDisconnected()
	h.log.WithField("user_id", client.userID).Debug("ws hub: disconnected")
}
