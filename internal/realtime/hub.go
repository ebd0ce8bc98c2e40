// Package realtime pushes simulator events to browsers over websockets.
//
// A browser connects to the websocket endpoint, subscribes to one or more
// topics ("triage:<id>", "scan:<id>", "intake:<id>") and then receives every
// event published on them. All subscription bookkeeping happens inside the
// hub's Run loop, so no locks are needed around the topic maps.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	EventJoined = "joined"
	EventLeft   = "left"
)

type IncomingMessage struct {
	Topic string `json:"topic"`
	Event string `json:"event"` // "join" or "leave"
}

type OutgoingMessage struct {
	Topic   string `json:"topic"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

type subscription struct {
	client *Client
	topic  string
	join   bool
}

type Hub struct {
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	clients    map[*Client]bool
	topics     map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	broadcast  chan *OutgoingMessage
	done       chan struct{}
}

// NewHub accepts websocket upgrades from allowedOrigin only, or from any
// origin when it is "*" or empty. Requests without an Origin header are not
// from a browser and are accepted.
func NewHub(logger *zap.Logger, allowedOrigin string) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigin),
		},
		clients:    make(map[*Client]bool),
		topics:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		broadcast:  make(chan *OutgoingMessage, 256),
		done:       make(chan struct{}),
	}
}

func originChecker(allowedOrigin string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if allowedOrigin == "" || allowedOrigin == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowedOrigin
	}
}

// Run owns the hub state until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			for topic := range client.topics {
				h.join(client, topic)
			}
		case client := <-h.unregister:
			h.drop(client)
		case sub := <-h.subscribe:
			if !h.clients[sub.client] {
				continue
			}
			if sub.join {
				h.join(sub.client, sub.topic)
			} else {
				h.leave(sub.client, sub.topic)
			}
		case msg := <-h.broadcast:
			clients, ok := h.topics[msg.Topic]
			if !ok {
				continue
			}
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("Failed to marshal realtime event", zap.String("topic", msg.Topic), zap.String("event", msg.Event), zap.Error(err))
				continue
			}
			for client := range clients {
				select {
				case client.send <- data:
				default:
					h.logger.Warn("Dropping slow realtime client", zap.String("topic", msg.Topic))
					h.drop(client)
				}
			}
		}
	}
}

// Publish queues an event for every subscriber of topic. It never blocks once
// the hub has stopped.
func (h *Hub) Publish(topic, event string, payload any) {
	select {
	case h.broadcast <- &OutgoingMessage{Topic: topic, Event: event, Payload: payload}:
	case <-h.done:
	}
}

func (h *Hub) join(client *Client, topic string) {
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]bool)
	}
	h.topics[topic][client] = true
	client.topics[topic] = true
	h.reply(client, topic, EventJoined)
}

func (h *Hub) leave(client *Client, topic string) {
	if clients, ok := h.topics[topic]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(client.topics, topic)
	h.reply(client, topic, EventLeft)
}

func (h *Hub) reply(client *Client, topic, event string) {
	data, _ := json.Marshal(OutgoingMessage{Topic: topic, Event: event})
	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	for topic := range client.topics {
		if clients, ok := h.topics[topic]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.topics, topic)
			}
		}
	}
}

// ServeWS upgrades the request and subscribes the connection to every
// "topic" query parameter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256), topics: make(map[string]bool)}
	for _, topic := range r.URL.Query()["topic"] {
		if topic != "" {
			client.topics[topic] = true
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
