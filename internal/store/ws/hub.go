package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/framepoint/annotate/internal/dispatcher"
	"github.com/framepoint/annotate/internal/store"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // image drops travel as data URLs
)

// hubClient is one connected review session.
type hubClient struct {
	hub  *Hub
	conn *gws.Conn
	send chan []byte

	mu     sync.Mutex
	videos map[string]bool // videos this client has joined
}

// Hub accepts review clients, applies their mutations to the backing store
// and fans authoritative snapshots back out. The backing store is usually the
// SQLite backend; the hub piggybacks on its per-video subscriptions.
type Hub struct {
	store  store.Store
	secret string
	logger *slog.Logger
	events *dispatcher.Dispatcher

	register   chan *hubClient
	unregister chan *hubClient
	done       chan struct{} // closed when Run exits; unblocks late (un)registrations

	mu      sync.RWMutex
	clients map[*hubClient]bool
	watches map[string]func() // videoID -> subscription cancel
}

// NewHub creates a hub over the given store.
func NewHub(st store.Store, secret string, logger *slog.Logger) *Hub {
	return &Hub{
		store:      st,
		secret:     secret,
		logger:     logger,
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		done:       make(chan struct{}),
		clients:    make(map[*hubClient]bool),
		watches:    make(map[string]func()),
	}
}

// SetEvents attaches an event dispatcher. Applied mutations and published
// snapshots are announced on it. Call before Run.
func (h *Hub) SetEvents(d *dispatcher.Dispatcher) {
	h.events = d
}

// publish announces an event if a dispatcher is attached.
func (h *Hub) publish(topic, videoID string, count int, rejected bool) {
	if h.events == nil {
		return
	}
	h.events.Publish(dispatcher.Event{
		Topic:     topic,
		VideoID:   videoID,
		Count:     count,
		Rejected:  rejected,
		Timestamp: time.Now(),
	})
}

// Stats reports the hub's current load.
type Stats struct {
	Clients int `json:"clients"`
	Videos  int `json:"videos"`
}

// Stats returns connected client and watched video counts.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{
		Clients: len(h.clients),
		Videos:  len(h.watches),
	}
}

// Run processes client registration until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			for videoID, cancel := range h.watches {
				cancel()
				delete(h.watches, videoID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.pruneWatches()
		}
	}
}

var upgrader = gws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a hub connection. The shared secret
// travels as a query parameter, matching the client dialer.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && r.URL.Query().Get("secret") != h.secret {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	client := &hubClient{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		videos: make(map[string]bool),
	}
	select {
	case h.register <- client:
	case <-h.done:
		// The hub is shutting down; a late upgrade must not block its handler.
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// broadcastSnapshot pushes a video's snapshot to every client joined to it.
func (h *Hub) broadcastSnapshot(videoID string, snap store.Snapshot) {
	payload := SnapshotPayload{
		VideoID:     videoID,
		Annotations: snap.Annotations,
		Comments:    snap.Comments,
	}
	data, err := marshalEnvelope(TypeSnapshot, "", payload)
	if err != nil {
		h.logger.Error("Failed to marshal snapshot", "videoId", videoID, "error", err)
		return
	}
	h.publish(dispatcher.TopicSnapshotPublished, videoID, len(snap.Annotations)+len(snap.Comments), false)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.mu.Lock()
		joined := client.videos[videoID]
		client.mu.Unlock()
		if !joined {
			continue
		}
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Client send buffer full, dropping snapshot", "videoId", videoID)
		}
	}
}

// watch ensures a store subscription exists for the video and forwards its
// snapshots to joined clients.
func (h *Hub) watch(videoID string) {
	h.mu.Lock()
	if _, ok := h.watches[videoID]; ok {
		h.mu.Unlock()
		return
	}
	ch, cancel := h.store.Subscribe(videoID)
	h.watches[videoID] = cancel
	h.mu.Unlock()

	go func() {
		for snap := range ch {
			h.broadcastSnapshot(videoID, snap)
		}
	}()
}

// pruneWatches drops store subscriptions for videos no client follows.
func (h *Hub) pruneWatches() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for videoID, cancel := range h.watches {
		followed := false
		for client := range h.clients {
			client.mu.Lock()
			if client.videos[videoID] {
				followed = true
			}
			client.mu.Unlock()
			if followed {
				break
			}
		}
		if !followed {
			cancel()
			delete(h.watches, videoID)
		}
	}
}

// readPump applies client mutations to the store and acks each one.
func (c *hubClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				c.hub.logger.Warn("WebSocket read error", "error", err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.hub.logger.Debug("Invalid message format", "error", err)
			continue
		}
		c.handle(env)
	}
}

// handle dispatches one envelope. Mutations run against the store with a
// bounded context so a stuck database cannot wedge the read loop forever.
func (c *hubClient) handle(env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
	defer cancel()

	switch env.Type {
	case TypeJoin:
		var p JoinPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.VideoID == "" {
			return
		}
		c.mu.Lock()
		c.videos[p.VideoID] = true
		c.mu.Unlock()
		c.hub.watch(p.VideoID)

		// Joining clients get the current state immediately.
		snap, err := c.hub.store.Load(ctx, p.VideoID)
		if err != nil {
			c.hub.logger.Error("Failed to load snapshot for join", "videoId", p.VideoID, "error", err)
			return
		}
		data, err := marshalEnvelope(TypeSnapshot, "", SnapshotPayload{
			VideoID:     p.VideoID,
			Annotations: snap.Annotations,
			Comments:    snap.Comments,
		})
		if err != nil {
			return
		}
		select {
		case c.send <- data:
		default:
		}

	case TypeCreateAnnotation:
		var p CreateAnnotationPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.ack(env, AckPayload{For: env.Type, Error: AckErrInternal})
			return
		}
		id, err := c.hub.store.CreateAnnotation(ctx, p.Annotation)
		c.ack(env, AckPayload{For: env.Type, ID: id.String(), Error: errCode(err)})
		c.hub.publish(dispatcher.TopicAnnotationCreated, p.Annotation.VideoID, 1, err != nil)

	case TypeUpdateAnnotations:
		var p UpdateAnnotationsPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.ack(env, AckPayload{For: env.Type, Error: AckErrInternal})
			return
		}
		err := c.hub.store.UpdateAnnotations(ctx, p.Annotations)
		c.ack(env, AckPayload{For: env.Type, Error: errCode(err)})
		videoID := ""
		if len(p.Annotations) > 0 {
			videoID = p.Annotations[0].VideoID
		}
		c.hub.publish(dispatcher.TopicAnnotationUpdated, videoID, len(p.Annotations), err != nil)

	case TypeDeleteAnnotations:
		var p DeleteAnnotationsPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.ack(env, AckPayload{For: env.Type, Error: AckErrInternal})
			return
		}
		err := c.hub.store.DeleteAnnotations(ctx, p.IDs)
		c.ack(env, AckPayload{For: env.Type, Error: errCode(err)})
		c.hub.publish(dispatcher.TopicAnnotationDeleted, "", len(p.IDs), err != nil)

	case TypeCreateComment:
		var p CreateCommentPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.ack(env, AckPayload{For: env.Type, Error: AckErrInternal})
			return
		}
		id, err := c.hub.store.CreateComment(ctx, p.Comment)
		c.ack(env, AckPayload{For: env.Type, ID: id.String(), Error: errCode(err)})
		c.hub.publish(dispatcher.TopicCommentCreated, p.Comment.VideoID, 1, err != nil)

	case TypeMoveComment:
		var p MoveCommentPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.ack(env, AckPayload{For: env.Type, Error: AckErrInternal})
			return
		}
		err := c.hub.store.UpdateCommentPosition(ctx, p.ID, p.Frame, p.Position)
		c.ack(env, AckPayload{For: env.Type, Error: errCode(err)})
		c.hub.publish(dispatcher.TopicCommentMoved, "", 1, err != nil)

	case TypeResolveComment:
		var p ResolveCommentPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.ack(env, AckPayload{For: env.Type, Error: AckErrInternal})
			return
		}
		resolved, err := c.hub.store.ToggleCommentResolved(ctx, p.ID)
		c.ack(env, AckPayload{For: env.Type, Resolved: resolved, Error: errCode(err)})
		c.hub.publish(dispatcher.TopicCommentResolved, "", 1, err != nil)

	case TypeDeleteComments:
		var p DeleteCommentsPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.ack(env, AckPayload{For: env.Type, Error: AckErrInternal})
			return
		}
		err := c.hub.store.DeleteComments(ctx, p.IDs)
		c.ack(env, AckPayload{For: env.Type, Error: errCode(err)})
		c.hub.publish(dispatcher.TopicCommentDeleted, "", len(p.IDs), err != nil)

	default:
		c.hub.logger.Debug("Unexpected message type", "type", env.Type)
	}
}

// errCode maps store errors to wire codes. An unknown error is reported as
// internal rather than leaking its text to clients.
func errCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrNotFound):
		return AckErrNotFound
	case errors.Is(err, store.ErrTemporaryID):
		return AckErrTemporaryID
	default:
		return AckErrInternal
	}
}

// ack sends the response for one mutation back to its originating client.
func (c *hubClient) ack(env Envelope, ack AckPayload) {
	data, err := marshalEnvelope(TypeAck, env.RequestID, ack)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("Client send buffer full, dropping ack", "for", ack.For)
	}
}

// writePump pumps hub messages to the connection with keepalive pings.
func (c *hubClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(gws.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(gws.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ store.Store = (*Backend)(nil)
