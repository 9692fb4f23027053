package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
)

const (
	sendChSize   = 1024
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// connection manages a WebSocket connection with a single write goroutine.
// Acks are routed to their waiting request by request id; snapshots go to the
// onSnapshot callback.
type connection struct {
	mu      sync.Mutex
	conn    *gws.Conn
	sendCh  chan []byte
	done    chan struct{} // closed on shutdown
	closed  bool
	pending map[string]chan AckPayload

	wsURL  string
	secret string

	// Cached join messages, replayed after reconnect so the server resumes
	// pushing snapshots for every video this client follows.
	cachedJoins map[string][]byte

	onSnapshot func(SnapshotPayload)

	logger *slog.Logger
}

func newConnection(logger *slog.Logger, onSnapshot func(SnapshotPayload)) *connection {
	return &connection{
		sendCh:      make(chan []byte, sendChSize),
		done:        make(chan struct{}),
		pending:     make(map[string]chan AckPayload),
		cachedJoins: make(map[string][]byte),
		onSnapshot:  onSnapshot,
		logger:      logger,
	}
}

// dial connects to the WebSocket server and starts read/write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *connection) dialOnce() (*gws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := gws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh and writes messages to the WebSocket.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				go c.reconnect()
				return
			}
			if err := conn.WriteMessage(gws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect()
				return
			}
		}
	}
}

// readLoop reads server messages and routes acks and snapshots.
func (c *connection) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect()
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Unparseable message received", "raw", string(message))
			continue
		}

		switch env.Type {
		case TypeAck:
			var ack AckPayload
			if err := json.Unmarshal(env.Payload, &ack); err != nil {
				c.logger.Debug("Malformed ack", "error", err)
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[env.RequestID]
			if ok {
				delete(c.pending, env.RequestID)
			}
			c.mu.Unlock()
			if ok {
				ch <- ack
			}
		case TypeSnapshot:
			var snap SnapshotPayload
			if err := json.Unmarshal(env.Payload, &snap); err != nil {
				c.logger.Debug("Malformed snapshot", "error", err)
				continue
			}
			if c.onSnapshot != nil {
				c.onSnapshot(snap)
			}
		default:
			c.logger.Debug("Unexpected message type", "type", env.Type)
		}
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. On success it replays the cached join messages and
// restarts the read/write loops.
func (c *connection) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}

		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		time.Sleep(backoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		joins := make([][]byte, 0, len(c.cachedJoins))
		for _, j := range c.cachedJoins {
			joins = append(joins, j)
		}
		c.mu.Unlock()

		// Replay joins so the server resumes snapshot delivery. The first
		// snapshot after rejoin also heals any state missed while offline.
		replayFailed := false
		for _, join := range joins {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				replayFailed = true
				break
			}
			if err := conn.WriteMessage(gws.TextMessage, join); err != nil {
				replayFailed = true
				break
			}
		}
		if replayFailed {
			c.logger.Warn("Failed to replay join after reconnect")
			_ = conn.Close()
			continue
		}

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		go c.writeLoop()
		go c.readLoop()
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// cacheJoin remembers a join message for reconnect replay.
func (c *connection) cacheJoin(videoID string, data []byte) {
	c.mu.Lock()
	c.cachedJoins[videoID] = data
	c.mu.Unlock()
}

// dropJoin forgets a cached join once the last subscriber is gone.
func (c *connection) dropJoin(videoID string) {
	c.mu.Lock()
	delete(c.cachedJoins, videoID)
	c.mu.Unlock()
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// request sends data and blocks until the server acknowledges the request id
// or the timeout expires.
func (c *connection) request(requestID string, data []byte, timeout time.Duration) (AckPayload, error) {
	ch := make(chan AckPayload, 1)
	c.mu.Lock()
	c.pending[requestID] = ch
	c.mu.Unlock()

	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack := <-ch:
		return ack, nil
	case <-timer.C:
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
		return AckPayload{}, fmt.Errorf("timeout waiting for ack of request %s", requestID)
	case <-c.done:
		return AckPayload{}, fmt.Errorf("connection closed while waiting for ack of request %s", requestID)
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			gws.CloseMessage,
			gws.FormatCloseMessage(gws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
