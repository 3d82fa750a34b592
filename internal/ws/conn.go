package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Max time allowed to write one frame to a peer.
	writeWait = 10 * time.Second

	// Inbound frames larger than this are rejected by the transport.
	maxFrameSize = 8 * 1024
)

// conn wraps one websocket connection. Reads happen only from the owning
// serve loop; writes come from that loop (acks) and from other connections'
// handlers (deliveries), so they are serialized by a mutex.
type conn struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

func newConn(wsConn *websocket.Conn) *conn {
	wsConn.SetReadLimit(maxFrameSize)
	return &conn{id: uuid.NewString(), ws: wsConn}
}

// Push sends one named event to the client. Safe for concurrent use.
func (c *conn) Push(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(Envelope{Event: event, Data: raw})
}

func (c *conn) close() {
	_ = c.ws.Close()
}
