package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type peer struct {
	conn     *websocket.Conn
	identity string
	channels map[string]struct{}
	mu       sync.Mutex
}

func (p *peer) listens(channel string) bool {
	_, ok := p.channels[channel]
	return ok
}

func (p *peer) write(data []byte, deadline time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetWriteDeadline(deadline)
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

// RegisterPeer attaches a websocket connection to the given channel names.
// Broadcasts sent on those channels are written to it as Message frames.
func (h *Hub) RegisterPeer(conn *websocket.Conn, identity string, channels ...string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	names := make(map[string]struct{}, len(channels))
	for _, name := range channels {
		names[name] = struct{}{}
	}
	h.peers[conn] = &peer{conn: conn, identity: identity, channels: names}
	return nil
}

// UnregisterPeer detaches and closes the connection.
func (h *Hub) UnregisterPeer(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.peers, conn)
	h.mu.Unlock()
	conn.Close()
}
