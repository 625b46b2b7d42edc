package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ai-interview-service/internal/models"
)

const writeTimeout = 10 * time.Second

// wsTransport adapts a gorilla WebSocket connection to session.Transport.
// Reads happen from one goroutine only; writes are serialized with a mutex.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

// Receive blocks until the next client message or a read error (disconnect).
func (t *wsTransport) Receive() (*models.ClientMessage, error) {
	var msg models.ClientMessage
	if err := t.conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Send writes one server message.
func (t *wsTransport) Send(msg *models.ServerMessage) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteJSON(msg)
}
