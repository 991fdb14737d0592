package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/journalbuddy/backend/pkg/gateway/live/protocol"
)

// Transport is the client-facing side of a live conversation. Audio
// goes out as binary frames, control messages as JSON text frames.
type Transport interface {
	Send(msgType string, data any) error
	SendAudio(chunk []byte) error

	// ReadFrame blocks for the next client frame and returns its
	// websocket message type and payload.
	ReadFrame() (int, []byte, error)

	Close() error
}

type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
	closed  atomic.Bool
}

// NewTransport wraps a websocket connection. Writes are serialized;
// gorilla connections do not support concurrent writers.
func NewTransport(conn *websocket.Conn, writeTimeout time.Duration) Transport {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &wsTransport{conn: conn, writeTimeout: writeTimeout}
}

func (t *wsTransport) Send(msgType string, data any) error {
	raw, err := protocol.Encode(msgType, data)
	if err != nil {
		return err
	}
	return t.write(websocket.TextMessage, raw)
}

func (t *wsTransport) SendAudio(chunk []byte) error {
	return t.write(websocket.BinaryMessage, chunk)
}

func (t *wsTransport) ReadFrame() (int, []byte, error) {
	return t.conn.ReadMessage()
}

func (t *wsTransport) write(messageType int, data []byte) error {
	if t.closed.Load() {
		return websocket.ErrCloseSent
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteMessage(messageType, data)
}

func (t *wsTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.writeMu.Lock()
	deadline := time.Now().Add(t.writeTimeout)
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	t.writeMu.Unlock()
	return t.conn.Close()
}
