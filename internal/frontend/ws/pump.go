package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// readPump reads client messages until the socket errors, feeding each one
// to the session handler. It runs on the HTTP handler goroutine.
func (a *Acceptor) readPump(connID string, conn *websocket.Conn) {
	for {
		if a.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.logger.Debug("read pump ended",
					zap.String("conn", connID),
					zap.Error(err),
				)
			}
			return
		}
		a.handler.Message(connID, data)
	}
}

// writePump drains the connection's outbound channel onto the socket. It
// exits when the channel is closed (session removed) or a write fails.
func (a *Acceptor) writePump(connID string, conn *websocket.Conn, events <-chan []byte) {
	defer a.wg.Done()

	for data := range events {
		if a.cfg.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout))
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			a.logger.Debug("write pump ended",
				zap.String("conn", connID),
				zap.Error(err),
			)
			// Unblock the read pump so cleanup runs promptly.
			conn.Close()
			return
		}
	}

	deadline := time.Now().Add(100 * time.Millisecond)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
}
