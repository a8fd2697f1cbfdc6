// Package testutil provides test clients for integration testing.
package testutil

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is a simple WebSocket test client for integration testing.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials ws://addr/ws and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, addr string) *WSClient {
	t.Helper()
	start := time.Now()

	url := fmt.Sprintf("ws://%s/ws", addr)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v [%s]", url, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	client := &WSClient{
		conn: conn,
		t:    t,
	}

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return client
}

// Send writes one typed envelope to the server.
//
// Postcondition: The message is written, or the test fails.
func (c *WSClient) Send(msgType string, payload any) {
	c.t.Helper()

	env := map[string]any{"type": msgType}
	if payload != nil {
		env["payload"] = payload
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteJSON(env); err != nil {
		c.t.Fatalf("sending %s: %v", msgType, err)
	}
}

// SendRaw writes raw bytes to the server, for malformed-input tests.
func (c *WSClient) SendRaw(data []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("sending raw bytes: %v", err)
	}
}

// Expect reads messages until one of the given type arrives, returning its
// payload. Messages of other types are discarded.
//
// Precondition: msgType must be non-empty.
// Postcondition: Returns the matching payload, or fails on timeout.
func (c *WSClient) Expect(msgType string, timeout time.Duration) json.RawMessage {
	c.t.Helper()
	deadline := time.Now().Add(timeout)

	for {
		_ = c.conn.SetReadDeadline(deadline)
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("reading until %q: %v", msgType, err)
		}

		var env struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			c.t.Fatalf("decoding envelope %q: %v", data, err)
		}
		if env.Type == msgType {
			return env.Payload
		}
	}
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	c.conn.Close()
}
