// Package gameserver is the command surface of the coordinator: it decodes
// inbound client envelopes, routes them to lobby operations, runs the two
// broadcast ticks, and fans coordinator state out to connection outboxes.
package gameserver

import "encoding/json"

// MessageType names a wire message.
type MessageType string

// Client → server.
const (
	MsgCreateLobby   MessageType = "create_lobby"
	MsgJoinLobby     MessageType = "join_lobby"
	MsgNewEmptyLobby MessageType = "new_empty_lobby"
	MsgToggleReady   MessageType = "toggle_ready"
	MsgToggleVisible MessageType = "toggle_visible"
	MsgSetMap        MessageType = "set_map"
	MsgSetSkin       MessageType = "set_skin"
	MsgSubmitState   MessageType = "submit_state"
)

// Server → client.
const (
	MsgServerStatus  MessageType = "server_status"
	MsgServerFull    MessageType = "server_full"
	MsgLobbyData     MessageType = "lobby_data"
	MsgPublicLobbies MessageType = "public_lobbies"
	MsgGameState     MessageType = "game_state"
)

// Envelope wraps every inbound message. Payload stays raw until the type is
// known; malformed payloads are dropped at decode time.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// outEnvelope wraps every outbound message.
type outEnvelope struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// CreateLobbyPayload carries the caller's display name.
type CreateLobbyPayload struct {
	Name string `json:"name"`
}

// JoinLobbyPayload carries the join token of the target lobby.
type JoinLobbyPayload struct {
	LobbyID string `json:"lobby_id"`
}

// SetMapPayload carries the selected arena ID.
type SetMapPayload struct {
	MapID string `json:"map_id"`
}

// SetSkinPayload carries the selected sprite ID.
type SetSkinPayload struct {
	SkinID string `json:"skin_id"`
}

// SubmitStatePayload carries a client's position and health report.
type SubmitStatePayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Health int     `json:"health"`
}

// ServerStatusPayload greets a fresh connection.
type ServerStatusPayload struct {
	// Ready reports that the warm-up grace period has elapsed.
	Ready bool `json:"ready"`
	// Full reports that the global player cap is currently reached.
	Full bool `json:"full"`
}
