package gameserver

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spritefight/arena/internal/game/lobby"
	"github.com/spritefight/arena/internal/game/session"
)

// Broadcaster fans coordinator state out to connection outboxes. It
// implements lobby.Broadcaster: every send is a non-blocking enqueue, so it
// is safe to call while the coordinator holds its lock.
type Broadcaster struct {
	registry *session.Registry
	logger   *zap.Logger
}

// NewBroadcaster creates a Broadcaster over the given registry.
//
// Precondition: registry and logger must be non-nil.
func NewBroadcaster(registry *session.Registry, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger,
	}
}

// LobbyState pushes the full private lobby state to every member.
func (b *Broadcaster) LobbyState(state *lobby.State) {
	data, err := json.Marshal(outEnvelope{Type: MsgLobbyData, Payload: state})
	if err != nil {
		b.logger.Error("marshalling lobby state", zap.Error(err))
		return
	}
	for connID := range state.Players {
		b.push(connID, data)
	}
}

// Directory pushes the public lobby listing to every connection.
func (b *Broadcaster) Directory(dir map[string]*lobby.PublicLobby) {
	data, err := json.Marshal(outEnvelope{Type: MsgPublicLobbies, Payload: dir})
	if err != nil {
		b.logger.Error("marshalling directory", zap.Error(err))
		return
	}
	b.registry.Broadcast(data)
}

// GameState pushes the minimal match snapshot to the lobby's members.
func (b *Broadcaster) GameState(lobbyID string, players map[string]lobby.PlayerSnapshot) {
	data, err := json.Marshal(outEnvelope{Type: MsgGameState, Payload: players})
	if err != nil {
		b.logger.Error("marshalling game state", zap.String("lobby", lobbyID), zap.Error(err))
		return
	}
	for connID := range players {
		b.push(connID, data)
	}
}

// ServerFull signals one connection that the global player cap is reached.
func (b *Broadcaster) ServerFull(connID string) {
	data, err := json.Marshal(outEnvelope{Type: MsgServerFull})
	if err != nil {
		b.logger.Error("marshalling server_full", zap.Error(err))
		return
	}
	b.push(connID, data)
}

// ServerStatus greets a single connection with warm-up and capacity state.
func (b *Broadcaster) ServerStatus(connID string, ready, full bool) {
	data, err := json.Marshal(outEnvelope{
		Type:    MsgServerStatus,
		Payload: ServerStatusPayload{Ready: ready, Full: full},
	})
	if err != nil {
		b.logger.Error("marshalling server_status", zap.Error(err))
		return
	}
	b.push(connID, data)
}

// PublicLobbies sends the directory to a single connection, used for the
// greeting on connect.
func (b *Broadcaster) PublicLobbies(connID string, dir map[string]*lobby.PublicLobby) {
	data, err := json.Marshal(outEnvelope{Type: MsgPublicLobbies, Payload: dir})
	if err != nil {
		b.logger.Error("marshalling directory", zap.Error(err))
		return
	}
	b.push(connID, data)
}

// push enqueues data to one outbox. Delivery failures (unknown connection,
// full buffer) are logged and otherwise ignored: broadcasts are
// fire-and-forget.
func (b *Broadcaster) push(connID string, data []byte) {
	if err := b.registry.Send(connID, data); err != nil {
		b.logger.Debug("dropping outbound message",
			zap.String("conn", connID),
			zap.Error(err),
		)
	}
}
