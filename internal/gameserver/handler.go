package gameserver

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spritefight/arena/internal/game/lobby"
	"github.com/spritefight/arena/internal/game/session"
)

// Handler is the per-connection command surface. The WebSocket frontend
// hands it connect, message, and disconnect events; it decodes envelopes
// and routes them to coordinator operations.
//
// Invariant: no inbound bytes, however malformed, cause anything louder
// than a dropped command and a debug log.
type Handler struct {
	coord    *lobby.Coordinator
	registry *session.Registry
	bc       *Broadcaster
	logger   *zap.Logger
}

// NewHandler creates a Handler.
//
// Precondition: all arguments must be non-nil.
func NewHandler(coord *lobby.Coordinator, registry *session.Registry, bc *Broadcaster, logger *zap.Logger) *Handler {
	return &Handler{
		coord:    coord,
		registry: registry,
		bc:       bc,
		logger:   logger,
	}
}

// Connect registers a fresh connection and greets it with server_status and
// the current public directory.
//
// Postcondition: Returns the connection's outbound delivery channel, or an
// error if the ID is already registered.
func (h *Handler) Connect(connID string) (<-chan []byte, error) {
	conn, err := h.registry.Add(connID)
	if err != nil {
		return nil, err
	}

	ready, full := h.coord.Status()
	h.bc.ServerStatus(connID, ready, full)
	h.bc.PublicLobbies(connID, h.coord.DirectorySnapshot())

	h.logger.Info("connection registered",
		zap.String("conn", connID),
		zap.Int("total", h.registry.Count()),
	)
	return conn.Outbox.Events(), nil
}

// Disconnect runs the synchronous cleanup for a dropped connection: lobby
// membership first, then the registry entry and its outbox.
func (h *Handler) Disconnect(connID string) {
	h.coord.Disconnect(connID)
	if err := h.registry.Remove(connID); err != nil {
		h.logger.Debug("removing unknown connection", zap.String("conn", connID), zap.Error(err))
		return
	}
	h.logger.Info("connection removed",
		zap.String("conn", connID),
		zap.Int("total", h.registry.Count()),
	)
}

// Message decodes and dispatches one inbound envelope from connID.
// Unknown types and malformed payloads are dropped.
func (h *Handler) Message(connID string, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.logger.Debug("dropping malformed envelope",
			zap.String("conn", connID),
			zap.Error(err),
		)
		return
	}

	switch env.Type {
	case MsgCreateLobby:
		var p CreateLobbyPayload
		if !h.decode(connID, env, &p) {
			return
		}
		if p.Name != "" {
			if err := h.registry.SetName(connID, p.Name); err != nil {
				return
			}
		}
		h.coord.CreateLobby(connID, h.registry.Name(connID))

	case MsgNewEmptyLobby:
		h.coord.CreateLobby(connID, h.registry.Name(connID))

	case MsgJoinLobby:
		var p JoinLobbyPayload
		if !h.decode(connID, env, &p) {
			return
		}
		h.coord.JoinLobby(connID, p.LobbyID)

	case MsgToggleReady:
		h.coord.ToggleReady(connID)

	case MsgToggleVisible:
		h.coord.ToggleVisible(connID)

	case MsgSetMap:
		var p SetMapPayload
		if !h.decode(connID, env, &p) {
			return
		}
		h.coord.SetArena(connID, p.MapID)

	case MsgSetSkin:
		var p SetSkinPayload
		if !h.decode(connID, env, &p) {
			return
		}
		h.coord.SetSkin(connID, p.SkinID)

	case MsgSubmitState:
		var p SubmitStatePayload
		if !h.decode(connID, env, &p) {
			return
		}
		h.coord.SubmitState(connID, p.X, p.Y, p.Health)

	default:
		h.logger.Debug("dropping unknown message type",
			zap.String("conn", connID),
			zap.String("type", string(env.Type)),
		)
	}
}

// decode unmarshals an envelope payload, reporting whether it succeeded.
func (h *Handler) decode(connID string, env Envelope, into any) bool {
	if len(env.Payload) == 0 {
		h.logger.Debug("dropping command with missing payload",
			zap.String("conn", connID),
			zap.String("type", string(env.Type)),
		)
		return false
	}
	if err := json.Unmarshal(env.Payload, into); err != nil {
		h.logger.Debug("dropping command with malformed payload",
			zap.String("conn", connID),
			zap.String("type", string(env.Type)),
			zap.Error(err),
		)
		return false
	}
	return true
}
