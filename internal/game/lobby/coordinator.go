package lobby

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spritefight/arena/internal/config"
)

// fallbackName is used when a create command carries an empty display name.
const fallbackName = "anon"

// Coordinator owns the lobby store, the public directory, and the
// connection-to-lobby membership index. Every mutation of any of the three
// happens under one mutex, so the directory can never drift from the store
// and membership can never dangle.
type Coordinator struct {
	cfg    config.GameConfig
	arenas Arenas
	bc     Broadcaster
	logger *zap.Logger

	mu        sync.Mutex
	warmed    bool
	lobbies   map[string]*Lobby
	directory map[string]*PublicLobby
	byConn    map[string]string // connection ID → lobby ID
}

// NewCoordinator creates a Coordinator with no lobbies.
//
// Precondition: cfg must be validated; bc and logger must be non-nil.
// arenas may be nil, in which case arena selection is unrestricted.
// Postcondition: Returns a Coordinator that rejects create/join until warm-up completes.
func NewCoordinator(cfg config.GameConfig, arenas Arenas, bc Broadcaster, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		arenas:    arenas,
		bc:        bc,
		logger:    logger,
		lobbies:   make(map[string]*Lobby),
		directory: make(map[string]*PublicLobby),
		byConn:    make(map[string]string),
	}
}

// StartWarmup arms the one-shot boot grace period. Until it elapses,
// CreateLobby and JoinLobby are silent no-ops.
//
// Postcondition: After delay, the coordinator accepts create/join commands.
func (c *Coordinator) StartWarmup(delay time.Duration) {
	if delay <= 0 {
		c.markWarmed()
		return
	}
	time.AfterFunc(delay, c.markWarmed)
}

func (c *Coordinator) markWarmed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.warmed {
		c.warmed = true
		c.logger.Info("warm-up complete, accepting lobby commands")
	}
}

// Status reports whether the server is past warm-up and whether the global
// player cap is reached. Used for the server_status greeting on connect.
func (c *Coordinator) Status() (ready, full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warmed, c.playerTotalLocked() >= c.cfg.MaxPlayers
}

// DirectorySnapshot returns a deep copy of the public directory, for the
// public_lobbies greeting sent to a freshly accepted connection.
func (c *Coordinator) DirectorySnapshot() map[string]*PublicLobby {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.directorySnapshotLocked()
}

// CreateLobby allocates a new lobby and moves the caller into it as its
// first player. Rejected silently before warm-up; rejected with a
// server_full signal when the global player cap is reached.
//
// Postcondition: On success the caller is the lobby's only player, the
// directory carries the matching entry, and both are resynced.
func (c *Coordinator) CreateLobby(connID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.warmed {
		c.logger.Debug("create_lobby before warm-up", zap.String("conn", connID))
		return
	}
	if c.playerTotalLocked() >= c.cfg.MaxPlayers {
		c.logger.Info("create_lobby rejected, server full", zap.String("conn", connID))
		c.bc.ServerFull(connID)
		return
	}
	if name == "" {
		name = fallbackName
	}

	c.leaveLocked(connID)

	id := c.newLobbyIDLocked()
	l := &Lobby{
		ID:      id,
		Status:  StatusMenu,
		Arena:   c.cfg.DefaultArena,
		Players: make(map[string]*Player),
	}
	c.lobbies[id] = l
	c.directory[id] = &PublicLobby{
		ID:      id,
		Status:  StatusMenu,
		Players: make(map[string]PublicPlayer),
	}
	c.addPlayerLocked(l, connID, name)

	c.logger.Info("lobby created",
		zap.String("lobby", id),
		zap.String("conn", connID),
		zap.String("name", name),
	)

	c.syncLobbyLocked(l)
	c.syncDirectoryLocked()
}

// JoinLobby moves the caller into an existing lobby, leaving its current
// lobby first. Silent no-op if the lobby does not exist, is at capacity,
// already holds the caller, or the global cap would be exceeded.
func (c *Coordinator) JoinLobby(connID, lobbyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.warmed {
		c.logger.Debug("join_lobby before warm-up", zap.String("conn", connID))
		return
	}
	l, ok := c.lobbies[lobbyID]
	if !ok {
		c.logger.Debug("join_lobby on unknown lobby",
			zap.String("conn", connID),
			zap.String("lobby", lobbyID),
		)
		return
	}
	if c.byConn[connID] == lobbyID {
		return
	}
	if len(l.Players) >= c.cfg.LobbyCapacity {
		c.logger.Debug("join_lobby rejected, lobby full",
			zap.String("conn", connID),
			zap.String("lobby", lobbyID),
		)
		return
	}
	if c.playerTotalLocked() >= c.cfg.MaxPlayers {
		c.logger.Info("join_lobby rejected, server full", zap.String("conn", connID))
		c.bc.ServerFull(connID)
		return
	}

	name := fallbackName
	if cur := c.playerLocked(connID); cur != nil {
		name = cur.Name
	}
	c.leaveLocked(connID)
	c.addPlayerLocked(l, connID, name)

	c.logger.Info("player joined lobby",
		zap.String("lobby", lobbyID),
		zap.String("conn", connID),
	)

	c.syncLobbyLocked(l)
	c.syncDirectoryLocked()
}

// Leave removes the caller from its lobby, destroying the lobby if it
// becomes empty. Safe to call for connections not in any lobby.
func (c *Coordinator) Leave(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.leaveLocked(connID) {
		c.syncDirectoryLocked()
	}
}

// Disconnect performs the synchronous cleanup for a dropped connection.
// It shares the Leave mutation path so no stale player survives into the
// next lifecycle check.
func (c *Coordinator) Disconnect(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.leaveLocked(connID) {
		c.syncDirectoryLocked()
	}
}

// ToggleReady flips the caller's readiness flag.
func (c *Coordinator) ToggleReady(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.playerLocked(connID)
	if p == nil {
		return
	}
	p.Ready = !p.Ready

	lobbyID := c.byConn[connID]
	if pub, ok := c.directory[lobbyID]; ok {
		entry := pub.Players[connID]
		entry.Ready = p.Ready
		pub.Players[connID] = entry
	}

	c.syncLobbyLocked(c.lobbies[lobbyID])
	c.syncDirectoryLocked()
}

// ToggleVisible flips the caller's visibility flag. Visibility is private
// lobby state, so only the lobby is resynced.
func (c *Coordinator) ToggleVisible(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.playerLocked(connID)
	if p == nil {
		return
	}
	p.Visible = !p.Visible
	c.syncLobbyLocked(c.lobbies[c.byConn[connID]])
}

// SetArena selects the lobby's arena. Unknown arena IDs are dropped.
// The arena is not part of the public projection, so only the lobby is
// resynced.
func (c *Coordinator) SetArena(connID, arenaID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lobbyID, ok := c.byConn[connID]
	if !ok {
		return
	}
	if c.arenas != nil && !c.arenas.Has(arenaID) {
		c.logger.Debug("set_map with unknown arena",
			zap.String("conn", connID),
			zap.String("arena", arenaID),
		)
		return
	}
	l := c.lobbies[lobbyID]
	l.Arena = arenaID
	c.syncLobbyLocked(l)
}

// SetSkin selects the caller's sprite.
func (c *Coordinator) SetSkin(connID, skinID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.playerLocked(connID)
	if p == nil {
		return
	}
	p.Skin = skinID
	c.syncLobbyLocked(c.lobbies[c.byConn[connID]])
}

// SubmitState applies a client position/health report. The update is
// dropped when the caller's lobby is not in a match or when the proposed
// position deviates from the last accepted one by more than the move
// tolerance on either axis. Accepted updates advance the anchor.
func (c *Coordinator) SubmitState(connID string, x, y float64, health int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lobbyID, ok := c.byConn[connID]
	if !ok {
		return
	}
	l := c.lobbies[lobbyID]
	if l.Status != StatusGame {
		return
	}
	p := l.Players[connID]
	if p == nil {
		return
	}
	if math.Abs(x-p.lastGoodX) > c.cfg.MoveTolerance ||
		math.Abs(y-p.lastGoodY) > c.cfg.MoveTolerance {
		c.logger.Debug("state update outside tolerance, dropped",
			zap.String("conn", connID),
			zap.Float64("dx", x-p.lastGoodX),
			zap.Float64("dy", y-p.lastGoodY),
		)
		return
	}

	p.X, p.Y = x, y
	p.Health = health
	p.lastGoodX, p.lastGoodY = x, y
}

// ControlTick runs the lifecycle checks for every lobby and then pushes the
// full private state of every lobby to its members. The public directory is
// rebroadcast only when a lifecycle transition changed it.
func (c *Coordinator) ControlTick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	dt := c.cfg.ControlTick.Seconds()
	changed := false
	for _, l := range c.lobbies {
		if c.stepLocked(l, dt) {
			changed = true
		}
	}
	if changed {
		c.syncDirectoryLocked()
	}
	for _, l := range c.lobbies {
		c.syncLobbyLocked(l)
	}
}

// SnapshotTick pushes the minimal match snapshot for every lobby currently
// in a match. Lobbies in the menu phase generate no traffic at this rate.
func (c *Coordinator) SnapshotTick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, l := range c.lobbies {
		if l.Status != StatusGame {
			continue
		}
		snap := make(map[string]PlayerSnapshot, len(l.Players))
		for connID, p := range l.Players {
			snap[connID] = PlayerSnapshot{
				ID:     p.ID,
				Image:  p.Skin,
				X:      p.X,
				Y:      p.Y,
				Health: p.Health,
			}
		}
		c.bc.GameState(id, snap)
	}
}

// LobbyCount returns the number of live lobbies.
func (c *Coordinator) LobbyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lobbies)
}

// PlayerTotal returns the number of players across all lobbies.
func (c *Coordinator) PlayerTotal() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerTotalLocked()
}

// addPlayerLocked inserts a fresh player record into l and mirrors it into
// the directory entry.
func (c *Coordinator) addPlayerLocked(l *Lobby, connID, name string) {
	l.Players[connID] = &Player{
		ID:      connID,
		Name:    name,
		Visible: true,
		Health:  c.cfg.StartingHealth,
	}
	c.directory[l.ID].Players[connID] = PublicPlayer{Name: name}
	c.byConn[connID] = l.ID
}

// leaveLocked removes connID from its lobby and the mirrored directory
// entry, destroying both when the lobby empties. The remaining lobby, if
// any, is resynced here; the caller resyncs the directory.
//
// Postcondition: Returns true if membership changed.
func (c *Coordinator) leaveLocked(connID string) bool {
	lobbyID, ok := c.byConn[connID]
	if !ok {
		return false
	}
	delete(c.byConn, connID)

	l, ok := c.lobbies[lobbyID]
	if !ok {
		return false
	}
	delete(l.Players, connID)
	if pub, ok := c.directory[lobbyID]; ok {
		delete(pub.Players, connID)
	}

	if len(l.Players) == 0 {
		delete(c.lobbies, lobbyID)
		delete(c.directory, lobbyID)
		c.logger.Info("lobby destroyed",
			zap.String("lobby", lobbyID),
			zap.String("last_conn", connID),
		)
		return true
	}

	c.logger.Info("player left lobby",
		zap.String("lobby", lobbyID),
		zap.String("conn", connID),
		zap.Int("remaining", len(l.Players)),
	)
	c.syncLobbyLocked(l)
	return true
}

// playerLocked resolves connID to its player record, or nil.
func (c *Coordinator) playerLocked(connID string) *Player {
	lobbyID, ok := c.byConn[connID]
	if !ok {
		return nil
	}
	l, ok := c.lobbies[lobbyID]
	if !ok {
		return nil
	}
	return l.Players[connID]
}

// playerTotalLocked sums player counts across the public directory.
func (c *Coordinator) playerTotalLocked() int {
	total := 0
	for _, pub := range c.directory {
		total += len(pub.Players)
	}
	return total
}

// newLobbyIDLocked generates a join token not currently in use.
func (c *Coordinator) newLobbyIDLocked() string {
	for {
		id := newLobbyID()
		if _, taken := c.lobbies[id]; !taken {
			return id
		}
	}
}

func (c *Coordinator) syncLobbyLocked(l *Lobby) {
	if l == nil {
		return
	}
	c.bc.LobbyState(stateSnapshot(l))
}

func (c *Coordinator) syncDirectoryLocked() {
	c.bc.Directory(c.directorySnapshotLocked())
}

// stateSnapshot deep-copies a lobby into its private wire view.
func stateSnapshot(l *Lobby) *State {
	players := make(map[string]Player, len(l.Players))
	for id, p := range l.Players {
		players[id] = *p
	}
	return &State{
		ID:       l.ID,
		Status:   l.Status,
		Arena:    l.Arena,
		TimeLeft: l.TimeLeft,
		Players:  players,
	}
}

func (c *Coordinator) directorySnapshotLocked() map[string]*PublicLobby {
	dir := make(map[string]*PublicLobby, len(c.directory))
	for id, pub := range c.directory {
		players := make(map[string]PublicPlayer, len(pub.Players))
		for connID, pp := range pub.Players {
			players[connID] = pp
		}
		dir[id] = &PublicLobby{ID: pub.ID, Status: pub.Status, Players: players}
	}
	return dir
}
