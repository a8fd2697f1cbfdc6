// Package lobby implements the authoritative session coordinator: the lobby
// store, its redacted public directory, and the menu/game match lifecycle.
//
// All mutable state is owned by the Coordinator and guarded by a single
// mutex, so command handlers, both periodic ticks, and disconnect cleanup
// observe lobby state, directory state, and membership as one atomic unit.
package lobby

// Status is a lobby's lifecycle phase.
type Status string

const (
	// StatusMenu is the pre/post-match phase: players gather and ready up.
	StatusMenu Status = "menu"
	// StatusGame is the active match phase.
	StatusGame Status = "game"
)

// Player is a per-lobby participant record, keyed by connection ID.
type Player struct {
	// ID is the owning connection's identifier.
	ID string `json:"id"`
	// Name is the player's display name.
	Name string `json:"name"`
	// Ready is the player's consent to start a match.
	Ready bool `json:"ready"`
	// Visible controls whether the player is rendered to others.
	Visible bool `json:"visible"`
	// Skin is the chosen sprite identifier.
	Skin string `json:"skin"`
	// X, Y is the player's reported position.
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// Health is the player's hit points; 0 means eliminated.
	Health int `json:"health"`

	// lastGoodX, lastGoodY is the last accepted position, the anchor for
	// displacement validation.
	lastGoodX float64
	lastGoodY float64
}

// Alive reports whether the player still counts toward the win condition.
func (p *Player) Alive() bool {
	return p.Health > 0
}

// Lobby is the authoritative state of one session, private fields included.
type Lobby struct {
	// ID is the short join token.
	ID string
	// Status is the lifecycle phase.
	Status Status
	// Arena is the selected arena (map) identifier.
	Arena string
	// TimeLeft is the remaining match time in seconds.
	// Only meaningful while Status is StatusGame.
	TimeLeft float64
	// Players maps connection ID to participant record.
	Players map[string]*Player
}

// State is the full private lobby view pushed to lobby members.
// It is a deep copy taken under the coordinator lock, safe to marshal on
// delivery goroutines.
type State struct {
	ID       string            `json:"id"`
	Status   Status            `json:"status"`
	Arena    string            `json:"arena"`
	TimeLeft float64           `json:"time_left"`
	Players  map[string]Player `json:"players"`
}

// PublicPlayer is the redacted per-player projection in the directory.
type PublicPlayer struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// PublicLobby is the redacted lobby projection broadcast to all connections
// for matchmaking. It excludes positions, health, arena, and skins.
type PublicLobby struct {
	ID      string                  `json:"id"`
	Status  Status                  `json:"status"`
	Players map[string]PublicPlayer `json:"players"`
}

// PlayerSnapshot is the minimal per-player projection broadcast at the
// snapshot rate during an active match.
type PlayerSnapshot struct {
	ID     string  `json:"id"`
	Image  string  `json:"image"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Health int     `json:"health"`
}

// Broadcaster delivers coordinator state to connections. Implementations
// must not block: sends are fire-and-forget enqueues onto per-connection
// outboxes, since the coordinator calls these while holding its lock.
type Broadcaster interface {
	// LobbyState pushes the full private state to the lobby's members.
	LobbyState(state *State)
	// Directory pushes the redacted lobby listing to every connection.
	Directory(dir map[string]*PublicLobby)
	// GameState pushes the minimal match snapshot to the lobby's members.
	GameState(lobbyID string, players map[string]PlayerSnapshot)
	// ServerFull signals one connection that the global player cap is reached.
	ServerFull(connID string)
}

// Arenas reports which arena IDs are selectable.
type Arenas interface {
	Has(id string) bool
}
