package lobby

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/spritefight/arena/internal/config"
)

// recordingBroadcaster captures every push for assertions.
type recordingBroadcaster struct {
	states    []*State
	dirs      []map[string]*PublicLobby
	snapshots []recordedSnapshot
	fullConns []string
}

type recordedSnapshot struct {
	lobbyID string
	players map[string]PlayerSnapshot
}

func (r *recordingBroadcaster) LobbyState(state *State) {
	r.states = append(r.states, state)
}

func (r *recordingBroadcaster) Directory(dir map[string]*PublicLobby) {
	r.dirs = append(r.dirs, dir)
}

func (r *recordingBroadcaster) GameState(lobbyID string, players map[string]PlayerSnapshot) {
	r.snapshots = append(r.snapshots, recordedSnapshot{lobbyID: lobbyID, players: players})
}

func (r *recordingBroadcaster) ServerFull(connID string) {
	r.fullConns = append(r.fullConns, connID)
}

func (r *recordingBroadcaster) lastState() *State {
	if len(r.states) == 0 {
		return nil
	}
	return r.states[len(r.states)-1]
}

func (r *recordingBroadcaster) lastDir() map[string]*PublicLobby {
	if len(r.dirs) == 0 {
		return nil
	}
	return r.dirs[len(r.dirs)-1]
}

// stubArenas accepts a fixed ID set.
type stubArenas map[string]bool

func (s stubArenas) Has(id string) bool { return s[id] }

func testGameConfig() config.GameConfig {
	return config.GameConfig{
		MaxPlayers:     10,
		LobbyCapacity:  4,
		ControlTick:    100 * time.Millisecond,
		SnapshotTick:   33 * time.Millisecond,
		MatchDuration:  120 * time.Second,
		MoveTolerance:  100,
		StartingHealth: 100,
		DefaultArena:   "quarry",
	}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *recordingBroadcaster) {
	t.Helper()
	bc := &recordingBroadcaster{}
	c := NewCoordinator(testGameConfig(), stubArenas{"quarry": true, "rooftops": true}, bc, zaptest.NewLogger(t))
	c.StartWarmup(0)
	return c, bc
}

// soleLobbyID returns the ID of the single live lobby.
func soleLobbyID(t *testing.T, c *Coordinator) string {
	t.Helper()
	require.Equal(t, 1, len(c.lobbies))
	for id := range c.lobbies {
		return id
	}
	return ""
}

func TestCreateLobby(t *testing.T) {
	c, bc := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")

	id := soleLobbyID(t, c)
	l := c.lobbies[id]
	assert.Equal(t, StatusMenu, l.Status)
	assert.Equal(t, "quarry", l.Arena)
	require.Contains(t, l.Players, "a")
	p := l.Players["a"]
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, 100, p.Health)
	assert.True(t, p.Visible)
	assert.False(t, p.Ready)
	assert.Zero(t, p.X)
	assert.Zero(t, p.Y)

	pub := c.directory[id]
	require.NotNil(t, pub)
	assert.Equal(t, StatusMenu, pub.Status)
	assert.Equal(t, PublicPlayer{Name: "Alice"}, pub.Players["a"])

	require.NotNil(t, bc.lastState())
	assert.Equal(t, id, bc.lastState().ID)
	require.NotNil(t, bc.lastDir())
	assert.Contains(t, bc.lastDir(), id)
}

func TestCreateLobby_BeforeWarmup(t *testing.T) {
	bc := &recordingBroadcaster{}
	c := NewCoordinator(testGameConfig(), nil, bc, zaptest.NewLogger(t))

	c.CreateLobby("a", "Alice")

	assert.Equal(t, 0, c.LobbyCount())
	assert.Empty(t, bc.states)
	assert.Empty(t, bc.fullConns)
}

func TestCreateLobby_EmptyNameGetsFallback(t *testing.T) {
	c, _ := newTestCoordinator(t)
	c.CreateLobby("a", "")
	id := soleLobbyID(t, c)
	assert.Equal(t, fallbackName, c.lobbies[id].Players["a"].Name)
}

func TestCreateLobby_LeavesPreviousLobby(t *testing.T) {
	c, _ := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")
	first := soleLobbyID(t, c)

	c.CreateLobby("a", "Alice")

	// The first lobby emptied and was destroyed.
	assert.Equal(t, 1, c.LobbyCount())
	assert.NotContains(t, c.lobbies, first)
	assert.Equal(t, 1, c.PlayerTotal())
}

func TestJoinLobby(t *testing.T) {
	c, _ := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")
	id := soleLobbyID(t, c)

	c.JoinLobby("b", id)

	l := c.lobbies[id]
	assert.Len(t, l.Players, 2)
	assert.Contains(t, l.Players, "b")
	assert.Len(t, c.directory[id].Players, 2)
	assert.Equal(t, id, c.byConn["b"])
}

func TestJoinLobby_UnknownLobby(t *testing.T) {
	c, bc := newTestCoordinator(t)
	preStates := len(bc.states)

	c.JoinLobby("b", "zzzzz")

	assert.Equal(t, 0, c.LobbyCount())
	assert.Len(t, bc.states, preStates)
}

func TestJoinLobby_AtCapacityRejected(t *testing.T) {
	c, _ := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")
	id := soleLobbyID(t, c)
	c.JoinLobby("b", id)
	c.JoinLobby("c", id)
	c.JoinLobby("d", id)
	require.Len(t, c.lobbies[id].Players, 4)

	c.JoinLobby("e", id)

	l := c.lobbies[id]
	assert.Len(t, l.Players, 4)
	assert.NotContains(t, l.Players, "e")
	assert.NotContains(t, c.byConn, "e")
}

func TestJoinLobby_SameLobbyIsNoop(t *testing.T) {
	c, bc := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")
	id := soleLobbyID(t, c)
	preStates := len(bc.states)

	c.JoinLobby("a", id)

	assert.Len(t, c.lobbies[id].Players, 1)
	assert.Len(t, bc.states, preStates)
}

func TestJoinLobby_MovesBetweenLobbies(t *testing.T) {
	c, _ := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")
	first := soleLobbyID(t, c)
	c.JoinLobby("b", first)

	c.CreateLobby("x", "Xeno")
	var second string
	for id := range c.lobbies {
		if id != first {
			second = id
		}
	}
	require.NotEmpty(t, second)

	c.JoinLobby("b", second)

	assert.NotContains(t, c.lobbies[first].Players, "b")
	assert.Contains(t, c.lobbies[second].Players, "b")
	assert.Equal(t, second, c.byConn["b"])
}

func TestGlobalCap_EleventhPlayerGetsServerFull(t *testing.T) {
	c, bc := newTestCoordinator(t)

	// Fill 10 players: 3 lobbies of 4+4+2.
	c.CreateLobby("h1", "Host1")
	l1 := soleLobbyID(t, c)
	c.JoinLobby("p1", l1)
	c.JoinLobby("p2", l1)
	c.JoinLobby("p3", l1)

	c.CreateLobby("h2", "Host2")
	var l2 string
	for id := range c.lobbies {
		if id != l1 {
			l2 = id
		}
	}
	c.JoinLobby("p4", l2)
	c.JoinLobby("p5", l2)
	c.JoinLobby("p6", l2)

	c.CreateLobby("h3", "Host3")
	var l3 string
	for id := range c.lobbies {
		if id != l1 && id != l2 {
			l3 = id
		}
	}
	c.JoinLobby("p7", l3)
	require.Equal(t, 10, c.PlayerTotal())

	lobbies := c.LobbyCount()

	c.CreateLobby("extra", "Extra")
	assert.Equal(t, []string{"extra"}, bc.fullConns)
	assert.Equal(t, lobbies, c.LobbyCount())
	assert.Equal(t, 10, c.PlayerTotal())

	c.JoinLobby("extra", l3)
	assert.Equal(t, []string{"extra", "extra"}, bc.fullConns)
	assert.Equal(t, 10, c.PlayerTotal())

	_, full := c.Status()
	assert.True(t, full)
}

func TestLeave_DestroysEmptyLobby(t *testing.T) {
	c, bc := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")
	id := soleLobbyID(t, c)

	c.Leave("a")

	assert.NotContains(t, c.lobbies, id)
	assert.NotContains(t, c.directory, id)
	assert.NotContains(t, c.byConn, "a")
	assert.NotContains(t, bc.lastDir(), id)
}

func TestLeave_KeepsPopulatedLobby(t *testing.T) {
	c, bc := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")
	id := soleLobbyID(t, c)
	c.JoinLobby("b", id)

	c.Leave("a")

	require.Contains(t, c.lobbies, id)
	assert.Len(t, c.lobbies[id].Players, 1)
	assert.Len(t, c.directory[id].Players, 1)
	assert.Equal(t, id, bc.lastState().ID)
	assert.NotContains(t, bc.lastState().Players, "a")
}

func TestLeave_NotInLobbyIsNoop(t *testing.T) {
	c, bc := newTestCoordinator(t)
	preDirs := len(bc.dirs)

	c.Leave("ghost")

	assert.Len(t, bc.dirs, preDirs)
}

func TestDisconnect_MidGameLastPlayerDestroysLobbySynchronously(t *testing.T) {
	c, _ := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")
	id := soleLobbyID(t, c)
	c.JoinLobby("b", id)
	c.ToggleReady("a")
	c.ToggleReady("b")
	c.ControlTick()
	require.Equal(t, StatusGame, c.lobbies[id].Status)

	c.Disconnect("a")
	c.Disconnect("b")

	// No tick ran between the disconnects and these assertions.
	assert.NotContains(t, c.lobbies, id)
	assert.NotContains(t, c.directory, id)
}

func TestToggleReady(t *testing.T) {
	c, _ := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")
	id := soleLobbyID(t, c)

	c.ToggleReady("a")
	assert.True(t, c.lobbies[id].Players["a"].Ready)
	assert.True(t, c.directory[id].Players["a"].Ready)

	c.ToggleReady("a")
	assert.False(t, c.lobbies[id].Players["a"].Ready)
	assert.False(t, c.directory[id].Players["a"].Ready)
}

func TestToggleReady_NotInLobbyIsNoop(t *testing.T) {
	c, bc := newTestCoordinator(t)
	preStates := len(bc.states)

	c.ToggleReady("ghost")

	assert.Len(t, bc.states, preStates)
}

func TestToggleVisible(t *testing.T) {
	c, bc := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")
	id := soleLobbyID(t, c)
	preDirs := len(bc.dirs)

	c.ToggleVisible("a")

	assert.False(t, c.lobbies[id].Players["a"].Visible)
	// Visibility is private: no directory rebroadcast.
	assert.Len(t, bc.dirs, preDirs)
}

func TestSetArena(t *testing.T) {
	c, bc := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")
	id := soleLobbyID(t, c)
	preDirs := len(bc.dirs)

	c.SetArena("a", "rooftops")
	assert.Equal(t, "rooftops", c.lobbies[id].Arena)
	assert.Equal(t, "rooftops", bc.lastState().Arena)
	assert.Len(t, bc.dirs, preDirs)

	c.SetArena("a", "void")
	assert.Equal(t, "rooftops", c.lobbies[id].Arena)
}

func TestSetSkin(t *testing.T) {
	c, bc := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")
	id := soleLobbyID(t, c)

	c.SetSkin("a", "red-knight")

	assert.Equal(t, "red-knight", c.lobbies[id].Players["a"].Skin)
	assert.Equal(t, "red-knight", bc.lastState().Players["a"].Skin)
}

func startMatch(t *testing.T, c *Coordinator) string {
	t.Helper()
	c.CreateLobby("a", "Alice")
	id := soleLobbyID(t, c)
	c.JoinLobby("b", id)
	c.ToggleReady("a")
	c.ToggleReady("b")
	c.ControlTick()
	require.Equal(t, StatusGame, c.lobbies[id].Status)
	return id
}

func TestSubmitState_WithinTolerance(t *testing.T) {
	c, _ := newTestCoordinator(t)
	id := startMatch(t, c)

	c.SubmitState("a", 80, -60, 90)

	p := c.lobbies[id].Players["a"]
	assert.Equal(t, 80.0, p.X)
	assert.Equal(t, -60.0, p.Y)
	assert.Equal(t, 90, p.Health)
	assert.Equal(t, 80.0, p.lastGoodX)
	assert.Equal(t, -60.0, p.lastGoodY)
}

func TestSubmitState_OutsideToleranceDropped(t *testing.T) {
	c, _ := newTestCoordinator(t)
	id := startMatch(t, c)

	c.SubmitState("a", 101, 0, 90)

	p := c.lobbies[id].Players["a"]
	assert.Zero(t, p.X)
	assert.Zero(t, p.Y)
	assert.Equal(t, 100, p.Health)
}

func TestSubmitState_AnchorAdvances(t *testing.T) {
	c, _ := newTestCoordinator(t)
	id := startMatch(t, c)

	c.SubmitState("a", 100, 0, 100)
	c.SubmitState("a", 200, 0, 100)

	p := c.lobbies[id].Players["a"]
	assert.Equal(t, 200.0, p.X)

	// From (200, 0) a jump to (301, 0) is out of bounds.
	c.SubmitState("a", 301, 0, 100)
	assert.Equal(t, 200.0, p.X)
}

func TestSubmitState_RejectedOutsideMatch(t *testing.T) {
	c, _ := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")
	id := soleLobbyID(t, c)
	require.Equal(t, StatusMenu, c.lobbies[id].Status)

	c.SubmitState("a", 10, 10, 50)

	p := c.lobbies[id].Players["a"]
	assert.Zero(t, p.X)
	assert.Equal(t, 100, p.Health)
}

func TestSubmitState_NoLobbyIsNoop(t *testing.T) {
	c, _ := newTestCoordinator(t)
	c.SubmitState("ghost", 10, 10, 50)
}

func TestSubmitState_ToleranceProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		bc := &recordingBroadcaster{}
		c := NewCoordinator(testGameConfig(), nil, bc, zaptest.NewLogger(t))
		c.StartWarmup(0)

		c.CreateLobby("a", "Alice")
		var id string
		for lid := range c.lobbies {
			id = lid
		}
		c.JoinLobby("b", id)
		c.ToggleReady("a")
		c.ToggleReady("b")
		c.ControlTick()

		x := rapid.Float64Range(-300, 300).Draw(rt, "x")
		y := rapid.Float64Range(-300, 300).Draw(rt, "y")
		c.SubmitState("a", x, y, 75)

		p := c.lobbies[id].Players["a"]
		inBounds := x >= -100 && x <= 100 && y >= -100 && y <= 100
		if inBounds {
			if p.X != x || p.Y != y || p.Health != 75 {
				rt.Fatalf("in-tolerance update not applied: got (%g, %g, %d)", p.X, p.Y, p.Health)
			}
		} else {
			if p.X != 0 || p.Y != 0 || p.Health != 100 {
				rt.Fatalf("out-of-tolerance update applied: got (%g, %g, %d)", p.X, p.Y, p.Health)
			}
		}
	})
}

func TestNoEmptyLobbiesProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		bc := &recordingBroadcaster{}
		c := NewCoordinator(testGameConfig(), nil, bc, zaptest.NewLogger(t))
		c.StartWarmup(0)

		conns := make([]string, 6)
		for i := range conns {
			conns[i] = fmt.Sprintf("c%d", i)
		}

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for s := 0; s < steps; s++ {
			conn := conns[rapid.IntRange(0, len(conns)-1).Draw(rt, "conn")]
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				c.CreateLobby(conn, "P")
			case 1:
				for id := range c.lobbies {
					c.JoinLobby(conn, id)
					break
				}
			case 2:
				c.Leave(conn)
			}

			for id, l := range c.lobbies {
				if len(l.Players) == 0 {
					rt.Fatalf("empty lobby %s survived", id)
				}
				if _, ok := c.directory[id]; !ok {
					rt.Fatalf("lobby %s missing from directory", id)
				}
			}
			if len(c.directory) != len(c.lobbies) {
				rt.Fatalf("directory has %d entries, store has %d", len(c.directory), len(c.lobbies))
			}
			for conn, lid := range c.byConn {
				l, ok := c.lobbies[lid]
				if !ok {
					rt.Fatalf("conn %s points at dead lobby %s", conn, lid)
				}
				if _, ok := l.Players[conn]; !ok {
					rt.Fatalf("conn %s not a member of its lobby %s", conn, lid)
				}
			}
		}
	})
}

func TestDirectorySnapshot_IsACopy(t *testing.T) {
	c, _ := newTestCoordinator(t)

	c.CreateLobby("a", "Alice")
	id := soleLobbyID(t, c)

	snap := c.DirectorySnapshot()
	require.Contains(t, snap, id)
	snap[id].Players["intruder"] = PublicPlayer{Name: "Mallory"}

	assert.NotContains(t, c.directory[id].Players, "intruder")
}

func TestStatus_Warmup(t *testing.T) {
	bc := &recordingBroadcaster{}
	c := NewCoordinator(testGameConfig(), nil, bc, zaptest.NewLogger(t))

	ready, full := c.Status()
	assert.False(t, ready)
	assert.False(t, full)

	c.StartWarmup(0)
	ready, _ = c.Status()
	assert.True(t, ready)
}

func TestStartWarmup_Delayed(t *testing.T) {
	bc := &recordingBroadcaster{}
	c := NewCoordinator(testGameConfig(), nil, bc, zaptest.NewLogger(t))

	c.StartWarmup(20 * time.Millisecond)
	ready, _ := c.Status()
	assert.False(t, ready)

	deadline := time.After(2 * time.Second)
	for {
		if ready, _ = c.Status(); ready {
			break
		}
		select {
		case <-deadline:
			t.Fatal("warm-up never completed")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}
