package game

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zeusnet/internal/core/ecs"
	"github.com/zeusync/zeusnet/internal/core/ecs/components"
	"github.com/zeusync/zeusnet/internal/core/session"
)

var _ session.Handler = (*Manager)(nil)

func writeGame(t *testing.T, root, name, file, content string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644))
}

func newTestManager(t *testing.T, lobby Lobby, minPlayers, maxPlayers, maxInstances int) (*Manager, *clock.Mock) {
	t.Helper()
	root := t.TempDir()
	writeGame(t, root, "Arena", ConfigJSON, arenaConfig(lobby, minPlayers, maxPlayers, maxInstances))

	clk := clock.NewMock()
	opts := testOptions(clk)
	opts.Flusher = newFlusher()
	m, err := NewManager(root, opts)
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)
	return m, clk
}

func TestNewManager_LoadsGames(t *testing.T) {
	root := t.TempDir()
	writeGame(t, root, "Arena", ConfigJSON, arenaConfig(LobbyOpenWorld, 1, 2, 1))
	writeGame(t, root, "Racing", ConfigYAML, yamlArena)
	writeGame(t, root, "Broken", ConfigJSON, `{"title": `)
	require.NoError(t, os.Mkdir(filepath.Join(root, "Empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), []byte("not a game"), 0o644))

	m, err := NewManager(root, testOptions(clock.NewMock()))
	require.NoError(t, err)
	defer m.Shutdown()

	assert.Equal(t, []string{"Arena", "Racing"}, m.ListGames())

	_, err = NewManager("", Options{})
	assert.ErrorIs(t, err, ErrNoGameDir)
	_, err = NewManager(filepath.Join(root, "missing"), Options{})
	assert.ErrorIs(t, err, ErrNoGameDir)
}

func TestManager_AddUpdateRemoveGame(t *testing.T) {
	m, _ := newTestManager(t, LobbyOpenWorld, 1, 2, 1)

	assert.ErrorIs(t, m.AddGame("Arena"), ErrGameExists)
	assert.Error(t, m.AddGame("Unknown"))

	writeGame(t, m.dir, "Arena", ConfigJSON, arenaConfig(LobbyMatchmaking, 2, 4, 2))
	require.NoError(t, m.UpdateGame("Arena"))
	assert.ErrorIs(t, m.UpdateGame("Unknown"), ErrGameNotFound)

	c := session.NewClient(addr(4001), clock.NewMock())
	require.NoError(t, m.Join("Arena", c))
	inst, ok := m.InstanceOf(c)
	require.True(t, ok)
	assert.Equal(t, 4, inst.Config().MaxPlayers)
	// matchmaking waits for a second player
	assert.False(t, inst.Running())

	require.NoError(t, m.RemoveGame("Arena"))
	assert.ErrorIs(t, m.RemoveGame("Arena"), ErrGameNotFound)
	assert.Empty(t, m.ListGames())
	assert.ErrorIs(t, m.Join("Arena", session.NewClient(addr(4002), clock.NewMock())), ErrGameNotFound)

	// the running instance outlives its definition
	m.Leave("Arena", c)
	assert.Empty(t, m.Instances("Arena"))
}

func TestManager_UpdateGameKeepsRunningTemplates(t *testing.T) {
	m, clk := newTestManager(t, LobbyOpenWorld, 1, 2, 1)

	a := session.NewClient(addr(4001), clk)
	require.NoError(t, m.Join("Arena", a))
	inst, ok := m.InstanceOf(a)
	require.True(t, ok)

	reloaded := strings.Replace(arenaConfig(LobbyOpenWorld, 1, 2, 1),
		`"Health": {"currentHealth": 10, "maxHealth": 10}`,
		`"Health": {"currentHealth": 99, "maxHealth": 99}`, 1)
	writeGame(t, m.dir, "Arena", ConfigJSON, reloaded)
	require.NoError(t, m.UpdateGame("Arena"))

	// the new definition is cached by a fresh instance elsewhere
	fresh, err := NewGame(m.store["Arena"], m.opts)
	require.NoError(t, err)
	t.Cleanup(fresh.Close)

	b := session.NewClient(addr(4002), clk)
	require.NoError(t, m.Join("Arena", b))
	require.True(t, inst.HasPlayer(b))

	inst.mu.Lock()
	defer inst.mu.Unlock()
	health, ok := ecs.Get[*components.Health](inst.scenes["Level"].world, ecs.Entity(b.Entity()))
	require.True(t, ok)
	assert.Equal(t, int32(10), health.Current)
}

// Arena with two seats and one instance: the third client waits and is
// not promoted while the instance holds no more than MinPlayers.
func TestManager_ArenaPlacement(t *testing.T) {
	m, clk := newTestManager(t, LobbyOpenWorld, 1, 2, 1)

	a := session.NewClient(addr(4001), clk)
	b := session.NewClient(addr(4002), clk)
	c := session.NewClient(addr(4003), clk)

	require.NoError(t, m.Join("Arena", a))
	instances := m.Instances("Arena")
	require.Len(t, instances, 1)
	inst := instances[0]
	assert.True(t, inst.Running())

	require.NoError(t, m.Join("Arena", b))
	require.NoError(t, m.Join("Arena", c))

	assert.Len(t, m.Instances("Arena"), 1)
	assert.Equal(t, 2, inst.PlayerCount())
	assert.True(t, inst.HasPlayer(a))
	assert.True(t, inst.HasPlayer(b))
	assert.Equal(t, 0, m.WaitingIndex("Arena", c))
	assert.Equal(t, -1, m.WaitingIndex("Arena", a))
	assert.Empty(t, c.Game())

	// joining again while waiting keeps the position
	require.NoError(t, m.Join("Arena", c))
	assert.Equal(t, 0, m.WaitingIndex("Arena", c))
	assert.ErrorIs(t, m.Join("Arena", a), ErrAlreadyPlaying)

	m.OnDisconnect(a)
	assert.Equal(t, 1, inst.PlayerCount())
	assert.False(t, inst.HasPlayer(c))
	assert.Equal(t, 0, m.WaitingIndex("Arena", c))

	// the emptied instance is replaced by one seating the waiting client
	m.OnDisconnect(b)
	assert.False(t, inst.Running())
	instances = m.Instances("Arena")
	require.Len(t, instances, 1)
	assert.NotSame(t, inst, instances[0])
	assert.True(t, instances[0].HasPlayer(c))
	assert.Equal(t, -1, m.WaitingIndex("Arena", c))

	m.OnDisconnect(c)
	assert.Empty(t, m.Instances("Arena"))
}

func TestManager_SeatsWaitingInOrderWhenInstanceEmpties(t *testing.T) {
	m, clk := newTestManager(t, LobbyOpenWorld, 1, 2, 1)

	clients := make([]*session.Client, 5)
	for i := range clients {
		clients[i] = session.NewClient(addr(uint16(4001+i)), clk)
		require.NoError(t, m.Join("Arena", clients[i]))
	}
	assert.Equal(t, 3, m.WaitingLen("Arena"))
	clients[2].Close()

	m.OnDisconnect(clients[0])
	m.OnDisconnect(clients[1])

	instances := m.Instances("Arena")
	require.Len(t, instances, 1)
	assert.True(t, instances[0].Running())
	assert.True(t, instances[0].HasPlayer(clients[3]))
	assert.True(t, instances[0].HasPlayer(clients[4]))
	assert.Equal(t, 0, m.WaitingLen("Arena"))

	// the instance is full again, so a newcomer queues
	late := session.NewClient(addr(4100), clk)
	require.NoError(t, m.Join("Arena", late))
	assert.Equal(t, 0, m.WaitingIndex("Arena", late))
}

func TestManager_PromotesWaitingClient(t *testing.T) {
	m, clk := newTestManager(t, LobbyOpenWorld, 1, 3, 1)

	clients := make([]*session.Client, 4)
	for i := range clients {
		clients[i] = session.NewClient(addr(uint16(4001+i)), clk)
		require.NoError(t, m.Join("Arena", clients[i]))
	}
	inst := m.Instances("Arena")[0]
	waiting := clients[3]
	assert.Equal(t, 0, m.WaitingIndex("Arena", waiting))

	m.OnDisconnect(clients[0])

	assert.Equal(t, -1, m.WaitingIndex("Arena", waiting))
	assert.True(t, inst.HasPlayer(waiting))
	assert.Equal(t, "Arena", waiting.Game())
	got, ok := m.InstanceOf(waiting)
	require.True(t, ok)
	assert.Same(t, inst, got)
}

func TestManager_DropsDisconnectedWaitingHead(t *testing.T) {
	m, clk := newTestManager(t, LobbyOpenWorld, 1, 3, 1)

	clients := make([]*session.Client, 4)
	for i := range clients {
		clients[i] = session.NewClient(addr(uint16(4001+i)), clk)
		require.NoError(t, m.Join("Arena", clients[i]))
	}
	inst := m.Instances("Arena")[0]
	clients[3].Close()

	require.True(t, inst.RemovePlayer(clients[0]))
	m.OnDisconnect(clients[0])

	assert.Equal(t, -1, m.WaitingIndex("Arena", clients[3]))
	assert.False(t, inst.HasPlayer(clients[3]))
	assert.Equal(t, 2, inst.PlayerCount())
}

func TestManager_MatchmakingStartsAtMinPlayers(t *testing.T) {
	m, clk := newTestManager(t, LobbyMatchmaking, 2, 4, 1)

	a := session.NewClient(addr(4001), clk)
	require.NoError(t, m.Join("Arena", a))
	inst := m.Instances("Arena")[0]
	assert.False(t, inst.Running())

	require.NoError(t, m.Join("Arena", session.NewClient(addr(4002), clk)))
	assert.True(t, inst.Running())
}

func TestManager_OpensNewInstances(t *testing.T) {
	m, clk := newTestManager(t, LobbyOpenWorld, 0, 1, 2)

	a := session.NewClient(addr(4001), clk)
	b := session.NewClient(addr(4002), clk)
	c := session.NewClient(addr(4003), clk)
	require.NoError(t, m.Join("Arena", a))
	require.NoError(t, m.Join("Arena", b))
	require.NoError(t, m.Join("Arena", c))

	instances := m.Instances("Arena")
	require.Len(t, instances, 2)
	assert.True(t, instances[0].HasPlayer(a))
	assert.True(t, instances[1].HasPlayer(b))
	assert.Equal(t, 0, m.WaitingIndex("Arena", c))
	assert.NotEqual(t, instances[0].ID(), instances[1].ID())

	m.OnDisconnect(a)
	instances = m.Instances("Arena")
	require.Len(t, instances, 2)
	assert.True(t, instances[0].HasPlayer(b))
	assert.True(t, instances[1].HasPlayer(c))
	assert.Equal(t, -1, m.WaitingIndex("Arena", c))
}

func TestManager_OnConnect(t *testing.T) {
	m, clk := newTestManager(t, LobbyOpenWorld, 1, 2, 1)

	c := session.NewClient(addr(4001), clk)
	require.NoError(t, m.OnConnect(c, "Arena", "alice"))
	assert.Equal(t, "Arena", c.Game())
	assert.ErrorIs(t, m.OnConnect(session.NewClient(addr(4002), clk), "Nope", ""), ErrGameNotFound)
}

func TestManager_Shutdown(t *testing.T) {
	m, clk := newTestManager(t, LobbyOpenWorld, 0, 1, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Join("Arena", session.NewClient(addr(uint16(4001+i)), clk)))
	}
	instances := m.Instances("Arena")
	require.Len(t, instances, 3)

	m.Shutdown()
	for _, inst := range instances {
		assert.False(t, inst.Running())
	}
	assert.Empty(t, m.Instances("Arena"))
}
