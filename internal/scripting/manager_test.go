package scripting_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/enclaves/internal/game/dice"
	"github.com/cory-johannsen/enclaves/internal/scripting"
)

// fixedSrc returns val for every Intn call.
type fixedSrc struct{ val int }

func (f fixedSrc) Intn(_ int) int { return f.val }

func newTestManager(t testing.TB, src dice.Source, limit int) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	mgr := scripting.NewManager(dice.NewLoggedRoller(src, logger), logger, limit)
	t.Cleanup(mgr.Close)
	return mgr, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func TestManager_LoadDirectory_KeysByFileName(t *testing.T) {
	mgr, _ := newTestManager(t, fixedSrc{0}, 0)
	dir := writeTempLua(t, "storm.lua", `
		function add(a, b)
			return a + b
		end
	`)
	keys, err := mgr.LoadDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"storm"}, keys)
	ret, err := mgr.CallHook("storm", "add", lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(7), ret)
}

func TestManager_LoadDirectory_SyntaxError(t *testing.T) {
	mgr, _ := newTestManager(t, fixedSrc{0}, 0)
	dir := writeTempLua(t, "broken.lua", `function (`)
	_, err := mgr.LoadDirectory(dir)
	assert.Error(t, err)
}

func TestManager_CallHook_MissingHook_NoOp(t *testing.T) {
	mgr, _ := newTestManager(t, fixedSrc{0}, 0)
	require.NoError(t, mgr.LoadString("quiet", `-- no functions`))
	ret, err := mgr.CallHook("quiet", "nonexistent_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_UnknownScript_LogsInfoReturnsNil(t *testing.T) {
	mgr, logs := newTestManager(t, fixedSrc{0}, 0)
	ret, err := mgr.CallHook("no_such_script", "some_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.InfoLevel).Len())
}

func TestManager_CallHook_RuntimeError_WarnLogNoPanic(t *testing.T) {
	mgr, logs := newTestManager(t, fixedSrc{0}, 0)
	require.NoError(t, mgr.LoadString("bad", `
		function bad_hook()
			error("intentional error")
		end
	`))
	ret, err := mgr.CallHook("bad", "bad_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestManager_CallHook_BudgetRearmedPerCall(t *testing.T) {
	mgr, _ := newTestManager(t, fixedSrc{0}, 500)
	require.NoError(t, mgr.LoadString("loop", `
		function spin(n)
			local x = 0
			for i = 1, n do x = x + i end
			return x
		end
	`))
	for i := 0; i < 20; i++ {
		ret, err := mgr.CallHook("loop", "spin", lua.LNumber(50))
		require.NoError(t, err)
		assert.Equal(t, lua.LNumber(1275), ret, "call %d must get a fresh budget", i)
	}
}

func TestManager_EngineRollUsesInjectedSource(t *testing.T) {
	mgr, logs := newTestManager(t, fixedSrc{2}, 0)
	require.NoError(t, mgr.LoadString("roller", `
		function roll()
			return engine.roll(10, 20)
		end
	`))
	ret, err := mgr.CallHook("roller", "roll")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(12), ret)
	assert.Equal(t, 1, logs.FilterMessage("dice range").Len())
}

func TestManager_Continuous_NumberIsHandled(t *testing.T) {
	mgr, _ := newTestManager(t, fixedSrc{0}, 0)
	require.NoError(t, mgr.LoadString("blight", `
		function on_continuous(e)
			if e.capital then
				return nil
			end
			return -math.floor(e.forces / 4)
		end
	`))
	delta, handled := mgr.Continuous("blight", scripting.EffectInfo{Enclave: 3, Forces: 10})
	assert.True(t, handled)
	assert.Equal(t, -2, delta)

	_, handled = mgr.Continuous("blight", scripting.EffectInfo{Enclave: 3, Forces: 10, Capital: true})
	assert.False(t, handled, "nil return falls back to default rules")

	_, handled = mgr.Continuous("missing", scripting.EffectInfo{})
	assert.False(t, handled)
}

func TestManager_ConcurrentCalls(t *testing.T) {
	mgr, _ := newTestManager(t, fixedSrc{0}, 0)
	require.NoError(t, mgr.LoadString("echo", `function echo(x) return x end`))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ret, err := mgr.CallHook("echo", "echo", lua.LNumber(n))
			assert.NoError(t, err)
			assert.Equal(t, lua.LNumber(n), ret)
		}(i)
	}
	wg.Wait()
}

func TestManager_LoadString_Replaces(t *testing.T) {
	mgr, _ := newTestManager(t, fixedSrc{0}, 0)
	require.NoError(t, mgr.LoadString("k", `function v() return 1 end`))
	require.NoError(t, mgr.LoadString("k", `function v() return 2 end`))
	ret, _ := mgr.CallHook("k", "v")
	assert.Equal(t, lua.LNumber(2), ret)
	assert.True(t, mgr.Has("k"))
}
