package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/enclaves/internal/scripting"
)

func TestNewSandboxedState_UnsafeLibsNil(t *testing.T) {
	L, budget := scripting.NewSandboxedState(0)
	require.NotNil(t, L)
	defer L.Close()
	defer budget.Release()
	for _, name := range []string{"os", "io", "debug"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "expected %s to be nil", name)
	}
}

func TestNewSandboxedState_DangerousGlobalsNil(t *testing.T) {
	L, budget := scripting.NewSandboxedState(0)
	defer L.Close()
	defer budget.Release()
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require"} {
		assert.Equal(t, lua.LNil, L.GetGlobal(name), "expected %s to be nil", name)
	}
}

func TestNewSandboxedState_NoUnseededRandomness(t *testing.T) {
	L, budget := scripting.NewSandboxedState(0)
	defer L.Close()
	defer budget.Release()
	err := L.DoString(`
		assert(math.random == nil, "math.random must be removed")
		assert(math.randomseed == nil, "math.randomseed must be removed")
		assert(string.dump == nil, "string.dump must be removed")
	`)
	assert.NoError(t, err)
}

func TestNewSandboxedState_SafeLibsAvailable(t *testing.T) {
	L, budget := scripting.NewSandboxedState(0)
	defer L.Close()
	defer budget.Release()
	err := L.DoString(`
		local x = math.floor(4.7)
		assert(x == 4, "math.floor failed")
		local s = string.upper("storm")
		assert(s == "STORM", "string.upper failed")
	`)
	assert.NoError(t, err)
}

func TestNewSandboxedState_InstructionLimitExceeded(t *testing.T) {
	L, budget := scripting.NewSandboxedState(10)
	defer L.Close()
	defer budget.Release()
	err := L.DoString(`while true do end`)
	assert.Error(t, err, "expected instruction limit error")
	assert.True(t, budget.Exhausted())
	assert.Equal(t, 10, budget.Spent())
}

func TestBudget_CountsOpcodes(t *testing.T) {
	L, budget := scripting.NewSandboxedState(0)
	defer L.Close()
	defer budget.Release()
	require.NoError(t, L.DoString(`local x = 1 + 2`))
	assert.Greater(t, budget.Spent(), 0)
	assert.Less(t, budget.Spent(), scripting.DefaultInstructionLimit)
	assert.False(t, budget.Exhausted())
}

func TestPropertyNewSandboxedState_ArithmeticWithinLimit(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.IntRange(-1000, 1000).Draw(rt, "a")
		b := rapid.IntRange(-1000, 1000).Draw(rt, "b")
		L, budget := scripting.NewSandboxedState(0)
		defer L.Close()
		defer budget.Release()
		L.SetGlobal("a", lua.LNumber(a))
		L.SetGlobal("b", lua.LNumber(b))
		if err := L.DoString(`result = a + b`); err != nil {
			rt.Fatalf("DoString: %v", err)
		}
		if got := L.GetGlobal("result"); got != lua.LNumber(a+b) {
			rt.Fatalf("expected %d, got %v", a+b, got)
		}
	})
}
