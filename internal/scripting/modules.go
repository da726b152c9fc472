package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/enclaves/internal/game/dice"
)

// RegisterModules registers the engine.* Lua table into L:
//
//	engine.roll(lo, hi)  uniform integer in [lo, hi] from the match RNG
//	engine.chance(p)     true with probability p from the match RNG
//	engine.log(msg)      debug log line tagged with the script key
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState, key string) {
	engine := L.NewTable()
	L.SetField(engine, "roll", L.NewFunction(func(L *lua.LState) int {
		lo := L.CheckInt(1)
		hi := L.CheckInt(2)
		L.Push(lua.LNumber(m.roller.Range("lua:"+key, lo, hi)))
		return 1
	}))
	L.SetField(engine, "chance", L.NewFunction(func(L *lua.LState) int {
		p := float64(L.CheckNumber(1))
		L.Push(lua.LBool(dice.Chance(m.roller, p)))
		return 1
	}))
	L.SetField(engine, "log", L.NewFunction(func(L *lua.LState) int {
		m.logger.Debug("scripting: lua log", zap.String("script", key), zap.String("msg", L.CheckString(1)))
		return 0
	}))
	L.SetGlobal("engine", engine)
}
