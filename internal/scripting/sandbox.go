// Package scripting provides a sandboxed GopherLua execution environment
// for hazard profile hook scripts. It has no dependency on game domain
// packages; hooks see plain tables and return plain numbers.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the opcode budget of one hook call when no
// override is configured.
const DefaultInstructionLimit = 100_000

var safeLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// blockedGlobals reach the filesystem, compile arbitrary chunks or touch the GC.
var blockedGlobals = []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require", "module"}

// Hooks must draw from engine.roll so that replays stay identical.
var blockedFields = map[string][]string{
	lua.MathLibName:   {"random", "randomseed"},
	lua.StringLibName: {"dump"},
}

// Budget is the opcode allowance of one hook call. GopherLua consults the
// state's context once per opcode, and each consultation spends one unit;
// the context is cancelled when the allowance runs out.
type Budget struct {
	context.Context
	cancel context.CancelFunc
	limit  int64
	left   atomic.Int64
}

func newBudget(limit int) *Budget {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Budget{Context: ctx, cancel: cancel, limit: int64(limit)}
	b.left.Store(int64(limit))
	return b
}

// Done spends one opcode.
func (b *Budget) Done() <-chan struct{} {
	if b.left.Add(-1) <= 0 {
		b.cancel()
	}
	return b.Context.Done()
}

// Spent returns the number of opcodes consumed so far, capped at the limit.
func (b *Budget) Spent() int {
	spent := b.limit - b.left.Load()
	if spent > b.limit {
		spent = b.limit
	}
	return int(spent)
}

// Exhausted reports whether the allowance ran out.
func (b *Budget) Exhausted() bool { return b.left.Load() <= 0 }

// Release cancels the budget's context.
func (b *Budget) Release() { b.cancel() }

// NewSandboxedState creates an LState with only the base, table, string and
// math libraries, the blocked globals and fields removed, and a fresh opcode
// budget of instLimit (0 uses DefaultInstructionLimit).
//
// Postcondition: The caller owns the LState and must Close it, and Release the budget.
func NewSandboxedState(instLimit int) (*lua.LState, *Budget) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range safeLibs {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	for lib, fields := range blockedFields {
		tbl, ok := L.GetGlobal(lib).(*lua.LTable)
		if !ok {
			continue
		}
		for _, f := range fields {
			tbl.RawSetString(f, lua.LNil)
		}
	}
	return L, rearm(L, instLimit)
}

// rearm gives L a fresh budget.
func rearm(L *lua.LState, instLimit int) *Budget {
	b := newBudget(instLimit)
	L.SetContext(b)
	return b
}
