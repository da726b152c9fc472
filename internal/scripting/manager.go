package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/enclaves/internal/game/dice"
)

// ContinuousHook is the Lua global called once per turn for every active
// effect whose profile names a script.
const ContinuousHook = "on_continuous"

// EffectInfo is a snapshot of one active effect and its host enclave passed to Lua.
type EffectInfo struct {
	Enclave   int
	Owner     string
	Forces    int
	Capital   bool
	Profile   string
	Phase     string
	Remaining int
	Turn      int
}

// Manager owns one sandboxed LState per script and exposes hook dispatch.
//
// Manager is safe for concurrent CallHook after all Load calls complete.
// Each LState is single-threaded; the per-script mutex serialises calls.
type Manager struct {
	mu        sync.RWMutex
	states    map[string]*scriptState
	roller    *dice.Roller
	logger    *zap.Logger
	instLimit int
}

type scriptState struct {
	mu     sync.Mutex
	L      *lua.LState
	budget *Budget
}

// NewManager creates a Manager.
//
// Precondition: roller must be non-nil. instLimit 0 uses DefaultInstructionLimit.
// Postcondition: Returns a non-nil Manager with no scripts loaded.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		states:    make(map[string]*scriptState),
		roller:    roller,
		logger:    logger,
		instLimit: instLimit,
	}
}

// LoadDirectory loads every *.lua file in dir into its own VM, keyed by the
// file name without extension, in lexicographic order.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the loaded keys, or an error on the first failure.
func (m *Manager) LoadDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	keys := make([]string, 0, len(files))
	for _, name := range files {
		key := strings.TrimSuffix(name, ".lua")
		if err := m.LoadFile(key, filepath.Join(dir, name)); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// LoadFile creates a sandboxed VM for key, registers the engine.* module,
// and executes the script at path. A previous VM under key is closed.
//
// Precondition: key must be non-empty.
// Postcondition: key's VM is registered; returns error on Lua load failure.
func (m *Manager) LoadFile(key, path string) error {
	L, budget := NewSandboxedState(m.instLimit)
	m.RegisterModules(L, key)
	if err := L.DoFile(path); err != nil {
		budget.Release()
		L.Close()
		return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
	}
	m.install(key, L, budget)
	return nil
}

// LoadString is LoadFile for inline source.
func (m *Manager) LoadString(key, src string) error {
	L, budget := NewSandboxedState(m.instLimit)
	m.RegisterModules(L, key)
	if err := L.DoString(src); err != nil {
		budget.Release()
		L.Close()
		return fmt.Errorf("scripting: loading source for %q: %w", key, err)
	}
	m.install(key, L, budget)
	return nil
}

func (m *Manager) install(key string, L *lua.LState, budget *Budget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.states[key]; ok {
		old.mu.Lock()
		old.budget.Release()
		old.L.Close()
		old.mu.Unlock()
	}
	m.states[key] = &scriptState{L: L, budget: budget}
}

// Has reports whether a VM is loaded under key.
func (m *Manager) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.states[key]
	return ok
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, st := range m.states {
		st.mu.Lock()
		st.budget.Release()
		st.L.Close()
		st.mu.Unlock()
		delete(m.states, key)
	}
}

// CallHook calls the named Lua global function in key's VM with a fresh
// instruction budget. Returns (LNil, nil) if the hook is not defined or no
// VM exists. Lua runtime errors, including an exhausted budget, are logged at
// Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(key, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	st, ok := m.states[key]
	m.mu.RUnlock()

	if !ok {
		m.logger.Info("scripting: no VM for script",
			zap.String("script", key),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	L := st.L

	fn := L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	st.budget.Release()
	st.budget = rearm(L, m.instLimit)

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("script", key),
			zap.String("hook", hook),
			zap.Bool("budget_exhausted", st.budget.Exhausted()),
			zap.Error(err),
		)
		return lua.LNil, nil
	}
	m.logger.Debug("scripting: hook returned",
		zap.String("script", key),
		zap.String("hook", hook),
		zap.Int("opcodes", st.budget.Spent()),
	)

	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// Continuous runs key's on_continuous hook for one active effect.
// A numeric return is a forces delta and handled is true; nil or any other
// return leaves the effect to its default continuous rules.
func (m *Manager) Continuous(key string, info EffectInfo) (delta int, handled bool) {
	m.mu.RLock()
	st, ok := m.states[key]
	m.mu.RUnlock()
	if !ok {
		return 0, false
	}

	st.mu.Lock()
	tbl := st.L.NewTable()
	tbl.RawSetString("enclave", lua.LNumber(info.Enclave))
	tbl.RawSetString("owner", lua.LString(info.Owner))
	tbl.RawSetString("forces", lua.LNumber(info.Forces))
	tbl.RawSetString("capital", lua.LBool(info.Capital))
	tbl.RawSetString("profile", lua.LString(info.Profile))
	tbl.RawSetString("phase", lua.LString(info.Phase))
	tbl.RawSetString("remaining", lua.LNumber(info.Remaining))
	tbl.RawSetString("turn", lua.LNumber(info.Turn))
	st.mu.Unlock()

	ret, _ := m.CallHook(key, ContinuousHook, tbl)
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, false
	}
	return int(n), true
}
