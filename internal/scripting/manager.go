package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// GlobalScript is the base name of the shared script consulted when a power
// has no script of its own.
const GlobalScript = "global"

// HookDamage is the Lua global called for incoming damage:
// on_damage(cause, amount) -> amount | nil.
const HookDamage = "on_damage"

// PowerInfo is a snapshot of a power definition passed to Lua callbacks.
type PowerInfo struct {
	ID        string
	Name      string
	MaxHealth int
	CanFly    bool
	WeakTo    []string
}

type vm struct {
	mu     sync.Mutex
	L      *lua.LState
	cancel context.CancelFunc
	closed bool
}

func (v *vm) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	if v.cancel != nil {
		v.cancel()
	}
	v.L.Close()
}

// Manager owns one sandboxed LState per power and exposes hook dispatch.
//
// Manager is safe for concurrent use. Each LState is single-threaded and is
// guarded by its own mutex, so hooks of different powers run concurrently.
type Manager struct {
	mu        sync.RWMutex
	states    map[string]*vm
	instLimit int
	logger    *zap.Logger

	// Injected after construction. nil = no-op in engine.* modules.
	LookupPower func(id string) *PowerInfo
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil; instLimit >= 0 (0 uses DefaultInstructionLimit).
// Postcondition: Returns a non-nil Manager with no scripts loaded.
func NewManager(instLimit int, logger *zap.Logger) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		states:    make(map[string]*vm),
		instLimit: instLimit,
		logger:    logger,
	}
}

// LoadDirectory loads every *.lua file in dir into its own VM, keyed by the
// lower-cased file base name. Previously loaded VMs are replaced as a whole;
// on error the old set stays active.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the number of scripts loaded.
func (m *Manager) LoadDirectory(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	loaded := make(map[string]*vm, len(names))
	fail := func(err error) (int, error) {
		for _, v := range loaded {
			v.close()
		}
		return 0, err
	}
	for _, name := range names {
		key := strings.ToLower(strings.TrimSuffix(name, ".lua"))
		if _, dup := loaded[key]; dup {
			return fail(fmt.Errorf("scripting: duplicate script for %q in %q", key, dir))
		}
		v, err := m.compile(key, filepath.Join(dir, name))
		if err != nil {
			return fail(err)
		}
		loaded[key] = v
	}

	m.mu.Lock()
	old := m.states
	m.states = loaded
	m.mu.Unlock()
	for _, v := range old {
		v.close()
	}
	m.logger.Info("power scripts loaded", zap.String("dir", dir), zap.Int("count", len(loaded)))
	return len(loaded), nil
}

// LoadString loads src as the script for key, replacing any existing one.
//
// Precondition: key must be non-empty.
func (m *Manager) LoadString(key, src string) error {
	L, cancel := NewSandboxedState(m.instLimit)
	m.RegisterModules(L)
	if err := L.DoString(src); err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("scripting: loading script for %q: %w", key, err)
	}
	m.swap(strings.ToLower(key), &vm{L: L, cancel: cancel})
	return nil
}

func (m *Manager) compile(key, path string) (*vm, error) {
	L, cancel := NewSandboxedState(m.instLimit)
	m.RegisterModules(L)
	if err := L.DoFile(path); err != nil {
		cancel()
		L.Close()
		return nil, fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
	}
	return &vm{L: L, cancel: cancel}, nil
}

func (m *Manager) swap(key string, v *vm) {
	m.mu.Lock()
	old := m.states[key]
	m.states[key] = v
	m.mu.Unlock()
	if old != nil {
		old.close()
	}
}

// Has reports whether a script is loaded for key.
func (m *Manager) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.states[strings.ToLower(key)]
	return ok
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	old := m.states
	m.states = make(map[string]*vm)
	m.mu.Unlock()
	for _, v := range old {
		v.close()
	}
}

// CallHook calls the named Lua global function in powerID's VM. If the power
// has no VM, the global VM is tried as a fallback. Returns (LNil, nil) if the
// hook is not defined or no VM exists. Lua runtime errors, including an
// exhausted instruction budget, are logged at Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(powerID, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	v, ok := m.states[strings.ToLower(powerID)]
	if !ok {
		v = m.states[GlobalScript]
	}
	m.mu.RUnlock()

	if v == nil {
		m.logger.Debug("scripting: no VM for power",
			zap.String("power", powerID),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return lua.LNil, nil
	}

	fn := v.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	if v.cancel != nil {
		v.cancel()
	}
	v.cancel = Arm(v.L, m.instLimit)

	if err := v.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("power", powerID),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := v.L.Get(-1)
	v.L.Pop(1)
	return ret, nil
}

// OnDamage runs on_damage(cause, amount) for powerID. It returns the number
// the hook returned, or false when the hook is absent, failed, or returned a
// non-number.
func (m *Manager) OnDamage(powerID, cause string, amount float64) (float64, bool) {
	ret, err := m.CallHook(powerID, HookDamage, lua.LString(cause), lua.LNumber(amount))
	if err != nil {
		return 0, false
	}
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, false
	}
	return float64(n), true
}
