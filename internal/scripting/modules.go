package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RegisterModules registers all engine.* Lua tables into L.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine.log and engine.power are defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.logModule(L))
	L.SetField(engine, "power", m.powerModule(L))
	L.SetGlobal("engine", engine)
}

func (m *Manager) logModule(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	levels := map[string]func(string, ...zap.Field){
		"debug": m.logger.Debug,
		"info":  m.logger.Info,
		"warn":  m.logger.Warn,
		"error": m.logger.Error,
	}
	for name, fn := range levels {
		fn := fn
		L.SetField(t, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	return t
}

// powerModule exposes engine.power.info(id) -> table | nil.
func (m *Manager) powerModule(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "info", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		if m.LookupPower == nil {
			L.Push(lua.LNil)
			return 1
		}
		info := m.LookupPower(id)
		if info == nil {
			L.Push(lua.LNil)
			return 1
		}
		out := L.NewTable()
		L.SetField(out, "id", lua.LString(info.ID))
		L.SetField(out, "name", lua.LString(info.Name))
		L.SetField(out, "max_health", lua.LNumber(info.MaxHealth))
		L.SetField(out, "can_fly", lua.LBool(info.CanFly))
		weak := L.NewTable()
		for _, w := range info.WeakTo {
			weak.Append(lua.LString(w))
		}
		L.SetField(out, "weak_to", weak)
		L.Push(out)
		return 1
	}))
	return t
}
