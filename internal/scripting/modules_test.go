package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/crystalpowers/internal/scripting"
)

func TestEngineLog_AllLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	mgr := scripting.NewManager(0, zap.New(core))
	require.NoError(t, mgr.LoadString("avian", `
		function do_all_logs()
			engine.log.debug("d")
			engine.log.info("i")
			engine.log.warn("w")
			engine.log.error("e")
		end
	`))
	_, err := mgr.CallHook("avian", "do_all_logs")
	require.NoError(t, err)

	for msg, level := range map[string]zapcore.Level{
		"d": zapcore.DebugLevel,
		"i": zapcore.InfoLevel,
		"w": zapcore.WarnLevel,
		"e": zapcore.ErrorLevel,
	} {
		entries := logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		assert.Equal(t, level, entries[0].Level, msg)
	}
}

func TestEnginePower_InfoWithoutLookup(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadString("avian", `function probe() return engine.power.info("avian") end`))
	ret, err := mgr.CallHook("avian", "probe")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestEnginePower_Info(t *testing.T) {
	mgr, _ := newTestManager(t)
	mgr.LookupPower = func(id string) *scripting.PowerInfo {
		if id != "arachnid" {
			return nil
		}
		return &scripting.PowerInfo{ID: "arachnid", Name: "Arachnid", MaxHealth: 16, WeakTo: []string{"iron_sword"}}
	}
	require.NoError(t, mgr.LoadString("global", `
		function describe(id)
			local p = engine.power.info(id)
			if p == nil then
				return "unknown"
			end
			return p.name .. ":" .. p.max_health .. ":" .. tostring(p.can_fly) .. ":" .. p.weak_to[1]
		end
	`))

	ret, err := mgr.CallHook("arachnid", "describe", lua.LString("arachnid"))
	require.NoError(t, err)
	assert.Equal(t, lua.LString("Arachnid:16:false:iron_sword"), ret)

	ret, err = mgr.CallHook("arachnid", "describe", lua.LString("nope"))
	require.NoError(t, err)
	assert.Equal(t, lua.LString("unknown"), ret)
}
