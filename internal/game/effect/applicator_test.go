package effect_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/crystalpowers/internal/game/actor"
	"github.com/cory-johannsen/crystalpowers/internal/game/effect"
	"github.com/cory-johannsen/crystalpowers/internal/game/power"
	"github.com/cory-johannsen/crystalpowers/internal/game/random"
	"github.com/cory-johannsen/crystalpowers/internal/game/reaction"
	"github.com/cory-johannsen/crystalpowers/internal/game/tick"
)

func catalog(t testing.TB) *power.Catalog {
	c, err := power.NewCatalog(power.Builtin(), random.NewSeededSource(1))
	require.NoError(t, err)
	return c
}

func get(t testing.TB, c *power.Catalog, id string) *power.Definition {
	d, err := c.Get(id)
	require.NoError(t, err)
	return d
}

func TestApply_Avian(t *testing.T) {
	ap := effect.NewApplicator(zap.NewNop())
	a := actor.NewSim(uuid.New(), "steve")
	ap.Apply(a, get(t, catalog(t), "avian"))

	assert.Equal(t, 16.0, a.MaxHealth())
	assert.Equal(t, 16.0, a.Health())
	assert.True(t, a.AllowFlight())
	assert.Empty(t, a.Effects())
	assert.Equal(t, actor.DefaultWalkSpeed, a.WalkSpeed())
}

func TestApply_FlightSkippedInCreative(t *testing.T) {
	ap := effect.NewApplicator(zap.NewNop())
	a := actor.NewSim(uuid.New(), "steve")
	a.Mode = actor.ModeCreative
	a.CanFly = true
	a.IsFlying = true

	def := get(t, catalog(t), "avian")
	ap.Apply(a, def)
	ap.Remove(a, def)
	assert.True(t, a.AllowFlight(), "creative flight is owned by the host")
	assert.True(t, a.Flying())
}

func TestApply_Merling(t *testing.T) {
	ap := effect.NewApplicator(zap.NewNop())
	a := actor.NewSim(uuid.New(), "alex")
	ap.Apply(a, get(t, catalog(t), "merling"))

	assert.InDelta(t, 0.16, a.WalkSpeed(), 1e-9)
	wb, ok := a.Effect(actor.EffectWaterBreathing)
	require.True(t, ok)
	assert.Equal(t, actor.InfiniteDuration, wb.Duration)
	dg, ok := a.Effect(actor.EffectDolphinsGrace)
	require.True(t, ok)
	assert.Equal(t, 600, dg.Duration)
	assert.Equal(t, 1, dg.Amplifier)
	assert.Equal(t, actor.DefaultMaxHealth, a.MaxHealth())
}

func TestApply_ForceRefreshesTimedGrant(t *testing.T) {
	ap := effect.NewApplicator(zap.NewNop())
	a := actor.NewSim(uuid.New(), "alex")
	def := get(t, catalog(t), "merling")
	ap.Apply(a, def)
	a.Tick(500)
	dg, _ := a.Effect(actor.EffectDolphinsGrace)
	assert.Equal(t, 100, dg.Duration)

	ap.Apply(a, def)
	dg, _ = a.Effect(actor.EffectDolphinsGrace)
	assert.Equal(t, 600, dg.Duration)
	assert.Len(t, a.Effects(), 2)
}

func TestApply_ElytrianGrantsOnce(t *testing.T) {
	ap := effect.NewApplicator(zap.NewNop())
	a := actor.NewSim(uuid.New(), "alex")
	def := get(t, catalog(t), "elytrian")

	ap.Apply(a, def)
	assert.Equal(t, actor.ItemElytra, a.ChestItem())
	ap.Apply(a, def)
	assert.Equal(t, actor.ItemElytra, a.ChestItem())
	assert.Equal(t, 18.0, a.MaxHealth())
}

func TestApply_ElytrianKeepsWornItem(t *testing.T) {
	ap := effect.NewApplicator(zap.NewNop())
	a := actor.NewSim(uuid.New(), "alex")
	a.Chest = "iron_chestplate"
	def := get(t, catalog(t), "elytrian")

	ap.Apply(a, def)
	assert.Equal(t, actor.Item("iron_chestplate"), a.ChestItem())
	ap.Remove(a, def)
	assert.Equal(t, actor.Item("iron_chestplate"), a.ChestItem(), "remove never takes a manually worn item")
}

func TestRemove_LeavesForeignEffects(t *testing.T) {
	ap := effect.NewApplicator(zap.NewNop())
	a := actor.NewSim(uuid.New(), "alex")
	a.AddEffect(actor.Effect{Kind: actor.EffectSpeed, Duration: 100}, false)
	def := get(t, catalog(t), "enderian")

	ap.Apply(a, def)
	assert.True(t, a.HasEffect(actor.EffectNightVision))
	ap.Remove(a, def)
	assert.False(t, a.HasEffect(actor.EffectNightVision))
	assert.True(t, a.HasEffect(actor.EffectSpeed))
}

func TestRemove_OnFreshActorIsNoop(t *testing.T) {
	ap := effect.NewApplicator(zap.NewNop())
	for _, def := range catalog(t).All() {
		a := actor.NewSim(uuid.New(), "fresh")
		ap.Remove(a, def)
		assert.Equal(t, actor.NewSim(a.UID, "fresh"), a, def.ID)
	}
}

func TestReassertFlight(t *testing.T) {
	ap := effect.NewApplicator(zap.NewNop())
	c := catalog(t)
	a := actor.NewSim(uuid.New(), "alex")
	avian := get(t, c, "avian")

	assert.True(t, ap.ReassertFlight(a, avian))
	assert.False(t, ap.ReassertFlight(a, avian), "already allowed")

	a.SetAllowFlight(false)
	a.Mode = actor.ModeSpectator
	assert.False(t, ap.ReassertFlight(a, avian))
	assert.False(t, ap.ReassertFlight(a, get(t, c, "human")))
	assert.False(t, ap.ReassertFlight(a, nil))
}

func TestRemove_ClearsRuleEffects(t *testing.T) {
	ap := effect.NewApplicator(zap.NewNop())
	rules := reaction.NewEngine(nil, tick.NewLoop(time.Millisecond, zap.NewNop()), nil, zap.NewNop())
	c := catalog(t)

	avian := get(t, c, "avian")
	a := actor.NewSim(uuid.New(), "alex")
	ap.Apply(a, avian)
	a.SetFlying(true)
	rules.ToggleFlight(a, avian, true)
	require.True(t, a.HasEffect(actor.EffectSlowFalling))
	ap.Remove(a, avian)
	assert.Empty(t, a.Effects())

	merling := get(t, c, "merling")
	m := actor.NewSim(uuid.New(), "alex")
	ap.Apply(m, merling)
	m.Water = true
	rules.Move(m, merling)
	ap.Remove(m, merling)
	assert.Empty(t, m.Effects())

	phantom := get(t, c, "phantom")
	p := actor.NewSim(uuid.New(), "alex")
	ap.Apply(p, phantom)
	p.Light = 0
	rules.Move(p, phantom)
	require.True(t, p.HasEffect(actor.EffectInvisibility))
	ap.Remove(p, phantom)
	assert.Empty(t, p.Effects())
}

func TestProperty_ApplyIdempotentRemoveInverse(t *testing.T) {
	c := catalog(t)
	defs := c.All()
	ap := effect.NewApplicator(zap.NewNop())
	rules := reaction.NewEngine(nil, tick.NewLoop(time.Millisecond, zap.NewNop()), nil, zap.NewNop())
	modes := []actor.GameMode{actor.ModeSurvival, actor.ModeAdventure}

	rapid.Check(t, func(rt *rapid.T) {
		def := rapid.SampledFrom(defs).Draw(rt, "power")
		times := rapid.IntRange(1, 5).Draw(rt, "applies")
		a := actor.NewSim(uuid.New(), "p")
		a.Mode = rapid.SampledFrom(modes).Draw(rt, "mode")

		ap.Apply(a, def)
		once := *a
		onceEffects := a.Effects()
		for i := 1; i < times; i++ {
			ap.Apply(a, def)
		}
		if a.MaxHealth() != once.MaxHP || a.WalkSpeed() != once.Speed || a.AllowFlight() != once.CanFly || a.ChestItem() != once.Chest {
			rt.Fatalf("repeated apply changed stats")
		}
		if len(a.Effects()) != len(onceEffects) {
			rt.Fatalf("repeated apply stacked effects: %v vs %v", a.Effects(), onceEffects)
		}

		a.Light = rapid.IntRange(0, 15).Draw(rt, "light")
		a.Water = rapid.Bool().Draw(rt, "water")
		a.Sneak = rapid.Bool().Draw(rt, "sneak")
		for i, n := 0, rapid.IntRange(0, 3).Draw(rt, "moves"); i < n; i++ {
			rules.Move(a, def)
		}
		if rapid.Bool().Draw(rt, "fly") {
			a.SetFlying(true)
			rules.ToggleFlight(a, def, true)
		}

		ap.Remove(a, def)
		if a.MaxHealth() != actor.DefaultMaxHealth {
			rt.Fatalf("max health %v after remove", a.MaxHealth())
		}
		if a.WalkSpeed() != actor.DefaultWalkSpeed {
			rt.Fatalf("walk speed %v after remove", a.WalkSpeed())
		}
		if a.AllowFlight() || a.Flying() {
			rt.Fatalf("flight left on after remove")
		}
		if len(a.Effects()) != 0 {
			rt.Fatalf("effects left after remove: %v", a.Effects())
		}
		if !a.ChestItem().Empty() {
			rt.Fatalf("chest item %q left after remove", a.ChestItem())
		}
	})
}
