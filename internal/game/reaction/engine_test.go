package reaction_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/crystalpowers/internal/game/actor"
	"github.com/cory-johannsen/crystalpowers/internal/game/power"
	"github.com/cory-johannsen/crystalpowers/internal/game/random"
	"github.com/cory-johannsen/crystalpowers/internal/game/reaction"
	"github.com/cory-johannsen/crystalpowers/internal/game/tick"
)

type mapResolver map[uuid.UUID]*power.Definition

func (m mapResolver) Resolve(id uuid.UUID) (*power.Definition, bool) {
	d, ok := m[id]
	return d, ok
}

type hookFunc func(powerID, cause string, amount float64) (float64, bool)

func (f hookFunc) OnDamage(powerID, cause string, amount float64) (float64, bool) {
	return f(powerID, cause, amount)
}

type fixture struct {
	engine   *reaction.Engine
	ticks    *tick.Loop
	resolver mapResolver
	catalog  *power.Catalog
}

func newFixture(t testing.TB, hook reaction.DamageHook) *fixture {
	c, err := power.NewCatalog(power.Builtin(), random.NewSeededSource(7))
	require.NoError(t, err)
	f := &fixture{
		ticks:    tick.NewLoop(time.Millisecond, zap.NewNop()),
		resolver: mapResolver{},
		catalog:  c,
	}
	f.engine = reaction.NewEngine(f.resolver, f.ticks, hook, zap.NewNop())
	return f
}

func (f *fixture) def(t testing.TB, id string) *power.Definition {
	d, err := f.catalog.Get(id)
	require.NoError(t, err)
	return d
}

func (f *fixture) actor(t testing.TB, powerID string) (*actor.Sim, *power.Definition) {
	a := actor.NewSim(uuid.New(), "p")
	d := f.def(t, powerID)
	f.resolver[a.ID()] = d
	return a, d
}

func TestDamage_Rules(t *testing.T) {
	swordsman := actor.NewSim(uuid.New(), "attacker")
	swordsman.MainHand = "iron_sword"
	archer := actor.NewSim(uuid.New(), "archer")
	archer.MainHand = "bow"

	tests := []struct {
		name      string
		power     string
		cause     actor.DamageCause
		inWater   bool
		attacker  actor.Actor
		want      float64
		cancelled bool
	}{
		{name: "avian fall", power: "avian", cause: actor.CauseFall, cancelled: true},
		{name: "phantom fall", power: "phantom", cause: actor.CauseFall, cancelled: true},
		{name: "human fall", power: "human", cause: actor.CauseFall, want: 4},
		{name: "arachnid poison", power: "arachnid", cause: actor.CausePoison, cancelled: true},
		{name: "arachnid wither", power: "arachnid", cause: actor.CauseWither, cancelled: true},
		{name: "merling poison", power: "merling", cause: actor.CausePoison, want: 4},
		{name: "enderian drowning", power: "enderian", cause: actor.CauseDrowning, want: 8},
		{name: "enderian hit in water", power: "enderian", cause: actor.CauseGeneric, inWater: true, want: 8},
		{name: "enderian hit on land", power: "enderian", cause: actor.CauseGeneric, want: 4},
		{name: "arachnid vs iron sword", power: "arachnid", cause: actor.CauseAttack, attacker: swordsman, want: 6},
		{name: "arachnid vs bow", power: "arachnid", cause: actor.CauseAttack, attacker: archer, want: 4},
		{name: "human vs iron sword", power: "human", cause: actor.CauseAttack, attacker: swordsman, want: 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			a, d := f.actor(t, tc.power)
			a.Water = tc.inWater
			ev := &actor.DamageEvent{Cause: tc.cause, Amount: 4, Attacker: tc.attacker}
			f.engine.Damage(a, d, ev)
			assert.Equal(t, tc.cancelled, ev.Cancelled)
			if !tc.cancelled {
				assert.InDelta(t, tc.want, ev.Amount, 1e-9)
			}
		})
	}
}

func TestDamage_AlreadyCancelledUntouched(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "enderian")
	ev := &actor.DamageEvent{Cause: actor.CauseDrowning, Amount: 3, Cancelled: true}
	f.engine.Damage(a, d, ev)
	assert.Equal(t, 3.0, ev.Amount)
}

func TestDamage_MultiplierFromTable(t *testing.T) {
	table, err := power.ParseTable([]byte(`
version: 1
powers:
  - id: glass
    name: Glass
    traits:
      damage_multiplier: 2.5
`))
	require.NoError(t, err)
	f := newFixture(t, nil)
	a := actor.NewSim(uuid.New(), "p")
	ev := &actor.DamageEvent{Cause: actor.CauseGeneric, Amount: 2}
	f.engine.Damage(a, table.Definitions[0], ev)
	assert.InDelta(t, 5.0, ev.Amount, 1e-9)
}

func TestDamage_HookRunsLast(t *testing.T) {
	var seen []float64
	hook := hookFunc(func(powerID, cause string, amount float64) (float64, bool) {
		seen = append(seen, amount)
		if powerID == "enderian" {
			return amount + 1, true
		}
		return 0, false
	})
	f := newFixture(t, hook)

	a, d := f.actor(t, "enderian")
	ev := &actor.DamageEvent{Cause: actor.CauseDrowning, Amount: 2}
	f.engine.Damage(a, d, ev)
	assert.Equal(t, 5.0, ev.Amount)

	h, hd := f.actor(t, "human")
	ev = &actor.DamageEvent{Cause: actor.CauseGeneric, Amount: 2}
	f.engine.Damage(h, hd, ev)
	assert.Equal(t, 2.0, ev.Amount)

	av, ad := f.actor(t, "avian")
	f.engine.Damage(av, ad, &actor.DamageEvent{Cause: actor.CauseFall, Amount: 9})
	assert.Equal(t, []float64{4, 2}, seen, "hook is skipped for cancelled damage")
}

func TestDamage_HookNegativeIgnored(t *testing.T) {
	hook := hookFunc(func(string, string, float64) (float64, bool) { return -1, true })
	f := newFixture(t, hook)
	a, d := f.actor(t, "human")
	ev := &actor.DamageEvent{Cause: actor.CauseGeneric, Amount: 2}
	f.engine.Damage(a, d, ev)
	assert.Equal(t, 2.0, ev.Amount)
}

func TestMove_LandSpeed(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "merling")
	f.engine.Move(a, d)
	assert.InDelta(t, 0.16, a.WalkSpeed(), 1e-9)

	a.Speed = 0.165
	f.engine.Move(a, d)
	assert.Equal(t, 0.165, a.WalkSpeed(), "within tolerance")

	a.Speed = actor.DefaultWalkSpeed
	a.CanFly, a.IsFlying = true, true
	f.engine.Move(a, d)
	assert.Equal(t, actor.DefaultWalkSpeed, a.WalkSpeed(), "not while flying")
}

func TestMove_AquaticBoost(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "merling")
	f.engine.Move(a, d)
	assert.False(t, a.HasEffect(actor.EffectDolphinsGrace))

	a.Water = true
	f.engine.Move(a, d)
	dg, ok := a.Effect(actor.EffectDolphinsGrace)
	require.True(t, ok)
	assert.Equal(t, actor.Effect{Kind: actor.EffectDolphinsGrace, Duration: reaction.AquaticBoostTicks, Amplifier: 1}, dg)
	nv, ok := a.Effect(actor.EffectNightVision)
	require.True(t, ok)
	assert.Equal(t, reaction.AquaticBoostTicks, nv.Duration)
	assert.Zero(t, nv.Amplifier)
}

func TestMove_WallClimb(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "arachnid")
	a.Vel = actor.Vector{X: 0.1, Y: -0.5}
	a.Sneak = true
	f.engine.Move(a, d)
	assert.Equal(t, actor.Vector{X: 0.1, Y: -0.5}, a.Velocity(), "no wall")

	a.Wall = true
	f.engine.Move(a, d)
	assert.Equal(t, actor.Vector{X: 0.1, Y: reaction.WallClimbVelocity}, a.Velocity())
}

func TestMove_PhantomDarkness(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "phantom")
	a.Day = false
	a.Light = 4
	f.engine.Move(a, d)
	inv, ok := a.Effect(actor.EffectInvisibility)
	require.True(t, ok)
	assert.Equal(t, reaction.DarknessInvisTicks, inv.Duration)

	a.Tick(30)
	f.engine.Move(a, d)
	inv, _ = a.Effect(actor.EffectInvisibility)
	assert.Equal(t, reaction.DarknessInvisTicks-30, inv.Duration, "existing invisibility is kept")

	a.Light = 5
	f.engine.Move(a, d)
	assert.False(t, a.HasEffect(actor.EffectInvisibility))
}

func TestMove_PhantomPulseWhileCrouched(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "phantom")
	a.Day = false
	a.Sneak = true
	f.engine.Move(a, d)
	inv, ok := a.Effect(actor.EffectInvisibility)
	require.True(t, ok)
	assert.Equal(t, reaction.PhasePulseTicks, inv.Duration)
}

func TestMove_PhantomBurnsInDaylight(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "phantom")
	f.engine.Move(a, d)
	assert.Equal(t, reaction.BurnTicks, a.FireTicks)

	b, _ := f.actor(t, "phantom")
	b.Sky = reaction.SunlightSkyThreshold
	f.engine.Move(b, d)
	assert.Zero(t, b.FireTicks, "sheltered")

	c, _ := f.actor(t, "phantom")
	c.Day = false
	f.engine.Move(c, d)
	assert.Zero(t, c.FireTicks, "night")
}

func TestMove_EnderianWaterContact(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "enderian")
	f.engine.Move(a, d)
	assert.Equal(t, actor.DefaultMaxHealth, a.Health())

	a.Rain = true
	f.engine.Move(a, d)
	assert.Equal(t, actor.DefaultMaxHealth-reaction.WaterContactDamage, a.Health())
	assert.Len(t, a.Messages, 1)
}

func TestInteract_Teleport(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "enderian")
	a.Position = actor.Location{Y: 64}
	a.Target = &actor.Location{X: 3, Y: 60, Z: 20}

	ev := &actor.InteractEvent{Action: actor.ActionUseAir, Item: actor.ItemEnderPearl}
	f.engine.Interact(a, d, ev)
	assert.True(t, ev.Cancelled)
	assert.Equal(t, actor.Location{X: 3, Y: 61, Z: 20}, a.Position)
	assert.Equal(t, []string{"Teleported!"}, a.Messages)
}

func TestInteract_TeleportOutOfRange(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "enderian")
	a.Target = &actor.Location{Z: reaction.TeleportRange + 1}

	ev := &actor.InteractEvent{Action: actor.ActionUseAir, Item: actor.ItemEnderPearl}
	f.engine.Interact(a, d, ev)
	assert.True(t, ev.Cancelled, "the pearl is never thrown")
	assert.Equal(t, actor.Location{}, a.Position)
	assert.Empty(t, a.Messages)
}

func TestInteract_OtherActionsIgnored(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "enderian")
	a.Target = &actor.Location{Z: 5}
	for _, act := range []actor.Action{actor.ActionUseBlock, actor.ActionHitAir, actor.ActionPhysical} {
		ev := &actor.InteractEvent{Action: act, Item: actor.ItemEnderPearl}
		f.engine.Interact(a, d, ev)
		assert.False(t, ev.Cancelled, act)
	}
	assert.Equal(t, actor.Location{}, a.Position)
}

func TestInteract_PhaseToggle(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "phantom")
	a.Sneak = true

	f.engine.Interact(a, d, &actor.InteractEvent{Action: actor.ActionUseAir})
	inv, ok := a.Effect(actor.EffectInvisibility)
	require.True(t, ok)
	assert.Equal(t, reaction.PhaseToggleTicks, inv.Duration)

	f.engine.Interact(a, d, &actor.InteractEvent{Action: actor.ActionUseAir})
	assert.False(t, a.HasEffect(actor.EffectInvisibility))
	assert.Equal(t, []string{"Turned invisible", "Visibility restored"}, a.Messages)
}

func TestInteract_Launch(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "elytrian")
	a.Look = actor.Vector{X: 1}
	f.engine.Interact(a, d, &actor.InteractEvent{Action: actor.ActionUseAir})
	assert.Equal(t, actor.Vector{X: reaction.LaunchFactor, Y: reaction.LaunchLift}, a.Velocity())

	b, _ := f.actor(t, "elytrian")
	b.Sneak = true
	f.engine.Interact(b, d, &actor.InteractEvent{Action: actor.ActionUseAir})
	assert.Equal(t, actor.Vector{}, b.Velocity())
}

func TestInventoryClick_ChestplateBlocked(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "elytrian")
	ev := &actor.InventoryClickEvent{Slot: actor.SlotChest, Cursor: "diamond_chestplate"}
	f.engine.InventoryClick(a, d, ev)
	assert.True(t, ev.Cancelled)
	assert.Zero(t, f.ticks.Pending())

	h, hd := f.actor(t, "human")
	ev = &actor.InventoryClickEvent{Slot: actor.SlotChest, Cursor: "diamond_chestplate"}
	f.engine.InventoryClick(h, hd, ev)
	assert.False(t, ev.Cancelled)
}

func TestInventoryClick_RegrantNextTick(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "elytrian")
	ev := &actor.InventoryClickEvent{Slot: 10, Cursor: actor.ItemElytra}
	f.engine.InventoryClick(a, d, ev)
	assert.False(t, ev.Cancelled)
	assert.True(t, a.ChestItem().Empty())

	f.ticks.Advance(1)
	assert.Equal(t, actor.ItemElytra, a.ChestItem())
	assert.Len(t, a.Messages, 1)
}

func TestInventoryClick_RegrantRespectsCurrentState(t *testing.T) {
	f := newFixture(t, nil)
	worn, d := f.actor(t, "elytrian")
	f.engine.InventoryClick(worn, d, &actor.InventoryClickEvent{Slot: 10})
	worn.Chest = "leather_tunic"

	changed, _ := f.actor(t, "elytrian")
	f.engine.InventoryClick(changed, d, &actor.InventoryClickEvent{Slot: 10})
	f.resolver[changed.ID()] = f.def(t, "human")

	gone, _ := f.actor(t, "elytrian")
	f.engine.InventoryClick(gone, d, &actor.InventoryClickEvent{Slot: 10})
	delete(f.resolver, gone.ID())

	f.ticks.Advance(1)
	assert.Equal(t, actor.Item("leather_tunic"), worn.ChestItem())
	assert.True(t, changed.ChestItem().Empty())
	assert.True(t, gone.ChestItem().Empty())
}

func TestToggleFlight(t *testing.T) {
	f := newFixture(t, nil)
	a, d := f.actor(t, "avian")
	f.engine.ToggleFlight(a, d, true)
	sf, ok := a.Effect(actor.EffectSlowFalling)
	require.True(t, ok)
	assert.Equal(t, actor.InfiniteDuration, sf.Duration)

	f.engine.ToggleFlight(a, d, false)
	assert.False(t, a.HasEffect(actor.EffectSlowFalling))

	e, ed := f.actor(t, "elytrian")
	f.engine.ToggleFlight(e, ed, true)
	assert.False(t, e.HasEffect(actor.EffectSlowFalling))
}

func TestProperty_HumanDamageUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	causes := []actor.DamageCause{
		actor.CauseGeneric, actor.CauseAttack, actor.CauseFall,
		actor.CauseDrowning, actor.CausePoison, actor.CauseWither, actor.CauseFireTick,
	}
	d := f.def(t, "human")
	rapid.Check(t, func(rt *rapid.T) {
		a := actor.NewSim(uuid.New(), "p")
		a.Water = rapid.Bool().Draw(rt, "water")
		amount := rapid.Float64Range(0, 100).Draw(rt, "amount")
		ev := &actor.DamageEvent{Cause: rapid.SampledFrom(causes).Draw(rt, "cause"), Amount: amount}
		f.engine.Damage(a, d, ev)
		if ev.Cancelled || ev.Amount != amount {
			rt.Fatalf("human damage changed: %+v", ev)
		}
	})
}

func TestProperty_MoveIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	defs := f.catalog.All()
	rapid.Check(t, func(rt *rapid.T) {
		d := rapid.SampledFrom(defs).Draw(rt, "power")
		a := actor.NewSim(uuid.New(), "p")
		a.Light = rapid.IntRange(0, 15).Draw(rt, "light")
		a.Sky = rapid.IntRange(0, 15).Draw(rt, "sky")
		a.Day = rapid.Bool().Draw(rt, "day")
		a.Sneak = rapid.Bool().Draw(rt, "sneak")
		a.Wall = rapid.Bool().Draw(rt, "wall")
		a.Water = false
		a.Rain = false

		f.engine.Move(a, d)
		first := a.Effects()
		speed, vel, fire := a.WalkSpeed(), a.Velocity(), a.FireTicks
		f.engine.Move(a, d)
		if len(a.Effects()) != len(first) || a.WalkSpeed() != speed || a.Velocity() != vel || a.FireTicks != fire {
			rt.Fatalf("second move changed state")
		}
	})
}
