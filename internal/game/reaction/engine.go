// Package reaction holds the condition to reaction rules that fire on host
// events for actors with a selected power.
//
// Every rule is keyed by a trait flag and is idempotent on its own; rules of
// one event kind run in table order.
package reaction

import (
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crystalpowers/internal/game/actor"
	"github.com/cory-johannsen/crystalpowers/internal/game/power"
	"github.com/cory-johannsen/crystalpowers/internal/game/tick"
)

// Rule tuning, in ticks, blocks and multipliers.
const (
	WeakToMultiplier     = 1.5
	WaterDamageFactor    = 2.0
	WaterContactDamage   = 1.0
	SunlightSkyThreshold = 10
	BurnTicks            = 60
	DarknessThreshold    = 5
	DarknessInvisTicks   = 100
	PhasePulseTicks      = 40
	PhaseToggleTicks     = 1200
	AquaticBoostTicks    = 60
	WallClimbVelocity    = 0.2
	TeleportRange        = 50.0
	LaunchFactor         = 1.5
	LaunchLift           = 1.0
	// speedTolerance avoids rewriting a walk speed that is already close enough.
	speedTolerance = 0.01
)

// Resolver returns the power currently selected by an actor.
type Resolver interface {
	Resolve(id uuid.UUID) (*power.Definition, bool)
}

// DamageHook may rewrite incoming damage after the built-in rules ran.
type DamageHook interface {
	// OnDamage returns the new amount and true, or false to keep the amount.
	OnDamage(powerID, cause string, amount float64) (float64, bool)
}

// Engine evaluates the rule tables.
type Engine struct {
	resolver Resolver
	sched    tick.Scheduler
	hook     DamageHook
	logger   *zap.Logger
}

// NewEngine creates an Engine. hook may be nil.
//
// Precondition: resolver, sched and logger must not be nil.
func NewEngine(resolver Resolver, sched tick.Scheduler, hook DamageHook, logger *zap.Logger) *Engine {
	return &Engine{resolver: resolver, sched: sched, hook: hook, logger: logger}
}

type damageRule struct {
	name  string
	when  func(t power.Traits, a actor.Actor, ev *actor.DamageEvent) bool
	react func(ev *actor.DamageEvent)
}

var damageRules = []damageRule{
	{
		name: "fall immunity",
		when: func(t power.Traits, _ actor.Actor, ev *actor.DamageEvent) bool {
			return t.FallDamageImmune && ev.Cause == actor.CauseFall
		},
		react: func(ev *actor.DamageEvent) { ev.Cancelled = true },
	},
	{
		name: "status immunity",
		when: func(t power.Traits, _ actor.Actor, ev *actor.DamageEvent) bool {
			return t.StatusImmune && (ev.Cause == actor.CausePoison || ev.Cause == actor.CauseWither)
		},
		react: func(ev *actor.DamageEvent) { ev.Cancelled = true },
	},
	{
		name: "water damage",
		when: func(t power.Traits, a actor.Actor, ev *actor.DamageEvent) bool {
			return t.TakesDamageFromWater && (ev.Cause == actor.CauseDrowning || a.InWater())
		},
		react: func(ev *actor.DamageEvent) { ev.Amount *= WaterDamageFactor },
	},
	{
		name: "weak to",
		when: func(t power.Traits, _ actor.Actor, ev *actor.DamageEvent) bool {
			return ev.Attacker != nil && t.IsWeakTo(ev.Attacker.MainHandItem())
		},
		react: func(ev *actor.DamageEvent) { ev.Amount *= WeakToMultiplier },
	},
}

// Damage applies the damage rules to ev. Cancelled events are left alone.
//
// Precondition: a, def and ev must not be nil.
func (e *Engine) Damage(a actor.Actor, def *power.Definition, ev *actor.DamageEvent) {
	t := def.Traits
	for _, r := range damageRules {
		if ev.Cancelled {
			return
		}
		if r.when(t, a, ev) {
			r.react(ev)
		}
	}
	if ev.Cancelled {
		return
	}
	if t.DamageMultiplier != power.DefaultFactor {
		ev.Amount *= t.DamageMultiplier
	}
	if e.hook != nil {
		if amount, ok := e.hook.OnDamage(def.ID, string(ev.Cause), ev.Amount); ok && amount >= 0 {
			ev.Amount = amount
		}
	}
}

type moveRule struct {
	name  string
	when  func(t power.Traits, a actor.Actor) bool
	react func(t power.Traits, a actor.Actor)
}

var moveRules = []moveRule{
	{
		name: "land speed",
		when: func(t power.Traits, a actor.Actor) bool {
			return t.LandSpeedFactor != power.DefaultFactor && !a.Flying()
		},
		react: func(t power.Traits, a actor.Actor) {
			want := actor.DefaultWalkSpeed * t.LandSpeedFactor
			if math.Abs(a.WalkSpeed()-want) > speedTolerance {
				a.SetWalkSpeed(want)
			}
		},
	},
	{
		name: "aquatic boost",
		when: func(t power.Traits, a actor.Actor) bool { return t.AquaticBoost && a.InWater() },
		react: func(_ power.Traits, a actor.Actor) {
			a.AddEffect(actor.Effect{Kind: actor.EffectDolphinsGrace, Duration: AquaticBoostTicks, Amplifier: 1}, true)
			a.AddEffect(actor.Effect{Kind: actor.EffectNightVision, Duration: AquaticBoostTicks}, true)
		},
	},
	{
		name: "wall climb",
		when: func(t power.Traits, a actor.Actor) bool { return t.WallClimb && a.Sneaking() && a.AgainstWall() },
		react: func(_ power.Traits, a actor.Actor) {
			v := a.Velocity()
			v.Y = WallClimbVelocity
			a.SetVelocity(v)
		},
	},
	{
		name: "darkness invisibility",
		when: func(t power.Traits, _ actor.Actor) bool { return t.InvisibleInDarkness },
		react: func(_ power.Traits, a actor.Actor) {
			if a.LightLevel() < DarknessThreshold {
				if !a.HasEffect(actor.EffectInvisibility) {
					a.AddEffect(actor.Effect{Kind: actor.EffectInvisibility, Duration: DarknessInvisTicks}, false)
				}
				return
			}
			a.RemoveEffect(actor.EffectInvisibility)
		},
	},
	{
		name: "phase pulse",
		when: func(t power.Traits, a actor.Actor) bool { return t.CanPhase && a.Sneaking() },
		react: func(_ power.Traits, a actor.Actor) {
			a.AddEffect(actor.Effect{Kind: actor.EffectInvisibility, Duration: PhasePulseTicks}, false)
		},
	},
	{
		name: "water contact",
		when: func(t power.Traits, a actor.Actor) bool {
			return t.TakesDamageFromWater && (a.InWater() || a.InRain())
		},
		react: func(_ power.Traits, a actor.Actor) {
			a.Damage(WaterContactDamage)
			a.SendMessage("You take damage from water!")
		},
	},
	{
		name: "sunlight burn",
		when: func(t power.Traits, a actor.Actor) bool {
			return t.BurnsInLight && a.Daytime() && a.SkyLight() > SunlightSkyThreshold
		},
		react: func(_ power.Traits, a actor.Actor) { a.SetFireTicks(BurnTicks) },
	},
}

// Move applies the movement rules. The host calls it on every movement tick.
//
// Precondition: a and def must not be nil.
func (e *Engine) Move(a actor.Actor, def *power.Definition) {
	for _, r := range moveRules {
		if r.when(def.Traits, a) {
			r.react(def.Traits, a)
		}
	}
}

// Interact applies the interaction rules to ev.
//
// Precondition: a, def and ev must not be nil.
func (e *Engine) Interact(a actor.Actor, def *power.Definition, ev *actor.InteractEvent) {
	t := def.Traits
	if !ev.Action.Primary() {
		return
	}

	if t.CanTeleport && ev.Item == actor.ItemEnderPearl {
		ev.Cancelled = true
		if target, ok := a.TargetSurface(TeleportRange); ok {
			target.Y++
			a.Teleport(target)
			a.SendMessage("Teleported!")
			return
		}
	}

	if t.CanPhase && a.Sneaking() {
		if a.HasEffect(actor.EffectInvisibility) {
			a.RemoveEffect(actor.EffectInvisibility)
			a.SendMessage("Visibility restored")
		} else {
			a.AddEffect(actor.Effect{Kind: actor.EffectInvisibility, Duration: PhaseToggleTicks}, true)
			a.SendMessage("Turned invisible")
		}
	}

	if t.LaunchOnInteract && !a.Sneaking() {
		v := a.Facing().Scale(LaunchFactor)
		v.Y += LaunchLift
		a.SetVelocity(v)
		a.SendMessage("Launched!")
	}
}

// InventoryClick applies the equipment restriction to ev. A built-in
// equipment grant is re-checked one tick later against the actor's
// selection at that time.
//
// Precondition: a, def and ev must not be nil.
func (e *Engine) InventoryClick(a actor.Actor, def *power.Definition, ev *actor.InventoryClickEvent) {
	t := def.Traits
	if !t.CanWearChestArmor && ev.Slot == actor.SlotChest && ev.Cursor.IsChestArmor() {
		ev.Cancelled = true
		a.SendMessage("Your power prevents wearing a chestplate.")
		return
	}
	if !t.HasEquipmentGrant() {
		return
	}
	e.sched.After(1, func() { e.regrant(a) })
}

func (e *Engine) regrant(a actor.Actor) {
	def, ok := e.resolver.Resolve(a.ID())
	if !ok || !def.Traits.HasEquipmentGrant() || !a.ChestItem().Empty() {
		return
	}
	a.SetChestItem(def.Traits.EquipmentGrant)
	a.SendMessage("Your built-in equipment has returned.")
	e.logger.Debug("equipment regranted",
		zap.String("actor", a.ID().String()),
		zap.String("item", string(def.Traits.EquipmentGrant)),
	)
}

// ToggleFlight reacts to the actor starting or stopping flight.
//
// Precondition: a and def must not be nil.
func (e *Engine) ToggleFlight(a actor.Actor, def *power.Definition, flying bool) {
	if !def.Traits.SlowFallWhileFlying {
		return
	}
	if flying {
		a.AddEffect(actor.Effect{Kind: actor.EffectSlowFalling, Duration: actor.InfiniteDuration}, true)
		return
	}
	a.RemoveEffect(actor.EffectSlowFalling)
}
