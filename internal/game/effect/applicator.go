// Package effect applies and removes a power's derived state on a live actor.
//
// Apply and Remove are idempotent and never fail: every step either changes
// the actor or is a documented no-op.
package effect

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/crystalpowers/internal/game/actor"
	"github.com/cory-johannsen/crystalpowers/internal/game/power"
)

// Applicator applies power definitions to actors.
type Applicator struct {
	logger *zap.Logger
}

// NewApplicator creates an Applicator.
//
// Precondition: logger must not be nil.
func NewApplicator(logger *zap.Logger) *Applicator {
	return &Applicator{logger: logger}
}

// Apply brings a in line with def.
//
// Precondition: a and def must not be nil.
// Postcondition: Calling Apply again with the same def changes nothing further.
func (ap *Applicator) Apply(a actor.Actor, def *power.Definition) {
	t := def.Traits

	if float64(t.MaxHealth) != actor.DefaultMaxHealth {
		a.SetMaxHealth(float64(t.MaxHealth))
		if a.Health() > a.MaxHealth() {
			a.SetHealth(a.MaxHealth())
		}
	}

	if t.CanFly && a.GameMode().FlightEligible() {
		a.SetAllowFlight(true)
	}

	for _, g := range def.Grants {
		a.AddEffect(g.Effect(), true)
	}

	if t.HasEquipmentGrant() && a.ChestItem().Empty() {
		a.SetChestItem(t.EquipmentGrant)
	}

	if t.LandSpeedFactor != power.DefaultFactor {
		a.SetWalkSpeed(actor.DefaultWalkSpeed * t.LandSpeedFactor)
	}

	ap.logger.Debug("power applied",
		zap.String("actor", a.ID().String()),
		zap.String("power", def.ID),
	)
}

// Remove undoes Apply together with every effect the reaction rules attach
// for def's traits. Items and other effects the actor acquired independently
// of def are left alone.
//
// Precondition: a and def must not be nil.
// Postcondition: Every attribute Apply touches is back at its universal default.
func (ap *Applicator) Remove(a actor.Actor, def *power.Definition) {
	t := def.Traits

	if t.CanFly && a.GameMode().FlightEligible() {
		a.SetFlying(false)
		a.SetAllowFlight(false)
	}

	a.SetMaxHealth(actor.DefaultMaxHealth)
	a.SetWalkSpeed(actor.DefaultWalkSpeed)

	for _, g := range def.Grants {
		a.RemoveEffect(g.Kind)
	}
	for _, kind := range ruleEffects(t) {
		a.RemoveEffect(kind)
	}

	if t.HasEquipmentGrant() && a.ChestItem() == t.EquipmentGrant {
		a.SetChestItem(actor.ItemNone)
	}

	ap.logger.Debug("power removed",
		zap.String("actor", a.ID().String()),
		zap.String("power", def.ID),
	)
}

// ruleEffects lists the effect kinds the reaction rules grant for t.
func ruleEffects(t power.Traits) []actor.EffectKind {
	var kinds []actor.EffectKind
	if t.SlowFallWhileFlying {
		kinds = append(kinds, actor.EffectSlowFalling)
	}
	if t.InvisibleInDarkness || t.CanPhase {
		kinds = append(kinds, actor.EffectInvisibility)
	}
	if t.AquaticBoost {
		kinds = append(kinds, actor.EffectDolphinsGrace, actor.EffectNightVision)
	}
	return kinds
}

// ReassertFlight re-enables flight that the host reset. It is the only
// correction the maintenance pass performs.
//
// Postcondition: Returns true when flight was re-enabled.
func (ap *Applicator) ReassertFlight(a actor.Actor, def *power.Definition) bool {
	if def == nil || !def.Traits.CanFly || !a.GameMode().FlightEligible() || a.AllowFlight() {
		return false
	}
	a.SetAllowFlight(true)
	ap.logger.Debug("flight reasserted",
		zap.String("actor", a.ID().String()),
		zap.String("power", def.ID),
	)
	return true
}
