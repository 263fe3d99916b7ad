// Package power holds the immutable power definitions and the catalog that
// serves them.
package power

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cory-johannsen/crystalpowers/internal/game/actor"
)

// Universal trait defaults.
const (
	DefaultMaxHealth = 20
	DefaultFactor    = 1.0
)

// Definition is one immutable power. Definitions are shared by pointer;
// callers must not modify them.
type Definition struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Abilities   []string
	Positives   []string
	Negatives   []string
	Traits      Traits
	// Grants holds every timed and permanent effect the power confers.
	Grants []EffectGrant
}

// Traits are the boolean and numeric modifiers of a power.
type Traits struct {
	CanFly               bool
	CanTeleport          bool
	CanBreatheUnderwater bool
	CanPhase             bool
	// EquipmentGrant is the chest item worn for free; empty means none.
	EquipmentGrant       actor.Item
	CanWearChestArmor    bool
	TakesDamageFromWater bool
	BurnsInLight         bool
	InvisibleInDarkness  bool
	FallDamageImmune     bool
	StatusImmune         bool
	WallClimb            bool
	LaunchOnInteract     bool
	AquaticBoost         bool
	SlowFallWhileFlying  bool
	MaxHealth            int
	SwimSpeedFactor      float64
	LandSpeedFactor      float64
	DamageMultiplier     float64
	// WeakTo lists attacker main-hand items dealing 1.5x damage.
	WeakTo []actor.Item
}

// DefaultTraits returns the traits of a power with no modifiers.
func DefaultTraits() Traits {
	return Traits{
		CanWearChestArmor: true,
		MaxHealth:         DefaultMaxHealth,
		SwimSpeedFactor:   DefaultFactor,
		LandSpeedFactor:   DefaultFactor,
		DamageMultiplier:  DefaultFactor,
	}
}

// HasEquipmentGrant reports whether the power wears a built-in chest item.
func (t Traits) HasEquipmentGrant() bool {
	return !t.EquipmentGrant.Empty()
}

// IsWeakTo reports whether item is one of the power's weaknesses.
func (t Traits) IsWeakTo(item actor.Item) bool {
	if item.Empty() {
		return false
	}
	for _, w := range t.WeakTo {
		if w == item {
			return true
		}
	}
	return false
}

// EffectGrant is a timed or permanent effect conferred by a power.
type EffectGrant struct {
	Kind      actor.EffectKind `yaml:"kind"`
	Amplifier int              `yaml:"amplifier"`
	Permanent bool             `yaml:"permanent"`
	// Duration is in ticks and ignored for permanent grants.
	Duration int `yaml:"duration"`
}

// Effect returns the live effect this grant applies.
//
// Postcondition: permanent grants carry actor.InfiniteDuration.
func (g EffectGrant) Effect() actor.Effect {
	d := g.Duration
	if g.Permanent {
		d = actor.InfiniteDuration
	}
	return actor.Effect{Kind: g.Kind, Duration: d, Amplifier: g.Amplifier}
}

// NormalizeID returns the canonical lower-case form of a power id.
func NormalizeID(id string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(id))
}
