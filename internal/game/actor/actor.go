// Package actor defines the live actor handle supplied by the host environment
// and the vocabulary shared between the power components and the host.
package actor

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

// Universal defaults restored when a power's effects are removed.
const (
	DefaultMaxHealth = 20.0
	DefaultWalkSpeed = 0.2
)

// InfiniteDuration is the duration, in ticks, used for effects that last for
// the lifetime of a selection.
const InfiniteDuration = math.MaxInt32

// GameMode is the host's play mode for an actor.
type GameMode string

const (
	ModeSurvival  GameMode = "survival"
	ModeAdventure GameMode = "adventure"
	ModeCreative  GameMode = "creative"
	ModeSpectator GameMode = "spectator"
)

// FlightEligible reports whether granting flight is meaningful in this mode.
// Creative and spectator modes control flight themselves.
func (m GameMode) FlightEligible() bool {
	return m == ModeSurvival || m == ModeAdventure
}

// EffectKind names a timed status effect.
type EffectKind string

const (
	EffectNightVision    EffectKind = "night_vision"
	EffectWaterBreathing EffectKind = "water_breathing"
	EffectDolphinsGrace  EffectKind = "dolphins_grace"
	EffectInvisibility   EffectKind = "invisibility"
	EffectSlowFalling    EffectKind = "slow_falling"
	EffectSpeed          EffectKind = "speed"
	EffectJumpBoost      EffectKind = "jump_boost"
	EffectResistance     EffectKind = "resistance"
	EffectFireResistance EffectKind = "fire_resistance"
)

// Effect is one active timed status effect.
type Effect struct {
	Kind      EffectKind
	Duration  int // ticks remaining; InfiniteDuration for permanent effects
	Amplifier int
}

// Item is a host material identifier. The zero value is an empty slot.
type Item string

// Items referenced by built-in power rules.
const (
	ItemNone       Item = ""
	ItemElytra     Item = "elytra"
	ItemEnderPearl Item = "ender_pearl"
)

// Empty reports whether the item represents an empty slot.
func (i Item) Empty() bool {
	return i == ItemNone || i == "air"
}

// IsChestArmor reports whether the item can only be worn in the chest-armor slot.
func (i Item) IsChestArmor() bool {
	return strings.HasSuffix(string(i), "_chestplate")
}

// Vector is a 3D direction or velocity.
type Vector struct {
	X, Y, Z float64
}

// Scale returns v multiplied by f.
func (v Vector) Scale(f float64) Vector {
	return Vector{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

// Location is a block-space position.
type Location struct {
	X, Y, Z float64
}

// Actor is the live, externally-mutable actor handle owned by the host.
// Every method is called from the tick thread only.
type Actor interface {
	ID() uuid.UUID
	Name() string

	MaxHealth() float64
	SetMaxHealth(v float64)
	Health() float64
	SetHealth(v float64)

	AllowFlight() bool
	SetAllowFlight(allow bool)
	Flying() bool
	SetFlying(flying bool)

	WalkSpeed() float64
	SetWalkSpeed(v float64)

	ChestItem() Item
	SetChestItem(item Item)
	MainHandItem() Item

	// AddEffect adds e. When force is true an existing effect of the same kind
	// is overwritten rather than kept.
	AddEffect(e Effect, force bool)
	RemoveEffect(kind EffectKind)
	HasEffect(kind EffectKind) bool
	Effects() []Effect

	GameMode() GameMode
	LightLevel() int
	SkyLight() int
	Daytime() bool
	Sneaking() bool
	InWater() bool
	InRain() bool
	AgainstWall() bool

	Velocity() Vector
	SetVelocity(v Vector)
	Facing() Vector
	// TargetSurface returns the location on top of the solid block the actor is
	// aiming at within maxRange, or false when nothing is in range.
	TargetSurface(maxRange float64) (Location, bool)
	Teleport(loc Location)

	SetFireTicks(ticks int)
	Damage(amount float64)
	SendMessage(msg string)
}
