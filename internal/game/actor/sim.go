package actor

import (
	"sort"

	"github.com/google/uuid"
)

// Sim is an in-memory Actor for headless hosts and tests. Environment fields
// (Mode, Light, Sneak, ...) are set directly by the host; the power components
// only go through the Actor interface.
//
// Sim is not safe for concurrent use; the tick thread owns it.
type Sim struct {
	UID         uuid.UUID
	DisplayName string

	MaxHP     float64
	HP        float64
	CanFly    bool
	IsFlying  bool
	Speed     float64
	Chest     Item
	MainHand  Item
	Mode      GameMode
	Light     int
	Sky       int
	Day       bool
	Sneak     bool
	Water     bool
	Rain      bool
	Wall      bool
	Vel       Vector
	Look      Vector
	Target    *Location
	Position  Location
	FireTicks int
	Messages  []string

	effects map[EffectKind]Effect
}

// NewSim returns a survival-mode Sim carrying universal defaults.
//
// Postcondition: MaxHealth() == Health() == DefaultMaxHealth and WalkSpeed() == DefaultWalkSpeed.
func NewSim(id uuid.UUID, name string) *Sim {
	return &Sim{
		UID:         id,
		DisplayName: name,
		MaxHP:       DefaultMaxHealth,
		HP:          DefaultMaxHealth,
		Speed:       DefaultWalkSpeed,
		Mode:        ModeSurvival,
		Light:       15,
		Sky:         15,
		Day:         true,
		Look:        Vector{Z: 1},
		effects:     make(map[EffectKind]Effect),
	}
}

func (s *Sim) ID() uuid.UUID      { return s.UID }
func (s *Sim) Name() string       { return s.DisplayName }
func (s *Sim) MaxHealth() float64 { return s.MaxHP }

func (s *Sim) SetMaxHealth(v float64) { s.MaxHP = v }
func (s *Sim) Health() float64        { return s.HP }

// SetHealth sets current health, capped at the current maximum.
func (s *Sim) SetHealth(v float64) {
	if v > s.MaxHP {
		v = s.MaxHP
	}
	s.HP = v
}

func (s *Sim) AllowFlight() bool { return s.CanFly }

// SetAllowFlight mirrors the host behaviour of dropping an airborne actor when
// flight is revoked.
func (s *Sim) SetAllowFlight(allow bool) {
	s.CanFly = allow
	if !allow {
		s.IsFlying = false
	}
}

func (s *Sim) Flying() bool           { return s.IsFlying }
func (s *Sim) SetFlying(flying bool)  { s.IsFlying = flying && s.CanFly }
func (s *Sim) WalkSpeed() float64     { return s.Speed }
func (s *Sim) SetWalkSpeed(v float64) { s.Speed = v }
func (s *Sim) ChestItem() Item        { return s.Chest }
func (s *Sim) SetChestItem(item Item) { s.Chest = item }
func (s *Sim) MainHandItem() Item     { return s.MainHand }

// AddEffect adds e; an existing effect of the same kind is only replaced when force is set.
func (s *Sim) AddEffect(e Effect, force bool) {
	if s.effects == nil {
		s.effects = make(map[EffectKind]Effect)
	}
	if _, ok := s.effects[e.Kind]; ok && !force {
		return
	}
	s.effects[e.Kind] = e
}

func (s *Sim) RemoveEffect(kind EffectKind) { delete(s.effects, kind) }

func (s *Sim) HasEffect(kind EffectKind) bool {
	_, ok := s.effects[kind]
	return ok
}

// Effect returns the active effect of kind, if any.
func (s *Sim) Effect(kind EffectKind) (Effect, bool) {
	e, ok := s.effects[kind]
	return e, ok
}

// Effects returns the active effects ordered by kind.
func (s *Sim) Effects() []Effect {
	out := make([]Effect, 0, len(s.effects))
	for _, e := range s.effects {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// Tick advances effect durations by n ticks, expiring finished effects.
func (s *Sim) Tick(n int) {
	for kind, e := range s.effects {
		if e.Duration == InfiniteDuration {
			continue
		}
		e.Duration -= n
		if e.Duration <= 0 {
			delete(s.effects, kind)
			continue
		}
		s.effects[kind] = e
	}
	if s.FireTicks > 0 {
		s.FireTicks -= n
		if s.FireTicks < 0 {
			s.FireTicks = 0
		}
	}
}

func (s *Sim) GameMode() GameMode   { return s.Mode }
func (s *Sim) LightLevel() int      { return s.Light }
func (s *Sim) SkyLight() int        { return s.Sky }
func (s *Sim) Daytime() bool        { return s.Day }
func (s *Sim) Sneaking() bool       { return s.Sneak }
func (s *Sim) InWater() bool        { return s.Water }
func (s *Sim) InRain() bool         { return s.Rain }
func (s *Sim) AgainstWall() bool    { return s.Wall }
func (s *Sim) Velocity() Vector     { return s.Vel }
func (s *Sim) SetVelocity(v Vector) { s.Vel = v }
func (s *Sim) Facing() Vector       { return s.Look }

// TargetSurface returns Target when it lies within maxRange of Position.
func (s *Sim) TargetSurface(maxRange float64) (Location, bool) {
	if s.Target == nil {
		return Location{}, false
	}
	dx := s.Target.X - s.Position.X
	dy := s.Target.Y - s.Position.Y
	dz := s.Target.Z - s.Position.Z
	if dx*dx+dy*dy+dz*dz > maxRange*maxRange {
		return Location{}, false
	}
	return *s.Target, true
}

func (s *Sim) Teleport(loc Location) { s.Position = loc }

func (s *Sim) SetFireTicks(ticks int) { s.FireTicks = ticks }

// Damage reduces health directly, bypassing damage events.
func (s *Sim) Damage(amount float64) {
	s.HP -= amount
	if s.HP < 0 {
		s.HP = 0
	}
}

func (s *Sim) SendMessage(msg string) { s.Messages = append(s.Messages, msg) }
