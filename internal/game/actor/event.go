package actor

// DamageCause classifies incoming damage.
type DamageCause string

const (
	CauseGeneric  DamageCause = "generic"
	CauseAttack   DamageCause = "entity_attack"
	CauseFall     DamageCause = "fall"
	CauseDrowning DamageCause = "drowning"
	CausePoison   DamageCause = "poison"
	CauseWither   DamageCause = "wither"
	CauseFireTick DamageCause = "fire_tick"
)

// DamageEvent is raised by the host before damage is applied. Handlers may
// change Amount or set Cancelled.
type DamageEvent struct {
	Cause     DamageCause
	Amount    float64
	Cancelled bool
	// Attacker is the damaging actor, or nil when the source is not an actor.
	Attacker Actor
}

// Action is the kind of interaction an actor performed.
type Action string

const (
	ActionUseAir   Action = "right_click_air"
	ActionUseBlock Action = "right_click_block"
	ActionHitAir   Action = "left_click_air"
	ActionHitBlock Action = "left_click_block"
	ActionPhysical Action = "physical"
)

// Primary reports whether the action is the primary "use" action.
func (a Action) Primary() bool {
	return a == ActionUseAir
}

// InteractEvent is raised when an actor interacts with the held item.
type InteractEvent struct {
	Action    Action
	Item      Item
	Cancelled bool
}

// Slot identifies an equipment or inventory slot.
type Slot int

// SlotChest is the chest-armor slot index.
const SlotChest Slot = 38

// InventoryClickEvent is raised when an actor clicks inside an inventory.
type InventoryClickEvent struct {
	Slot      Slot
	Cursor    Item
	Cancelled bool
}
