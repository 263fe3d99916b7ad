package power

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/crystalpowers/internal/game/actor"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Table is a versioned set of definitions in catalog order.
type Table struct {
	Version     int
	Definitions []*Definition
}

// Loader produces a complete Table. A Loader is called once per catalog
// load or reload.
type Loader func() (Table, error)

// tableFile is the YAML shape of a definition table.
type tableFile struct {
	Version int        `yaml:"version"`
	Powers  []rawPower `yaml:"powers"`
}

type rawPower struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Icon        string        `yaml:"icon"`
	Abilities   []string      `yaml:"abilities"`
	Positives   []string      `yaml:"positives"`
	Negatives   []string      `yaml:"negatives"`
	Traits      rawTraits     `yaml:"traits"`
	Grants      []EffectGrant `yaml:"grants"`
}

// rawTraits uses pointers where the default is not the zero value.
type rawTraits struct {
	CanFly               bool     `yaml:"can_fly"`
	CanTeleport          bool     `yaml:"can_teleport"`
	CanBreatheUnderwater bool     `yaml:"can_breathe_underwater"`
	CanPhase             bool     `yaml:"can_phase"`
	EquipmentGrant       string   `yaml:"equipment_grant"`
	CanWearChestArmor    *bool    `yaml:"can_wear_chest_armor"`
	TakesDamageFromWater bool     `yaml:"takes_damage_from_water"`
	BurnsInLight         bool     `yaml:"burns_in_light"`
	InvisibleInDarkness  bool     `yaml:"invisible_in_darkness"`
	FallDamageImmune     bool     `yaml:"fall_damage_immune"`
	StatusImmune         bool     `yaml:"status_immune"`
	WallClimb            bool     `yaml:"wall_climb"`
	LaunchOnInteract     bool     `yaml:"launch_on_interact"`
	AquaticBoost         bool     `yaml:"aquatic_boost"`
	SlowFallWhileFlying  bool     `yaml:"slow_fall_while_flying"`
	MaxHealth            *int     `yaml:"max_health"`
	SwimSpeedFactor      *float64 `yaml:"swim_speed_factor"`
	LandSpeedFactor      *float64 `yaml:"land_speed_factor"`
	DamageMultiplier     *float64 `yaml:"damage_multiplier"`
	WeakTo               []string `yaml:"weak_to"`
}

// Builtin returns a Loader for the embedded built-in definitions.
func Builtin() Loader {
	return func() (Table, error) {
		return ParseTable(builtinYAML)
	}
}

// ParseTable decodes and validates a YAML definition table.
//
// Postcondition: Returns a Table whose ids are normalised and unique, or an error.
func ParseTable(data []byte) (Table, error) {
	var f tableFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Table{}, fmt.Errorf("parsing power table: %w", err)
	}
	t := Table{Version: f.Version, Definitions: make([]*Definition, 0, len(f.Powers))}
	for i, rp := range f.Powers {
		def, err := rp.build()
		if err != nil {
			return Table{}, fmt.Errorf("power #%d (%q): %w", i, rp.ID, err)
		}
		t.Definitions = append(t.Definitions, def)
	}
	if err := checkUnique(t.Definitions); err != nil {
		return Table{}, err
	}
	return t, nil
}

// LoadDirectory returns a Loader reading every *.yaml table in dir, in
// lexicographic file order. The table version is the highest file version.
func LoadDirectory(dir string) Loader {
	return func() (Table, error) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return Table{}, fmt.Errorf("reading power dir %q: %w", dir, err)
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".yaml") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		var out Table
		for _, name := range names {
			path := filepath.Join(dir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				return Table{}, fmt.Errorf("reading %q: %w", path, err)
			}
			t, err := ParseTable(data)
			if err != nil {
				return Table{}, fmt.Errorf("%q: %w", path, err)
			}
			out.Version = max(out.Version, t.Version)
			out.Definitions = append(out.Definitions, t.Definitions...)
		}
		if err := checkUnique(out.Definitions); err != nil {
			return Table{}, err
		}
		return out, nil
	}
}

// Chain concatenates the tables of several loaders. Ids must stay unique
// across all of them; the version is the highest of the parts.
func Chain(loaders ...Loader) Loader {
	return func() (Table, error) {
		var out Table
		for _, l := range loaders {
			t, err := l()
			if err != nil {
				return Table{}, err
			}
			out.Version = max(out.Version, t.Version)
			out.Definitions = append(out.Definitions, t.Definitions...)
		}
		if err := checkUnique(out.Definitions); err != nil {
			return Table{}, err
		}
		return out, nil
	}
}

func checkUnique(defs []*Definition) error {
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if seen[d.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateID, d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

func (rp rawPower) build() (*Definition, error) {
	id := NormalizeID(rp.ID)
	if id == "" {
		return nil, errors.New("id must not be empty")
	}
	if rp.Name == "" {
		return nil, errors.New("name must not be empty")
	}
	traits, err := rp.Traits.build()
	if err != nil {
		return nil, err
	}
	grants := make([]EffectGrant, 0, len(rp.Grants))
	for _, g := range rp.Grants {
		if g.Kind == "" {
			return nil, errors.New("grant kind must not be empty")
		}
		if g.Amplifier < 0 {
			return nil, fmt.Errorf("grant %q: amplifier must be >= 0", g.Kind)
		}
		if !g.Permanent && g.Duration <= 0 {
			return nil, fmt.Errorf("grant %q: timed grants need a positive duration", g.Kind)
		}
		grants = append(grants, g)
	}
	return &Definition{
		ID:          id,
		Name:        rp.Name,
		Description: rp.Description,
		Icon:        rp.Icon,
		Abilities:   append([]string(nil), rp.Abilities...),
		Positives:   append([]string(nil), rp.Positives...),
		Negatives:   append([]string(nil), rp.Negatives...),
		Traits:      traits,
		Grants:      grants,
	}, nil
}

func (rt rawTraits) build() (Traits, error) {
	t := DefaultTraits()
	t.CanFly = rt.CanFly
	t.CanTeleport = rt.CanTeleport
	t.CanBreatheUnderwater = rt.CanBreatheUnderwater
	t.CanPhase = rt.CanPhase
	t.EquipmentGrant = actor.Item(rt.EquipmentGrant)
	t.TakesDamageFromWater = rt.TakesDamageFromWater
	t.BurnsInLight = rt.BurnsInLight
	t.InvisibleInDarkness = rt.InvisibleInDarkness
	t.FallDamageImmune = rt.FallDamageImmune
	t.StatusImmune = rt.StatusImmune
	t.WallClimb = rt.WallClimb
	t.LaunchOnInteract = rt.LaunchOnInteract
	t.AquaticBoost = rt.AquaticBoost
	t.SlowFallWhileFlying = rt.SlowFallWhileFlying
	if rt.CanWearChestArmor != nil {
		t.CanWearChestArmor = *rt.CanWearChestArmor
	}
	if rt.MaxHealth != nil {
		if *rt.MaxHealth <= 0 {
			return Traits{}, fmt.Errorf("max_health must be > 0, got %d", *rt.MaxHealth)
		}
		t.MaxHealth = *rt.MaxHealth
	}
	for name, f := range map[string]struct {
		src *float64
		dst *float64
	}{
		"swim_speed_factor": {rt.SwimSpeedFactor, &t.SwimSpeedFactor},
		"land_speed_factor": {rt.LandSpeedFactor, &t.LandSpeedFactor},
		"damage_multiplier": {rt.DamageMultiplier, &t.DamageMultiplier},
	} {
		if f.src == nil {
			continue
		}
		if *f.src <= 0 {
			return Traits{}, fmt.Errorf("%s must be > 0, got %v", name, *f.src)
		}
		*f.dst = *f.src
	}
	for _, w := range rt.WeakTo {
		t.WeakTo = append(t.WeakTo, actor.Item(NormalizeID(w)))
	}
	return t, nil
}
