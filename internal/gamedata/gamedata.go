// Package gamedata loads the static design tables (sects, items, personas,
// fortune pools, phenomena, name pools) from per-language CSV files. A
// loaded Bundle is immutable; switching language swaps the whole bundle
// atomically.
package gamedata

import (
	"fmt"

	"github.com/xiaocai218/cultivation-world-simulator/internal/cultivation"
)

// SectInfo is the static description of a sect; membership lives elsewhere.
type SectInfo struct {
	ID          string
	Name        string
	Description string
}

// Persona is a personality archetype fed into decision prompts.
type Persona struct {
	ID          string
	Name        string
	Description string
}

// Technique is a cultivation method. ExpFactor scales monthly exp gain.
type Technique struct {
	ID          string
	Name        string
	Realm       cultivation.Realm
	ExpFactor   float64
	Description string
}

// Weapon adds attack when equipped.
type Weapon struct {
	ID          string
	Name        string
	Realm       cultivation.Realm
	Attack      int
	Description string
}

// Auxiliary is a defensive or supportive treasure.
type Auxiliary struct {
	ID                string
	Name              string
	Realm             cultivation.Realm
	Defense           int
	CultivationFactor float64
	Description       string
}

// ElixirKind separates healing draughts from exp pills.
type ElixirKind string

const (
	ElixirHeal ElixirKind = "heal"
	ElixirExp  ElixirKind = "exp"
)

// Elixir is a consumable. Amount is HP restored or exp granted depending on
// Kind. Realm gates who benefits fully from it. DurationMonths is how long
// a dose lingers in the drinker, blocking a repeat dose of the same elixir.
type Elixir struct {
	ID             string
	Name           string
	Realm          cultivation.Realm
	Kind           ElixirKind
	Amount         int
	DurationMonths int
	Description    string
}

// FortuneEntry is one row of the weighted fortune pool. Text is a template
// with a {name} placeholder.
type FortuneEntry struct {
	ID     string
	Kind   string
	Weight float64
	Text   string
}

// PhenomenonEntry is one celestial phenomenon the rotation phase can draw.
type PhenomenonEntry struct {
	Key               string
	Name              string
	Years             int
	CultivationFactor float64
	BreakthroughBonus float64
	Weight            float64
	Description       string
}

// Bundle is every static table for one language, with lookup maps built at
// load time.
type Bundle struct {
	Language string

	Sects       []SectInfo
	Personas    []Persona
	Techniques  []Technique
	Weapons     []Weapon
	Auxiliaries []Auxiliary
	Elixirs     []Elixir
	Fortunes    []FortuneEntry
	Misfortunes []FortuneEntry
	Phenomena   []PhenomenonEntry

	// Name pools for avatar generation.
	Surnames    []string
	MaleNames   []string
	FemaleNames []string
	// Region name pools by kind key (city, wild, cultivate_spot).
	RegionNames map[string][]string

	sectByID      map[string]*SectInfo
	personaByID   map[string]*Persona
	techniqueByID map[string]*Technique
	weaponByID    map[string]*Weapon
	auxiliaryByID map[string]*Auxiliary
	elixirByID    map[string]*Elixir
}

// SectByID looks up a sect row.
func (b *Bundle) SectByID(id string) (*SectInfo, bool) {
	s, ok := b.sectByID[id]
	return s, ok
}

// PersonaByID looks up a persona row.
func (b *Bundle) PersonaByID(id string) (*Persona, bool) {
	p, ok := b.personaByID[id]
	return p, ok
}

// TechniqueByID looks up a technique row.
func (b *Bundle) TechniqueByID(id string) (*Technique, bool) {
	t, ok := b.techniqueByID[id]
	return t, ok
}

// WeaponByID looks up a weapon row.
func (b *Bundle) WeaponByID(id string) (*Weapon, bool) {
	w, ok := b.weaponByID[id]
	return w, ok
}

// AuxiliaryByID looks up an auxiliary row.
func (b *Bundle) AuxiliaryByID(id string) (*Auxiliary, bool) {
	a, ok := b.auxiliaryByID[id]
	return a, ok
}

// ElixirByID looks up an elixir row.
func (b *Bundle) ElixirByID(id string) (*Elixir, bool) {
	e, ok := b.elixirByID[id]
	return e, ok
}

// TechniquesForRealm returns the techniques of one realm tier.
func (b *Bundle) TechniquesForRealm(r cultivation.Realm) []Technique {
	var out []Technique
	for _, t := range b.Techniques {
		if t.Realm == r {
			out = append(out, t)
		}
	}
	return out
}

// WeaponsForRealm returns the weapons of one realm tier.
func (b *Bundle) WeaponsForRealm(r cultivation.Realm) []Weapon {
	var out []Weapon
	for _, w := range b.Weapons {
		if w.Realm == r {
			out = append(out, w)
		}
	}
	return out
}

// Init builds the lookup maps of a hand-assembled bundle. Load calls it
// automatically; tests and tools assembling a Bundle literal must call it
// before lookups.
func (b *Bundle) Init() error {
	return b.buildIndexes()
}

func (b *Bundle) buildIndexes() error {
	b.sectByID = make(map[string]*SectInfo, len(b.Sects))
	for i := range b.Sects {
		if _, dup := b.sectByID[b.Sects[i].ID]; dup {
			return fmt.Errorf("duplicate sect id %q", b.Sects[i].ID)
		}
		b.sectByID[b.Sects[i].ID] = &b.Sects[i]
	}
	b.personaByID = make(map[string]*Persona, len(b.Personas))
	for i := range b.Personas {
		b.personaByID[b.Personas[i].ID] = &b.Personas[i]
	}
	b.techniqueByID = make(map[string]*Technique, len(b.Techniques))
	for i := range b.Techniques {
		b.techniqueByID[b.Techniques[i].ID] = &b.Techniques[i]
	}
	b.weaponByID = make(map[string]*Weapon, len(b.Weapons))
	for i := range b.Weapons {
		b.weaponByID[b.Weapons[i].ID] = &b.Weapons[i]
	}
	b.auxiliaryByID = make(map[string]*Auxiliary, len(b.Auxiliaries))
	for i := range b.Auxiliaries {
		b.auxiliaryByID[b.Auxiliaries[i].ID] = &b.Auxiliaries[i]
	}
	b.elixirByID = make(map[string]*Elixir, len(b.Elixirs))
	for i := range b.Elixirs {
		b.elixirByID[b.Elixirs[i].ID] = &b.Elixirs[i]
	}
	return nil
}
