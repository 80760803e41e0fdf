// Package avatar defines cultivator and mortal entities and the store that
// owns them. Avatars are plain structs; cross-entity rules (relations,
// actions, sect membership) live in their own packages and reference
// avatars by id.
package avatar

import (
	"fmt"

	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/cultivation"
	"github.com/xiaocai218/cultivation-world-simulator/internal/gamedata"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

// Gender of an avatar or mortal.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// Opposite reports whether two genders differ.
func (g Gender) Opposite(other Gender) bool {
	return g != other
}

// Effect is a temporary modifier granted by fortunes, phenomena side
// effects, or gathering rewards. It expires silently.
type Effect struct {
	Kind      string              `json:"kind"`
	Factor    float64             `json:"factor"`
	ExpiresAt calendar.MonthStamp `json:"expires_at"`
}

// Effect kinds recognized by the passive-effects phase.
const (
	EffectCultivationSpeed = "cultivation_speed"
	EffectAttack           = "attack"
)

// InteractionCounter tracks how often this avatar and one other have shared
// an event since their relation was last reviewed. CheckedTimes counts the
// reviews themselves.
type InteractionCounter struct {
	Count        int `json:"count"`
	CheckedTimes int `json:"checked_times"`
}

// ConsumedElixir records a dose taken, so repeat doses of the same elixir
// are refused until the first wears off.
type ConsumedElixir struct {
	ElixirID string              `json:"elixir_id"`
	Stamp    calendar.MonthStamp `json:"stamp"`
	Months   int                 `json:"months"`
}

// Expired reports whether the dose has worn off at the given month.
func (c ConsumedElixir) Expired(now calendar.MonthStamp) bool {
	return now.MonthsSince(c.Stamp) >= c.Months
}

// Avatar is one cultivator. Everything here is serializable state; live
// action bookkeeping stays in the action runtime.
type Avatar struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Nickname   string              `json:"nickname,omitempty"`
	Gender     Gender              `json:"gender"`
	BirthStamp calendar.MonthStamp `json:"birth_stamp"`
	PersonaID  string              `json:"persona_id"`
	Backstory  string              `json:"backstory,omitempty"`

	Progress cultivation.Progress `json:"progress"`
	HP       int                  `json:"hp"`

	X int `json:"x"`
	Y int `json:"y"`
	// OccupiedRegionID is the cultivate spot this avatar hosts, 0 when
	// none. The region's HostAvatarID mirrors it.
	OccupiedRegionID int `json:"occupied_region_id,omitempty"`
	// HomeCityID is the city whose mortal family this avatar awakened
	// from, 0 for wild awakeners.
	HomeCityID int `json:"home_city_id,omitempty"`

	SpiritStones int            `json:"spirit_stones"`
	WeaponID     string         `json:"weapon_id,omitempty"`
	AuxiliaryID  string         `json:"auxiliary_id,omitempty"`
	TechniqueID  string         `json:"technique_id,omitempty"`
	Elixirs      map[string]int `json:"elixirs,omitempty"`

	Effects []Effect `json:"effects,omitempty"`

	// Consumed holds elixir doses still in effect; at most one live record
	// per elixir id.
	Consumed []ConsumedElixir `json:"consumed_elixirs,omitempty"`

	// Interactions maps the other avatar's id to the shared-event counter
	// feeding relation reviews.
	Interactions map[string]*InteractionCounter `json:"interactions,omitempty"`

	// Cooldowns maps action name to the month it last ran.
	Cooldowns map[string]calendar.MonthStamp `json:"cooldowns,omitempty"`

	// KnownRegionIDs grows through the perception phase.
	KnownRegionIDs map[int]bool `json:"known_region_ids,omitempty"`

	// LLM-authored state.
	Thinking           string `json:"thinking,omitempty"`
	ShortTermObjective string `json:"short_term_objective,omitempty"`
	LongTermObjective  string `json:"long_term_objective,omitempty"`

	Dead        bool                `json:"dead,omitempty"`
	DeathStamp  calendar.MonthStamp `json:"death_stamp,omitempty"`
	DeathReason string              `json:"death_reason,omitempty"`
}

// New creates a living level-1 avatar at the given position.
func New(id, name string, gender Gender, birth calendar.MonthStamp, x, y int) *Avatar {
	a := &Avatar{
		ID:             id,
		Name:           name,
		Gender:         gender,
		BirthStamp:     birth,
		Progress:       cultivation.NewProgress(1),
		X:              x,
		Y:              y,
		Elixirs:        make(map[string]int),
		Cooldowns:      make(map[string]calendar.MonthStamp),
		KnownRegionIDs: make(map[int]bool),
	}
	a.HP = a.HPMax(nil)
	return a
}

// AgeYears returns whole years lived at the given month.
func (a *Avatar) AgeYears(now calendar.MonthStamp) int {
	return now.YearsSince(a.BirthStamp)
}

// LifespanExceeded reports whether the avatar has outlived its realm's
// ceiling.
func (a *Avatar) LifespanExceeded(now calendar.MonthStamp) bool {
	return a.AgeYears(now) >= cultivation.MaxLifespanYears[a.Progress.Realm()]
}

// HPMax is the realm base plus auxiliary defense. The bundle may be nil
// during construction.
func (a *Avatar) HPMax(b *gamedata.Bundle) int {
	max := cultivation.HPMaxByRealm[a.Progress.Realm()]
	if b != nil && a.AuxiliaryID != "" {
		if aux, ok := b.AuxiliaryByID(a.AuxiliaryID); ok {
			max += aux.Defense * 10
		}
	}
	return max
}

// AttackPower is level plus weapon attack plus temporary attack effects.
func (a *Avatar) AttackPower(b *gamedata.Bundle, now calendar.MonthStamp) int {
	atk := a.Progress.Level
	if b != nil && a.WeaponID != "" {
		if w, ok := b.WeaponByID(a.WeaponID); ok {
			atk += w.Attack
		}
	}
	for _, e := range a.Effects {
		if e.Kind == EffectAttack && now < e.ExpiresAt {
			atk = int(float64(atk) * e.Factor)
		}
	}
	return atk
}

// CultivationFactor multiplies monthly exp gain: technique, auxiliary, and
// temporary effects stack multiplicatively.
func (a *Avatar) CultivationFactor(b *gamedata.Bundle, now calendar.MonthStamp) float64 {
	f := 1.0
	if b != nil {
		if a.TechniqueID != "" {
			if t, ok := b.TechniqueByID(a.TechniqueID); ok {
				f *= t.ExpFactor
			}
		}
		if a.AuxiliaryID != "" {
			if aux, ok := b.AuxiliaryByID(a.AuxiliaryID); ok && aux.CultivationFactor > 0 {
				f *= aux.CultivationFactor
			}
		}
	}
	for _, e := range a.Effects {
		if e.Kind == EffectCultivationSpeed && now < e.ExpiresAt {
			f *= e.Factor
		}
	}
	return f
}

// AddEffect appends a temporary effect.
func (a *Avatar) AddEffect(e Effect) {
	a.Effects = append(a.Effects, e)
}

// PruneEffects drops expired effects.
func (a *Avatar) PruneEffects(now calendar.MonthStamp) {
	kept := a.Effects[:0]
	for _, e := range a.Effects {
		if now < e.ExpiresAt {
			kept = append(kept, e)
		}
	}
	a.Effects = kept
}

// Injured reports whether HP sits below the current maximum.
func (a *Avatar) Injured(b *gamedata.Bundle) bool {
	return a.HP < a.HPMax(b)
}

// Damage reduces HP, clamped at zero. Returns the HP after the hit.
func (a *Avatar) Damage(amount int) int {
	if amount > 0 {
		a.HP -= amount
		if a.HP < 0 {
			a.HP = 0
		}
	}
	return a.HP
}

// Heal restores HP up to the maximum.
func (a *Avatar) Heal(amount int, b *gamedata.Bundle) {
	if amount <= 0 {
		return
	}
	a.HP += amount
	if max := a.HPMax(b); a.HP > max {
		a.HP = max
	}
}

// GainElixir adds one dose to the satchel.
func (a *Avatar) GainElixir(elixirID string) {
	if a.Elixirs == nil {
		a.Elixirs = make(map[string]int)
	}
	a.Elixirs[elixirID]++
}

// ConsumeElixir spends one dose and applies it. Healing elixirs are wasted
// on the unhurt and are refused; exp elixirs from a lower realm than the
// drinker grant half effect. A dose whose predecessor has not worn off yet
// is refused.
func (a *Avatar) ConsumeElixir(elixirID string, b *gamedata.Bundle, now calendar.MonthStamp) error {
	if a.Elixirs[elixirID] <= 0 {
		return fmt.Errorf("consume elixir: %s has no %s", a.Name, elixirID)
	}
	e, ok := b.ElixirByID(elixirID)
	if !ok {
		return fmt.Errorf("consume elixir: unknown elixir %q", elixirID)
	}
	if a.HasActiveElixir(elixirID, now) {
		return fmt.Errorf("consume elixir: %s still feels the last %s", a.Name, e.Name)
	}
	switch e.Kind {
	case gamedata.ElixirHeal:
		if !a.Injured(b) {
			return fmt.Errorf("consume elixir: %s is unhurt", a.Name)
		}
		a.Elixirs[elixirID]--
		a.Heal(e.Amount, b)
	case gamedata.ElixirExp:
		a.Elixirs[elixirID]--
		amount := e.Amount
		if e.Realm < a.Progress.Realm() {
			amount /= 2
		}
		a.Progress.AddExp(amount)
	}
	if e.DurationMonths > 0 {
		a.Consumed = append(a.Consumed, ConsumedElixir{
			ElixirID: elixirID,
			Stamp:    now,
			Months:   e.DurationMonths,
		})
	}
	return nil
}

// HasActiveElixir reports whether an unexpired dose of the elixir is on
// record.
func (a *Avatar) HasActiveElixir(elixirID string, now calendar.MonthStamp) bool {
	for _, c := range a.Consumed {
		if c.ElixirID == elixirID && !c.Expired(now) {
			return true
		}
	}
	return false
}

// PruneConsumed drops worn-off doses.
func (a *Avatar) PruneConsumed(now calendar.MonthStamp) {
	kept := a.Consumed[:0]
	for _, c := range a.Consumed {
		if !c.Expired(now) {
			kept = append(kept, c)
		}
	}
	a.Consumed = kept
}

// BumpInteraction counts one shared event with the other avatar.
func (a *Avatar) BumpInteraction(otherID string) {
	if a.Interactions == nil {
		a.Interactions = make(map[string]*InteractionCounter)
	}
	c, ok := a.Interactions[otherID]
	if !ok {
		c = &InteractionCounter{}
		a.Interactions[otherID] = c
	}
	c.Count++
}

// InteractionWith returns a copy of the counter toward the other avatar.
func (a *Avatar) InteractionWith(otherID string) InteractionCounter {
	if c, ok := a.Interactions[otherID]; ok {
		return *c
	}
	return InteractionCounter{}
}

// ResetInteraction zeroes the count toward the other avatar and records the
// review.
func (a *Avatar) ResetInteraction(otherID string) {
	if a.Interactions == nil {
		a.Interactions = make(map[string]*InteractionCounter)
	}
	c, ok := a.Interactions[otherID]
	if !ok {
		c = &InteractionCounter{}
		a.Interactions[otherID] = c
	}
	c.Count = 0
	c.CheckedTimes++
}

// DropInteraction forgets the counter toward the other avatar entirely.
func (a *Avatar) DropInteraction(otherID string) {
	delete(a.Interactions, otherID)
}

// OccupyRegion seats the avatar as host of a cultivate spot, keeping both
// sides of the invariant.
func (a *Avatar) OccupyRegion(r *world.Region) error {
	if r.Kind != world.KindCultivateSpot {
		return fmt.Errorf("occupy region: %s is not a cultivate spot", r.Name)
	}
	if r.Occupied() && r.HostAvatarID != a.ID {
		return fmt.Errorf("occupy region: %s already hosted by %s", r.Name, r.HostAvatarID)
	}
	r.HostAvatarID = a.ID
	a.OccupiedRegionID = r.ID
	return nil
}

// ReleaseRegion clears the occupancy if this avatar holds it.
func (a *Avatar) ReleaseRegion(r *world.Region) {
	if r == nil {
		return
	}
	if r.HostAvatarID == a.ID {
		r.HostAvatarID = ""
	}
	if a.OccupiedRegionID == r.ID {
		a.OccupiedRegionID = 0
	}
}

// OnCooldown reports whether the named action ran within the window.
func (a *Avatar) OnCooldown(action string, now calendar.MonthStamp, months int) bool {
	last, ok := a.Cooldowns[action]
	if !ok {
		return false
	}
	return now.MonthsSince(last) < months
}

// MarkCooldown records a run of the named action.
func (a *Avatar) MarkCooldown(action string, now calendar.MonthStamp) {
	if a.Cooldowns == nil {
		a.Cooldowns = make(map[string]calendar.MonthStamp)
	}
	a.Cooldowns[action] = now
}

// DisplayName is the nickname when earned, otherwise the birth name.
func (a *Avatar) DisplayName() string {
	if a.Nickname != "" {
		return fmt.Sprintf("%s %q", a.Name, a.Nickname)
	}
	return a.Name
}

func (a *Avatar) String() string {
	return fmt.Sprintf("%s (lv%d %s)", a.Name, a.Progress.Level, a.Progress.Realm())
}
