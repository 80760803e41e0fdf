package avatar

import (
	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
)

// Mortal is an unawakened person living in a city. Mortals exist so that
// bloodlines mean something: avatars father mortal children, and a mortal
// may awaken into a new avatar carrying the same id.
type Mortal struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Gender     Gender              `json:"gender"`
	BirthStamp calendar.MonthStamp `json:"birth_stamp"`
	CityID     int                 `json:"city_id"`
	// ParentAvatarIDs holds the cultivator parents, when any. A mortal
	// with cultivator blood rolls the bloodline awakening rate.
	ParentAvatarIDs []string `json:"parent_avatar_ids,omitempty"`
}

// HasCultivatorBlood reports whether an avatar parent is on record.
func (m *Mortal) HasCultivatorBlood() bool {
	return len(m.ParentAvatarIDs) > 0
}

// AgeYears returns whole years lived at the given month.
func (m *Mortal) AgeYears(now calendar.MonthStamp) int {
	return now.YearsSince(m.BirthStamp)
}

// Awakening age window: outside it a mortal never awakens.
const (
	MinAwakeningAge = 16
	MaxAwakeningAge = 60
)

// MortalLifespanYears is how long an unawakened mortal lives.
const MortalLifespanYears = 80

// CanAwaken reports whether the mortal is inside the awakening window.
func (m *Mortal) CanAwaken(now calendar.MonthStamp) bool {
	age := m.AgeYears(now)
	return age >= MinAwakeningAge && age <= MaxAwakeningAge
}

// Awaken converts the mortal into a level-1 avatar at the given position,
// keeping the mortal's identity.
func (m *Mortal) Awaken(now calendar.MonthStamp, x, y int) *Avatar {
	a := New(m.ID, m.Name, m.Gender, m.BirthStamp, x, y)
	a.HomeCityID = m.CityID
	a.SpiritStones = 10
	return a
}
