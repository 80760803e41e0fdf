package world

import "github.com/xiaocai218/cultivation-world-simulator/internal/calendar"

// Phenomenon is the worldwide celestial condition. Exactly one holds once
// the first is drawn; the January rotation replaces it when its years run
// out.
type Phenomenon struct {
	Key         string              `json:"key"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	StartStamp  calendar.MonthStamp `json:"start_stamp"`
	Years       int                 `json:"years"`

	// CultivationFactor scales exp gain from cultivating while the
	// phenomenon holds. 1.0 is neutral.
	CultivationFactor float64 `json:"cultivation_factor"`
	// BreakthroughBonus is added to breakthrough success probability.
	BreakthroughBonus float64 `json:"breakthrough_bonus"`
}

// ActiveAt reports whether the phenomenon still holds at the given month.
func (p *Phenomenon) ActiveAt(now calendar.MonthStamp) bool {
	if p == nil {
		return false
	}
	return now.YearsSince(p.StartStamp) < p.Years
}

// DueForRotation reports whether the phenomenon's span has elapsed.
func (p *Phenomenon) DueForRotation(now calendar.MonthStamp) bool {
	if p == nil {
		return true
	}
	return now.YearsSince(p.StartStamp) >= p.Years
}
