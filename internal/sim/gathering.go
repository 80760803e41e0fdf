package sim

import (
	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
)

// Gathering is a scheduled world occasion: a tournament, an auction, a
// hidden realm opening. Implementations live in the gathering package and
// are registered by the composition root.
type Gathering interface {
	// Name identifies the gathering in logs and the last-run table.
	Name() string
	// ShouldStart reports whether the gathering fires this month.
	ShouldStart(w *World) bool
	// Run executes the gathering and returns the events it produced.
	Run(w *World) []event.Event
}

// GatheringManager fires registered gatherings on their own schedules
// during the gathering phase.
type GatheringManager struct {
	gatherings []Gathering
	lastRun    map[string]calendar.MonthStamp
}

// NewGatheringManager returns an empty manager.
func NewGatheringManager() *GatheringManager {
	return &GatheringManager{lastRun: make(map[string]calendar.MonthStamp)}
}

// Register appends a gathering. Registration order is run order.
func (m *GatheringManager) Register(g Gathering) {
	m.gatherings = append(m.gatherings, g)
}

// LastRun returns the month the named gathering last fired.
func (m *GatheringManager) LastRun(name string) (calendar.MonthStamp, bool) {
	s, ok := m.lastRun[name]
	return s, ok
}

// RanAt returns the names of gatherings that fired in the given month, in
// registration order.
func (m *GatheringManager) RanAt(stamp calendar.MonthStamp) []string {
	var out []string
	for _, g := range m.gatherings {
		if s, ok := m.lastRun[g.Name()]; ok && s == stamp {
			out = append(out, g.Name())
		}
	}
	return out
}

// Schedule exports the last-run table for persistence.
func (m *GatheringManager) Schedule() map[string]calendar.MonthStamp {
	out := make(map[string]calendar.MonthStamp, len(m.lastRun))
	for name, s := range m.lastRun {
		out[name] = s
	}
	return out
}

// RestoreSchedule loads a persisted last-run table.
func (m *GatheringManager) RestoreSchedule(sched map[string]calendar.MonthStamp) {
	m.lastRun = make(map[string]calendar.MonthStamp, len(sched))
	for name, s := range sched {
		m.lastRun[name] = s
	}
}

// Run fires every gathering whose schedule says so and collects their
// events.
func (m *GatheringManager) Run(w *World) []event.Event {
	var out []event.Event
	for _, g := range m.gatherings {
		if !g.ShouldStart(w) {
			continue
		}
		out = append(out, g.Run(w)...)
		m.lastRun[g.Name()] = w.Clock
	}
	return out
}
