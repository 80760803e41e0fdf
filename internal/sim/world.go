// Package sim owns the world aggregate and the monthly tick pipeline that
// advances it.
package sim

import (
	"sync"

	"github.com/xiaocai218/cultivation-world-simulator/internal/action"
	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/config"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/gamedata"
	"github.com/xiaocai218/cultivation-world-simulator/internal/llm"
	"github.com/xiaocai218/cultivation-world-simulator/internal/relation"
	"github.com/xiaocai218/cultivation-world-simulator/internal/rng"
	"github.com/xiaocai218/cultivation-world-simulator/internal/sect"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

// World is the complete mutable state of one simulation run.
type World struct {
	Cfg   *config.Config
	Clock calendar.MonthStamp

	Map     *world.Map
	Avatars *avatar.Store
	Graph   *relation.Graph
	Sects   *sect.Manager
	Data    *gamedata.Store
	Runtime *action.Runtime
	Log     *event.Log
	Rand    *rng.Source
	Tasks   *llm.Tasks

	// Phenomenon is the active celestial condition, nil between them.
	Phenomenon *world.Phenomenon

	// Derived is the yearly snapshot of computed second-degree relations,
	// keyed by avatar id. Refreshed every January, read by prompts and
	// the API between refreshes.
	Derived map[string]map[string]relation.Label

	// Gatherings fire world events on their own schedules.
	Gatherings *GatheringManager

	// Rankings is the latest leaderboard snapshot.
	Rankings *Rankings

	// mu guards the cross-phase scratch state below.
	mu sync.Mutex
	// pending collects this tick's events until finalize appends them.
	pending []event.Event
	// processed remembers which event ids already fed the interaction
	// counters so the two counting phases never double-count.
	processed map[string]bool
}

// NewWorld assembles an empty world around the given services. Genesis
// populates it.
func NewWorld(cfg *config.Config, data *gamedata.Store, log *event.Log, tasks *llm.Tasks, seed int64) *World {
	return &World{
		Cfg:        cfg,
		Clock:      calendar.New(cfg.Game.StartYear, 1),
		Avatars:    avatar.NewStore(),
		Graph:      relation.NewGraph(),
		Sects:      sect.NewManager(),
		Data:       data,
		Runtime:    action.NewRuntime(action.DefaultRegistry()),
		Log:        log,
		Rand:       rng.New(seed),
		Tasks:      tasks,
		Derived:    make(map[string]map[string]relation.Label),
		Gatherings: NewGatheringManager(),
		Rankings:   &Rankings{},
		processed:  make(map[string]bool),
	}
}

// Bundle returns the live static tables.
func (w *World) Bundle() *gamedata.Bundle {
	return w.Data.Bundle()
}

// Env builds the action environment for the current month.
func (w *World) Env() *action.Env {
	return &action.Env{
		Now:              w.Clock,
		Map:              w.Map,
		Avatars:          w.Avatars,
		Graph:            w.Graph,
		Sects:            w.Sects,
		Rand:             w.Rand,
		Runtime:          w.Runtime,
		Data:             w.Data.Bundle,
		ActivePhenomenon: func() *world.Phenomenon { return w.Phenomenon },
	}
}

// Emit buffers events for this tick's finalize.
func (w *World) Emit(events ...event.Event) {
	if len(events) == 0 {
		return
	}
	w.mu.Lock()
	w.pending = append(w.pending, events...)
	w.mu.Unlock()
}

// PendingEvents returns a copy of the tick buffer.
func (w *World) PendingEvents() []event.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]event.Event, len(w.pending))
	copy(out, w.pending)
	return out
}

// DerivedOf returns the snapshot of computed relations for one avatar.
func (w *World) DerivedOf(id string) map[string]relation.Label {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Derived[id]
}

// LLMReady reports whether LLM phases should run this tick.
func (w *World) LLMReady() bool {
	return w.Tasks != nil && w.Tasks.Enabled() && w.Tasks.Healthy()
}
