package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

// perceptionRadius is how far (Manhattan) an avatar notices regions each
// month.
const perceptionRadius = 8

// Simulator drives the world one month per tick. Ticks are strictly
// sequential; the auto-run loop and the manual step share one mutex.
type Simulator struct {
	W *World

	tickMu  sync.Mutex
	running atomic.Bool
	stopCh  chan struct{}

	// OnTick, when set, receives a summary after every tick. The API
	// layer uses it to feed websocket subscribers.
	OnTick func(TickSummary)
	// OnNotice, when set, receives out-of-band control messages such as
	// the gateway going unhealthy.
	OnNotice func(kind, message string)
}

// AvatarDelta is one avatar's per-tick observable state.
type AvatarDelta struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Action string `json:"action,omitempty"`
	Emoji  string `json:"emoji,omitempty"`
	Dead   bool   `json:"dead,omitempty"`
}

// TickSummary is the per-tick frame pushed to observers.
type TickSummary struct {
	Stamp      string            `json:"stamp"`
	Year       int               `json:"year"`
	Month      int               `json:"month"`
	Living     int               `json:"living"`
	Events     []event.Event     `json:"events,omitempty"`
	Avatars    []AvatarDelta     `json:"avatars,omitempty"`
	Deaths     []string          `json:"deaths,omitempty"`
	Births     []string          `json:"births,omitempty"`
	Phenomenon *world.Phenomenon `json:"phenomenon,omitempty"`
	Gatherings []string          `json:"gatherings,omitempty"`
}

// NewSimulator wraps a world.
func NewSimulator(w *World) *Simulator {
	return &Simulator{W: w}
}

// Tick advances the world one month through the full phase pipeline.
func (s *Simulator) Tick(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	w := s.W
	start := time.Now()
	env := w.Env()

	s.phasePerception()
	s.phaseGoalReview(ctx)
	w.Emit(w.Gatherings.Run(w)...)
	ranGatherings := w.Gatherings.RanAt(w.Clock)
	s.phaseDecide(ctx)

	for _, a := range w.Avatars.Living() {
		w.Emit(w.Runtime.CommitNext(env, a)...)
	}
	w.Emit(w.Runtime.ExecuteMonth(env, w.Cfg.Game.MaxActionRoundsPerTurn)...)

	s.countInteractions()
	s.phaseRelationEvolution(ctx)
	s.phaseDeath()
	s.phaseAwakeningAndBirth()
	births := s.phaseBackstory(ctx)
	s.phaseFortune()
	s.phaseNickname(ctx)
	s.phasePhenomenon()
	s.phaseProsperity()
	s.countInteractions()

	if w.Clock.IsJanuary() {
		s.refreshDerivedRelations()
		s.cleanupLongDead()
	}

	stamp := w.Clock
	deaths := w.Avatars.DrainNewlyDead()

	appended, err := s.finalize()
	if err != nil {
		return fmt.Errorf("tick finalize: %w", err)
	}

	slog.Info("tick complete",
		"stamp", stamp.String(),
		"living", w.Avatars.LivingCount(),
		"events", len(appended),
		"took", time.Since(start),
	)
	if s.OnTick != nil {
		living := w.Avatars.Living()
		deltas := make([]AvatarDelta, 0, len(living))
		for _, a := range living {
			deltas = append(deltas, AvatarDelta{
				ID: a.ID, Name: a.DisplayName(), X: a.X, Y: a.Y,
				Action: w.Runtime.CurrentName(a.ID),
				Emoji:  w.Runtime.CurrentEmoji(a.ID),
			})
		}
		for _, id := range deaths {
			if a, ok := w.Avatars.Get(id); ok {
				deltas = append(deltas, AvatarDelta{
					ID: a.ID, Name: a.DisplayName(), X: a.X, Y: a.Y, Dead: true,
				})
			}
		}
		var phen *world.Phenomenon
		if w.Phenomenon.ActiveAt(w.Clock) {
			phen = w.Phenomenon
		}
		s.OnTick(TickSummary{
			Stamp:      stamp.String(),
			Year:       stamp.Year(),
			Month:      stamp.Month(),
			Living:     len(living),
			Events:     appended,
			Avatars:    deltas,
			Deaths:     deaths,
			Births:     births,
			Phenomenon: phen,
			Gatherings: ranGatherings,
		})
	}
	return nil
}

// phasePerception reclaims cultivate spots whose host is gone, then widens
// every living avatar's known map. A spotless avatar that notices a free
// cultivate spot claims it on sight.
func (s *Simulator) phasePerception() {
	w := s.W
	for _, r := range w.Map.RegionsOfKind(world.KindCultivateSpot) {
		if !r.Occupied() {
			continue
		}
		host, ok := w.Avatars.Get(r.HostAvatarID)
		if !ok || host.Dead {
			r.HostAvatarID = ""
		}
	}
	for _, a := range w.Avatars.Living() {
		for _, r := range w.Map.RegionsWithin(a.X, a.Y, perceptionRadius) {
			a.KnownRegionIDs[r.ID] = true
			if a.OccupiedRegionID != 0 || r.Kind != world.KindCultivateSpot || r.Occupied() {
				continue
			}
			if err := a.OccupyRegion(r); err == nil {
				w.Emit(event.New(w.Clock,
					fmt.Sprintf("%s came upon the unclaimed %s and took it as a cultivation ground", a.DisplayName(), r.Name),
					a.ID))
			}
		}
	}
}

// finalize dedupes the tick's events by id, appends them to the log,
// resets the scratch buffers, and advances the clock. January refreshes
// the ranking boards. Returns the appended batch.
func (s *Simulator) finalize() ([]event.Event, error) {
	w := s.W

	w.mu.Lock()
	seen := make(map[string]bool, len(w.pending))
	deduped := make([]event.Event, 0, len(w.pending))
	for _, e := range w.pending {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		deduped = append(deduped, e)
	}
	w.pending = nil
	w.processed = make(map[string]bool)
	w.mu.Unlock()

	if err := w.Log.Append(deduped); err != nil {
		return nil, err
	}

	w.Clock = w.Clock.Add(1)
	if w.Clock.IsJanuary() {
		w.Rankings = ComputeRankings(w)
	}
	return deduped, nil
}

// Run ticks on an interval until the context ends or Stop is called.
// Returns immediately when already running.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.stopCh = make(chan struct{})
	go func() {
		defer s.running.Store(false)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				if !s.W.LLMReady() && s.W.Tasks != nil && s.W.Tasks.Enabled() {
					// Gateway down: idle until it recovers rather than
					// burning months on fallback behavior.
					slog.Warn("llm gateway unhealthy; pausing auto ticks")
					if s.OnNotice != nil {
						s.OnNotice("llm_unhealthy", "llm gateway unhealthy; auto ticks paused until it recovers")
					}
					continue
				}
				if err := s.Tick(ctx); err != nil {
					slog.Error("tick failed", "err", err)
				}
			}
		}
	}()
}

// Stop halts the auto-run loop.
func (s *Simulator) Stop() {
	if s.running.CompareAndSwap(true, false) {
		close(s.stopCh)
	}
}

// Running reports whether the auto loop is active.
func (s *Simulator) Running() bool {
	return s.running.Load()
}
