package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/relation"
)

// countInteractions scans the tick's pending events and tallies one
// interaction per event per avatar pair, on both avatars' counters. Runs
// twice per tick (after actions, after the passive phases); the processed
// set keeps an event from being counted both times.
func (s *Simulator) countInteractions() {
	w := s.W
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range w.pending {
		if w.processed[e.ID] {
			continue
		}
		w.processed[e.ID] = true
		for i := 0; i < len(e.Participants); i++ {
			for j := i + 1; j < len(e.Participants); j++ {
				a, okA := w.Avatars.Get(e.Participants[i])
				b, okB := w.Avatars.Get(e.Participants[j])
				if !okA || !okB {
					continue
				}
				a.BumpInteraction(b.ID)
				b.BumpInteraction(a.ID)
			}
		}
	}
}

// phaseRelationEvolution asks, for every pair whose interaction count
// reached the threshold, whether the bond changes. The model picks from
// the labels the graph actually permits; without a model frequent
// interaction quietly becomes friendship.
func (s *Simulator) phaseRelationEvolution(ctx context.Context) {
	w := s.W

	type pairing struct {
		a, b  *avatar.Avatar
		count int
	}
	var due []pairing

	// Each pair is visited from its lower id. Resolving zeroes the count on
	// both sides and records the check.
	for _, a := range w.Avatars.Living() {
		otherIDs := make([]string, 0, len(a.Interactions))
		for id := range a.Interactions {
			otherIDs = append(otherIDs, id)
		}
		sort.Strings(otherIDs)
		for _, otherID := range otherIDs {
			if a.ID >= otherID {
				continue
			}
			if a.InteractionWith(otherID).Count < w.Cfg.Social.RelationCheckThreshold {
				continue
			}
			b, ok := w.Avatars.Get(otherID)
			if !ok || b.Dead {
				continue
			}
			due = append(due, pairing{a: a, b: b, count: a.InteractionWith(otherID).Count})
			a.ResetInteraction(b.ID)
			b.ResetInteraction(a.ID)
		}
	}

	var g errgroup.Group
	for _, p := range due {
		p := p
		existing, _ := w.Graph.Label(p.a.ID, p.b.ID)
		allowed := relation.PossibleNew(existing, p.a.Progress.Level, p.b.Progress.Level,
			p.a.Gender.Opposite(p.b.Gender))
		if len(allowed) == 0 && existing == "" {
			continue
		}

		if !w.LLMReady() {
			if existing == "" {
				s.applyRelation(p.a, p.b, relation.Friend, "grew familiar through repeated encounters")
			}
			continue
		}

		g.Go(func() error {
			decision, err := w.Tasks.ResolveRelation(ctx, s.relationVars(p.a, p.b, existing, allowed))
			if err != nil {
				slog.Warn("relation resolution failed", "a", p.a.Name, "b", p.b.Name, "err", err)
				return nil
			}
			switch {
			case decision.Cancel:
				if existing == "" || relation.IsInnate(existing) {
					return nil
				}
				if err := w.Graph.Cancel(p.a.ID, p.b.ID, existing); err == nil {
					reason := decision.Reason
					if reason == "" {
						reason = "their bond came apart"
					}
					w.Emit(event.New(w.Clock,
						fmt.Sprintf("%s and %s are no longer %s: %s", p.a.DisplayName(), p.b.DisplayName(), existing, reason),
						p.a.ID, p.b.ID))
				}
			case decision.Relation != "":
				label := relation.Label(decision.Relation)
				ok := false
				for _, l := range allowed {
					if l == label {
						ok = true
						break
					}
				}
				if !ok {
					slog.Warn("model picked disallowed relation", "a", p.a.Name, "b", p.b.Name, "relation", decision.Relation)
					return nil
				}
				reason := decision.Reason
				if reason == "" {
					reason = "their paths kept crossing"
				}
				s.applyRelation(p.a, p.b, label, reason)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// applyRelation writes the edge through the action environment so label
// side effects (sect enrollment on master/disciple) fire, and emits the
// pair event.
func (s *Simulator) applyRelation(a, b *avatar.Avatar, label relation.Label, reason string) {
	w := s.W
	if err := w.Env().SetRelation(a, b, label); err != nil {
		slog.Warn("relation assert failed", "a", a.Name, "b", b.Name, "relation", label, "err", err)
		return
	}
	w.Emit(event.New(w.Clock,
		fmt.Sprintf("%s now counts %s as %s: %s", a.DisplayName(), b.DisplayName(), label, reason),
		a.ID, b.ID))
}

func (s *Simulator) relationVars(a, b *avatar.Avatar, existing relation.Label, allowed []relation.Label) map[string]string {
	names := make([]string, len(allowed))
	for i, l := range allowed {
		names[i] = string(l)
	}
	current := "none"
	if existing != "" {
		current = string(existing)
	}
	return map[string]string{
		"name_a":        a.DisplayName(),
		"name_b":        b.DisplayName(),
		"persona_a":     s.personaLine(a),
		"persona_b":     s.personaLine(b),
		"current":       current,
		"allowed":       strings.Join(names, ", "),
		"recent_events": s.recentAvatarEventLines(a.ID),
	}
}

func (s *Simulator) personaLine(a *avatar.Avatar) string {
	if p, ok := s.W.Bundle().PersonaByID(a.PersonaID); ok {
		return p.Name + ": " + p.Description
	}
	return ""
}

// refreshDerivedRelations rebuilds the yearly snapshot of computed
// second-degree relations for every living avatar.
func (s *Simulator) refreshDerivedRelations() {
	w := s.W
	snapshot := make(map[string]map[string]relation.Label)
	for _, a := range w.Avatars.Living() {
		if d := w.Graph.Derived(a.ID); len(d) > 0 {
			snapshot[a.ID] = d
		}
	}
	w.mu.Lock()
	w.Derived = snapshot
	w.mu.Unlock()
}

// cleanupLongDead forgets avatars dead longer than the configured window:
// their edges, interaction counters, sect membership, runtime state, and
// store entry all go, along with the minor events of the same era.
func (s *Simulator) cleanupLongDead() {
	w := s.W
	removed := w.Avatars.RemoveLongDead(w.Clock, w.Cfg.Game.LongDeadCleanupYears)
	for _, id := range removed {
		w.Graph.RemoveAll(id)
		w.Sects.Leave(id)
		w.Runtime.Clear(id)
		for _, a := range w.Avatars.All() {
			a.DropInteraction(id)
		}
		w.mu.Lock()
		delete(w.Derived, id)
		w.mu.Unlock()
	}
	if len(removed) > 0 {
		slog.Debug("long-dead cleanup", "removed", len(removed))
	}

	cutoff := w.Clock.Add(-w.Cfg.Game.LongDeadCleanupYears * calendar.MonthsPerYear)
	if n, err := w.Log.Cleanup(true, cutoff); err != nil {
		slog.Warn("event log cleanup failed", "err", err)
	} else if n > 0 {
		slog.Debug("event log cleanup", "removed", n)
	}
}
