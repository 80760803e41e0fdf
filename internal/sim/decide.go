package sim

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/xiaocai218/cultivation-world-simulator/internal/action"
	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
)

// goalReviewEveryMonths spaces out the objective-review calls; an avatar
// with no objectives at all is reviewed immediately.
const goalReviewEveryMonths = 12

// phaseGoalReview lets each avatar reconsider its objectives. Calls fan
// out concurrently; the gateway's semaphore enforces the real bound.
func (s *Simulator) phaseGoalReview(ctx context.Context) {
	w := s.W
	if !w.LLMReady() {
		return
	}

	var g errgroup.Group
	for _, a := range w.Avatars.Living() {
		a := a
		due := a.ShortTermObjective == "" ||
			int(w.Clock)%goalReviewEveryMonths == int(a.BirthStamp)%goalReviewEveryMonths
		if !due {
			continue
		}
		g.Go(func() error {
			review, err := w.Tasks.ReviewGoals(ctx, s.promptVars(a))
			if err != nil {
				slog.Warn("goal review failed", "avatar", a.Name, "err", err)
				return nil
			}
			if review.ShortTermObjective != "" {
				a.ShortTermObjective = review.ShortTermObjective
			}
			if review.LongTermObjective != "" {
				a.LongTermObjective = review.LongTermObjective
			}
			return nil
		})
	}
	_ = g.Wait()
}

// phaseDecide fills the plan queue of every idle avatar, via the model
// when available and a survival heuristic otherwise.
func (s *Simulator) phaseDecide(ctx context.Context) {
	w := s.W

	var idle []*avatar.Avatar
	for _, a := range w.Avatars.Living() {
		if w.Runtime.Idle(a.ID) {
			idle = append(idle, a)
		}
	}
	if len(idle) == 0 {
		return
	}

	if !w.LLMReady() {
		for _, a := range idle {
			w.Runtime.SetPlans(a.ID, s.fallbackPlans(a))
		}
		return
	}

	var g errgroup.Group
	for _, a := range idle {
		a := a
		g.Go(func() error {
			decision, err := w.Tasks.Decide(ctx, s.promptVars(a))
			if err != nil {
				slog.Warn("decide failed, using fallback", "avatar", a.Name, "err", err)
				w.Runtime.SetPlans(a.ID, s.fallbackPlans(a))
				return nil
			}
			a.Thinking = decision.Thinking
			if decision.ShortTermObjective != "" {
				a.ShortTermObjective = decision.ShortTermObjective
			}
			plans := make([]action.Plan, 0, len(decision.Plans))
			for _, p := range decision.Plans {
				if _, ok := w.Runtime.Registry().Get(p.Action); !ok {
					slog.Warn("model picked unknown action", "avatar", a.Name, "action", p.Action)
					continue
				}
				plans = append(plans, action.Plan{Action: p.Action, Params: action.Params(p.Params)})
			}
			if len(plans) == 0 {
				plans = s.fallbackPlans(a)
			}
			w.Runtime.SetPlans(a.ID, plans)
			return nil
		})
	}
	_ = g.Wait()
}

// fallbackPlans keeps the world moving without a model: heal when hurt,
// break through when ready, otherwise cultivate.
func (s *Simulator) fallbackPlans(a *avatar.Avatar) []action.Plan {
	b := s.W.Bundle()
	switch {
	case a.HP*2 < a.HPMax(b):
		return []action.Plan{{Action: "rest"}}
	case a.Progress.InBottleneck():
		// Rest is the backstop when the breakthrough is still on cooldown.
		return []action.Plan{{Action: "breakthrough"}, {Action: "rest"}}
	default:
		return []action.Plan{{Action: "cultivate", Params: action.Params{"months": 3}}}
	}
}

// promptVars assembles the template substitutions describing one avatar's
// situation: identity, surroundings, relations, and recent events.
func (s *Simulator) promptVars(a *avatar.Avatar) map[string]string {
	w := s.W
	b := w.Bundle()

	persona := ""
	if p, ok := b.PersonaByID(a.PersonaID); ok {
		persona = p.Name + ": " + p.Description
	}
	sectLine := "unaffiliated"
	if sc := w.Sects.SectOf(a.ID); sc != nil {
		rank, _ := sc.RankOf(a.ID)
		sectLine = fmt.Sprintf("%s (%s)", sc.Name, rank)
	}

	var regions []string
	for id := range a.KnownRegionIDs {
		if r, ok := w.Map.Regions[id]; ok {
			regions = append(regions, fmt.Sprintf("%s (%s, id %d)", r.Name, r.Kind, r.ID))
		}
	}

	var relations []string
	for target, label := range w.Graph.EdgesOf(a.ID) {
		if other, ok := w.Avatars.Get(target); ok {
			relations = append(relations, fmt.Sprintf("%s is your %s", other.DisplayName(), label))
		}
	}
	for target, label := range w.DerivedOf(a.ID) {
		if other, ok := w.Avatars.Get(target); ok {
			relations = append(relations, fmt.Sprintf("%s is your %s", other.DisplayName(), label))
		}
	}

	phenomenon := "none"
	if w.Phenomenon != nil && w.Phenomenon.ActiveAt(w.Clock) {
		phenomenon = w.Phenomenon.Name + ": " + w.Phenomenon.Description
	}

	return map[string]string{
		"name":          a.DisplayName(),
		"gender":        string(a.Gender),
		"age":           strconv.Itoa(a.AgeYears(w.Clock)),
		"realm":         a.Progress.Realm().String(),
		"level":         strconv.Itoa(a.Progress.Level),
		"hp":            fmt.Sprintf("%d/%d", a.HP, a.HPMax(b)),
		"spirit_stones": strconv.Itoa(a.SpiritStones),
		"persona":       persona,
		"sect":          sectLine,
		"short_term":    a.ShortTermObjective,
		"long_term":     a.LongTermObjective,
		"known_regions": strings.Join(regions, "; "),
		"relations":     strings.Join(relations, "; "),
		"phenomenon":    phenomenon,
		"actions":       strings.Join(w.Runtime.Registry().Names(), ", "),
		"month":         strconv.Itoa(w.Clock.Month()),
		"year":          strconv.Itoa(w.Clock.Year()),
		"world_history": w.Cfg.Game.WorldHistory,
		"major_events":  s.recentMajorEventLines(),
		"recent_events": s.recentAvatarEventLines(a.ID),
	}
}

func (s *Simulator) recentMajorEventLines() string {
	events, err := s.W.Log.RecentMajor(s.W.Cfg.Social.MajorEventContextNum)
	if err != nil {
		return ""
	}
	return joinEventLines(events)
}

func (s *Simulator) recentAvatarEventLines(id string) string {
	events, err := s.W.Log.ForAvatar(id, 0, s.W.Cfg.Social.MinorEventContextNum, event.FilterAll)
	if err != nil {
		return ""
	}
	return joinEventLines(events)
}

func joinEventLines(events []event.Event) string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, e.String())
	}
	return strings.Join(lines, "\n")
}
