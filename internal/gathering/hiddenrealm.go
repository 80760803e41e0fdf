package gathering

import (
	"fmt"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/sim"
)

// HiddenRealm schedule and stakes.
const (
	hiddenRealmEveryYears = 15
	hiddenRealmMonth      = 9
	hiddenRealmPartySize  = 6

	hiddenRealmInjuryChance = 0.25
	hiddenRealmDeathChance  = 0.05
)

// HiddenRealm is an ancient realm cracking open at random: a handful of
// cultivators venture in for exp and spirit stones, and some do not come
// back whole. Deaths here only wound to the brink; the death-resolution
// phase decides whether the wounds finish the job.
type HiddenRealm struct{}

func (HiddenRealm) Name() string { return "hidden_realm" }

// ShouldStart fires in autumn every fifteenth year after the start year.
func (h HiddenRealm) ShouldStart(w *sim.World) bool {
	elapsed := w.Clock.Year() - w.Cfg.Game.StartYear
	return w.Clock.Month() == hiddenRealmMonth && elapsed > 0 && elapsed%hiddenRealmEveryYears == 0
}

func (h HiddenRealm) Run(w *sim.World) []event.Event {
	party := h.drawParty(w)
	if len(party) == 0 {
		return nil
	}

	events := []event.Event{
		event.NewMajor(w.Clock, "a hidden realm has cracked open; bold cultivators rush its gate"),
	}
	bundle := w.Bundle()
	for _, a := range party {
		switch {
		case w.Rand.Chance(hiddenRealmDeathChance):
			a.Damage(a.HP)
			events = append(events, event.New(w.Clock,
				fmt.Sprintf("%s was carried out of the hidden realm at death's door", a.DisplayName()), a.ID))
		case w.Rand.Chance(hiddenRealmInjuryChance):
			a.Damage(a.HPMax(bundle) * w.Rand.Between(20, 50) / 100)
			gain := h.reward(w, a)
			events = append(events, event.New(w.Clock,
				fmt.Sprintf("%s left the hidden realm wounded but %d spirit stones richer", a.DisplayName(), gain), a.ID))
		default:
			gain := h.reward(w, a)
			a.Progress.AddExp(100 * (1 + int(a.Progress.Realm())))
			events = append(events, event.New(w.Clock,
				fmt.Sprintf("%s returned from the hidden realm with insight and %d spirit stones", a.DisplayName(), gain), a.ID))
		}
	}
	return events
}

// drawParty samples up to hiddenRealmPartySize living cultivators whose
// current action leaves them free to answer the call.
func (HiddenRealm) drawParty(w *sim.World) []*avatar.Avatar {
	var free []*avatar.Avatar
	for _, a := range w.Avatars.Living() {
		if w.Runtime.AllowsGathering(a.ID) {
			free = append(free, a)
		}
	}
	if len(free) == 0 {
		return nil
	}
	w.Rand.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })
	if len(free) > hiddenRealmPartySize {
		free = free[:hiddenRealmPartySize]
	}
	return free
}

func (HiddenRealm) reward(w *sim.World, a *avatar.Avatar) int {
	gain := w.Rand.Between(50, 200) * (1 + int(a.Progress.Realm()))
	a.SpiritStones += gain
	return gain
}
