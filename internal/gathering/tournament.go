// Package gathering implements the scheduled world occasions the gathering
// phase fires: the grand tournament, the treasure auction, and hidden realm
// openings. Each implements sim.Gathering and is registered at startup.
package gathering

import (
	"fmt"
	"sort"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/cultivation"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/sim"
)

// Tournament schedule and purse.
const (
	tournamentEveryYears = 10
	bracketSize          = 4

	championPurse  = 10000
	runnerUpPurse  = 5000
	semifinalPurse = 2000
)

// tournamentBands are the divisions fought separately. Nascent Soul
// cultivators fight in the Core Formation band; there are never enough of
// them for their own bracket.
var tournamentBands = []struct {
	name string
	min  cultivation.Realm
	max  cultivation.Realm
}{
	{"Qi Refinement division", cultivation.QiRefinement, cultivation.QiRefinement},
	{"Foundation Establishment division", cultivation.FoundationEstablishment, cultivation.FoundationEstablishment},
	{"Core Formation division", cultivation.CoreFormation, cultivation.NascentSoul},
}

// Tournament is the decennial grand tournament: the four strongest of each
// division fight a single-elimination bracket for spirit stones and fame.
type Tournament struct{}

func (Tournament) Name() string { return "grand_tournament" }

// ShouldStart fires every tenth January, counted from the start year. The
// start year itself is quiet; the world needs time to settle first.
func (Tournament) ShouldStart(w *sim.World) bool {
	elapsed := w.Clock.Year() - w.Cfg.Game.StartYear
	return w.Clock.IsJanuary() && elapsed > 0 && elapsed%tournamentEveryYears == 0
}

func (t Tournament) Run(w *sim.World) []event.Event {
	events := []event.Event{
		event.NewMajor(w.Clock, fmt.Sprintf("the Grand Tournament of year %d convenes", w.Clock.Year())),
	}
	for _, band := range tournamentBands {
		events = append(events, t.runBracket(w, band.name, band.min, band.max)...)
	}
	return events
}

func (t Tournament) runBracket(w *sim.World, bandName string, min, max cultivation.Realm) []event.Event {
	var pool []*avatar.Avatar
	for _, a := range w.Avatars.Living() {
		if !w.Runtime.AllowsGathering(a.ID) {
			continue
		}
		if r := a.Progress.Realm(); r >= min && r <= max {
			pool = append(pool, a)
		}
	}
	if len(pool) < bracketSize {
		return nil
	}
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Progress.Level != pool[j].Progress.Level {
			return pool[i].Progress.Level > pool[j].Progress.Level
		}
		return pool[i].ID < pool[j].ID
	})
	seeds := pool[:bracketSize]

	var events []event.Event
	duel := func(a, b *avatar.Avatar) (*avatar.Avatar, *avatar.Avatar) {
		winner, loser := a, b
		if !t.firstWins(w, a, b) {
			winner, loser = b, a
		}
		events = append(events, event.New(w.Clock,
			fmt.Sprintf("%s defeated %s in the %s", winner.DisplayName(), loser.DisplayName(), bandName),
			winner.ID, loser.ID))
		return winner, loser
	}

	// Seeded single elimination: 1v4, 2v3, winners meet.
	finalistA, semiLoserA := duel(seeds[0], seeds[3])
	finalistB, semiLoserB := duel(seeds[1], seeds[2])
	champion, runnerUp := duel(finalistA, finalistB)

	champion.SpiritStones += championPurse
	runnerUp.SpiritStones += runnerUpPurse
	semiLoserA.SpiritStones += semifinalPurse
	semiLoserB.SpiritStones += semifinalPurse

	events = append(events, event.NewMajor(w.Clock,
		fmt.Sprintf("%s is crowned champion of the %s", champion.DisplayName(), bandName),
		champion.ID, runnerUp.ID))
	return events
}

// firstWins resolves a duel probabilistically by attack power, so upsets
// happen but rarely.
func (Tournament) firstWins(w *sim.World, a, b *avatar.Avatar) bool {
	bundle := w.Bundle()
	pa := float64(a.AttackPower(bundle, w.Clock))
	pb := float64(b.AttackPower(bundle, w.Clock))
	if pa+pb <= 0 {
		return true
	}
	return w.Rand.Chance(pa / (pa + pb))
}
