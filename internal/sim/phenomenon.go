package sim

import (
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

// phasePhenomenon keeps the celestial weather turning. The first run draws
// a phenomenon immediately; from then on one always holds, and each January
// whose elapsed years have run out the old phenomenon passes and a new one
// is drawn by table weight.
func (s *Simulator) phasePhenomenon() {
	w := s.W

	if w.Phenomenon != nil {
		if !w.Clock.IsJanuary() || !w.Phenomenon.DueForRotation(w.Clock) {
			return
		}
		w.Emit(event.NewMajor(w.Clock, "the "+w.Phenomenon.Name+" has passed; the heavens settle"))
		w.Phenomenon = nil
	}

	pool := w.Bundle().Phenomena
	if len(pool) == 0 {
		return
	}
	weights := make([]float64, len(pool))
	for i, p := range pool {
		weights[i] = p.Weight
	}
	i := w.Rand.WeightedIndex(weights)
	if i < 0 {
		return
	}
	entry := pool[i]
	w.Phenomenon = &world.Phenomenon{
		Key:               entry.Key,
		Name:              entry.Name,
		Description:       entry.Description,
		StartStamp:        w.Clock,
		Years:             entry.Years,
		CultivationFactor: entry.CultivationFactor,
		BreakthroughBonus: entry.BreakthroughBonus,
	}
	w.Emit(event.NewMajor(w.Clock, "the heavens stir: "+entry.Name+", "+entry.Description))
}

// phaseProsperity drifts every city's prosperity one step toward its
// cultivator headcount plus a floor, so busy cities grow rich and empty
// ones decay.
func (s *Simulator) phaseProsperity() {
	w := s.W
	counts := make(map[int]int)
	for _, a := range w.Avatars.Living() {
		if r := w.Map.RegionAt(a.X, a.Y); r != nil && r.Kind == world.KindCity {
			counts[r.ID]++
		}
	}
	for _, city := range w.Map.RegionsOfKind(world.KindCity) {
		target := float64(10 + counts[city.ID]*2)
		switch {
		case city.Prosperity < target:
			city.Prosperity++
		case city.Prosperity > target:
			city.Prosperity--
		}
	}
}
