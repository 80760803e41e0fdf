package sim

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/gamedata"
	"github.com/xiaocai218/cultivation-world-simulator/internal/relation"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

// phaseDeath resolves the month's casualties: anyone at zero HP succumbs,
// anyone past the realm lifespan expires. Death clears the runtime state
// and any hosted spot but leaves relations intact; the living remember.
func (s *Simulator) phaseDeath() {
	w := s.W
	for _, a := range w.Avatars.Living() {
		var reason string
		switch {
		case a.HP <= 0:
			reason = "succumbed to wounds"
		case a.LifespanExceeded(w.Clock):
			reason = "lifespan exhausted"
		default:
			continue
		}
		s.killAvatar(a, reason)
	}
}

func (s *Simulator) killAvatar(a *avatar.Avatar, reason string) {
	w := s.W
	w.Avatars.MarkDead(a.ID, reason, w.Clock)
	w.Runtime.Clear(a.ID)
	if a.OccupiedRegionID != 0 {
		if r, ok := w.Map.Regions[a.OccupiedRegionID]; ok {
			a.ReleaseRegion(r)
		}
	}
	w.Sects.Leave(a.ID)
	w.Emit(event.NewMajor(w.Clock,
		fmt.Sprintf("%s (%s, age %d) has died: %s", a.DisplayName(), a.Progress.Realm(), a.AgeYears(w.Clock), reason),
		a.ID))
}

// birthChancePerMonth is the monthly roll for each lover pair to produce
// a mortal child.
const birthChancePerMonth = 0.03

// bloodlineAwakeningRate is the monthly awakening chance for mortals with
// a cultivator parent.
const bloodlineAwakeningRate = 0.05

// phaseAwakeningAndBirth handles generational churn: lover pairs may have
// a mortal child, mortals with cultivator blood may awaken, a rogue
// cultivator may wander in from the wilds, and mortals past the mortal
// lifespan pass away.
func (s *Simulator) phaseAwakeningAndBirth() {
	w := s.W
	bundle := w.Bundle()

	// Births. Each lover pair rolls once; iterate owners sorted and only
	// act on the lower id so the pair is seen once.
	for _, a := range w.Avatars.Living() {
		for _, partnerID := range w.Graph.TargetsWith(a.ID, relation.Lover) {
			if a.ID >= partnerID {
				continue
			}
			partner, ok := w.Avatars.Get(partnerID)
			if !ok || partner.Dead {
				continue
			}
			if !w.Rand.Chance(birthChancePerMonth) {
				continue
			}
			s.bearChild(bundle, a, partner)
		}
	}

	// Awakenings come from two springs, both dry when the rate is zero:
	// bloodline mortals roll their own chance, and the world itself rolls
	// once for a rogue cultivator nobody has heard of.
	if w.Cfg.Game.NPCAwakeningRatePerMonth > 0 {
		for _, m := range w.Avatars.Mortals() {
			if !m.CanAwaken(w.Clock) || !m.HasCultivatorBlood() {
				continue
			}
			if !w.Rand.Chance(bloodlineAwakeningRate) {
				continue
			}
			s.awakenMortal(m)
		}
		if w.Rand.Chance(w.Cfg.Game.NPCAwakeningRatePerMonth) {
			s.spawnRogue(bundle)
		}
	}

	for _, m := range w.Avatars.PurgeElderlyMortals(w.Clock, avatar.MortalLifespanYears) {
		slog.Debug("mortal passed of old age", "mortal", m)
	}
}

// bearChild adds a mortal child of the pair to a city: a parent's home
// city when one exists, any city otherwise.
func (s *Simulator) bearChild(bundle *gamedata.Bundle, a, b *avatar.Avatar) {
	w := s.W
	cityID := a.HomeCityID
	if cityID == 0 {
		cityID = b.HomeCityID
	}
	if cityID == 0 {
		if cities := w.Map.RegionsOfKind(world.KindCity); len(cities) > 0 {
			cityID = cities[w.Rand.Intn(len(cities))].ID
		}
	}

	gender := avatar.Male
	if w.Rand.Chance(0.5) {
		gender = avatar.Female
	}
	child := &avatar.Mortal{
		ID:              uuid.NewString(),
		Name:            w.RollName(bundle, gender),
		Gender:          gender,
		BirthStamp:      w.Clock,
		CityID:          cityID,
		ParentAvatarIDs: []string{a.ID, b.ID},
	}
	w.Avatars.AddMortal(child)
	w.Emit(event.New(w.Clock,
		fmt.Sprintf("a child, %s, was born to %s and %s", child.Name, a.DisplayName(), b.DisplayName()),
		a.ID, b.ID))
}

func (s *Simulator) awakenMortal(m *avatar.Mortal) {
	w := s.W
	x, y := 0, 0
	if city, ok := w.Map.Regions[m.CityID]; ok {
		x, y = city.CenterX, city.CenterY
	}
	child := m.Awaken(w.Clock, x, y)
	if len(w.Bundle().Personas) > 0 {
		child.PersonaID = w.Bundle().Personas[w.Rand.Intn(len(w.Bundle().Personas))].ID
	}
	if city, ok := w.Map.Regions[m.CityID]; ok {
		child.KnownRegionIDs[city.ID] = true
	}
	w.Avatars.PromoteMortal(m.ID, child)

	// Blood ties carry over into the graph.
	for _, parentID := range m.ParentAvatarIDs {
		if _, ok := w.Avatars.Get(parentID); !ok {
			continue
		}
		if err := w.Graph.Set(child.ID, parentID, relation.Parent, w.Clock); err != nil {
			slog.Warn("parent edge on awakening failed", "child", child.Name, "err", err)
		}
	}

	w.Emit(event.NewMajor(w.Clock,
		fmt.Sprintf("%s of %s has awakened to the spiritual path", child.Name, s.regionName(m.CityID)),
		child.ID))
}

// spawnRogue brings a brand-new cultivator into the world out of nowhere:
// no mortal past, no home city, awakened somewhere in the wilds.
func (s *Simulator) spawnRogue(bundle *gamedata.Bundle) {
	w := s.W
	gender := avatar.Male
	if w.Rand.Chance(0.5) {
		gender = avatar.Female
	}
	ageYears := w.Rand.Between(avatar.MinAwakeningAge, avatar.MaxAwakeningAge)
	birth := w.Clock.Add(-ageYears * calendar.MonthsPerYear)

	x, y := w.Rand.Intn(w.Map.Width), w.Rand.Intn(w.Map.Height)
	if wilds := w.Map.RegionsOfKind(world.KindWild); len(wilds) > 0 {
		r := wilds[w.Rand.Intn(len(wilds))]
		x, y = r.CenterX, r.CenterY
	}

	a := avatar.New(uuid.NewString(), w.RollName(bundle, gender), gender, birth, x, y)
	a.SpiritStones = w.Rand.Between(10, 50)
	w.equip(bundle, a)
	if len(bundle.Personas) > 0 {
		a.PersonaID = bundle.Personas[w.Rand.Intn(len(bundle.Personas))].ID
	}
	if r := w.Map.RegionAt(x, y); r != nil {
		a.KnownRegionIDs[r.ID] = true
	}
	w.Avatars.Add(a)

	w.Emit(event.NewMajor(w.Clock,
		fmt.Sprintf("a rogue cultivator, %s, emerged from the wilds", a.Name), a.ID))
}

func (s *Simulator) regionName(id int) string {
	if r, ok := s.W.Map.Regions[id]; ok {
		return r.Name
	}
	return "the wilds"
}

// phaseBackstory writes an origin story for every avatar that entered the
// world this tick. Returns the drained birth ledger; story writing is
// skipped entirely without a model.
func (s *Simulator) phaseBackstory(ctx context.Context) []string {
	w := s.W
	born := w.Avatars.DrainNewlyBorn()
	if len(born) == 0 || !w.LLMReady() {
		return born
	}

	var g errgroup.Group
	for _, id := range born {
		a, ok := w.Avatars.Get(id)
		if !ok || a.Backstory != "" {
			continue
		}
		g.Go(func() error {
			story, err := w.Tasks.Backstory(ctx, s.promptVars(a))
			if err != nil {
				slog.Warn("backstory failed", "avatar", a.Name, "err", err)
				return nil
			}
			a.Backstory = story
			return nil
		})
	}
	_ = g.Wait()
	return born
}
