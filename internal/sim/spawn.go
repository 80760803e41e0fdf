package sim

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/cultivation"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/gamedata"
	"github.com/xiaocai218/cultivation-world-simulator/internal/sect"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

// Genesis sizing knobs. Region counts scale with the configured sect count.
const (
	citiesAtGenesis         = 3
	cultivateSpotsAtGenesis = 4
	wildsAtGenesis          = 3
	mortalsPerCity          = 20
)

// Genesis builds the map, founds the sects, and spawns the initial avatar
// and mortal population.
func (w *World) Genesis() error {
	bundle := w.Bundle()

	seeds, err := w.regionSeeds(bundle)
	if err != nil {
		return err
	}
	m, err := world.Generate(world.GenConfig{
		Width:  60,
		Height: 40,
		Seed:   int64(w.Rand.Intn(1 << 30)),
	}, seeds)
	if err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	w.Map = m

	w.foundSects(bundle)
	w.spawnInitialAvatars(bundle)
	w.spawnInitialMortals(bundle)

	w.Rankings = ComputeRankings(w)
	w.Emit(event.NewMajor(w.Clock, "the spiritual veins of the land stirred, and an age of cultivation began"))
	return nil
}

func (w *World) regionSeeds(bundle *gamedata.Bundle) ([]world.RegionSeed, error) {
	sectCount := w.Cfg.Game.SectNum
	if sectCount > len(bundle.Sects) {
		sectCount = len(bundle.Sects)
	}
	if sectCount == 0 {
		return nil, fmt.Errorf("genesis: no sects in static data")
	}

	var seeds []world.RegionSeed
	for i := 0; i < sectCount; i++ {
		info := bundle.Sects[i]
		seeds = append(seeds, world.RegionSeed{
			Name: info.Name, Kind: world.KindSectHQ, Radius: 2, SectID: info.ID,
		})
	}
	pick := func(kind string, i int, fallback string) string {
		pool := bundle.RegionNames[kind]
		if i < len(pool) {
			return pool[i]
		}
		return fmt.Sprintf("%s %d", fallback, i+1)
	}
	for i := 0; i < citiesAtGenesis; i++ {
		seeds = append(seeds, world.RegionSeed{Name: pick("city", i, "City"), Kind: world.KindCity, Radius: 2})
	}
	for i := 0; i < cultivateSpotsAtGenesis; i++ {
		seeds = append(seeds, world.RegionSeed{Name: pick("cultivate_spot", i, "Grotto"), Kind: world.KindCultivateSpot, Radius: 1})
	}
	for i := 0; i < wildsAtGenesis; i++ {
		seeds = append(seeds, world.RegionSeed{Name: pick("wild", i, "Wilds"), Kind: world.KindWild, Radius: 3})
	}
	return seeds, nil
}

func (w *World) foundSects(bundle *gamedata.Bundle) {
	for _, r := range w.Map.RegionsOfKind(world.KindSectHQ) {
		info, ok := bundle.SectByID(r.SectID)
		if !ok {
			continue
		}
		w.Sects.Add(sect.New(info.ID, info.Name, info.Description, r.ID))
	}
}

// levelWeights skews the starting population toward the bottom realms.
var levelWeights = []float64{70, 20, 8, 2}

func (w *World) rollStartLevel() int {
	realm := w.Rand.WeightedIndex(levelWeights)
	if realm < 0 {
		realm = 0
	}
	lo := realm*cultivation.LevelsPerRealm + 1
	return w.Rand.Between(lo, lo+cultivation.LevelsPerRealm-1)
}

func (w *World) spawnInitialAvatars(bundle *gamedata.Bundle) {
	sectHQs := w.Map.RegionsOfKind(world.KindSectHQ)
	cities := w.Map.RegionsOfKind(world.KindCity)

	for i := 0; i < w.Cfg.Game.InitNPCNum; i++ {
		gender := avatar.Male
		if w.Rand.Chance(0.5) {
			gender = avatar.Female
		}
		name := w.RollName(bundle, gender)
		level := w.rollStartLevel()
		ageYears := w.Rand.Between(16, 16+level)
		birth := w.Clock.Add(-ageYears * calendar.MonthsPerYear)

		// Spawn inside a sect HQ or a city, alternating by roll.
		var home *world.Region
		if len(sectHQs) > 0 && w.Rand.Chance(0.6) {
			home = sectHQs[w.Rand.Intn(len(sectHQs))]
		} else if len(cities) > 0 {
			home = cities[w.Rand.Intn(len(cities))]
		}
		x, y := 0, 0
		if home != nil {
			x, y = home.CenterX, home.CenterY
		}

		a := avatar.New(uuid.NewString(), name, gender, birth, x, y)
		a.Progress = cultivation.NewProgress(level)
		a.HP = a.HPMax(bundle)
		a.SpiritStones = w.Rand.Between(10, 100)
		w.equip(bundle, a)
		if len(bundle.Personas) > 0 {
			a.PersonaID = bundle.Personas[w.Rand.Intn(len(bundle.Personas))].ID
		}
		if home != nil {
			a.KnownRegionIDs[home.ID] = true
			if home.Kind == world.KindSectHQ {
				_ = w.Sects.Join(home.SectID, a.ID, a.Progress.Realm())
			} else {
				a.HomeCityID = home.ID
			}
		}
		w.Avatars.Add(a)
	}
	// Genesis spawns are history, not news; drop the birth ledger.
	w.Avatars.DrainNewlyBorn()

	// The strongest member of each sect leads it.
	for _, s := range w.Sects.All() {
		var best *avatar.Avatar
		for _, id := range s.Members() {
			a, ok := w.Avatars.Get(id)
			if !ok {
				continue
			}
			if best == nil || a.Progress.Level > best.Progress.Level {
				best = a
			}
		}
		if best != nil {
			_ = w.Sects.SetLeader(s.ID, best.ID)
		}
	}
}

// equip hands out a technique and weapon matching the avatar's realm.
func (w *World) equip(bundle *gamedata.Bundle, a *avatar.Avatar) {
	realm := a.Progress.Realm()
	if ts := bundle.TechniquesForRealm(realm); len(ts) > 0 {
		a.TechniqueID = ts[w.Rand.Intn(len(ts))].ID
	}
	if ws := bundle.WeaponsForRealm(realm); len(ws) > 0 {
		a.WeaponID = ws[w.Rand.Intn(len(ws))].ID
	}
}

func (w *World) spawnInitialMortals(bundle *gamedata.Bundle) {
	for _, city := range w.Map.RegionsOfKind(world.KindCity) {
		for i := 0; i < mortalsPerCity; i++ {
			gender := avatar.Male
			if w.Rand.Chance(0.5) {
				gender = avatar.Female
			}
			age := w.Rand.Between(1, 50)
			w.Avatars.AddMortal(&avatar.Mortal{
				ID:         uuid.NewString(),
				Name:       w.RollName(bundle, gender),
				Gender:     gender,
				BirthStamp: w.Clock.Add(-age * calendar.MonthsPerYear),
				CityID:     city.ID,
			})
		}
	}
}

// RollName draws surname plus given name from the language's pools.
func (w *World) RollName(bundle *gamedata.Bundle, gender avatar.Gender) string {
	surname := "Wu"
	if len(bundle.Surnames) > 0 {
		surname = bundle.Surnames[w.Rand.Intn(len(bundle.Surnames))]
	}
	pool := bundle.MaleNames
	if gender == avatar.Female {
		pool = bundle.FemaleNames
	}
	given := "Ming"
	if len(pool) > 0 {
		given = pool[w.Rand.Intn(len(pool))]
	}
	return surname + " " + given
}
