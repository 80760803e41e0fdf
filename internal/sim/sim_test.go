package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaocai218/cultivation-world-simulator/internal/action"
	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/config"
	"github.com/xiaocai218/cultivation-world-simulator/internal/cultivation"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/gamedata"
	"github.com/xiaocai218/cultivation-world-simulator/internal/relation"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

func testBundle(t *testing.T) *gamedata.Bundle {
	t.Helper()
	b := &gamedata.Bundle{
		Language: "en-US",
		Sects: []gamedata.SectInfo{
			{ID: "azure", Name: "Azure Cloud Sect", Description: "sword cultivators"},
			{ID: "ember", Name: "Ember Valley Sect", Description: "fire cultivators"},
		},
		Personas: []gamedata.Persona{
			{ID: "calm", Name: "Calm", Description: "measured and patient"},
		},
		Techniques: []gamedata.Technique{
			{ID: "breath", Name: "Azure Breath", Realm: cultivation.QiRefinement, ExpFactor: 1.0},
			{ID: "torrent", Name: "Torrent Art", Realm: cultivation.FoundationEstablishment, ExpFactor: 1.2},
		},
		Weapons: []gamedata.Weapon{
			{ID: "iron_sword", Name: "Iron Sword", Realm: cultivation.QiRefinement, Attack: 5},
		},
		Elixirs: []gamedata.Elixir{
			{ID: "heal_pill", Name: "Mending Pill", Realm: cultivation.QiRefinement, Kind: gamedata.ElixirHeal, Amount: 40},
		},
		Fortunes: []gamedata.FortuneEntry{
			{ID: "windfall", Kind: "spirit_stones", Weight: 1, Text: "{name} stumbled on an abandoned cache"},
		},
		Misfortunes: []gamedata.FortuneEntry{
			{ID: "robbed", Kind: "stone_loss", Weight: 1, Text: "{name} was robbed on the road"},
		},
		Phenomena: []gamedata.PhenomenonEntry{
			{Key: "spirit_tide", Name: "Spirit Tide", Years: 2, CultivationFactor: 1.5, BreakthroughBonus: 0.2, Weight: 1, Description: "spirit energy surges"},
		},
		Surnames:    []string{"Li", "Zhao"},
		MaleNames:   []string{"Feng"},
		FemaleNames: []string{"Mei"},
		RegionNames: map[string][]string{
			"city":           {"Stonegate", "Riverfall", "Duskport"},
			"cultivate_spot": {"Moon Grotto", "Cloud Hollow", "Jade Spring", "Echo Cavern"},
			"wild":           {"Ash Plains", "Black Marsh", "Thorn Forest"},
		},
	}
	require.NoError(t, b.Init())
	return b
}

func testConfig() *config.Config {
	return &config.Config{
		Game: config.Game{
			InitNPCNum:               12,
			SectNum:                  2,
			NPCAwakeningRatePerMonth: 0,
			StartYear:                100,
			MaxActionRoundsPerTurn:   3,
			FortuneProbability:       0,
			MisfortuneProbability:    0,
			LongDeadCleanupYears:     10,
		},
		Social: config.Social{
			RelationCheckThreshold: 3,
			MajorEventContextNum:   10,
			MinorEventContextNum:   20,
		},
	}
}

func testWorld(t *testing.T) *World {
	t.Helper()
	log, err := event.OpenLog(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	store := gamedata.NewStoreFromBundle("", testBundle(t))
	w := NewWorld(testConfig(), store, log, nil, 11)
	require.NoError(t, w.Genesis())
	return w
}

func TestGenesisPopulatesWorld(t *testing.T) {
	w := testWorld(t)

	assert.Equal(t, 12, w.Avatars.LivingCount())
	assert.Len(t, w.Sects.All(), 2)
	assert.NotEmpty(t, w.Map.RegionsOfKind(world.KindCity))
	assert.NotEmpty(t, w.Avatars.Mortals())

	for _, s := range w.Sects.All() {
		if s.MemberCount() > 0 {
			assert.NotEmpty(t, s.LeaderID, "populated sect %s has no leader", s.Name)
		}
	}
	// Genesis history must not leave a stale birth ledger.
	assert.Empty(t, w.Avatars.DrainNewlyBorn())
}

func TestTickAdvancesClockAndAppendsEvents(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	before := w.Clock

	require.NoError(t, s.Tick(context.Background()))

	assert.Equal(t, before.Add(1), w.Clock)
	assert.Empty(t, w.PendingEvents(), "finalize must drain the buffer")
	seq, err := w.Log.LastSeq()
	require.NoError(t, err)
	assert.Greater(t, seq, int64(0), "genesis event should be in the log")
}

func TestTickFrameCarriesWorldState(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)

	var frame TickSummary
	s.OnTick = func(ts TickSummary) { frame = ts }
	before := w.Clock

	require.NoError(t, s.Tick(context.Background()))

	assert.Equal(t, before.Year(), frame.Year)
	assert.Equal(t, before.Month(), frame.Month)
	assert.Equal(t, w.Avatars.LivingCount(), frame.Living)
	require.Len(t, frame.Avatars, frame.Living)
	for _, d := range frame.Avatars {
		assert.NotEmpty(t, d.ID)
	}
}

func TestFinalizeDedupesByEventID(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)

	e := event.New(w.Clock, "the same tale told twice")
	w.Emit(e)
	w.Emit(e)

	appended, err := s.finalize()
	require.NoError(t, err)
	// Pending held the genesis event plus our pair; the duplicate collapses.
	assert.Len(t, appended, 2)
}

func TestCountInteractionsOncePerEvent(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	living := w.Avatars.Living()
	a, b := living[0], living[1]

	e := event.New(w.Clock, "sparring match", a.ID, b.ID)
	w.Emit(e)
	s.countInteractions()
	s.countInteractions()

	assert.Equal(t, 1, a.InteractionWith(b.ID).Count)
	assert.Equal(t, 1, b.InteractionWith(a.ID).Count)
}

func TestRelationEvolutionFallbackBefriends(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	living := w.Avatars.Living()
	a, b := living[0], living[1]

	for i := 0; i < w.Cfg.Social.RelationCheckThreshold; i++ {
		w.Emit(event.New(w.Clock, "crossed paths", a.ID, b.ID))
	}
	s.countInteractions()
	s.phaseRelationEvolution(context.Background())

	label, ok := w.Graph.Label(a.ID, b.ID)
	require.True(t, ok)
	assert.Equal(t, relation.Friend, label)

	// The check zeroes the tally on both sides and is remembered.
	assert.Equal(t, avatar.InteractionCounter{Count: 0, CheckedTimes: 1}, a.InteractionWith(b.ID))
	assert.Equal(t, avatar.InteractionCounter{Count: 0, CheckedTimes: 1}, b.InteractionWith(a.ID))
}

func TestDeathClearsRuntimeAndSect(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	living := w.Avatars.Living()
	victim := living[0]
	friend := living[1]
	require.NoError(t, w.Graph.Set(victim.ID, friend.ID, relation.Friend, w.Clock))

	victim.HP = 0
	s.phaseDeath()

	got, _ := w.Avatars.Get(victim.ID)
	assert.True(t, got.Dead)
	assert.Equal(t, "succumbed to wounds", got.DeathReason)
	assert.Nil(t, w.Sects.SectOf(victim.ID))
	assert.True(t, w.Runtime.Idle(victim.ID))

	// The living remember the dead until the long-dead cleanup.
	_, ok := w.Graph.Label(friend.ID, victim.ID)
	assert.True(t, ok)
}

func TestLifespanDeath(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	elder := w.Avatars.Living()[0]
	elder.Progress = cultivation.NewProgress(1)
	elder.BirthStamp = w.Clock.Add(-101 * calendar.MonthsPerYear)

	s.phaseDeath()

	got, _ := w.Avatars.Get(elder.ID)
	assert.True(t, got.Dead)
	assert.Equal(t, "lifespan exhausted", got.DeathReason)
}

func TestDeathReleasesHostedSpot(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	host := w.Avatars.Living()[0]
	spot := w.Map.RegionsOfKind(world.KindCultivateSpot)[0]
	require.NoError(t, host.OccupyRegion(spot))

	host.HP = 0
	s.phaseDeath()

	assert.False(t, spot.Occupied())
}

func TestPerceptionClaimsFreeSpot(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	finder := w.Avatars.Living()[0]
	spots := w.Map.RegionsOfKind(world.KindCultivateSpot)
	require.GreaterOrEqual(t, len(spots), 2)
	spot := spots[0]
	require.False(t, spot.Occupied())
	finder.X, finder.Y = spot.CenterX, spot.CenterY

	// Everyone else already hosts a ground somewhere and will not compete.
	for _, other := range w.Avatars.Living() {
		if other.ID != finder.ID {
			other.OccupiedRegionID = 999
		}
	}

	s.phasePerception()

	assert.Equal(t, finder.ID, spot.HostAvatarID)
	assert.Equal(t, spot.ID, finder.OccupiedRegionID)
	claimed := false
	for _, e := range w.PendingEvents() {
		if len(e.Participants) == 1 && e.Participants[0] == finder.ID {
			claimed = true
		}
	}
	assert.True(t, claimed, "the claim should be announced")

	// A host never claims a second spot.
	second := spots[1]
	finder.X, finder.Y = second.CenterX, second.CenterY
	s.phasePerception()
	assert.False(t, second.Occupied())
}

func TestFortuneSparesShutInCultivators(t *testing.T) {
	w := testWorld(t)
	w.Cfg.Game.FortuneProbability = 1
	s := NewSimulator(w)
	hermit := w.Avatars.Living()[0]
	w.Runtime.SetPlans(hermit.ID, []action.Plan{{Action: "cultivate"}})
	w.Runtime.CommitNext(w.Env(), hermit)
	require.Equal(t, "cultivate", w.Runtime.CurrentName(hermit.ID))
	before := hermit.SpiritStones

	s.phaseFortune()

	assert.Equal(t, before, hermit.SpiritStones, "closed-door cultivation shuts the world out")
}

func TestRogueAwakening(t *testing.T) {
	w := testWorld(t)
	w.Cfg.Game.NPCAwakeningRatePerMonth = 1
	s := NewSimulator(w)

	known := make(map[string]bool)
	for _, a := range w.Avatars.Living() {
		known[a.ID] = true
	}
	mortalsBefore := len(w.Avatars.Mortals())

	s.phaseAwakeningAndBirth()

	// A rogue walks in from nowhere: a brand-new avatar, no mortal consumed.
	living := w.Avatars.Living()
	require.Len(t, living, len(known)+1)
	assert.Len(t, w.Avatars.Mortals(), mortalsBefore)
	var rogue *avatar.Avatar
	for _, a := range living {
		if !known[a.ID] {
			rogue = a
		}
	}
	require.NotNil(t, rogue)
	assert.Equal(t, 1, rogue.Progress.Level)
	assert.Equal(t, 0, rogue.HomeCityID)
	assert.GreaterOrEqual(t, rogue.AgeYears(w.Clock), avatar.MinAwakeningAge)
	assert.LessOrEqual(t, rogue.AgeYears(w.Clock), avatar.MaxAwakeningAge)
}

func TestRogueAwakeningGatedByRate(t *testing.T) {
	w := testWorld(t)
	w.Cfg.Game.NPCAwakeningRatePerMonth = 0
	s := NewSimulator(w)
	before := w.Avatars.LivingCount()

	s.phaseAwakeningAndBirth()

	assert.Equal(t, before, w.Avatars.LivingCount())
}

func TestElderlyMortalsPass(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	elder := &avatar.Mortal{
		ID:         "old-one",
		Name:       "Zhao Wen",
		Gender:     avatar.Male,
		BirthStamp: w.Clock.Add(-(avatar.MortalLifespanYears + 1) * calendar.MonthsPerYear),
		CityID:     w.Map.RegionsOfKind(world.KindCity)[0].ID,
	}
	w.Avatars.AddMortal(elder)
	young := len(w.Avatars.Mortals()) - 1

	s.phaseAwakeningAndBirth()

	_, still := w.Avatars.Mortal("old-one")
	assert.False(t, still, "mortals past the mortal lifespan must pass away")
	assert.Len(t, w.Avatars.Mortals(), young, "the young are untouched")
}

func TestAwakeningWiresParentEdges(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	parent := w.Avatars.Living()[0]

	m := &avatar.Mortal{
		ID:              "mortal-child",
		Name:            "Li Xiao",
		Gender:          avatar.Male,
		BirthStamp:      w.Clock.Add(-20 * calendar.MonthsPerYear),
		CityID:          w.Map.RegionsOfKind(world.KindCity)[0].ID,
		ParentAvatarIDs: []string{parent.ID},
	}
	w.Avatars.AddMortal(m)

	s.awakenMortal(m)

	label, ok := w.Graph.Label("mortal-child", parent.ID)
	require.True(t, ok)
	assert.Equal(t, relation.Parent, label)
	recip, _ := w.Graph.Label(parent.ID, "mortal-child")
	assert.Equal(t, relation.Child, recip)
}

func TestLoverBirthCreatesMortal(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	living := w.Avatars.Living()

	var male, female *avatar.Avatar
	for _, a := range living {
		if a.Gender == avatar.Male && male == nil {
			male = a
		}
		if a.Gender == avatar.Female && female == nil {
			female = a
		}
	}
	require.NotNil(t, male)
	require.NotNil(t, female)
	require.NoError(t, w.Graph.Set(male.ID, female.ID, relation.Lover, w.Clock))

	before := len(w.Avatars.Mortals())
	s.bearChild(w.Bundle(), male, female)

	mortals := w.Avatars.Mortals()
	require.Len(t, mortals, before+1)
	var child *avatar.Mortal
	for _, m := range mortals {
		if m.HasCultivatorBlood() {
			child = m
		}
	}
	require.NotNil(t, child)
	assert.ElementsMatch(t, []string{male.ID, female.ID}, child.ParentAvatarIDs)
}

func TestFortuneRollGrantsStones(t *testing.T) {
	w := testWorld(t)
	w.Cfg.Game.FortuneProbability = 1
	s := NewSimulator(w)

	living := w.Avatars.Living()
	before := make(map[string]int, len(living))
	for _, a := range living {
		before[a.ID] = a.SpiritStones
	}

	s.phaseFortune()

	for _, a := range living {
		assert.Greater(t, a.SpiritStones, before[a.ID], "%s missed the windfall", a.Name)
	}
	assert.NotEmpty(t, w.PendingEvents())
}

func TestMisfortuneNeverBankrupts(t *testing.T) {
	w := testWorld(t)
	w.Cfg.Game.MisfortuneProbability = 1
	s := NewSimulator(w)
	pauper := w.Avatars.Living()[0]
	pauper.SpiritStones = 5

	s.phaseFortune()

	assert.GreaterOrEqual(t, pauper.SpiritStones, 0)
}

func TestPhenomenonFirstDraw(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	require.Nil(t, w.Phenomenon)

	s.phasePhenomenon()

	require.NotNil(t, w.Phenomenon, "the heavens are never empty after the first draw")
	assert.Equal(t, "spirit_tide", w.Phenomenon.Key)
	assert.Equal(t, w.Clock, w.Phenomenon.StartStamp)
	assert.Equal(t, 2, w.Phenomenon.Years)
}

func TestPhenomenonRotatesInJanuary(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	require.True(t, w.Clock.IsJanuary())
	w.Phenomenon = &world.Phenomenon{
		Key:        "qi_drought",
		Name:       "Qi Drought",
		StartStamp: w.Clock.Add(-2 * calendar.MonthsPerYear),
		Years:      2,
	}

	s.phasePhenomenon()

	require.NotNil(t, w.Phenomenon)
	assert.Equal(t, "spirit_tide", w.Phenomenon.Key)
	assert.Equal(t, w.Clock, w.Phenomenon.StartStamp)
	majors := 0
	for _, e := range w.PendingEvents() {
		if e.Major {
			majors++
		}
	}
	assert.GreaterOrEqual(t, majors, 2, "passing and arrival are both announced")
}

func TestPhenomenonHoldsUntilDue(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	ph := &world.Phenomenon{
		Key:        "qi_drought",
		Name:       "Qi Drought",
		StartStamp: w.Clock.Add(-calendar.MonthsPerYear),
		Years:      2,
	}
	w.Phenomenon = ph

	// January, but only a year in: holds.
	s.phasePhenomenon()
	assert.Same(t, ph, w.Phenomenon)

	// Overdue, but not January: still holds.
	ph.StartStamp = w.Clock.Add(-3 * calendar.MonthsPerYear)
	w.Clock = w.Clock.Add(1)
	s.phasePhenomenon()
	assert.Same(t, ph, w.Phenomenon)
}

func TestDerivedRelationRefresh(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	living := w.Avatars.Living()
	parent, childA, childB := living[0], living[1], living[2]
	require.NoError(t, w.Graph.Set(childA.ID, parent.ID, relation.Parent, w.Clock))
	require.NoError(t, w.Graph.Set(childB.ID, parent.ID, relation.Parent, w.Clock))

	s.refreshDerivedRelations()

	assert.Equal(t, relation.Sibling, w.DerivedOf(childA.ID)[childB.ID])
	assert.Equal(t, relation.Sibling, w.DerivedOf(childB.ID)[childA.ID])
}

func TestLongDeadCleanupScrubsEverything(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	living := w.Avatars.Living()
	dead, survivor := living[0], living[1]
	require.NoError(t, w.Graph.Set(dead.ID, survivor.ID, relation.Friend, w.Clock))

	w.Avatars.MarkDead(dead.ID, "testing", w.Clock.Add(-11*calendar.MonthsPerYear))
	dead.DeathStamp = w.Clock.Add(-11 * calendar.MonthsPerYear)
	w.Avatars.DrainNewlyDead()

	s.cleanupLongDead()

	_, exists := w.Avatars.Get(dead.ID)
	assert.False(t, exists)
	_, edge := w.Graph.Label(survivor.ID, dead.ID)
	assert.False(t, edge, "survivor's edge to the forgotten dead must go")
}

func TestFallbackPlansPreferRecovery(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	a := w.Avatars.Living()[0]

	a.HP = 1
	plans := s.fallbackPlans(a)
	require.NotEmpty(t, plans)
	assert.Equal(t, "rest", plans[0].Action)

	a.HP = a.HPMax(w.Bundle())
	a.Progress = cultivation.Progress{Level: cultivation.LevelsPerRealm, Exp: 10000}
	plans = s.fallbackPlans(a)
	require.NotEmpty(t, plans)
	assert.Equal(t, "breakthrough", plans[0].Action)
}

func TestProsperityDriftsTowardHeadcount(t *testing.T) {
	w := testWorld(t)
	s := NewSimulator(w)
	city := w.Map.RegionsOfKind(world.KindCity)[0]
	city.Prosperity = 0

	s.phaseProsperity()

	assert.Equal(t, float64(1), city.Prosperity, "prosperity moves one step per month")
}

func TestComputeRankingsOrdersByLevel(t *testing.T) {
	w := testWorld(t)
	r := ComputeRankings(w)

	require.NotEmpty(t, r.Overall)
	for i := 1; i < len(r.Overall); i++ {
		assert.GreaterOrEqual(t, r.Overall[i-1].Level, r.Overall[i].Level)
	}
	for i := 1; i < len(r.Sects); i++ {
		assert.GreaterOrEqual(t, r.Sects[i-1].Power, r.Sects[i].Power)
	}
}
