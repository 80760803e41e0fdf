package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/cultivation"
	"github.com/xiaocai218/cultivation-world-simulator/internal/gamedata"
	"github.com/xiaocai218/cultivation-world-simulator/internal/relation"
	"github.com/xiaocai218/cultivation-world-simulator/internal/rng"
	"github.com/xiaocai218/cultivation-world-simulator/internal/sect"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

func testEnv(t *testing.T) *Env {
	t.Helper()
	b := &gamedata.Bundle{
		Language: "en-US",
		Elixirs: []gamedata.Elixir{
			{ID: "heal_dew", Name: "Healing Dew", Realm: cultivation.QiRefinement, Kind: gamedata.ElixirHeal, Amount: 40},
		},
		Sects:       []gamedata.SectInfo{{ID: "azure", Name: "Azure Cloud Sect"}},
		Personas:    []gamedata.Persona{{ID: "calm", Name: "Calm"}},
		Surnames:    []string{"Li"},
		MaleNames:   []string{"Feng"},
		FemaleNames: []string{"Qing"},
		Phenomena:   []gamedata.PhenomenonEntry{{Key: "tide", Name: "Spirit Tide", Years: 1, Weight: 1}},
	}
	require.NoError(t, b.Init())

	m := world.NewMap(60, 40)
	m.AddRegion(&world.Region{ID: 1, Name: "Moonwell Grotto", Kind: world.KindCultivateSpot, CenterX: 10, CenterY: 10, Radius: 1})
	m.AddRegion(&world.Region{ID: 2, Name: "Jade River City", Kind: world.KindCity, CenterX: 30, CenterY: 10, Radius: 2})
	m.AddRegion(&world.Region{ID: 3, Name: "Blackwood Expanse", Kind: world.KindWild, CenterX: 50, CenterY: 30, Radius: 3})

	sects := sect.NewManager()
	sects.Add(sect.New("azure", "Azure Cloud Sect", "", 0))

	env := &Env{
		Now:     calendar.New(100, 1),
		Map:     m,
		Avatars: avatar.NewStore(),
		Graph:   relation.NewGraph(),
		Sects:   sects,
		Rand:    rng.New(7),
		Runtime: NewRuntime(DefaultRegistry()),
		Data:    func() *gamedata.Bundle { return b },
	}
	return env
}

func addAvatar(e *Env, id, name string, g avatar.Gender, level, x, y int) *avatar.Avatar {
	a := avatar.New(id, name, g, calendar.New(80, 1), x, y)
	a.Progress = cultivation.NewProgress(level)
	a.HP = a.HPMax(nil)
	e.Avatars.Add(a)
	e.Avatars.DrainNewlyBorn()
	return a
}

func TestCommitNextDropsUnstartablePlans(t *testing.T) {
	e := testEnv(t)
	a := addAvatar(e, "a", "Li Feng", avatar.Male, 5, 0, 0)

	e.Runtime.SetPlans(a.ID, []Plan{
		{Action: "no_such_action"},
		{Action: "hunt"},      // not in the wilds: dropped
		{Action: "cultivate"}, // starts
		{Action: "rest"},
	})
	e.Runtime.CommitNext(e, a)

	assert.Equal(t, "cultivate", e.Runtime.CurrentName(a.ID))
	// The queue keeps only what comes after the started plan.
	assert.Equal(t, []Plan{{Action: "rest"}}, e.Runtime.Plans(a.ID))
}

func TestCultivateGainsExpAndFinishes(t *testing.T) {
	e := testEnv(t)
	a := addAvatar(e, "a", "Li Feng", avatar.Male, 5, 0, 0)

	e.Runtime.SetPlans(a.ID, []Plan{{Action: "cultivate", Params: Params{"months": float64(2)}}})
	e.Runtime.CommitNext(e, a)

	e.Runtime.ExecuteMonth(e, 3)
	assert.Equal(t, "cultivate", e.Runtime.CurrentName(a.ID))
	assert.Equal(t, baseMonthlyExp, a.Progress.Exp)

	e.Now = e.Now.Add(1)
	events := e.Runtime.ExecuteMonth(e, 3)
	assert.Empty(t, e.Runtime.CurrentName(a.ID), "finished after two months")
	assert.Equal(t, 2*baseMonthlyExp, a.Progress.Exp)
	require.NotEmpty(t, events)
	assert.Contains(t, events[len(events)-1].Content, "cultivation")

	// Finishing recorded the cooldown.
	assert.True(t, a.OnCooldown("cultivate", e.Now, 1))
}

func TestCultivateSpotBonusRequiresHosting(t *testing.T) {
	e := testEnv(t)
	a := addAvatar(e, "a", "Li Feng", avatar.Male, 5, 10, 10)

	spot := e.Map.Regions[1]
	require.NoError(t, a.OccupyRegion(spot))

	run := &cultivateRun{remaining: 1}
	run.Step(e, a)
	assert.Equal(t, int(baseMonthlyExp*spotBonus), a.Progress.Exp)
}

func TestBreakthroughUnderFavorablePhenomenon(t *testing.T) {
	e := testEnv(t)
	a := addAvatar(e, "a", "Li Feng", avatar.Male, 30, 0, 0)
	a.Progress.AddExp(10 * a.Progress.ExpToNextLevel())

	// Bonus pushes the roll to certainty.
	ph := &world.Phenomenon{Key: "tide", Name: "Spirit Tide", StartStamp: e.Now, Years: 1, BreakthroughBonus: 0.5}
	e.ActivePhenomenon = func() *world.Phenomenon { return ph }

	require.NoError(t, e.Sects.Join("azure", a.ID, a.Progress.Realm()))

	e.Runtime.SetPlans(a.ID, []Plan{{Action: "breakthrough"}})
	e.Runtime.CommitNext(e, a)
	events := e.Runtime.ExecuteMonth(e, 3)

	assert.Equal(t, 31, a.Progress.Level)
	assert.Equal(t, cultivation.FoundationEstablishment, a.Progress.Realm())
	require.NotEmpty(t, events)
	assert.True(t, events[0].Major)

	// Sect rank follows the new realm.
	s, _ := e.Sects.Get("azure")
	r, _ := s.RankOf(a.ID)
	assert.Equal(t, sect.RankInnerDisciple, r)

	// The attempt recorded its cooldown.
	assert.True(t, a.OnCooldown("breakthrough", e.Now, breakthroughCooldownMonths))
}

func TestBreakthroughCooldownDropsPlan(t *testing.T) {
	e := testEnv(t)
	a := addAvatar(e, "a", "Li Feng", avatar.Male, cultivation.LevelsPerRealm, 0, 0)
	a.Progress.AddExp(10 * a.Progress.ExpToNextLevel())
	a.MarkCooldown("breakthrough", e.Now)

	// Readiness alone is fine; the commit gate holds the cooldown.
	var bt Breakthrough
	require.NoError(t, bt.CanStart(e, a, nil))

	e.Runtime.SetPlans(a.ID, []Plan{{Action: "breakthrough"}})
	e.Runtime.CommitNext(e, a)
	assert.True(t, e.Runtime.Idle(a.ID), "plan on cooldown is dropped")

	e.Now = e.Now.Add(breakthroughCooldownMonths)
	e.Runtime.SetPlans(a.ID, []Plan{{Action: "breakthrough"}})
	e.Runtime.CommitNext(e, a)
	assert.Equal(t, "breakthrough", e.Runtime.CurrentName(a.ID))
}

func TestTraitQueriesFollowRunningAction(t *testing.T) {
	e := testEnv(t)
	a := addAvatar(e, "a", "Li Feng", avatar.Male, 5, 0, 0)

	// Idle avatars are exposed to everything and show no emoji.
	assert.True(t, e.Runtime.AllowsGathering(a.ID))
	assert.True(t, e.Runtime.AllowsWorldEvents(a.ID))
	assert.Empty(t, e.Runtime.CurrentEmoji(a.ID))

	e.Runtime.SetPlans(a.ID, []Plan{{Action: "cultivate"}})
	e.Runtime.CommitNext(e, a)

	assert.Equal(t, "🧘", e.Runtime.CurrentEmoji(a.ID))
	assert.False(t, e.Runtime.AllowsGathering(a.ID))
	assert.False(t, e.Runtime.AllowsWorldEvents(a.ID))

	// Reaction instances installed by preemption are not in the registry
	// and fall back to the permissive defaults.
	assert.Equal(t, DefaultTraits(), e.Runtime.traitsOf("fight_back"))
	assert.True(t, DefaultTraits().AllowGathering)
	assert.True(t, DefaultTraits().AllowWorldEvents)
}

func TestMoveRequiresKnownRegion(t *testing.T) {
	e := testEnv(t)
	a := addAvatar(e, "a", "Li Feng", avatar.Male, 5, 0, 0)

	var mv Move
	assert.Error(t, mv.CanStart(e, a, Params{"region": "Jade River City"}))

	a.KnownRegionIDs[2] = true
	require.NoError(t, mv.CanStart(e, a, Params{"region": "Jade River City"}))

	e.Runtime.SetPlans(a.ID, []Plan{{Action: "move", Params: Params{"region": "Jade River City"}}})
	e.Runtime.CommitNext(e, a)

	// 40 tiles of Manhattan distance at 10 per month: four months.
	for i := 0; i < 4; i++ {
		e.Runtime.ExecuteMonth(e, 3)
		e.Now = e.Now.Add(1)
	}
	r := e.Map.Regions[2]
	assert.True(t, r.Contains(a.X, a.Y))
	assert.Empty(t, e.Runtime.CurrentName(a.ID))
}

func TestAttackPreemptsWeakerTargetIntoFlight(t *testing.T) {
	e := testEnv(t)
	strong := addAvatar(e, "a", "Li Feng", avatar.Male, 60, 0, 0)
	weak := addAvatar(e, "b", "Mo Qing", avatar.Female, 3, 2, 0)

	// The victim is mid-cultivation; the ambush replaces that instance.
	e.Runtime.SetPlans(weak.ID, []Plan{{Action: "cultivate"}})
	e.Runtime.CommitNext(e, weak)
	require.Equal(t, "cultivate", e.Runtime.CurrentName(weak.ID))

	e.Runtime.SetPlans(strong.ID, []Plan{{Action: "attack", Params: Params{"target": "b"}}})
	e.Runtime.CommitNext(e, strong)

	hpBefore := weak.HP
	e.Runtime.ExecuteMonth(e, 3)

	assert.Less(t, weak.HP, hpBefore, "the first blow landed")
	if !weak.Dead && weak.HP > 0 {
		// Preempted into flight and already stepped in the bonus round.
		current := e.Runtime.CurrentName(weak.ID)
		moved := weak.X != 2 || weak.Y != 0
		assert.True(t, moved || current == "", "victim reacted within the month")
	}
}

func TestAcknowledgeMasterJoinsSect(t *testing.T) {
	e := testEnv(t)
	master := addAvatar(e, "m", "Elder Shen", avatar.Male, 65, 0, 0)
	disciple := addAvatar(e, "d", "Li Feng", avatar.Male, 5, 1, 0)
	require.NoError(t, e.Sects.Join("azure", master.ID, master.Progress.Realm()))

	e.Runtime.SetPlans(disciple.ID, []Plan{{Action: "acknowledge_master", Params: Params{"target": "m"}}})
	e.Runtime.CommitNext(e, disciple)
	events := e.Runtime.ExecuteMonth(e, 3)

	l, ok := e.Graph.Label(disciple.ID, master.ID)
	require.True(t, ok)
	assert.Equal(t, relation.Master, l)
	l, _ = e.Graph.Label(master.ID, disciple.ID)
	assert.Equal(t, relation.Disciple, l)

	s := e.Sects.SectOf(disciple.ID)
	require.NotNil(t, s)
	assert.Equal(t, "azure", s.ID)
	r, _ := s.RankOf(disciple.ID)
	assert.Equal(t, sect.RankOuterDisciple, r)

	require.NotEmpty(t, events)
	assert.True(t, events[len(events)-1].Major)
}

func TestAcknowledgeMasterRejectsSmallGap(t *testing.T) {
	e := testEnv(t)
	master := addAvatar(e, "m", "Elder Shen", avatar.Male, 20, 0, 0)
	disciple := addAvatar(e, "d", "Li Feng", avatar.Male, 5, 1, 0)

	var am AcknowledgeMaster
	assert.Error(t, am.CanStart(e, disciple, Params{"target": master.ID}))
}

func TestConfessRequiresOppositeGender(t *testing.T) {
	e := testEnv(t)
	a := addAvatar(e, "a", "Li Feng", avatar.Male, 5, 0, 0)
	b := addAvatar(e, "b", "Wu Kang", avatar.Male, 5, 1, 0)
	c := addAvatar(e, "c", "Mo Qing", avatar.Female, 5, 1, 1)

	var cf Confess
	assert.Error(t, cf.CanStart(e, a, Params{"target": b.ID}))
	assert.NoError(t, cf.CanStart(e, a, Params{"target": c.ID}))

	// An existing non-friend bond blocks confession.
	require.NoError(t, e.Graph.Set(a.ID, c.ID, relation.Enemy, e.Now))
	assert.Error(t, cf.CanStart(e, a, Params{"target": c.ID}))
}

func TestBuyElixirSpendsStones(t *testing.T) {
	e := testEnv(t)
	a := addAvatar(e, "a", "Li Feng", avatar.Male, 5, 30, 10)
	a.SpiritStones = 100

	e.Runtime.SetPlans(a.ID, []Plan{{Action: "buy_elixir", Params: Params{"elixir": "heal_dew"}}})
	e.Runtime.CommitNext(e, a)
	e.Runtime.ExecuteMonth(e, 3)

	assert.Equal(t, 100-40*stonePriceFactor, a.SpiritStones)
	assert.Equal(t, 1, a.Elixirs["heal_dew"])
}

func TestClearDropsStateOnDeath(t *testing.T) {
	e := testEnv(t)
	a := addAvatar(e, "a", "Li Feng", avatar.Male, 5, 0, 0)
	e.Runtime.SetPlans(a.ID, []Plan{{Action: "cultivate"}})
	e.Runtime.CommitNext(e, a)

	e.Runtime.Clear(a.ID)
	assert.True(t, e.Runtime.Idle(a.ID))
}
