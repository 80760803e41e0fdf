package persist

import (
	"encoding/json"
	"os"
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
	"github.com/xiaocai218/cultivation-world-simulator/internal/sim"
)

func testStore(t *testing.T) *gamedata.Store {
	t.Helper()
	b := &gamedata.Bundle{
		Language: "en-US",
		Sects: []gamedata.SectInfo{
			{ID: "azure", Name: "Azure Cloud Sect"},
			{ID: "ember", Name: "Ember Valley Sect"},
		},
		Personas: []gamedata.Persona{{ID: "calm", Name: "Calm", Description: "measured"}},
		Techniques: []gamedata.Technique{
			{ID: "breath", Name: "Azure Breath", Realm: cultivation.QiRefinement, ExpFactor: 1.0},
		},
		Weapons: []gamedata.Weapon{
			{ID: "iron_sword", Name: "Iron Sword", Realm: cultivation.QiRefinement, Attack: 5},
		},
		Phenomena:   []gamedata.PhenomenonEntry{{Key: "tide", Name: "Spirit Tide", Years: 2, Weight: 1}},
		Surnames:    []string{"Li"},
		MaleNames:   []string{"Feng"},
		FemaleNames: []string{"Mei"},
		RegionNames: map[string][]string{
			"city":           {"Stonegate", "Riverfall", "Duskport"},
			"cultivate_spot": {"Moon Grotto"},
			"wild":           {"Ash Plains"},
		},
	}
	require.NoError(t, b.Init())
	return gamedata.NewStoreFromBundle("", b)
}

func testConfig() *config.Config {
	return &config.Config{
		Game: config.Game{
			InitNPCNum:             8,
			SectNum:                2,
			StartYear:              100,
			MaxActionRoundsPerTurn: 3,
			LongDeadCleanupYears:   10,
		},
		Social: config.Social{RelationCheckThreshold: 3, MajorEventContextNum: 10, MinorEventContextNum: 20},
	}
}

func testWorld(t *testing.T) *sim.World {
	t.Helper()
	log, err := event.OpenLog(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	w := sim.NewWorld(testConfig(), testStore(t), log, nil, 7)
	require.NoError(t, w.Genesis())
	return w
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := testWorld(t)

	living := w.Avatars.Living()
	a, b := living[0], living[1]
	require.NoError(t, w.Graph.Set(a.ID, b.ID, relation.Friend, w.Clock))

	c, d := living[2], living[3]
	loversSince := w.Clock
	require.NoError(t, w.Graph.Set(c.ID, d.ID, relation.Lover, loversSince))

	a.BumpInteraction(b.ID)
	a.BumpInteraction(b.ID)
	b.BumpInteraction(a.ID)
	b.BumpInteraction(a.ID)
	b.ResetInteraction(a.ID)
	w.Runtime.SetPlans(a.ID, []action.Plan{
		{Action: "cultivate", Params: action.Params{"months": float64(3)}},
	})
	w.Gatherings.RestoreSchedule(map[string]calendar.MonthStamp{"grand_tournament": w.Clock})
	w.Clock = w.Clock.Add(5)

	require.NoError(t, Save(w, dir, "slot1"))

	log2, err := event.OpenLog(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { log2.Close() })
	loaded, err := Load(w.Cfg, w.Data, log2, nil, dir, "slot1", 99)
	require.NoError(t, err)

	assert.Equal(t, w.Clock, loaded.Clock)
	assert.Equal(t, w.Avatars.LivingCount(), loaded.Avatars.LivingCount())
	assert.Len(t, loaded.Avatars.Mortals(), len(w.Avatars.Mortals()))
	assert.Equal(t, len(w.Map.Regions), len(loaded.Map.Regions))

	// Relations wired in the second pass, both directions.
	label, ok := loaded.Graph.Label(a.ID, b.ID)
	require.True(t, ok)
	assert.Equal(t, relation.Friend, label)
	back, _ := loaded.Graph.Label(b.ID, a.ID)
	assert.Equal(t, relation.Friend, back)

	// The lover anniversary survives the trip, both directions.
	since, ok := loaded.Graph.LoverSince(c.ID, d.ID)
	require.True(t, ok)
	assert.Equal(t, loversSince, since)
	since, ok = loaded.Graph.LoverSince(d.ID, c.ID)
	require.True(t, ok)
	assert.Equal(t, loversSince, since)

	// Interaction tallies ride along on the avatar.
	la, _ := loaded.Avatars.Get(a.ID)
	lb, _ := loaded.Avatars.Get(b.ID)
	assert.Equal(t, avatar.InteractionCounter{Count: 2}, la.InteractionWith(b.ID))
	assert.Equal(t, avatar.InteractionCounter{Count: 0, CheckedTimes: 1}, lb.InteractionWith(a.ID))

	// Sect rosters and leadership survive.
	orig := w.Sects.SectOf(a.ID)
	got := loaded.Sects.SectOf(a.ID)
	if orig == nil {
		assert.Nil(t, got)
	} else {
		require.NotNil(t, got)
		assert.Equal(t, orig.ID, got.ID)
		assert.Equal(t, orig.LeaderID, got.LeaderID)
	}

	// Plan queues and gathering schedules round trip.
	plans := loaded.Runtime.Plans(a.ID)
	require.Len(t, plans, 1)
	assert.Equal(t, "cultivate", plans[0].Action)
	assert.Equal(t, 3, plans[0].Params.Int("months"))
	_, sched := loaded.Gatherings.LastRun("grand_tournament")
	assert.True(t, sched)

	// Region tiles are re-stamped: the map resolves positions again.
	for _, r := range loaded.Map.Regions {
		assert.Equal(t, r, loaded.Map.RegionAt(r.CenterX, r.CenterY))
	}
}

func TestLoadRejectsWrongVersion(t *testing.T) {
	dir := t.TempDir()
	w := testWorld(t)
	require.NoError(t, Save(w, dir, "slot1"))

	raw, err := os.ReadFile(JSONPath(dir, "slot1"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	doc["version"] = 99
	edited, _ := json.Marshal(doc)
	require.NoError(t, os.WriteFile(JSONPath(dir, "slot1"), edited, 0o644))

	_, err = Load(w.Cfg, w.Data, nil, nil, dir, "slot1", 7)
	assert.ErrorContains(t, err, "unsupported save version")
}

func TestLoadRejectsLopsidedRelations(t *testing.T) {
	dir := t.TempDir()
	w := testWorld(t)
	living := w.Avatars.Living()
	require.NoError(t, Save(w, dir, "slot1"))

	// Hand-edit the save: a one-way friendship.
	raw, err := os.ReadFile(JSONPath(dir, "slot1"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	doc["relations"] = []map[string]any{
		{"owner": living[0].ID, "target": living[1].ID, "label": "friend"},
	}
	edited, _ := json.Marshal(doc)
	require.NoError(t, os.WriteFile(JSONPath(dir, "slot1"), edited, 0o644))

	log2, err := event.OpenLog(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { log2.Close() })
	_, err = Load(w.Cfg, w.Data, log2, nil, dir, "slot1", 7)
	assert.ErrorContains(t, err, "reciprocal")
}

func TestListAndDelete(t *testing.T) {
	dir := t.TempDir()
	w := testWorld(t)
	require.NoError(t, Save(w, dir, "alpha"))
	require.NoError(t, Save(w, dir, "beta"))

	names, err := List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)

	require.NoError(t, Delete(dir, "alpha"))
	names, err = List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, names)

	empty, err := List(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
