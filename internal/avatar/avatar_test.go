package avatar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/cultivation"
	"github.com/xiaocai218/cultivation-world-simulator/internal/gamedata"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

var born = calendar.New(80, 1)

func testBundle() *gamedata.Bundle {
	b := &gamedata.Bundle{
		Language: "en-US",
		Weapons: []gamedata.Weapon{
			{ID: "iron_sword", Name: "Iron Sword", Realm: cultivation.QiRefinement, Attack: 10},
		},
		Auxiliaries: []gamedata.Auxiliary{
			{ID: "cloud_robe", Name: "Cloud Robe", Realm: cultivation.QiRefinement, Defense: 5, CultivationFactor: 1.1},
		},
		Techniques: []gamedata.Technique{
			{ID: "breath", Name: "Breath of Mist", Realm: cultivation.QiRefinement, ExpFactor: 1.2},
		},
		Elixirs: []gamedata.Elixir{
			{ID: "heal_dew", Name: "Healing Dew", Realm: cultivation.QiRefinement, Kind: gamedata.ElixirHeal, Amount: 40, DurationMonths: 2},
			{ID: "qi_pill", Name: "Qi Pill", Realm: cultivation.QiRefinement, Kind: gamedata.ElixirExp, Amount: 50, DurationMonths: 3},
		},
		Sects:       []gamedata.SectInfo{{ID: "azure", Name: "Azure Cloud Sect"}},
		Personas:    []gamedata.Persona{{ID: "calm", Name: "Calm"}},
		Surnames:    []string{"Li"},
		MaleNames:   []string{"Feng"},
		FemaleNames: []string{"Qing"},
		Phenomena:   []gamedata.PhenomenonEntry{{Key: "tide", Name: "Spirit Tide", Years: 2, Weight: 1}},
	}
	return b
}

func TestAgeAndLifespan(t *testing.T) {
	a := New("a", "Li Feng", Male, born, 0, 0)
	now := born.Add(50 * calendar.MonthsPerYear)
	assert.Equal(t, 50, a.AgeYears(now))
	assert.False(t, a.LifespanExceeded(now))

	old := born.Add(100 * calendar.MonthsPerYear)
	assert.True(t, a.LifespanExceeded(old))

	// A higher realm extends the ceiling.
	a.Progress = cultivation.NewProgress(31)
	assert.False(t, a.LifespanExceeded(old))
}

func TestDamageHealClamp(t *testing.T) {
	a := New("a", "Li Feng", Male, born, 0, 0)
	a.Damage(a.HP + 50)
	assert.Equal(t, 0, a.HP)
	a.Heal(10_000, nil)
	assert.Equal(t, a.HPMax(nil), a.HP)
}

func TestConsumeElixirRules(t *testing.T) {
	b := testBundle()
	require.NoError(t, b.Init())
	a := New("a", "Li Feng", Male, born, 0, 0)
	now := calendar.New(100, 1)
	a.GainElixir("heal_dew")
	a.GainElixir("qi_pill")

	// Healing at full HP is refused and the dose kept.
	require.Error(t, a.ConsumeElixir("heal_dew", b, now))
	assert.Equal(t, 1, a.Elixirs["heal_dew"])

	a.Damage(30)
	require.NoError(t, a.ConsumeElixir("heal_dew", b, now))
	assert.Equal(t, 0, a.Elixirs["heal_dew"])
	assert.Equal(t, a.HPMax(b), a.HP)

	require.NoError(t, a.ConsumeElixir("qi_pill", b, now))
	assert.Equal(t, 50, a.Progress.Exp)

	require.Error(t, a.ConsumeElixir("qi_pill", b, now), "satchel is empty")
}

func TestConsumeElixirDoseLingers(t *testing.T) {
	b := testBundle()
	require.NoError(t, b.Init())
	a := New("a", "Li Feng", Male, born, 0, 0)
	now := calendar.New(100, 1)
	a.GainElixir("qi_pill")
	a.GainElixir("qi_pill")

	require.NoError(t, a.ConsumeElixir("qi_pill", b, now))
	require.Len(t, a.Consumed, 1)
	assert.True(t, a.HasActiveElixir("qi_pill", now))

	// A second dose is refused while the first lingers.
	require.Error(t, a.ConsumeElixir("qi_pill", b, now.Add(1)))
	assert.Equal(t, 1, a.Elixirs["qi_pill"])

	// Once the duration runs out the record prunes and a new dose lands.
	later := now.Add(3)
	assert.False(t, a.HasActiveElixir("qi_pill", later))
	a.PruneConsumed(later)
	assert.Empty(t, a.Consumed)
	require.NoError(t, a.ConsumeElixir("qi_pill", b, later))
	require.Len(t, a.Consumed, 1)
	assert.Equal(t, later, a.Consumed[0].Stamp)
}

func TestInteractionCounters(t *testing.T) {
	a := New("a", "Li Feng", Male, born, 0, 0)
	a.BumpInteraction("b")
	a.BumpInteraction("b")
	assert.Equal(t, InteractionCounter{Count: 2}, a.InteractionWith("b"))

	a.ResetInteraction("b")
	assert.Equal(t, InteractionCounter{Count: 0, CheckedTimes: 1}, a.InteractionWith("b"))

	a.BumpInteraction("b")
	a.ResetInteraction("b")
	assert.Equal(t, InteractionCounter{Count: 0, CheckedTimes: 2}, a.InteractionWith("b"))

	a.DropInteraction("b")
	assert.Empty(t, a.Interactions)
	assert.Equal(t, InteractionCounter{}, a.InteractionWith("b"))
}

func TestOccupyReleaseInvariant(t *testing.T) {
	a := New("a", "Li Feng", Male, born, 0, 0)
	other := New("b", "Mo Qing", Female, born, 0, 0)
	spot := &world.Region{ID: 3, Name: "Moonwell Grotto", Kind: world.KindCultivateSpot}
	city := &world.Region{ID: 4, Name: "Jade River City", Kind: world.KindCity}

	require.Error(t, a.OccupyRegion(city))
	require.NoError(t, a.OccupyRegion(spot))
	assert.Equal(t, "a", spot.HostAvatarID)
	assert.Equal(t, 3, a.OccupiedRegionID)

	require.Error(t, other.OccupyRegion(spot))

	a.ReleaseRegion(spot)
	assert.False(t, spot.Occupied())
	assert.Equal(t, 0, a.OccupiedRegionID)
	require.NoError(t, other.OccupyRegion(spot))
}

func TestEffectsExpire(t *testing.T) {
	a := New("a", "Li Feng", Male, born, 0, 0)
	now := calendar.New(100, 1)
	a.AddEffect(Effect{Kind: EffectCultivationSpeed, Factor: 2.0, ExpiresAt: now.Add(3)})

	assert.Equal(t, 2.0, a.CultivationFactor(nil, now))
	assert.Equal(t, 1.0, a.CultivationFactor(nil, now.Add(3)))

	a.PruneEffects(now.Add(3))
	assert.Empty(t, a.Effects)
}

func TestCooldowns(t *testing.T) {
	a := New("a", "Li Feng", Male, born, 0, 0)
	now := calendar.New(100, 1)
	a.MarkCooldown("breakthrough", now)
	assert.True(t, a.OnCooldown("breakthrough", now.Add(5), 6))
	assert.False(t, a.OnCooldown("breakthrough", now.Add(6), 6))
	assert.False(t, a.OnCooldown("hunt", now, 6))
}

func TestStoreLedgers(t *testing.T) {
	s := NewStore()
	now := calendar.New(100, 1)
	a := New("a", "Li Feng", Male, born, 0, 0)
	s.Add(a)

	assert.Equal(t, []string{"a"}, s.DrainNewlyBorn())
	assert.Empty(t, s.DrainNewlyBorn())

	s.MarkDead("a", "lifespan exhausted", now)
	s.MarkDead("a", "again", now) // idempotent
	assert.Equal(t, []string{"a"}, s.DrainNewlyDead())
	assert.Equal(t, 0, s.LivingCount())

	// Not yet long dead.
	assert.Empty(t, s.RemoveLongDead(now.Add(calendar.MonthsPerYear), 10))
	removed := s.RemoveLongDead(now.Add(10*calendar.MonthsPerYear), 10)
	assert.Equal(t, []string{"a"}, removed)
	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestMortalAwakening(t *testing.T) {
	now := calendar.New(120, 1)
	m := &Mortal{
		ID: "m1", Name: "Li Wen", Gender: Female,
		BirthStamp: now.Add(-20 * calendar.MonthsPerYear),
		CityID:     4, ParentAvatarIDs: []string{"a"},
	}
	assert.True(t, m.HasCultivatorBlood())
	assert.True(t, m.CanAwaken(now))
	assert.False(t, m.CanAwaken(m.BirthStamp.Add(10*calendar.MonthsPerYear)))

	s := NewStore()
	s.AddMortal(m)
	a := m.Awaken(now, 5, 5)
	s.PromoteMortal(m.ID, a)

	_, stillMortal := s.Mortal("m1")
	assert.False(t, stillMortal)
	got, ok := s.Get("m1")
	require.True(t, ok)
	assert.Equal(t, 1, got.Progress.Level)
	assert.Equal(t, 10, got.SpiritStones)
	assert.Equal(t, 4, got.HomeCityID)
	assert.Equal(t, []string{"m1"}, s.DrainNewlyBorn())
}
