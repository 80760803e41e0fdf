package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
)

func testSeeds() []RegionSeed {
	return []RegionSeed{
		{Name: "Azure Cloud Sect", Kind: KindSectHQ, Radius: 2, SectID: "sect-1"},
		{Name: "Crimson Flame Sect", Kind: KindSectHQ, Radius: 2, SectID: "sect-2"},
		{Name: "Moonwell Grotto", Kind: KindCultivateSpot, Radius: 1},
		{Name: "Thunder Cliff", Kind: KindCultivateSpot, Radius: 1},
		{Name: "Blackwood Expanse", Kind: KindWild, Radius: 3},
		{Name: "Jade River City", Kind: KindCity, Radius: 2},
		{Name: "Stonegate City", Kind: KindCity, Radius: 2},
	}
}

func TestGeneratePlacesAllRegions(t *testing.T) {
	cfg := GenConfig{Width: 60, Height: 40, Seed: 7}
	m, err := Generate(cfg, testSeeds())
	require.NoError(t, err)
	require.Len(t, m.Regions, len(testSeeds()))

	for _, r := range m.Regions {
		// Every region disc must lie fully on the grid.
		assert.True(t, m.InBounds(r.CenterX-r.Radius, r.CenterY))
		assert.True(t, m.InBounds(r.CenterX+r.Radius, r.CenterY))
		assert.True(t, m.InBounds(r.CenterX, r.CenterY-r.Radius))
		assert.True(t, m.InBounds(r.CenterX, r.CenterY+r.Radius))
		assert.Same(t, r, m.RegionAt(r.CenterX, r.CenterY))
	}

	// Discs never touch.
	regions := make([]*Region, 0, len(m.Regions))
	for _, r := range m.Regions {
		regions = append(regions, r)
	}
	for i := range regions {
		for j := i + 1; j < len(regions); j++ {
			a, b := regions[i], regions[j]
			d := Manhattan(a.CenterX, a.CenterY, b.CenterX, b.CenterY)
			assert.Greater(t, d, a.Radius+b.Radius+1)
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := GenConfig{Width: 60, Height: 40, Seed: 99}
	m1, err := Generate(cfg, testSeeds())
	require.NoError(t, err)
	m2, err := Generate(cfg, testSeeds())
	require.NoError(t, err)

	for id, r1 := range m1.Regions {
		r2 := m2.Regions[id]
		require.NotNil(t, r2)
		assert.Equal(t, r1.Name, r2.Name)
		assert.Equal(t, r1.CenterX, r2.CenterX)
		assert.Equal(t, r1.CenterY, r2.CenterY)
	}
}

func TestGenerateRejectsTinyGrid(t *testing.T) {
	_, err := Generate(GenConfig{Width: 4, Height: 4, Seed: 1}, testSeeds())
	assert.Error(t, err)
}

func TestRegionsWithin(t *testing.T) {
	m := NewMap(20, 20)
	m.AddRegion(&Region{ID: 1, Name: "Near", Kind: KindWild, CenterX: 5, CenterY: 5, Radius: 1})
	m.AddRegion(&Region{ID: 2, Name: "Far", Kind: KindWild, CenterX: 18, CenterY: 18, Radius: 1})

	got := m.RegionsWithin(6, 6, 3)
	require.Len(t, got, 1)
	assert.Equal(t, "Near", got[0].Name)
}

func TestPhenomenonActiveWindow(t *testing.T) {
	start := calendar.New(100, 3)
	p := &Phenomenon{Key: "solar_eclipse", Name: "Solar Eclipse", StartStamp: start, Years: 2}

	assert.True(t, p.ActiveAt(start))
	assert.True(t, p.ActiveAt(start.Add(2*calendar.MonthsPerYear-1)))
	assert.False(t, p.ActiveAt(start.Add(2*calendar.MonthsPerYear)))

	var none *Phenomenon
	assert.False(t, none.ActiveAt(start))
}

func TestPhenomenonDueForRotation(t *testing.T) {
	start := calendar.New(100, 3)
	p := &Phenomenon{Key: "solar_eclipse", Name: "Solar Eclipse", StartStamp: start, Years: 2}

	assert.False(t, p.DueForRotation(start.Add(calendar.MonthsPerYear)))
	assert.True(t, p.DueForRotation(start.Add(2*calendar.MonthsPerYear)))

	// An empty sky is always due for a draw.
	var none *Phenomenon
	assert.True(t, none.DueForRotation(start))
}
