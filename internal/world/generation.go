// Map generation using layered simplex noise. A spirit-energy field shapes
// where sects and cultivate spots land; cities prefer flatter, poorer ground.
package world

import (
	"fmt"
	"math"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds map generation parameters.
type GenConfig struct {
	Width  int
	Height int
	Seed   int64
}

// DefaultGenConfig returns the standard playfield size.
func DefaultGenConfig() GenConfig {
	return GenConfig{Width: 60, Height: 40, Seed: 0}
}

// RegionSeed names one region the generator must place. SectID is carried
// through for sect_hq seeds.
type RegionSeed struct {
	Name   string
	Kind   RegionKind
	Radius int
	SectID string
}

// Generate builds the tile grid and places every seeded region. Placement is
// deterministic for a given seed: candidates are scored on the spirit-energy
// field, sorted, and taken greedily under a minimum-distance constraint.
func Generate(cfg GenConfig, seeds []RegionSeed) (*Map, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("generate map: bad dimensions %dx%d", cfg.Width, cfg.Height)
	}

	m := NewMap(cfg.Width, cfg.Height)
	spirit := spiritField(cfg)

	type scored struct {
		x, y  int
		score float64
	}
	// Keep a border margin so region discs stay on the grid.
	margin := maxRadius(seeds) + 1
	var candidates []scored
	for y := margin; y < cfg.Height-margin; y++ {
		for x := margin; x < cfg.Width-margin; x++ {
			candidates = append(candidates, scored{x, y, spirit[x][y]})
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("generate map: %dx%d too small for region radius %d", cfg.Width, cfg.Height, margin-1)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		// Stable ordering keeps generation deterministic per seed.
		if candidates[i].y != candidates[j].y {
			return candidates[i].y < candidates[j].y
		}
		return candidates[i].x < candidates[j].x
	})

	// Spirit-hungry regions pick from the top of the list, cities from the
	// bottom, wilds from the middle.
	order := make([]RegionSeed, len(seeds))
	copy(order, seeds)
	sort.SliceStable(order, func(i, j int) bool {
		return placementPriority(order[i].Kind) < placementPriority(order[j].Kind)
	})

	nextID := 1
	var placed []*Region
	for _, seed := range order {
		pool := candidates
		if seed.Kind == KindCity {
			reversed := make([]scored, len(candidates))
			for i, c := range candidates {
				reversed[len(candidates)-1-i] = c
			}
			pool = reversed
		}

		var site *scored
		for i := range pool {
			c := pool[i]
			if tooClose(c.x, c.y, seed.Radius, placed) {
				continue
			}
			site = &c
			break
		}
		if site == nil {
			return nil, fmt.Errorf("generate map: no room for region %q", seed.Name)
		}

		r := &Region{
			ID:           nextID,
			Name:         seed.Name,
			Kind:         seed.Kind,
			CenterX:      site.x,
			CenterY:      site.y,
			Radius:       seed.Radius,
			SpiritEnergy: site.score,
			SectID:       seed.SectID,
		}
		if r.Kind == KindCity {
			r.Prosperity = 50
		}
		nextID++
		m.AddRegion(r)
		placed = append(placed, r)
	}

	return m, nil
}

// spiritField samples a multi-octave noise layer over the grid with an edge
// falloff so the richest ground sits away from the borders.
func spiritField(cfg GenConfig) [][]float64 {
	noise := opensimplex.NewNormalized(cfg.Seed)
	field := make([][]float64, cfg.Width)
	cx, cy := float64(cfg.Width)/2, float64(cfg.Height)/2
	maxDist := math.Sqrt(cx*cx + cy*cy)
	for x := 0; x < cfg.Width; x++ {
		field[x] = make([]float64, cfg.Height)
		for y := 0; y < cfg.Height; y++ {
			fx, fy := float64(x), float64(y)
			v := octaveNoise(noise, fx, fy, 4, 0.08, 0.5)
			dist := math.Sqrt((fx-cx)*(fx-cx)+(fy-cy)*(fy-cy)) / maxDist
			falloff := 1.0 - math.Pow(dist, 3.0)
			if falloff < 0 {
				falloff = 0
			}
			field[x][y] = v * falloff
		}
	}
	return field
}

// octaveNoise layers multiple noise frequencies for a natural-looking field.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}

func placementPriority(kind RegionKind) int {
	switch kind {
	case KindSectHQ:
		return 0
	case KindCultivateSpot:
		return 1
	case KindWild:
		return 2
	default: // cities go last; they draw from the poor end of the pool
		return 3
	}
}

func tooClose(x, y, radius int, placed []*Region) bool {
	for _, r := range placed {
		// Discs must not touch; leave a one-tile corridor between them.
		if Manhattan(x, y, r.CenterX, r.CenterY) <= radius+r.Radius+1 {
			return true
		}
	}
	return false
}

func maxRadius(seeds []RegionSeed) int {
	max := 0
	for _, s := range seeds {
		if s.Radius > max {
			max = s.Radius
		}
	}
	return max
}
