// Package world provides the tile grid, named regions, and the worldwide
// celestial phenomenon slot.
package world

import "fmt"

// Tile is one cell of the grid. RegionID is 0 when the tile belongs to no
// named region.
type Tile struct {
	X        int `json:"x"`
	Y        int `json:"y"`
	RegionID int `json:"region_id,omitempty"`
}

// Map holds the complete tile grid and the region table.
type Map struct {
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	Tiles   [][]*Tile       `json:"-"`
	Regions map[int]*Region `json:"-"`
}

// NewMap creates an empty map of the given dimensions.
func NewMap(width, height int) *Map {
	m := &Map{
		Width:   width,
		Height:  height,
		Regions: make(map[int]*Region),
	}
	m.Tiles = make([][]*Tile, width)
	for x := 0; x < width; x++ {
		m.Tiles[x] = make([]*Tile, height)
		for y := 0; y < height; y++ {
			m.Tiles[x][y] = &Tile{X: x, Y: y}
		}
	}
	return m
}

// InBounds reports whether (x, y) is on the grid.
func (m *Map) InBounds(x, y int) bool {
	return x >= 0 && x < m.Width && y >= 0 && y < m.Height
}

// Tile returns the tile at (x, y), or nil when out of bounds.
func (m *Map) Tile(x, y int) *Tile {
	if !m.InBounds(x, y) {
		return nil
	}
	return m.Tiles[x][y]
}

// RegionAt returns the region covering (x, y), or nil.
func (m *Map) RegionAt(x, y int) *Region {
	t := m.Tile(x, y)
	if t == nil || t.RegionID == 0 {
		return nil
	}
	return m.Regions[t.RegionID]
}

// AddRegion registers a region and stamps its tiles.
func (m *Map) AddRegion(r *Region) {
	m.Regions[r.ID] = r
	for y := r.CenterY - r.Radius; y <= r.CenterY+r.Radius; y++ {
		for x := r.CenterX - r.Radius; x <= r.CenterX+r.Radius; x++ {
			if !m.InBounds(x, y) {
				continue
			}
			if Manhattan(x, y, r.CenterX, r.CenterY) <= r.Radius {
				m.Tiles[x][y].RegionID = r.ID
			}
		}
	}
}

// RegionsWithin collects the distinct regions observable within a Manhattan
// radius of (x, y).
func (m *Map) RegionsWithin(x, y, radius int) []*Region {
	seen := make(map[int]bool)
	var out []*Region
	for dy := -radius; dy <= radius; dy++ {
		rem := radius - abs(dy)
		for dx := -rem; dx <= rem; dx++ {
			t := m.Tile(x+dx, y+dy)
			if t == nil || t.RegionID == 0 || seen[t.RegionID] {
				continue
			}
			seen[t.RegionID] = true
			out = append(out, m.Regions[t.RegionID])
		}
	}
	return out
}

// RegionsOfKind returns all regions of the given kind, in id order not
// guaranteed.
func (m *Map) RegionsOfKind(kind RegionKind) []*Region {
	var out []*Region
	for _, r := range m.Regions {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Manhattan is the L1 distance between two points.
func Manhattan(x1, y1, x2, y2 int) int {
	return abs(x1-x2) + abs(y1-y2)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (m *Map) String() string {
	return fmt.Sprintf("Map(%dx%d, regions=%d)", m.Width, m.Height, len(m.Regions))
}
