package world

import "fmt"

// RegionKind classifies a named region on the map.
type RegionKind string

const (
	// KindCity is a mortal settlement. Cities host auctions, produce
	// newborns, and carry a prosperity score.
	KindCity RegionKind = "city"
	// KindSectHQ is the headquarters of a cultivation sect.
	KindSectHQ RegionKind = "sect_hq"
	// KindCultivateSpot is a spirit-rich site a single avatar can occupy
	// for a cultivation-speed bonus.
	KindCultivateSpot RegionKind = "cultivate_spot"
	// KindWild is untamed land where hunting happens.
	KindWild RegionKind = "wild"
)

// Region is a named diamond of tiles (Manhattan disc) around a center.
type Region struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Kind        RegionKind `json:"kind"`
	Description string     `json:"description,omitempty"`
	CenterX     int        `json:"center_x"`
	CenterY     int        `json:"center_y"`
	Radius      int        `json:"radius"`

	// SpiritEnergy is the terrain score sampled at generation time.
	// Richer sites were preferred for sect headquarters and cultivate
	// spots.
	SpiritEnergy float64 `json:"spirit_energy"`

	// SectID is set on sect_hq regions.
	SectID string `json:"sect_id,omitempty"`

	// HostAvatarID is the occupant of a cultivate_spot, empty when free.
	// The occupant's OccupiedRegionID mirrors this field.
	HostAvatarID string `json:"host_avatar_id,omitempty"`

	// Prosperity is maintained on cities by the monthly prosperity phase.
	Prosperity float64 `json:"prosperity,omitempty"`
}

// Contains reports whether (x, y) falls inside the region.
func (r *Region) Contains(x, y int) bool {
	return Manhattan(x, y, r.CenterX, r.CenterY) <= r.Radius
}

// Occupied reports whether a cultivate spot currently has a host.
func (r *Region) Occupied() bool {
	return r.HostAvatarID != ""
}

func (r *Region) String() string {
	return fmt.Sprintf("%s %q (%d,%d)", r.Kind, r.Name, r.CenterX, r.CenterY)
}
