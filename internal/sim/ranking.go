package sim

import (
	"sort"

	"github.com/xiaocai218/cultivation-world-simulator/internal/cultivation"
)

// Leaderboard caps: ten overall, five per realm band.
const (
	rankingSize     = 10
	rankingBandSize = 5
)

// RankedAvatar is one leaderboard row.
type RankedAvatar struct {
	AvatarID string `json:"avatar_id"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
	Realm    string `json:"realm"`
}

// RankedSect is one row of the sect power board. Power is the sum of the
// living members' levels.
type RankedSect struct {
	SectID  string `json:"sect_id"`
	Name    string `json:"name"`
	Members int    `json:"members"`
	Power   int    `json:"power"`
}

// Rankings is the yearly leaderboard snapshot, recomputed every January
// and at genesis.
type Rankings struct {
	Stamp   string                    `json:"stamp"`
	Overall []RankedAvatar            `json:"overall"`
	ByRealm map[string][]RankedAvatar `json:"by_realm"`
	Sects   []RankedSect              `json:"sects"`
}

// ComputeRankings builds a fresh snapshot from the living population.
func ComputeRankings(w *World) *Rankings {
	living := w.Avatars.Living()

	rows := make([]RankedAvatar, 0, len(living))
	for _, a := range living {
		rows = append(rows, RankedAvatar{
			AvatarID: a.ID,
			Name:     a.DisplayName(),
			Level:    a.Progress.Level,
			Realm:    a.Progress.Realm().String(),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Level != rows[j].Level {
			return rows[i].Level > rows[j].Level
		}
		return rows[i].AvatarID < rows[j].AvatarID
	})

	r := &Rankings{
		Stamp:   w.Clock.String(),
		Overall: top(rows, rankingSize),
		ByRealm: make(map[string][]RankedAvatar),
	}
	for _, realm := range []cultivation.Realm{
		cultivation.QiRefinement,
		cultivation.FoundationEstablishment,
		cultivation.CoreFormation,
		cultivation.NascentSoul,
	} {
		var band []RankedAvatar
		for _, row := range rows {
			if row.Realm == realm.String() {
				band = append(band, row)
			}
		}
		if len(band) > 0 {
			r.ByRealm[realm.String()] = top(band, rankingBandSize)
		}
	}

	for _, sc := range w.Sects.All() {
		row := RankedSect{SectID: sc.ID, Name: sc.Name}
		for _, id := range sc.Members() {
			a, ok := w.Avatars.Get(id)
			if !ok || a.Dead {
				continue
			}
			row.Members++
			row.Power += a.Progress.Level
		}
		r.Sects = append(r.Sects, row)
	}
	sort.SliceStable(r.Sects, func(i, j int) bool {
		if r.Sects[i].Power != r.Sects[j].Power {
			return r.Sects[i].Power > r.Sects[j].Power
		}
		return r.Sects[i].SectID < r.Sects[j].SectID
	})

	return r
}

func top(rows []RankedAvatar, n int) []RankedAvatar {
	if len(rows) > n {
		rows = rows[:n]
	}
	out := make([]RankedAvatar, len(rows))
	copy(out, rows)
	return out
}
