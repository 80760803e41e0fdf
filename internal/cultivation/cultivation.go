// Package cultivation models the power progression shared by every avatar:
// realms, levels, lifespans, and breakthrough math.
package cultivation

import "fmt"

// Realm is the coarse cultivation tier. Ordering is meaningful.
type Realm uint8

const (
	QiRefinement Realm = iota
	FoundationEstablishment
	CoreFormation
	NascentSoul
)

// LevelsPerRealm fixes the band width of each realm on the level axis.
const LevelsPerRealm = 30

// MaxLevel is the ceiling of the Nascent Soul band.
const MaxLevel = LevelsPerRealm * 4

var realmNames = map[Realm]string{
	QiRefinement:            "Qi Refinement",
	FoundationEstablishment: "Foundation Establishment",
	CoreFormation:           "Core Formation",
	NascentSoul:             "Nascent Soul",
}

var realmKeys = map[string]Realm{
	"QI_REFINEMENT":            QiRefinement,
	"FOUNDATION_ESTABLISHMENT": FoundationEstablishment,
	"CORE_FORMATION":           CoreFormation,
	"NASCENT_SOUL":             NascentSoul,
}

func (r Realm) String() string {
	if n, ok := realmNames[r]; ok {
		return n
	}
	return fmt.Sprintf("Realm(%d)", uint8(r))
}

// Key returns the stable identifier used in static data files and saves.
func (r Realm) Key() string {
	switch r {
	case QiRefinement:
		return "QI_REFINEMENT"
	case FoundationEstablishment:
		return "FOUNDATION_ESTABLISHMENT"
	case CoreFormation:
		return "CORE_FORMATION"
	case NascentSoul:
		return "NASCENT_SOUL"
	}
	return ""
}

// RealmFromKey parses a static-data realm key; second result is false on
// unknown keys.
func RealmFromKey(key string) (Realm, bool) {
	r, ok := realmKeys[key]
	return r, ok
}

// RealmForLevel maps a level to its realm band. Levels at or below zero
// clamp to Qi Refinement; levels beyond the table clamp to Nascent Soul.
func RealmForLevel(level int) Realm {
	switch {
	case level <= LevelsPerRealm:
		return QiRefinement
	case level <= 2*LevelsPerRealm:
		return FoundationEstablishment
	case level <= 3*LevelsPerRealm:
		return CoreFormation
	default:
		return NascentSoul
	}
}

// MaxLifespanYears is the age ceiling per realm. Crossing it kills the
// avatar in the death-resolution phase.
var MaxLifespanYears = map[Realm]int{
	QiRefinement:            100,
	FoundationEstablishment: 200,
	CoreFormation:           400,
	NascentSoul:             800,
}

// HPMaxByRealm is the base max-HP table before item and elixir effects.
var HPMaxByRealm = map[Realm]int{
	QiRefinement:            100,
	FoundationEstablishment: 300,
	CoreFormation:           800,
	NascentSoul:             2000,
}

// Progress tracks an avatar's position on the level axis.
// Level never decreases (backlash drains Exp, never Level).
type Progress struct {
	Level int `json:"level"`
	Exp   int `json:"exp"`
}

// NewProgress starts at the given level with empty exp.
func NewProgress(level int) Progress {
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return Progress{Level: level}
}

// Realm returns the realm band for the current level.
func (p Progress) Realm() Realm {
	return RealmForLevel(p.Level)
}

// ExpToNextLevel is the exp needed to advance one level at the current
// level. Grows with the realm band.
func (p Progress) ExpToNextLevel() int {
	return 100 * (1 + int(p.Realm()))
}

// AtRealmPeak reports whether the next level would cross a realm boundary,
// which requires a breakthrough rather than plain exp.
func (p Progress) AtRealmPeak() bool {
	if p.Level >= MaxLevel {
		return true
	}
	return p.Level%LevelsPerRealm == 0
}

// InBottleneck reports whether exp accumulation is currently useless:
// at a realm peak with a full exp bar.
func (p Progress) InBottleneck() bool {
	return p.AtRealmPeak() && p.Exp >= p.ExpToNextLevel()
}

// AddExp accumulates exp and consumes it into levels up to the next realm
// peak. Returns the number of levels gained.
func (p *Progress) AddExp(exp int) int {
	if exp <= 0 {
		return 0
	}
	p.Exp += exp
	gained := 0
	for !p.AtRealmPeak() && p.Exp >= p.ExpToNextLevel() {
		p.Exp -= p.ExpToNextLevel()
		p.Level++
		gained++
	}
	// At a peak the surplus waits for a breakthrough; cap it at one bar
	// so a bottlenecked avatar does not bank unbounded exp.
	if bar := p.ExpToNextLevel(); p.AtRealmPeak() && p.Exp > bar {
		p.Exp = bar
	}
	return gained
}

// DrainExp removes exp without ever lowering the level. Returns the amount
// actually removed.
func (p *Progress) DrainExp(exp int) int {
	if exp <= 0 {
		return 0
	}
	if exp > p.Exp {
		exp = p.Exp
	}
	p.Exp -= exp
	return exp
}

// Breakthrough crosses the realm boundary if the avatar sits at a peak
// with a full bar. Returns whether the level advanced.
func (p *Progress) Breakthrough() bool {
	if p.Level >= MaxLevel {
		return false
	}
	if !p.AtRealmPeak() || p.Exp < p.ExpToNextLevel() {
		return false
	}
	p.Exp = 0
	p.Level++
	return true
}
