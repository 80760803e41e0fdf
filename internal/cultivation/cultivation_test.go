package cultivation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRealmForLevel(t *testing.T) {
	assert.Equal(t, QiRefinement, RealmForLevel(1))
	assert.Equal(t, QiRefinement, RealmForLevel(30))
	assert.Equal(t, FoundationEstablishment, RealmForLevel(31))
	assert.Equal(t, CoreFormation, RealmForLevel(61))
	assert.Equal(t, NascentSoul, RealmForLevel(91))
	assert.Equal(t, NascentSoul, RealmForLevel(120))
}

func TestAddExpNeverLowersLevel(t *testing.T) {
	p := NewProgress(1)
	p.AddExp(1000)
	lvl := p.Level
	p.DrainExp(100000)
	assert.Equal(t, lvl, p.Level)
	assert.Equal(t, 0, p.Exp)
}

func TestRealmPeakNeedsBreakthrough(t *testing.T) {
	p := NewProgress(30)
	gained := p.AddExp(10 * p.ExpToNextLevel())
	assert.Equal(t, 0, gained)
	assert.Equal(t, 30, p.Level)
	assert.True(t, p.AtRealmPeak())
	assert.True(t, p.InBottleneck())

	assert.True(t, p.Breakthrough())
	assert.Equal(t, 31, p.Level)
	assert.Equal(t, FoundationEstablishment, p.Realm())
	assert.False(t, p.InBottleneck())
}

func TestBreakthroughRequiresFullBar(t *testing.T) {
	p := NewProgress(30)
	assert.False(t, p.Breakthrough())
	p.AddExp(p.ExpToNextLevel())
	assert.True(t, p.Breakthrough())
}

func TestMaxLevelCaps(t *testing.T) {
	p := NewProgress(MaxLevel)
	p.AddExp(100000)
	assert.False(t, p.Breakthrough())
	assert.Equal(t, MaxLevel, p.Level)
}

func TestRealmKeyRoundTrip(t *testing.T) {
	for _, r := range []Realm{QiRefinement, FoundationEstablishment, CoreFormation, NascentSoul} {
		got, ok := RealmFromKey(r.Key())
		assert.True(t, ok)
		assert.Equal(t, r, got)
	}
	_, ok := RealmFromKey("TRIBULATION")
	assert.False(t, ok)
}
