package sect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaocai218/cultivation-world-simulator/internal/cultivation"
)

func TestRankForRealm(t *testing.T) {
	assert.Equal(t, RankOuterDisciple, RankForRealm(cultivation.QiRefinement))
	assert.Equal(t, RankInnerDisciple, RankForRealm(cultivation.FoundationEstablishment))
	assert.Equal(t, RankElder, RankForRealm(cultivation.CoreFormation))
	assert.Equal(t, RankGrandElder, RankForRealm(cultivation.NascentSoul))
}

func newTestManager() *Manager {
	m := NewManager()
	m.Add(New("azure", "Azure Cloud Sect", "", 1))
	m.Add(New("crimson", "Crimson Flame Sect", "", 2))
	return m
}

func TestJoinLeavesPreviousSect(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.Join("azure", "a", cultivation.QiRefinement))
	require.NoError(t, m.Join("crimson", "a", cultivation.FoundationEstablishment))

	azure, _ := m.Get("azure")
	assert.Equal(t, 0, azure.MemberCount())

	s := m.SectOf("a")
	require.NotNil(t, s)
	assert.Equal(t, "crimson", s.ID)
	r, ok := s.RankOf("a")
	require.True(t, ok)
	assert.Equal(t, RankInnerDisciple, r)
}

func TestJoinUnknownSect(t *testing.T) {
	m := newTestManager()
	assert.Error(t, m.Join("ghost", "a", cultivation.QiRefinement))
}

func TestSyncRankSparesLeader(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.Join("azure", "a", cultivation.CoreFormation))
	require.NoError(t, m.SetLeader("azure", "a"))

	m.SyncRank("a", cultivation.NascentSoul)
	s, _ := m.Get("azure")
	r, _ := s.RankOf("a")
	assert.Equal(t, RankLeader, r)

	require.NoError(t, m.Join("azure", "b", cultivation.QiRefinement))
	m.SyncRank("b", cultivation.FoundationEstablishment)
	r, _ = s.RankOf("b")
	assert.Equal(t, RankInnerDisciple, r)
}

func TestLeaveClearsLeadership(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.Join("azure", "a", cultivation.NascentSoul))
	require.NoError(t, m.SetLeader("azure", "a"))
	m.Leave("a")

	s, _ := m.Get("azure")
	assert.Empty(t, s.LeaderID)
	assert.Nil(t, m.SectOf("a"))
}
