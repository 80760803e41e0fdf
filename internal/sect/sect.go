// Package sect tracks sect membership and rank. Static sect descriptions
// come from the gamedata tables; this package owns the living roster.
package sect

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xiaocai218/cultivation-world-simulator/internal/cultivation"
)

// Rank is a member's station inside a sect.
type Rank string

const (
	RankOuterDisciple Rank = "outer_disciple"
	RankInnerDisciple Rank = "inner_disciple"
	RankElder         Rank = "elder"
	RankGrandElder    Rank = "grand_elder"
	RankLeader        Rank = "leader"
)

// RankForRealm maps a cultivation realm to the rank a member holds on
// joining or after a breakthrough. Leadership is assigned, never derived.
func RankForRealm(r cultivation.Realm) Rank {
	switch r {
	case cultivation.QiRefinement:
		return RankOuterDisciple
	case cultivation.FoundationEstablishment:
		return RankInnerDisciple
	case cultivation.CoreFormation:
		return RankElder
	default:
		return RankGrandElder
	}
}

// Sect is one living sect: identity plus roster.
type Sect struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	HQRegionID  int    `json:"hq_region_id"`
	LeaderID    string `json:"leader_id,omitempty"`

	members map[string]Rank
}

// New creates an empty sect.
func New(id, name, description string, hqRegionID int) *Sect {
	return &Sect{
		ID:          id,
		Name:        name,
		Description: description,
		HQRegionID:  hqRegionID,
		members:     make(map[string]Rank),
	}
}

// RankOf returns a member's rank.
func (s *Sect) RankOf(avatarID string) (Rank, bool) {
	r, ok := s.members[avatarID]
	return r, ok
}

// Members returns member ids sorted for deterministic iteration.
func (s *Sect) Members() []string {
	out := make([]string, 0, len(s.members))
	for id := range s.members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MemberCount returns the roster size.
func (s *Sect) MemberCount() int { return len(s.members) }

// Roster returns a copy of the full member->rank table.
func (s *Sect) Roster() map[string]Rank {
	out := make(map[string]Rank, len(s.members))
	for id, r := range s.members {
		out[id] = r
	}
	return out
}

// RestoreMember seats a member at a stored rank, bypassing the realm
// derivation. Used by save loading; call before handing the sect to a
// Manager so the reverse index picks it up.
func (s *Sect) RestoreMember(avatarID string, r Rank) {
	if s.members == nil {
		s.members = make(map[string]Rank)
	}
	s.members[avatarID] = r
}

// Manager owns every sect and a reverse index from avatar to sect. All
// membership changes go through it so the index never drifts.
type Manager struct {
	mu     sync.RWMutex
	sects  map[string]*Sect
	sectOf map[string]string
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{
		sects:  make(map[string]*Sect),
		sectOf: make(map[string]string),
	}
}

// Add registers a sect.
func (m *Manager) Add(s *Sect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.members == nil {
		s.members = make(map[string]Rank)
	}
	m.sects[s.ID] = s
	for id := range s.members {
		m.sectOf[id] = s.ID
	}
}

// Get returns a sect by id.
func (m *Manager) Get(id string) (*Sect, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sects[id]
	return s, ok
}

// All returns every sect sorted by id.
func (m *Manager) All() []*Sect {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Sect, 0, len(m.sects))
	for _, s := range m.sects {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SectOf returns the sect an avatar belongs to, or nil.
func (m *Manager) SectOf(avatarID string) *Sect {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sectOf[avatarID]
	if !ok {
		return nil
	}
	return m.sects[id]
}

// Join enrolls the avatar at the rank its realm earns, leaving any previous
// sect first. Joining the sect it is already in only refreshes the rank.
func (m *Manager) Join(sectID, avatarID string, realm cultivation.Realm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sects[sectID]
	if !ok {
		return fmt.Errorf("join sect: unknown sect %q", sectID)
	}
	if prev, ok := m.sectOf[avatarID]; ok && prev != sectID {
		m.leaveLocked(avatarID, prev)
	}
	s.members[avatarID] = RankForRealm(realm)
	m.sectOf[avatarID] = sectID
	return nil
}

// Leave removes the avatar from its sect, if any.
func (m *Manager) Leave(avatarID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.sectOf[avatarID]; ok {
		m.leaveLocked(avatarID, id)
	}
}

// SyncRank re-derives the avatar's rank after a breakthrough. Leaders keep
// their seat.
func (m *Manager) SyncRank(avatarID string, realm cultivation.Realm) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.sectOf[avatarID]
	if !ok {
		return
	}
	s := m.sects[id]
	if s.LeaderID == avatarID {
		return
	}
	s.members[avatarID] = RankForRealm(realm)
}

// SetLeader installs a member as leader.
func (m *Manager) SetLeader(sectID, avatarID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sects[sectID]
	if !ok {
		return fmt.Errorf("set leader: unknown sect %q", sectID)
	}
	if _, member := s.members[avatarID]; !member {
		return fmt.Errorf("set leader: %s is not a member of %s", avatarID, sectID)
	}
	s.LeaderID = avatarID
	s.members[avatarID] = RankLeader
	return nil
}

func (m *Manager) leaveLocked(avatarID, sectID string) {
	s := m.sects[sectID]
	delete(s.members, avatarID)
	if s.LeaderID == avatarID {
		s.LeaderID = ""
	}
	delete(m.sectOf, avatarID)
}
