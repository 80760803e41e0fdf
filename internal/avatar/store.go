package avatar

import (
	"sort"
	"sync"

	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
)

// Store owns every avatar and mortal. Reads during the concurrent phases go
// through the RWMutex; mutation is confined to the sequential phases.
type Store struct {
	mu      sync.RWMutex
	avatars map[string]*Avatar
	mortals map[string]*Mortal

	// Per-tick birth and death ledgers, drained by the backstory and
	// death-resolution bookkeeping.
	newlyBorn []string
	newlyDead []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		avatars: make(map[string]*Avatar),
		mortals: make(map[string]*Mortal),
	}
}

// Add registers an avatar and records it in the newly-born ledger.
func (s *Store) Add(a *Avatar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avatars[a.ID] = a
	s.newlyBorn = append(s.newlyBorn, a.ID)
}

// Restore registers an avatar without touching the ledgers. Used by load.
func (s *Store) Restore(a *Avatar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avatars[a.ID] = a
}

// Get returns an avatar by id, dead or alive.
func (s *Store) Get(id string) (*Avatar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.avatars[id]
	return a, ok
}

// Living returns living avatars sorted by id for deterministic phase
// iteration.
func (s *Store) Living() []*Avatar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Avatar, 0, len(s.avatars))
	for _, a := range s.avatars {
		if !a.Dead {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Dead returns dead avatars sorted by id.
func (s *Store) Dead() []*Avatar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Avatar, 0)
	for _, a := range s.avatars {
		if a.Dead {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every avatar sorted by id.
func (s *Store) All() []*Avatar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Avatar, 0, len(s.avatars))
	for _, a := range s.avatars {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LivingCount returns the number of living avatars.
func (s *Store) LivingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.avatars {
		if !a.Dead {
			n++
		}
	}
	return n
}

// MarkDead flips the avatar to dead and records it in the newly-dead
// ledger. Relations and event history survive; the long-dead cleanup
// removes them later.
func (s *Store) MarkDead(id, reason string, now calendar.MonthStamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.avatars[id]
	if !ok || a.Dead {
		return
	}
	a.Dead = true
	a.DeathStamp = now
	a.DeathReason = reason
	a.HP = 0
	s.newlyDead = append(s.newlyDead, id)
}

// DrainNewlyBorn returns and clears the birth ledger.
func (s *Store) DrainNewlyBorn() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.newlyBorn
	s.newlyBorn = nil
	return out
}

// DrainNewlyDead returns and clears the death ledger.
func (s *Store) DrainNewlyDead() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.newlyDead
	s.newlyDead = nil
	return out
}

// RemoveLongDead deletes avatars dead for at least the given number of
// years and returns their ids. The caller is responsible for scrubbing
// relations.
func (s *Store) RemoveLongDead(now calendar.MonthStamp, years int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, a := range s.avatars {
		if a.Dead && now.YearsSince(a.DeathStamp) >= years {
			delete(s.avatars, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// AddMortal registers a mortal.
func (s *Store) AddMortal(m *Mortal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mortals[m.ID] = m
}

// Mortal returns a mortal by id.
func (s *Store) Mortal(id string) (*Mortal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mortals[id]
	return m, ok
}

// Mortals returns every mortal sorted by id.
func (s *Store) Mortals() []*Mortal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Mortal, 0, len(s.mortals))
	for _, m := range s.mortals {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PurgeElderlyMortals removes mortals past the given lifespan and returns
// their ids sorted.
func (s *Store) PurgeElderlyMortals(now calendar.MonthStamp, years int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, m := range s.mortals {
		if now.YearsSince(m.BirthStamp) >= years {
			delete(s.mortals, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// PromoteMortal removes the mortal and registers the awakened avatar under
// the same id.
func (s *Store) PromoteMortal(id string, a *Avatar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mortals, id)
	s.avatars[a.ID] = a
	s.newlyBorn = append(s.newlyBorn, a.ID)
}
