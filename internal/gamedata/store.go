package gamedata

import (
	"fmt"
	"sync/atomic"
)

// Store holds the live bundle. SwitchLanguage loads the new language fully
// before publishing it, so readers always see one consistent bundle.
type Store struct {
	dir     string
	current atomic.Pointer[Bundle]
}

// NewStore loads the initial language and returns the store.
func NewStore(dir, lang string) (*Store, error) {
	b, err := Load(dir, lang)
	if err != nil {
		return nil, err
	}
	s := &Store{dir: dir}
	s.current.Store(b)
	return s, nil
}

// NewStoreFromBundle wraps an already-assembled bundle, bypassing the CSV
// loader. The bundle must have Init called. SwitchLanguage on such a store
// fails unless dir points at real data.
func NewStoreFromBundle(dir string, b *Bundle) *Store {
	s := &Store{dir: dir}
	s.current.Store(b)
	return s
}

// Bundle returns the live bundle.
func (s *Store) Bundle() *Bundle {
	return s.current.Load()
}

// SwitchLanguage swaps in a freshly loaded bundle for lang. On load failure
// the previous bundle stays live.
func (s *Store) SwitchLanguage(lang string) error {
	if s.Bundle().Language == lang {
		return nil
	}
	b, err := Load(s.dir, lang)
	if err != nil {
		return fmt.Errorf("switch language to %s: %w", lang, err)
	}
	s.current.Store(b)
	return nil
}
