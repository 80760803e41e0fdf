package action

import (
	"fmt"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/gamedata"
	"github.com/xiaocai218/cultivation-world-simulator/internal/relation"
	"github.com/xiaocai218/cultivation-world-simulator/internal/rng"
	"github.com/xiaocai218/cultivation-world-simulator/internal/sect"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

// Env is everything a running action may touch. The simulator assembles
// one per tick; Now advances monthly.
type Env struct {
	Now     calendar.MonthStamp
	Map     *world.Map
	Avatars *avatar.Store
	Graph   *relation.Graph
	Sects   *sect.Manager
	Rand    *rng.Source
	Runtime *Runtime

	// Data returns the live static bundle; indirection so a language
	// switch lands mid-run.
	Data func() *gamedata.Bundle
	// ActivePhenomenon returns the current celestial phenomenon, nil when
	// none holds.
	ActivePhenomenon func() *world.Phenomenon
}

// Bundle is a nil-safe accessor for the static tables.
func (e *Env) Bundle() *gamedata.Bundle {
	if e.Data == nil {
		return nil
	}
	return e.Data()
}

// Phenomenon is a nil-safe accessor for the active phenomenon.
func (e *Env) Phenomenon() *world.Phenomenon {
	if e.ActivePhenomenon == nil {
		return nil
	}
	return e.ActivePhenomenon()
}

// SetRelation asserts a relation between two avatars, with the side effects
// the label carries. Taking a master also enrolls the disciple in the
// master's sect at the rank its realm earns.
func (e *Env) SetRelation(owner, target *avatar.Avatar, label relation.Label) error {
	if err := e.Graph.Set(owner.ID, target.ID, label, e.Now); err != nil {
		return err
	}
	switch label {
	case relation.Master:
		e.enrollWithMaster(owner, target)
	case relation.Disciple:
		e.enrollWithMaster(target, owner)
	}
	return nil
}

// CancelRelation drops the pair's edge when it carries the given label;
// innate relations refuse.
func (e *Env) CancelRelation(owner, target *avatar.Avatar, label relation.Label) error {
	return e.Graph.Cancel(owner.ID, target.ID, label)
}

// AcknowledgeMaster makes target the owner's master, with sect enrollment.
func (e *Env) AcknowledgeMaster(disciple, master *avatar.Avatar) error {
	if master.Progress.Level < disciple.Progress.Level+relation.LevelGapForMaster {
		return fmt.Errorf("acknowledge master: %s (lv%d) does not outrank %s (lv%d) enough",
			master.Name, master.Progress.Level, disciple.Name, disciple.Progress.Level)
	}
	return e.SetRelation(disciple, master, relation.Master)
}

func (e *Env) enrollWithMaster(disciple, master *avatar.Avatar) {
	if e.Sects == nil {
		return
	}
	if s := e.Sects.SectOf(master.ID); s != nil {
		// Join cannot fail for a sect the manager itself returned.
		_ = e.Sects.Join(s.ID, disciple.ID, disciple.Progress.Realm())
	}
}

// RegionOf returns the region covering the avatar's tile, nil in the open.
func (e *Env) RegionOf(a *avatar.Avatar) *world.Region {
	return e.Map.RegionAt(a.X, a.Y)
}

// AvatarsAt lists living avatars standing inside the region, excluding the
// given one.
func (e *Env) AvatarsAt(r *world.Region, except string) []*avatar.Avatar {
	var out []*avatar.Avatar
	for _, a := range e.Avatars.Living() {
		if a.ID == except {
			continue
		}
		if r.Contains(a.X, a.Y) {
			out = append(out, a)
		}
	}
	return out
}
