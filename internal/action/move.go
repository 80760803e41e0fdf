package action

import (
	"fmt"
	"strconv"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

// tilesPerMonth is the overland travel speed.
const tilesPerMonth = 10

// Move walks the avatar toward a known region, one month of travel at a
// time.
type Move struct{}

func (Move) Name() string { return "move" }

func (Move) Traits() Traits {
	return Traits{AllowGathering: true, AllowWorldEvents: true, Emoji: "🚶"}
}

func (m Move) CanStart(e *Env, a *avatar.Avatar, p Params) error {
	r, err := m.resolve(e, a, p)
	if err != nil {
		return err
	}
	if r.Contains(a.X, a.Y) {
		return fmt.Errorf("%s is already in %s", a.Name, r.Name)
	}
	return nil
}

func (m Move) Start(e *Env, a *avatar.Avatar, p Params) (Instance, *event.Event) {
	r, _ := m.resolve(e, a, p)
	return &moveRun{targetID: r.ID}, nil
}

// resolve accepts a region id or name; the region must be known to the
// avatar.
func (Move) resolve(e *Env, a *avatar.Avatar, p Params) (*world.Region, error) {
	raw := p.Str("region")
	if raw == "" {
		if id := p.Int("region"); id != 0 {
			raw = strconv.Itoa(id)
		}
	}
	if raw == "" {
		return nil, fmt.Errorf("move: no region given")
	}
	if id, err := strconv.Atoi(raw); err == nil {
		if r, ok := e.Map.Regions[id]; ok && a.KnownRegionIDs[id] {
			return r, nil
		}
		return nil, fmt.Errorf("move: region %d unknown to %s", id, a.Name)
	}
	for id, r := range e.Map.Regions {
		if r.Name == raw && a.KnownRegionIDs[id] {
			return r, nil
		}
	}
	return nil, fmt.Errorf("move: region %q unknown to %s", raw, a.Name)
}

type moveRun struct {
	targetID int
}

func (m *moveRun) Name() string { return "move" }

func (m *moveRun) Step(e *Env, a *avatar.Avatar) StepResult {
	r := e.Map.Regions[m.targetID]
	if r == nil {
		return StepResult{Done: true}
	}
	stepToward(e.Map, a, r.CenterX, r.CenterY, tilesPerMonth)
	return StepResult{Done: r.Contains(a.X, a.Y)}
}

func (m *moveRun) Finish(e *Env, a *avatar.Avatar) []event.Event {
	r := e.Map.Regions[m.targetID]
	if r == nil {
		return nil
	}
	a.KnownRegionIDs[r.ID] = true
	return []event.Event{event.New(e.Now,
		fmt.Sprintf("%s arrived at %s", a.DisplayName(), r.Name), a.ID)}
}

// stepToward advances up to budget tiles along the Manhattan path, x first.
func stepToward(m *world.Map, a *avatar.Avatar, tx, ty, budget int) {
	for budget > 0 && (a.X != tx || a.Y != ty) {
		switch {
		case a.X < tx:
			a.X++
		case a.X > tx:
			a.X--
		case a.Y < ty:
			a.Y++
		default:
			a.Y--
		}
		budget--
	}
	if a.X < 0 {
		a.X = 0
	}
	if a.Y < 0 {
		a.Y = 0
	}
	if a.X >= m.Width {
		a.X = m.Width - 1
	}
	if a.Y >= m.Height {
		a.Y = m.Height - 1
	}
}
