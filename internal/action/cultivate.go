package action

import (
	"fmt"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

// baseMonthlyExp is the raw exp one month of cultivation yields before
// technique, spot, and phenomenon factors.
const baseMonthlyExp = 30

// spotBonus multiplies cultivation while hosting a cultivate spot.
const spotBonus = 1.5

// Cultivate is the bread-and-butter action: sit and absorb qi for a few
// months.
type Cultivate struct{}

func (Cultivate) Name() string { return "cultivate" }

func (Cultivate) Traits() Traits {
	return Traits{Emoji: "🧘"}
}

func (Cultivate) CanStart(e *Env, a *avatar.Avatar, p Params) error {
	if a.Progress.InBottleneck() {
		return fmt.Errorf("%s is bottlenecked at %s peak; exp would be wasted", a.Name, a.Progress.Realm())
	}
	return nil
}

func (Cultivate) Start(e *Env, a *avatar.Avatar, p Params) (Instance, *event.Event) {
	months := p.Int("months")
	if months < 1 || months > 12 {
		months = 3
	}
	return &cultivateRun{remaining: months}, nil
}

type cultivateRun struct {
	remaining int
	gained    int
}

func (c *cultivateRun) Name() string { return "cultivate" }

func (c *cultivateRun) Step(e *Env, a *avatar.Avatar) StepResult {
	factor := a.CultivationFactor(e.Bundle(), e.Now)
	if ph := e.Phenomenon(); ph != nil && ph.ActiveAt(e.Now) && ph.CultivationFactor > 0 {
		factor *= ph.CultivationFactor
	}
	if a.OccupiedRegionID != 0 {
		if r := e.Map.Regions[a.OccupiedRegionID]; r != nil && r.Contains(a.X, a.Y) {
			factor *= spotBonus
		}
	}
	exp := int(baseMonthlyExp * factor)
	c.gained += exp
	a.Progress.AddExp(exp)

	c.remaining--
	// A bottleneck ends the session early; more sitting gains nothing.
	done := c.remaining <= 0 || a.Progress.InBottleneck()
	return StepResult{Done: done}
}

func (c *cultivateRun) Finish(e *Env, a *avatar.Avatar) []event.Event {
	content := fmt.Sprintf("%s finished a stretch of closed-door cultivation, gaining %d exp (now %s level %d)",
		a.DisplayName(), c.gained, a.Progress.Realm(), a.Progress.Level)
	return []event.Event{event.New(e.Now, content, a.ID)}
}

// breakthroughBaseChance is the odds of crossing a realm boundary before
// phenomenon bonuses.
const breakthroughBaseChance = 0.5

// breakthroughCooldownMonths spaces out attempts.
const breakthroughCooldownMonths = 6

// Breakthrough is the instant attempt to cross a realm boundary.
type Breakthrough struct{}

func (Breakthrough) Name() string { return "breakthrough" }

func (Breakthrough) Traits() Traits {
	return Traits{CooldownMonths: breakthroughCooldownMonths, Major: true, Emoji: "⚡"}
}

func (Breakthrough) CanStart(e *Env, a *avatar.Avatar, p Params) error {
	if !a.Progress.AtRealmPeak() || a.Progress.Exp < a.Progress.ExpToNextLevel() {
		return fmt.Errorf("%s is not at a realm peak with a full bar", a.Name)
	}
	return nil
}

func (Breakthrough) Start(e *Env, a *avatar.Avatar, p Params) (Instance, *event.Event) {
	return &breakthroughRun{}, nil
}

type breakthroughRun struct{}

func (b *breakthroughRun) Name() string { return "breakthrough" }

func (b *breakthroughRun) Step(e *Env, a *avatar.Avatar) StepResult {
	chance := breakthroughBaseChance
	if ph := e.Phenomenon(); ph != nil && ph.ActiveAt(e.Now) {
		chance += ph.BreakthroughBonus
	}

	var ev event.Event
	if e.Rand.Chance(chance) {
		before := a.Progress.Realm()
		a.Progress.Breakthrough()
		after := a.Progress.Realm()
		if e.Sects != nil {
			e.Sects.SyncRank(a.ID, after)
		}
		// Crossing into a new max HP band heals the difference feel: keep
		// current wounds, just raise the ceiling.
		if after != before {
			ev = event.NewMajor(e.Now, fmt.Sprintf("%s broke through to %s", a.DisplayName(), after), a.ID)
		} else {
			ev = event.New(e.Now, fmt.Sprintf("%s advanced to level %d", a.DisplayName(), a.Progress.Level), a.ID)
		}
	} else {
		drained := a.Progress.DrainExp(a.Progress.ExpToNextLevel() / 5)
		a.Damage(a.HPMax(e.Bundle()) / 10)
		ev = event.New(e.Now, fmt.Sprintf("%s failed a breakthrough, losing %d exp to qi backlash", a.DisplayName(), drained), a.ID)
	}
	return StepResult{Done: true, Events: []event.Event{ev}}
}

func (b *breakthroughRun) Finish(e *Env, a *avatar.Avatar) []event.Event { return nil }

// OccupySpot claims an unoccupied cultivate spot the avatar stands in.
type OccupySpot struct{}

func (OccupySpot) Name() string { return "occupy_spot" }

func (OccupySpot) Traits() Traits {
	return Traits{AllowGathering: true, AllowWorldEvents: true, Emoji: "🚩"}
}

func (OccupySpot) CanStart(e *Env, a *avatar.Avatar, p Params) error {
	r := e.RegionOf(a)
	if r == nil || r.Kind != world.KindCultivateSpot {
		return fmt.Errorf("%s is not standing in a cultivate spot", a.Name)
	}
	if r.Occupied() && r.HostAvatarID != a.ID {
		return fmt.Errorf("%s is already occupied", r.Name)
	}
	if a.OccupiedRegionID != 0 {
		return fmt.Errorf("%s already hosts another spot", a.Name)
	}
	return nil
}

func (OccupySpot) Start(e *Env, a *avatar.Avatar, p Params) (Instance, *event.Event) {
	return &occupyRun{}, nil
}

type occupyRun struct{}

func (o *occupyRun) Name() string { return "occupy_spot" }

func (o *occupyRun) Step(e *Env, a *avatar.Avatar) StepResult {
	r := e.RegionOf(a)
	var events []event.Event
	if r != nil {
		if err := a.OccupyRegion(r); err == nil {
			events = append(events, event.New(e.Now,
				fmt.Sprintf("%s settled into %s as its new master", a.DisplayName(), r.Name), a.ID))
		}
	}
	return StepResult{Done: true, Events: events}
}

func (o *occupyRun) Finish(e *Env, a *avatar.Avatar) []event.Event { return nil }

// ReleaseSpot gives up the hosted cultivate spot.
type ReleaseSpot struct{}

func (ReleaseSpot) Name() string { return "release_spot" }

func (ReleaseSpot) Traits() Traits {
	return Traits{AllowGathering: true, AllowWorldEvents: true, Emoji: "🏳️"}
}

func (ReleaseSpot) CanStart(e *Env, a *avatar.Avatar, p Params) error {
	if a.OccupiedRegionID == 0 {
		return fmt.Errorf("%s hosts no spot", a.Name)
	}
	return nil
}

func (ReleaseSpot) Start(e *Env, a *avatar.Avatar, p Params) (Instance, *event.Event) {
	return &releaseRun{}, nil
}

type releaseRun struct{}

func (r *releaseRun) Name() string { return "release_spot" }

func (r *releaseRun) Step(e *Env, a *avatar.Avatar) StepResult {
	region := e.Map.Regions[a.OccupiedRegionID]
	var events []event.Event
	if region != nil {
		a.ReleaseRegion(region)
		events = append(events, event.New(e.Now,
			fmt.Sprintf("%s abandoned %s", a.DisplayName(), region.Name), a.ID))
	} else {
		a.OccupiedRegionID = 0
	}
	return StepResult{Done: true, Events: events}
}

func (r *releaseRun) Finish(e *Env, a *avatar.Avatar) []event.Event { return nil }
