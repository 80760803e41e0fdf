package action

import (
	"fmt"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

// attackRange is the Manhattan distance within which a fight can start or
// continue.
const attackRange = 5

// fleeDistance is how far a fleeing avatar must get to escape.
const fleeDistance = 15

// fleeSpeed beats travel speed; terror is a good motivator.
const fleeSpeed = 12

// combatPower scores one side of a fight for the fight-or-flight choice.
func combatPower(e *Env, a *avatar.Avatar) int {
	return a.AttackPower(e.Bundle(), e.Now) + a.HP/10
}

// hit applies one exchange of blows from attacker to defender and returns
// the damage dealt.
func hit(e *Env, attacker, defender *avatar.Avatar) int {
	atk := attacker.AttackPower(e.Bundle(), e.Now)
	def := 0
	if b := e.Bundle(); b != nil && defender.AuxiliaryID != "" {
		if aux, ok := b.AuxiliaryByID(defender.AuxiliaryID); ok {
			def = aux.Defense
		}
	}
	// 80%-120% swing keeps fights from being fully deterministic.
	dmg := atk*e.Rand.Between(80, 120)/100 - def/2
	if dmg < 1 {
		dmg = 1
	}
	defender.Damage(dmg)
	return dmg
}

// Attack opens a fight against another avatar in range. The target is
// preempted into fighting back or fleeing depending on relative power.
type Attack struct{}

func (Attack) Name() string { return "attack" }

func (Attack) Traits() Traits {
	return Traits{Emoji: "⚔️"}
}

func (Attack) CanStart(e *Env, a *avatar.Avatar, p Params) error {
	targetID := p.Str("target")
	if targetID == "" || targetID == a.ID {
		return fmt.Errorf("attack: no valid target")
	}
	t, ok := e.Avatars.Get(targetID)
	if !ok || t.Dead {
		return fmt.Errorf("attack: target %s is gone", targetID)
	}
	if world.Manhattan(a.X, a.Y, t.X, t.Y) > attackRange {
		return fmt.Errorf("attack: %s is out of reach of %s", t.Name, a.Name)
	}
	return nil
}

func (Attack) Start(e *Env, a *avatar.Avatar, p Params) (Instance, *event.Event) {
	targetID := p.Str("target")
	t, _ := e.Avatars.Get(targetID)
	ev := event.New(e.Now, fmt.Sprintf("%s attacked %s", a.DisplayName(), t.DisplayName()), a.ID, t.ID)
	return &attackRun{targetID: targetID}, &ev
}

type attackRun struct {
	targetID string
	engaged  bool
}

func (r *attackRun) Name() string { return "attack" }

func (r *attackRun) Step(e *Env, a *avatar.Avatar) StepResult {
	t, ok := e.Avatars.Get(r.targetID)
	if !ok || t.Dead {
		return StepResult{Done: true}
	}
	if world.Manhattan(a.X, a.Y, t.X, t.Y) > attackRange {
		return StepResult{Done: true, Events: []event.Event{
			event.New(e.Now, fmt.Sprintf("%s escaped from %s", t.DisplayName(), a.DisplayName()), a.ID, t.ID),
		}}
	}

	if !r.engaged {
		r.engaged = true
		// The victim reacts: fight when the odds look fair, run otherwise.
		if combatPower(e, t)*10 >= combatPower(e, a)*8 {
			e.Runtime.Preempt(e, t, &fightBackRun{attackerID: a.ID})
		} else {
			e.Runtime.Preempt(e, t, &fleeRun{threatID: a.ID})
		}
	}

	dmg := hit(e, a, t)
	var events []event.Event
	if t.HP <= 0 {
		events = append(events, event.NewMajor(e.Now,
			fmt.Sprintf("%s struck down %s", a.DisplayName(), t.DisplayName()), a.ID, t.ID))
		return StepResult{Done: true, Events: events}
	}
	events = append(events, event.New(e.Now,
		fmt.Sprintf("%s wounded %s for %d", a.DisplayName(), t.DisplayName(), dmg), a.ID, t.ID))

	// Break off when the fight turns against the aggressor.
	if a.HP*10 < a.HPMax(e.Bundle())*3 {
		events = append(events, event.New(e.Now,
			fmt.Sprintf("%s broke off the attack on %s", a.DisplayName(), t.DisplayName()), a.ID, t.ID))
		return StepResult{Done: true, Events: events}
	}
	return StepResult{Events: events}
}

func (r *attackRun) Finish(e *Env, a *avatar.Avatar) []event.Event { return nil }

// fightBackRun is installed on an attacked avatar that chose to stand.
type fightBackRun struct {
	attackerID string
}

func (r *fightBackRun) Name() string { return "fight_back" }

func (r *fightBackRun) Step(e *Env, a *avatar.Avatar) StepResult {
	att, ok := e.Avatars.Get(r.attackerID)
	if !ok || att.Dead || world.Manhattan(a.X, a.Y, att.X, att.Y) > attackRange {
		return StepResult{Done: true}
	}
	// Stand down once the aggressor has stopped attacking us.
	if cur := e.Runtime.Current(att.ID); cur == nil {
		return StepResult{Done: true}
	} else if ar, isAttack := cur.(*attackRun); !isAttack || ar.targetID != a.ID {
		return StepResult{Done: true}
	}

	dmg := hit(e, a, att)
	var events []event.Event
	if att.HP <= 0 {
		events = append(events, event.NewMajor(e.Now,
			fmt.Sprintf("%s cut down %s in self-defense", a.DisplayName(), att.DisplayName()), a.ID, att.ID))
		return StepResult{Done: true, Events: events}
	}
	events = append(events, event.New(e.Now,
		fmt.Sprintf("%s fought back against %s for %d", a.DisplayName(), att.DisplayName(), dmg), a.ID, att.ID))
	return StepResult{Events: events}
}

func (r *fightBackRun) Finish(e *Env, a *avatar.Avatar) []event.Event { return nil }

// fleeRun is installed on an attacked avatar that chose to run.
type fleeRun struct {
	threatID string
	months   int
}

func (r *fleeRun) Name() string { return "flee" }

func (r *fleeRun) Step(e *Env, a *avatar.Avatar) StepResult {
	threat, ok := e.Avatars.Get(r.threatID)
	if !ok || threat.Dead {
		return StepResult{Done: true}
	}
	// Run directly away, clamped to the map edge.
	tx := a.X + (a.X-threat.X)*fleeSpeed
	ty := a.Y + (a.Y-threat.Y)*fleeSpeed
	if tx == a.X && ty == a.Y {
		tx = a.X + fleeSpeed
	}
	stepToward(e.Map, a, clamp(tx, 0, e.Map.Width-1), clamp(ty, 0, e.Map.Height-1), fleeSpeed)

	r.months++
	escaped := world.Manhattan(a.X, a.Y, threat.X, threat.Y) >= fleeDistance
	if escaped || r.months >= 3 {
		return StepResult{Done: true, Events: []event.Event{
			event.New(e.Now, fmt.Sprintf("%s fled from %s", a.DisplayName(), threat.DisplayName()), a.ID, threat.ID),
		}}
	}
	return StepResult{}
}

func (r *fleeRun) Finish(e *Env, a *avatar.Avatar) []event.Event { return nil }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Hunt works the wilds for spirit stones and tempering experience.
type Hunt struct{}

func (Hunt) Name() string { return "hunt" }

func (Hunt) Traits() Traits {
	return Traits{AllowWorldEvents: true, Emoji: "🏹"}
}

func (Hunt) CanStart(e *Env, a *avatar.Avatar, p Params) error {
	r := e.RegionOf(a)
	if r == nil || r.Kind != world.KindWild {
		return fmt.Errorf("%s is not in the wilds", a.Name)
	}
	return nil
}

func (Hunt) Start(e *Env, a *avatar.Avatar, p Params) (Instance, *event.Event) {
	months := p.Int("months")
	if months < 1 || months > 6 {
		months = 2
	}
	return &huntRun{remaining: months}, nil
}

type huntRun struct {
	remaining int
	stones    int
}

func (h *huntRun) Name() string { return "hunt" }

func (h *huntRun) Step(e *Env, a *avatar.Avatar) StepResult {
	gain := e.Rand.Between(5, 15)
	a.SpiritStones += gain
	h.stones += gain
	a.Progress.AddExp(e.Rand.Between(20, 40))

	// Beasts bite back now and then.
	if e.Rand.Chance(0.15) {
		a.Damage(a.HPMax(e.Bundle()) / 10)
	}

	h.remaining--
	return StepResult{Done: h.remaining <= 0 || a.HP*10 < a.HPMax(e.Bundle())*3}
}

func (h *huntRun) Finish(e *Env, a *avatar.Avatar) []event.Event {
	return []event.Event{event.New(e.Now,
		fmt.Sprintf("%s returned from hunting with %d spirit stones", a.DisplayName(), h.stones), a.ID)}
}
