package action

import (
	"fmt"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/relation"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

// socialRange is how close two avatars must be for a heart-to-heart.
const socialRange = 3

func resolveSocialTarget(e *Env, a *avatar.Avatar, p Params) (*avatar.Avatar, error) {
	targetID := p.Str("target")
	if targetID == "" || targetID == a.ID {
		return nil, fmt.Errorf("no valid target")
	}
	t, ok := e.Avatars.Get(targetID)
	if !ok || t.Dead {
		return nil, fmt.Errorf("target %s is gone", targetID)
	}
	if world.Manhattan(a.X, a.Y, t.X, t.Y) > socialRange {
		return nil, fmt.Errorf("%s is not close enough to %s", t.Name, a.Name)
	}
	return t, nil
}

// Confess declares love. Success asserts the lover edge on both sides and
// records the month it began.
type Confess struct{}

func (Confess) Name() string { return "confess" }

func (Confess) Traits() Traits {
	return Traits{AllowGathering: true, AllowWorldEvents: true, Major: true, Emoji: "💞"}
}

func (Confess) CanStart(e *Env, a *avatar.Avatar, p Params) error {
	t, err := resolveSocialTarget(e, a, p)
	if err != nil {
		return fmt.Errorf("confess: %w", err)
	}
	if !a.Gender.Opposite(t.Gender) {
		return fmt.Errorf("confess: %s and %s are not an eligible pair", a.Name, t.Name)
	}
	if l, ok := e.Graph.Label(a.ID, t.ID); ok && l != relation.Friend {
		return fmt.Errorf("confess: %s is already %s to %s", t.Name, l, a.Name)
	}
	return nil
}

func (Confess) Start(e *Env, a *avatar.Avatar, p Params) (Instance, *event.Event) {
	return &confessRun{targetID: p.Str("target")}, nil
}

type confessRun struct {
	targetID string
}

func (c *confessRun) Name() string { return "confess" }

func (c *confessRun) Step(e *Env, a *avatar.Avatar) StepResult {
	t, ok := e.Avatars.Get(c.targetID)
	if !ok || t.Dead {
		return StepResult{Done: true}
	}

	chance := 0.4
	if l, has := e.Graph.Label(a.ID, t.ID); has && l == relation.Friend {
		chance = 0.7
	}

	var ev event.Event
	if e.Rand.Chance(chance) {
		if err := e.SetRelation(a, t, relation.Lover); err != nil {
			return StepResult{Done: true}
		}
		ev = event.NewMajor(e.Now,
			fmt.Sprintf("%s confessed to %s, and the two became dao companions", a.DisplayName(), t.DisplayName()),
			a.ID, t.ID)
	} else {
		ev = event.New(e.Now,
			fmt.Sprintf("%s confessed to %s and was gently refused", a.DisplayName(), t.DisplayName()),
			a.ID, t.ID)
	}
	return StepResult{Done: true, Events: []event.Event{ev}}
}

func (c *confessRun) Finish(e *Env, a *avatar.Avatar) []event.Event { return nil }

// SwearBrotherhood proposes a sworn-sibling bond.
type SwearBrotherhood struct{}

func (SwearBrotherhood) Name() string { return "swear_brotherhood" }

func (SwearBrotherhood) Traits() Traits {
	return Traits{AllowGathering: true, AllowWorldEvents: true, Major: true, Emoji: "🤝"}
}

func (SwearBrotherhood) CanStart(e *Env, a *avatar.Avatar, p Params) error {
	t, err := resolveSocialTarget(e, a, p)
	if err != nil {
		return fmt.Errorf("swear brotherhood: %w", err)
	}
	if l, ok := e.Graph.Label(a.ID, t.ID); ok && l != relation.Friend {
		return fmt.Errorf("swear brotherhood: %s is already %s to %s", t.Name, l, a.Name)
	}
	return nil
}

func (SwearBrotherhood) Start(e *Env, a *avatar.Avatar, p Params) (Instance, *event.Event) {
	return &swearRun{targetID: p.Str("target")}, nil
}

type swearRun struct {
	targetID string
}

func (s *swearRun) Name() string { return "swear_brotherhood" }

func (s *swearRun) Step(e *Env, a *avatar.Avatar) StepResult {
	t, ok := e.Avatars.Get(s.targetID)
	if !ok || t.Dead {
		return StepResult{Done: true}
	}

	chance := 0.4
	if l, has := e.Graph.Label(a.ID, t.ID); has && l == relation.Friend {
		chance = 0.7
	}

	var ev event.Event
	if e.Rand.Chance(chance) {
		if err := e.SetRelation(a, t, relation.SwornSibling); err != nil {
			return StepResult{Done: true}
		}
		ev = event.NewMajor(e.Now,
			fmt.Sprintf("%s and %s swore an oath of brotherhood", a.DisplayName(), t.DisplayName()),
			a.ID, t.ID)
	} else {
		ev = event.New(e.Now,
			fmt.Sprintf("%s proposed an oath to %s and was declined", a.DisplayName(), t.DisplayName()),
			a.ID, t.ID)
	}
	return StepResult{Done: true, Events: []event.Event{ev}}
}

func (s *swearRun) Finish(e *Env, a *avatar.Avatar) []event.Event { return nil }

// AcknowledgeMaster bows to a far stronger cultivator. Success writes the
// master edge and enrolls the new disciple in the master's sect.
type AcknowledgeMaster struct{}

func (AcknowledgeMaster) Name() string { return "acknowledge_master" }

func (AcknowledgeMaster) Traits() Traits {
	return Traits{AllowGathering: true, AllowWorldEvents: true, Major: true, Emoji: "🙇"}
}

func (AcknowledgeMaster) CanStart(e *Env, a *avatar.Avatar, p Params) error {
	t, err := resolveSocialTarget(e, a, p)
	if err != nil {
		return fmt.Errorf("acknowledge master: %w", err)
	}
	if t.Progress.Level < a.Progress.Level+relation.LevelGapForMaster {
		return fmt.Errorf("acknowledge master: %s does not outrank %s enough", t.Name, a.Name)
	}
	if _, ok := e.Graph.Label(a.ID, t.ID); ok {
		return fmt.Errorf("acknowledge master: %s and %s are already bound", a.Name, t.Name)
	}
	return nil
}

func (AcknowledgeMaster) Start(e *Env, a *avatar.Avatar, p Params) (Instance, *event.Event) {
	return &acknowledgeRun{targetID: p.Str("target")}, nil
}

type acknowledgeRun struct {
	targetID string
}

func (r *acknowledgeRun) Name() string { return "acknowledge_master" }

func (r *acknowledgeRun) Step(e *Env, a *avatar.Avatar) StepResult {
	t, ok := e.Avatars.Get(r.targetID)
	if !ok || t.Dead {
		return StepResult{Done: true}
	}
	if err := e.AcknowledgeMaster(a, t); err != nil {
		return StepResult{Done: true}
	}
	ev := event.NewMajor(e.Now,
		fmt.Sprintf("%s took %s as master", a.DisplayName(), t.DisplayName()), a.ID, t.ID)
	return StepResult{Done: true, Events: []event.Event{ev}}
}

func (r *acknowledgeRun) Finish(e *Env, a *avatar.Avatar) []event.Event { return nil }
