package action

import (
	"fmt"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/gamedata"
	"github.com/xiaocai218/cultivation-world-simulator/internal/world"
)

// Rest recovers HP until whole.
type Rest struct{}

func (Rest) Name() string { return "rest" }

func (Rest) Traits() Traits {
	return Traits{AllowGathering: true, AllowWorldEvents: true, Emoji: "😴"}
}

func (Rest) CanStart(e *Env, a *avatar.Avatar, p Params) error {
	if !a.Injured(e.Bundle()) {
		return fmt.Errorf("%s is unhurt", a.Name)
	}
	return nil
}

func (Rest) Start(e *Env, a *avatar.Avatar, p Params) (Instance, *event.Event) {
	return &restRun{}, nil
}

type restRun struct{}

func (r *restRun) Name() string { return "rest" }

func (r *restRun) Step(e *Env, a *avatar.Avatar) StepResult {
	max := a.HPMax(e.Bundle())
	a.Heal(max/5, e.Bundle())
	return StepResult{Done: a.HP >= max}
}

func (r *restRun) Finish(e *Env, a *avatar.Avatar) []event.Event {
	return []event.Event{event.New(e.Now,
		fmt.Sprintf("%s recovered from their wounds", a.DisplayName()), a.ID)}
}

// stonePriceFactor converts an elixir's potency into its market price.
const stonePriceFactor = 2

// BuyElixir spends spirit stones in a city market.
type BuyElixir struct{}

func (BuyElixir) Name() string { return "buy_elixir" }

func (BuyElixir) Traits() Traits {
	return Traits{AllowGathering: true, AllowWorldEvents: true, Emoji: "💰"}
}

func (b BuyElixir) CanStart(e *Env, a *avatar.Avatar, p Params) error {
	r := e.RegionOf(a)
	if r == nil || r.Kind != world.KindCity {
		return fmt.Errorf("buy elixir: %s is not in a city", a.Name)
	}
	el, err := b.resolve(e, p)
	if err != nil {
		return err
	}
	if price := el.Amount * stonePriceFactor; a.SpiritStones < price {
		return fmt.Errorf("buy elixir: %s cannot afford %s (%d stones)", a.Name, el.Name, price)
	}
	return nil
}

func (BuyElixir) resolve(e *Env, p Params) (*gamedata.Elixir, error) {
	id := p.Str("elixir")
	if id == "" {
		return nil, fmt.Errorf("buy elixir: no elixir given")
	}
	el, ok := e.Bundle().ElixirByID(id)
	if !ok {
		return nil, fmt.Errorf("buy elixir: unknown elixir %q", id)
	}
	return el, nil
}

func (b BuyElixir) Start(e *Env, a *avatar.Avatar, p Params) (Instance, *event.Event) {
	return &buyRun{elixirID: p.Str("elixir")}, nil
}

type buyRun struct {
	elixirID string
}

func (r *buyRun) Name() string { return "buy_elixir" }

func (r *buyRun) Step(e *Env, a *avatar.Avatar) StepResult {
	el, ok := e.Bundle().ElixirByID(r.elixirID)
	if !ok {
		return StepResult{Done: true}
	}
	price := el.Amount * stonePriceFactor
	if a.SpiritStones < price {
		return StepResult{Done: true}
	}
	a.SpiritStones -= price
	a.GainElixir(el.ID)
	ev := event.New(e.Now,
		fmt.Sprintf("%s bought a %s for %d spirit stones", a.DisplayName(), el.Name, price), a.ID)
	return StepResult{Done: true, Events: []event.Event{ev}}
}

func (r *buyRun) Finish(e *Env, a *avatar.Avatar) []event.Event { return nil }

// DefaultRegistry assembles the full action catalogue.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Cultivate{})
	r.Register(Breakthrough{})
	r.Register(OccupySpot{})
	r.Register(ReleaseSpot{})
	r.Register(Move{})
	r.Register(Hunt{})
	r.Register(Attack{})
	r.Register(Rest{})
	r.Register(BuyElixir{})
	r.Register(Confess{})
	r.Register(SwearBrotherhood{})
	r.Register(AcknowledgeMaster{})
	return r
}
