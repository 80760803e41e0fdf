// Package action implements the per-avatar action state machine: the
// catalogue of actions the decide phase can queue, the plan queue, and the
// monthly execution rounds with preemption.
package action

import (
	"fmt"
	"sort"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
)

// Params carries the decide phase's arguments for one plan. Values come
// from model JSON, so numbers arrive as float64.
type Params map[string]any

// Str returns a string param, empty when absent.
func (p Params) Str(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int returns an integer param, 0 when absent or non-numeric.
func (p Params) Int(key string) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Plan is one queued intent: an action name plus its arguments.
type Plan struct {
	Action string `json:"action"`
	Params Params `json:"params,omitempty"`
}

// Traits are an action's static attributes: the cooldown the runtime
// enforces before CanStart, whether the avatar can be pulled into
// gatherings or hit by fortune rolls mid-action, whether the start is a
// major event, and the map emoji.
type Traits struct {
	CooldownMonths   int
	AllowGathering   bool
	AllowWorldEvents bool
	Major            bool
	Emoji            string
}

// DefaultTraits is the permissive baseline: no cooldown, interruptible by
// gatherings and world events, minor start.
func DefaultTraits() Traits {
	return Traits{AllowGathering: true, AllowWorldEvents: true}
}

// Spec is one action in the catalogue. Specs are stateless; Start returns
// the per-run Instance.
type Spec interface {
	Name() string
	// Traits returns the action's static attributes.
	Traits() Traits
	// CanStart validates preconditions. A non-nil error drops the plan.
	CanStart(e *Env, a *avatar.Avatar, p Params) error
	// Start creates the running instance and the announcement event, which
	// may be nil for silent starts.
	Start(e *Env, a *avatar.Avatar, p Params) (Instance, *event.Event)
}

// Instance is one running action. Step is called once per month; when done
// it returns Done=true and the runtime calls Finish.
type Instance interface {
	Name() string
	Step(e *Env, a *avatar.Avatar) StepResult
	// Finish emits the completion events and applies final effects.
	Finish(e *Env, a *avatar.Avatar) []event.Event
}

// Interruptible is implemented by instances that need cleanup when another
// action preempts them.
type Interruptible interface {
	Interrupted(e *Env, a *avatar.Avatar)
}

// StepResult reports one month of progress.
type StepResult struct {
	Done   bool
	Events []event.Event
}

// Registry maps action names to specs.
type Registry struct {
	specs map[string]Spec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Register adds a spec; duplicate names panic at wiring time.
func (r *Registry) Register(s Spec) {
	if _, dup := r.specs[s.Name()]; dup {
		panic(fmt.Sprintf("action %q registered twice", s.Name()))
	}
	r.specs[s.Name()] = s
}

// Get looks up a spec by name.
func (r *Registry) Get(name string) (Spec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// Names returns the registered action names, sorted. The decide prompt
// lists them so the model only picks real actions.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.specs))
	for n := range r.specs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
