package action

import (
	"log/slog"
	"sync"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
)

// Runtime owns every avatar's plan queue and running instance. Avatars keep
// only serializable echoes (cooldowns, objectives); the live state machine
// is here.
type Runtime struct {
	registry *Registry

	mu       sync.Mutex
	plans    map[string][]Plan
	current  map[string]Instance
	newlySet map[string]bool
}

// NewRuntime builds a runtime over the given catalogue.
func NewRuntime(registry *Registry) *Runtime {
	return &Runtime{
		registry: registry,
		plans:    make(map[string][]Plan),
		current:  make(map[string]Instance),
		newlySet: make(map[string]bool),
	}
}

// Registry exposes the catalogue for prompt building.
func (r *Runtime) Registry() *Registry { return r.registry }

// SetPlans replaces the avatar's queue with the decide phase's output.
func (r *Runtime) SetPlans(avatarID string, plans []Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[avatarID] = plans
}

// Plans returns a copy of the queue.
func (r *Runtime) Plans(avatarID string) []Plan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Plan, len(r.plans[avatarID]))
	copy(out, r.plans[avatarID])
	return out
}

// Current returns the running instance, nil when idle.
func (r *Runtime) Current(avatarID string) Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current[avatarID]
}

// CurrentName returns the running action's name for display, empty when
// idle.
func (r *Runtime) CurrentName(avatarID string) string {
	if inst := r.Current(avatarID); inst != nil {
		return inst.Name()
	}
	return ""
}

// CurrentEmoji returns the running action's map emoji, empty when idle.
func (r *Runtime) CurrentEmoji(avatarID string) string {
	if inst := r.Current(avatarID); inst != nil {
		return r.traitsOf(inst.Name()).Emoji
	}
	return ""
}

// traitsOf resolves the traits for an action name. Unregistered instances
// (combat reactions installed by preemption) get the permissive defaults.
func (r *Runtime) traitsOf(name string) Traits {
	if spec, ok := r.registry.Get(name); ok {
		return spec.Traits()
	}
	return DefaultTraits()
}

// AllowsGathering reports whether the avatar can be drawn into a gathering
// right now. Idle avatars always can.
func (r *Runtime) AllowsGathering(avatarID string) bool {
	inst := r.Current(avatarID)
	if inst == nil {
		return true
	}
	return r.traitsOf(inst.Name()).AllowGathering
}

// AllowsWorldEvents reports whether fortune and misfortune may strike the
// avatar right now. Idle avatars are always exposed.
func (r *Runtime) AllowsWorldEvents(avatarID string) bool {
	inst := r.Current(avatarID)
	if inst == nil {
		return true
	}
	return r.traitsOf(inst.Name()).AllowWorldEvents
}

// Idle reports whether the avatar has neither instance nor queued plans.
func (r *Runtime) Idle(avatarID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current[avatarID] == nil && len(r.plans[avatarID]) == 0
}

// Clear drops the avatar's queue and instance. Used on death.
func (r *Runtime) Clear(avatarID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.plans, avatarID)
	delete(r.current, avatarID)
	delete(r.newlySet, avatarID)
}

// PlanSnapshot exports every queue for persistence. Running instances are
// not serialized; a loaded world re-decides on its first tick.
func (r *Runtime) PlanSnapshot() map[string][]Plan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]Plan, len(r.plans))
	for id, queue := range r.plans {
		if len(queue) == 0 {
			continue
		}
		cp := make([]Plan, len(queue))
		copy(cp, queue)
		out[id] = cp
	}
	return out
}

// RestorePlans loads a plan snapshot, replacing all queues.
func (r *Runtime) RestorePlans(plans map[string][]Plan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans = make(map[string][]Plan, len(plans))
	for id, queue := range plans {
		cp := make([]Plan, len(queue))
		copy(cp, queue)
		r.plans[id] = cp
	}
}

// Preempt replaces the avatar's running action, interrupting the previous
// one, and flags the avatar for a step in the next execution round.
func (r *Runtime) Preempt(e *Env, target *avatar.Avatar, inst Instance) {
	r.mu.Lock()
	prev := r.current[target.ID]
	r.current[target.ID] = inst
	r.newlySet[target.ID] = true
	r.mu.Unlock()

	if intr, ok := prev.(Interruptible); ok {
		intr.Interrupted(e, target)
	}
}

// CommitNext pops plans until one starts. Plans whose preconditions fail
// are dropped with a warning, matching the decide contract: a plan is a
// wish, not a guarantee. No-op when an instance is already running.
func (r *Runtime) CommitNext(e *Env, a *avatar.Avatar) []event.Event {
	r.mu.Lock()
	if r.current[a.ID] != nil {
		r.mu.Unlock()
		return nil
	}
	queue := r.plans[a.ID]
	r.mu.Unlock()

	var events []event.Event
	for len(queue) > 0 {
		plan := queue[0]
		queue = queue[1:]

		spec, ok := r.registry.Get(plan.Action)
		if !ok {
			slog.Warn("dropping unknown action plan", "avatar", a.Name, "action", plan.Action)
			continue
		}
		traits := spec.Traits()
		if traits.CooldownMonths > 0 && a.OnCooldown(spec.Name(), e.Now, traits.CooldownMonths) {
			slog.Warn("dropping plan on cooldown", "avatar", a.Name, "action", plan.Action)
			continue
		}
		if err := spec.CanStart(e, a, plan.Params); err != nil {
			slog.Warn("dropping unstartable plan", "avatar", a.Name, "action", plan.Action, "reason", err)
			continue
		}
		inst, ev := spec.Start(e, a, plan.Params)
		if ev != nil && traits.Major {
			ev.Major = true
		}
		r.mu.Lock()
		r.plans[a.ID] = queue
		r.current[a.ID] = inst
		r.mu.Unlock()
		if ev != nil {
			events = append(events, *ev)
		}
		return events
	}

	r.mu.Lock()
	r.plans[a.ID] = queue
	r.mu.Unlock()
	return events
}

// ExecuteMonth steps every running action once, then grants extra rounds to
// avatars whose action was preempted during the round, up to maxRounds.
// Round one covers everyone; later rounds only the newly preempted.
func (r *Runtime) ExecuteMonth(e *Env, maxRounds int) []event.Event {
	var events []event.Event

	r.mu.Lock()
	r.newlySet = make(map[string]bool)
	r.mu.Unlock()

	targets := r.livingWithInstance(e)
	for round := 1; round <= maxRounds && len(targets) > 0; round++ {
		for _, a := range targets {
			// Stepping consumes any preemption flag: the avatar is acting
			// on its newest instance right now.
			r.mu.Lock()
			delete(r.newlySet, a.ID)
			inst := r.current[a.ID]
			r.mu.Unlock()
			if inst == nil || a.Dead {
				continue
			}

			res := inst.Step(e, a)
			events = append(events, res.Events...)

			r.mu.Lock()
			replaced := r.current[a.ID] != inst
			r.mu.Unlock()
			if replaced {
				// Someone preempted this avatar during its own step; the
				// replacement runs in the next round.
				continue
			}
			if res.Done {
				events = append(events, inst.Finish(e, a)...)
				a.MarkCooldown(inst.Name(), e.Now)
				r.mu.Lock()
				if r.current[a.ID] == inst {
					delete(r.current, a.ID)
				}
				r.mu.Unlock()
			}
		}

		targets = r.preemptedLiving(e)
	}
	return events
}

func (r *Runtime) livingWithInstance(e *Env) []*avatar.Avatar {
	var out []*avatar.Avatar
	for _, a := range e.Avatars.Living() {
		if r.Current(a.ID) != nil {
			out = append(out, a)
		}
	}
	return out
}

func (r *Runtime) preemptedLiving(e *Env) []*avatar.Avatar {
	r.mu.Lock()
	flagged := make(map[string]bool, len(r.newlySet))
	for id := range r.newlySet {
		flagged[id] = true
	}
	r.mu.Unlock()

	var out []*avatar.Avatar
	for _, a := range e.Avatars.Living() {
		if flagged[a.ID] && r.Current(a.ID) != nil {
			out = append(out, a)
		}
	}
	return out
}
