package llm

import (
	"context"
	"fmt"
	"strings"
)

// Tasks wraps the gateway with the typed calls the tick phases make. Every
// method renders a template, calls the model, and decodes the reply into
// the phase's shape.
type Tasks struct {
	gw    *Gateway
	store *TemplateStore
}

// NewTasks binds the gateway to a template store.
func NewTasks(gw *Gateway, store *TemplateStore) *Tasks {
	return &Tasks{gw: gw, store: store}
}

// Enabled reports whether calls can be made.
func (t *Tasks) Enabled() bool { return t.gw.Enabled() }

// Healthy mirrors the gateway's health flag.
func (t *Tasks) Healthy() bool { return t.gw.Healthy() }

// PlanChoice is one queued action the model picked.
type PlanChoice struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Decision is the reply of the monthly plan-decide call.
type Decision struct {
	Thinking           string       `json:"thinking"`
	ShortTermObjective string       `json:"short_term_objective,omitempty"`
	Plans              []PlanChoice `json:"plans"`
}

// Decide asks for next month's plan queue.
func (t *Tasks) Decide(ctx context.Context, vars map[string]string) (Decision, error) {
	return callJSON[Decision](ctx, t, ClassNormal, "decide", vars, 1024)
}

// GoalReview is the reply of the objective-review call.
type GoalReview struct {
	ShortTermObjective string `json:"short_term_objective"`
	LongTermObjective  string `json:"long_term_objective"`
}

// ReviewGoals asks whether the avatar's objectives still fit its situation.
func (t *Tasks) ReviewGoals(ctx context.Context, vars map[string]string) (GoalReview, error) {
	return callJSON[GoalReview](ctx, t, ClassNormal, "goal_review", vars, 512)
}

// RelationDecision is the reply of the relation-evolution call. An empty
// Relation means no change; Cancel drops the existing edge instead.
type RelationDecision struct {
	Relation string `json:"relation,omitempty"`
	Cancel   bool   `json:"cancel,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ResolveRelation asks how a frequently-interacting pair's bond evolves.
func (t *Tasks) ResolveRelation(ctx context.Context, vars map[string]string) (RelationDecision, error) {
	return callJSON[RelationDecision](ctx, t, ClassNormal, "relation", vars, 256)
}

// Backstory asks for a short origin story for a newly awakened avatar.
func (t *Tasks) Backstory(ctx context.Context, vars map[string]string) (string, error) {
	return t.callText(ctx, ClassFast, "backstory", vars, 512)
}

// NicknameReply carries the earned nickname.
type NicknameReply struct {
	Nickname string `json:"nickname"`
	Reason   string `json:"reason,omitempty"`
}

// Nickname asks for an epithet for a newly famous avatar.
func (t *Tasks) Nickname(ctx context.Context, vars map[string]string) (NicknameReply, error) {
	return callJSON[NicknameReply](ctx, t, ClassFast, "nickname", vars, 128)
}

// Story asks for narration of a finished action or gathering.
func (t *Tasks) Story(ctx context.Context, vars map[string]string) (string, error) {
	return t.callText(ctx, ClassFast, "story", vars, 512)
}

func (t *Tasks) callText(ctx context.Context, class TaskClass, name string, vars map[string]string, maxTokens int) (string, error) {
	prompt, err := t.store.Templates().Render(name, vars)
	if err != nil {
		return "", err
	}
	reply, err := t.gw.Complete(ctx, class, "", prompt, maxTokens)
	if err != nil {
		return "", fmt.Errorf("task %s: %w", name, err)
	}
	return strings.TrimSpace(reply), nil
}

func callJSON[T any](ctx context.Context, t *Tasks, class TaskClass, name string, vars map[string]string, maxTokens int) (T, error) {
	var zero T
	prompt, err := t.store.Templates().Render(name, vars)
	if err != nil {
		return zero, err
	}
	reply, err := t.gw.Complete(ctx, class, "", prompt, maxTokens)
	if err != nil {
		return zero, fmt.Errorf("task %s: %w", name, err)
	}
	out, err := DecodeJSON[T](reply)
	if err != nil {
		return zero, fmt.Errorf("task %s: %w", name, err)
	}
	return out, nil
}
