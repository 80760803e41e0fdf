// Package event defines the append-only world event log. Events are the
// shared memory of the simulation: prompts quote them, the UI streams them,
// and the finalize phase of every tick appends the month's batch.
package event

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/xiaocai218/cultivation-world-simulator/internal/calendar"
)

// Event is one dated occurrence. Major events enter everyone's prompt
// context; minor events only reach their participants. Story events carry
// LLM-written narration on top of the mechanical content line.
type Event struct {
	Seq          int64               `db:"seq" json:"seq"`
	ID           string              `db:"id" json:"id"`
	Stamp        calendar.MonthStamp `db:"stamp" json:"stamp"`
	Content      string              `db:"content" json:"content"`
	Participants []string            `db:"-" json:"participants,omitempty"`
	Major        bool                `db:"major" json:"major"`
	Story        bool                `db:"story" json:"story"`
}

// New creates a minor event involving the given avatars.
func New(stamp calendar.MonthStamp, content string, participants ...string) Event {
	return Event{
		ID:           uuid.NewString(),
		Stamp:        stamp,
		Content:      content,
		Participants: participants,
	}
}

// NewMajor creates a world-visible event.
func NewMajor(stamp calendar.MonthStamp, content string, participants ...string) Event {
	e := New(stamp, content, participants...)
	e.Major = true
	return e
}

func (e Event) String() string {
	return fmt.Sprintf("[%s] %s", e.Stamp, e.Content)
}
