// Package relation implements the directed, labeled relation graph between
// avatars. Every asserted edge is stored in both directions under the
// reciprocal-label invariant; second-degree relations (siblings, grandkin,
// martial kin) are computed from the asserted edges, never asserted.
package relation

import "errors"

// Label names one relation from the owner's point of view: the label is what
// the target IS TO the owner. A->B parent means B is A's parent.
type Label string

const (
	Parent      Label = "parent"
	Child       Label = "child"
	Sibling     Label = "sibling"
	Kin         Label = "kin"
	GrandParent Label = "grand_parent"
	GrandChild  Label = "grand_child"

	Master             Label = "master"
	Disciple           Label = "disciple"
	MartialSibling     Label = "martial_sibling"
	MartialGrandmaster Label = "martial_grandmaster"
	MartialGrandchild  Label = "martial_grandchild"

	SwornSibling Label = "sworn_sibling"
	Lover        Label = "lover"
	Friend       Label = "friend"
	Enemy        Label = "enemy"
)

// ErrInnate is returned when cancelling a blood relation.
var ErrInnate = errors.New("innate relation cannot be cancelled")

// ErrUnknownLabel is returned when asserting a label outside the catalogue.
var ErrUnknownLabel = errors.New("unknown relation label")

// reciprocal maps each label to the label the other side holds. Symmetric
// labels map to themselves.
var reciprocal = map[Label]Label{
	Parent:      Child,
	Child:       Parent,
	GrandParent: GrandChild,
	GrandChild:  GrandParent,
	Sibling:     Sibling,
	Kin:         Kin,

	Master:             Disciple,
	Disciple:           Master,
	MartialGrandmaster: MartialGrandchild,
	MartialGrandchild:  MartialGrandmaster,
	MartialSibling:     MartialSibling,

	SwornSibling: SwornSibling,
	Lover:        Lover,
	Friend:       Friend,
	Enemy:        Enemy,
}

// innate relations come from birth and can never be cancelled.
var innate = map[Label]bool{
	Parent:      true,
	Child:       true,
	Sibling:     true,
	Kin:         true,
	GrandParent: true,
	GrandChild:  true,
}

// derivedOnly relations are computed from the asserted graph and must not be
// asserted directly.
var derivedOnly = map[Label]bool{
	GrandParent:        true,
	GrandChild:         true,
	MartialSibling:     true,
	MartialGrandmaster: true,
	MartialGrandchild:  true,
}

// Reciprocal returns the label the other side of the edge carries.
func Reciprocal(l Label) (Label, bool) {
	r, ok := reciprocal[l]
	return r, ok
}

// IsInnate reports whether the label is a birth relation.
func IsInnate(l Label) bool { return innate[l] }

// Assertable reports whether the label may be written into the graph.
// Derived-only labels live exclusively in the computed snapshot.
func Assertable(l Label) bool {
	_, known := reciprocal[l]
	return known && !derivedOnly[l]
}

// LevelGapForMaster is the minimum level lead a master must hold over a
// prospective disciple.
const LevelGapForMaster = 20

// PossibleNew lists the labels an avatar could newly take toward a target,
// given the existing asserted label between them (empty when none), their
// levels, and whether the pair is of opposite gender. The returned labels
// are from the proposer's point of view: Master means "take the target as
// my master".
func PossibleNew(existing Label, ownLevel, targetLevel int, oppositeGender bool) []Label {
	switch existing {
	case "":
		// open pair, fall through
	case Friend:
		// friendship can deepen or sour
		var out []Label
		if oppositeGender {
			out = append(out, Lover)
		}
		out = append(out, SwornSibling, Enemy)
		return out
	default:
		return nil
	}

	var out []Label
	if oppositeGender {
		out = append(out, Lover)
	}
	if targetLevel >= ownLevel+LevelGapForMaster {
		out = append(out, Master)
	}
	if targetLevel <= ownLevel-LevelGapForMaster {
		out = append(out, Disciple)
	}
	out = append(out, Friend, SwornSibling, Enemy)
	return out
}
