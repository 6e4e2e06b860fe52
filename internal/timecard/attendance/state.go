// Package attendance is the attendance state engine: it debounces raw tag
// detections, validates entrance/exit toggles against each badge's current
// status, appends accepted events to the Records ledger and keeps the Status
// sheet in step with it.
//
// The remote sheets are the source of truth.  The ledger is append-only and
// always written before status, so after any failure the ledger is ahead of
// status and never behind it.
package attendance

import (
	"errors"
	"fmt"
	"strings"
)

// State is a badge's presence: IN or OUT.  A badge never seen is OUT.
type State string

const (
	StateIn  State = "IN"
	StateOut State = "OUT"
)

// Valid reports whether s is IN or OUT.
func (s State) Valid() bool { return s == StateIn || s == StateOut }

// Opposite returns the other state.
func (s State) Opposite() State {
	if s == StateIn {
		return StateOut
	}
	return StateIn
}

// Action is what a swipe asks for.  Accepting an action moves the badge to
// the state of the same name.
type Action string

const (
	ActionIn  Action = "IN"
	ActionOut Action = "OUT"
)

// Target returns the state an accepted action leaves the badge in.
func (a Action) Target() State { return State(a) }

// ActionFor returns the action that moves a badge to s.
func ActionFor(s State) Action { return Action(s) }

var (
	ErrInvalidBadgeID = errors.New("badge id must be a non-empty hexadecimal string")
	ErrInvalidAction  = errors.New("action must be IN or OUT")
)

// ParseAction accepts IN/OUT in any case plus the entrance/exit aliases
// used by reader firmware.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "entrance", "enter":
		return ActionIn, nil
	case "out", "exit", "leave":
		return ActionOut, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// NormalizeBadgeID trims and upper-cases a raw tag identifier and checks
// that it is hexadecimal.
func NormalizeBadgeID(raw string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if id == "" {
		return "", ErrInvalidBadgeID
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'F') {
			return "", fmt.Errorf("%w: %q", ErrInvalidBadgeID, raw)
		}
	}
	return id, nil
}

// Unregistered is written into name, department and personal id for badges
// that have no Users row.
const Unregistered = "unregistered"

// Holder is the identity behind a badge.
type Holder struct {
	BadgeID    string
	Name       string
	Department string
	PersonalID string
}

// Registered reports whether the holder came from the Users sheet.
func (h Holder) Registered() bool { return h.Name != Unregistered }

// UnregisteredHolder returns the sentinel holder for a badge missing from
// the directory.
func UnregisteredHolder(badgeID string) Holder {
	return Holder{
		BadgeID:    badgeID,
		Name:       Unregistered,
		Department: Unregistered,
		PersonalID: Unregistered,
	}
}
