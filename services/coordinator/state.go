package coordinator

import "fmt"

// MembershipState is the single relation a user has to an event at a point
// in time. StateNone is represented by row absence in the store.
type MembershipState string

const (
	StateNone              MembershipState = "none"
	StateOrganizer         MembershipState = "organizer"
	StateMember            MembershipState = "member"
	StatePendingRequest    MembershipState = "pending_request"
	StatePendingInvitation MembershipState = "pending_invitation"
)

// Valid reports whether s is a known state.
func (s MembershipState) Valid() bool {
	switch s {
	case StateNone, StateOrganizer, StateMember, StatePendingRequest, StatePendingInvitation:
		return true
	}
	return false
}

// ParseMembershipState converts a stored string back into a state.
func ParseMembershipState(raw string) (MembershipState, error) {
	s := MembershipState(raw)
	if !s.Valid() {
		return StateNone, fmt.Errorf("unknown membership state %q", raw)
	}
	return s, nil
}

// legalTransitions is the caller-triggered state machine per (event, user).
// The organizer state has no caller-triggered transitions.
var legalTransitions = map[MembershipState][]MembershipState{
	StateNone:              {StatePendingRequest, StatePendingInvitation, StateMember},
	StatePendingRequest:    {StateMember, StateNone},
	StatePendingInvitation: {StateMember, StateNone},
	StateMember:            {StateNone},
	StateOrganizer:         {},
}

// CanTransition reports whether moving from one state to another is ever
// legal, regardless of who is asking. Authorization is the workflow
// engine's concern.
func CanTransition(from, to MembershipState) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
