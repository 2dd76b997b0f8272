package coordinator

import "testing"

func TestParseMembershipState(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    MembershipState
		wantErr bool
	}{
		{name: "none", input: "none", want: StateNone},
		{name: "organizer", input: "organizer", want: StateOrganizer},
		{name: "member", input: "member", want: StateMember},
		{name: "pending request", input: "pending_request", want: StatePendingRequest},
		{name: "pending invitation", input: "pending_invitation", want: StatePendingInvitation},
		{name: "unknown", input: "banned", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMembershipState(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMembershipState(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.want {
				t.Fatalf("ParseMembershipState(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from MembershipState
		to   MembershipState
		want bool
	}{
		{name: "none to member", from: StateNone, to: StateMember, want: true},
		{name: "none to pending request", from: StateNone, to: StatePendingRequest, want: true},
		{name: "none to pending invitation", from: StateNone, to: StatePendingInvitation, want: true},
		{name: "pending request to member", from: StatePendingRequest, to: StateMember, want: true},
		{name: "pending request to none", from: StatePendingRequest, to: StateNone, want: true},
		{name: "pending invitation to member", from: StatePendingInvitation, to: StateMember, want: true},
		{name: "pending invitation to none", from: StatePendingInvitation, to: StateNone, want: true},
		{name: "member to none", from: StateMember, to: StateNone, want: true},
		{name: "member to pending request", from: StateMember, to: StatePendingRequest, want: false},
		{name: "member to pending invitation", from: StateMember, to: StatePendingInvitation, want: false},
		{name: "organizer to none", from: StateOrganizer, to: StateNone, want: false},
		{name: "organizer to member", from: StateOrganizer, to: StateMember, want: false},
		{name: "pending request to pending invitation", from: StatePendingRequest, to: StatePendingInvitation, want: false},
		{name: "none to organizer", from: StateNone, to: StateOrganizer, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
