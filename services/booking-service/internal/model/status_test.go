package model

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusNoShow, false},
		{StatusPending, StatusRescheduled, false},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusRejected, false},
		{StatusConfirmed, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusNoShow, StatusConfirmed, false},
		{StatusRescheduled, StatusConfirmed, false},
		{StatusRejected, StatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusOccupying(t *testing.T) {
	occupying := map[Status]bool{
		StatusPending:   true,
		StatusConfirmed: true,
	}
	all := []Status{
		StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled,
		StatusNoShow, StatusRescheduled, StatusRejected,
	}
	for _, s := range all {
		if got := s.IsOccupying(); got != occupying[s] {
			t.Errorf("%s.IsOccupying() = %v, want %v", s, got, occupying[s])
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled, StatusRejected} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusConfirmed} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if _, ok := ParseStatus("confirmed"); !ok {
		t.Fatal("confirmed should parse")
	}
	if _, ok := ParseStatus("Confirmed"); ok {
		t.Fatal("statuses are lower-case only")
	}
	if _, ok := ParseStatus(""); ok {
		t.Fatal("empty status should not parse")
	}
}
