package scheduling

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusCanceled, true},
		{StatusApproved, StatusCompleted, true},
		{StatusApproved, StatusCanceled, true},

		{StatusPending, StatusCompleted, false},
		{StatusApproved, StatusPending, false},
		{StatusCompleted, StatusApproved, false},
		{StatusCompleted, StatusCanceled, false},
		{StatusCanceled, StatusPending, false},
		{StatusCanceled, StatusApproved, false},
	}

	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]AppointmentStatus{
		"pending":   StatusPending,
		"Approved":  StatusApproved,
		"APPROVED":  StatusApproved,
		"completed": StatusCompleted,
		"Canceled":  StatusCanceled,
		"cancelled": StatusCanceled,
		" approved ": StatusApproved,
	} {
		got, err := ParseStatus(in)
		if err != nil {
			t.Errorf("ParseStatus(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseStatus(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseStatus("confirmed"); err == nil {
		t.Error("ParseStatus accepted unknown status")
	}
}

func TestParseAppointmentType(t *testing.T) {
	for in, want := range map[string]AppointmentType{
		"checkup":     TypeCheckup,
		"Check-Up":    TypeCheckup,
		"Vaccination": TypeVaccination,
		"follow-up":   TypeFollowUp,
		"FollowUp":    TypeFollowUp,
	} {
		got, err := ParseAppointmentType(in)
		if err != nil {
			t.Errorf("ParseAppointmentType(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseAppointmentType(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseAppointmentType("surgery"); err == nil {
		t.Error("ParseAppointmentType accepted unknown type")
	}
}
