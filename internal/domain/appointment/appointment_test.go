package appointment

import (
	"testing"
	"time"
)

func TestNormalize_Defaults(t *testing.T) {
	a := &Appointment{ScheduledAt: time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)}
	a.Normalize()

	if a.DurationMins != DefaultDurationMins {
		t.Errorf("expected default duration %d, got %d", DefaultDurationMins, a.DurationMins)
	}
	if a.Status != StatusScheduled {
		t.Errorf("expected status scheduled, got %s", a.Status)
	}
	if a.Date != "2026-03-09" {
		t.Errorf("expected date 2026-03-09, got %s", a.Date)
	}
}

func TestNormalize_DateUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	a := &Appointment{ScheduledAt: time.Date(2026, 3, 10, 2, 0, 0, 0, loc)}
	a.Normalize()
	if a.Date != "2026-03-09" {
		t.Errorf("expected UTC date 2026-03-09, got %s", a.Date)
	}
}

func TestUpdateCommand_RederivesDate(t *testing.T) {
	a := &Appointment{ScheduledAt: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	a.Normalize()

	next := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	(&UpdateAppointmentCommand{ScheduledAt: &next}).Apply(a)

	if a.Date != "2026-01-05" {
		t.Errorf("expected date to follow schedule, got %s", a.Date)
	}
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusConfirmed, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusCompleted, StatusScheduled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusInProgress, StatusCancelled, false},
		{StatusConfirmed, StatusConfirmed, true},
	}
	for _, tt := range tests {
		a := &Appointment{Status: tt.from}
		if got := a.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
