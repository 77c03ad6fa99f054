package domain

import (
	"errors"
	"testing"
	"time"
)

func TestStatusLabel(t *testing.T) {
	cases := map[string]string{
		"IN_PROGRESS": "In Progress",
		"PENDING":     "Pending",
		"RESOLVED":    "Resolved",
		"in_progress": "In Progress",
	}
	for in, want := range cases {
		if got := StatusLabel(in); got != want {
			t.Errorf("StatusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseStatusAcceptsLegacyLabels(t *testing.T) {
	for _, raw := range []string{"In Progress", "IN_PROGRESS", " in_progress "} {
		got, ok := ParseStatus(raw)
		if !ok || got != StatusInProgress {
			t.Errorf("ParseStatus(%q) = %q, %v", raw, got, ok)
		}
	}
	if _, ok := ParseStatus("CLOSED"); ok {
		t.Error("CLOSED should not parse")
	}
}

func TestCanAssign(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		status ComplaintStatus
		fb     *Feedback
		want   bool
	}{
		{"pending", StatusPending, nil, true},
		{"in progress", StatusInProgress, nil, false},
		{"resolved without feedback", StatusResolved, nil, false},
		{"resolved rating 2", StatusResolved, &Feedback{Rating: 2}, true},
		{"resolved rating 3", StatusResolved, &Feedback{Rating: 3}, true},
		{"resolved rating 4", StatusResolved, &Feedback{Rating: 4}, false},
		{"resolved rating 0", StatusResolved, &Feedback{Rating: 0}, false},
		{"resolved archived rating 1", StatusResolved, &Feedback{Rating: 1, ArchivedAt: &now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Complaint{Status: tt.status}
			if got := CanAssign(c, tt.fb); got != tt.want {
				t.Fatalf("CanAssign = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckAssignRejectsInProgress(t *testing.T) {
	err := CheckAssign(&Complaint{Status: StatusInProgress}, nil, 5)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := CheckAssign(&Complaint{Status: StatusPending}, nil, 0); !errors.Is(err, ErrInvalidTimeline) {
		t.Fatalf("expected ErrInvalidTimeline, got %v", err)
	}
	if err := CheckAssign(nil, nil, 3); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("nil complaint: expected ErrInvalidTransition, got %v", err)
	}
}

func TestValidateCompletion(t *testing.T) {
	if err := ValidateCompletion(nil, 100); !errors.Is(err, ErrNoWorkers) {
		t.Errorf("empty workers: got %v", err)
	}
	if err := ValidateCompletion([]int64{7}, 0); !errors.Is(err, ErrNoImage) {
		t.Errorf("missing image: got %v", err)
	}
	if err := ValidateCompletion([]int64{7, 9}, 10); err != nil {
		t.Errorf("valid completion: got %v", err)
	}
}

func TestCheckCompleteRequiresInProgress(t *testing.T) {
	for _, s := range []ComplaintStatus{StatusPending, StatusResolved} {
		if err := CheckComplete(&Complaint{Status: s}, []int64{1}, 1); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("status %s: got %v", s, err)
		}
	}
	if err := CheckComplete(&Complaint{Status: StatusInProgress}, []int64{1}, 1); err != nil {
		t.Errorf("in progress: %v", err)
	}
}

func TestCheckFeedback(t *testing.T) {
	resolved := &Complaint{Status: StatusResolved}
	if err := CheckFeedback(resolved, nil, 6); !errors.Is(err, ErrInvalidRating) {
		t.Errorf("rating 6: %v", err)
	}
	if err := CheckFeedback(&Complaint{Status: StatusInProgress}, nil, 3); !errors.Is(err, ErrFeedbackTooEarly) {
		t.Errorf("in progress: %v", err)
	}
	if err := CheckFeedback(resolved, &Feedback{Rating: 4}, 3); !errors.Is(err, ErrFeedbackExists) {
		t.Errorf("duplicate: %v", err)
	}
	archived := time.Now()
	if err := CheckFeedback(resolved, &Feedback{Rating: 1, ArchivedAt: &archived}, 5); err != nil {
		t.Errorf("after archive: %v", err)
	}
}

func TestFilterOpenPreservesOrder(t *testing.T) {
	list := []Complaint{
		{ComplainID: 1, Status: StatusResolved},
		{ComplainID: 2, Status: StatusInProgress},
		{ComplainID: 3, Status: StatusPending},
		{ComplainID: 4, Status: StatusResolved},
		{ComplainID: 5, Status: StatusPending},
	}
	got := FilterComplaints(list, FilterOpen)
	want := []int64{2, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("got %d complaints, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ComplainID != id {
			t.Errorf("position %d: got %d, want %d", i, got[i].ComplainID, id)
		}
	}
}

func TestCompletionTime(t *testing.T) {
	deadline := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	early := deadline.Add(-(26 * time.Hour))
	late := deadline.Add(50 * time.Hour)
	slightlyLate := deadline.Add(10 * time.Minute)

	if got := CompletionTime(&deadline, &early); got != "1d 2h before deadline" {
		t.Errorf("early: %q", got)
	}
	if got := CompletionTime(&deadline, &late); got != "2d 2h after deadline" {
		t.Errorf("late: %q", got)
	}
	if got := CompletionTime(&deadline, &deadline); got != "on the exact deadline day" {
		t.Errorf("exact: %q", got)
	}
	if got := CompletionTime(&deadline, &slightlyLate); got != "0d 0h after deadline" {
		t.Errorf("minutes late: %q", got)
	}
	if got := CompletionTime(nil, &late); got != "Completion time unavailable" {
		t.Errorf("missing deadline: %q", got)
	}
}

func TestCompletionTimeCountsFromDeadlineDayStart(t *testing.T) {
	deadline := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	midnight := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	afternoon := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	dayBefore := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

	if got := CompletionTime(&deadline, &midnight); got != "on the exact deadline day" {
		t.Errorf("midnight of deadline day: %q", got)
	}
	if got := CompletionTime(&deadline, &afternoon); got != "0d 14h after deadline" {
		t.Errorf("same afternoon: %q", got)
	}
	if got := CompletionTime(&deadline, &dayBefore); got != "0d 15h before deadline" {
		t.Errorf("day before: %q", got)
	}
}

func TestDeadlineAndOverdue(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := Deadline(now, 5)
	if d.Sub(now) != 5*24*time.Hour {
		t.Fatalf("deadline offset %v", d.Sub(now))
	}
	c := &Complaint{Status: StatusInProgress, DeadlineAt: &d}
	if c.Overdue(now) {
		t.Error("not overdue yet")
	}
	if !c.Overdue(d.Add(time.Second)) {
		t.Error("should be overdue")
	}
}
