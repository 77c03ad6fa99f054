package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/civicpulse/hub/internal/domain"
	"github.com/civicpulse/hub/internal/events"
	"github.com/civicpulse/hub/internal/lock"
	"github.com/civicpulse/hub/internal/repository"
	apperrors "github.com/civicpulse/hub/pkg/util/errorutil"
)

func wantStatus(t *testing.T, err error, status int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected HTTP %d error, got nil", status)
	}
	if got := apperrors.ToDomainError(err).HTTPStatus; got != status {
		t.Fatalf("status = %d, want %d (%v)", got, status, err)
	}
}

func TestRaiseStoresBeforeImage(t *testing.T) {
	f := newFixture(t)
	c := f.raise(t)

	if c.Status != domain.StatusPending || c.Department != nil {
		t.Fatalf("new complaint should be PENDING and unassigned: %+v", c)
	}
	if c.BeforeImagePath == nil || !strings.HasSuffix(*c.BeforeImagePath, ".png") {
		t.Fatalf("before image path = %v", c.BeforeImagePath)
	}
	if _, err := f.store.Get(context.Background(), *c.BeforeImagePath); err != nil {
		t.Fatalf("image not stored: %v", err)
	}
	if got := f.events.types(); len(got) != 1 || got[0] != events.EventComplaintCreated {
		t.Fatalf("events = %v", got)
	}
}

func TestRaiseRejectsOtherUsersAndMissingFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.complaints.Raise(ctx, domain.UserActor(f.other.ID), RaiseInput{UserID: f.citizen.ID, Title: "x", Category: "x", Description: "x", Location: "x"})
	wantStatus(t, err, http.StatusForbidden)

	_, err = f.complaints.Raise(ctx, domain.UserActor(f.citizen.ID), RaiseInput{UserID: f.citizen.ID, Title: "only title"})
	wantStatus(t, err, http.StatusBadRequest)

	_, err = f.complaints.Raise(ctx, domain.UserActor(f.citizen.ID), RaiseInput{
		UserID: f.citizen.ID, Title: "x", Category: "x", Description: "x", Location: "x", Image: []byte("plain text"),
	})
	wantStatus(t, err, http.StatusBadRequest)
}

func TestAssignDepartmentSetsDeadline(t *testing.T) {
	f := newFixture(t)
	c := f.raise(t)

	got, err := f.assignment.AssignDepartment(context.Background(), domain.AdminActor(f.admin.ID), c.ComplainID, f.water.ID, 5)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got.Status != domain.StatusInProgress {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Department == nil || got.Department.ID != f.water.ID || got.Department.Name != "Water" {
		t.Fatalf("department = %+v", got.Department)
	}
	want := f.now.Add(5 * 24 * time.Hour)
	if got.DeadlineAt == nil || !got.DeadlineAt.Equal(want) {
		t.Fatalf("deadline = %v, want %v", got.DeadlineAt, want)
	}
}

func TestAssignDepartmentGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.raise(t)
	admin := domain.AdminActor(f.admin.ID)

	_, err := f.assignment.AssignDepartment(ctx, domain.UserActor(f.citizen.ID), c.ComplainID, f.water.ID, 5)
	wantStatus(t, err, http.StatusForbidden)

	_, err = f.assignment.AssignDepartment(ctx, admin, c.ComplainID, f.water.ID, 0)
	wantStatus(t, err, http.StatusBadRequest)

	_, err = f.assignment.AssignDepartment(ctx, admin, c.ComplainID, 9999, 5)
	wantStatus(t, err, http.StatusNotFound)

	_, err = f.assignment.AssignDepartment(ctx, admin, 9999, f.water.ID, 5)
	wantStatus(t, err, http.StatusNotFound)

	if _, err := f.assignment.AssignDepartment(ctx, admin, c.ComplainID, f.water.ID, 5); err != nil {
		t.Fatalf("assign: %v", err)
	}
	_, err = f.assignment.AssignDepartment(ctx, admin, c.ComplainID, f.roads.ID, 5)
	wantStatus(t, err, http.StatusConflict)
}

func TestCompleteResolvesWithWorkersAndImage(t *testing.T) {
	f := newFixture(t)
	c := f.resolve(t)

	if c.Status != domain.StatusResolved {
		t.Fatalf("status = %s", c.Status)
	}
	if c.AfterImagePath == nil || !strings.HasPrefix(*c.AfterImagePath, "after_") {
		t.Fatalf("after image = %v", c.AfterImagePath)
	}
	if c.Message == nil || *c.Message != "Pipe replaced" {
		t.Fatalf("message = %v", c.Message)
	}
	workers, err := f.complaints.Workers(context.Background(), domain.UserActor(f.citizen.ID), c.ComplainID)
	if err != nil {
		t.Fatalf("workers: %v", err)
	}
	if len(workers) != 1 || workers[0].ID != f.plumber.ID {
		t.Fatalf("workers = %+v", workers)
	}
	text, err := f.complaints.CompletionTime(context.Background(), domain.AdminActor(f.admin.ID), c.ComplainID)
	if err != nil {
		t.Fatalf("completion time: %v", err)
	}
	if text != "2d 15h before deadline" {
		t.Fatalf("completion time = %q", text)
	}
}

func TestCompletePreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.raise(t)
	water := domain.DepartmentActor(f.water.ID)

	_, err := f.departments.Complete(ctx, water, c.ComplainID, CompleteInput{WorkerIDs: []int64{f.plumber.ID}, Image: pngBytes})
	wantStatus(t, err, http.StatusForbidden)

	if _, err := f.assignment.AssignDepartment(ctx, domain.AdminActor(f.admin.ID), c.ComplainID, f.water.ID, 2); err != nil {
		t.Fatalf("assign: %v", err)
	}

	tests := []struct {
		name   string
		actor  domain.Actor
		input  CompleteInput
		status int
	}{
		{"no workers", water, CompleteInput{Image: pngBytes}, http.StatusBadRequest},
		{"no image", water, CompleteInput{WorkerIDs: []int64{f.plumber.ID}}, http.StatusBadRequest},
		{"foreign worker", water, CompleteInput{WorkerIDs: []int64{f.paver.ID}, Image: pngBytes}, http.StatusBadRequest},
		{"unknown worker", water, CompleteInput{WorkerIDs: []int64{424242}, Image: pngBytes}, http.StatusBadRequest},
		{"other department", domain.DepartmentActor(f.roads.ID), CompleteInput{WorkerIDs: []int64{f.paver.ID}, Image: pngBytes}, http.StatusForbidden},
		{"admin", domain.AdminActor(f.admin.ID), CompleteInput{WorkerIDs: []int64{f.plumber.ID}, Image: pngBytes}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.departments.Complete(ctx, tt.actor, c.ComplainID, tt.input)
			wantStatus(t, err, tt.status)
		})
	}

	stored, err := f.db.Complaints().GetByID(ctx, c.ComplainID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != domain.StatusInProgress || stored.AfterImagePath != nil {
		t.Fatalf("failed completions must not change the complaint: %+v", stored)
	}
}

func TestUpdateMessageRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.raise(t)
	admin := domain.AdminActor(f.admin.ID)
	if _, err := f.assignment.AssignDepartment(ctx, admin, c.ComplainID, f.water.ID, 2); err != nil {
		t.Fatalf("assign: %v", err)
	}

	got, err := f.assignment.UpdateMessage(ctx, domain.DepartmentActor(f.water.ID), c.ComplainID, "In Progress", " crew on site ")
	if err != nil {
		t.Fatalf("department message: %v", err)
	}
	if got.Message == nil || *got.Message != "crew on site" {
		t.Fatalf("message = %v", got.Message)
	}

	_, err = f.assignment.UpdateMessage(ctx, domain.DepartmentActor(f.roads.ID), c.ComplainID, "", "not mine")
	wantStatus(t, err, http.StatusForbidden)

	_, err = f.assignment.UpdateMessage(ctx, admin, c.ComplainID, "RESOLVED", "skip ahead")
	wantStatus(t, err, http.StatusConflict)

	_, err = f.assignment.UpdateMessage(ctx, admin, c.ComplainID, "CLOSED", "bad")
	wantStatus(t, err, http.StatusBadRequest)

	resolved := f.resolve(t)
	_, err = f.assignment.UpdateMessage(ctx, admin, resolved.ComplainID, "", "too late")
	wantStatus(t, err, http.StatusConflict)
}

func TestFeedbackOncePerResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := domain.UserActor(f.citizen.ID)

	pending := f.raise(t)
	_, err := f.feedback.Submit(ctx, owner, pending.ComplainID, 4, "early")
	wantStatus(t, err, http.StatusConflict)

	c := f.resolve(t)
	_, err = f.feedback.Submit(ctx, domain.UserActor(f.other.ID), c.ComplainID, 4, "not mine")
	wantStatus(t, err, http.StatusForbidden)

	_, err = f.feedback.Submit(ctx, owner, c.ComplainID, 6, "too many stars")
	wantStatus(t, err, http.StatusBadRequest)

	if _, err := f.feedback.Submit(ctx, owner, c.ComplainID, 5, "great"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err = f.feedback.Submit(ctx, owner, c.ComplainID, 1, "changed my mind")
	wantStatus(t, err, http.StatusConflict)

	rating, err := f.feedback.Rating(ctx, owner, c.ComplainID)
	if err != nil || rating != 5 {
		t.Fatalf("rating = %d, %v", rating, err)
	}
}

func TestReassignAfterLowRatingArchivesFeedback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := domain.AdminActor(f.admin.ID)
	owner := domain.UserActor(f.citizen.ID)
	c := f.resolve(t)

	if _, err := f.feedback.Submit(ctx, owner, c.ComplainID, 2, "still leaking"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	fb, err := f.feedback.ForAdmin(ctx, admin, c.ComplainID)
	if err != nil || fb.Rating != 2 {
		t.Fatalf("admin feedback = %+v, %v", fb, err)
	}

	f.now = f.now.Add(96 * time.Hour)
	got, err := f.assignment.AssignDepartment(ctx, admin, c.ComplainID, f.roads.ID, 4)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if got.Status != domain.StatusInProgress || got.Department.ID != f.roads.ID {
		t.Fatalf("reassigned complaint = %+v", got)
	}
	if got.AfterImagePath != nil || got.ResolvedAt != nil || len(got.Workers) != 0 {
		t.Fatalf("completion data should be cleared: %+v", got)
	}
	if want := f.now.Add(4 * 24 * time.Hour); !got.DeadlineAt.Equal(want) {
		t.Fatalf("deadline = %v, want %v", got.DeadlineAt, want)
	}

	_, err = f.feedback.ForAdmin(ctx, admin, c.ComplainID)
	wantStatus(t, err, http.StatusNotFound)
	if rating, _ := f.feedback.Rating(ctx, owner, c.ComplainID); rating != 0 {
		t.Fatalf("rating after reassign = %d", rating)
	}
	all := f.db.AllFeedback()
	if len(all) != 1 || all[0].ArchivedAt == nil {
		t.Fatalf("feedback should be archived, got %+v", all)
	}

	types := f.events.types()
	if types[len(types)-1] != events.EventComplaintReassigned {
		t.Fatalf("last event = %s", types[len(types)-1])
	}

	// The next resolution accepts a fresh rating.
	if _, err := f.departments.Complete(ctx, domain.DepartmentActor(f.roads.ID), c.ComplainID, CompleteInput{
		WorkerIDs: []int64{f.paver.ID}, Image: pngBytes,
	}); err != nil {
		t.Fatalf("complete again: %v", err)
	}
	if _, err := f.feedback.Submit(ctx, owner, c.ComplainID, 5, "fixed now"); err != nil {
		t.Fatalf("second feedback: %v", err)
	}
}

func TestReassignRequiresQualifyingRating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := domain.AdminActor(f.admin.ID)
	c := f.resolve(t)

	_, err := f.assignment.AssignDepartment(ctx, admin, c.ComplainID, f.roads.ID, 4)
	wantStatus(t, err, http.StatusConflict)

	if _, err := f.feedback.Submit(ctx, domain.UserActor(f.citizen.ID), c.ComplainID, 4, "fine"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err = f.assignment.AssignDepartment(ctx, admin, c.ComplainID, f.roads.ID, 4)
	wantStatus(t, err, http.StatusConflict)
}

func TestConcurrentMutationFailsFast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.raise(t)

	release, err := f.locker.Acquire(ctx, lock.ComplaintKey(c.ComplainID))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	_, err = f.assignment.AssignDepartment(ctx, domain.AdminActor(f.admin.ID), c.ComplainID, f.water.ID, 5)
	wantStatus(t, err, http.StatusConflict)
	if de := apperrors.ToDomainError(err); de.Code != "MUTATION_IN_FLIGHT" {
		t.Fatalf("code = %s", de.Code)
	}
	release()

	if _, err := f.assignment.AssignDepartment(ctx, domain.AdminActor(f.admin.ID), c.ComplainID, f.water.ID, 5); err != nil {
		t.Fatalf("assign after release: %v", err)
	}
}

func TestStaleVersionIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.raise(t)

	stale := *c
	if _, err := f.assignment.AssignDepartment(ctx, domain.AdminActor(f.admin.ID), c.ComplainID, f.water.ID, 5); err != nil {
		t.Fatalf("assign: %v", err)
	}
	stale.Message = strPtr("lost update")
	core := f.assignment.complaintCore
	wantStatus(t, core.save(ctx, &stale, repository.UpdateOptions{}), http.StatusConflict)
}
