package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/civicpulse/hub/internal/domain"
)

func TestRegisterUserValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.RegisterUser(ctx, SignupInput{FirstName: "A", LastName: "B", Email: "not-an-email", Password: "secret1"})
	wantStatus(t, err, http.StatusBadRequest)

	_, err = f.auth.RegisterUser(ctx, SignupInput{FirstName: "A", LastName: "B", Email: "ASHA@example.com", Password: "secret1"})
	wantStatus(t, err, http.StatusConflict)
}

func TestLoginFlowsIssueRoleTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, session, err := f.auth.LoginUser(ctx, "asha@example.com", "secret1")
	if err != nil {
		t.Fatalf("login user: %v", err)
	}
	if user.ID != f.citizen.ID || session.Actor != domain.UserActor(f.citizen.ID) {
		t.Fatalf("user session = %+v", session)
	}

	_, session, err = f.auth.LoginAdmin(ctx, "admin@city.gov", "adminpw")
	if err != nil || !session.Actor.IsAdmin() {
		t.Fatalf("login admin: %+v, %v", session, err)
	}

	dept, session, err := f.auth.LoginDepartment(ctx, "water", "WATER@city.gov", "waterpw")
	if err != nil {
		t.Fatalf("login department: %v", err)
	}
	if dept.ID != f.water.ID || !session.Actor.IsDepartment(f.water.ID) {
		t.Fatalf("department session = %+v", session)
	}
	claims, err := f.auth.TokenManager().ParseToken(session.Token)
	if err != nil || claims.Actor() != session.Actor {
		t.Fatalf("token round trip: %+v, %v", claims, err)
	}
}

func TestLoginFailuresAreUnauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.auth.LoginUser(ctx, "asha@example.com", "wrong")
	wantStatus(t, err, http.StatusUnauthorized)
	_, _, err = f.auth.LoginUser(ctx, "nobody@example.com", "secret1")
	wantStatus(t, err, http.StatusUnauthorized)
	_, _, err = f.auth.LoginAdmin(ctx, "asha@example.com", "secret1")
	wantStatus(t, err, http.StatusUnauthorized)
	_, _, err = f.auth.LoginDepartment(ctx, "Water", "roads@city.gov", "waterpw")
	wantStatus(t, err, http.StatusUnauthorized)
}

func TestWorkerManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	water := domain.DepartmentActor(f.water.ID)

	_, err := f.departments.CreateWorker(ctx, water, f.water.ID, WorkerInput{Name: "Dup", Email: "ravi@city.gov", PhoneNumber: "555-0999"})
	wantStatus(t, err, http.StatusConflict)
	_, err = f.departments.CreateWorker(ctx, water, f.roads.ID, WorkerInput{Name: "X", Email: "x@city.gov", PhoneNumber: "1"})
	wantStatus(t, err, http.StatusForbidden)
	_, err = f.departments.CreateWorker(ctx, water, f.water.ID, WorkerInput{Name: "", Email: "bad", PhoneNumber: ""})
	wantStatus(t, err, http.StatusBadRequest)

	workers, err := f.departments.ListWorkers(ctx, water, f.water.ID)
	if err != nil || len(workers) != 1 || workers[0].ID != f.plumber.ID {
		t.Fatalf("workers = %+v, %v", workers, err)
	}

	names, err := f.departments.ListNames(ctx)
	if err != nil || len(names) != 2 || names[0].Name != "Roads" {
		t.Fatalf("names = %+v, %v", names, err)
	}

	if _, err := f.departments.Get(ctx, domain.AdminActor(f.admin.ID), f.roads.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}
	_, err = f.departments.Get(ctx, water, f.roads.ID)
	wantStatus(t, err, http.StatusForbidden)
}
