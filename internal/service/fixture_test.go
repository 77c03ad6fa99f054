package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/civicpulse/hub/internal/auth"
	"github.com/civicpulse/hub/internal/config"
	"github.com/civicpulse/hub/internal/domain"
	"github.com/civicpulse/hub/internal/events"
	"github.com/civicpulse/hub/internal/lock"
	"github.com/civicpulse/hub/internal/repository/repotest"
	"github.com/civicpulse/hub/internal/storage"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db          *repotest.DB
	locker      *lock.LocalLocker
	store       *storage.MemoryStore
	events      *recordedEvents
	now         time.Time
	auth        *AuthService
	complaints  *ComplaintService
	assignment  *AssignmentService
	departments *DepartmentService
	feedback    *FeedbackService

	citizen domain.User
	other   domain.User
	admin   domain.Admin
	water   domain.Department
	roads   domain.Department
	plumber domain.Worker
	paver   domain.Worker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		db:     repotest.NewDB(),
		locker: lock.NewLocalLocker(time.Minute),
		store:  storage.NewMemoryStore(),
		events: &recordedEvents{},
		now:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.db.Now = func() time.Time { return f.now }

	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range events.AllEventTypes {
		dispatcher.Subscribe(et, f.events.handle)
	}
	images := storage.NewImages(f.store)
	core := CoreDependencies{
		ComplaintRepo: f.db.Complaints(),
		HistoryRepo:   f.db.History(),
		Locker:        f.locker,
		Dispatcher:    dispatcher,
		Logger:        zap.NewNop(),
		Now:           func() time.Time { return f.now },
	}

	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60, BcryptCost: 4}}
	f.auth = NewAuthService(cfg, AuthDependencies{
		UserRepo:       f.db.Users(),
		AdminRepo:      f.db.Admins(),
		DepartmentRepo: f.db.Departments(),
	})
	f.complaints = NewComplaintService(ComplaintDependencies{CoreDependencies: core, Images: images})
	f.assignment = NewAssignmentService(AssignmentDependencies{
		CoreDependencies: core,
		DepartmentRepo:   f.db.Departments(),
		FeedbackRepo:     f.db.Feedback(),
	})
	f.departments = NewDepartmentService(DepartmentDependencies{
		CoreDependencies: core,
		DepartmentRepo:   f.db.Departments(),
		WorkerRepo:       f.db.Workers(),
		Images:           images,
	})
	f.feedback = NewFeedbackService(FeedbackDependencies{CoreDependencies: core, FeedbackRepo: f.db.Feedback()})

	citizen, err := f.auth.RegisterUser(ctx, SignupInput{FirstName: "Asha", LastName: "Rao", Email: "asha@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register citizen: %v", err)
	}
	other, err := f.auth.RegisterUser(ctx, SignupInput{FirstName: "Ben", LastName: "Ng", Email: "ben@example.com", Password: "secret2"})
	if err != nil {
		t.Fatalf("register other: %v", err)
	}
	f.citizen, f.other = *citizen, *other
	f.admin = f.db.AddAdmin("admin@city.gov", mustHash(t, "adminpw"))

	for _, d := range []*domain.Department{
		{Name: "Water", Email: "water@city.gov", PasswordHash: mustHash(t, "waterpw")},
		{Name: "Roads", Email: "roads@city.gov", PasswordHash: mustHash(t, "roadspw")},
	} {
		if err := f.db.Departments().Create(ctx, d); err != nil {
			t.Fatalf("create department: %v", err)
		}
	}
	water, _ := f.db.Departments().GetByName(ctx, "Water")
	roads, _ := f.db.Departments().GetByName(ctx, "Roads")
	f.water, f.roads = *water, *roads

	plumber, err := f.departments.CreateWorker(ctx, domain.DepartmentActor(f.water.ID), f.water.ID, WorkerInput{Name: "Ravi", Email: "ravi@city.gov", PhoneNumber: "555-0101"})
	if err != nil {
		t.Fatalf("create plumber: %v", err)
	}
	paver, err := f.departments.CreateWorker(ctx, domain.DepartmentActor(f.roads.ID), f.roads.ID, WorkerInput{Name: "Mia", Email: "mia@city.gov", PhoneNumber: "555-0102"})
	if err != nil {
		t.Fatalf("create paver: %v", err)
	}
	f.plumber, f.paver = *plumber, *paver
	return f
}

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	hash, err := auth.HashPassword(pw, 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return hash
}

// raise files a PENDING complaint owned by the fixture citizen.
func (f *fixture) raise(t *testing.T) *domain.Complaint {
	t.Helper()
	c, err := f.complaints.Raise(context.Background(), domain.UserActor(f.citizen.ID), RaiseInput{
		UserID:      f.citizen.ID,
		Title:       "Burst pipe",
		Category:    "Water",
		Description: "Water flooding the street",
		Location:    "5th and Main",
		City:        "Springfield",
		Image:       pngBytes,
	})
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	return c
}

// resolve drives a fresh complaint to RESOLVED under the water department.
func (f *fixture) resolve(t *testing.T) *domain.Complaint {
	t.Helper()
	ctx := context.Background()
	c := f.raise(t)
	if _, err := f.assignment.AssignDepartment(ctx, domain.AdminActor(f.admin.ID), c.ComplainID, f.water.ID, 3); err != nil {
		t.Fatalf("assign: %v", err)
	}
	resolved, err := f.departments.Complete(ctx, domain.DepartmentActor(f.water.ID), c.ComplainID, CompleteInput{
		Message:   "Pipe replaced",
		WorkerIDs: []int64{f.plumber.ID},
		Image:     pngBytes,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return resolved
}
