// Package repotest provides in-memory repositories for service and handler tests.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/civicpulse/hub/internal/domain"
	"github.com/civicpulse/hub/internal/repository"
)

// DB is a shared in-memory dataset. The repository views returned by its methods
// read and write the same maps, so cross-table effects such as feedback archiving
// behave like the Postgres implementation.
type DB struct {
	mu          sync.Mutex
	seq         int64
	users       map[int64]domain.User
	admins      map[int64]domain.Admin
	departments map[int64]domain.Department
	workers     map[int64]domain.Worker
	complaints  map[int64]storedComplaint
	feedback    []domain.Feedback
	history     []domain.ComplaintHistory

	// Now stamps created rows; defaults to time.Now.
	Now func() time.Time
}

type storedComplaint struct {
	complaint domain.Complaint
	workerIDs []int64
}

// NewDB returns an empty dataset.
func NewDB() *DB {
	return &DB{
		users:       map[int64]domain.User{},
		admins:      map[int64]domain.Admin{},
		departments: map[int64]domain.Department{},
		workers:     map[int64]domain.Worker{},
		complaints:  map[int64]storedComplaint{},
		Now:         time.Now,
	}
}

func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}

// AddAdmin seeds an administrator.
func (db *DB) AddAdmin(email, passwordHash string) domain.Admin {
	db.mu.Lock()
	defer db.mu.Unlock()
	admin := domain.Admin{ID: db.nextID(), Email: email, PasswordHash: passwordHash, CreatedAt: db.Now()}
	db.admins[admin.ID] = admin
	return admin
}

// Users returns the user repository view.
func (db *DB) Users() repository.UserRepository { return userRepo{db} }

// Admins returns the admin repository view.
func (db *DB) Admins() repository.AdminRepository { return adminRepo{db} }

// Departments returns the department repository view.
func (db *DB) Departments() repository.DepartmentRepository { return departmentRepo{db} }

// Workers returns the worker repository view.
func (db *DB) Workers() repository.WorkerRepository { return workerRepo{db} }

// Complaints returns the complaint repository view.
func (db *DB) Complaints() repository.ComplaintRepository { return complaintRepo{db} }

// Feedback returns the feedback repository view.
func (db *DB) Feedback() repository.FeedbackRepository { return feedbackRepo{db} }

// History returns the audit history repository view.
func (db *DB) History() repository.ComplaintHistoryRepository { return historyRepo{db} }

// AllFeedback returns every feedback row including archived ones.
func (db *DB) AllFeedback() []domain.Feedback {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]domain.Feedback(nil), db.feedback...)
}

type userRepo struct{ db *DB }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	user.ID = r.db.nextID()
	user.CreatedAt = r.db.Now()
	user.UpdatedAt = user.CreatedAt
	r.db.users[user.ID] = *user
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type adminRepo struct{ db *DB }

func (r adminRepo) GetByID(_ context.Context, id int64) (*domain.Admin, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.admins[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r adminRepo) GetByEmail(_ context.Context, email string) (*domain.Admin, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.admins {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type departmentRepo struct{ db *DB }

func (r departmentRepo) Create(_ context.Context, dept *domain.Department) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, d := range r.db.departments {
		if strings.EqualFold(d.Name, dept.Name) {
			return repository.ErrDuplicate
		}
	}
	dept.ID = r.db.nextID()
	dept.CreatedAt = r.db.Now()
	dept.UpdatedAt = dept.CreatedAt
	r.db.departments[dept.ID] = *dept
	return nil
}

func (r departmentRepo) GetByID(_ context.Context, id int64) (*domain.Department, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.departments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &d, nil
}

func (r departmentRepo) GetByName(_ context.Context, name string) (*domain.Department, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, d := range r.db.departments {
		if strings.EqualFold(d.Name, name) {
			return &d, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r departmentRepo) ListNames(context.Context) ([]domain.DepartmentRef, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	refs := make([]domain.DepartmentRef, 0, len(r.db.departments))
	for _, d := range r.db.departments {
		refs = append(refs, d.Ref())
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

type workerRepo struct{ db *DB }

func (r workerRepo) Create(_ context.Context, worker *domain.Worker) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, w := range r.db.workers {
		if strings.EqualFold(w.Email, worker.Email) || w.PhoneNumber == worker.PhoneNumber {
			return repository.ErrDuplicate
		}
	}
	worker.ID = r.db.nextID()
	worker.CreatedAt = r.db.Now()
	r.db.workers[worker.ID] = *worker
	return nil
}

func (r workerRepo) ListByDepartment(_ context.Context, departmentID int64) ([]domain.Worker, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []domain.Worker{}
	for _, w := range r.db.workers {
		if w.DepartmentID == departmentID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r workerRepo) GetByIDs(_ context.Context, ids []int64) ([]domain.Worker, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.workersByID(ids), nil
}

func (db *DB) workersByID(ids []int64) []domain.Worker {
	out := []domain.Worker{}
	for _, id := range ids {
		if w, ok := db.workers[id]; ok {
			out = append(out, w)
		}
	}
	return out
}

type complaintRepo struct{ db *DB }

func (r complaintRepo) Create(_ context.Context, complaint *domain.Complaint) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[complaint.UserID]; !ok {
		return pgx.ErrNoRows
	}
	complaint.ComplainID = r.db.nextID()
	complaint.Version = 1
	complaint.CreatedAt = r.db.Now()
	complaint.UpdatedAt = complaint.CreatedAt
	r.db.complaints[complaint.ComplainID] = storedComplaint{complaint: *complaint}
	return nil
}

func (r complaintRepo) Update(_ context.Context, complaint *domain.Complaint, opts repository.UpdateOptions) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.complaints[complaint.ComplainID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.complaint.Version != complaint.Version {
		return repository.ErrStaleVersion
	}
	complaint.Version++
	complaint.UpdatedAt = r.db.Now()

	next := stored.complaint
	next.Status = complaint.Status
	next.Message = complaint.Message
	next.AfterImagePath = complaint.AfterImagePath
	next.Department = complaint.Department
	next.DeadlineAt = complaint.DeadlineAt
	next.ResolvedAt = complaint.ResolvedAt
	next.Version = complaint.Version
	next.UpdatedAt = complaint.UpdatedAt

	workerIDs := make([]int64, 0, len(complaint.Workers))
	for _, w := range complaint.Workers {
		workerIDs = append(workerIDs, w.ID)
	}
	r.db.complaints[complaint.ComplainID] = storedComplaint{complaint: next, workerIDs: workerIDs}

	if opts.ArchiveFeedback {
		now := r.db.Now()
		for i := range r.db.feedback {
			if r.db.feedback[i].ComplainID == complaint.ComplainID && r.db.feedback[i].ArchivedAt == nil {
				r.db.feedback[i].ArchivedAt = &now
			}
		}
	}
	return nil
}

func (r complaintRepo) GetByID(_ context.Context, id int64) (*domain.Complaint, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.complaints[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	c := r.db.hydrate(stored)
	return &c, nil
}

func (r complaintRepo) ListAll(context.Context) ([]domain.Complaint, error) {
	return r.filter(func(domain.Complaint) bool { return true }), nil
}

func (r complaintRepo) ListByUser(_ context.Context, userID int64) ([]domain.Complaint, error) {
	return r.filter(func(c domain.Complaint) bool { return c.UserID == userID }), nil
}

func (r complaintRepo) ListByDepartment(_ context.Context, departmentID int64) ([]domain.Complaint, error) {
	return r.filter(func(c domain.Complaint) bool { return c.AssignedTo(departmentID) }), nil
}

func (r complaintRepo) ListOverdue(_ context.Context, now time.Time, limit int) ([]domain.Complaint, error) {
	list := r.filter(func(c domain.Complaint) bool { return c.Overdue(now) })
	sort.SliceStable(list, func(i, j int) bool { return list[i].DeadlineAt.Before(*list[j].DeadlineAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r complaintRepo) CountByDepartment(context.Context) ([]repository.DepartmentCount, error) {
	counts := map[string]int64{}
	for _, c := range r.filter(func(c domain.Complaint) bool { return c.Department != nil }) {
		counts[c.Department.Name]++
	}
	out := make([]repository.DepartmentCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, repository.DepartmentCount{DepartmentName: name, ComplaintCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartmentName < out[j].DepartmentName })
	return out, nil
}

func (r complaintRepo) CountByCity(context.Context) ([]repository.CityCount, error) {
	counts := map[string]int64{}
	for _, c := range r.filter(func(domain.Complaint) bool { return true }) {
		city := strings.TrimSpace(c.City)
		if city == "" {
			city = repository.UnspecifiedCity
		}
		counts[city]++
	}
	out := make([]repository.CityCount, 0, len(counts))
	for city, n := range counts {
		out = append(out, repository.CityCount{City: city, ComplaintCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].City < out[j].City })
	return out, nil
}

func (r complaintRepo) filter(keep func(domain.Complaint) bool) []domain.Complaint {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []domain.Complaint{}
	for _, stored := range r.db.complaints {
		c := r.db.hydrate(stored)
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ComplainID < out[j].ComplainID })
	return out
}

// hydrate fills the joined columns the SQL queries read from users and departments.
func (db *DB) hydrate(stored storedComplaint) domain.Complaint {
	c := stored.complaint
	if u, ok := db.users[c.UserID]; ok {
		c.FirstName = u.FirstName
		c.UserEmail = u.Email
	}
	if c.Department != nil {
		if d, ok := db.departments[c.Department.ID]; ok {
			ref := d.Ref()
			c.Department = &ref
		}
	}
	c.Workers = nil
	if len(stored.workerIDs) > 0 {
		c.Workers = db.workersByID(stored.workerIDs)
	}
	return c
}

type feedbackRepo struct{ db *DB }

func (r feedbackRepo) Create(_ context.Context, fb *domain.Feedback) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.feedback {
		if existing.ComplainID == fb.ComplainID && existing.ArchivedAt == nil {
			return repository.ErrDuplicate
		}
	}
	fb.ID = r.db.nextID()
	fb.CreatedAt = r.db.Now()
	r.db.feedback = append(r.db.feedback, *fb)
	return nil
}

func (r feedbackRepo) GetActive(_ context.Context, complaintID int64) (*domain.Feedback, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, fb := range r.db.feedback {
		if fb.ComplainID == complaintID && fb.ArchivedAt == nil {
			return &fb, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type historyRepo struct{ db *DB }

func (r historyRepo) Create(_ context.Context, entry *domain.ComplaintHistory) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	entry.ID = r.db.nextID()
	entry.CreatedAt = r.db.Now()
	r.db.history = append(r.db.history, *entry)
	return nil
}

func (r historyRepo) ListByComplaint(_ context.Context, complaintID int64) ([]domain.ComplaintHistory, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []domain.ComplaintHistory{}
	for _, h := range r.db.history {
		if h.ComplainID == complaintID {
			out = append(out, h)
		}
	}
	return out, nil
}
