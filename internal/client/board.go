package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/civicpulse/hub/internal/domain"
)

const (
	// UnknownDepartment replaces a department name that could not be loaded.
	UnknownDepartment = "Unknown Department"
	// DefaultFanOut bounds the concurrent per-complaint requests of one refresh.
	DefaultFanOut = 8
)

var (
	ErrUnknownComplaint = errors.New("complaint is not on the board")
	ErrUnknownWorker    = errors.New("worker does not belong to the department")
	// ErrStaleView wraps the failure of the latest refresh. The rows shown are
	// those of the last successful one.
	ErrStaleView = errors.New("board is out of date")
)

type versioned interface {
	key() int64
	version() int64
}

// snapshot holds the last published rows of a board. Refreshes take increasing
// sequence numbers and a refresh older than the published one is dropped. Within a
// publish, a row never goes back to an older complaint version.
type snapshot[T versioned] struct {
	next atomic.Uint64

	mu        sync.RWMutex
	published uint64
	rows      []T
	failedSeq uint64
	stale     error
}

func (s *snapshot[T]) begin() uint64 {
	return s.next.Add(1)
}

func (s *snapshot[T]) publish(seq uint64, rows []T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.published {
		return false
	}
	current := make(map[int64]T, len(s.rows))
	for _, r := range s.rows {
		current[r.key()] = r
	}
	for i, r := range rows {
		if old, ok := current[r.key()]; ok && old.version() > r.version() {
			rows[i] = old
		}
	}
	s.published = seq
	s.rows = rows
	if seq >= s.failedSeq {
		s.stale = nil
	}
	return true
}

// fail records a refresh that could not complete unless a newer one already did.
func (s *snapshot[T]) fail(seq uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.published && seq >= s.failedSeq {
		s.failedSeq = seq
		s.stale = fmt.Errorf("%w: %w", ErrStaleView, err)
	}
	return err
}

func (s *snapshot[T]) staleErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

func (s *snapshot[T]) list() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.rows))
	copy(out, s.rows)
	return out
}

func (s *snapshot[T]) find(id int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rows {
		if r.key() == id {
			return r, true
		}
	}
	var zero T
	return zero, false
}

// replace swaps the row with the same key when fn returns a newer version.
func (s *snapshot[T]) replace(id int64, fn func(T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.key() != id {
			continue
		}
		if next := fn(r); next.version() >= r.version() {
			s.rows[i] = next
		}
		return
	}
}

func fanOut(limit int) *errgroup.Group {
	g := new(errgroup.Group)
	if limit <= 0 {
		limit = DefaultFanOut
	}
	g.SetLimit(limit)
	return g
}

// AdminAPI is the part of the gateway the admin board uses.
type AdminAPI interface {
	AdminComplaints(ctx context.Context) ([]domain.Complaint, error)
	ComplaintDepartmentName(ctx context.Context, complainID int64) (string, error)
	AdminFeedback(ctx context.Context, complainID int64) (*domain.Feedback, error)
	DepartmentNames(ctx context.Context) ([]domain.DepartmentRef, error)
	AssignDepartment(ctx context.Context, complainID, departmentID int64, timelineDays int) (*domain.Complaint, error)
	AdminUpdateMessage(ctx context.Context, complainID int64, status domain.ComplaintStatus, message string) (*domain.Complaint, error)
}

// AdminRow is one complaint as the admin dashboard shows it.
type AdminRow struct {
	Complaint       domain.Complaint
	StatusLabel     string
	DepartmentName  string
	Feedback        *domain.Feedback
	ShowReassign    bool
	CanAssign       bool
	MessageEditable bool
	// Busy is set while a mutation of this complaint is in flight.
	Busy bool
}

type adminEntry struct {
	complaint      domain.Complaint
	departmentName string
	feedback       *domain.Feedback
}

func (e adminEntry) key() int64     { return e.complaint.ComplainID }
func (e adminEntry) version() int64 { return e.complaint.Version }

func (e adminEntry) row() AdminRow {
	c := e.complaint
	return AdminRow{
		Complaint:       c,
		StatusLabel:     c.Status.Label(),
		DepartmentName:  e.departmentName,
		Feedback:        e.feedback,
		ShowReassign:    c.Status == domain.StatusResolved && domain.NeedsReassignment(e.feedback),
		CanAssign:       domain.CanAssign(&c, e.feedback),
		MessageEditable: domain.CanUpdateMessage(&c),
	}
}

// AdminBoard is the administrator's complaint dashboard.
type AdminBoard struct {
	api   AdminAPI
	guard *KeyedGuard
	limit int

	rows snapshot[adminEntry]

	deptMu      sync.RWMutex
	departments []domain.DepartmentRef
}

func NewAdminBoard(api AdminAPI, limit int) *AdminBoard {
	return &AdminBoard{api: api, guard: NewKeyedGuard(), limit: limit}
}

// Refresh reloads every complaint, then fetches department names and feedback per
// complaint concurrently. A failed per-complaint fetch degrades that cell only.
func (b *AdminBoard) Refresh(ctx context.Context) error {
	seq := b.rows.begin()
	list, err := b.api.AdminComplaints(ctx)
	if err != nil {
		return b.rows.fail(seq, err)
	}

	entries := make([]adminEntry, len(list))
	g := fanOut(b.limit)
	for i := range list {
		entries[i].complaint = list[i]
		c := list[i]
		if c.Status != domain.StatusPending {
			g.Go(func() error {
				name, err := b.api.ComplaintDepartmentName(ctx, c.ComplainID)
				if err != nil || name == "" {
					name = UnknownDepartment
				}
				entries[i].departmentName = name
				return nil
			})
		}
		if c.Status == domain.StatusResolved {
			g.Go(func() error {
				fb, err := b.api.AdminFeedback(ctx, c.ComplainID)
				if err == nil {
					entries[i].feedback = fb
				}
				return nil
			})
		}
	}
	g.Go(func() error {
		refs, err := b.api.DepartmentNames(ctx)
		if err == nil {
			b.deptMu.Lock()
			b.departments = refs
			b.deptMu.Unlock()
		}
		return nil
	})
	_ = g.Wait()

	b.rows.publish(seq, entries)
	return nil
}

// View returns the rows passing filter in backend order.
func (b *AdminBoard) View(filter domain.StatusFilter) []AdminRow {
	var out []AdminRow
	for _, e := range b.rows.list() {
		if filter.Match(e.complaint.Status) {
			row := e.row()
			row.Busy = b.guard.Busy(e.key())
			out = append(out, row)
		}
	}
	return out
}

// Stale returns an error wrapping ErrStaleView when the latest refresh failed.
func (b *AdminBoard) Stale() error { return b.rows.staleErr() }

// Departments lists the assignable departments loaded by the last refresh.
func (b *AdminBoard) Departments() []domain.DepartmentRef {
	b.deptMu.RLock()
	defer b.deptMu.RUnlock()
	return append([]domain.DepartmentRef(nil), b.departments...)
}

// Assign sends a PENDING complaint to a department.
func (b *AdminBoard) Assign(ctx context.Context, complainID, departmentID int64, timelineDays int) error {
	return b.guard.Do(complainID, func() error {
		entry, ok := b.rows.find(complainID)
		if !ok {
			return ErrUnknownComplaint
		}
		if entry.complaint.Status != domain.StatusPending {
			return domain.TransitionError(entry.complaint.Status, domain.StatusInProgress)
		}
		return b.assign(ctx, complainID, departmentID, timelineDays)
	})
}

// Reassign sends a poorly rated RESOLVED complaint back to work.
func (b *AdminBoard) Reassign(ctx context.Context, complainID, departmentID int64, timelineDays int) error {
	return b.guard.Do(complainID, func() error {
		entry, ok := b.rows.find(complainID)
		if !ok {
			return ErrUnknownComplaint
		}
		if entry.complaint.Status != domain.StatusResolved || !domain.NeedsReassignment(entry.feedback) {
			return domain.TransitionError(entry.complaint.Status, domain.StatusInProgress)
		}
		return b.assign(ctx, complainID, departmentID, timelineDays)
	})
}

func (b *AdminBoard) assign(ctx context.Context, complainID, departmentID int64, timelineDays int) error {
	if timelineDays <= 0 {
		return domain.ErrInvalidTimeline
	}
	updated, err := b.api.AssignDepartment(ctx, complainID, departmentID, timelineDays)
	if err != nil {
		return err
	}
	b.rows.replace(complainID, func(e adminEntry) adminEntry {
		e.complaint = *updated
		e.feedback = nil
		if updated.Department != nil && updated.Department.Name != "" {
			e.departmentName = updated.Department.Name
		}
		return e
	})
	// The assignment is committed; a failed refresh only leaves the view stale.
	_ = b.Refresh(ctx)
	return nil
}

// UpdateMessage edits the department-to-user note of an unresolved complaint.
func (b *AdminBoard) UpdateMessage(ctx context.Context, complainID int64, message string) error {
	return b.guard.Do(complainID, func() error {
		entry, ok := b.rows.find(complainID)
		if !ok {
			return ErrUnknownComplaint
		}
		if !domain.CanUpdateMessage(&entry.complaint) {
			return domain.ErrMessageLocked
		}
		updated, err := b.api.AdminUpdateMessage(ctx, complainID, entry.complaint.Status, message)
		if err != nil {
			return err
		}
		b.rows.replace(complainID, func(e adminEntry) adminEntry {
			e.complaint = *updated
			return e
		})
		_ = b.Refresh(ctx)
		return nil
	})
}

// DepartmentAPI is the part of the gateway the department board uses.
type DepartmentAPI interface {
	DepartmentComplaints(ctx context.Context, departmentID int64) ([]domain.Complaint, error)
	Workers(ctx context.Context, departmentID int64) ([]domain.Worker, error)
	Deadline(ctx context.Context, complainID int64) (time.Time, error)
	CompletionTime(ctx context.Context, complainID int64) (string, error)
	CompleteComplaint(ctx context.Context, in CompleteInput) (*domain.Complaint, error)
	DepartmentUpdateMessage(ctx context.Context, complainID int64, status domain.ComplaintStatus, message string) (*domain.Complaint, error)
}

// DepartmentRow is one assigned complaint on the department dashboard.
type DepartmentRow struct {
	Complaint       domain.Complaint
	StatusLabel     string
	Deadline        *time.Time
	CompletionTime  string
	Overdue         bool
	MessageEditable bool
	CanComplete     bool
	Busy            bool
}

type departmentEntry struct {
	complaint      domain.Complaint
	deadline       *time.Time
	completionTime string
}

func (e departmentEntry) key() int64     { return e.complaint.ComplainID }
func (e departmentEntry) version() int64 { return e.complaint.Version }

// DepartmentBoard is a department manager's dashboard.
type DepartmentBoard struct {
	api          DepartmentAPI
	departmentID int64
	guard        *KeyedGuard
	limit        int
	now          func() time.Time

	rows snapshot[departmentEntry]

	workerMu sync.RWMutex
	workers  []domain.Worker
}

func NewDepartmentBoard(api DepartmentAPI, departmentID int64, limit int) *DepartmentBoard {
	return &DepartmentBoard{
		api:          api,
		departmentID: departmentID,
		guard:        NewKeyedGuard(),
		limit:        limit,
		now:          time.Now,
	}
}

// Refresh reloads the assigned complaints and the worker roster, then fetches
// deadlines and completion times per complaint concurrently.
func (b *DepartmentBoard) Refresh(ctx context.Context) error {
	seq := b.rows.begin()

	var (
		list    []domain.Complaint
		workers []domain.Worker
	)
	head, hctx := errgroup.WithContext(ctx)
	head.Go(func() (err error) {
		list, err = b.api.DepartmentComplaints(hctx, b.departmentID)
		return err
	})
	head.Go(func() (err error) {
		workers, err = b.api.Workers(hctx, b.departmentID)
		return err
	})
	if err := head.Wait(); err != nil {
		return b.rows.fail(seq, err)
	}

	entries := make([]departmentEntry, len(list))
	g := fanOut(b.limit)
	for i := range list {
		c := list[i]
		entries[i] = departmentEntry{complaint: c, deadline: c.DeadlineAt}
		g.Go(func() error {
			if d, err := b.api.Deadline(ctx, c.ComplainID); err == nil {
				entries[i].deadline = &d
			}
			return nil
		})
		if c.Status == domain.StatusResolved {
			g.Go(func() error {
				text, err := b.api.CompletionTime(ctx, c.ComplainID)
				if err != nil || text == "" {
					text = domain.CompletionTime(c.DeadlineAt, c.ResolvedAt)
				}
				entries[i].completionTime = text
				return nil
			})
		}
	}
	_ = g.Wait()

	if b.rows.publish(seq, entries) {
		b.workerMu.Lock()
		b.workers = workers
		b.workerMu.Unlock()
	}
	return nil
}

// View returns the rows passing filter in backend order.
func (b *DepartmentBoard) View(filter domain.StatusFilter) []DepartmentRow {
	now := b.now()
	var out []DepartmentRow
	for _, e := range b.rows.list() {
		c := e.complaint
		if !filter.Match(c.Status) {
			continue
		}
		row := DepartmentRow{
			Complaint:       c,
			StatusLabel:     c.Status.Label(),
			Deadline:        e.deadline,
			CompletionTime:  e.completionTime,
			MessageEditable: domain.CanUpdateMessage(&c),
			CanComplete:     c.Status == domain.StatusInProgress,
			Busy:            b.guard.Busy(c.ComplainID),
		}
		if c.Status == domain.StatusInProgress && e.deadline != nil {
			row.Overdue = now.After(*e.deadline)
		}
		out = append(out, row)
	}
	return out
}

// Stale returns an error wrapping ErrStaleView when the latest refresh failed.
func (b *DepartmentBoard) Stale() error { return b.rows.staleErr() }

// Workers lists the department's roster loaded by the last refresh.
func (b *DepartmentBoard) Workers() []domain.Worker {
	b.workerMu.RLock()
	defer b.workerMu.RUnlock()
	return append([]domain.Worker(nil), b.workers...)
}

// Complete resolves an in-progress complaint. Workers must come from the loaded
// roster and the image must be non-empty; nothing is sent otherwise.
func (b *DepartmentBoard) Complete(ctx context.Context, in CompleteInput) error {
	return b.guard.Do(in.ComplainID, func() error {
		entry, ok := b.rows.find(in.ComplainID)
		if !ok {
			return ErrUnknownComplaint
		}
		if err := domain.ValidateCompletion(in.WorkerIDs, int64(len(in.Image))); err != nil {
			return err
		}
		if err := b.checkWorkers(in.WorkerIDs); err != nil {
			return err
		}
		if entry.complaint.Status != domain.StatusInProgress {
			return domain.TransitionError(entry.complaint.Status, domain.StatusResolved)
		}
		updated, err := b.api.CompleteComplaint(ctx, in)
		if err != nil {
			return err
		}
		b.rows.replace(in.ComplainID, func(e departmentEntry) departmentEntry {
			e.complaint = *updated
			return e
		})
		_ = b.Refresh(ctx)
		return nil
	})
}

// UpdateMessage edits the note of an assigned, unresolved complaint.
func (b *DepartmentBoard) UpdateMessage(ctx context.Context, complainID int64, message string) error {
	return b.guard.Do(complainID, func() error {
		entry, ok := b.rows.find(complainID)
		if !ok {
			return ErrUnknownComplaint
		}
		if !domain.CanUpdateMessage(&entry.complaint) {
			return domain.ErrMessageLocked
		}
		updated, err := b.api.DepartmentUpdateMessage(ctx, complainID, entry.complaint.Status, message)
		if err != nil {
			return err
		}
		b.rows.replace(complainID, func(e departmentEntry) departmentEntry {
			e.complaint = *updated
			return e
		})
		_ = b.Refresh(ctx)
		return nil
	})
}

func (b *DepartmentBoard) checkWorkers(ids []int64) error {
	b.workerMu.RLock()
	defer b.workerMu.RUnlock()
	known := make(map[int64]bool, len(b.workers))
	for _, w := range b.workers {
		known[w.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return fmt.Errorf("%w: %d", ErrUnknownWorker, id)
		}
	}
	return nil
}

// CitizenAPI is the part of the gateway the citizen history uses.
type CitizenAPI interface {
	UserHistory(ctx context.Context, userID int64) ([]domain.Complaint, error)
	Rating(ctx context.Context, complainID int64) (int, error)
	SubmitFeedback(ctx context.Context, complainID int64, rating int, message string) (*domain.Feedback, error)
}

// HistoryRow is one of the citizen's complaints.
type HistoryRow struct {
	Complaint   domain.Complaint
	StatusLabel string
	Rating      int
	CanRate     bool
	Busy        bool
}

type historyEntry struct {
	complaint domain.Complaint
	rating    int
}

func (e historyEntry) key() int64     { return e.complaint.ComplainID }
func (e historyEntry) version() int64 { return e.complaint.Version }

// CitizenHistory is the "my complaints" page of a citizen.
type CitizenHistory struct {
	api    CitizenAPI
	userID int64
	guard  *KeyedGuard
	limit  int

	rows snapshot[historyEntry]
}

func NewCitizenHistory(api CitizenAPI, userID int64, limit int) *CitizenHistory {
	return &CitizenHistory{api: api, userID: userID, guard: NewKeyedGuard(), limit: limit}
}

// Refresh reloads the complaints and the rating of each resolved one.
func (h *CitizenHistory) Refresh(ctx context.Context) error {
	seq := h.rows.begin()
	list, err := h.api.UserHistory(ctx, h.userID)
	if err != nil {
		return h.rows.fail(seq, err)
	}
	entries := make([]historyEntry, len(list))
	g := fanOut(h.limit)
	for i := range list {
		c := list[i]
		entries[i].complaint = c
		if c.Status != domain.StatusResolved {
			continue
		}
		g.Go(func() error {
			if rating, err := h.api.Rating(ctx, c.ComplainID); err == nil {
				entries[i].rating = rating
			}
			return nil
		})
	}
	_ = g.Wait()
	h.rows.publish(seq, entries)
	return nil
}

// View returns the rows passing filter in backend order.
func (h *CitizenHistory) View(filter domain.StatusFilter) []HistoryRow {
	var out []HistoryRow
	for _, e := range h.rows.list() {
		if !filter.Match(e.complaint.Status) {
			continue
		}
		out = append(out, HistoryRow{
			Complaint:   e.complaint,
			StatusLabel: e.complaint.Status.Label(),
			Rating:      e.rating,
			CanRate:     e.complaint.Status == domain.StatusResolved && e.rating == 0,
			Busy:        h.guard.Busy(e.key()),
		})
	}
	return out
}

// Stale returns an error wrapping ErrStaleView when the latest refresh failed.
func (h *CitizenHistory) Stale() error { return h.rows.staleErr() }

// SubmitFeedback rates a resolved complaint that has no rating yet.
func (h *CitizenHistory) SubmitFeedback(ctx context.Context, complainID int64, rating int, message string) error {
	return h.guard.Do(complainID, func() error {
		entry, ok := h.rows.find(complainID)
		if !ok {
			return ErrUnknownComplaint
		}
		if !domain.ValidRating(rating) {
			return domain.ErrInvalidRating
		}
		if entry.complaint.Status != domain.StatusResolved {
			return domain.ErrFeedbackTooEarly
		}
		if entry.rating != 0 {
			return domain.ErrFeedbackExists
		}
		fb, err := h.api.SubmitFeedback(ctx, complainID, rating, message)
		if err != nil {
			return err
		}
		h.rows.replace(complainID, func(e historyEntry) historyEntry {
			e.rating = fb.Rating
			return e
		})
		_ = h.Refresh(ctx)
		return nil
	})
}
