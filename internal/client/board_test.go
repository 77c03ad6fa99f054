package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/civicpulse/hub/internal/domain"
)

type fakeAdminAPI struct {
	mu          sync.Mutex
	complaints  []domain.Complaint
	names       map[int64]string
	feedback    map[int64]*domain.Feedback
	failNames   map[int64]bool
	listGate    chan struct{}
	listWaiting atomic.Int32
	assignGate  chan struct{}
	assignCalls atomic.Int32
	assignErr   error
	listErr     error
}

func (f *fakeAdminAPI) AdminComplaints(ctx context.Context) ([]domain.Complaint, error) {
	f.mu.Lock()
	list := append([]domain.Complaint(nil), f.complaints...)
	gate := f.listGate
	listErr := f.listErr
	f.mu.Unlock()
	if gate != nil {
		f.listWaiting.Add(1)
		<-gate
	}
	if listErr != nil {
		return nil, listErr
	}
	return list, nil
}

func (f *fakeAdminAPI) ComplaintDepartmentName(ctx context.Context, id int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNames[id] {
		return "", &APIError{Kind: KindTransport, Message: "boom"}
	}
	return f.names[id], nil
}

func (f *fakeAdminAPI) AdminFeedback(ctx context.Context, id int64) (*domain.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feedback[id], nil
}

func (f *fakeAdminAPI) DepartmentNames(ctx context.Context) ([]domain.DepartmentRef, error) {
	return []domain.DepartmentRef{{ID: 1, Name: "Water"}, {ID: 2, Name: "Roads"}}, nil
}

func (f *fakeAdminAPI) AssignDepartment(ctx context.Context, id, deptID int64, days int) (*domain.Complaint, error) {
	f.assignCalls.Add(1)
	if f.assignGate != nil {
		<-f.assignGate
	}
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.complaints {
		if f.complaints[i].ComplainID != id {
			continue
		}
		c := &f.complaints[i]
		c.Status = domain.StatusInProgress
		c.Version++
		c.Department = &domain.DepartmentRef{ID: deptID}
		delete(f.feedback, id)
		out := *c
		return &out, nil
	}
	return nil, &APIError{Kind: KindNotFound, Status: 404}
}

func (f *fakeAdminAPI) AdminUpdateMessage(ctx context.Context, id int64, status domain.ComplaintStatus, message string) (*domain.Complaint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.complaints {
		if f.complaints[i].ComplainID == id {
			f.complaints[i].Message = &message
			f.complaints[i].Version++
			out := f.complaints[i]
			return &out, nil
		}
	}
	return nil, &APIError{Kind: KindNotFound, Status: 404}
}

func newAdminFake() *fakeAdminAPI {
	return &fakeAdminAPI{
		complaints: []domain.Complaint{
			{ComplainID: 1, Status: domain.StatusPending, Version: 1},
			{ComplainID: 2, Status: domain.StatusInProgress, Version: 2},
			{ComplainID: 3, Status: domain.StatusResolved, Version: 3},
			{ComplainID: 4, Status: domain.StatusResolved, Version: 3},
		},
		names:     map[int64]string{2: "Water", 3: "Roads", 4: "Water"},
		feedback:  map[int64]*domain.Feedback{3: {Rating: 2}, 4: {Rating: 5}},
		failNames: map[int64]bool{},
	}
}

func TestAdminBoardRefreshDerivesRows(t *testing.T) {
	api := newAdminFake()
	api.failNames[3] = true
	board := NewAdminBoard(api, 2)

	if err := board.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	rows := board.View(domain.FilterAll)
	if len(rows) != 4 {
		t.Fatalf("got %d rows", len(rows))
	}

	pending, inProgress, poor, good := rows[0], rows[1], rows[2], rows[3]
	if !pending.CanAssign || pending.DepartmentName != "" || pending.StatusLabel != "Pending" {
		t.Errorf("pending row: %+v", pending)
	}
	if inProgress.CanAssign || !inProgress.MessageEditable || inProgress.DepartmentName != "Water" {
		t.Errorf("in-progress row: %+v", inProgress)
	}
	if poor.DepartmentName != UnknownDepartment || !poor.ShowReassign || !poor.CanAssign || poor.MessageEditable {
		t.Errorf("poorly rated row: %+v", poor)
	}
	if good.ShowReassign || good.CanAssign || good.Feedback == nil || good.Feedback.Rating != 5 {
		t.Errorf("well rated row: %+v", good)
	}

	open := board.View(domain.FilterOpen)
	if len(open) != 2 || open[0].Complaint.ComplainID != 1 || open[1].Complaint.ComplainID != 2 {
		t.Fatalf("open filter: %+v", open)
	}
	if len(board.Departments()) != 2 {
		t.Fatalf("departments = %+v", board.Departments())
	}
}

func TestAdminBoardDiscardsStaleRefresh(t *testing.T) {
	api := newAdminFake()
	board := NewAdminBoard(api, 0)

	gate := make(chan struct{})
	api.listGate = gate
	done := make(chan error, 1)
	go func() { done <- board.Refresh(context.Background()) }()

	for api.listWaiting.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	api.mu.Lock()
	api.listGate = nil
	api.complaints = api.complaints[:1]
	api.mu.Unlock()
	if err := board.Refresh(context.Background()); err != nil {
		t.Fatalf("fast refresh: %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("slow refresh: %v", err)
	}
	if rows := board.View(domain.FilterAll); len(rows) != 1 {
		t.Fatalf("stale refresh overwrote newer data: %d rows", len(rows))
	}
}

func TestAdminBoardAssignIsGuardedPerComplaint(t *testing.T) {
	api := newAdminFake()
	board := NewAdminBoard(api, 0)
	ctx := context.Background()
	if err := board.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	gate := make(chan struct{})
	api.assignGate = gate
	done := make(chan error, 1)
	go func() { done <- board.Assign(ctx, 1, 1, 3) }()
	for api.assignCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	if err := board.Assign(ctx, 1, 2, 3); !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("second assign: %v", err)
	}
	for _, row := range board.View(domain.FilterAll) {
		if row.Busy != (row.Complaint.ComplainID == 1) {
			t.Errorf("complaint %d busy = %v", row.Complaint.ComplainID, row.Busy)
		}
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if api.assignCalls.Load() != 1 {
		t.Fatalf("backend saw %d assign calls", api.assignCalls.Load())
	}
	if row := board.View(domain.FilterInProgress); len(row) != 2 {
		t.Fatalf("assigned complaint should now be in progress: %+v", row)
	}
	for _, row := range board.View(domain.FilterAll) {
		if row.Busy {
			t.Errorf("complaint %d still busy", row.Complaint.ComplainID)
		}
	}
}

func TestAdminBoardAssignSucceedsWhenRefreshFails(t *testing.T) {
	api := newAdminFake()
	board := NewAdminBoard(api, 0)
	ctx := context.Background()
	if err := board.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	api.mu.Lock()
	api.listErr = &APIError{Kind: KindTransport, Message: "connection reset"}
	api.mu.Unlock()
	if err := board.Assign(ctx, 1, 1, 3); err != nil {
		t.Fatalf("committed assign reported as failed: %v", err)
	}
	if api.assignCalls.Load() != 1 {
		t.Fatalf("backend saw %d assign calls", api.assignCalls.Load())
	}
	rows := board.View(domain.FilterAll)
	if rows[0].Complaint.ComplainID != 1 || rows[0].Complaint.Status != domain.StatusInProgress {
		t.Fatalf("assigned row: %+v", rows[0])
	}
	if err := board.Stale(); !errors.Is(err, ErrStaleView) {
		t.Fatalf("Stale = %v", err)
	}
	if err := board.Assign(ctx, 1, 2, 3); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("repeat assign should be rejected locally: %v", err)
	}

	api.mu.Lock()
	api.listErr = nil
	api.mu.Unlock()
	if err := board.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if err := board.Stale(); err != nil {
		t.Fatalf("Stale after a good refresh = %v", err)
	}
}

func TestAdminBoardRejectsInvalidTransitionsLocally(t *testing.T) {
	api := newAdminFake()
	board := NewAdminBoard(api, 0)
	ctx := context.Background()
	if err := board.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	if err := board.Assign(ctx, 2, 1, 3); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("assign in progress: %v", err)
	}
	if err := board.Reassign(ctx, 4, 1, 3); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("reassign well rated: %v", err)
	}
	if err := board.Assign(ctx, 1, 1, 0); !errors.Is(err, domain.ErrInvalidTimeline) {
		t.Errorf("zero timeline: %v", err)
	}
	if err := board.UpdateMessage(ctx, 3, "x"); !errors.Is(err, domain.ErrMessageLocked) {
		t.Errorf("message on resolved: %v", err)
	}
	if err := board.Assign(ctx, 99, 1, 3); !errors.Is(err, ErrUnknownComplaint) {
		t.Errorf("unknown complaint: %v", err)
	}
	if api.assignCalls.Load() != 0 {
		t.Fatalf("rejected calls reached the backend %d times", api.assignCalls.Load())
	}
}

func TestAdminBoardReassignDropsFeedback(t *testing.T) {
	api := newAdminFake()
	board := NewAdminBoard(api, 0)
	ctx := context.Background()
	if err := board.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if err := board.Reassign(ctx, 3, 2, 5); err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	for _, row := range board.View(domain.FilterAll) {
		if row.Complaint.ComplainID != 3 {
			continue
		}
		if row.Complaint.Status != domain.StatusInProgress || row.Feedback != nil || row.ShowReassign {
			t.Fatalf("reassigned row: %+v", row)
		}
	}
}

func TestAdminBoardFailedMutationKeepsState(t *testing.T) {
	api := newAdminFake()
	board := NewAdminBoard(api, 0)
	ctx := context.Background()
	if err := board.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	api.assignErr = &APIError{Kind: KindStructured, Status: 409, Message: "busy"}
	if err := board.Assign(ctx, 1, 1, 3); err == nil {
		t.Fatal("expected error")
	}
	if row := board.View(domain.FilterPending); len(row) != 1 || row[0].Complaint.Version != 1 {
		t.Fatalf("failed assign changed local state: %+v", row)
	}
}

type fakeDepartmentAPI struct {
	complaints []domain.Complaint
	workers    []domain.Worker
	completed  []CompleteInput
	deadlineOK bool
}

func (f *fakeDepartmentAPI) DepartmentComplaints(ctx context.Context, id int64) ([]domain.Complaint, error) {
	return append([]domain.Complaint(nil), f.complaints...), nil
}

func (f *fakeDepartmentAPI) Workers(ctx context.Context, id int64) ([]domain.Worker, error) {
	return f.workers, nil
}

func (f *fakeDepartmentAPI) Deadline(ctx context.Context, id int64) (time.Time, error) {
	if !f.deadlineOK {
		return time.Time{}, &APIError{Kind: KindNotFound, Status: 404}
	}
	return time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), nil
}

func (f *fakeDepartmentAPI) CompletionTime(ctx context.Context, id int64) (string, error) {
	return "", &APIError{Kind: KindTransport, Message: "down"}
}

func (f *fakeDepartmentAPI) CompleteComplaint(ctx context.Context, in CompleteInput) (*domain.Complaint, error) {
	f.completed = append(f.completed, in)
	for i := range f.complaints {
		if f.complaints[i].ComplainID == in.ComplainID {
			f.complaints[i].Status = domain.StatusResolved
			f.complaints[i].Version++
			out := f.complaints[i]
			return &out, nil
		}
	}
	return nil, &APIError{Kind: KindNotFound, Status: 404}
}

func (f *fakeDepartmentAPI) DepartmentUpdateMessage(ctx context.Context, id int64, status domain.ComplaintStatus, message string) (*domain.Complaint, error) {
	return nil, &APIError{Kind: KindStructured, Status: 409, Message: "conflict"}
}

func TestDepartmentBoardCompleteValidatesLocally(t *testing.T) {
	deadline := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	resolved := deadline.Add(-2 * time.Hour)
	api := &fakeDepartmentAPI{
		complaints: []domain.Complaint{
			{ComplainID: 1, Status: domain.StatusInProgress, DeadlineAt: &deadline, Version: 2},
			{ComplainID: 2, Status: domain.StatusResolved, DeadlineAt: &deadline, ResolvedAt: &resolved, Version: 3},
		},
		workers: []domain.Worker{{ID: 7, DepartmentID: 1}},
	}
	board := NewDepartmentBoard(api, 1, 0)
	board.now = func() time.Time { return deadline.Add(time.Hour) }
	ctx := context.Background()
	if err := board.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	rows := board.View(domain.FilterAll)
	if !rows[0].Overdue || !rows[0].CanComplete {
		t.Errorf("in-progress row: %+v", rows[0])
	}
	if rows[1].CompletionTime != "0d 2h before deadline" {
		t.Errorf("completion fallback = %q", rows[1].CompletionTime)
	}

	cases := []struct {
		in   CompleteInput
		want error
	}{
		{CompleteInput{ComplainID: 1, Image: []byte("x")}, domain.ErrNoWorkers},
		{CompleteInput{ComplainID: 1, WorkerIDs: []int64{7}}, domain.ErrNoImage},
		{CompleteInput{ComplainID: 1, WorkerIDs: []int64{8}, Image: []byte("x")}, ErrUnknownWorker},
		{CompleteInput{ComplainID: 2, WorkerIDs: []int64{7}, Image: []byte("x")}, domain.ErrInvalidTransition},
	}
	for _, tc := range cases {
		if err := board.Complete(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Errorf("Complete(%+v) = %v, want %v", tc.in, err, tc.want)
		}
	}
	if len(api.completed) != 0 {
		t.Fatal("invalid completions reached the backend")
	}

	if err := board.Complete(ctx, CompleteInput{ComplainID: 1, WorkerIDs: []int64{7}, Image: []byte("x"), Message: "done"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := board.View(domain.FilterResolved); len(got) != 2 {
		t.Fatalf("resolved rows = %d", len(got))
	}
	if err := board.UpdateMessage(ctx, 1, "late note"); !errors.Is(err, domain.ErrMessageLocked) {
		t.Fatalf("message after resolution: %v", err)
	}
}

type fakeCitizenAPI struct {
	complaints []domain.Complaint
	ratings    map[int64]int
	submits    int
	historyErr error
}

func (f *fakeCitizenAPI) UserHistory(ctx context.Context, userID int64) ([]domain.Complaint, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.complaints, nil
}

func (f *fakeCitizenAPI) Rating(ctx context.Context, id int64) (int, error) {
	return f.ratings[id], nil
}

func (f *fakeCitizenAPI) SubmitFeedback(ctx context.Context, id int64, rating int, message string) (*domain.Feedback, error) {
	f.submits++
	f.ratings[id] = rating
	return &domain.Feedback{ComplainID: id, Rating: rating, FeedbackMessage: message}, nil
}

func TestCitizenHistoryFeedback(t *testing.T) {
	api := &fakeCitizenAPI{
		complaints: []domain.Complaint{
			{ComplainID: 1, Status: domain.StatusResolved},
			{ComplainID: 2, Status: domain.StatusPending},
			{ComplainID: 3, Status: domain.StatusResolved},
		},
		ratings: map[int64]int{3: 4},
	}
	history := NewCitizenHistory(api, 11, 0)
	ctx := context.Background()
	if err := history.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	rows := history.View(domain.FilterAll)
	if !rows[0].CanRate || rows[1].CanRate || rows[2].CanRate || rows[2].Rating != 4 {
		t.Fatalf("rows: %+v", rows)
	}

	if err := history.SubmitFeedback(ctx, 2, 3, ""); !errors.Is(err, domain.ErrFeedbackTooEarly) {
		t.Errorf("pending: %v", err)
	}
	if err := history.SubmitFeedback(ctx, 3, 3, ""); !errors.Is(err, domain.ErrFeedbackExists) {
		t.Errorf("already rated: %v", err)
	}
	if err := history.SubmitFeedback(ctx, 1, 0, ""); !errors.Is(err, domain.ErrInvalidRating) {
		t.Errorf("zero rating: %v", err)
	}
	if err := history.SubmitFeedback(ctx, 1, 2, "still leaking"); err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if api.submits != 1 {
		t.Fatalf("backend saw %d submissions", api.submits)
	}
	if rows := history.View(domain.FilterResolved); rows[0].Rating != 2 || rows[0].CanRate {
		t.Fatalf("after feedback: %+v", rows[0])
	}
}

func TestCitizenHistoryFeedbackSurvivesFailedRefresh(t *testing.T) {
	api := &fakeCitizenAPI{
		complaints: []domain.Complaint{{ComplainID: 1, Status: domain.StatusResolved}},
		ratings:    map[int64]int{},
	}
	history := NewCitizenHistory(api, 11, 0)
	ctx := context.Background()
	if err := history.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	api.historyErr = &APIError{Kind: KindTransport, Message: "timeout"}
	if err := history.SubmitFeedback(ctx, 1, 1, "not fixed"); err != nil {
		t.Fatalf("committed feedback reported as failed: %v", err)
	}
	if err := history.SubmitFeedback(ctx, 1, 3, ""); !errors.Is(err, domain.ErrFeedbackExists) {
		t.Fatalf("second rating should be rejected locally: %v", err)
	}
	if api.submits != 1 {
		t.Fatalf("backend saw %d submissions", api.submits)
	}
	if err := history.Stale(); !errors.Is(err, ErrStaleView) {
		t.Fatalf("Stale = %v", err)
	}
}

func TestKeyedGuard(t *testing.T) {
	g := NewKeyedGuard()
	err := g.Do(1, func() error {
		if !g.Busy(1) || g.Busy(2) {
			t.Error("Busy should reflect only the held key")
		}
		if err := g.Do(1, func() error { return nil }); !errors.Is(err, ErrMutationInFlight) {
			t.Errorf("nested same key: %v", err)
		}
		return g.Do(2, func() error { return nil })
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if g.Busy(1) {
		t.Fatal("key should be released")
	}
}
