package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicpulse/hub/internal/domain"
	"github.com/civicpulse/hub/internal/events"
	"github.com/civicpulse/hub/internal/lock"
	"github.com/civicpulse/hub/internal/repository"
	"github.com/civicpulse/hub/internal/storage"
	apperrors "github.com/civicpulse/hub/pkg/util/errorutil"
)

// CoreDependencies bundles what every complaint-mutating service needs.
type CoreDependencies struct {
	ComplaintRepo repository.ComplaintRepository
	HistoryRepo   repository.ComplaintHistoryRepository
	Locker        lock.Locker
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// complaintCore holds the plumbing shared by the lifecycle services: per-complaint
// locking, loading, audit history and event publication.
type complaintCore struct {
	complaints repository.ComplaintRepository
	history    repository.ComplaintHistoryRepository
	locker     lock.Locker
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func newComplaintCore(deps CoreDependencies) complaintCore {
	core := complaintCore{
		complaints: deps.ComplaintRepo,
		history:    deps.HistoryRepo,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Now,
	}
	if core.now == nil {
		core.now = time.Now
	}
	if core.logger == nil {
		core.logger = zap.NewNop()
	}
	return core
}

// load fetches a complaint and maps a missing row to 404.
func (c *complaintCore) load(ctx context.Context, id int64) (*domain.Complaint, error) {
	complaint, err := c.complaints.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("complaint", map[string]any{"complainId": id})
		}
		return nil, apperrors.MapError(err)
	}
	return complaint, nil
}

// loadVisible loads the complaint and checks the actor may see it.
func (c *complaintCore) loadVisible(ctx context.Context, actor domain.Actor, id int64) (*domain.Complaint, error) {
	complaint, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanView(complaint) {
		return nil, apperrors.NewForbidden("complaint not accessible")
	}
	return complaint, nil
}

// mutate runs fn on a freshly loaded complaint while holding the complaint's lock.
// A concurrent mutation of the same complaint fails fast with 409.
func (c *complaintCore) mutate(ctx context.Context, id int64, fn func(*domain.Complaint) error) error {
	if c.locker != nil {
		release, err := c.locker.Acquire(ctx, lock.ComplaintKey(id))
		if err != nil {
			if errors.Is(err, lock.ErrLocked) {
				return apperrors.NewLocked("complaint", map[string]any{"complainId": id})
			}
			return apperrors.NewUnavailable("complaint lock unavailable", err)
		}
		defer release()
	}
	complaint, err := c.load(ctx, id)
	if err != nil {
		return err
	}
	return fn(complaint)
}

// save persists the complaint with its optimistic version check.
func (c *complaintCore) save(ctx context.Context, complaint *domain.Complaint, opts repository.UpdateOptions) error {
	if err := c.complaints.Update(ctx, complaint, opts); err != nil {
		return lifecycleError(err)
	}
	return nil
}

// discardImage removes an image stored for a write that did not persist.
func (c *complaintCore) discardImage(ctx context.Context, images *storage.Images, key string) {
	if err := images.Delete(context.WithoutCancel(ctx), key); err != nil {
		c.logger.Warn("discard orphaned image", zap.String("key", key), zap.Error(err))
	}
}

func (c *complaintCore) record(ctx context.Context, actor domain.Actor, complaintID int64, change domain.ComplaintChangeType, oldValue, newValue map[string]any) {
	if c.history == nil {
		return
	}
	entry := &domain.ComplaintHistory{
		ComplainID:    complaintID,
		ChangedByType: actor.Type,
		ChangeType:    change,
		OldValue:      oldValue,
		NewValue:      newValue,
	}
	if actor.ID != 0 {
		id := actor.ID
		entry.ChangedByID = &id
	}
	// The mutation is already committed; a lost audit row is logged, not surfaced.
	if err := c.history.Create(ctx, entry); err != nil {
		c.logger.Error("record complaint history",
			zap.Int64("complain_id", complaintID),
			zap.String("change_type", string(change)),
			zap.Error(err))
	}
}

func (c *complaintCore) publish(ctx context.Context, actor domain.Actor, complaintID int64, eventType events.EventType, payload any) {
	if c.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		ComplaintID: complaintID,
		Actor:       eventActor(actor),
		Timestamp:   c.now(),
		Payload:     payload,
	}
	if err := c.dispatcher.Publish(ctx, event); err != nil {
		c.logger.Warn("event handlers failed",
			zap.String("event_type", string(eventType)),
			zap.Int64("complain_id", complaintID),
			zap.Error(err))
	}
}

func eventActor(actor domain.Actor) events.Actor {
	ea := events.Actor{Type: actor.Type}
	if actor.ID != 0 {
		id := actor.ID
		ea.ID = &id
	}
	return ea
}

// systemActor attributes automated changes such as the deadline sweep.
var systemActor = domain.Actor{Type: domain.SubjectTypeSystem}

// lifecycleError maps lifecycle rule violations and persistence races to API errors.
func lifecycleError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrMessageLocked),
		errors.Is(err, domain.ErrFeedbackExists),
		errors.Is(err, domain.ErrFeedbackTooEarly):
		return apperrors.NewConflict(err.Error(), nil)
	case errors.Is(err, domain.ErrNoWorkers),
		errors.Is(err, domain.ErrNoImage),
		errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrInvalidTimeline):
		return apperrors.NewValidationError(err.Error(), nil)
	case errors.Is(err, storage.ErrEmptyImage), errors.Is(err, storage.ErrUnsupportedImage):
		return apperrors.NewValidationError(err.Error(), nil)
	case errors.Is(err, repository.ErrStaleVersion):
		return apperrors.NewConflict("complaint was modified concurrently, reload and retry", nil)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict("record already exists", nil)
	}
	return apperrors.MapError(err)
}

func statusValue(s domain.ComplaintStatus) map[string]any {
	return map[string]any{"status": s}
}

func strPtr(s string) *string {
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
