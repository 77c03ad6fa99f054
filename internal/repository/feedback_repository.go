package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicpulse/hub/internal/domain"
)

// FeedbackRepository stores citizen ratings. Only one non-archived row may exist
// per complaint; archived rows are kept for audit.
type FeedbackRepository interface {
	Create(ctx context.Context, fb *domain.Feedback) error
	// GetActive returns pgx.ErrNoRows when the complaint has no active feedback.
	GetActive(ctx context.Context, complaintID int64) (*domain.Feedback, error)
}

type feedbackRepository struct {
	pool *pgxpool.Pool
}

// NewFeedbackRepository builds repository.
func NewFeedbackRepository(pool *pgxpool.Pool) FeedbackRepository {
	return &feedbackRepository{pool: pool}
}

func (r *feedbackRepository) Create(ctx context.Context, fb *domain.Feedback) error {
	const query = `
        INSERT INTO feedback (complaint_id, user_id, rating, feedback_message)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		fb.ComplainID,
		fb.UserID,
		fb.Rating,
		fb.FeedbackMessage,
	).Scan(&fb.ID, &fb.CreatedAt)
	if IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *feedbackRepository) GetActive(ctx context.Context, complaintID int64) (*domain.Feedback, error) {
	const query = `
        SELECT id, complaint_id, user_id, rating, feedback_message, created_at, archived_at
        FROM feedback WHERE complaint_id=$1 AND archived_at IS NULL`
	var fb domain.Feedback
	if err := r.pool.QueryRow(ctx, query, complaintID).Scan(
		&fb.ID,
		&fb.ComplainID,
		&fb.UserID,
		&fb.Rating,
		&fb.FeedbackMessage,
		&fb.CreatedAt,
		&fb.ArchivedAt,
	); err != nil {
		return nil, err
	}
	return &fb, nil
}
