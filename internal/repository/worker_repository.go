package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicpulse/hub/internal/domain"
)

// WorkerRepository manages department workers.
type WorkerRepository interface {
	Create(ctx context.Context, worker *domain.Worker) error
	ListByDepartment(ctx context.Context, departmentID int64) ([]domain.Worker, error)
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Worker, error)
}

type workerRepository struct {
	pool *pgxpool.Pool
}

// NewWorkerRepository builds the repository.
func NewWorkerRepository(pool *pgxpool.Pool) WorkerRepository {
	return &workerRepository{pool: pool}
}

func (r *workerRepository) Create(ctx context.Context, worker *domain.Worker) error {
	const query = `
        INSERT INTO workers (department_id, name, email, phone_number)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		worker.DepartmentID,
		worker.Name,
		worker.Email,
		worker.PhoneNumber,
	).Scan(&worker.ID, &worker.CreatedAt)
	if IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *workerRepository) ListByDepartment(ctx context.Context, departmentID int64) ([]domain.Worker, error) {
	const query = `
        SELECT id, department_id, name, email, phone_number, created_at
        FROM workers WHERE department_id=$1 ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, departmentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanWorker)
}

func (r *workerRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.Worker, error) {
	const query = `
        SELECT id, department_id, name, email, phone_number, created_at
        FROM workers WHERE id = ANY($1) ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanWorker)
}

func scanWorker(row pgx.CollectableRow) (domain.Worker, error) {
	var w domain.Worker
	err := row.Scan(&w.ID, &w.DepartmentID, &w.Name, &w.Email, &w.PhoneNumber, &w.CreatedAt)
	return w, err
}
