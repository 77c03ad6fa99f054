package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicpulse/hub/internal/domain"
)

// ErrStaleVersion is returned when an update races with another writer.
var ErrStaleVersion = errors.New("complaint was modified concurrently")

// UnspecifiedCity labels complaints filed without a city in aggregates.
const UnspecifiedCity = "Unspecified"

// DepartmentCount is one bar of the department chart.
type DepartmentCount struct {
	DepartmentName string
	ComplaintCount int64
}

// CityCount is one bar of the city chart.
type CityCount struct {
	City           string
	ComplaintCount int64
}

// UpdateOptions lists side effects committed together with a complaint update.
type UpdateOptions struct {
	// ArchiveFeedback marks the complaint's active feedback as archived.
	ArchiveFeedback bool
}

// ComplaintRepository encapsulates complaint persistence.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *domain.Complaint) error
	// Update writes the mutable columns and the completion workers when the stored
	// version equals complaint.Version, then bumps complaint.Version.
	Update(ctx context.Context, complaint *domain.Complaint, opts UpdateOptions) error
	GetByID(ctx context.Context, id int64) (*domain.Complaint, error)
	ListAll(ctx context.Context) ([]domain.Complaint, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Complaint, error)
	ListByDepartment(ctx context.Context, departmentID int64) ([]domain.Complaint, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Complaint, error)
	CountByDepartment(ctx context.Context) ([]DepartmentCount, error)
	CountByCity(ctx context.Context) ([]CityCount, error)
}

type complaintRepository struct {
	pool *pgxpool.Pool
}

// NewComplaintRepository instantiates repository.
func NewComplaintRepository(pool *pgxpool.Pool) ComplaintRepository {
	return &complaintRepository{pool: pool}
}

const complaintColumns = `
        SELECT c.id, c.user_id, u.first_name, u.email, c.title, c.category, c.description,
               c.location, c.city, c.status, c.message, c.before_image_path, c.after_image_path,
               c.department_id, d.name, c.deadline_at, c.resolved_at, c.version, c.created_at, c.updated_at
        FROM complaints c
        JOIN users u ON u.id = c.user_id
        LEFT JOIN departments d ON d.id = c.department_id`

func (r *complaintRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	const query = `
        INSERT INTO complaints (user_id, title, category, description, location, city, status, before_image_path)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		complaint.UserID,
		complaint.Title,
		complaint.Category,
		complaint.Description,
		complaint.Location,
		complaint.City,
		complaint.Status,
		complaint.BeforeImagePath,
	).Scan(&complaint.ComplainID, &complaint.Version, &complaint.CreatedAt, &complaint.UpdatedAt)
}

func (r *complaintRepository) Update(ctx context.Context, complaint *domain.Complaint, opts UpdateOptions) error {
	const query = `
        UPDATE complaints SET status=$1, message=$2, after_image_path=$3, department_id=$4,
            deadline_at=$5, resolved_at=$6, version=version+1, updated_at=NOW()
        WHERE id=$7 AND version=$8
        RETURNING version, updated_at`

	var departmentID *int64
	if complaint.Department != nil {
		departmentID = &complaint.Department.ID
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query,
			complaint.Status,
			complaint.Message,
			complaint.AfterImagePath,
			departmentID,
			complaint.DeadlineAt,
			complaint.ResolvedAt,
			complaint.ComplainID,
			complaint.Version,
		).Scan(&complaint.Version, &complaint.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return r.missingOrStale(ctx, tx, complaint.ComplainID)
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM complaint_workers WHERE complaint_id=$1`, complaint.ComplainID); err != nil {
			return fmt.Errorf("clear complaint workers: %w", err)
		}
		for _, w := range complaint.Workers {
			if _, err := tx.Exec(ctx,
				`INSERT INTO complaint_workers (complaint_id, worker_id) VALUES ($1,$2)`,
				complaint.ComplainID, w.ID); err != nil {
				return fmt.Errorf("link worker %d: %w", w.ID, err)
			}
		}

		if opts.ArchiveFeedback {
			if _, err := tx.Exec(ctx,
				`UPDATE feedback SET archived_at=NOW() WHERE complaint_id=$1 AND archived_at IS NULL`,
				complaint.ComplainID); err != nil {
				return fmt.Errorf("archive feedback: %w", err)
			}
		}
		return nil
	})
}

func (r *complaintRepository) missingOrStale(ctx context.Context, tx pgx.Tx, id int64) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM complaints WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}
	return ErrStaleVersion
}

func (r *complaintRepository) GetByID(ctx context.Context, id int64) (*domain.Complaint, error) {
	rows, err := r.pool.Query(ctx, complaintColumns+` WHERE c.id=$1`, id)
	if err != nil {
		return nil, err
	}
	list, err := r.collect(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &list[0], nil
}

func (r *complaintRepository) ListAll(ctx context.Context) ([]domain.Complaint, error) {
	return r.list(ctx, complaintColumns+` ORDER BY c.id ASC`)
}

func (r *complaintRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Complaint, error) {
	return r.list(ctx, complaintColumns+` WHERE c.user_id=$1 ORDER BY c.id ASC`, userID)
}

func (r *complaintRepository) ListByDepartment(ctx context.Context, departmentID int64) ([]domain.Complaint, error) {
	return r.list(ctx, complaintColumns+` WHERE c.department_id=$1 ORDER BY c.id ASC`, departmentID)
}

func (r *complaintRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Complaint, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, complaintColumns+`
        WHERE c.status=$1 AND c.deadline_at IS NOT NULL AND c.deadline_at < $2
        ORDER BY c.deadline_at ASC LIMIT $3`, domain.StatusInProgress, now, limit)
}

func (r *complaintRepository) CountByDepartment(ctx context.Context) ([]DepartmentCount, error) {
	const query = `
        SELECT d.name, COUNT(c.id)
        FROM complaints c JOIN departments d ON d.id = c.department_id
        GROUP BY d.name ORDER BY d.name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []DepartmentCount{}
	for rows.Next() {
		var item DepartmentCount
		if err := rows.Scan(&item.DepartmentName, &item.ComplaintCount); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *complaintRepository) CountByCity(ctx context.Context) ([]CityCount, error) {
	const query = `
        SELECT COALESCE(NULLIF(TRIM(city), ''), $1) AS city_name, COUNT(*)
        FROM complaints GROUP BY city_name ORDER BY city_name ASC`
	rows, err := r.pool.Query(ctx, query, UnspecifiedCity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []CityCount{}
	for rows.Next() {
		var item CityCount
		if err := rows.Scan(&item.City, &item.ComplaintCount); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *complaintRepository) list(ctx context.Context, query string, args ...any) ([]domain.Complaint, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows)
}

// collect scans complaint rows and attaches their completion workers.
func (r *complaintRepository) collect(ctx context.Context, rows pgx.Rows) ([]domain.Complaint, error) {
	list, err := scanComplaints(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}

	ids := make([]int64, len(list))
	index := make(map[int64]int, len(list))
	for i, c := range list {
		ids[i] = c.ComplainID
		index[c.ComplainID] = i
	}

	const query = `
        SELECT cw.complaint_id, w.id, w.department_id, w.name, w.email, w.phone_number, w.created_at
        FROM complaint_workers cw JOIN workers w ON w.id = cw.worker_id
        WHERE cw.complaint_id = ANY($1)
        ORDER BY w.id ASC`
	workerRows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer workerRows.Close()

	for workerRows.Next() {
		var complaintID int64
		var w domain.Worker
		if err := workerRows.Scan(&complaintID, &w.ID, &w.DepartmentID, &w.Name, &w.Email, &w.PhoneNumber, &w.CreatedAt); err != nil {
			return nil, err
		}
		i := index[complaintID]
		list[i].Workers = append(list[i].Workers, w)
	}
	return list, workerRows.Err()
}

func scanComplaints(rows pgx.Rows) ([]domain.Complaint, error) {
	defer rows.Close()
	result := []domain.Complaint{}
	for rows.Next() {
		var (
			c              domain.Complaint
			departmentID   *int64
			departmentName *string
		)
		if err := rows.Scan(
			&c.ComplainID,
			&c.UserID,
			&c.FirstName,
			&c.UserEmail,
			&c.Title,
			&c.Category,
			&c.Description,
			&c.Location,
			&c.City,
			&c.Status,
			&c.Message,
			&c.BeforeImagePath,
			&c.AfterImagePath,
			&departmentID,
			&departmentName,
			&c.DeadlineAt,
			&c.ResolvedAt,
			&c.Version,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if departmentID != nil {
			c.Department = &domain.DepartmentRef{ID: *departmentID}
			if departmentName != nil {
				c.Department.Name = *departmentName
			}
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
