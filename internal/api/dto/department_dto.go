package dto

import "github.com/civicpulse/hub/internal/domain"

// DepartmentRef is the public {id, name} projection.
type DepartmentRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CreateWorkerRequest payload.
type CreateWorkerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

// WorkerResponse is a department staff member.
type WorkerResponse struct {
	ID           int64  `json:"id"`
	DepartmentID int64  `json:"departmentId"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phoneNumber"`
}

func FromDepartmentRefs(refs []domain.DepartmentRef) []DepartmentRef {
	out := make([]DepartmentRef, 0, len(refs))
	for _, r := range refs {
		out = append(out, DepartmentRef{ID: r.ID, Name: r.Name})
	}
	return out
}

func FromWorker(w domain.Worker) WorkerResponse {
	return WorkerResponse{
		ID:           w.ID,
		DepartmentID: w.DepartmentID,
		Name:         w.Name,
		Email:        w.Email,
		PhoneNumber:  w.PhoneNumber,
	}
}

func FromWorkers(list []domain.Worker) []WorkerResponse {
	out := make([]WorkerResponse, 0, len(list))
	for _, w := range list {
		out = append(out, FromWorker(w))
	}
	return out
}

// Domain converts the wire form back into the worker record.
func (w WorkerResponse) Domain() domain.Worker {
	return domain.Worker{
		ID:           w.ID,
		DepartmentID: w.DepartmentID,
		Name:         w.Name,
		Email:        w.Email,
		PhoneNumber:  w.PhoneNumber,
	}
}
