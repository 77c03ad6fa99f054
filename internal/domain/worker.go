package domain

import "time"

// Worker is a staff member owned by exactly one department.
type Worker struct {
	ID           int64
	DepartmentID int64
	Name         string
	Email        string
	PhoneNumber  string
	CreatedAt    time.Time
}
