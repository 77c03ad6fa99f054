package domain

import "time"

// Department is an organizational unit that resolves assigned complaints.
type Department struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Ref returns the public {id, name} projection of the department.
func (d Department) Ref() DepartmentRef {
	return DepartmentRef{ID: d.ID, Name: d.Name}
}

// DepartmentRef is the reference form attached to complaints and pickers.
type DepartmentRef struct {
	ID   int64
	Name string
}
