package dto

import "time"

// SignupRequest payload for new citizens.
type SignupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// SignupResponse acknowledges a registration.
type SignupResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"userId"`
	Email   string `json:"email"`
}

// LoginRequest payload for citizen and admin login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// DepartmentLoginRequest identifies the department by name plus its admin email.
type DepartmentLoginRequest struct {
	DepartmentName string `json:"departmentName"`
	AdminEmail     string `json:"adminEmail"`
	Password       string `json:"password"`
}

// AuthResponse is returned by every login endpoint. Message keeps the legacy
// "Login Successful UserID:<n>" text for older clients; the structured fields are
// authoritative.
type AuthResponse struct {
	Message      string    `json:"message"`
	Role         string    `json:"role"`
	UserID       int64     `json:"userId,omitempty"`
	Email        string    `json:"email,omitempty"`
	DepartmentID int64     `json:"departmentId,omitempty"`
	Name         string    `json:"name,omitempty"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// ErrorResponse is the body of every structured non-2xx response.
type ErrorResponse struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
