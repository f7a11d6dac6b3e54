package models

import "time"

// UserRole is a stored base role. Manager, HR and CEO capabilities are
// derived per request from hierarchy data and emp-code rules, never stored.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleEmployee UserRole = "EMPLOYEE"
)

// User represents an application account keyed by emp code.
type User struct {
	ID                 string     `db:"id" json:"id"`
	EmpCode            string     `db:"emp_code" json:"emp_code"`
	Email              *string    `db:"email" json:"email,omitempty"`
	PasswordHash       string     `db:"password_hash" json:"-"`
	DisplayName        string     `db:"display_name" json:"display_name"`
	Role               UserRole   `db:"role" json:"role"`
	MustChangePassword bool       `db:"must_change_password" json:"must_change_password"`
	Active             bool       `db:"active" json:"active"`
	LastLogin          *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
