package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles issued by the login subsystem.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
)

// JWTClaims is the caller identity carried by access tokens.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	TeacherID *int64   `json:"teacher_id,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the caller may modify timetables.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
