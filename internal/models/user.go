package models

import (
	"strings"
	"time"
)

// Role identifies what a user is allowed to do.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole normalises free-form role strings (JWT claims, form values).
func ParseRole(value string) Role {
	return Role(strings.ToLower(strings.TrimSpace(value)))
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

// Identity is the authenticated principal passed explicitly to role checks.
type Identity struct {
	UserID uint
	Role   Role
}

// HasRole reports whether identity satisfies any of the required roles.
// Admins satisfy every check.
func HasRole(identity Identity, required ...Role) bool {
	if identity.UserID == 0 || !identity.Role.Valid() {
		return false
	}
	if identity.Role == RoleAdmin {
		return true
	}
	for _, role := range required {
		if identity.Role == role {
			return true
		}
	}
	return false
}

// User is an account that can log in as admin, teacher or student.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	FullName     string     `gorm:"size:255;not null" json:"full_name"`
	Phone        string     `gorm:"size:20;uniqueIndex;not null" json:"phone"`
	PasswordHash string     `gorm:"size:128" json:"-"`
	Role         Role       `gorm:"size:30;not null;default:student" json:"role"`
	Level        uint       `gorm:"not null;default:1" json:"level"`
	GroupID      *uint      `json:"group_id"`
	Group        *Group     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"group,omitempty"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Identity returns the principal used for permission checks.
func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Role: u.Role}
}

// Course groups several study groups.
type Course struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Group is a class of students led by a teacher.
type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	TeacherID *uint     `json:"teacher_id"`
	CourseID  *uint     `json:"course_id"`
	Course    *Course   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"course,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
