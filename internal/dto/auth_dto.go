package dto

import (
	"time"

	"github.com/noah-isme/hms-api/internal/models"
)

// LoginRequest carries the credentials for token issuance.
type LoginRequest struct {
	Phone    string `json:"phone" validate:"required,min=5,max=20"`
	Password string `json:"password" validate:"required,min=1,max=128"`
}

// RefreshRequest exchanges a refresh token for a new access token.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// TokenPair is returned after a successful login.
type TokenPair struct {
	Access           string    `json:"access"`
	Refresh          string    `json:"refresh,omitempty"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
}

// LoginResponse is either a token pair or, when the device cap is reached,
// the list of sessions the user must free before logging in on a new device.
type LoginResponse struct {
	Outcome  string            `json:"outcome"`
	Tokens   *TokenPair        `json:"tokens,omitempty"`
	Session  *SessionResponse  `json:"session,omitempty"`
	Sessions []SessionResponse `json:"sessions,omitempty"`
	User     *UserResponse     `json:"user,omitempty"`
}

// UserResponse serializes the public part of an account.
type UserResponse struct {
	ID          uint       `json:"id"`
	FullName    string     `json:"full_name"`
	Phone       string     `json:"phone"`
	Role        string     `json:"role"`
	Level       uint       `json:"level"`
	GroupID     *uint      `json:"group_id"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// NewUserResponse converts a user model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		FullName:    user.FullName,
		Phone:       user.Phone,
		Role:        string(user.Role),
		Level:       user.Level,
		GroupID:     user.GroupID,
		IsActive:    user.IsActive,
		LastLoginAt: user.LastLoginAt,
	}
}

// GroupResponse serializes a study group.
type GroupResponse struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	TeacherID  *uint  `json:"teacher_id"`
	CourseID   *uint  `json:"course_id"`
	CourseName string `json:"course_name,omitempty"`
}

// NewGroupResponse converts a group model into a DTO.
func NewGroupResponse(group models.Group) GroupResponse {
	response := GroupResponse{
		ID:        group.ID,
		Name:      group.Name,
		TeacherID: group.TeacherID,
		CourseID:  group.CourseID,
	}
	if group.Course != nil {
		response.CourseName = group.Course.Name
	}
	return response
}
