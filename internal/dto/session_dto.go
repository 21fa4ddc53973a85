package dto

import (
	"time"

	"github.com/noah-isme/hms-api/internal/models"
)

// SessionResponse serializes a device session.
type SessionResponse struct {
	ID         uint      `json:"id"`
	UserID     uint      `json:"user_id"`
	DeviceName string    `json:"device_name"`
	IPAddress  string    `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// NewSessionResponse converts a session model into a DTO.
func NewSessionResponse(session models.Session) SessionResponse {
	return SessionResponse{
		ID:         session.ID,
		UserID:     session.UserID,
		DeviceName: session.DeviceName,
		IPAddress:  session.IPAddress,
		CreatedAt:  session.CreatedAt,
		LastSeenAt: session.LastSeenAt,
	}
}

// NewSessionResponseSlice converts session models into DTOs.
func NewSessionResponseSlice(sessions []models.Session) []SessionResponse {
	responses := make([]SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		responses = append(responses, NewSessionResponse(session))
	}
	return responses
}
