package dto

import (
	"time"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
)

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyMFARequest payload for POST /mfa/verify-login.
type VerifyMFARequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// LoginResponse answers a login. Tokens travel only in cookies.
type LoginResponse struct {
	Message     string              `json:"message"`
	MFARequired bool                `json:"mfaRequired"`
	User        *domain.SessionUser `json:"user,omitempty"`
}

// SessionResponse is the body of GET /session/.
type SessionResponse struct {
	User *domain.SessionUser `json:"user"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// SessionUserFrom builds the session profile the client sees.
func SessionUserFrom(u *domain.User, s *domain.Session) *domain.SessionUser {
	if u == nil {
		return nil
	}
	created := u.CreatedAt
	out := &domain.SessionUser{
		ID:            u.ID,
		UserID:        u.ID,
		StudentID:     u.StudentID,
		Name:          u.Name,
		Gender:        u.Gender,
		Email:         u.Email,
		UserType:      u.UserType,
		ContactNumber: u.ContactNumber,
		BloodType:     u.BloodType,
		DepartmentID:  u.DepartmentID,
		CreatedAt:     &created,
		IsAvailable:   u.IsAvailable,
	}
	if s != nil {
		out.SessionID = s.ID
		exp := s.ExpiresAt.UTC().Truncate(time.Second)
		out.ExpiredAt = &exp
	}
	return out
}
