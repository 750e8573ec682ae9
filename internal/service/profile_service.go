package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/repository"
	apperrors "github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

const minContactNumberLen = 8

// ProfileService edits a user's own profile and lists programmes.
type ProfileService struct {
	users      repository.UserRepository
	programmes repository.ProgrammeRepository
}

// NewProfileService builds the service.
func NewProfileService(users repository.UserRepository, programmes repository.ProgrammeRepository) *ProfileService {
	return &ProfileService{users: users, programmes: programmes}
}

// Update applies req to the user's profile. Name and gender are required.
// Blood type and department keep their stored values when left empty.
func (s *ProfileService) Update(ctx context.Context, userID string, req domain.ProfileUpdate) (*domain.User, error) {
	details := map[string]any{}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		details["name"] = "required"
	}
	if !domain.ValidGender(req.Gender) {
		details["gender"] = "must be MALE, FEMALE or OTHERS"
	}
	contact := strings.TrimSpace(req.ContactNumber)
	if contact != "" && len(contact) < minContactNumberLen {
		details["contact_number"] = "must be at least 8 characters"
	}
	if req.BloodType != "" && !domain.ValidBloodType(req.BloodType) {
		details["blood_type"] = "unknown blood type"
	}
	if req.DepartmentID != "" {
		if _, err := s.programmes.Get(ctx, req.DepartmentID); err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewInternalError(err)
			}
			details["department_id"] = "unknown programme"
		}
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid profile", details)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	user.Name = name
	user.Gender = req.Gender
	user.ContactNumber = contact
	if req.BloodType != "" {
		user.BloodType = req.BloodType
	}
	if req.DepartmentID != "" {
		user.DepartmentID = req.DepartmentID
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// Programmes lists every programme by name.
func (s *ProfileService) Programmes(ctx context.Context) ([]domain.Programme, error) {
	list, err := s.programmes.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if list == nil {
		list = []domain.Programme{}
	}
	return list, nil
}
