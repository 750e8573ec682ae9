package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/repository"
	apperrors "github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

// LeaveService manages a health assistant's leave. At most one leave is open
// at a time; it must be cancelled before another is set.
type LeaveService struct {
	leaves repository.LeaveRepository
	now    func() time.Time
}

// NewLeaveService builds the service.
func NewLeaveService(leaves repository.LeaveRepository) *LeaveService {
	return &LeaveService{leaves: leaves, now: time.Now}
}

// Set records new leave for userID.
func (s *LeaveService) Set(ctx context.Context, userID string, req domain.LeaveRequest) (*domain.Leave, error) {
	details := map[string]any{}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		details["reason"] = "required"
	}
	if req.StartDate.IsZero() {
		details["start_date"] = "required"
	}
	if req.EndDate.IsZero() {
		details["end_date"] = "required"
	}
	start, end := domain.Day(req.StartDate), domain.Day(req.EndDate)
	if len(details) == 0 {
		if end.Before(start) {
			details["end_date"] = "must not be before start_date"
		} else if end.Before(domain.Day(s.now())) {
			details["end_date"] = "must not be in the past"
		}
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid leave", details)
	}

	if _, err := s.leaves.Active(ctx, userID, s.now()); err == nil {
		return nil, apperrors.NewDomainError("CONFLICT", "leave already set", http.StatusConflict, nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	leave := &domain.Leave{UserID: userID, StartDate: start, EndDate: end, Reason: reason}
	if err := s.leaves.Create(ctx, leave); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return leave, nil
}

// Current returns the open leave, or NOT_FOUND when there is none.
func (s *LeaveService) Current(ctx context.Context, userID string) (*domain.Leave, error) {
	leave, err := s.leaves.Active(ctx, userID, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("leave", nil)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return leave, nil
}

// Cancel ends the open leave and returns it.
func (s *LeaveService) Cancel(ctx context.Context, userID string) (*domain.Leave, error) {
	leave, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.leaves.Cancel(ctx, leave.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("leave", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return leave, nil
}

// Annotate fills the leave fields of a health assistant's session profile.
func (s *LeaveService) Annotate(ctx context.Context, user *domain.SessionUser) {
	if user == nil || user.UserType != domain.UserTypeHA {
		return
	}
	leave, err := s.leaves.Active(ctx, user.ID, s.now())
	if err != nil {
		return
	}
	start, end := leave.StartDate, leave.EndDate
	user.StartDate, user.EndDate = &start, &end
	user.IsOnLeave = leave.Covers(s.now())
}
