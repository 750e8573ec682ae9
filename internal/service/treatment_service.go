package service

import (
	"context"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/repository"
	apperrors "github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

// TreatmentService serves treatment history.
type TreatmentService struct {
	treatments repository.TreatmentRepository
}

// NewTreatmentService builds the service.
func NewTreatmentService(treatments repository.TreatmentRepository) *TreatmentService {
	return &TreatmentService{treatments: treatments}
}

// ForPatient returns the patient's history. Patients see their own records;
// health assistants and the dean see anyone's.
func (s *TreatmentService) ForPatient(ctx context.Context, caller *domain.User, patientID string) ([]domain.Treatment, error) {
	if patientID == "" {
		return nil, apperrors.NewValidationError("patient id required", nil)
	}
	if caller.ID != patientID && caller.UserType != domain.UserTypeHA && caller.UserType != domain.UserTypeDean {
		return nil, apperrors.NewForbidden("not allowed to view this patient's treatments")
	}
	list, err := s.treatments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if list == nil {
		list = []domain.Treatment{}
	}
	return list, nil
}
