package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
)

// TreatmentRepository stores treatment records. Medicines and illnesses live
// with the record they belong to.
type TreatmentRepository interface {
	Create(ctx context.Context, treatment *domain.Treatment) error
	// ListByPatient returns the patient's records, newest first.
	ListByPatient(ctx context.Context, patientID string) ([]domain.Treatment, error)
}

type treatmentRepository struct {
	pool *pgxpool.Pool
}

// NewTreatmentRepository returns a Postgres-backed implementation.
func NewTreatmentRepository(pool *pgxpool.Pool) TreatmentRepository {
	return &treatmentRepository{pool: pool}
}

func (r *treatmentRepository) Create(ctx context.Context, treatment *domain.Treatment) error {
	const query = `
        INSERT INTO treatments (patient_id, doctor_id, severity, notes, blood_pressure,
            forwarded_to_hospital, forwarded_by_hospital, medicines, illnesses)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, created_at`

	normalizeTreatment(treatment)
	return r.pool.QueryRow(ctx, query,
		treatment.PatientID,
		treatment.DoctorID,
		treatment.Severity,
		treatment.Notes,
		treatment.BloodPressure,
		treatment.ForwardedToHospital,
		treatment.ForwardedByHospital,
		treatment.Medicines,
		treatment.Illnesses,
	).Scan(&treatment.ID, &treatment.CreatedAt)
}

func (r *treatmentRepository) ListByPatient(ctx context.Context, patientID string) ([]domain.Treatment, error) {
	if _, err := uuid.Parse(patientID); err != nil {
		return []domain.Treatment{}, nil
	}
	const query = `
        SELECT t.id, t.patient_id, t.doctor_id, u.name, t.severity, t.notes, t.blood_pressure,
            t.forwarded_to_hospital, t.forwarded_by_hospital, t.medicines, t.illnesses, t.created_at
        FROM treatments t JOIN users u ON u.id = t.patient_id
        WHERE t.patient_id=$1 ORDER BY t.created_at DESC`

	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Treatment, error) {
		var t domain.Treatment
		err := row.Scan(&t.ID, &t.PatientID, &t.DoctorID, &t.PatientName, &t.Severity, &t.Notes, &t.BloodPressure,
			&t.ForwardedToHospital, &t.ForwardedByHospital, &t.Medicines, &t.Illnesses, &t.CreatedAt)
		return t, err
	})
}

// normalizeTreatment keeps the JSON arrays non-null.
func normalizeTreatment(t *domain.Treatment) {
	if t.Medicines == nil {
		t.Medicines = []domain.TreatmentMedicine{}
	}
	if t.Illnesses == nil {
		t.Illnesses = []domain.Illness{}
	}
}

type memoryTreatmentRepository struct {
	mu         sync.RWMutex
	treatments []domain.Treatment
	now        func() time.Time
}

// NewMemoryTreatmentRepository returns a process-local implementation.
func NewMemoryTreatmentRepository() TreatmentRepository {
	return &memoryTreatmentRepository{now: time.Now}
}

func (r *memoryTreatmentRepository) Create(_ context.Context, treatment *domain.Treatment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	normalizeTreatment(treatment)
	treatment.ID = uuid.NewString()
	treatment.CreatedAt = r.now().UTC()
	r.treatments = append(r.treatments, *treatment)
	return nil
}

func (r *memoryTreatmentRepository) ListByPatient(_ context.Context, patientID string) ([]domain.Treatment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Treatment{}
	for _, t := range r.treatments {
		if t.PatientID == patientID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
