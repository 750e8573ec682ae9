package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ehealth-cst/ehealth-client/internal/auth"
	"github.com/ehealth-cst/ehealth-client/internal/config"
	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/repository"
)

// Demo accounts created by SeedDemoData.
const (
	DemoStudentEmail = "02230001.cst@rub.edu.bt"
	DemoHAEmail      = "ha.cst@rub.edu.bt"
	DemoDeanEmail    = "dean.cst@rub.edu.bt"
)

// DemoProgrammes are the programmes seeded on an empty store.
var DemoProgrammes = []string{
	"B.E. in Civil Engineering",
	"B.E. in Electrical Engineering",
	"B.E. in Information Technology",
	"Bachelor of Architecture",
}

// SeedStores are the repositories SeedDemoData writes to.
type SeedStores struct {
	Users      repository.UserRepository
	Feeds      repository.FeedRepository
	Programmes repository.ProgrammeRepository
	Treatments repository.TreatmentRepository
}

// SeedDemoData creates the demo accounts, programmes, announcements and a
// treatment history for the demo student. Data that already exists is left
// untouched, so it is safe on every start.
func SeedDemoData(ctx context.Context, stores SeedStores, cfg config.AuthConfig, logger *zap.Logger) error {
	users, feeds := stores.Users, stores.Feeds
	department, err := seedProgrammes(ctx, stores.Programmes)
	if err != nil {
		return err
	}

	passwordHash, err := auth.HashSecret(cfg.DemoPassword, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}
	codeHash, err := auth.HashSecret(cfg.DemoMFACode, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash demo mfa code: %w", err)
	}

	accounts := []*domain.User{
		{Name: "Karma Wangchuk", Email: DemoStudentEmail, Gender: domain.GenderMale, UserType: domain.UserTypeStudent, StudentID: "02230001", ContactNumber: "17000001", BloodType: "O+", DepartmentID: department},
		{Name: "Pema Choden", Email: DemoHAEmail, Gender: domain.GenderFemale, UserType: domain.UserTypeHA, ContactNumber: "17000002", IsAvailable: true},
		{Name: "Dorji Tshering", Email: DemoDeanEmail, Gender: domain.GenderMale, UserType: domain.UserTypeDean, ContactNumber: "17000003", MFAEnabled: true, MFACodeHash: codeHash},
	}

	var ha, student *domain.User
	created := 0
	for _, u := range accounts {
		u.PasswordHash = passwordHash
		err := users.Create(ctx, u)
		switch {
		case errors.Is(err, repository.ErrConflict):
			existing, getErr := users.GetByEmail(ctx, u.Email)
			if getErr != nil {
				return fmt.Errorf("load %s: %w", u.Email, getErr)
			}
			u = existing
		case err != nil:
			return fmt.Errorf("create %s: %w", u.Email, err)
		default:
			created++
		}
		switch u.UserType {
		case domain.UserTypeHA:
			ha = u
		case domain.UserTypeStudent:
			student = u
		}
	}

	existing, err := feeds.List(ctx)
	if err != nil {
		return fmt.Errorf("list feeds: %w", err)
	}
	if len(existing) == 0 && ha != nil {
		posts := []*domain.Feed{
			{AuthorID: ha.ID, Title: "Flu vaccination drive", Description: "Free flu shots at the health unit from Monday to Wednesday."},
			{AuthorID: ha.ID, Title: "Health unit hours", Description: "The health unit is open 9am to 5pm on weekdays."},
		}
		for _, f := range posts {
			if err := feeds.Create(ctx, f); err != nil {
				return fmt.Errorf("create feed: %w", err)
			}
		}
	}

	if err := seedTreatments(ctx, stores.Treatments, student, ha); err != nil {
		return err
	}

	logger.Info("demo data seeded", zap.Int("accounts_created", created))
	return nil
}

// seedProgrammes fills an empty programme store and returns the id of the
// demo student's programme.
func seedProgrammes(ctx context.Context, programmes repository.ProgrammeRepository) (string, error) {
	list, err := programmes.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list programmes: %w", err)
	}
	if len(list) == 0 {
		for _, name := range DemoProgrammes {
			p := &domain.Programme{Name: name}
			if err := programmes.Create(ctx, p); err != nil {
				return "", fmt.Errorf("create programme %q: %w", name, err)
			}
			list = append(list, *p)
		}
	}
	for _, p := range list {
		if p.Name == "B.E. in Information Technology" {
			return p.ID, nil
		}
	}
	return list[0].ID, nil
}

func seedTreatments(ctx context.Context, treatments repository.TreatmentRepository, student, ha *domain.User) error {
	if student == nil || ha == nil {
		return nil
	}
	existing, err := treatments.ListByPatient(ctx, student.ID)
	if err != nil {
		return fmt.Errorf("list treatments: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	records := []*domain.Treatment{
		{
			PatientID: student.ID, DoctorID: ha.ID, Severity: domain.SeverityMild,
			Notes: "Seasonal cold, rest and fluids.", BloodPressure: "118/76",
			Medicines: []domain.TreatmentMedicine{{MedicineID: "paracetamol-500", MedicineName: "Paracetamol 500mg", Count: 6}},
			Illnesses: []domain.Illness{{ID: "common-cold", Name: "Common cold", Type: "COMMUNICABLE"}},
		},
		{
			PatientID: student.ID, DoctorID: ha.ID, Severity: domain.SeverityModerate,
			Notes: "Sprained ankle from football, strapped.", BloodPressure: "122/80",
			Medicines: []domain.TreatmentMedicine{{MedicineID: "ibuprofen-400", MedicineName: "Ibuprofen 400mg", Count: 4}},
			Illnesses: []domain.Illness{{ID: "sprain", Name: "Ankle sprain", Type: "INJURY"}},
		},
	}
	for _, t := range records {
		if err := treatments.Create(ctx, t); err != nil {
			return fmt.Errorf("create treatment: %w", err)
		}
	}
	return nil
}
