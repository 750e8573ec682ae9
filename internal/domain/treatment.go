package domain

import "time"

// Severity grades a treatment record.
type Severity string

const (
	SeverityMild     Severity = "MILD"
	SeverityModerate Severity = "MODERATE"
	SeveritySevere   Severity = "SEVERE"
)

// TreatmentMedicine is a medicine dispensed during a treatment.
type TreatmentMedicine struct {
	MedicineID   string `json:"medicineId"`
	MedicineName string `json:"medicineName"`
	Count        int    `json:"medicineCount"`
}

// Illness is a diagnosis attached to a treatment.
type Illness struct {
	ID          string `json:"illnessId"`
	Name        string `json:"illnessName"`
	Type        string `json:"illnessType"`
	Description string `json:"illnessDescription,omitempty"`
}

// Treatment is one visit to the health unit.
type Treatment struct {
	ID                  string              `json:"treatmentId"`
	PatientID           string              `json:"patientId"`
	DoctorID            string              `json:"doctorId,omitempty"`
	PatientName         string              `json:"patientName,omitempty"`
	Severity            Severity            `json:"severity"`
	Notes               string              `json:"notes"`
	BloodPressure       string              `json:"bloodPressure,omitempty"`
	ForwardedToHospital bool                `json:"forwardedToHospital"`
	ForwardedByHospital bool                `json:"forwardedByHospital"`
	Medicines           []TreatmentMedicine `json:"medicines"`
	Illnesses           []Illness           `json:"illnesses"`
	CreatedAt           time.Time           `json:"createdAt"`
}

// MedicinesUsed totals the units dispensed.
func (t Treatment) MedicinesUsed() int {
	n := 0
	for _, m := range t.Medicines {
		n += m.Count
	}
	return n
}
