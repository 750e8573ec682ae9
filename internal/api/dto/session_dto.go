package dto

import "github.com/ehealth-cst/ehealth-client/internal/domain"

// SessionsResponse is the body of GET /session/all.
type SessionsResponse struct {
	Message  string           `json:"message"`
	Sessions []domain.Session `json:"sessions"`
}

// DeleteSessionsResponse reports how many sessions were revoked.
type DeleteSessionsResponse struct {
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
}

// FeedsResponse is the body of GET /feed/.
type FeedsResponse struct {
	Message string        `json:"message"`
	Feeds   []domain.Feed `json:"feeds"`
}

// AvailabilityResponse is the body of PUT /ha/toggle-availability.
type AvailabilityResponse struct {
	Message     string `json:"message"`
	IsAvailable bool   `json:"is_available"`
}

// ProfileResponse is the body of PUT /user/update.
type ProfileResponse struct {
	Message string              `json:"message"`
	User    *domain.SessionUser `json:"user"`
}

// ProgrammesResponse is the body of GET /user/programmes.
type ProgrammesResponse struct {
	Message     string             `json:"message"`
	Departments []domain.Programme `json:"departments"`
}

// TreatmentsResponse is the body of GET /treatment/patient/:id.
type TreatmentsResponse struct {
	Message    string             `json:"message"`
	Treatments []domain.Treatment `json:"treatments"`
}

// LeaveResponse answers the /ha leave routes.
type LeaveResponse struct {
	Message string        `json:"message"`
	Leave   *domain.Leave `json:"leave"`
}
