// Package ehealth wraps the backend endpoints the command-line client uses
// beyond the session lifecycle.
package ehealth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ehealth-cst/ehealth-client/internal/apiclient"
	"github.com/ehealth-cst/ehealth-client/internal/domain"
)

// Doer sends a request, typically session.Controller.Do.
type Doer interface {
	Do(ctx context.Context, req *apiclient.Request) (*apiclient.Response, error)
}

// SessionsResponse is the body of GET /session/all.
type SessionsResponse struct {
	Message  string           `json:"message"`
	Sessions []domain.Session `json:"sessions"`
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

// UserInvalidator is implemented by Doers that cache the current user, such
// as session.Controller. Writes that change the profile invalidate it.
type UserInvalidator interface {
	InvalidateUser(ctx context.Context) error
}

// TreatmentsResponse is the body of GET /treatment/patient/:id.
type TreatmentsResponse struct {
	Message    string             `json:"message"`
	Treatments []domain.Treatment `json:"treatments"`
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

// LeaveResponse answers the /ha leave endpoints.
type LeaveResponse struct {
	Message string        `json:"message"`
	Leave   *domain.Leave `json:"leave"`
}

// Client calls the backend through an authenticated Doer.
type Client struct {
	doer Doer
}

// New wraps doer.
func New(doer Doer) *Client {
	return &Client{doer: doer}
}

// ListSessions returns every active session of the current user.
func (c *Client) ListSessions(ctx context.Context) ([]domain.Session, error) {
	var out SessionsResponse
	if err := c.call(ctx, http.MethodGet, "/session/all", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// DeleteSession revokes one session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("session id is required")
	}
	return c.call(ctx, http.MethodDelete, "/session/"+url.PathEscape(id), nil, nil)
}

// DeleteAllSessions revokes every session but the current one.
func (c *Client) DeleteAllSessions(ctx context.Context) error {
	return c.call(ctx, http.MethodDelete, "/session/delete/all", nil, nil)
}

// FetchFeeds returns the health feed.
func (c *Client) FetchFeeds(ctx context.Context) ([]domain.Feed, error) {
	var out FeedsResponse
	if err := c.call(ctx, http.MethodGet, "/feed/", nil, &out); err != nil {
		return nil, err
	}
	return out.Feeds, nil
}

// ToggleAvailability flips a health assistant's availability.
func (c *Client) ToggleAvailability(ctx context.Context) (AvailabilityResponse, error) {
	var out AvailabilityResponse
	err := c.call(ctx, http.MethodPut, "/ha/toggle-availability", struct{}{}, &out)
	return out, err
}

// FetchTreatments returns a patient's treatment history, newest first.
func (c *Client) FetchTreatments(ctx context.Context, patientID string) ([]domain.Treatment, error) {
	if patientID == "" {
		return nil, errors.New("patient id is required")
	}
	var out TreatmentsResponse
	if err := c.call(ctx, http.MethodGet, "/treatment/patient/"+url.PathEscape(patientID), nil, &out); err != nil {
		return nil, err
	}
	return out.Treatments, nil
}

// UpdateProfile saves the caller's profile and invalidates the cached user.
func (c *Client) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.SessionUser, error) {
	var out ProfileResponse
	if err := c.call(ctx, http.MethodPut, "/user/update", update, &out); err != nil {
		return nil, err
	}
	c.invalidateUser(ctx)
	return out.User, nil
}

// FetchProgrammes lists the programmes a profile can name as its department.
func (c *Client) FetchProgrammes(ctx context.Context) ([]domain.Programme, error) {
	var out ProgrammesResponse
	if err := c.call(ctx, http.MethodGet, "/user/programmes", nil, &out); err != nil {
		return nil, err
	}
	return out.Departments, nil
}

// SetLeave records leave for the calling health assistant.
func (c *Client) SetLeave(ctx context.Context, req domain.LeaveRequest) (*domain.Leave, error) {
	var out LeaveResponse
	if err := c.call(ctx, http.MethodPost, "/ha/set-leave", req, &out); err != nil {
		return nil, err
	}
	c.invalidateUser(ctx)
	return out.Leave, nil
}

// FetchLeave returns the caller's open leave.
func (c *Client) FetchLeave(ctx context.Context) (*domain.Leave, error) {
	var out LeaveResponse
	if err := c.call(ctx, http.MethodGet, "/ha/get-leave", nil, &out); err != nil {
		return nil, err
	}
	return out.Leave, nil
}

// CancelLeave ends the caller's open leave.
func (c *Client) CancelLeave(ctx context.Context) (*domain.Leave, error) {
	var out LeaveResponse
	if err := c.call(ctx, http.MethodPut, "/ha/cancel-leave", struct{}{}, &out); err != nil {
		return nil, err
	}
	c.invalidateUser(ctx)
	return out.Leave, nil
}

// invalidateUser ignores refetch errors: the write already succeeded and a
// failed refetch is reflected in the session state.
func (c *Client) invalidateUser(ctx context.Context) {
	if inv, ok := c.doer.(UserInvalidator); ok {
		_ = inv.InvalidateUser(ctx)
	}
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.doer.Do(ctx, &apiclient.Request{Method: method, Path: path, Body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
