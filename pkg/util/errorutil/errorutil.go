package errorutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DomainError standardizes application errors on both sides of the wire.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// errorBody matches both {"error":{"code","message"}} and the flat {"message"} shape.
type errorBody struct {
	Message string `json:"message"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// FromResponse builds a DomainError for a non-2xx backend reply.
func FromResponse(status int, body []byte) *DomainError {
	de := &DomainError{
		Code:       codeForStatus(status),
		Message:    http.StatusText(status),
		HTTPStatus: status,
	}
	if de.Message == "" {
		de.Message = fmt.Sprintf("status %d", status)
	}

	var parsed errorBody
	if len(body) == 0 || json.Unmarshal(body, &parsed) != nil {
		return de
	}
	if parsed.Error != nil {
		if parsed.Error.Code != "" {
			de.Code = parsed.Error.Code
		}
		if parsed.Error.Message != "" {
			de.Message = parsed.Error.Message
		}
		de.Details = parsed.Error.Details
	} else if parsed.Message != "" {
		de.Message = parsed.Message
	}
	return de
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var de *DomainError
	if errors.As(err, &de) {
		return de.HTTPStatus
	}
	return 0
}

// UserMessage returns the single human-readable message a form should display:
// the message of the deepest DomainError in the chain, or err's own text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg, _ := deepestMessage(err, 0)
	if msg == "" {
		msg = err.Error()
	}
	return strings.TrimSpace(msg)
}

// deepestMessage walks err's wrap tree, both single and joined, and returns the
// message of the DomainError found at the greatest depth.
func deepestMessage(err error, depth int) (string, int) {
	if err == nil {
		return "", -1
	}
	best, bestDepth := "", -1
	if de, ok := err.(*DomainError); ok && de.Message != "" {
		best, bestDepth = de.Message, depth
	}
	var children []error
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		children = []error{u.Unwrap()}
	case interface{ Unwrap() []error }:
		children = u.Unwrap()
	}
	for _, child := range children {
		if m, d := deepestMessage(child, depth+1); d > bestDepth {
			best, bestDepth = m, d
		}
	}
	return best, bestDepth
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	}
	if status >= 500 {
		return "UPSTREAM_ERROR"
	}
	return "HTTP_ERROR"
}
