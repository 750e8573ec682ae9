package session

import (
	"errors"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
)

// State is the controller's position in the login lifecycle.
type State int

const (
	// StateUnknown is the initial state, before local storage was checked.
	StateUnknown State = iota
	StateUnauthenticated
	StateAuthenticating
	StateAwaitingMFA
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAwaitingMFA:
		return "awaiting_mfa"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is the externally observable session state.
type Snapshot struct {
	State           State
	User            *domain.SessionUser
	IsAuthenticated bool
	IsLoading       bool
	// Err is the error of the most recent failed operation.
	Err error
}

// ErrLoginFailed wraps every login or MFA verification failure.
var ErrLoginFailed = errors.New("login failed")

// MFARequiredError signals that login needs a second factor. It is a control
// flow value: callers branch on it instead of showing it.
type MFARequiredError struct {
	Email string
}

func (e *MFARequiredError) Error() string { return "MFA_REQUIRED" }

// IsMFARequired reports whether err carries the MFA signal.
func IsMFARequired(err error) bool {
	var mfa *MFARequiredError
	return errors.As(err, &mfa)
}

// MFAEmail returns the email carried by an MFA signal.
func MFAEmail(err error) (string, bool) {
	var mfa *MFARequiredError
	if !errors.As(err, &mfa) {
		return "", false
	}
	return mfa.Email, true
}
