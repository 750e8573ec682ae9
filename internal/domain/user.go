package domain

import "time"

// UserType mirrors the backend's user_type column.
type UserType string

const (
	UserTypeStudent  UserType = "STUDENT"
	UserTypeStaff    UserType = "STAFF"
	UserTypeDean     UserType = "DEAN"
	UserTypeNonStaff UserType = "NON-STAFF"
	UserTypeHA       UserType = "HA"
)

// Gender values accepted by the backend.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
	GenderOthers Gender = "OTHERS"
)

// User is the devserver's persisted account.
type User struct {
	ID            string
	Name          string
	Email         string
	Gender        Gender
	UserType      UserType
	ContactNumber string
	StudentID     string
	PasswordHash  string
	MFAEnabled    bool
	MFACodeHash   string
	IsAvailable   bool
	BloodType     string
	DepartmentID  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SessionUser is the profile returned by the "current session" endpoint.
// Field names follow the backend's JSON.
type SessionUser struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"sessionId,omitempty"`
	StudentID       string     `json:"student_id,omitempty"`
	UserID          string     `json:"userId,omitempty"`
	Name            string     `json:"name"`
	Gender          Gender     `json:"gender,omitempty"`
	Email           string     `json:"email"`
	DepartmentID    string     `json:"department_id,omitempty"`
	StdYear         string     `json:"std_year,omitempty"`
	UserType        UserType   `json:"userType"`
	BloodType       string     `json:"blood_type,omitempty"`
	ContactNumber   string     `json:"contact_number,omitempty"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
	ExpiredAt       *time.Time `json:"expiredAt,omitempty"`
	IsAvailable     bool       `json:"is_available"`
	IsOnLeave       bool       `json:"is_onLeave"`
	HAContactNumber string     `json:"HA_Contact_Number,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
}

// BloodTypes lists the values accepted for a profile's blood type.
var BloodTypes = []string{"A+", "A-", "B+", "B-", "O+", "O-", "AB+", "AB-"}

// ValidBloodType reports whether s is one of BloodTypes.
func ValidBloodType(s string) bool {
	for _, bt := range BloodTypes {
		if bt == s {
			return true
		}
	}
	return false
}

// ValidGender reports whether g is a gender the backend accepts.
func ValidGender(g Gender) bool {
	return g == GenderMale || g == GenderFemale || g == GenderOthers
}

// ProfileUpdate is the body of PUT /user/update. Empty optional fields leave
// the stored value unchanged.
type ProfileUpdate struct {
	Name          string `json:"name"`
	Gender        Gender `json:"gender"`
	ContactNumber string `json:"contact_number"`
	BloodType     string `json:"blood_type,omitempty"`
	DepartmentID  string `json:"department_id,omitempty"`
}

// Programme is an academic programme a student can belong to.
type Programme struct {
	ID   string `json:"programme_id"`
	Name string `json:"programme_name"`
}
