package cookies

import "time"

// CookieValue is what a cookie source reports for one name: either a bare
// string or a structured record with attributes.
type CookieValue interface {
	cookieValue()
}

// PlainValue is a bare cookie value.
type PlainValue string

// StructuredValue is a cookie value with its attributes.
type StructuredValue struct {
	Value   string
	Path    string
	Domain  string
	Expires time.Time
}

func (PlainValue) cookieValue()      {}
func (StructuredValue) cookieValue() {}

// Normalize resolves any CookieValue to its plain string. Nil yields "".
func Normalize(v CookieValue) string {
	switch val := v.(type) {
	case PlainValue:
		return string(val)
	case StructuredValue:
		return val.Value
	default:
		return ""
	}
}
