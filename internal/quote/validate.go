package quote

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/caleslawncare/quote-gateway/internal/model"
)

// Field limits, checked in this order.
var fieldLimits = []struct {
	name  string
	label string
	max   int
	get   func(model.QuoteRequest) string
}{
	{"firstName", "First name", 50, func(q model.QuoteRequest) string { return q.FirstName }},
	{"lastName", "Last name", 50, func(q model.QuoteRequest) string { return q.LastName }},
	{"email", "Email", 100, func(q model.QuoteRequest) string { return q.Email }},
	{"phone", "Phone number", 20, func(q model.QuoteRequest) string { return q.Phone }},
	{"service", "Service", 100, func(q model.QuoteRequest) string { return q.Service }},
	{"message", "Message", 1000, func(q model.QuoteRequest) string { return q.Message }},
}

var (
	emailRe = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+" +
		`@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?` +
		`(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

	// (309) 333-7599, 309-333-7599, 309.333.7599, +1 309 333 7599
	phoneRe = regexp.MustCompile(`^[\+]?[1]?[-.\s]?[(]?[0-9]{3}[)]?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}$`)
)

// Validate runs the required, length and format checks in order and returns
// the first failure, or nil.
func Validate(q model.QuoteRequest) *Error {
	for _, f := range fieldLimits {
		if f.get(q) == "" {
			return &Error{Kind: MissingField, Field: f.name, Message: MsgMissingField}
		}
	}

	for _, f := range fieldLimits {
		if utf8.RuneCountInString(f.get(q)) > f.max {
			return &Error{
				Kind:    FieldTooLong,
				Field:   f.name,
				Limit:   f.max,
				Message: fmt.Sprintf("%s cannot exceed %d characters.", f.label, f.max),
			}
		}
	}

	if !ValidEmail(q.Email) {
		return &Error{Kind: InvalidFormat, Field: "email", Message: MsgInvalidEmail}
	}
	if !ValidPhone(q.Phone) {
		return &Error{Kind: InvalidFormat, Field: "phone", Message: MsgInvalidPhone}
	}

	return nil
}

// ValidEmail reports whether s looks like a deliverable address. The final
// domain label must be at least two characters.
func ValidEmail(s string) bool {
	if !emailRe.MatchString(s) {
		return false
	}
	tld := s[strings.LastIndexByte(s, '.')+1:]
	return len(tld) >= 2
}

// ValidPhone reports whether s is a North American number in one of the
// accepted layouts.
func ValidPhone(s string) bool {
	return phoneRe.MatchString(s)
}
