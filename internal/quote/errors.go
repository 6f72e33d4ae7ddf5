package quote

import (
	"fmt"
	"net/http"
)

// Kind classifies a rejected or failed submission.
type Kind int

const (
	RateLimited Kind = iota + 1
	UnauthorizedOrigin
	BadContentType
	MissingField
	FieldTooLong
	InvalidFormat
	TransportFailure
	UnexpectedError
	InvalidBody
)

var kindNames = map[Kind]string{
	RateLimited:        "rate_limited",
	UnauthorizedOrigin: "unauthorized_origin",
	BadContentType:     "bad_content_type",
	MissingField:       "missing_field",
	FieldTooLong:       "field_too_long",
	InvalidFormat:      "invalid_format",
	TransportFailure:   "transport_failure",
	UnexpectedError:    "unexpected_error",
	InvalidBody:        "invalid_body",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Client-facing messages.
const (
	MsgRateLimited        = "Too many requests. Please try again later."
	MsgUnauthorizedOrigin = "Unauthorized origin."
	MsgBadContentType     = "Content-Type must be application/json."
	MsgMissingField       = "All fields are required."
	MsgInvalidEmail       = "Invalid email format."
	MsgInvalidPhone       = "Invalid phone number format."
	MsgTransportFailure   = "Failed to send email"
	MsgUnexpected         = "Internal server error"
	MsgInvalidBody        = "Invalid JSON body."
)

// Error is a terminal pipeline failure. Field and Limit are set only for
// validation errors.
type Error struct {
	Kind    Kind
	Field   string
	Limit   int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Status maps the error kind to its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case RateLimited:
		return http.StatusTooManyRequests
	case UnauthorizedOrigin:
		return http.StatusForbidden
	case BadContentType, InvalidBody, MissingField, FieldTooLong, InvalidFormat:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewError builds an Error without field detail.
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}
