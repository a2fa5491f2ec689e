package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so handlers can pick an intended status without
// inspecting message text
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindMalformedPayload
	KindPatientNotFound
	KindDuplicatePolicy
	KindBookingConflict
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_failure"
	case KindMalformedPayload:
		return "malformed_payload"
	case KindPatientNotFound:
		return "patient_not_found"
	case KindDuplicatePolicy:
		return "duplicate_policy"
	case KindBookingConflict:
		return "booking_conflict"
	case KindStore:
		return "store_failure"
	default:
		return "unknown"
	}
}

// Messages surfaced to the caller verbatim
const (
	MsgPatientNotFound      = "Patient not found"
	MsgUserNotFound         = "User not found"
	MsgDuplicatePolicy      = "Policy number already in use"
	MsgAppointmentExists    = "Appointment already exists"
	MsgBirthDateRequired    = "Day, month and year are required for birth date"
	MsgMalformedPayload     = "webhook payload is missing sessionInfo.parameters"
	MsgValidationFailed     = "input validation failed"
	MsgInternalError        = "Internal server error"
	MsgTooManyRequests      = "Too many requests from this IP, please try again later"
	MsgStoreUnavailable     = "database connection unavailable"
	MsgPolicyUniqueViolated = "policy number unique constraint violated"
)

// ErrNotFound is returned by stores when no record matches
var ErrNotFound = errors.New("record not found")

// Error is the tagged failure shared by services and handlers
type Error struct {
	Kind      Kind
	Msg       string
	BookingID string
	Err       error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a tagged error with a caller-facing message
func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap tags err with kind, keeping its text as the message
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// StoreError tags a storage failure with the operation that failed
func StoreError(op string, err error) *Error {
	return &Error{Kind: KindStore, Err: fmt.Errorf("%s: %w", op, err)}
}

// BookingConflict reports that bookingID already holds the patient's confirmed slot
func BookingConflict(bookingID string) *Error {
	return &Error{Kind: KindBookingConflict, Msg: MsgAppointmentExists, BookingID: bookingID}
}

// KindOf returns the kind of the first tagged error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ConflictingBooking returns the booking id carried by a booking conflict
func ConflictingBooking(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindBookingConflict {
		return e.BookingID, true
	}
	return "", false
}
