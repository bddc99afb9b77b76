package apperrors

import "errors"

// Error kinds. Every error returned by the services wraps exactly one of these
// so callers can classify failures with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrExternalService    = errors.New("external service error")
	ErrNotification       = errors.New("notification error")
)

// Slot errors
var (
	ErrSlotNotFound         = New(ErrNotFound, "slot not found")
	ErrAlreadyRegistered    = New(ErrConflict, "user is already registered in this slot")
	ErrSlotFull             = New(ErrConflict, "slot is full")
	ErrDuplicateSlot        = New(ErrConflict, "a slot already exists for this date and start time")
	ErrSlotClosed           = New(ErrConflict, "slot is not open for registration")
	ErrRegistrationNotFound = New(ErrNotFound, "user is not registered in this slot")
	ErrSlotHasRegistrations = New(ErrPreconditionFailed, "slot has registered users")
)

// Schedule config errors
var (
	ErrConfigNotFound      = New(ErrNotFound, "schedule config not found")
	ErrNoActiveConfig      = New(ErrNotFound, "no active schedule config")
	ErrDuplicateConfigName = New(ErrConflict, "a schedule config with this name already exists")
	ErrSoleActiveConfig    = New(ErrPreconditionFailed, "cannot delete the only active schedule config")
)

// User errors
var (
	ErrUserNotFound           = New(ErrNotFound, "user not found")
	ErrDuplicateEmail         = New(ErrConflict, "a user with this email already exists")
	ErrUserHasSlot            = New(ErrConflict, "user is already booked into another slot")
	ErrNotAttended            = New(ErrPreconditionFailed, "user must have attended at least one meeting")
	ErrInvalidStateTransition = New(ErrPreconditionFailed, "invalid user state transition")
)

// Attendance errors
var (
	ErrAttendanceNotFound = New(ErrNotFound, "attendance record not found")
)

// Google integration errors
var (
	ErrCredentialsNotFound    = New(ErrNotFound, "no google credentials stored")
	ErrCredentialsUnavailable = New(ErrExternalService, "no google credentials configured")
	ErrRefreshFailed          = New(ErrExternalService, "failed to refresh google access token")
	ErrMeetingCreationFailed  = New(ErrExternalService, "meeting provider returned no video entry point")
)

// Error is an application error of a given kind with an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

// New creates an Error of the given kind
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind carrying the underlying cause
func Wrap(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation is shorthand for a validation error with a message
func Validation(message string) *Error {
	return New(ErrValidation, message)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return "unknown error"
}

// Unwrap exposes both the kind and the cause to errors.Is/errors.As
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Because returns a copy of a sentinel Error that also carries a cause.
// errors.Is still matches the original sentinel.
func Because(sentinel *Error, err error) error {
	return &wrapped{sentinel: sentinel, err: err}
}

type wrapped struct {
	sentinel *Error
	err      error
}

func (w *wrapped) Error() string {
	return w.sentinel.Error() + ": " + w.err.Error()
}

func (w *wrapped) Unwrap() []error {
	return []error{w.sentinel, w.err}
}

// KindOf returns the kind sentinel an error belongs to, or nil when it is not
// an application error.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrValidation,
		ErrNotFound,
		ErrConflict,
		ErrPreconditionFailed,
		ErrExternalService,
		ErrNotification,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Is reports whether err matches target or any of errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}

	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}
