package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers and transports.
type Kind int

const (
	KindFatal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindInvalidState
	KindInsufficientFunds
	KindResourceUnavailable
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindInsufficientFunds:
		return "INSUFFICIENT_FUNDS"
	case KindResourceUnavailable:
		return "RESOURCE_UNAVAILABLE"
	case KindConflict:
		return "CONFLICT"
	default:
		return "FATAL"
	}
}

// Error is a classified domain error. Sentinels below are compared with errors.Is;
// a specific sentinel also matches the generic sentinel of its kind.
type Error struct {
	Kind    Kind
	Code    string
	Msg     string
	generic bool
}

func (e *Error) Error() string { return e.Msg }

// Is reports whether target is e itself or the generic sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e == t {
		return true
	}
	return t.generic && t.Kind == e.Kind
}

func newKind(k Kind, msg string) *Error {
	return &Error{Kind: k, Code: k.String(), Msg: msg, generic: true}
}

// New creates a coded sentinel of the given kind.
func New(k Kind, code, msg string) *Error {
	return &Error{Kind: k, Code: code, Msg: msg}
}

// Generic sentinels, one per kind.
var (
	ErrValidation          = newKind(KindValidation, "validation failed")
	ErrNotFound            = newKind(KindNotFound, "not found")
	ErrUnauthorized        = newKind(KindUnauthorized, "operation not allowed")
	ErrInvalidState        = newKind(KindInvalidState, "invalid state")
	ErrInsufficientFunds   = newKind(KindInsufficientFunds, "insufficient funds")
	ErrResourceUnavailable = newKind(KindResourceUnavailable, "resource unavailable")
	ErrConflict            = newKind(KindConflict, "concurrent update conflict, retry")
	ErrFatal               = newKind(KindFatal, "internal error")
)

// Coded sentinels.
var (
	ErrNotOwner              = New(KindUnauthorized, "NOT_OWNER", "caller does not own this resource")
	ErrNotParticipant        = New(KindUnauthorized, "NOT_PARTICIPANT", "caller is not a participant")
	ErrForbiddenRole         = New(KindUnauthorized, "FORBIDDEN_ROLE", "caller lacks the required role")
	ErrTierRequired          = New(KindUnauthorized, "TIER_REQUIRED", "member tier too low for this operation")
	ErrSelfAccept            = New(KindValidation, "SELF_ACCEPT", "cannot accept your own challenge")
	ErrTargetMismatch        = New(KindUnauthorized, "TARGET_MISMATCH", "challenge is addressed to another member")
	ErrInvalidWinner         = New(KindValidation, "INVALID_WINNER", "winner must be a participant")
	ErrInvalidStake          = New(KindValidation, "INVALID_STAKE", "stake must be positive")
	ErrInvalidInterval       = New(KindValidation, "INVALID_INTERVAL", "end must be after start")
	ErrExpired               = New(KindInvalidState, "EXPIRED", "hold has expired")
	ErrAlreadyProcessed      = New(KindInvalidState, "ALREADY_PROCESSED", "entry has already been processed")
	ErrAlreadyJoined         = New(KindInvalidState, "ALREADY_JOINED", "member already joined")
	ErrNotEnoughParticipants = New(KindInvalidState, "NOT_ENOUGH_PARTICIPANTS", "at least two participants are required")
	ErrScheduleExists        = New(KindInvalidState, "SCHEDULE_EXISTS", "schedule already generated")
	ErrNoSlotsAvailable      = New(KindResourceUnavailable, "NO_SLOTS_AVAILABLE", "no free slot in the requested series")
	ErrSlotTaken             = New(KindResourceUnavailable, "SLOT_TAKEN", "slot overlaps an existing reservation")
	ErrCourtInactive         = New(KindValidation, "COURT_INACTIVE", "court is not active")
	ErrRegistrationClosed    = New(KindInvalidState, "REGISTRATION_CLOSED", "tournament is not accepting entries")
	ErrMatchAlreadyFinished  = New(KindInvalidState, "MATCH_FINISHED", "match already has a result")
)

// KindOf classifies err. Unclassified errors are Fatal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// CodeOf returns the code of the first classified error in err's chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return KindFatal.String()
}

// Retryable reports whether the caller may retry the whole operation.
func Retryable(err error) bool {
	return KindOf(err) == KindConflict
}

// Validationf wraps ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted detail.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidStatef wraps ErrInvalidState with a formatted detail.
func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
