package services

import (
	"errors"
	"net/http"
)

// Kind classifies a service failure so the HTTP layer can choose a status.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindInvalidCredentials
	KindAuth
	KindForbidden
	KindNotFound
	KindInvalidState
	KindCapacity
	KindDuplicate
	KindPaymentRequired
)

// Status maps the kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindInvalidCredentials, KindInvalidState, KindCapacity:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden, KindPaymentRequired:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a user-facing failure. Msg is safe to return to clients.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func validation(msg string) error { return newError(KindValidation, msg) }
func notFound(msg string) error   { return newError(KindNotFound, msg) }

var (
	ErrContestNotFound   = newError(KindNotFound, "Contest not found")
	ErrUserNotFound      = newError(KindNotFound, "User not found")
	ErrPaymentNotFound   = newError(KindNotFound, "Payment not found")
	ErrContestNotOpen    = newError(KindInvalidState, "Contest already started or finished")
	ErrContestFull       = newError(KindCapacity, "Contest is full")
	ErrAlreadyJoined     = newError(KindDuplicate, "Already joined this contest")
	ErrPaymentRequired   = newError(KindPaymentRequired, "Payment required before joining this contest")
	ErrUTRUsed           = newError(KindDuplicate, "UTR already used")
	ErrPaymentExists     = newError(KindDuplicate, "Payment already submitted for this contest")
	ErrInvalidStatus     = newError(KindValidation, "Invalid status")
	ErrNotReviewable     = newError(KindInvalidState, "Only manual payment proofs can be reviewed")
	ErrInvalidCreds      = newError(KindInvalidCredentials, "Invalid credentials")
	ErrInvalidAdminCreds = newError(KindInvalidCredentials, "Invalid admin login")
	ErrUserExists        = newError(KindDuplicate, "User already exists")
	ErrEmailExists       = newError(KindDuplicate, "Email already exists")
	ErrResetToken        = newError(KindValidation, "Invalid or expired token")
	ErrInvalidSignature  = newError(KindValidation, "Invalid signature")
	ErrContestCompleted  = newError(KindInvalidState, "Contest already completed")
	ErrNotParticipant    = newError(KindForbidden, "You have not joined this contest")
	ErrForbidden         = newError(KindForbidden, "Access denied")
)

// KindOf returns the kind of err, or 0 when err is not a service error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
