package services

import (
	"context"
	"errors"
)

var (
	ErrUnauthenticated     = errors.New("authentication required")
	ErrMissingField        = errors.New("missing required field")
	ErrMalformedURL        = errors.New("malformed trend url")
	ErrDuplicateSubmission = errors.New("trend already submitted")
	ErrDuplicateVote       = errors.New("you already voted on this trend")
	ErrVoteRejected        = errors.New("vote rejected")
	ErrDailyLimitReached   = errors.New("daily trend limit reached for your tier")
	ErrRateLimitReached    = errors.New("validation limit reached, try again later")
	ErrBackendUnavailable  = errors.New("backend unavailable")
	ErrSessionInactive     = errors.New("no active scroll session")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("earning is already settled")
)

// ErrorKind groups errors by how the caller should react to them.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindConflict
	KindAuthorization
	KindQuota
	KindBackend
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	case KindQuota:
		return "quota"
	case KindBackend:
		return "backend"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Classify maps any error returned by this package onto an ErrorKind.
// Deadline errors count as backend failures.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrMalformedURL), errors.Is(err, ErrSessionInactive),
		errors.Is(err, ErrVoteRejected):
		return KindValidation
	case errors.Is(err, ErrDuplicateSubmission), errors.Is(err, ErrDuplicateVote), errors.Is(err, ErrInvalidTransition):
		return KindConflict
	case errors.Is(err, ErrUnauthenticated):
		return KindAuthorization
	case errors.Is(err, ErrDailyLimitReached), errors.Is(err, ErrRateLimitReached):
		return KindQuota
	case errors.Is(err, ErrBackendUnavailable), errors.Is(err, context.DeadlineExceeded):
		return KindBackend
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
