// Package outcome defines the typed rejection vocabulary shared by every
// verification gate. Callers branch on Kind; only transient kinds are worth
// retrying.
package outcome

import (
	"errors"
	"strings"
)

// Kind identifies why a request was refused.
type Kind string

const (
	KindInvalidInput        Kind = "INVALID_INPUT"
	KindNotFound            Kind = "NOT_FOUND"
	KindIneligible          Kind = "INELIGIBLE"
	KindAlreadyCast         Kind = "ALREADY_CAST"
	KindNoActiveCode        Kind = "NO_ACTIVE_CODE"
	KindExpired             Kind = "OTP_EXPIRED"
	KindMismatch            Kind = "OTP_MISMATCH"
	KindSpoofDetected       Kind = "SPOOF_DETECTED"
	KindFaceMismatch        Kind = "FACE_MISMATCH"
	KindFaceNotDetected     Kind = "FACE_NOT_DETECTED"
	KindOracleUnavailable   Kind = "ORACLE_UNAVAILABLE"
	KindRegistryUnavailable Kind = "REGISTRY_UNAVAILABLE"
)

// Class groups kinds for reporting.
type Class string

const (
	ClassInput       Class = "input"
	ClassEligibility Class = "eligibility"
	ClassState       Class = "state"
	ClassBiometric   Class = "biometric"
	ClassTransient   Class = "transient"
)

// Class returns the group the kind belongs to.
func (k Kind) Class() Class {
	switch k {
	case KindInvalidInput:
		return ClassInput
	case KindNotFound, KindIneligible:
		return ClassEligibility
	case KindAlreadyCast, KindNoActiveCode, KindExpired, KindMismatch:
		return ClassState
	case KindSpoofDetected, KindFaceMismatch, KindFaceNotDetected:
		return ClassBiometric
	case KindOracleUnavailable, KindRegistryUnavailable:
		return ClassTransient
	default:
		return ClassTransient
	}
}

// Retryable reports whether repeating the same request may succeed.
func (k Kind) Retryable() bool {
	return k.Class() == ClassTransient
}

// Rejection is the error returned by gates. Reason is a human readable
// sentence; Reasons lists every failed check when a gate collects several.
type Rejection struct {
	Kind    Kind
	Reason  string
	Reasons []string
	Err     error
}

func (r *Rejection) Error() string {
	if r == nil {
		return "<nil>"
	}
	msg := r.Reason
	if msg == "" && len(r.Reasons) > 0 {
		msg = strings.Join(r.Reasons, "; ")
	}
	if msg == "" {
		msg = string(r.Kind)
	}
	if r.Err != nil {
		return msg + ": " + r.Err.Error()
	}
	return msg
}

func (r *Rejection) Unwrap() error {
	if r == nil {
		return nil
	}
	return r.Err
}

// Retryable reports whether the rejection is transient.
func (r *Rejection) Retryable() bool {
	return r != nil && r.Kind.Retryable()
}

// Reject builds a rejection with a single reason.
func Reject(kind Kind, reason string) *Rejection {
	return &Rejection{Kind: kind, Reason: reason}
}

// RejectAll builds a rejection that carries every failed check.
func RejectAll(kind Kind, reason string, reasons []string) *Rejection {
	return &Rejection{Kind: kind, Reason: reason, Reasons: append([]string(nil), reasons...)}
}

// Unavailable wraps a dependency failure in a transient rejection.
func Unavailable(kind Kind, reason string, err error) *Rejection {
	return &Rejection{Kind: kind, Reason: reason, Err: err}
}

// As extracts the rejection carried by err.
func As(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) && rej != nil {
		return rej, true
	}
	return nil, false
}

// KindOf returns the kind carried by err, or the empty kind when err is not
// a rejection.
func KindOf(err error) Kind {
	if rej, ok := As(err); ok {
		return rej.Kind
	}
	return ""
}

// Is reports whether err is a rejection of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
