// Package apperr defines the error kinds raised by the auth core and the
// services built on it. Kinds travel as samber/oops codes; only the HTTP
// layer turns a kind into a status code.
package apperr

import "github.com/samber/oops"

// Kind identifies a failure class.
type Kind string

const (
	MissingAuthorization Kind = "MISSING_AUTHORIZATION"
	MalformedToken       Kind = "MALFORMED_TOKEN"
	PrincipalNotFound    Kind = "PRINCIPAL_NOT_FOUND"
	WrongPassword        Kind = "WRONG_PASSWORD"
	InsufficientRole     Kind = "INSUFFICIENT_ROLE"
	ForbiddenOwnership   Kind = "FORBIDDEN_OWNERSHIP"
	NotFound             Kind = "NOT_FOUND"
	RefreshTokenInvalid  Kind = "REFRESH_TOKEN_INVALID"
	WeakPassword         Kind = "WEAK_PASSWORD"
	LeakedPassword       Kind = "LEAKED_PASSWORD"
	DuplicateUsername    Kind = "DUPLICATE_USERNAME"
	DuplicateEmail       Kind = "DUPLICATE_EMAIL"
	InvalidRoleValue     Kind = "INVALID_ROLE_VALUE"
	InvalidInput         Kind = "INVALID_INPUT"
	AccountDeactivated   Kind = "ACCOUNT_DEACTIVATED"
	Internal             Kind = "INTERNAL"
)

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return oops.Code(string(kind)).Errorf(format, args...)
}

// With returns an oops builder preset with the kind, for callers that want
// to attach context before producing the error.
func With(kind Kind, kv ...any) oops.OopsErrorBuilder {
	return oops.Code(string(kind)).With(kv...)
}

// Wrap converts an infrastructure error into an Internal error tagged with
// the failing operation. Errors that already carry a kind pass through.
func Wrap(err error, operation string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != Internal {
		return err
	}
	return oops.Code(string(Internal)).With("operation", operation).Wrap(err)
}

// KindOf reports the kind carried by err. Errors without a kind are Internal.
// A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return Internal
	}
	code, _ := any(oopsErr.Code()).(string)
	if code == "" {
		return Internal
	}
	return Kind(code)
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
