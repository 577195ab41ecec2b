// Package apperror defines the domain errors shared by the stores, services
// and the HTTP layer.
//
// Every error carries one of the sentinels below so callers can branch with
// errors.Is, and an *AppError so they can read the human message and the
// field or auth code with errors.As.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrEvaluation   = errors.New("evaluation error")
)

// Auth codes distinguish the AuthError variants. They travel in AppError.Code.
const (
	CodeEmailNotFound          = "email_not_found"
	CodeInvalidPassword        = "invalid_password"
	CodeEmailAlreadyRegistered = "email_already_registered"
)

type AppError struct {
	Err     error  // sentinel
	Message string // human-readable error message
	Field   string // optional: field causing the error
	Code    string // optional: auth error variant
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %v", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(field, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
		Field:   field,
	}
}

// Unauthorized reports a missing or stale session.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// EmailNotFound is returned by authentication when no account has the email.
func EmailNotFound() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: "Email not found",
		Field:   "email",
		Code:    CodeEmailNotFound,
	}
}

// InvalidPassword is returned when a password does not match the stored digest.
func InvalidPassword(field string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: "Incorrect password",
		Field:   field,
		Code:    CodeInvalidPassword,
	}
}

// EmailAlreadyRegistered is returned when an email is taken by another account.
func EmailAlreadyRegistered() *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: "This email is already registered",
		Field:   "email",
		Code:    CodeEmailAlreadyRegistered,
	}
}

func EvaluationFailed(expression string, cause error) *AppError {
	msg := fmt.Sprintf("cannot evaluate %q", expression)
	if cause != nil {
		msg = fmt.Sprintf("cannot evaluate %q: %v", expression, cause)
	}
	return &AppError{
		Err:     ErrEvaluation,
		Message: msg,
	}
}

// HasCode reports whether err is an *AppError carrying the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
