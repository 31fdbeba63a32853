package identity

import (
	"errors"
	"fmt"
)

// ErrorCode identifies an authentication failure
type ErrorCode string

const (
	CodeUserNotFound    ErrorCode = "auth/user-not-found"
	CodeWrongPassword   ErrorCode = "auth/wrong-password"
	CodeTooManyRequests ErrorCode = "auth/too-many-requests"
	CodeEmailInUse      ErrorCode = "auth/email-already-in-use"
	CodeInvalidInput    ErrorCode = "auth/invalid-input"
	CodeOther           ErrorCode = "auth/other"
)

// AuthError is returned by sign-in and sign-up
type AuthError struct {
	Code   ErrorCode
	Detail string // user-facing detail for CodeInvalidInput
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	}
	return string(e.Code)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Message returns the message shown to the user
func (e *AuthError) Message() string {
	switch e.Code {
	case CodeUserNotFound:
		return "No user found with this email."
	case CodeWrongPassword:
		return "Incorrect password."
	case CodeTooManyRequests:
		return "Too many failed attempts. Please try again later."
	case CodeEmailInUse:
		return "An account with this email already exists."
	case CodeInvalidInput:
		return e.Detail
	default:
		return "Invalid Ticket. Please check your credentials."
	}
}

// CodeOf returns the code of an AuthError, or CodeOther
func CodeOf(err error) ErrorCode {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return CodeOther
}

func invalidInput(detail string) *AuthError {
	return &AuthError{Code: CodeInvalidInput, Detail: detail}
}
