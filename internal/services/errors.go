package services

// Custom errors

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

// UnauthenticatedError means the session does not resolve to a stored user.
type UnauthenticatedError struct{ Message string }

func (e *UnauthenticatedError) Error() string { return e.Message }

// UnauthorizedError means the resolved user does not match the session identity,
// or the supplied credentials are wrong.
type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

const (
	msgUserNotRegistered  = "User not registered OR Token malfunctioned"
	msgPermissionMismatch = "Permissions didn't match"
)
