// File: codes.go
// Title: Error Code Definitions
// Description: Standardized error codes for infrastructure failures.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-18

package error

// Code represents a structured error code for categorizing errors
type Code string

const (
	// Generic codes
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInvalidInput Code = "INVALID_INPUT"

	// Configuration
	CodeConfigNotFound Code = "CONFIG_NOT_FOUND"
	CodeConfigInvalid  Code = "CONFIG_INVALID"

	// Service and network
	CodeServiceUnavailable    Code = "SERVICE_UNAVAILABLE"
	CodeConnectionFailed      Code = "CONNECTION_FAILED"
	CodeServiceInitialization Code = "SERVICE_INITIALIZATION"
	CodeExternalServiceError  Code = "EXTERNAL_SERVICE_ERROR"
)

// String returns the code as string
func (c Code) String() string {
	return string(c)
}

// IsValid reports whether c is one of the defined codes
func (c Code) IsValid() bool {
	switch c {
	case CodeUnknown, CodeInternal, CodeNotFound, CodeInvalidInput,
		CodeConfigNotFound, CodeConfigInvalid,
		CodeServiceUnavailable, CodeConnectionFailed,
		CodeServiceInitialization, CodeExternalServiceError:
		return true
	}
	return false
}
