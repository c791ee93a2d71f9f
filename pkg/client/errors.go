package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNoAnswer is returned when the model response carries no text.
	ErrNoAnswer = errors.New("model returned no answer")
)

// ErrorClass represents a classification of lookup failures.
type ErrorClass string

const (
	// ErrorClassAuth represents a rejected, revoked or leaked API key.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassNotFound represents 404 (unknown model or endpoint).
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassClient represents other 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 quota errors and local cooldowns.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassParse represents a response that could not be decoded.
	ErrorClassParse ErrorClass = "parse"
)

// LookupError represents a failed upstream call with additional context.
type LookupError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lookup %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("lookup %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *LookupError) Unwrap() error {
	return e.Err
}

// classOf extracts the error class from err, defaulting to network for
// transport failures that never produced a LookupError.
func classOf(err error) ErrorClass {
	var le *LookupError
	if errors.As(err, &le) {
		return le.ErrorClass
	}
	return ErrorClassNetwork
}

// IsCredentialError reports whether err means the API key is unusable.
func IsCredentialError(err error) bool {
	return err != nil && classOf(err) == ErrorClassAuth
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// auth, client, not_found and parse failures repeat identically
		return false
	}
}

// classifyStatus maps an upstream error response to an error class. The
// message is the upstream error text, checked for key problems that some
// endpoints report with a 400.
func classifyStatus(statusCode int, message string) ErrorClass {
	if credentialMessage(message) {
		return ErrorClassAuth
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrorClassAuth
	case statusCode == http.StatusNotFound:
		return ErrorClassNotFound
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

func credentialMessage(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "leaked") ||
		strings.Contains(m, "api key not valid") ||
		strings.Contains(m, "api_key_invalid")
}
