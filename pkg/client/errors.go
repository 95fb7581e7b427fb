package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrUnauthorized is returned when the resource server rejects the credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMalformedPage is returned when a page body cannot be decoded.
	ErrMalformedPage = errors.New("malformed page")
)

// FetchError reports a failed fetch with enough context to reproduce the call.
type FetchError struct {
	Endpoint   string
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s failed (%s, status %d): %s: %v",
			e.Endpoint, e.ErrorClass, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s failed (%s, status %d): %s",
		e.Endpoint, e.ErrorClass, e.StatusCode, e.URL)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassAuth represents 401 responses.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassClient represents other 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents unreadable response bodies.
	ErrorClassDecode ErrorClass = "decode"
)

// classifyStatus categorizes an HTTP status for observability.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 401:
		return ErrorClassAuth
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}
