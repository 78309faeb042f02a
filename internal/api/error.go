// internal/api/error.go
//
// Error taxonomy for backend calls. Transport and HTTP failures are
// classified into a small set of kinds so pages can pick a user-facing
// message and decide whether to re-authenticate, retry or just notify.

package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an API failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindValidation
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not-found"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	}
	return "unknown"
}

// Error is the typed failure returned by the API client and the services
// layer. ServerMessage carries any message the backend included in its
// error envelope.
type Error struct {
	Kind          Kind
	Status        int
	ServerMessage string
	err           error
}

func (e *Error) Error() string {
	if e.ServerMessage != "" {
		return fmt.Sprintf("api: %s (%d): %s", e.Kind, e.Status, e.ServerMessage)
	}
	if e.err != nil {
		return fmt.Sprintf("api: %s: %v", e.Kind, e.err)
	}
	return fmt.Sprintf("api: %s (%d)", e.Kind, e.Status)
}

func (e *Error) Unwrap() error {
	return e.err
}

// UserMessage renders the short notification text for this failure,
// preferring the backend's message where one makes sense.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindNetwork:
		return "Cannot reach the server. Check your connection."
	case KindAuthentication:
		return "Your session has expired. Please sign in again."
	case KindAuthorization:
		return "You do not have permission to perform this action."
	case KindNotFound:
		if e.ServerMessage != "" {
			return e.ServerMessage
		}
		return "The requested resource was not found."
	case KindValidation:
		if e.ServerMessage != "" {
			return e.ServerMessage
		}
		return "The provided data is invalid."
	case KindServer:
		return "A server error occurred. Please try again later."
	default:
		if e.ServerMessage != "" {
			return e.ServerMessage
		}
		return "An unexpected error occurred."
	}
}

// classify maps an HTTP status to a Kind. Status zero means the request
// never reached the server.
func classify(status int) Kind {
	switch {
	case status == 0:
		return KindNetwork
	case status == http.StatusUnauthorized:
		return KindAuthentication
	case status == http.StatusForbidden:
		return KindAuthorization
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// KindOf extracts the Kind from any error, KindUnknown when it is not an
// API error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsAuthenticationRequired reports whether err calls for the login flow.
func IsAuthenticationRequired(err error) bool {
	return KindOf(err) == KindAuthentication
}

// UserMessage renders the notification text for any error.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return "An unexpected error occurred."
}
