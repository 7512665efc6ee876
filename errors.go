package goTodo

import (
	"errors"

	"github.com/MrEthical07/goTodo/internal/flows"
)

var (
	// ErrUnauthenticated is returned when the server rejects the caller and no
	// session can be recovered.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrSessionExpired is returned when the access token expired and the
	// refresh attempt failed; stored credentials have been cleared.
	ErrSessionExpired = errors.New("session expired")
	// ErrForbidden is returned for 403 responses.
	ErrForbidden = errors.New("forbidden")
	// ErrBadRequest is returned for 400 responses, e.g. promoting an account
	// that is already premium.
	ErrBadRequest = errors.New("bad request")
	// ErrNetwork is returned when the API could not be reached or the
	// credential store failed.
	ErrNetwork = errors.New("network failure")
	// ErrDecode is returned when a 200 response carries a payload that does
	// not decode into the expected shape.
	ErrDecode = errors.New("response decode failure")
	// ErrNoRefreshToken is returned when a refresh is needed but none is stored.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrRefreshRejected is returned when the refresh endpoint answers non-200
	// or without an access token.
	ErrRefreshRejected = errors.New("refresh rejected")
	// ErrClientNotReady is returned by methods called on a nil or unbuilt client.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid config")
)

// HTTPError is the error carried by every non-200 response. Use [errors.As]
// to read the status code and server message.
type HTTPError = flows.HTTPError

// StatusCode returns the HTTP status carried by err, or 0 if err does not wrap
// an [HTTPError].
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}
