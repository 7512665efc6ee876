package flows

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrTransport wraps failures to reach the API at all.
	ErrTransport = errors.New("transport failure")
	// ErrDecode wraps malformed success payloads.
	ErrDecode = errors.New("decode failure")
	// ErrStore wraps credential store failures.
	ErrStore = errors.New("credential store failure")
)

// HTTPError is returned by the Dispatcher for every non-200 response.
type HTTPError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.Status, http.StatusText(e.Status))
}

// newHTTPError extracts a message from a JSON {"message": ...} body, falling
// back to a plain-text body.
func newHTTPError(status int, body []byte) *HTTPError {
	he := &HTTPError{Status: status, Body: body}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Message != "":
			he.Message = payload.Message
		case payload.Error != "":
			he.Message = payload.Error
		}
		return he
	}
	var msg string
	if err := json.Unmarshal(body, &msg); err == nil {
		he.Message = msg
		return he
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 256 {
		text = text[:256]
	}
	he.Message = text
	return he
}
