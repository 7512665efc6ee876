package flows

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
)

// PendingRequest is a deferred description of one API call plus its one-shot
// retry budget. The budget belongs to this instance only, so concurrent
// requests never share it.
type PendingRequest struct {
	ID     string
	Method string
	Path   string
	Header http.Header
	Body   []byte
	// Anonymous requests never carry an Authorization header.
	Anonymous bool

	bearer    string
	attempted atomic.Bool
}

// NewPendingRequest JSON-encodes body (nil means no body) and assigns a fresh
// request ID.
func NewPendingRequest(method, path string, body any) (*PendingRequest, error) {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}
	return &PendingRequest{
		ID:     uuid.NewString(),
		Method: method,
		Path:   path,
		Header: http.Header{},
		Body:   raw,
	}, nil
}

// Attempted reports whether the refresh-and-retry budget has been spent.
func (p *PendingRequest) Attempted() bool {
	return p.attempted.Load()
}

// MarkAttempted spends the retry budget. It returns false if the budget was
// already spent; the flag never goes back to false.
func (p *PendingRequest) MarkAttempted() bool {
	return p.attempted.CompareAndSwap(false, true)
}

// SetBearer pins the Authorization header of this request to token,
// overriding whatever the credential store holds at dispatch time.
func (p *PendingRequest) SetBearer(token string) {
	p.bearer = token
}

// Bearer returns the pinned token, if any.
func (p *PendingRequest) Bearer() string {
	return p.bearer
}

func (p *PendingRequest) bodyReader() io.Reader {
	if len(p.Body) == 0 {
		return nil
	}
	return bytes.NewReader(p.Body)
}
