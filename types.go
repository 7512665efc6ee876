package goTodo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrEthical07/goTodo/credential"
)

// Todo is one item of the caller's list. The client treats it as an opaque
// payload and never validates titles.
type Todo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// TodoList is the body every to-do endpoint replies with.
type TodoList struct {
	Todos []Todo `json:"todos"`
}

// Remaining counts items not yet done.
func (l TodoList) Remaining() int {
	n := 0
	for _, t := range l.Todos {
		if !t.Done {
			n++
		}
	}
	return n
}

// OutcomeKind classifies the terminal state of one request.
type OutcomeKind uint8

const (
	// OutcomeSuccess means the server answered 200.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeUnauthenticated means a 401 could not be recovered. When a
	// refresh was attempted and failed, stored credentials are already gone.
	OutcomeUnauthenticated
	// OutcomeForbidden means the server answered 403.
	OutcomeForbidden
	// OutcomeOther covers every other non-200 status and undecodable payloads.
	OutcomeOther
	// OutcomeNetworkError means the API or the credential store was
	// unreachable.
	OutcomeNetworkError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeUnauthenticated:
		return "unauthenticated"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeOther:
		return "other"
	case OutcomeNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of [Client.Send].
//
// Err is nil only for OutcomeSuccess. For failures it wraps one of the
// package sentinels and, when a response was received, the [HTTPError].
type Result struct {
	Kind    OutcomeKind
	Status  int
	Payload json.RawMessage
	Message string
	Err     error
	// Refreshed reports that the access token was refreshed while serving
	// this request.
	Refreshed bool
}

// OK reports whether the request succeeded.
func (r Result) OK() bool {
	return r.Kind == OutcomeSuccess
}

// Decode unmarshals the success payload into v.
func (r Result) Decode(v any) error {
	if r.Kind != OutcomeSuccess {
		if r.Err != nil {
			return r.Err
		}
		return fmt.Errorf("%s outcome has no payload", r.Kind)
	}
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// Navigator is implemented by the embedding application. [Client.Handle]
// calls it when a request ends the session or is refused.
type Navigator interface {
	// OnLogout resets application state after credentials were cleared.
	OnLogout()
	// Redirect moves the user to path, e.g. "/login".
	Redirect(path string)
	// Alert shows msg to the user.
	Alert(msg string)
}

// NopNavigator ignores every call.
type NopNavigator struct{}

func (NopNavigator) OnLogout()       {}
func (NopNavigator) Redirect(string) {}
func (NopNavigator) Alert(string)    {}

// LoginResponse is the body of a successful sign-in.
type LoginResponse struct {
	Email        string `json:"email"`
	UserName     string `json:"userName"`
	Role         string `json:"role"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// SignUpRequest is the body of an account registration.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	UserName string `json:"userName"`
}

// PromoteResponse is the body of a successful promotion: a new access token
// carrying the new role.
type PromoteResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// SessionInfo describes the locally stored session. Claims are read without
// signature verification; only the server can tell whether the token is
// genuine.
type SessionInfo struct {
	Authenticated   bool
	HasRefreshToken bool
	Role            credential.Role
	Subject         string
	Email           string
	// ExpiresAt is zero when the access token is opaque or carries no "exp".
	ExpiresAt time.Time
}

// Expired reports whether the access token carries an expiry before now.
func (s SessionInfo) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !s.ExpiresAt.After(now)
}
