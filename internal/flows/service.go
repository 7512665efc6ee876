package flows

import (
	"context"
	"encoding/json"
)

// Service is the centralized flow runner built once by the root client.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Send.Dispatch.HTTP != nil && s.deps.Send.Dispatch.Store != nil
}

// Send runs req through the Refresh Coordinator.
func (s Service) Send(ctx context.Context, req *PendingRequest) SendResult {
	return RunSend(ctx, req, s.deps.Send)
}

// Dispatch sends req once, with no refresh handling.
func (s Service) Dispatch(ctx context.Context, req *PendingRequest) (json.RawMessage, error) {
	return RunDispatch(ctx, req, s.deps.Send.Dispatch)
}

// Refresh performs a standalone refresh call.
func (s Service) Refresh(ctx context.Context) RefreshResult {
	return RunRefresh(ctx, s.deps.Send.Refresh)
}
