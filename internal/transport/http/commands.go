package http

import (
	"context"

	"caseboard-service/internal/domain"
)

// runCommand dispatches an instructor action by name.
func runCommand(ctx context.Context, svc Services, scope domain.Scope, action string) (domain.SessionState, error) {
	switch action {
	case "advance":
		return svc.Controller.Advance(ctx, scope)
	case "back":
		return svc.Controller.GoBack(ctx, scope)
	case "reveal":
		return svc.Controller.Reveal(ctx, scope)
	case "toggle-mode":
		return svc.Controller.ToggleMode(ctx, scope)
	case "reset":
		return svc.Controller.Reset(ctx, scope)
	}
	return domain.SessionState{}, domain.NewValidationError("action", "unknown action "+action)
}
