package app

import (
	"context"

	"caseboard-service/internal/domain"
)

// Reader serves the bootstrap queries of synchronized views.
type Reader struct {
	controller *Controller
	ledger     *Ledger
	configs    ConfigRepository
}

func NewReader(controller *Controller, ledger *Ledger, configs ConfigRepository) *Reader {
	return &Reader{controller: controller, ledger: ledger, configs: configs}
}

func (r *Reader) CaseConfig(ctx context.Context, caseID string) (domain.CaseConfig, error) {
	return r.configs.GetCaseConfig(ctx, caseID)
}

func (r *Reader) SessionState(ctx context.Context, scope domain.Scope) (domain.SessionState, error) {
	return r.controller.State(ctx, scope)
}

func (r *Reader) Responses(ctx context.Context, scope domain.Scope) ([]domain.Response, error) {
	return r.ledger.List(ctx, domain.ResponseFilter{CaseID: scope.CaseID, SessionID: scope.SessionID})
}

func (r *Reader) HasResponse(ctx context.Context, row domain.Response) (bool, error) {
	return r.ledger.Holds(ctx, row)
}

func (r *Reader) InvalidateConfig(ctx context.Context, caseID string) {
	r.configs.Invalidate(ctx, caseID)
}
