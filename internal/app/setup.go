package app

import (
	"context"
	"fmt"

	"caseboard-service/internal/caseconfig"
	"caseboard-service/internal/domain"
)

// Setup saves case configurations.
type Setup struct {
	store      ConfigStore
	configs    ConfigRepository
	controller *Controller
	events     Publisher
}

func NewSetup(store ConfigStore, configs ConfigRepository, controller *Controller, events Publisher) *Setup {
	return &Setup{store: store, configs: configs, controller: controller, events: events}
}

// Get returns the resolved configuration of a case.
func (s *Setup) Get(ctx context.Context, caseID string) (domain.CaseConfig, error) {
	return s.configs.GetCaseConfig(ctx, caseID)
}

// Save normalizes and validates cfg, overwrites the stored configuration and registers
// state rows for new sessions. Rows of removed sessions are kept.
func (s *Setup) Save(ctx context.Context, cfg domain.CaseConfig) (domain.CaseConfig, error) {
	cfg = caseconfig.Normalize(cfg)
	if err := caseconfig.Validate(cfg); err != nil {
		return domain.CaseConfig{}, err
	}
	if err := s.store.SaveCaseConfig(ctx, cfg); err != nil {
		return domain.CaseConfig{}, fmt.Errorf("save case config %s: %w", cfg.ID, err)
	}
	s.configs.Invalidate(ctx, cfg.ID)
	if err := s.controller.RegisterSessions(ctx, cfg); err != nil {
		return domain.CaseConfig{}, err
	}
	publish(ctx, s.events, domain.CaseConfigChanged(cfg.ID))
	return cfg, nil
}
