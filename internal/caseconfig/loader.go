package caseconfig

import (
	"context"
	"errors"

	"caseboard-service/internal/domain"
)

// Loader fetches a stored case configuration.
type Loader interface {
	LoadCaseConfig(ctx context.Context, caseID string) (domain.CaseConfig, error)
}

// WithDefaults serves Default(caseID) for cases that have nothing stored.
type WithDefaults struct {
	Loader Loader
}

func (l WithDefaults) LoadCaseConfig(ctx context.Context, caseID string) (domain.CaseConfig, error) {
	cfg, err := l.Loader.LoadCaseConfig(ctx, caseID)
	if errors.Is(err, domain.ErrCaseNotFound) {
		return Default(caseID), nil
	}
	return cfg, err
}
