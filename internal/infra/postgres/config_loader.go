package postgres

import (
	"context"
	"errors"
	"fmt"

	"caseboard-service/internal/caseconfig"
	"caseboard-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ConfigLoader loads case config JSONB from Postgres.
type ConfigLoader struct {
	pool *pgxpool.Pool
}

func NewConfigLoader(pool *pgxpool.Pool) *ConfigLoader {
	return &ConfigLoader{pool: pool}
}

func (l *ConfigLoader) LoadCaseConfig(ctx context.Context, caseID string) (domain.CaseConfig, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM case_configs WHERE id=$1`, caseID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CaseConfig{}, domain.ErrCaseNotFound
	}
	if err != nil {
		return domain.CaseConfig{}, fmt.Errorf("load case config: %w", err)
	}
	return caseconfig.Decode(caseID, raw)
}
