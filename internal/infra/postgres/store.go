package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"caseboard-service/internal/caseconfig"
	"caseboard-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

type caseConfigRow struct {
	bun.BaseModel `bun:"table:case_configs"`

	ID        string          `bun:"id,pk"`
	Data      json.RawMessage `bun:"data,type:jsonb,notnull"`
	UpdatedAt time.Time       `bun:"updated_at,notnull"`
}

type sessionStateRow struct {
	bun.BaseModel `bun:"table:session_states"`

	CaseID       string    `bun:"case_id,pk"`
	SessionID    string    `bun:"session_id,pk"`
	CurrentStep  int       `bun:"current_step,notnull"`
	RevealedStep int       `bun:"revealed_step,notnull"`
	DisplayMode  string    `bun:"display_mode,notnull"`
	Version      int64     `bun:"version,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

type responseRow struct {
	bun.BaseModel `bun:"table:responses"`

	ID          int64     `bun:"id,pk,autoincrement"`
	CaseID      string    `bun:"case_id,notnull"`
	SessionID   string    `bun:"session_id,notnull"`
	Step        int       `bun:"step,notnull"`
	StudentName string    `bun:"student_name,notnull"`
	Answer      *string   `bun:"answer"`
	Sentiment   *string   `bun:"sentiment"`
	PollChoice  *string   `bun:"poll_choice"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:clock_timestamp()"`
}

// Store implements app.Store on Postgres. The uniqueness of a submission is enforced by
// the responses_unique_submission constraint.
type Store struct {
	db    *bun.DB
	clock func() time.Time
}

// Open connects bun to dsn through pgdriver.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, clock: time.Now}
}

func (s *Store) LoadCaseConfig(ctx context.Context, caseID string) (domain.CaseConfig, error) {
	var row caseConfigRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", caseID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CaseConfig{}, domain.ErrCaseNotFound
	}
	if err != nil {
		return domain.CaseConfig{}, fmt.Errorf("load case config: %w", err)
	}
	return caseconfig.Decode(caseID, row.Data)
}

func (s *Store) SaveCaseConfig(ctx context.Context, cfg domain.CaseConfig) error {
	raw, err := json.Marshal(caseconfig.NewDocument(cfg))
	if err != nil {
		return fmt.Errorf("encode case config: %w", err)
	}
	row := caseConfigRow{ID: cfg.ID, Data: raw, UpdatedAt: s.clock()}
	_, err = s.db.NewInsert().Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) EnsureSessionStates(ctx context.Context, caseID string, sessionIDs []string) ([]domain.SessionState, error) {
	var created []domain.SessionState
	for _, id := range sessionIDs {
		state := domain.InitialState(domain.NewScope(caseID, id))
		state.Version = 1
		state.UpdatedAt = s.clock()
		row := toStateRow(state)
		res, err := s.db.NewInsert().Model(&row).On("CONFLICT (case_id, session_id) DO NOTHING").Exec(ctx)
		if err != nil {
			return created, fmt.Errorf("insert session state %s: %w", state.Scope(), err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created = append(created, state)
		}
	}
	return created, nil
}

func (s *Store) GetSessionState(ctx context.Context, scope domain.Scope) (domain.SessionState, error) {
	var row sessionStateRow
	err := s.db.NewSelect().Model(&row).
		Where("case_id = ?", scope.CaseID).
		Where("session_id = ?", scope.SessionID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionState{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, scope)
	}
	if err != nil {
		return domain.SessionState{}, err
	}
	return row.toDomain(), nil
}

// UpdateSessionState locks the row for the duration of the transition.
func (s *Store) UpdateSessionState(ctx context.Context, scope domain.Scope, fn domain.Transition) (domain.SessionState, bool, error) {
	var (
		result  domain.SessionState
		changed bool
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row sessionStateRow
		err := tx.NewSelect().Model(&row).
			Where("case_id = ?", scope.CaseID).
			Where("session_id = ?", scope.SessionID).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, scope)
		}
		if err != nil {
			return err
		}
		current := row.toDomain()
		next, ok := fn(current)
		if !ok {
			result = current
			return nil
		}
		next.CaseID, next.SessionID = scope.CaseID, scope.SessionID
		next.Version = current.Version + 1
		next.UpdatedAt = s.clock()
		updated := toStateRow(next)
		if _, err := tx.NewUpdate().Model(&updated).WherePK().Exec(ctx); err != nil {
			return err
		}
		result, changed = next, true
		return nil
	})
	if err != nil {
		return domain.SessionState{}, false, err
	}
	return result, changed, nil
}

func (s *Store) FindResponse(ctx context.Context, key domain.ResponseKey) (domain.Response, bool, error) {
	var row responseRow
	err := s.db.NewSelect().Model(&row).
		Where("case_id = ?", key.CaseID).
		Where("session_id = ?", key.SessionID).
		Where("step = ?", key.Step).
		Where("student_name = ?", key.StudentName).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Response{}, false, nil
	}
	if err != nil {
		return domain.Response{}, false, err
	}
	return row.toDomain(), true, nil
}

func (s *Store) InsertResponse(ctx context.Context, r domain.Response) (domain.Response, error) {
	row := toResponseRow(r)
	_, err := s.db.NewInsert().Model(&row).Returning("id, created_at").Exec(ctx)
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation {
		return domain.Response{}, domain.ErrDuplicateSubmission
	}
	if err != nil {
		return domain.Response{}, fmt.Errorf("insert response: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListResponses(ctx context.Context, filter domain.ResponseFilter) ([]domain.Response, error) {
	var rows []responseRow
	q := s.db.NewSelect().Model(&rows).Where("case_id = ?", filter.CaseID)
	if filter.SessionID != "" {
		q = q.Where("session_id = ?", filter.SessionID)
	}
	if err := q.OrderExpr("created_at ASC, id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	out := make([]domain.Response, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (s *Store) DeleteResponses(ctx context.Context, scope domain.Scope) (int, error) {
	res, err := s.db.NewDelete().Model((*responseRow)(nil)).
		Where("case_id = ?", scope.CaseID).
		Where("session_id = ?", scope.SessionID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete responses: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func toStateRow(s domain.SessionState) sessionStateRow {
	return sessionStateRow{
		CaseID:       s.CaseID,
		SessionID:    s.SessionID,
		CurrentStep:  s.CurrentStep,
		RevealedStep: s.RevealedStep,
		DisplayMode:  string(s.DisplayMode),
		Version:      s.Version,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (r sessionStateRow) toDomain() domain.SessionState {
	return domain.SessionState{
		CaseID:       r.CaseID,
		SessionID:    r.SessionID,
		CurrentStep:  r.CurrentStep,
		RevealedStep: r.RevealedStep,
		DisplayMode:  domain.DisplayMode(r.DisplayMode),
		Version:      r.Version,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toResponseRow(r domain.Response) responseRow {
	row := responseRow{
		ID:          r.ID,
		CaseID:      r.CaseID,
		SessionID:   r.SessionID,
		Step:        r.Step,
		StudentName: r.StudentName,
		Answer:      r.Answer,
		PollChoice:  r.PollChoice,
		CreatedAt:   r.CreatedAt,
	}
	if r.Sentiment != nil {
		label := string(*r.Sentiment)
		row.Sentiment = &label
	}
	return row
}

func (r responseRow) toDomain() domain.Response {
	out := domain.Response{
		ID:          r.ID,
		CaseID:      r.CaseID,
		SessionID:   r.SessionID,
		Step:        r.Step,
		StudentName: r.StudentName,
		Answer:      r.Answer,
		PollChoice:  r.PollChoice,
		CreatedAt:   r.CreatedAt,
	}
	if r.Sentiment != nil {
		label := domain.Sentiment(*r.Sentiment)
		out.Sentiment = &label
	}
	return out
}
