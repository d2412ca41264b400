package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"caseboard-service/internal/domain"
	"caseboard-service/internal/sentiment"
	"github.com/rs/zerolog/log"
)

// Ledger records student submissions.
type Ledger struct {
	responses ResponseStore
	configs   ConfigRepository
	events    Publisher
}

func NewLedger(responses ResponseStore, configs ConfigRepository, events Publisher) *Ledger {
	return &Ledger{responses: responses, configs: configs, events: events}
}

// Submit validates a submission, rejects duplicates and stores the response.
// The existence check is only a fast path; the store's uniqueness constraint decides.
func (l *Ledger) Submit(ctx context.Context, sub domain.Submission) (domain.Response, error) {
	caseID := strings.TrimSpace(sub.CaseID)
	if caseID == "" {
		caseID = domain.DefaultCaseID
	}
	sessionID := domain.NormalizeSessionID(sub.SessionID)
	name := strings.TrimSpace(sub.StudentName)

	switch {
	case name == "":
		return domain.Response{}, domain.NewValidationError("student_name", "is required")
	case sub.Step == nil:
		return domain.Response{}, domain.NewValidationError("step", "is required")
	case sessionID == "":
		return domain.Response{}, domain.NewValidationError("session_id", "is required")
	}

	cfg, err := l.configs.GetCaseConfig(ctx, caseID)
	if err != nil {
		return domain.Response{}, err
	}
	if _, ok := cfg.Session(sessionID); !ok {
		return domain.Response{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	step, ok := cfg.Step(*sub.Step)
	if !ok {
		return domain.Response{}, domain.NewValidationError("step", fmt.Sprintf("unknown step %d", *sub.Step))
	}

	row := domain.Response{CaseID: caseID, SessionID: sessionID, Step: step.ID, StudentName: name}
	if err := fillPayload(&row, step, cfg, sub); err != nil {
		return domain.Response{}, err
	}

	if _, exists, err := l.responses.FindResponse(ctx, row.Key()); err != nil {
		return domain.Response{}, err
	} else if exists {
		return domain.Response{}, domain.ErrDuplicateSubmission
	}

	created, err := l.responses.InsertResponse(ctx, row)
	if err != nil {
		return domain.Response{}, err
	}
	publish(ctx, l.events, domain.ResponseInserted(created))
	return created, nil
}

// fillPayload sets exactly one of answer and poll choice. Sentiment is labelled here so that
// later keyword edits do not reclassify stored answers.
func fillPayload(row *domain.Response, step domain.Step, cfg domain.CaseConfig, sub domain.Submission) error {
	switch step.Type {
	case domain.StepPoll:
		if sub.PollChoice == nil || !slices.Contains(step.PollOptions, *sub.PollChoice) {
			return domain.NewValidationError("poll_choice", "must be one of the step's options")
		}
		choice := *sub.PollChoice
		row.PollChoice = &choice
	default:
		if sub.Answer == nil || strings.TrimSpace(*sub.Answer) == "" {
			return domain.NewValidationError("answer", "is required")
		}
		answer := strings.TrimSpace(*sub.Answer)
		row.Answer = &answer
		if step.Type == domain.StepSentiment {
			label := sentiment.Classify(answer, cfg.SentimentPositive, cfg.SentimentNegative)
			if sub.Sentiment != nil && sub.Sentiment.Valid() {
				label = *sub.Sentiment
			}
			row.Sentiment = &label
		}
	}
	return nil
}

// List returns responses for a case, optionally narrowed to one session, in creation order.
func (l *Ledger) List(ctx context.Context, filter domain.ResponseFilter) ([]domain.Response, error) {
	if strings.TrimSpace(filter.CaseID) == "" {
		filter.CaseID = domain.DefaultCaseID
	}
	filter.SessionID = domain.NormalizeSessionID(filter.SessionID)
	return l.responses.ListResponses(ctx, filter)
}

// Holds reports whether the store still has row r. A later submission under the same key
// after a reset is a different row.
func (l *Ledger) Holds(ctx context.Context, r domain.Response) (bool, error) {
	found, ok, err := l.responses.FindResponse(ctx, r.Key())
	if err != nil {
		return false, err
	}
	return ok && found.ID == r.ID, nil
}

// SubmittedSteps lists the steps a student already answered in a scope.
func (l *Ledger) SubmittedSteps(ctx context.Context, scope domain.Scope, studentName string) ([]int, error) {
	name := strings.TrimSpace(studentName)
	rows, err := l.responses.ListResponses(ctx, domain.ResponseFilter{CaseID: scope.CaseID, SessionID: scope.SessionID})
	if err != nil {
		return nil, err
	}
	steps := []int{}
	for _, r := range rows {
		if r.StudentName == name {
			steps = append(steps, r.Step)
		}
	}
	return steps, nil
}

// publish is best effort: the write already happened and subscribers resync on their next
// bootstrap.
func publish(ctx context.Context, events Publisher, ev domain.ChangeEvent) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("case", ev.CaseID).Str("session", ev.SessionID).
			Str("table", string(ev.Table)).Str("event", string(ev.Type)).Msg("publish change event")
	}
}
