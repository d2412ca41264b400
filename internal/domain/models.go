package domain

import (
	"strings"
	"time"
)

// DefaultCaseID is used when a submission omits its case.
const DefaultCaseID = "default"

// StepType selects how a step collects and displays responses.
type StepType string

const (
	StepText      StepType = "text"
	StepSentiment StepType = "sentiment"
	StepPoll      StepType = "poll"
)

// Valid reports whether t is one of the known step types.
func (t StepType) Valid() bool {
	switch t {
	case StepText, StepSentiment, StepPoll:
		return true
	}
	return false
}

// Sentiment is the three-way label produced by the classifier.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether s is one of the three labels.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// DisplayMode controls how the board gates visibility.
type DisplayMode string

const (
	ModeControlled DisplayMode = "controlled"
	ModeLive       DisplayMode = "live"
)

// Step is one discussion prompt. IDs are dense and zero-based within a case.
type Step struct {
	ID          int      `json:"id"`
	Topic       string   `json:"topic"`
	Question    string   `json:"question" validate:"required"`
	Type        StepType `json:"type" validate:"required,oneof=text sentiment poll"`
	PollOptions []string `json:"pollOptions,omitempty"`
}

// Topic groups steps on the board. StepIDs is recomputed from steps on save.
type Topic struct {
	Name    string `json:"name" validate:"required"`
	StepIDs []int  `json:"stepIds"`
	Color   string `json:"color"`
}

// Session identifies one class section of a case.
type Session struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label"`
}

// CaseConfig is the fully resolved configuration of a case.
type CaseConfig struct {
	ID                string    `json:"id" validate:"required"`
	Title             string    `json:"title"`
	BoardTitle        string    `json:"board_title"`
	Description       string    `json:"description"`
	Sessions          []Session `json:"sessions" validate:"dive"`
	Steps             []Step    `json:"steps" validate:"required,min=1,dive"`
	Topics            []Topic   `json:"topics" validate:"dive"`
	SentimentPositive []string  `json:"sentiment_positive"`
	SentimentNegative []string  `json:"sentiment_negative"`
}

// LastStep returns the highest step index, or -1 when the case has no steps.
func (c CaseConfig) LastStep() int {
	return len(c.Steps) - 1
}

// Step looks up a step by id.
func (c CaseConfig) Step(id int) (Step, bool) {
	if id < 0 || id >= len(c.Steps) {
		return Step{}, false
	}
	return c.Steps[id], true
}

// Session looks up a session by id.
func (c CaseConfig) Session(id string) (Session, bool) {
	for _, s := range c.Sessions {
		if s.ID == id {
			return s, true
		}
	}
	return Session{}, false
}

// SessionLabel returns the configured label, falling back to the id.
func (c CaseConfig) SessionLabel(id string) string {
	if s, ok := c.Session(id); ok && s.Label != "" {
		return s.Label
	}
	return id
}

// Scope addresses one (case, session) pair.
type Scope struct {
	CaseID    string `json:"caseId"`
	SessionID string `json:"sessionId"`
}

// NewScope builds a scope with a normalized session id.
func NewScope(caseID, sessionID string) Scope {
	return Scope{CaseID: strings.TrimSpace(caseID), SessionID: NormalizeSessionID(sessionID)}
}

// NormalizeSessionID makes session ids case-insensitive.
func NormalizeSessionID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func (s Scope) String() string {
	return s.CaseID + "/" + s.SessionID
}

// SessionState is the control record for one scope.
// RevealedStep never exceeds CurrentStep. Version is assigned by the store.
type SessionState struct {
	CaseID       string      `json:"case_id"`
	SessionID    string      `json:"session_id"`
	CurrentStep  int         `json:"current_step"`
	RevealedStep int         `json:"revealed_step"`
	DisplayMode  DisplayMode `json:"display_mode"`
	Version      int64       `json:"version"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Scope returns the scope the state belongs to.
func (s SessionState) Scope() Scope {
	return Scope{CaseID: s.CaseID, SessionID: s.SessionID}
}

// Response is one student submission. Exactly one of Answer and PollChoice is set.
type Response struct {
	ID          int64      `json:"id"`
	CaseID      string     `json:"case_id"`
	SessionID   string     `json:"session_id"`
	Step        int        `json:"step"`
	StudentName string     `json:"student_name"`
	Answer      *string    `json:"answer"`
	Sentiment   *Sentiment `json:"sentiment"`
	PollChoice  *string    `json:"poll_choice"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Key returns the uniqueness tuple of the response.
func (r Response) Key() ResponseKey {
	return ResponseKey{CaseID: r.CaseID, SessionID: r.SessionID, Step: r.Step, StudentName: r.StudentName}
}

// Text returns the answer or poll choice, whichever is set.
func (r Response) Text() string {
	if r.Answer != nil {
		return *r.Answer
	}
	if r.PollChoice != nil {
		return *r.PollChoice
	}
	return ""
}

// Before orders responses by creation time, breaking ties by id.
func (r Response) Before(o Response) bool {
	if !r.CreatedAt.Equal(o.CreatedAt) {
		return r.CreatedAt.Before(o.CreatedAt)
	}
	return r.ID < o.ID
}

// ResponseKey is the (case, session, step, student) uniqueness tuple.
type ResponseKey struct {
	CaseID      string
	SessionID   string
	Step        int
	StudentName string
}

// ResponseFilter narrows a listing. An empty SessionID lists the whole case.
type ResponseFilter struct {
	CaseID    string
	SessionID string
}

// Submission is the inbound payload of a student response.
type Submission struct {
	CaseID      string
	SessionID   string
	Step        *int
	StudentName string
	Answer      *string
	Sentiment   *Sentiment
	PollChoice  *string
}
