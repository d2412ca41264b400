// Package views projects a synchronized snapshot into what each role displays.
// Projections are pure: they hold no synchronization state of their own.
package views

import (
	"fmt"

	"caseboard-service/internal/aggregate"
	"caseboard-service/internal/domain"
	"caseboard-service/internal/realtime"
)

// Role names a consumer of the sync protocol.
type Role string

const (
	RoleBoard      Role = "board"
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleBoard, RoleInstructor, RoleStudent:
		return Role(s), true
	}
	return "", false
}

// Board is the passive classroom display.
type Board struct {
	CaseID       string             `json:"caseId"`
	SessionID    string             `json:"sessionId"`
	Title        string             `json:"title"`
	SessionLabel string             `json:"sessionLabel"`
	Connected    bool               `json:"connected"`
	Loading      bool               `json:"loading"`
	StepCounter  string             `json:"stepCounter,omitempty"`
	DisplayMode  domain.DisplayMode `json:"displayMode,omitempty"`
	Viewers      int64              `json:"viewers"`
	Topics       []BoardTopic       `json:"topics"`
}

// BoardTopic is one cluster of the board. Hidden topics carry no steps.
type BoardTopic struct {
	Name    string      `json:"name"`
	Color   string      `json:"color"`
	Visible bool        `json:"visible"`
	Steps   []BoardStep `json:"steps"`
}

// BoardStep is a visible step with its aggregated responses.
type BoardStep struct {
	ID        int                         `json:"id"`
	Topic     string                      `json:"topic"`
	Question  string                      `json:"question"`
	Type      domain.StepType             `json:"type"`
	Active    bool                        `json:"active"`
	Responses int                         `json:"responses"`
	Poll      *aggregate.PollResult       `json:"poll,omitempty"`
	Cloud     []aggregate.CloudEntry      `json:"cloud,omitempty"`
	Columns   *aggregate.SentimentColumns `json:"columns,omitempty"`
}

func BuildBoard(snap realtime.Snapshot) Board {
	cfg := snap.Config
	title := cfg.BoardTitle
	if title == "" {
		title = cfg.Title
	}
	board := Board{
		CaseID:       snap.Scope.CaseID,
		SessionID:    snap.Scope.SessionID,
		Title:        title,
		SessionLabel: cfg.SessionLabel(snap.Scope.SessionID),
		Connected:    snap.Connected,
		Loading:      snap.State == nil,
		Topics:       make([]BoardTopic, 0, len(cfg.Topics)),
	}
	visibleThrough := -1
	current := -1
	if snap.State != nil {
		visibleThrough = snap.State.VisibleThrough()
		current = snap.State.CurrentStep
		board.StepCounter = fmt.Sprintf("Step %d/%d", current, cfg.LastStep())
		board.DisplayMode = snap.State.DisplayMode
	}

	for _, topic := range cfg.Topics {
		bt := BoardTopic{Name: topic.Name, Color: topic.Color, Steps: []BoardStep{}}
		for _, id := range topic.StepIDs {
			step, ok := cfg.Step(id)
			if !ok || id > visibleThrough {
				continue
			}
			bt.Steps = append(bt.Steps, buildBoardStep(step, snap.Responses, id == current))
		}
		bt.Visible = len(bt.Steps) > 0
		board.Topics = append(board.Topics, bt)
	}
	return board
}

func buildBoardStep(step domain.Step, responses []domain.Response, active bool) BoardStep {
	rows := aggregate.ForStep(responses, step.ID)
	out := BoardStep{
		ID:        step.ID,
		Topic:     step.Topic,
		Question:  step.Question,
		Type:      step.Type,
		Active:    active,
		Responses: len(rows),
	}
	switch step.Type {
	case domain.StepPoll:
		poll := aggregate.Poll(step.PollOptions, rows)
		out.Poll = &poll
	case domain.StepSentiment:
		out.Cloud = aggregate.WordCloud(rows)
		cols := aggregate.SplitBySentiment(out.Cloud)
		out.Columns = &cols
	default:
		out.Cloud = aggregate.WordCloud(rows)
	}
	return out
}

// Instructor is the control panel of one session.
type Instructor struct {
	CaseID       string               `json:"caseId"`
	SessionID    string               `json:"sessionId"`
	SessionLabel string               `json:"sessionLabel"`
	Loading      bool                 `json:"loading"`
	Error        string               `json:"error,omitempty"`
	State        *domain.SessionState `json:"state,omitempty"`
	LastStep     int                  `json:"lastStep"`
	CurrentStep  *domain.Step         `json:"currentStep,omitempty"`
	Responses    []domain.Response    `json:"responses"`
	CanAdvance   bool                 `json:"canAdvance"`
	CanGoBack    bool                 `json:"canGoBack"`
	CanReveal    bool                 `json:"canReveal"`
	Viewers      int64                `json:"viewers"`
}

// BuildInstructor surfaces bootstrap failures as an error panel. The flags mirror the
// transition guards so that rejected transitions are never offered.
func BuildInstructor(snap realtime.Snapshot) Instructor {
	cfg := snap.Config
	view := Instructor{
		CaseID:       snap.Scope.CaseID,
		SessionID:    snap.Scope.SessionID,
		SessionLabel: cfg.SessionLabel(snap.Scope.SessionID),
		Loading:      snap.Loading(),
		LastStep:     cfg.LastStep(),
		Responses:    []domain.Response{},
	}
	if snap.Err != nil {
		view.Error = snap.Err.Error()
	}
	if snap.State == nil {
		return view
	}
	state := *snap.State
	view.State = &state
	if step, ok := cfg.Step(state.CurrentStep); ok {
		view.CurrentStep = &step
	}
	view.Responses = aggregate.ForStep(snap.Responses, state.CurrentStep)
	_, view.CanAdvance = domain.Advance(cfg.LastStep())(state)
	_, view.CanGoBack = domain.GoBack()(state)
	_, view.CanReveal = domain.Reveal()(state)
	return view
}

// Student is what a student's device shows.
type Student struct {
	CaseID         string       `json:"caseId"`
	SessionID      string       `json:"sessionId"`
	SessionLabel   string       `json:"sessionLabel"`
	Title          string       `json:"title"`
	Name           string       `json:"name,omitempty"`
	Loading        bool         `json:"loading"`
	Waiting        bool         `json:"waiting"`
	Step           *domain.Step `json:"step,omitempty"`
	HasSubmitted   bool         `json:"hasSubmitted"`
	SubmittedSteps []int        `json:"submittedSteps"`
}

// BuildStudent shows the current step to the student named name. Connection failures
// leave the view loading.
func BuildStudent(snap realtime.Snapshot, name string) Student {
	cfg := snap.Config
	view := Student{
		CaseID:         snap.Scope.CaseID,
		SessionID:      snap.Scope.SessionID,
		SessionLabel:   cfg.SessionLabel(snap.Scope.SessionID),
		Title:          cfg.Title,
		Name:           name,
		Loading:        snap.State == nil,
		SubmittedSteps: []int{},
	}
	if name != "" {
		for _, r := range snap.Responses {
			if r.StudentName == name {
				view.SubmittedSteps = append(view.SubmittedSteps, r.Step)
			}
		}
	}
	if snap.State == nil {
		return view
	}
	step, ok := cfg.Step(snap.State.CurrentStep)
	if !ok {
		view.Waiting = true
		return view
	}
	view.Step = &step
	for _, id := range view.SubmittedSteps {
		if id == step.ID {
			view.HasSubmitted = true
		}
	}
	return view
}

// Build projects snap for role. name is only used by the student view, viewers only by the
// board and instructor views.
func Build(role Role, snap realtime.Snapshot, name string, viewers int64) any {
	switch role {
	case RoleInstructor:
		view := BuildInstructor(snap)
		view.Viewers = viewers
		return view
	case RoleStudent:
		return BuildStudent(snap, name)
	default:
		view := BuildBoard(snap)
		view.Viewers = viewers
		return view
	}
}
