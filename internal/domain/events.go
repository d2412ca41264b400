package domain

// Table names a change-event source.
type Table string

const (
	TableCaseConfig   Table = "case_config"
	TableSessionState Table = "session_state"
	TableResponses    Table = "responses"
)

// EventType is the kind of row change.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ChangeEvent is delivered to every subscriber of a case.
// Bulk deletes carry no row detail: OldResponse is nil.
type ChangeEvent struct {
	Table       Table         `json:"table"`
	Type        EventType     `json:"event"`
	CaseID      string        `json:"caseId"`
	SessionID   string        `json:"sessionId,omitempty"`
	State       *SessionState `json:"state,omitempty"`
	Response    *Response     `json:"response,omitempty"`
	OldResponse *Response     `json:"oldResponse,omitempty"`
}

// StateChanged builds an update event for a session state row.
func StateChanged(state SessionState) ChangeEvent {
	s := state
	return ChangeEvent{
		Table:     TableSessionState,
		Type:      EventUpdate,
		CaseID:    state.CaseID,
		SessionID: state.SessionID,
		State:     &s,
	}
}

// ResponseInserted builds an insert event for a new response row.
func ResponseInserted(r Response) ChangeEvent {
	row := r
	return ChangeEvent{
		Table:     TableResponses,
		Type:      EventInsert,
		CaseID:    r.CaseID,
		SessionID: r.SessionID,
		Response:  &row,
	}
}

// ResponsesDeleted builds a bulk delete event for a scope.
func ResponsesDeleted(scope Scope) ChangeEvent {
	return ChangeEvent{
		Table:     TableResponses,
		Type:      EventDelete,
		CaseID:    scope.CaseID,
		SessionID: scope.SessionID,
	}
}

// CaseConfigChanged builds an update event for a case configuration.
func CaseConfigChanged(caseID string) ChangeEvent {
	return ChangeEvent{Table: TableCaseConfig, Type: EventUpdate, CaseID: caseID}
}
