package domain

// Transition computes the next state from the current one. It reports false when the
// transition is rejected, in which case nothing is written.
type Transition func(SessionState) (SessionState, bool)

// InitialState is the state a session starts in and returns to on reset.
func InitialState(scope Scope) SessionState {
	return SessionState{
		CaseID:       scope.CaseID,
		SessionID:    scope.SessionID,
		CurrentStep:  0,
		RevealedStep: -1,
		DisplayMode:  ModeControlled,
	}
}

// Advance moves to the next step unless already at lastStep.
func Advance(lastStep int) Transition {
	return func(s SessionState) (SessionState, bool) {
		if s.CurrentStep >= lastStep {
			return s, false
		}
		s.CurrentStep++
		return s, true
	}
}

// GoBack moves to the previous step unless at step 0. The reveal cursor is clamped so it
// never runs ahead of the current step.
func GoBack() Transition {
	return func(s SessionState) (SessionState, bool) {
		if s.CurrentStep <= 0 {
			return s, false
		}
		s.CurrentStep--
		if s.RevealedStep > s.CurrentStep {
			s.RevealedStep = s.CurrentStep
		}
		return s, true
	}
}

// Reveal moves the reveal cursor forward by one, never past the current step.
func Reveal() Transition {
	return func(s SessionState) (SessionState, bool) {
		if s.RevealedStep >= s.CurrentStep {
			return s, false
		}
		s.RevealedStep++
		return s, true
	}
}

// ToggleMode flips between controlled and live display.
func ToggleMode() Transition {
	return func(s SessionState) (SessionState, bool) {
		if s.DisplayMode == ModeLive {
			s.DisplayMode = ModeControlled
		} else {
			s.DisplayMode = ModeLive
		}
		return s, true
	}
}

// ResetState returns the session to its initial state.
func ResetState() Transition {
	return func(s SessionState) (SessionState, bool) {
		next := InitialState(s.Scope())
		next.Version = s.Version
		next.UpdatedAt = s.UpdatedAt
		return next, true
	}
}

// VisibleThrough returns the highest step index the board may show.
// Live mode shows everything up to the current step.
func (s SessionState) VisibleThrough() int {
	if s.DisplayMode == ModeLive {
		return s.CurrentStep
	}
	return s.RevealedStep
}

// Valid reports whether the state satisfies its invariants.
func (s SessionState) Valid() bool {
	return s.CurrentStep >= 0 && s.RevealedStep >= -1 && s.RevealedStep <= s.CurrentStep &&
		(s.DisplayMode == ModeControlled || s.DisplayMode == ModeLive)
}
