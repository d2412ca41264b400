package caseconfig

import (
	"errors"
	"fmt"
	"strings"

	"caseboard-service/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the structural rules of a configuration and the cross-field invariants:
// dense zero-based step ids, non-empty poll options, unique session ids and topic
// membership that only references existing steps.
func Validate(cfg domain.CaseConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.NewValidationError(fieldPath(fe.Namespace()), describe(fe))
		}
		return err
	}

	seen := make(map[string]struct{}, len(cfg.Sessions))
	for i, s := range cfg.Sessions {
		if _, dup := seen[s.ID]; dup {
			return domain.NewValidationError(fmt.Sprintf("sessions[%d].id", i), "duplicate session id "+s.ID)
		}
		seen[s.ID] = struct{}{}
	}

	for i, s := range cfg.Steps {
		if s.ID != i {
			return domain.NewValidationError(fmt.Sprintf("steps[%d].id", i), fmt.Sprintf("expected %d, got %d", i, s.ID))
		}
		if s.Type == domain.StepPoll && len(s.PollOptions) == 0 {
			return domain.NewValidationError(fmt.Sprintf("steps[%d].pollOptions", i), "poll steps need at least one option")
		}
	}

	for i, t := range cfg.Topics {
		for _, id := range t.StepIDs {
			if id < 0 || id >= len(cfg.Steps) {
				return domain.NewValidationError(fmt.Sprintf("topics[%d].stepIds", i), fmt.Sprintf("unknown step %d", id))
			}
		}
	}
	return nil
}

// fieldPath strips the root struct name: "CaseConfig.Steps[0].Question" -> "Steps[0].Question".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "needs at least " + fe.Param() + " entries"
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
