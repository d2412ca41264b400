package caseconfig

import (
	"slices"
	"strings"

	"caseboard-service/internal/domain"
)

// Normalize prepares a configuration for saving: steps are re-indexed densely, topic
// membership is recomputed from the steps, session ids are upper-cased and keyword lists
// are trimmed and lower-cased. The input is not modified.
func Normalize(cfg domain.CaseConfig) domain.CaseConfig {
	out := cfg
	out.ID = strings.TrimSpace(cfg.ID)

	out.Sessions = make([]domain.Session, 0, len(cfg.Sessions))
	for _, s := range cfg.Sessions {
		id := domain.NormalizeSessionID(s.ID)
		if id == "" {
			continue
		}
		out.Sessions = append(out.Sessions, domain.Session{ID: id, Label: strings.TrimSpace(s.Label)})
	}

	out.Steps = make([]domain.Step, len(cfg.Steps))
	for i, s := range cfg.Steps {
		step := domain.Step{
			ID:       i,
			Topic:    strings.TrimSpace(s.Topic),
			Question: strings.TrimSpace(s.Question),
			Type:     s.Type,
		}
		if step.Type == domain.StepPoll {
			step.PollOptions = nonBlank(s.PollOptions, false)
		}
		out.Steps[i] = step
	}

	out.Topics = make([]domain.Topic, 0, len(cfg.Topics))
	for _, t := range cfg.Topics {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		color := t.Color
		if !slices.Contains(Colors, color) {
			color = defaultColor
		}
		out.Topics = append(out.Topics, domain.Topic{Name: name, Color: color, StepIDs: stepIDsFor(name, out.Steps)})
	}

	out.SentimentPositive = nonBlank(cfg.SentimentPositive, true)
	out.SentimentNegative = nonBlank(cfg.SentimentNegative, true)
	return out
}

func stepIDsFor(topic string, steps []domain.Step) []int {
	ids := []int{}
	for _, s := range steps {
		if s.Topic == topic {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func nonBlank(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if lower {
			v = strings.ToLower(v)
		}
		out = append(out, v)
	}
	return out
}
