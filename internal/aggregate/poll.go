// Package aggregate reduces a step's synchronized responses into board visuals.
package aggregate

import (
	"math"

	"caseboard-service/internal/domain"
)

// PollOption is one bar of a poll.
type PollOption struct {
	Label    string  `json:"label"`
	Count    int     `json:"count"`
	Percent  int     `json:"percent"`
	BarWidth float64 `json:"barWidth"`
}

// PollResult tallies the responses of a poll step.
type PollResult struct {
	Total   int          `json:"total"`
	Options []PollOption `json:"options"`
}

// Poll counts responses per declared option. Percentages are relative to all responses of
// the step; bar widths are relative to the most-voted option, with a floor of one vote.
func Poll(options []string, responses []domain.Response) PollResult {
	counts := make(map[string]int, len(options))
	for _, r := range responses {
		if r.PollChoice != nil {
			counts[*r.PollChoice]++
		}
	}

	maxCount := 1
	for _, opt := range options {
		if counts[opt] > maxCount {
			maxCount = counts[opt]
		}
	}

	total := len(responses)
	result := PollResult{Total: total, Options: make([]PollOption, 0, len(options))}
	for _, opt := range options {
		c := counts[opt]
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(c) / float64(total) * 100))
		}
		result.Options = append(result.Options, PollOption{
			Label:    opt,
			Count:    c,
			Percent:  pct,
			BarWidth: float64(c) / float64(maxCount) * 100,
		})
	}
	return result
}
