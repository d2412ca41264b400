// Package sentiment labels free text against per-case keyword lists.
package sentiment

import (
	"strings"

	"caseboard-service/internal/domain"
)

// Classify counts how many positive and negative keywords occur in text, ignoring case.
// Each keyword counts once no matter how often it appears. Ties, including 0-0, are neutral.
func Classify(text string, positive, negative []string) domain.Sentiment {
	lower := strings.ToLower(text)
	pos := matches(lower, positive)
	neg := matches(lower, negative)

	switch {
	case pos > neg:
		return domain.SentimentPositive
	case neg > pos:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

func matches(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}
