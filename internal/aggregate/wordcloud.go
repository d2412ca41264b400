package aggregate

import (
	"math"
	"strings"

	"caseboard-service/internal/domain"
)

// SizeBuckets is the number of visual sizes a cloud entry can take.
const SizeBuckets = 6

// CloudEntry is one distinct answer of a text or sentiment step.
type CloudEntry struct {
	Key       string            `json:"key"`
	Text      string            `json:"text"`
	Count     int               `json:"count"`
	Students  []string          `json:"students"`
	Sentiment *domain.Sentiment `json:"sentiment,omitempty"`
	Size      int               `json:"size"`
}

// SentimentColumns splits a cloud by label, with per-label occurrence totals.
type SentimentColumns struct {
	Positive      []CloudEntry `json:"positive"`
	Negative      []CloudEntry `json:"negative"`
	Neutral       []CloudEntry `json:"neutral"`
	PositiveTotal int          `json:"positiveTotal"`
	NegativeTotal int          `json:"negativeTotal"`
	NeutralTotal  int          `json:"neutralTotal"`
}

// WordCloud groups answers by their trimmed, lower-cased text in first-seen order. The
// first occurrence supplies the displayed text and sentiment. Size scales linearly from 0
// at the smallest observed count to SizeBuckets-1 at the largest.
func WordCloud(responses []domain.Response) []CloudEntry {
	index := make(map[string]int)
	entries := make([]CloudEntry, 0)
	for _, r := range responses {
		raw := strings.TrimSpace(r.Text())
		key := strings.ToLower(raw)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			entries[i].Count++
			entries[i].Students = append(entries[i].Students, r.StudentName)
			continue
		}
		index[key] = len(entries)
		entries = append(entries, CloudEntry{
			Key:       key,
			Text:      raw,
			Count:     1,
			Students:  []string{r.StudentName},
			Sentiment: r.Sentiment,
		})
	}
	if len(entries) == 0 {
		return entries
	}

	minCount, maxCount := entries[0].Count, entries[0].Count
	for _, e := range entries[1:] {
		minCount = min(minCount, e.Count)
		maxCount = max(maxCount, e.Count)
	}
	for i := range entries {
		if maxCount == minCount {
			continue
		}
		ratio := float64(entries[i].Count-minCount) / float64(maxCount-minCount)
		entries[i].Size = int(math.Round(ratio * (SizeBuckets - 1)))
	}
	return entries
}

// SplitBySentiment arranges cloud entries into columns. Unlabelled entries are neutral.
func SplitBySentiment(entries []CloudEntry) SentimentColumns {
	cols := SentimentColumns{Positive: []CloudEntry{}, Negative: []CloudEntry{}, Neutral: []CloudEntry{}}
	for _, e := range entries {
		switch {
		case e.Sentiment != nil && *e.Sentiment == domain.SentimentPositive:
			cols.Positive = append(cols.Positive, e)
			cols.PositiveTotal += e.Count
		case e.Sentiment != nil && *e.Sentiment == domain.SentimentNegative:
			cols.Negative = append(cols.Negative, e)
			cols.NegativeTotal += e.Count
		default:
			cols.Neutral = append(cols.Neutral, e)
			cols.NeutralTotal += e.Count
		}
	}
	return cols
}

// ForStep filters responses down to one step, keeping their order.
func ForStep(responses []domain.Response, step int) []domain.Response {
	out := make([]domain.Response, 0)
	for _, r := range responses {
		if r.Step == step {
			out = append(out, r)
		}
	}
	return out
}
