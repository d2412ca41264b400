package aggregate

import (
	"reflect"
	"testing"

	"caseboard-service/internal/domain"
	"caseboard-service/internal/sentiment"
)

func vote(name, choice string) domain.Response {
	c := choice
	return domain.Response{Step: 8, StudentName: name, PollChoice: &c}
}

func answer(step int, name, text string, label domain.Sentiment) domain.Response {
	a := text
	r := domain.Response{Step: step, StudentName: name, Answer: &a}
	if label != "" {
		l := label
		r.Sentiment = &l
	}
	return r
}

func TestPollScenario(t *testing.T) {
	options := []string{"A", "B", "C"}
	got := Poll(options, []domain.Response{vote("s1", "A"), vote("s2", "A"), vote("s3", "B")})

	want := PollResult{
		Total: 3,
		Options: []PollOption{
			{Label: "A", Count: 2, Percent: 67, BarWidth: 100},
			{Label: "B", Count: 1, Percent: 33, BarWidth: 50},
			{Label: "C", Count: 0, Percent: 0, BarWidth: 0},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPollWithoutVotes(t *testing.T) {
	got := Poll([]string{"Yes", "No"}, nil)
	for _, o := range got.Options {
		if o.Count != 0 || o.Percent != 0 || o.BarWidth != 0 {
			t.Fatalf("expected empty tallies, got %+v", o)
		}
	}
}

func TestWordCloudCollapsesDuplicates(t *testing.T) {
	positive := []string{"creative"}
	s1 := sentiment.Classify("Creative!", positive, nil)
	s2 := sentiment.Classify("creative", positive, nil)
	if s1 != domain.SentimentPositive || s2 != domain.SentimentPositive {
		t.Fatalf("expected both positive, got %s and %s", s1, s2)
	}

	entries := WordCloud([]domain.Response{
		answer(0, "Ana", "creative", s2),
		answer(0, "Ben", " Creative ", s1),
		answer(0, "Cy", "addictive", domain.SentimentNegative),
	})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	top := entries[0]
	if top.Count != 2 || !reflect.DeepEqual(top.Students, []string{"Ana", "Ben"}) || top.Text != "creative" {
		t.Fatalf("unexpected collapsed entry %+v", top)
	}
	if top.Size != SizeBuckets-1 || entries[1].Size != 0 {
		t.Fatalf("expected sizes scaled between min and max, got %d and %d", top.Size, entries[1].Size)
	}

	cols := SplitBySentiment(entries)
	if cols.PositiveTotal != 2 || cols.NegativeTotal != 1 || len(cols.Neutral) != 0 {
		t.Fatalf("unexpected columns %+v", cols)
	}
}

func TestWordCloudSkipsBlankAndEqualSizes(t *testing.T) {
	entries := WordCloud([]domain.Response{answer(1, "a", "  ", ""), answer(1, "b", "x", ""), answer(1, "c", "y", "")})
	if len(entries) != 2 {
		t.Fatalf("expected blank answer skipped, got %+v", entries)
	}
	for _, e := range entries {
		if e.Size != 0 {
			t.Fatalf("equal counts should share the smallest size, got %+v", e)
		}
	}
}

func TestForStep(t *testing.T) {
	rs := []domain.Response{answer(1, "a", "x", ""), answer(2, "b", "y", ""), answer(1, "c", "z", "")}
	got := ForStep(rs, 1)
	if len(got) != 2 || got[0].StudentName != "a" || got[1].StudentName != "c" {
		t.Fatalf("unexpected filter result %+v", got)
	}
}
