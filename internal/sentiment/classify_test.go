package sentiment

import (
	"testing"

	"caseboard-service/internal/domain"
)

func TestClassify(t *testing.T) {
	positive := []string{"creative", "fun", "great"}
	negative := []string{"addictive", "toxic", "waste"}

	cases := []struct {
		name string
		text string
		want domain.Sentiment
	}{
		{"positive", "Creative!", domain.SentimentPositive},
		{"lowercase", "creative", domain.SentimentPositive},
		{"negative", "an ADDICTIVE waste of time", domain.SentimentNegative},
		{"tie", "fun but toxic", domain.SentimentNeutral},
		{"no match", "a video app", domain.SentimentNeutral},
		{"repeat counts once", "fun fun fun but toxic and addictive", domain.SentimentNegative},
		{"empty", "", domain.SentimentNeutral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.text, positive, negative); got != tc.want {
				t.Fatalf("Classify(%q) = %s, want %s", tc.text, got, tc.want)
			}
		})
	}
}

func TestClassifySymmetricUnderSwap(t *testing.T) {
	positive := []string{"creative", "fun", "great", "good"}
	negative := []string{"addictive", "toxic", "bad"}
	flip := map[domain.Sentiment]domain.Sentiment{
		domain.SentimentPositive: domain.SentimentNegative,
		domain.SentimentNegative: domain.SentimentPositive,
		domain.SentimentNeutral:  domain.SentimentNeutral,
	}

	texts := []string{"creative and fun", "toxic", "good but bad", "great, addictive, toxic", "", "nothing here"}
	for _, text := range texts {
		got := Classify(text, positive, negative)
		swapped := Classify(text, negative, positive)
		if flip[got] != swapped {
			t.Fatalf("text %q: %s vs swapped %s", text, got, swapped)
		}
		if again := Classify(text, positive, negative); again != got {
			t.Fatalf("text %q: classification not deterministic", text)
		}
	}
}

func TestClassifyIgnoresBlankKeywords(t *testing.T) {
	if got := Classify("anything", []string{"", "  "}, nil); got != domain.SentimentNeutral {
		t.Fatalf("blank keywords must not match, got %s", got)
	}
}
