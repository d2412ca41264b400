package caseconfig

import "caseboard-service/internal/domain"

// Colors are the topic palette keys accepted on save.
var Colors = []string{"purple", "blue", "green", "orange", "red", "teal", "pink", "yellow", "indigo", "cyan"}

const defaultColor = "blue"

var defaultPositive = []string{
	"creative", "creativity", "inclusive", "diverse", "diversity",
	"entertaining", "entertainment", "fun", "engaging", "engage",
	"discovery", "discover", "innovative", "innovation",
	"empowering", "empower", "expression", "expressive",
	"community", "connect", "connection", "accessible",
	"opportunity", "opportunities", "democratiz", "enabling",
	"inspiring", "inspiration", "educational", "learning",
	"viral", "popular", "growth", "amazing", "powerful",
	"platform for", "marketplace", "e-commerce", "commerce",
	"free", "easy", "cool", "great", "good", "love", "best",
	"revolutionary", "transformative", "disruptive",
}

var defaultNegative = []string{
	"addictive", "addiction", "addicted", "dopamine",
	"distract", "distracting", "distraction", "time-consuming",
	"waste", "wasting", "toxic", "harmful", "harm", "damage",
	"manipulat", "exploit", "surveillance", "spy", "spying",
	"dangerous", "threat", "risk", "risky", "unsafe",
	"misinformation", "disinformation", "fake", "propaganda",
	"privacy", "data harvester", "data mining", "tracking",
	"censorship", "censor", "ban", "banned",
	"mental health", "anxiety", "depression", "lonely",
	"narcissi", "vanity", "shallow", "mindless",
	"chinese government", "ccp", "national security",
	"opium", "drug", "peddler", "predatory",
	"problematic", "concerning", "bad", "worst", "terrible",
	"annoying", "cringe", "overrated",
}

// Default returns the configuration used when a case has nothing stored.
func Default(caseID string) domain.CaseConfig {
	return domain.CaseConfig{
		ID:          caseID,
		Title:       "Case Discussion",
		BoardTitle:  "Case Discussion Board",
		Description: "Classroom Case Discussion Board",
		Sessions: []domain.Session{
			{ID: "A", Label: "Section A"},
			{ID: "B", Label: "Section B"},
			{ID: "C", Label: "Section C"},
		},
		Steps: []domain.Step{
			{ID: 0, Topic: "Opening", Question: "Share your first impression", Type: domain.StepSentiment},
			{ID: 1, Topic: "Topic 1", Question: "Discussion question 1", Type: domain.StepText},
			{ID: 2, Topic: "Topic 1", Question: "Discussion question 2", Type: domain.StepText},
			{ID: 3, Topic: "Topic 2", Question: "Discussion question 3", Type: domain.StepText},
			{ID: 4, Topic: "Topic 2", Question: "Discussion question 4", Type: domain.StepPoll, PollOptions: []string{"Option A", "Option B", "Option C"}},
		},
		Topics: []domain.Topic{
			{Name: "Opening", StepIDs: []int{0}, Color: "purple"},
			{Name: "Topic 1", StepIDs: []int{1, 2}, Color: "blue"},
			{Name: "Topic 2", StepIDs: []int{3, 4}, Color: "green"},
		},
		SentimentPositive: append([]string(nil), defaultPositive...),
		SentimentNegative: append([]string(nil), defaultNegative...),
	}
}
