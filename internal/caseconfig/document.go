// Package caseconfig resolves, normalizes and validates case configurations.
package caseconfig

import (
	"encoding/json"
	"fmt"

	"caseboard-service/internal/domain"
)

// Document is the persisted shape of a case configuration. Every field is optional;
// Resolve substitutes the default for each one that is absent.
type Document struct {
	ID                string           `json:"id"`
	Title             *string          `json:"title,omitempty"`
	BoardTitle        *string          `json:"board_title,omitempty"`
	Description       *string          `json:"description,omitempty"`
	Sessions          []domain.Session `json:"sessions,omitempty"`
	Steps             []domain.Step    `json:"steps,omitempty"`
	Topics            []domain.Topic   `json:"topics,omitempty"`
	SentimentPositive []string         `json:"sentiment_positive"`
	SentimentNegative []string         `json:"sentiment_negative"`
}

// NewDocument converts a resolved configuration into its persisted form.
func NewDocument(cfg domain.CaseConfig) Document {
	title, board, desc := cfg.Title, cfg.BoardTitle, cfg.Description
	return Document{
		ID:                cfg.ID,
		Title:             &title,
		BoardTitle:        &board,
		Description:       &desc,
		Sessions:          cfg.Sessions,
		Steps:             cfg.Steps,
		Topics:            cfg.Topics,
		SentimentPositive: cfg.SentimentPositive,
		SentimentNegative: cfg.SentimentNegative,
	}
}

// Decode parses a stored document and resolves it against the defaults.
func Decode(caseID string, raw []byte) (domain.CaseConfig, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.CaseConfig{}, fmt.Errorf("decode case config %s: %w", caseID, err)
	}
	return Resolve(caseID, doc), nil
}

// Resolve fills absent fields from Default(caseID). Nil slices are absent;
// empty but present keyword lists are kept so a case can disable classification.
func Resolve(caseID string, doc Document) domain.CaseConfig {
	cfg := Default(caseID)
	if doc.Title != nil {
		cfg.Title = *doc.Title
	}
	if doc.BoardTitle != nil {
		cfg.BoardTitle = *doc.BoardTitle
	}
	if doc.Description != nil {
		cfg.Description = *doc.Description
	}
	if doc.Sessions != nil {
		cfg.Sessions = doc.Sessions
	}
	if doc.Steps != nil {
		cfg.Steps = doc.Steps
	}
	if doc.Topics != nil {
		cfg.Topics = doc.Topics
	}
	if doc.SentimentPositive != nil {
		cfg.SentimentPositive = doc.SentimentPositive
	}
	if doc.SentimentNegative != nil {
		cfg.SentimentNegative = doc.SentimentNegative
	}
	return cfg
}
