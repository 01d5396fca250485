// Package domain defines the core persistence models for the application.
// This file holds the versioned structured-summary schema. The schema is the
// contract forced onto the language model: a response that does not decode
// into it (or omits a required array) is rejected before anything reaches
// storage, so historical raw_json rows can always be re-parsed by version.
package domain

import (
	"encoding/json"
	"fmt"
)

// PromptVersionV1 tags summaries produced with the v1 prompt/schema pair.
// New schema revisions get a new tag; rows are interpreted by their own tag.
const PromptVersionV1 = "v1"

// Summary scopes.
const (
	ScopeSession = "session"
	ScopeDay     = "day"
)

// Action item priorities and the shared open/done status values.
const (
	PriorityLow  = "low"
	PriorityMed  = "med"
	PriorityHigh = "high"

	StatusOpen = "open"
	StatusDone = "done"
)

// SummaryJSON is the v1 structured model output. Exactly these six top-level
// arrays are required; each derived table row is a strict materialization of
// one element of one of them.
type SummaryJSON struct {
	SummaryBullets           []string         `json:"summaryBullets"`
	ActionItems              []ActionItemJSON `json:"actionItems"`
	AgendaSuggestions        []AgendaItemJSON `json:"agendaSuggestions"`
	Reminders                []ReminderJSON   `json:"reminders"`
	ImportantFactsToRemember []string         `json:"importantFactsToRemember"`
	OpenQuestions            []string         `json:"openQuestions"`
}

// ActionItemJSON is one extracted task inside SummaryJSON.
type ActionItemJSON struct {
	Task     string  `json:"task"`
	DueDate  *string `json:"dueDate,omitempty"`
	Priority string  `json:"priority,omitempty"` // low|med|high, defaults to med
	Context  *string `json:"context,omitempty"`
}

// AgendaItemJSON is one follow-up suggestion inside SummaryJSON.
type AgendaItemJSON struct {
	Title           string  `json:"title"`
	Datetime        *string `json:"datetime,omitempty"`
	DurationMinutes *int    `json:"durationMinutes,omitempty"`
	Context         *string `json:"context,omitempty"`
}

// ReminderJSON is one extracted reminder inside SummaryJSON.
type ReminderJSON struct {
	Text            string  `json:"text"`
	TriggerDatetime *string `json:"triggerDateTime,omitempty"`
}

// ParseSummaryJSON decodes and validates a raw model payload against the v1
// schema. All six top-level arrays must be present (empty is fine, absent is
// not); a violation means the model ignored the forced tool schema.
func ParseSummaryJSON(raw []byte) (*SummaryJSON, error) {
	// Decode into a loose map first so "missing" and "empty" are distinguishable.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("summary payload is not a JSON object: %w", err)
	}
	for _, field := range []string{
		"summaryBullets", "actionItems", "agendaSuggestions",
		"reminders", "importantFactsToRemember", "openQuestions",
	} {
		if _, ok := probe[field]; !ok {
			return nil, fmt.Errorf("summary payload missing required field %q", field)
		}
	}

	var s SummaryJSON
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("summary payload does not match v1 schema: %w", err)
	}
	for i := range s.ActionItems {
		if s.ActionItems[i].Priority == "" {
			s.ActionItems[i].Priority = PriorityMed
		}
	}
	return &s, nil
}

// Encode renders the summary back to canonical JSON for storage in
// summaries.raw_json.
func (s *SummaryJSON) Encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
