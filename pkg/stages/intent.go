package stages

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoHypothesis is returned when intent confirmation runs without a capture
// result.
var ErrNoHypothesis = errors.New("stages: intent confirmation requires a hypothesis")

var (
	budgetPattern   = regexp.MustCompile(`(?:under|below|max|budget)?\s*\$\s*(\d+(?:\.\d{1,2})?)`)
	quantityPattern = regexp.MustCompile(`(?:x\s*(\d+)|(\d+)\s*(?:of them|pieces|units|pcs))`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// HeuristicIntent confirms purchase intent from the hypothesis plus free-form
// user text. User text wins over the hypothesis for color, quantity and
// budget.
type HeuristicIntent struct{}

// NewHeuristicIntent creates a heuristic intent stage.
func NewHeuristicIntent() *HeuristicIntent { return &HeuristicIntent{} }

// Confirm implements IntentConfirmer.
func (s *HeuristicIntent) Confirm(_ context.Context, hypothesis *Hypothesis, userText string) (*Intent, error) {
	if hypothesis == nil || hypothesis.Label == "" {
		return nil, ErrNoHypothesis
	}

	intent := &Intent{
		Item:     hypothesis.Label,
		Color:    hypothesis.Color,
		Brand:    hypothesis.Brand,
		Quantity: 1,
	}

	text := strings.ToLower(strings.TrimSpace(userText))
	if text == "" {
		return intent, nil
	}

	if m := budgetPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			intent.BudgetUSD = v
		}
	}
	if m := quantityPattern.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if q, err := strconv.Atoi(raw); err == nil && q > 0 {
			intent.Quantity = q
		}
	}
	for _, tok := range tokenSplit.Split(text, -1) {
		if q, ok := numberWords[tok]; ok && intent.Quantity == 1 {
			intent.Quantity = q
		}
		if contains(knownColors, tok) {
			intent.Color = normalizeLabel(tok)
		}
		if contains(knownLabels, tok) {
			intent.Item = normalizeLabel(tok)
		}
	}
	return intent, nil
}
