package stages

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrEmptyImage is returned when the capture input carries neither a name nor
// bytes to work from.
var ErrEmptyImage = errors.New("stages: empty image input")

var knownColors = []string{
	"black", "white", "red", "blue", "green", "yellow", "orange",
	"purple", "pink", "brown", "gray", "grey", "silver", "gold", "navy",
}

var knownLabels = []string{
	"bottle", "mug", "backpack", "headphones", "sneaker", "shoe", "watch",
	"lamp", "keyboard", "mouse", "notebook", "chair", "jacket", "sunglasses",
}

var knownBrands = []string{
	"acme", "northpeak", "lumina", "vertex", "orbit", "cascade", "solstice",
}

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// HeuristicVision derives a hypothesis from image metadata. It stands in for
// the vision model collaborator and doubles as its deterministic fallback.
type HeuristicVision struct{}

// NewHeuristicVision creates a heuristic vision stage.
func NewHeuristicVision() *HeuristicVision { return &HeuristicVision{} }

// Capture implements Vision.
func (v *HeuristicVision) Capture(_ context.Context, image ImageInput) (*Hypothesis, error) {
	if image.Name == "" && len(image.Bytes) == 0 {
		return nil, ErrEmptyImage
	}

	base := strings.ToLower(strings.TrimSuffix(filepath.Base(image.Name), filepath.Ext(image.Name)))
	tokens := tokenSplit.Split(base, -1)

	hypo := &Hypothesis{Label: "item", Confidence: 0.3}
	for _, tok := range tokens {
		switch {
		case contains(knownLabels, tok):
			hypo.Label = normalizeLabel(tok)
			hypo.Confidence += 0.4
		case contains(knownBrands, tok):
			hypo.Brand = capitalize(tok)
			hypo.Confidence += 0.15
		case contains(knownColors, tok):
			hypo.Color = tok
			hypo.Confidence += 0.15
		}
	}
	if hypo.Confidence > 0.99 {
		hypo.Confidence = 0.99
	}
	return hypo, nil
}

func normalizeLabel(tok string) string {
	if tok == "shoe" {
		return "sneaker"
	}
	if tok == "grey" {
		return "gray"
	}
	return tok
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
