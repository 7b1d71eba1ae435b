package stages

import (
	"context"
	"errors"
	"testing"
)

func TestHeuristicIntent_Confirm(t *testing.T) {
	intent := NewHeuristicIntent()
	hypo := &Hypothesis{Label: "bottle", Brand: "Acme", Color: "blue", Confidence: 0.8}

	tests := []struct {
		name       string
		userText   string
		wantItem   string
		wantColor  string
		wantQty    int
		wantBudget float64
	}{
		{
			name:     "no text keeps hypothesis",
			userText: "",
			wantItem: "bottle", wantColor: "blue", wantQty: 1,
		},
		{
			name:     "budget extraction",
			userText: "under $30 please",
			wantItem: "bottle", wantColor: "blue", wantQty: 1, wantBudget: 30,
		},
		{
			name:     "quantity multiplier",
			userText: "x3",
			wantItem: "bottle", wantColor: "blue", wantQty: 3,
		},
		{
			name:     "quantity in words",
			userText: "two of these",
			wantItem: "bottle", wantColor: "blue", wantQty: 2,
		},
		{
			name:     "text overrides color",
			userText: "the green one",
			wantItem: "bottle", wantColor: "green", wantQty: 1,
		},
		{
			name:     "text overrides item",
			userText: "actually the mug",
			wantItem: "mug", wantColor: "blue", wantQty: 1,
		},
		{
			name:     "combined",
			userText: "2 units of the red mug, budget $45.50",
			wantItem: "mug", wantColor: "red", wantQty: 2, wantBudget: 45.50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := intent.Confirm(context.Background(), hypo, tt.userText)
			if err != nil {
				t.Fatalf("Confirm failed: %v", err)
			}
			if got.Item != tt.wantItem {
				t.Errorf("Item = %q, want %q", got.Item, tt.wantItem)
			}
			if got.Color != tt.wantColor {
				t.Errorf("Color = %q, want %q", got.Color, tt.wantColor)
			}
			if got.Quantity != tt.wantQty {
				t.Errorf("Quantity = %d, want %d", got.Quantity, tt.wantQty)
			}
			if got.BudgetUSD != tt.wantBudget {
				t.Errorf("BudgetUSD = %v, want %v", got.BudgetUSD, tt.wantBudget)
			}
			if got.Brand != "Acme" {
				t.Errorf("Brand = %q, want Acme carried over", got.Brand)
			}
		})
	}
}

func TestHeuristicIntent_RequiresHypothesis(t *testing.T) {
	intent := NewHeuristicIntent()
	if _, err := intent.Confirm(context.Background(), nil, "anything"); !errors.Is(err, ErrNoHypothesis) {
		t.Errorf("Confirm(nil) err = %v, want ErrNoHypothesis", err)
	}
	if _, err := intent.Confirm(context.Background(), &Hypothesis{}, "anything"); !errors.Is(err, ErrNoHypothesis) {
		t.Errorf("Confirm(empty label) err = %v, want ErrNoHypothesis", err)
	}
}
