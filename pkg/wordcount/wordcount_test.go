package wordcount

import (
	"slices"
	"testing"
)

func TestTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace only", "  \n\t ", nil},
		{"punctuation stripped", "So, um, I think.", []string{"So", "um", "I", "think"}},
		{"contraction splits", "don't", []string{"don", "t"}},
		{"digits and underscores", "route_66 is open", []string{"route_66", "is", "open"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Tokens(tc.text)
			if !slices.Equal(got, tc.want) {
				t.Errorf("Tokens(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}
