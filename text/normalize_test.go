package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "plain ascii untouched", input: "Bank A loan rate", expected: "Bank A loan rate"},
		{name: "collapses whitespace", input: "  home   loan \t rate\n\n10% ", expected: "home loan rate 10%"},
		{name: "strips accents", input: "résumé café", expected: "resume cafe"},
		{name: "drops non-latin", input: "rate ₹ 5 lakh", expected: "rate 5 lakh"},
		{name: "compatibility forms", input: "ﬁnance x²", expected: "finance x2"},
		{name: "non-breaking space separates", input: "home\u00a0loan", expected: "home loan"},
		{name: "control characters dropped", input: "loan\x00\x07rate", expected: "loanrate"},
		{name: "only unprintable", input: "中文", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"  Crème brûlée\tloan  ", "EMI: ₹12,000/month", "a\nb\rc"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "lowercases", input: "Bank A Loan", expected: []string{"bank", "a", "loan"}},
		{name: "punctuation splits", input: "rate: 10%, fixed", expected: []string{"rate", "10", "fixed"}},
		{name: "dotted keys split", input: "bank_a.home_loan.rate", expected: []string{"bank", "a", "home", "loan", "rate"}},
		{name: "only punctuation", input: "?!.,", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(tt.expected) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}
