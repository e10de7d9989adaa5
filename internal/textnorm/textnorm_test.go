package textnorm

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Forever ME", "forever me"},
		{"collapses whitespace", "acme    corp\t shop", "acme corp shop"},
		{"strips punctuation", "what's the (password)?!", "what's the password"},
		{"keeps allowed characters", "b&b - inc. v2.0", "b&b - inc. v2.0"},
		{"punctuation merges whitespace", "a , b", "a b"},
		{"empty", "", ""},
		{"only punctuation", "?!()[]", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"What's the PASSWORD for Acme?!",
		"a , b",
		"  lots    of\t\twhitespace  ",
		"b&b - inc. v2.0",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("What's the Password, please?")
	want := []string{"what's", "the", "password", "please"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokens() = %v, want %v", got, want)
	}
	if Tokens("?!") != nil {
		t.Errorf("Tokens of pure punctuation should be nil")
	}
}
