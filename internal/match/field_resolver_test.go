package match

import "testing"

func TestFieldResolverSubstringStage(t *testing.T) {
	fr := NewFieldResolver()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"exact alias", "what is the sensor serial", "sensor_serial"},
		{"truncated alias", "whats their account numb", "account_number"},
		{"alias inside sentence", "what generation do they have", "system_model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := fr.Resolve(tt.input)
			if !ok {
				t.Fatalf("Resolve(%q) ok = false", tt.input)
			}
			if m.Column != tt.want {
				t.Errorf("Resolve(%q) column = %q, want %q", tt.input, m.Column, tt.want)
			}
			if m.Score != 1.0 {
				t.Errorf("substring hit score = %.3f, want 1.0", m.Score)
			}
		})
	}
}

func TestFieldResolverTFIDFFallback(t *testing.T) {
	fr := NewFieldResolver()

	// "jane" on its own is no alias, so the substring stage misses and
	// the similarity stage has to place it.
	m, ok := fr.Resolve("anything from jane")
	if !ok {
		t.Fatal("Resolve ok = false, want TF-IDF fallback match")
	}
	if m.Column != "jane_notes" {
		t.Errorf("column = %q, want jane_notes", m.Column)
	}
	if m.Score <= 0 || m.Score >= 1.0 {
		t.Errorf("TF-IDF score = %.3f, want in (0, 1)", m.Score)
	}
}

func TestFieldResolverNoMatch(t *testing.T) {
	fr := NewFieldResolver()
	if m, ok := fr.Resolve("xyzzy plugh"); ok {
		t.Errorf("Resolve on gibberish = %+v, want no match", m)
	}
}
