package textmatch

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello world"},
		{"  multiple   spaces\there ", "multiple spaces here"},
		{"UPPER lower 42", "upper lower 42"},
		{"...", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSimilarity_Identical(t *testing.T) {
	if got := Similarity("The quick brown fox", "the quick brown fox."); got != 1 {
		t.Errorf("expected 1 for normalized-identical texts, got %f", got)
	}
}

func TestSimilarity_SmallError(t *testing.T) {
	// one substituted character in a 19-rune phrase
	got := Similarity("the quick brown fox", "the quick brown fax")
	if got <= 0.9 || got >= 1 {
		t.Errorf("expected similarity just below 1, got %f", got)
	}
}

func TestSimilarity_Unrelated(t *testing.T) {
	if got := Similarity("please read this aloud", "completely different words"); got > 0.5 {
		t.Errorf("expected low similarity for unrelated text, got %f", got)
	}
}

func TestSimilarity_Empty(t *testing.T) {
	if got := Similarity("", ""); got != 1 {
		t.Errorf("two empty texts should match, got %f", got)
	}
	if got := Similarity("something", ""); got != 0 {
		t.Errorf("empty transcript should score 0, got %f", got)
	}
}

func TestMatches(t *testing.T) {
	if !Matches("say this phrase now", "say this phrase now", 0.82) {
		t.Error("exact transcript should match")
	}
	if Matches("say this phrase now", "unrelated babble entirely", 0.82) {
		t.Error("unrelated transcript should not match")
	}
}
