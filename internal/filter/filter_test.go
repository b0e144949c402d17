package filter

import "testing"

func TestNew(t *testing.T) {
	f := New()
	if f == nil {
		t.Fatal("New returned nil")
	}
	if len(f.phrases) == 0 {
		t.Fatal("New created an empty filter")
	}
}

func TestMatches(t *testing.T) {
	f := NewWithPhrases([]string{"badword", "two words"})

	tests := []struct {
		name    string
		input   string
		matched bool
		phrase  string
	}{
		{"exact match", "badword", true, "badword"},
		{"in sentence", "this is badword here", true, "badword"},
		{"case insensitive", "BADWORD", true, "badword"},
		{"mixed case", "BaDwOrD", true, "badword"},
		{"embedded substring matches", "mybadwording", true, "badword"},
		{"phrase", "you said two words there", true, "two words"},
		{"phrase case insensitive", "TWO WORDS", true, "two words"},
		{"clean text", "hello world", false, ""},
		{"empty text", "", false, ""},
		{"phrase split apart", "two other words", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Matches(tt.input); got != tt.matched {
				t.Errorf("Matches(%q) = %v, want %v", tt.input, got, tt.matched)
			}
			if got := f.Match(tt.input); got != tt.phrase {
				t.Errorf("Match(%q) = %q, want %q", tt.input, got, tt.phrase)
			}
		})
	}
}

func TestMatches_DefaultList(t *testing.T) {
	f := New()

	// A few terms from the default list, including an embedded one.
	for _, text := range []string{
		"onlyfans",
		"check my OnlyFans page",
		"xxxtreme content",
		"John pedo Smith",
	} {
		if !f.Matches(text) {
			t.Errorf("Matches(%q) = false, want true", text)
		}
	}

	for _, text := range []string{
		"hello, how are you?",
		"let's talk about movies",
		"",
	} {
		if f.Matches(text) {
			t.Errorf("Matches(%q) = true (phrase %q), want false", text, f.Match(text))
		}
	}
}

func TestNewWithPhrases_EmptyAndWhitespace(t *testing.T) {
	f := NewWithPhrases([]string{"", "  ", "Valid"})

	if len(f.phrases) != 1 {
		t.Fatalf("expected 1 phrase, got %d", len(f.phrases))
	}
	if !f.Matches("valid") {
		t.Error("expected lower-cased phrase to match")
	}
}

func TestZeroValueMatchesNothing(t *testing.T) {
	var f Filter
	if f.Matches("anything at all") {
		t.Error("zero-value filter matched text")
	}
}
