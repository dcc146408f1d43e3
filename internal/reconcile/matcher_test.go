package reconcile

import "testing"

func TestScore_SpellingDriftMatches(t *testing.T) {
	// A one-letter transcription drift of a roster name with an overlapping
	// description must clear the prompt threshold.
	got := score(
		"Leosin Erentar", "a monk ally captured by the cult",
		"Leosin Erantar", "a monk of the Order of the Gauntlet, ally of the party, captured by the cult")
	if got <= 0.6 {
		t.Errorf("confidence: got %.3f, want > 0.6", got)
	}
}

func TestScore_UnrelatedNameDoesNotMatch(t *testing.T) {
	got := score(
		"Bob the Blacksmith", "forges horseshoes in a quiet village",
		"Leosin Erantar", "a monk of the Order of the Gauntlet")
	if got >= minMatchConfidence {
		t.Errorf("confidence: got %.3f, want < %.2f", got, minMatchConfidence)
	}
}

func TestPhoneticScore(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"homophone tokens", "Leosin Erantar", "Leosin Erentar", 1},
		{"token count mismatch", "Leosin", "Leosin Erantar", 0},
		{"unrelated", "Bob Smith", "Leosin Erantar", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := phoneticScore(tc.a, tc.b); got != tc.want {
				t.Errorf("phoneticScore(%q, %q) = %.2f, want %.2f", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestTokenOverlap(t *testing.T) {
	if got := tokenOverlap("", "anything at all"); got != 0 {
		t.Errorf("empty text overlap: got %.2f, want 0", got)
	}
	if got := tokenOverlap("the monk ally", "the monk ally"); got != 1 {
		t.Errorf("identical text overlap: got %.2f, want 1", got)
	}
}

func TestStripConnectives(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"actually it's Frulam Mondath", "Frulam Mondath"},
		{"that is Frulam Mondath.", "Frulam Mondath"},
		{"Frulam Mondath", "Frulam Mondath"},
		{"it's it's", ""},
	}
	for _, tc := range cases {
		if got := stripConnectives(tc.in); got != tc.want {
			t.Errorf("stripConnectives(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
