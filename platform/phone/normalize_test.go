package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := map[string]string{
		"06 12345678":      "+31612345678",
		"+31 6 1234 5678":  "+31612345678",
		"  ":               "",
		"not a number":     "not a number",
		"+44 20 7946 0958": "+442079460958",
	}
	for input, want := range cases {
		if got := NormalizeE164(input); got != want {
			t.Fatalf("NormalizeE164(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDigits(t *testing.T) {
	if got := Digits("06 12345678"); got != "31612345678" {
		t.Fatalf("unexpected digits %q", got)
	}
	if IsDialable("12") {
		t.Fatal("expected short input to be rejected")
	}
}
