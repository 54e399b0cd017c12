package content

import "testing"

func TestCanonicalizeCollapsesWhitespace(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Sold out", "Sold out"},
		{"runs", "Sold   out", "Sold out"},
		{"newlines", "Sold\nout\n\ttoday", "Sold out today"},
		{"leading trailing", "  Sold out \n", "Sold out"},
		{"empty", "", ""},
		{"only whitespace", " \n\t ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Canonicalize(tc.in); got != tc.want {
				t.Fatalf("Canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFingerprintStableAcrossReformatting(t *testing.T) {
	a, hashA := Normalize("Tickets  available\nnow")
	b, hashB := Normalize("Tickets available now")

	if a != b {
		t.Fatalf("canonical forms differ: %q vs %q", a, b)
	}
	if hashA != hashB {
		t.Fatalf("fingerprints differ for identical canonical text")
	}
	if len(hashA) != 64 {
		t.Fatalf("expected sha256 hex digest, got %d chars", len(hashA))
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	_, hashA := Normalize("Sold out")
	_, hashB := Normalize("Sold out!")
	if hashA == hashB {
		t.Fatalf("distinct content produced the same fingerprint")
	}
}

func TestContainsIsCaseSensitive(t *testing.T) {
	canonical := Canonicalize("Event status: Sold out until further notice")

	if !Contains(canonical, "Sold out") {
		t.Fatalf("expected fragment to be found")
	}
	if Contains(canonical, "sold out") {
		t.Fatalf("match must be case-sensitive")
	}
	if Contains(canonical, "Sold  out") {
		t.Fatalf("fragment is matched against collapsed text verbatim")
	}
}
