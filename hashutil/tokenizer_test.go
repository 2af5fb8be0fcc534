package hashutil

import "testing"

func TestTokenizeMaximalRuns(t *testing.T) {
	cases := []struct {
		name    string
		pattern string
		want    int
	}{
		{"empty", "", 0},
		{"single char run dropped", "a.b", 0},
		{"two runs", "foo.bar", 2},
		{"percent allowed", "foo%20bar", 1},
		{"punctuation boundaries", "||example.com/path?q=1", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Tokenize(tc.pattern)
			if len(got) != tc.want {
				t.Fatalf("Tokenize(%q) = %d tokens, want %d (%v)", tc.pattern, len(got), tc.want, got)
			}
		})
	}
}

func TestTokenizeAtMostOnePerRun(t *testing.T) {
	s := "example.com/ads/banner-300x250.png"
	got := Tokenize(s)
	spans := scanSpans(s)
	want := 0
	for _, sp := range spans {
		if sp.start > 0 && s[sp.start-1] == '*' {
			continue
		}
		if sp.end < len(s) && s[sp.end] == '*' {
			continue
		}
		want++
	}
	if len(got) != want {
		t.Fatalf("got %d tokens, want %d", len(got), want)
	}
}

func TestTokenizeWildcardAdjacency(t *testing.T) {
	got := TokenizeFilter("foo*bar", false, false)
	if len(got) != 0 {
		t.Fatalf("expected wildcard-adjacent tokens to be dropped, got %v", got)
	}
}

func TestTokenizeSkipFirstLast(t *testing.T) {
	full := TokenizeFilter("aaa.bbb.ccc", false, false)
	if len(full) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(full))
	}

	noFirst := TokenizeFilter("aaa.bbb.ccc", true, false)
	if len(noFirst) != 2 || noFirst[0] != full[1] || noFirst[1] != full[2] {
		t.Fatalf("skipFirstToken mismatch: %v vs %v", noFirst, full)
	}

	noLast := TokenizeFilter("aaa.bbb.ccc", false, true)
	if len(noLast) != 2 || noLast[0] != full[0] || noLast[1] != full[1] {
		t.Fatalf("skipLastToken mismatch: %v vs %v", noLast, full)
	}
}

func TestTokenizeStability(t *testing.T) {
	a := Tokenize("example.com/path")
	b := Tokenize("example.com/path")
	if len(a) != len(b) {
		t.Fatalf("non-deterministic token count")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic hash at %d", i)
		}
	}
}
