package ingest

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuildChunksShortSectionStaysWhole(t *testing.T) {
	secs := []section{
		{Planet: "Sun", House: 1, Heading: "Sun in 1st house", Text: "Sun in 1st house\nThe native is bold."},
	}
	chunks := buildChunks(secs, 320, 48)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Pos != 0 || c.Planet != "Sun" || c.House != 1 {
		t.Errorf("metadata not carried: %+v", c)
	}
	if c.TokenCnt != approxTokens(c.Text) {
		t.Errorf("token count %d does not match text", c.TokenCnt)
	}
}

func TestBuildChunksPositionsAreSequential(t *testing.T) {
	long := strings.Repeat("The native prospers when the lamp is lit every evening.\n", 60)
	secs := []section{
		{Planet: "Sun", House: 1, Heading: "Sun in 1st house", Text: long},
		{Planet: "Moon", House: 4, Heading: "Moon in 4th house", Text: "Comforts at home."},
	}
	chunks := buildChunks(secs, 100, 20)
	if len(chunks) < 3 {
		t.Fatalf("long section should split: got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if c.Pos != i {
			t.Errorf("chunk %d has position %d", i, c.Pos)
		}
	}
	last := chunks[len(chunks)-1]
	if last.Planet != "Moon" || last.House != 4 {
		t.Errorf("second section metadata lost: %+v", last)
	}
	for _, c := range chunks[:len(chunks)-1] {
		if c.Planet != "Sun" || c.House != 1 {
			t.Errorf("split pieces must inherit section metadata: %+v", c)
		}
	}
}

func TestBuildChunksDeterministic(t *testing.T) {
	long := strings.Repeat("Saturn delays but never denies the patient native.\n", 40)
	secs := []section{{Planet: "Saturn", House: 10, Heading: "Saturn in 10th house", Text: long}}

	a := buildChunks(secs, 80, 16)
	b := buildChunks(secs, 80, 16)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("chunking is not deterministic")
	}
}

func TestWindowSplitOverlap(t *testing.T) {
	lines := []string{
		"Line one about the first house.",
		"Line two about the second house.",
		"Line three about the third house.",
		"Line four about the fourth house.",
	}
	pieces := windowSplit(strings.Join(lines, "\n"), 16, 8)
	if len(pieces) < 2 {
		t.Fatalf("expected multiple pieces, got %d", len(pieces))
	}
	// Each piece after the first starts with the tail of the previous one.
	for i := 1; i < len(pieces); i++ {
		prevTail := pieces[i-1][strings.LastIndex(pieces[i-1], "\n")+1:]
		if !strings.HasPrefix(pieces[i], prevTail) {
			t.Errorf("piece %d does not carry overlap from piece %d:\nprev tail %q\npiece %q", i, i-1, prevTail, pieces[i])
		}
	}
}

func TestWindowSplitNoTrailingPureOverlap(t *testing.T) {
	// Text sized so the final buffer is exactly the carried overlap.
	text := "aaaa aaaa aaaa aaaa\nbbbb bbbb bbbb bbbb"
	pieces := windowSplit(text, 5, 10)
	joined := strings.Join(pieces, "\n")
	if strings.Count(joined, "bbbb bbbb bbbb bbbb") > 1 {
		t.Errorf("pure-overlap tail was emitted twice: %q", pieces)
	}
}

func TestWindowSplitSkipsBlankLines(t *testing.T) {
	pieces := windowSplit("first line\n\n\n  \nsecond line", 1000, 0)
	if len(pieces) != 1 {
		t.Fatalf("expected 1 piece, got %d", len(pieces))
	}
	if strings.Contains(pieces[0], "\n\n") {
		t.Errorf("blank lines survived: %q", pieces[0])
	}
}

func TestApproxTokens(t *testing.T) {
	cases := map[string]int{"": 0, "abcd": 1, "abcde": 2, "abcdefgh": 2}
	for in, want := range cases {
		if got := approxTokens(in); got != want {
			t.Errorf("approxTokens(%q) = %d, want %d", in, got, want)
		}
	}
}
