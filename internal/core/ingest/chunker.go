package ingest

import "strings"

// buildChunks turns rule sections into position-numbered chunks. Sections that
// fit in the target window stay whole; longer ones are split into overlapping
// windows that inherit the section's planet-house metadata.
func buildChunks(sections []section, targetTokens, overlapTokens int) []chunk {
	var out []chunk
	pos := 0
	for _, sec := range sections {
		for _, piece := range windowSplit(sec.Text, targetTokens, overlapTokens) {
			out = append(out, chunk{
				Pos:      pos,
				Planet:   sec.Planet,
				House:    sec.House,
				Heading:  sec.Heading,
				Text:     piece,
				TokenCnt: approxTokens(piece),
			})
			pos++
		}
	}
	return out
}

// windowSplit groups lines into token-bounded pieces, retaining roughly
// overlapTokens from the end of each piece as the seed of the next so
// cross-boundary context survives retrieval.
func windowSplit(text string, targetTokens, overlapTokens int) []string {
	var (
		pieces []string
		buf    []string
		tokSum int
		fresh  bool // buf holds lines not yet emitted (beyond carried overlap)
	)

	flush := func() {
		if tokSum == 0 {
			return
		}
		fresh = false
		pieces = append(pieces, strings.Join(buf, "\n"))

		if overlapTokens > 0 {
			// Keep a tail whose token sum is about overlapTokens.
			keep := []string{}
			remain := overlapTokens
			for j := len(buf) - 1; j >= 0 && remain > 0; j-- {
				keep = append([]string{buf[j]}, keep...) // prepend to keep original order
				remain -= approxTokens(buf[j])
			}
			buf = keep
			tokSum = 0
			for _, s := range buf {
				tokSum += approxTokens(s)
			}
		} else {
			buf = buf[:0]
			tokSum = 0
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		buf = append(buf, line)
		tokSum += approxTokens(line)
		fresh = true
		if tokSum >= targetTokens {
			flush()
		}
	}

	// Emit the remaining tail unless it is pure overlap carried over from an
	// already-emitted piece.
	if tokSum > 0 && fresh {
		pieces = append(pieces, strings.Join(buf, "\n"))
	}
	return pieces
}

// approxTokens is a cheap token estimator (~4 chars per token).
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
