package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// Lal Kitab style books are organized as "Planet in Nth House" sections; the
// section boundaries also carry the retrieval metadata.
var headingRe = regexp.MustCompile(
	`(?mi)^(Sun|Moon|Mars|Mercury|Jupiter|Venus|Saturn|Rahu|Ketu)\s+in\s+(\d{1,2}|I)(?:st|nd|rd|th)?\s+house`)

// section is a contiguous stretch of source text, planet-house scoped when it
// sits under a recognized heading.
type section struct {
	Planet  string
	House   int
	Heading string
	Text    string
}

// splitRuleSections cuts the text at every planet-house heading. Text before
// the first heading (or a text with no headings at all) becomes an unscoped
// section so nothing is dropped.
func splitRuleSections(text string) []section {
	matches := headingRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []section{{Text: text}}
	}

	var out []section
	if pre := strings.TrimSpace(text[:matches[0][0]]); pre != "" {
		out = append(out, section{Text: pre})
	}

	for i, m := range matches {
		start := m[0]
		end := len(text)
		if i < len(matches)-1 {
			end = matches[i+1][0]
		}

		planet := capitalize(text[m[2]:m[3]])
		house := parseHouse(text[m[4]:m[5]])
		sec := section{
			Heading: text[m[0]:m[1]],
			Text:    strings.TrimSpace(text[start:end]),
		}
		if house >= 1 && house <= 12 {
			sec.Planet = planet
			sec.House = house
		}
		out = append(out, sec)
	}
	return out
}

func parseHouse(s string) int {
	if strings.EqualFold(s, "I") {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
