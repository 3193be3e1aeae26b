// Package ner extracts candidate named-entity mentions (people, places,
// organizations) from OCR'd segment text. No entity-extraction library
// appears anywhere in the retrieved corpus, so this is a heuristic
// capitalized-run tagger in the style of a quick preprocessing pass: a
// human reviewer (the out-of-scope entity editor) is expected to curate
// its output, not trust it verbatim.
package ner

import (
	"regexp"
	"strings"
)

// stopWords are common sentence-initial capitalized words that would
// otherwise be misread as proper nouns.
var stopWords = map[string]bool{
	"The": true, "A": true, "An": true, "This": true, "That": true,
	"In": true, "On": true, "At": true, "It": true, "He": true, "She": true,
	"They": true, "We": true, "You": true, "His": true, "Her": true,
}

// capitalizedRunRE matches a run of one or more consecutive
// capitalized words, the shape a proper noun phrase takes in
// English-language OCR text.
var capitalizedRunRE = regexp.MustCompile(`\b[A-Z][a-zA-Z.]*(?:\s+[A-Z][a-zA-Z.]*)*\b`)

// minMentionLength discards one- and two-character OCR noise matches.
const minMentionLength = 3

// Extract returns deduplicated candidate entity mentions from text,
// in first-seen order.
func Extract(text string) []string {
	var out []string
	seen := map[string]bool{}

	for _, match := range capitalizedRunRE.FindAllString(text, -1) {
		match = strings.TrimSpace(match)
		if len(match) < minMentionLength {
			continue
		}
		words := strings.Fields(match)
		if len(words) == 1 && stopWords[words[0]] {
			continue
		}
		if seen[match] {
			continue
		}
		seen[match] = true
		out = append(out, match)
	}
	return out
}
