package moderation

import "strings"

// DefaultCensorChar masks profanity in CensorProfanity.
const DefaultCensorChar = '*'

// DetectProfanity returns the distinct profane words found in text for the
// given languages, lower-cased, in first-seen order. Languages missing from
// the lexicon are skipped.
func DetectProfanity(text string, languages []string) []string {
	if text == "" || len(languages) == 0 {
		return nil
	}
	lower := strings.ToLower(text)

	var found []string
	seen := make(map[string]struct{})
	for _, lang := range languages {
		for _, entry := range lexicon.lookup(normalizeLanguage(lang)) {
			for _, m := range entry.find(lower) {
				if _, dup := seen[m]; dup {
					continue
				}
				seen[m] = struct{}{}
				found = append(found, m)
			}
		}
	}
	return found
}

// CensorProfanity masks every profane word with censorChar, one per rune,
// so the masked text keeps its length. A zero censorChar means
// DefaultCensorChar.
func CensorProfanity(text string, languages []string, censorChar rune) string {
	if censorChar == 0 {
		censorChar = DefaultCensorChar
	}
	for _, lang := range languages {
		for _, entry := range lexicon.lookup(normalizeLanguage(lang)) {
			text = entry.mask(text, censorChar)
		}
	}
	return text
}

// ProfanitySeverity grades a count of distinct profane words:
// 0-1 is low, 2-3 medium, 4 or more high.
func ProfanitySeverity(count int) ProfanityLevel {
	switch {
	case count >= 4:
		return ProfanityHigh
	case count >= 2:
		return ProfanityMedium
	default:
		return ProfanityLow
	}
}
