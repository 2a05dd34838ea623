package moderation

import (
	"regexp"
	"strings"
)

// Placeholder tokens for redacted links.
const (
	TokenLink      = "[REDACTED_LINK]"
	TokenShortLink = "[REDACTED_SHORT_LINK]"
	TokenFile      = "[REDACTED_FILE]"
	TokenDomain    = "[REDACTED_DOMAIN]"
)

// shortenerDomains is the curated list of URL shortening services.
var shortenerDomains = []string{
	`bit\.ly`, `bitly\.com`, `tinyurl\.com`, `goo\.gl`, `t\.co`, `ow\.ly`,
	`is\.gd`, `buff\.ly`, `adf\.ly`, `cutt\.ly`, `rebrand\.ly`, `shorturl\.at`,
	`tiny\.cc`, `rb\.gy`, `s\.id`, `v\.gd`, `lnkd\.in`, `shorte\.st`,
}

var (
	urlPattern = regexp.MustCompile(`(?i)\b(?:https?|ftp)://[^\s<>"']+`)

	shortenerPattern = regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.)?(?:` + strings.Join(shortenerDomains, "|") + `)/[^\s<>"']*`)

	// filePathPattern matches protocol URLs that point straight at a file.
	filePathPattern = regexp.MustCompile(`(?i)\b(?:https?|ftp)://[^\s<>"']+\.(?:exe|msi|apk|dmg|bat|cmd|sh|jar|zip|rar|7z|tar|gz|iso|pdf|docx?|xlsx?|pptx?)\b`)

	// domainPattern matches bare domain names whose labels are all at least
	// two characters long ("acme.com", "mail.example.org" but not "a.b").
	// The leading group rejects the host part of an email address; findDomains
	// drops a match directly followed by '@', which is the local part.
	domainPattern = regexp.MustCompile(`(?i)(?:^|[^@\w.-])((?:[a-z0-9][a-z0-9-]*[a-z0-9]\.)+[a-z]{2,})\b`)
)

// DetectLinkViolations returns URLs, shortened links, file links and bare
// domain names found in text.
func DetectLinkViolations(text string) []Match {
	var matches []Match
	for _, m := range urlPattern.FindAllString(text, -1) {
		matches = append(matches, Match{Pattern: m, Subtype: SubtypeURL})
	}
	for _, m := range shortenerPattern.FindAllString(text, -1) {
		matches = append(matches, Match{Pattern: m, Subtype: SubtypeShortenedURL})
	}
	for _, m := range filePathPattern.FindAllString(text, -1) {
		matches = append(matches, Match{Pattern: m, Subtype: SubtypeURL})
	}
	for _, m := range findDomains(text) {
		matches = append(matches, Match{Pattern: m, Subtype: SubtypeDomain})
	}
	return matches
}

// ContainsSuspiciousLinks reports whether text carries a full URL, a
// shortened link or a file link.
func ContainsSuspiciousLinks(text string) bool {
	return urlPattern.MatchString(text) ||
		shortenerPattern.MatchString(text) ||
		filePathPattern.MatchString(text)
}

// CensorLinks redacts links. Bare domains are only redacted when the text
// is suspicious on its own; "our site is acme.com" stays untouched.
func CensorLinks(text string) string {
	suspicious := ContainsSuspiciousLinks(text)

	text = shortenerPattern.ReplaceAllLiteralString(text, TokenShortLink)
	text = filePathPattern.ReplaceAllLiteralString(text, TokenFile)
	text = urlPattern.ReplaceAllLiteralString(text, TokenLink)
	if suspicious {
		text = replaceDomains(text, TokenDomain)
	}
	return text
}

func findDomains(text string) []string {
	var out []string
	for _, loc := range domainLocs(text) {
		out = append(out, text[loc[2]:loc[3]])
	}
	return out
}

func domainLocs(text string) [][]int {
	locs := domainPattern.FindAllStringSubmatchIndex(text, -1)
	kept := locs[:0]
	for _, loc := range locs {
		if loc[3] < len(text) && text[loc[3]] == '@' {
			continue
		}
		kept = append(kept, loc)
	}
	return kept
}

// replaceDomains substitutes only the captured domain, keeping the
// delimiter consumed in front of it.
func replaceDomains(text, token string) string {
	locs := domainLocs(text)
	if len(locs) == 0 {
		return text
	}
	var b []byte
	last := 0
	for _, loc := range locs {
		b = append(b, text[last:loc[2]]...)
		b = append(b, token...)
		last = loc[3]
	}
	b = append(b, text[last:]...)
	return string(b)
}
