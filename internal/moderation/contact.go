package moderation

import (
	"regexp"
	"strings"
)

// Placeholder tokens for redacted contact details.
const (
	TokenEmail    = "[REDACTED_EMAIL]"
	TokenInsta    = "[REDACTED_INSTA]"
	TokenFacebook = "[REDACTED_FB]"
	TokenX        = "[REDACTED_X]"
	TokenLinkedIn = "[REDACTED_LINKEDIN]"
	TokenTikTok   = "[REDACTED_TIKTOK]"
	TokenTelegram = "[REDACTED_TELEGRAM]"
	TokenHandle   = " [REDACTED_HANDLE]" // the handle pattern consumes the preceding space
	TokenAddress  = "[REDACTED_ADDRESS]"
	TokenZip      = "[REDACTED_ZIP]"
	TokenCoords   = "[REDACTED_COORDS]"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	// handlePattern matches @mentions and #hashtags at the start of the text
	// or after whitespace. Any word after @ or # counts.
	handlePattern = regexp.MustCompile(`(?:^|\s)[@#]\w+`)

	// streetAddressPattern is a naive heuristic: a 1-5 digit house number,
	// up to four words, then a street-type word.
	streetAddressPattern = regexp.MustCompile(`(?i)\b\d{1,5}\s+(?:[a-z0-9'.-]+\s+){0,4}?(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|court|ct|place|terrace|parkway|pkwy|highway|hwy|square|sq|marg|nagar)\b\.?`)

	zipPattern = regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`)

	// coordinatePattern is the loose decimal pair: 12.97, 77.59
	coordinatePattern = regexp.MustCompile(`-?\d{1,3}\.\d+\s*,\s*-?\d{1,3}\.\d+`)

	// latLongPattern is the strict pair with at least four decimal places.
	latLongPattern = regexp.MustCompile(`-?\d{1,3}\.\d{4,}\s*,\s*-?\d{1,3}\.\d{4,}`)
)

// platformRule describes a social network whose profile links are redacted
// with a platform-specific token.
type platformRule struct {
	name    string
	pattern *regexp.Regexp
	token   string
}

// platformRules lists the supported social networks. Each pattern requires
// a path segment after the domain so bare mentions like "instagram.com" are
// left to the link detector.
var platformRules = []platformRule{
	{name: "instagram", token: TokenInsta, pattern: regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.)?(?:instagram\.com|instagr\.am)/[\w.]+/?`)},
	{name: "facebook", token: TokenFacebook, pattern: regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.|m\.)?(?:facebook\.com|fb\.com|fb\.me)/[\w.]+/?`)},
	{name: "x", token: TokenX, pattern: regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.|mobile\.)?(?:twitter\.com|x\.com)/\w+/?`)},
	{name: "linkedin", token: TokenLinkedIn, pattern: regexp.MustCompile(`(?i)\b(?:https?://)?(?:[a-z]{2,3}\.)?linkedin\.com/(?:in|company|pub)/[\w-]+/?`)},
	{name: "tiktok", token: TokenTikTok, pattern: regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.|vm\.)?tiktok\.com/@?[\w.]+/?`)},
	{name: "telegram", token: TokenTelegram, pattern: regexp.MustCompile(`(?i)\b(?:https?://)?(?:t\.me|telegram\.me)/\w+/?`)},
}

// DetectContactViolations returns emails, social handles and profile links,
// and physical location hints (street addresses, zip codes, coordinates).
func DetectContactViolations(text string) []Match {
	var matches []Match

	for _, m := range emailPattern.FindAllString(text, -1) {
		matches = append(matches, Match{Pattern: m, Subtype: SubtypeEmail})
	}

	for _, m := range handlePattern.FindAllString(text, -1) {
		matches = append(matches, Match{Pattern: strings.TrimSpace(m), Subtype: SubtypeSocialMedia})
	}

	// The same profile link can match more than one platform rule (and
	// appear more than once), so profile links go through a set first.
	seen := make(map[string]struct{})
	for _, rule := range platformRules {
		for _, m := range rule.pattern.FindAllString(text, -1) {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			matches = append(matches, Match{Pattern: m, Subtype: SubtypeSocialMedia})
		}
	}

	for _, p := range []*regexp.Regexp{streetAddressPattern, zipPattern, coordinatePattern, latLongPattern} {
		for _, m := range p.FindAllString(text, -1) {
			matches = append(matches, Match{Pattern: m, Subtype: SubtypePhysicalAddress})
		}
	}

	return matches
}

// CensorContacts redacts every contact detail regardless of subtype.
// Platform links are replaced before the generic handle rule runs so that
// a profile URL ends up as a single platform token.
func CensorContacts(text string) string {
	text = emailPattern.ReplaceAllLiteralString(text, TokenEmail)
	for _, rule := range platformRules {
		text = rule.pattern.ReplaceAllLiteralString(text, rule.token)
	}
	text = handlePattern.ReplaceAllLiteralString(text, TokenHandle)
	text = streetAddressPattern.ReplaceAllLiteralString(text, TokenAddress)
	text = zipPattern.ReplaceAllLiteralString(text, TokenZip)
	text = coordinatePattern.ReplaceAllLiteralString(text, TokenCoords)
	return text
}
