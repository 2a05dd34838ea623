package moderation

import "regexp"

// Placeholder tokens for redacted numbers.
const (
	TokenPhone   = "[REDACTED_PHONE]"
	TokenCard    = "[REDACTED_CC]"
	TokenSSN     = "[REDACTED_SSN]"
	TokenAccount = "[REDACTED_ACCOUNT]"
)

var (
	// indianMobilePattern matches 10 digit mobile numbers starting with 6-9,
	// with an optional +91 / 91 prefix and an optional separator in the middle:
	//   9876543210, +91 98765 43210, 91-9876543210
	indianMobilePattern = regexp.MustCompile(`(?:\+91[\s-]?|\b(?:91[\s-]?)?)[6-9]\d{4}[\s-]?\d{5}\b`)

	// intlPhonePattern matches separated digit groups with an optional
	// country code: +1-555-123-4567, (555) 123-4567, 555.123.4567.
	// At least two separators are required so that plain numbers like
	// years or prices do not match.
	intlPhonePattern = regexp.MustCompile(`(?:\+\d{1,4}[\s.-]?)?(?:\(\d{2,4}\)\s?|\b\d{2,4}[\s.-])\d{3,4}[\s.-]\d{3,4}\b`)

	// creditCardPattern matches 13-19 digits, optionally separated by
	// single spaces or dashes. No Luhn check.
	creditCardPattern = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)

	// ssnPattern matches US social security numbers (NNN-NN-NNNN).
	ssnPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)

	// bankAccountPattern matches any bare run of 6-17 digits. Deliberately
	// wide: arbitrary long numbers are treated as account numbers.
	bankAccountPattern = regexp.MustCompile(`\b\d{6,17}\b`)
)

// numberRule pairs a pattern with its subtype and redaction token.
type numberRule struct {
	pattern *regexp.Regexp
	subtype Subtype
	token   string
}

// numberRules is applied in order by both detection and censoring. Phone
// patterns come first; once a span is replaced by a token the wider card and
// account patterns no longer see its digits.
var numberRules = []numberRule{
	{pattern: indianMobilePattern, subtype: SubtypePhone, token: TokenPhone},
	{pattern: intlPhonePattern, subtype: SubtypePhone, token: TokenPhone},
	{pattern: creditCardPattern, subtype: SubtypeCreditCard, token: TokenCard},
	{pattern: ssnPattern, subtype: SubtypeSSN, token: TokenSSN},
	{pattern: bankAccountPattern, subtype: SubtypeBankAccount, token: TokenAccount},
}

// DetectNumberViolations returns every phone, card, SSN and account number
// found in text. Subtypes are detected independently, so one digit run can
// be reported more than once.
func DetectNumberViolations(text string) []Match {
	var matches []Match
	for _, rule := range numberRules {
		for _, m := range rule.pattern.FindAllString(text, -1) {
			matches = append(matches, Match{Pattern: m, Subtype: rule.subtype})
		}
	}
	return matches
}

// CensorNumbers replaces detected numbers with their placeholder tokens.
func CensorNumbers(text string) string {
	for _, rule := range numberRules {
		text = rule.pattern.ReplaceAllLiteralString(text, rule.token)
	}
	return text
}
