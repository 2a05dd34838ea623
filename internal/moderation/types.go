package moderation

// Category identifies which detector produced a violation.
type Category string

const (
	CategoryNumber    Category = "number"
	CategoryContact   Category = "contact"
	CategoryLink      Category = "link"
	CategoryProfanity Category = "profanity"
)

// Subtype narrows a Match within its category.
type Subtype string

// Number subtypes.
const (
	SubtypePhone       Subtype = "phone"
	SubtypeCreditCard  Subtype = "creditCard"
	SubtypeSSN         Subtype = "ssn"
	SubtypeBankAccount Subtype = "bankAccount"
)

// Contact subtypes.
const (
	SubtypeEmail           Subtype = "email"
	SubtypeSocialMedia     Subtype = "socialMedia"
	SubtypePhysicalAddress Subtype = "physicalAddress"
)

// Link subtypes.
const (
	SubtypeURL          Subtype = "url"
	SubtypeDomain       Subtype = "domain"
	SubtypeShortenedURL Subtype = "shortenedUrl"
)

// Severity controls whether a violation blocks delivery.
type Severity string

const (
	// SeverityWarning is reported (and possibly censored) but never blocks.
	SeverityWarning Severity = "warning"
	// SeverityBlock forces Result.IsAllowed to false.
	SeverityBlock Severity = "block"
)

// ProfanityLevel grades how much profanity a message contains.
type ProfanityLevel string

const (
	ProfanityLow    ProfanityLevel = "low"
	ProfanityMedium ProfanityLevel = "medium"
	ProfanityHigh   ProfanityLevel = "high"
)

// Match is a single detected occurrence.
type Match struct {
	Pattern string  `json:"pattern"` // exact detected substring
	Subtype Subtype `json:"subtype"`
}

// Violation is one category's aggregated finding for a message.
type Violation struct {
	Category    Category `json:"category"`
	Matches     []string `json:"matches"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Result is the outcome of moderating one message.
type Result struct {
	IsAllowed      bool        `json:"isAllowed"`
	Violations     []Violation `json:"violations"`
	CleanContent   string      `json:"cleanContent"`
	FlaggedIndices []int       `json:"flaggedIndices"`
}

// Blocked reports whether any violation carries block severity.
func (r Result) Blocked() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Categories returns the categories of all violations in evaluation order.
func (r Result) Categories() []Category {
	out := make([]Category, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Category)
	}
	return out
}

// patterns extracts the raw strings from a slice of matches, preserving order.
func patterns(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Pattern)
	}
	return out
}
