package moderation

import (
	"fmt"
	"strings"
	"sync"
)

// stage is one step of the moderation pipeline. Stages run in table order;
// each one detects on the original text and censors the running buffer.
type stage struct {
	category Category
	enabled  func(cfg *Config) bool
	evaluate func(cfg *Config, text string) (matches []string, severity Severity)
	censor   func(cfg *Config, buf string) string
}

// stages is the fixed evaluation order. Later stages see earlier
// placeholders in the buffer, so reordering changes output.
var stages = []stage{
	{
		category: CategoryNumber,
		enabled:  func(cfg *Config) bool { return cfg.BlockNumbers },
		evaluate: func(_ *Config, text string) ([]string, Severity) {
			return patterns(DetectNumberViolations(text)), SeverityBlock
		},
		censor: func(_ *Config, buf string) string { return CensorNumbers(buf) },
	},
	{
		category: CategoryContact,
		enabled: func(cfg *Config) bool {
			return cfg.BlockEmails || cfg.BlockSocialMedia || cfg.BlockPhysicalAddresses
		},
		evaluate: func(cfg *Config, text string) ([]string, Severity) {
			var kept []string
			for _, m := range DetectContactViolations(text) {
				if contactSubtypeBlocked(cfg, m.Subtype) {
					kept = append(kept, m.Pattern)
				}
			}
			return kept, SeverityBlock
		},
		// Censors every contact shape, not only the enabled subtypes.
		censor: func(_ *Config, buf string) string { return CensorContacts(buf) },
	},
	{
		category: CategoryLink,
		enabled:  func(cfg *Config) bool { return cfg.BlockLinks },
		evaluate: func(_ *Config, text string) ([]string, Severity) {
			return patterns(DetectLinkViolations(text)), SeverityBlock
		},
		censor: func(_ *Config, buf string) string { return CensorLinks(buf) },
	},
	{
		category: CategoryProfanity,
		enabled:  func(cfg *Config) bool { return cfg.EnableProfanityFilter },
		evaluate: func(cfg *Config, text string) ([]string, Severity) {
			found := DetectProfanity(text, cfg.ProfanityLanguages)
			if ProfanitySeverity(len(found)) == ProfanityHigh {
				return found, SeverityBlock
			}
			return found, SeverityWarning
		},
		censor: func(cfg *Config, buf string) string {
			if !cfg.CensorProfanity {
				return buf
			}
			return CensorProfanity(buf, cfg.ProfanityLanguages, DefaultCensorChar)
		},
	},
}

func contactSubtypeBlocked(cfg *Config, st Subtype) bool {
	switch st {
	case SubtypeEmail:
		return cfg.BlockEmails
	case SubtypeSocialMedia:
		return cfg.BlockSocialMedia
	case SubtypePhysicalAddress:
		return cfg.BlockPhysicalAddresses
	}
	return false
}

func describe(category Category, matches []string) string {
	switch category {
	case CategoryNumber:
		return fmt.Sprintf("Message contains %d sensitive number(s)", len(matches))
	case CategoryContact:
		return fmt.Sprintf("Message contains %d contact detail(s)", len(matches))
	case CategoryLink:
		return fmt.Sprintf("Message contains %d link(s)", len(matches))
	case CategoryProfanity:
		return fmt.Sprintf("Message contains profanity (%s severity)",
			ProfanitySeverity(len(matches)))
	}
	return string(category)
}

// Engine moderates messages against a Config. It is safe for concurrent
// use; Moderate works on a snapshot of the config taken at call time.
type Engine struct {
	mu  sync.RWMutex
	cfg Config
}

// NewEngine returns an Engine using DefaultConfig.
func NewEngine() *Engine {
	return &Engine{cfg: DefaultConfig()}
}

// NewEngineWithConfig returns an Engine using a copy of cfg.
func NewEngineWithConfig(cfg Config) *Engine {
	return &Engine{cfg: cfg.Clone()}
}

// NewEngineWithOverrides returns an Engine whose config is the default
// with patch merged over it.
func NewEngineWithOverrides(patch ConfigPatch) *Engine {
	return &Engine{cfg: patch.Apply(DefaultConfig())}
}

// Moderate screens text and returns the decision and redacted content.
func (e *Engine) Moderate(text string) Result {
	cfg := e.Config()

	res := Result{
		IsAllowed:      true,
		Violations:     []Violation{},
		CleanContent:   text,
		FlaggedIndices: []int{},
	}
	if text == "" {
		return res
	}

	for _, st := range stages {
		if !st.enabled(&cfg) {
			continue
		}
		matches, severity := st.evaluate(&cfg, text)
		if len(matches) == 0 {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Category:    st.category,
			Matches:     matches,
			Severity:    severity,
			Description: describe(st.category, matches),
		})
		if severity == SeverityBlock {
			res.IsAllowed = false
		}
		res.CleanContent = st.censor(&cfg, res.CleanContent)
	}

	if len(res.Violations) > 0 {
		res.FlaggedIndices = []int{0}
	}
	return res
}

// UpdateConfig merges patch over the current config.
func (e *Engine) UpdateConfig(patch ConfigPatch) {
	e.mu.Lock()
	e.cfg = patch.Apply(e.cfg)
	e.mu.Unlock()
}

// ReplaceConfig swaps the whole config.
func (e *Engine) ReplaceConfig(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg.Clone()
	e.mu.Unlock()
}

// SetPreset replaces the config with a built-in preset. An unknown level
// leaves the config unchanged and returns ErrUnknownPreset.
func (e *Engine) SetPreset(level Level) error {
	cfg, err := Preset(level)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
	return nil
}

// Config returns a copy of the current config.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Clone()
}

// IsTypeBlocked reports the toggle for numbers, emails, links or
// profanity. Any other name reports false.
func (e *Engine) IsTypeBlocked(category string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch strings.ToLower(category) {
	case "numbers":
		return e.cfg.BlockNumbers
	case "emails":
		return e.cfg.BlockEmails
	case "links":
		return e.cfg.BlockLinks
	case "profanity":
		return e.cfg.EnableProfanityFilter
	}
	return false
}
