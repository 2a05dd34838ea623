package moderation

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

func presetEngine(t testing.TB, level Level) *Engine {
	t.Helper()
	e := NewEngine()
	if err := e.SetPreset(level); err != nil {
		t.Fatalf("SetPreset(%q) error: %v", level, err)
	}
	return e
}

// checkInvariants asserts the properties every Result must hold.
func checkInvariants(t *testing.T, input string, res Result) {
	t.Helper()
	if res.IsAllowed == res.Blocked() {
		t.Errorf("Moderate(%q): IsAllowed=%v but Blocked()=%v", input, res.IsAllowed, res.Blocked())
	}
	if len(res.Violations) == 0 {
		if res.CleanContent != input {
			t.Errorf("Moderate(%q): no violations but CleanContent = %q", input, res.CleanContent)
		}
		if len(res.FlaggedIndices) != 0 {
			t.Errorf("Moderate(%q): no violations but FlaggedIndices = %v", input, res.FlaggedIndices)
		}
	} else if !reflect.DeepEqual(res.FlaggedIndices, []int{0}) {
		t.Errorf("Moderate(%q): FlaggedIndices = %v, want [0]", input, res.FlaggedIndices)
	}
}

func TestModerate_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		level      Level
		input      string
		allowed    bool
		categories []Category
		clean      string
	}{
		{"phone", LevelModerate, "Call me at 9876543210", false,
			[]Category{CategoryNumber}, "Call me at " + TokenPhone},
		{"email", LevelModerate, "reach me at test@example.com", false,
			[]Category{CategoryContact}, "reach me at " + TokenEmail},
		{"shortener", LevelModerate, "check https://bit.ly/xyz123", false,
			[]Category{CategoryLink}, "check " + TokenShortLink},
		{"lenient ignores address", LevelLenient, "123 Main Street, Springfield", true,
			[]Category{}, "123 Main Street, Springfield"},
		{"lenient blocks numbers", LevelLenient, "9876543210", false,
			[]Category{CategoryNumber}, TokenPhone},
		{"strict blocks address", LevelStrict, "I live at 221 Baker Street", false,
			[]Category{CategoryContact}, "I live at " + TokenAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := presetEngine(t, tt.level).Moderate(tt.input)
			checkInvariants(t, tt.input, res)

			if res.IsAllowed != tt.allowed {
				t.Errorf("IsAllowed = %v, want %v", res.IsAllowed, tt.allowed)
			}
			if got := res.Categories(); !reflect.DeepEqual(got, tt.categories) {
				t.Errorf("Categories() = %v, want %v", got, tt.categories)
			}
			if res.CleanContent != tt.clean {
				t.Errorf("CleanContent = %q, want %q", res.CleanContent, tt.clean)
			}
		})
	}
}

func TestModerate_PhoneDigitsRemoved(t *testing.T) {
	res := NewEngine().Moderate("Call me at 9876543210")
	if strings.Contains(res.CleanContent, "9876543210") {
		t.Errorf("CleanContent %q still contains the number", res.CleanContent)
	}
	for _, v := range res.Violations {
		if v.Severity != SeverityBlock {
			t.Errorf("number violation severity = %q, want block", v.Severity)
		}
		if v.Description == "" {
			t.Error("violation has no description")
		}
	}
}

func TestModerate_Empty(t *testing.T) {
	for _, level := range Levels {
		res := presetEngine(t, level).Moderate("")
		if !res.IsAllowed || res.CleanContent != "" {
			t.Errorf("%s: Moderate(\"\") = %+v", level, res)
		}
		if res.Violations == nil || len(res.Violations) != 0 {
			t.Errorf("%s: Violations = %#v, want empty non-nil", level, res.Violations)
		}
	}
}

func TestModerate_CleanInputIsIdentity(t *testing.T) {
	inputs := []string{
		"hey how are you doing today?",
		"see you at 7",
		"   ",
		"नमस्ते, आप कैसे हैं?",
		"வணக்கம்",
	}

	e := presetEngine(t, LevelStrict)
	for _, in := range inputs {
		res := e.Moderate(in)
		checkInvariants(t, in, res)
		if !res.IsAllowed || len(res.Violations) != 0 || res.CleanContent != in {
			t.Errorf("Moderate(%q) = %+v, want identity", in, res)
		}
	}
}

func TestModerate_StageOrder(t *testing.T) {
	in := "call 9876543210 or mail a@b.io, see https://bit.ly/x shit"
	res := presetEngine(t, LevelStrict).Moderate(in)
	checkInvariants(t, in, res)

	want := []Category{CategoryNumber, CategoryContact, CategoryLink, CategoryProfanity}
	if got := res.Categories(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Categories() = %v, want %v", got, want)
	}
	if res.Violations[3].Severity != SeverityWarning {
		t.Errorf("single profanity severity = %q, want warning", res.Violations[3].Severity)
	}
	wantClean := "call " + TokenPhone + " or mail " + TokenEmail + ", see " + TokenShortLink + " ****"
	if res.CleanContent != wantClean {
		t.Errorf("CleanContent = %q, want %q", res.CleanContent, wantClean)
	}
}

func TestModerate_ContactGating(t *testing.T) {
	in := "reach me at test@example.com"
	e := NewEngineWithConfig(Config{BlockSocialMedia: true})

	res := e.Moderate(in)
	checkInvariants(t, in, res)
	if !res.IsAllowed || len(res.Violations) != 0 || res.CleanContent != in {
		t.Errorf("Moderate(%q) with emails unblocked = %+v", in, res)
	}
}

func TestModerate_ContactCensorsAllSubtypes(t *testing.T) {
	in := "follow @jane at 221 Baker Street"
	res := NewEngine().Moderate(in)
	checkInvariants(t, in, res)

	if len(res.Violations) != 1 {
		t.Fatalf("Violations = %+v, want one contact violation", res.Violations)
	}
	if got := res.Violations[0].Matches; !reflect.DeepEqual(got, []string{"@jane"}) {
		t.Errorf("Matches = %v, want [@jane]", got)
	}
	// Addresses are not blocked under moderate but are still redacted
	// once another contact subtype triggered the pass.
	want := "follow" + TokenHandle + " at " + TokenAddress
	if res.CleanContent != want {
		t.Errorf("CleanContent = %q, want %q", res.CleanContent, want)
	}
}

func TestModerate_ProfanitySeverity(t *testing.T) {
	cfg := Config{EnableProfanityFilter: true, CensorProfanity: true, ProfanityLanguages: []string{"en"}}

	tests := []struct {
		name     string
		input    string
		severity Severity
		allowed  bool
		clean    string
	}{
		{"one word", "shit", SeverityWarning, true, "****"},
		{"three words", "shit damn crap", SeverityWarning, true, "**** **** ****"},
		{"four words", "shit damn crap piss", SeverityBlock, false, "**** **** **** ****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewEngineWithConfig(cfg).Moderate(tt.input)
			checkInvariants(t, tt.input, res)
			if len(res.Violations) != 1 {
				t.Fatalf("Violations = %+v, want one", res.Violations)
			}
			if res.Violations[0].Severity != tt.severity {
				t.Errorf("Severity = %q, want %q", res.Violations[0].Severity, tt.severity)
			}
			if res.IsAllowed != tt.allowed {
				t.Errorf("IsAllowed = %v, want %v", res.IsAllowed, tt.allowed)
			}
			if res.CleanContent != tt.clean {
				t.Errorf("CleanContent = %q, want %q", res.CleanContent, tt.clean)
			}
		})
	}
}

func TestModerate_ProfanityWithoutCensor(t *testing.T) {
	e := NewEngineWithConfig(Config{EnableProfanityFilter: true, ProfanityLanguages: []string{"en"}})
	res := e.Moderate("oh crap")
	if len(res.Violations) != 1 || res.CleanContent != "oh crap" {
		t.Errorf("Moderate() = %+v, want a warning with content untouched", res)
	}
}

func TestModerate_Deterministic(t *testing.T) {
	in := "mail a@b.io or call +1-555-123-4567, https://x.io/a acme.com"
	e := presetEngine(t, LevelStrict)
	first := e.Moderate(in)
	second := e.Moderate(in)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Moderate() not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestModerate_AllDisabled(t *testing.T) {
	in := "Call me at 9876543210, shit"
	res := NewEngineWithConfig(Config{}).Moderate(in)
	checkInvariants(t, in, res)
	if !res.IsAllowed || res.CleanContent != in {
		t.Errorf("Moderate() with everything off = %+v", res)
	}
}

func TestEngine_SetPreset(t *testing.T) {
	e := NewEngine()
	if err := e.SetPreset(LevelLenient); err != nil {
		t.Fatalf("SetPreset error: %v", err)
	}
	lenient, _ := Preset(LevelLenient)
	if got := e.Config(); !reflect.DeepEqual(got, lenient) {
		t.Errorf("Config() = %+v, want %+v", got, lenient)
	}

	if err := e.SetPreset("extreme"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("SetPreset(extreme) error = %v, want ErrUnknownPreset", err)
	}
	if got := e.Config(); !reflect.DeepEqual(got, lenient) {
		t.Errorf("failed SetPreset changed config to %+v", got)
	}
}

func TestEngine_UpdateConfig(t *testing.T) {
	e := NewEngine()
	e.UpdateConfig(ConfigPatch{BlockLinks: Bool(false)})

	cfg := e.Config()
	if cfg.BlockLinks {
		t.Error("BlockLinks = true after patch")
	}
	if !cfg.BlockEmails || cfg.ModerationLevel != LevelModerate {
		t.Errorf("patch changed unrelated fields: %+v", cfg)
	}
	if res := e.Moderate("see https://example.com"); !res.IsAllowed {
		t.Errorf("link blocked after BlockLinks=false: %+v", res)
	}
}

func TestEngine_DottedEmailIsNotALink(t *testing.T) {
	e := NewEngineWithConfig(Config{BlockLinks: true})
	res := e.Moderate("mail john.doe@example.com")
	if !res.IsAllowed {
		t.Errorf("email alone blocked with only BlockLinks set: %+v", res)
	}
	for _, v := range res.Violations {
		if v.Category == CategoryLink {
			t.Errorf("unexpected link violation %+v", v)
		}
	}
}

func TestEngine_WithOverrides(t *testing.T) {
	e := NewEngineWithOverrides(ConfigPatch{BlockNumbers: Bool(false)})
	cfg := e.Config()
	if cfg.BlockNumbers || !cfg.BlockEmails {
		t.Errorf("Config() = %+v, want moderate with numbers off", cfg)
	}
}

func TestEngine_ConfigIsCopy(t *testing.T) {
	e := NewEngine()
	cfg := e.Config()
	cfg.ProfanityLanguages[0] = "xx"
	cfg.BlockNumbers = false

	again := e.Config()
	if again.ProfanityLanguages[0] != "en" || !again.BlockNumbers {
		t.Errorf("engine config mutated through Config(): %+v", again)
	}
}

func TestEngine_IsTypeBlocked(t *testing.T) {
	e := presetEngine(t, LevelLenient)
	tests := []struct {
		category string
		want     bool
	}{
		{"numbers", true},
		{"emails", false},
		{"links", false},
		{"profanity", false},
		{"phones", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := e.IsTypeBlocked(tt.category); got != tt.want {
			t.Errorf("IsTypeBlocked(%q) = %v, want %v", tt.category, got, tt.want)
		}
	}
}

func TestEngine_Concurrent(t *testing.T) {
	e := NewEngine()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				res := e.Moderate("Call me at 9876543210")
				if res.IsAllowed {
					t.Error("number allowed under every preset")
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			_ = e.SetPreset(Levels[j%len(Levels)])
			e.UpdateConfig(ConfigPatch{CensorProfanity: Bool(j%2 == 0)})
		}
	}()
	wg.Wait()
}

func BenchmarkModerate(b *testing.B) {
	e := NewEngine()
	msg := "hey how are you doing today? I love chatting about music and movies. What are your favorite hobbies?"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Moderate(msg)
	}
}

func BenchmarkModerate_Violations(b *testing.B) {
	e := presetEngine(b, LevelStrict)
	msg := "call 9876543210 or mail a@b.io, see https://bit.ly/x, shit"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Moderate(msg)
	}
}

// TestPerformance keeps a single Moderate call well under a millisecond.
func TestPerformance(t *testing.T) {
	e := presetEngine(t, LevelStrict)
	msg := "hey how are you doing today? I love chatting about music and movies. What are your favorite hobbies?"

	const iterations = 200
	start := time.Now()
	for i := 0; i < iterations; i++ {
		e.Moderate(msg)
	}
	avg := time.Since(start) / iterations
	t.Logf("average Moderate latency: %v", avg)

	limit := 5 * time.Millisecond
	if raceDetectorEnabled {
		limit = 50 * time.Millisecond
	}
	if avg > limit {
		t.Errorf("Moderate latency %v exceeds %v", avg, limit)
	}
}
