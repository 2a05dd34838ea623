package moderation

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// builtinLexicon is the profanity word list per ISO-639-1 language code.
// Non-English entries are the romanized forms commonly typed in chat.
var builtinLexicon = []struct {
	language string
	words    []string
}{
	{"en", []string{
		"fuck", "fucking", "fucker", "motherfucker", "shit", "bullshit", "bitch",
		"bastard", "asshole", "dick", "cunt", "crap", "damn", "piss", "prick",
		"slut", "whore", "wanker", "twat", "douchebag",
	}},
	{"hi", []string{
		"chutiya", "bhenchod", "behenchod", "madarchod", "bhosdike", "gaand",
		"harami", "kamina", "kutta", "kutti", "saala", "randi", "lund", "chod",
	}},
	{"ta", []string{"thevidiya", "punda", "sunni", "otha", "koothi", "baadu", "loosu"}},
	{"te", []string{"dengu", "lanja", "puku", "modda", "kojja", "erripuka"}},
	{"kn", []string{"sule", "bolimaga", "thika", "ninamma", "gandu"}},
	{"mr", []string{"zhavadya", "bhadwa", "gandu", "aai ghalya", "lavdya"}},
	{"bn", []string{"bokachoda", "khanki", "magi", "chudi", "shuorer baccha"}},
	{"gu", []string{"gando", "bhosdi", "chodu", "lodu", "gaandu"}},
	{"pa", []string{"kutti", "lann", "phuddu", "khota", "kanjar"}},
	{"ml", []string{"myre", "poori", "thayoli", "kunna", "pooru"}},
}

// lexiconEntry is one compiled profanity word.
type lexiconEntry struct {
	word    string
	pattern *regexp.Regexp // group 1 is the word itself
	// unicodeBounds is set for non-ASCII words, whose word boundaries are
	// checked against the neighbouring runes after matching.
	unicodeBounds bool
}

func newLexiconEntry(word string) lexiconEntry {
	quoted := regexp.QuoteMeta(word)
	if isASCII(word) {
		return lexiconEntry{word: word, pattern: regexp.MustCompile(`(?i)\b(` + quoted + `)\b`)}
	}
	// \b is ASCII-only in RE2 and a consuming boundary group would swallow
	// the separator shared by two adjacent occurrences.
	return lexiconEntry{
		word:          word,
		pattern:       regexp.MustCompile(`(?i)(` + quoted + `)`),
		unicodeBounds: true,
	}
}

// locate returns the [start, end) byte offsets of every whole-word
// occurrence of the word in text.
func (e lexiconEntry) locate(text string) [][2]int {
	var out [][2]int
	for _, loc := range e.pattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2], loc[3]
		if e.unicodeBounds {
			if r, _ := utf8.DecodeLastRuneInString(text[:start]); start > 0 && isWordRune(r) {
				continue
			}
			if r, _ := utf8.DecodeRuneInString(text[end:]); end < len(text) && isWordRune(r) {
				continue
			}
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// find returns every occurrence of the word in text.
func (e lexiconEntry) find(text string) []string {
	var out []string
	for _, loc := range e.locate(text) {
		out = append(out, text[loc[0]:loc[1]])
	}
	return out
}

// mask replaces every occurrence of the word with censor repeated once per rune.
func (e lexiconEntry) mask(text string, censor rune) string {
	locs := e.locate(text)
	if len(locs) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, loc := range locs {
		b.WriteString(text[last:loc[0]])
		b.WriteString(strings.Repeat(string(censor), utf8.RuneCountInString(text[loc[0]:loc[1]])))
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// lexiconTable is the process-wide profanity table. It is initialized once
// from builtinLexicon, only ever grows, and lives for the whole process.
// Entries are immutable once appended, so readers may keep a slice header
// taken under the read lock after releasing it.
type lexiconTable struct {
	mu      sync.RWMutex
	order   []string
	entries map[string][]lexiconEntry
	known   map[string]map[string]struct{}
}

var lexicon = newLexiconTable()

func newLexiconTable() *lexiconTable {
	t := &lexiconTable{
		entries: make(map[string][]lexiconEntry),
		known:   make(map[string]map[string]struct{}),
	}
	for _, l := range builtinLexicon {
		t.add(l.language, l.words)
	}
	return t
}

// add appends words to a language. Callers must hold mu for writing
// (or be the constructor).
func (t *lexiconTable) add(language string, words []string) int {
	set, ok := t.known[language]
	if !ok {
		set = make(map[string]struct{})
		t.known[language] = set
		t.order = append(t.order, language)
	}
	added := 0
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := set[w]; dup {
			continue
		}
		set[w] = struct{}{}
		t.entries[language] = append(t.entries[language], newLexiconEntry(w))
		added++
	}
	return added
}

func (t *lexiconTable) lookup(language string) []lexiconEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries[language]
}

func (t *lexiconTable) languages() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *lexiconTable) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.entries {
		n += len(e)
	}
	return n
}

// AddCustomProfanity appends words to the shared lexicon for language and
// returns how many were new. The change is visible to every Engine in the
// process. Words are matched case-insensitively; blanks and duplicates are
// ignored. An unknown language code creates a new lexicon entry.
func AddCustomProfanity(language string, words ...string) int {
	language = normalizeLanguage(language)
	if language == "" || len(words) == 0 {
		return 0
	}
	lexicon.mu.Lock()
	defer lexicon.mu.Unlock()
	return lexicon.add(language, words)
}

// SupportedLanguages returns the language codes present in the lexicon,
// built-in languages first, in a stable order.
func SupportedLanguages() []string {
	return lexicon.languages()
}

// LexiconSize returns the total number of words across all languages.
func LexiconSize() int {
	return lexicon.size()
}

func normalizeLanguage(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsNumber(r)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
