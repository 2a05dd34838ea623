package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/whisper/moderation/internal/audit"
	"github.com/whisper/moderation/internal/moderation"
	"github.com/whisper/moderation/internal/ratelimit"
)

type fakeLimiter struct {
	deny map[string]bool // rule key -> deny
}

func (f *fakeLimiter) Allow(_ context.Context, _ string, rule ratelimit.Rule) (bool, error) {
	return !f.deny[rule.Key], nil
}

type fakePrefs struct {
	mu   sync.Mutex
	cfgs map[string]moderation.Config
	err  error
}

func newFakePrefs() *fakePrefs { return &fakePrefs{cfgs: make(map[string]moderation.Config)} }

func (f *fakePrefs) Get(_ context.Context, id string) (*moderation.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	cfg, ok := f.cfgs[id]
	if !ok {
		return nil, nil
	}
	c := cfg.Clone()
	return &c, nil
}

func (f *fakePrefs) Save(_ context.Context, id string, cfg moderation.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfgs[id] = cfg.Clone()
	return nil
}

func (f *fakePrefs) Patch(ctx context.Context, id string, patch moderation.ConfigPatch, fallback moderation.Config) (moderation.Config, error) {
	cur, err := f.Get(ctx, id)
	if err != nil {
		return moderation.Config{}, err
	}
	base := fallback
	if cur != nil {
		base = *cur
	}
	next := patch.Apply(base)
	return next, f.Save(ctx, id, next)
}

func (f *fakePrefs) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cfgs, id)
	return nil
}

type fakeStrikes struct {
	mu       sync.Mutex
	counts   map[string]int
	reasons  []string
	mutes    map[string]time.Duration
	threshold int
	muteErr  error
}

func newFakeStrikes() *fakeStrikes {
	return &fakeStrikes{counts: make(map[string]int), mutes: make(map[string]time.Duration), threshold: 3}
}

func (f *fakeStrikes) Record(_ context.Context, id, reason string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[id]++
	f.reasons = append(f.reasons, reason)
	if f.counts[id] >= f.threshold {
		f.mutes[id] = 5 * time.Minute
		return 5 * time.Minute, nil
	}
	return 0, nil
}

func (f *fakeStrikes) IsMuted(_ context.Context, id string) (time.Duration, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.muteErr != nil {
		return 0, "", f.muteErr
	}
	if d, ok := f.mutes[id]; ok {
		return d, "blocked", nil
	}
	return 0, "", nil
}

func (f *fakeStrikes) Count(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[id], nil
}

func (f *fakeStrikes) Clear(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.counts, id)
	delete(f.mutes, id)
	return nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []*audit.Event
	fail   bool
}

func (f *fakeAudit) Record(_ context.Context, e *audit.Event) error {
	if f.fail {
		return errors.New("db down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeAudit) CountRecent(_ context.Context, id string, _ time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.SessionID == id {
			n++
		}
	}
	return n, nil
}

type fakeLexicon struct {
	mu    sync.Mutex
	words map[string][]string
}

func (f *fakeLexicon) Add(_ context.Context, lang string, words []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.words == nil {
		f.words = make(map[string][]string)
	}
	f.words[lang] = append(f.words[lang], words...)
	return nil
}

func (f *fakeLexicon) LoadAll(_ context.Context) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]string, len(f.words))
	for k, v := range f.words {
		out[k] = append([]string(nil), v...)
	}
	return out, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	results map[string][][]byte
	lexicon [][]byte
}

func (f *fakePublisher) PublishModerationResult(id string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.results == nil {
		f.results = make(map[string][][]byte)
	}
	f.results[id] = append(f.results[id], data)
	return nil
}

func (f *fakePublisher) PublishLexiconUpdate(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lexicon = append(f.lexicon, data)
	return nil
}
