package moderation

import (
	"errors"
	"fmt"
	"strings"
)

// Level is the descriptive moderation level. It is set by presets and is
// not enforced against the individual toggles.
type Level string

const (
	LevelStrict   Level = "strict"
	LevelModerate Level = "moderate"
	LevelLenient  Level = "lenient"
)

// ErrUnknownPreset is returned when a preset name is not one of the
// built-in levels.
var ErrUnknownPreset = errors.New("moderation: unknown preset")

// Config is the moderation policy applied by an Engine.
type Config struct {
	BlockNumbers           bool     `json:"blockNumbers"`
	BlockEmails            bool     `json:"blockEmails"`
	BlockLinks             bool     `json:"blockLinks"`
	BlockSocialMedia       bool     `json:"blockSocialMedia"`
	BlockPhysicalAddresses bool     `json:"blockPhysicalAddresses"`
	EnableProfanityFilter  bool     `json:"enableProfanityFilter"`
	CensorProfanity        bool     `json:"censorProfanity"`
	ProfanityLanguages     []string `json:"profanityLanguages"`
	ModerationLevel        Level    `json:"moderationLevel"`
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := c
	out.ProfanityLanguages = make([]string, len(c.ProfanityLanguages))
	copy(out.ProfanityLanguages, c.ProfanityLanguages)
	return out
}

// ConfigPatch is a partial Config. Nil fields leave the target unchanged;
// a non-nil empty ProfanityLanguages clears the list.
type ConfigPatch struct {
	BlockNumbers           *bool    `json:"blockNumbers,omitempty"`
	BlockEmails            *bool    `json:"blockEmails,omitempty"`
	BlockLinks             *bool    `json:"blockLinks,omitempty"`
	BlockSocialMedia       *bool    `json:"blockSocialMedia,omitempty"`
	BlockPhysicalAddresses *bool    `json:"blockPhysicalAddresses,omitempty"`
	EnableProfanityFilter  *bool    `json:"enableProfanityFilter,omitempty"`
	CensorProfanity        *bool    `json:"censorProfanity,omitempty"`
	ProfanityLanguages     []string `json:"profanityLanguages,omitempty"`
	ModerationLevel        *Level   `json:"moderationLevel,omitempty"`
}

// Apply merges p over c field by field and returns the result. c is not
// modified.
func (p ConfigPatch) Apply(c Config) Config {
	out := c.Clone()
	if p.BlockNumbers != nil {
		out.BlockNumbers = *p.BlockNumbers
	}
	if p.BlockEmails != nil {
		out.BlockEmails = *p.BlockEmails
	}
	if p.BlockLinks != nil {
		out.BlockLinks = *p.BlockLinks
	}
	if p.BlockSocialMedia != nil {
		out.BlockSocialMedia = *p.BlockSocialMedia
	}
	if p.BlockPhysicalAddresses != nil {
		out.BlockPhysicalAddresses = *p.BlockPhysicalAddresses
	}
	if p.EnableProfanityFilter != nil {
		out.EnableProfanityFilter = *p.EnableProfanityFilter
	}
	if p.CensorProfanity != nil {
		out.CensorProfanity = *p.CensorProfanity
	}
	if p.ProfanityLanguages != nil {
		out.ProfanityLanguages = append([]string{}, p.ProfanityLanguages...)
	}
	if p.ModerationLevel != nil {
		out.ModerationLevel = *p.ModerationLevel
	}
	return out
}

// Bool is a helper for building a ConfigPatch.
func Bool(v bool) *bool { return &v }

// presets are the built-in policy bundles. They must not be modified;
// Preset hands out clones.
var presets = map[Level]Config{
	LevelStrict: {
		BlockNumbers:           true,
		BlockEmails:            true,
		BlockLinks:             true,
		BlockSocialMedia:       true,
		BlockPhysicalAddresses: true,
		EnableProfanityFilter:  true,
		CensorProfanity:        true,
		ProfanityLanguages:     []string{"en", "hi", "ta", "te", "kn", "mr", "bn", "gu", "pa", "ml"},
		ModerationLevel:        LevelStrict,
	},
	LevelModerate: {
		BlockNumbers:           true,
		BlockEmails:            true,
		BlockLinks:             true,
		BlockSocialMedia:       true,
		BlockPhysicalAddresses: false,
		EnableProfanityFilter:  true,
		CensorProfanity:        true,
		ProfanityLanguages:     []string{"en", "hi"},
		ModerationLevel:        LevelModerate,
	},
	LevelLenient: {
		BlockNumbers:           true,
		BlockEmails:            false,
		BlockLinks:             false,
		BlockSocialMedia:       false,
		BlockPhysicalAddresses: false,
		EnableProfanityFilter:  false,
		CensorProfanity:        false,
		ProfanityLanguages:     []string{},
		ModerationLevel:        LevelLenient,
	},
}

// Levels lists the preset names in order of decreasing strictness.
var Levels = []Level{LevelStrict, LevelModerate, LevelLenient}

// Preset returns a copy of the named preset.
func Preset(level Level) (Config, error) {
	cfg, ok := presets[level]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownPreset, level)
	}
	return cfg.Clone(), nil
}

// ParseLevel converts a preset name into a Level.
func ParseLevel(s string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := presets[level]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPreset, s)
	}
	return level, nil
}

// DefaultConfig returns the moderate preset.
func DefaultConfig() Config {
	cfg, _ := Preset(LevelModerate)
	return cfg
}
