package moderation

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestPreset_Bundles(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelStrict, `{"blockNumbers":true,"blockEmails":true,"blockLinks":true,"blockSocialMedia":true,"blockPhysicalAddresses":true,"enableProfanityFilter":true,"censorProfanity":true,"profanityLanguages":["en","hi","ta","te","kn","mr","bn","gu","pa","ml"],"moderationLevel":"strict"}`},
		{LevelModerate, `{"blockNumbers":true,"blockEmails":true,"blockLinks":true,"blockSocialMedia":true,"blockPhysicalAddresses":false,"enableProfanityFilter":true,"censorProfanity":true,"profanityLanguages":["en","hi"],"moderationLevel":"moderate"}`},
		{LevelLenient, `{"blockNumbers":true,"blockEmails":false,"blockLinks":false,"blockSocialMedia":false,"blockPhysicalAddresses":false,"enableProfanityFilter":false,"censorProfanity":false,"profanityLanguages":[],"moderationLevel":"lenient"}`},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			cfg, err := Preset(tt.level)
			if err != nil {
				t.Fatalf("Preset(%q) error: %v", tt.level, err)
			}
			data, err := json.Marshal(cfg)
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Preset(%q) =\n%s\nwant\n%s", tt.level, data, tt.want)
			}
		})
	}
}

func TestPreset_Unknown(t *testing.T) {
	if _, err := Preset("extreme"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("Preset(extreme) error = %v, want ErrUnknownPreset", err)
	}
}

func TestPreset_ReturnsCopy(t *testing.T) {
	cfg, _ := Preset(LevelModerate)
	cfg.ProfanityLanguages[0] = "xx"
	cfg.BlockNumbers = false

	again, _ := Preset(LevelModerate)
	if again.ProfanityLanguages[0] != "en" || !again.BlockNumbers {
		t.Errorf("preset was mutated through a returned copy: %+v", again)
	}
}

func TestDefaultConfig_IsModerate(t *testing.T) {
	moderate, _ := Preset(LevelModerate)
	if got := DefaultConfig(); !reflect.DeepEqual(got, moderate) {
		t.Errorf("DefaultConfig() = %+v, want %+v", got, moderate)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"strict", LevelStrict, false},
		{" Moderate ", LevelModerate, false},
		{"LENIENT", LevelLenient, false},
		{"extreme", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestConfigPatch_Apply(t *testing.T) {
	base := DefaultConfig()

	got := ConfigPatch{BlockLinks: Bool(false)}.Apply(base)
	want := base.Clone()
	want.BlockLinks = false
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply(BlockLinks=false) = %+v, want %+v", got, want)
	}
	if !base.BlockLinks {
		t.Error("Apply modified its input")
	}

	cleared := ConfigPatch{ProfanityLanguages: []string{}}.Apply(base)
	if len(cleared.ProfanityLanguages) != 0 {
		t.Errorf("empty ProfanityLanguages patch left %v", cleared.ProfanityLanguages)
	}

	untouched := ConfigPatch{}.Apply(base)
	if !reflect.DeepEqual(untouched, base) {
		t.Errorf("empty patch changed config: %+v", untouched)
	}
}

func TestConfigPatch_JSON(t *testing.T) {
	var p ConfigPatch
	if err := json.Unmarshal([]byte(`{"blockEmails":false,"profanityLanguages":[],"moderationLevel":"strict"}`), &p); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	got := p.Apply(DefaultConfig())
	if got.BlockEmails {
		t.Error("BlockEmails = true, want false")
	}
	if !got.BlockNumbers {
		t.Error("BlockNumbers changed by a patch that did not name it")
	}
	if got.ProfanityLanguages == nil || len(got.ProfanityLanguages) != 0 {
		t.Errorf("ProfanityLanguages = %#v, want empty", got.ProfanityLanguages)
	}
	if got.ModerationLevel != LevelStrict {
		t.Errorf("ModerationLevel = %q, want strict", got.ModerationLevel)
	}
}
