package main

import (
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/lspcord"
	"tools.zach/dev/lspcord/internal/config"
)

func TestRender_MatchesEmbeddedDefault(t *testing.T) {
	got, err := render(config.DefaultSettings(), config.SettingsDocs)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != string(lspcord.DefaultSettingsTOML) {
		t.Errorf("config.default.toml is stale, run go generate ./internal/config\n--- got ---\n%s", got)
	}
}

func TestRender_RoundTrip(t *testing.T) {
	out, err := render(config.DefaultSettings(), config.SettingsDocs)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var s config.Settings
	if _, err := toml.Decode(out, &s); err != nil {
		t.Fatalf("decode rendered output: %v", err)
	}
	if s != *config.DefaultSettings() {
		t.Errorf("decoded %+v, want defaults", s)
	}
}

func TestRender_EveryKeyDocumented(t *testing.T) {
	out, err := render(config.DefaultSettings(), config.SettingsDocs)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[") {
			continue
		}
		if i == 0 || !strings.HasPrefix(lines[i-1], "#") {
			t.Errorf("key line %q has no comment", line)
		}
	}
}

func TestRender_Comments(t *testing.T) {
	s := &config.Settings{Log: config.LogSettings{Level: "info", Output: "file", MaxSizeMB: 1}}
	docs := map[string]config.FieldDoc{
		"log":       {Comment: "Logging."},
		"log.level": {Comment: "first\n\nsecond"},
	}
	out, err := render(s, docs)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "# ///// Log /////\n\n# Logging.\n[log]\n# first\n#\n# second\nlevel = \"info\"\noutput = \"file\"\n"
	if !strings.Contains(out, want) {
		t.Errorf("output missing %q:\n%s", want, out)
	}
}

func TestSectionName(t *testing.T) {
	tests := []struct {
		section string
		want    string
	}{
		{"log", "Log"},
		{"log.file", "File"},
		{"Update", "Update"},
		{"a", "A"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sectionName(tt.section); got != tt.want {
			t.Errorf("sectionName(%q) = %q, want %q", tt.section, got, tt.want)
		}
	}
}
