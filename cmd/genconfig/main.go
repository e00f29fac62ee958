// Package main implements the genconfig tool that writes config.default.toml
// from config.DefaultSettings and config.SettingsDocs.
//
// It is invoked by go generate via the directive in internal/config/settings.go.
package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/lspcord/internal/config"
)

var header = []string{
	"# lspcord daemon settings.",
	"#",
	"# Presence templates, rules and idle behaviour come from the editor's",
	"# initialization options. This file only controls the process itself.",
	"# Generated by genconfig from internal/config/settings_docs.go.",
}

func main() {
	out, err := render(config.DefaultSettings(), config.SettingsDocs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
		os.Exit(1)
	}

	// go generate runs from internal/config/; the embedding package is the
	// module root.
	outPath := "../../config.default.toml"
	if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", outPath, err)
		os.Exit(1)
	}
	fmt.Println("wrote config.default.toml")
}

// render encodes s as TOML, strips the encoder's indentation and writes
// each documented section and key with its comment above it.
func render(s *config.Settings, docs map[string]config.FieldDoc) (string, error) {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(s); err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	out := append([]string(nil), header...)
	section := ""
	for _, line := range strings.Split(raw.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "["):
			section = strings.Trim(trimmed, "[] ")
			out = append(out, "", fmt.Sprintf("# ///// %s /////", sectionName(section)), "")
			out = appendComment(out, docs[section].Comment)
			out = append(out, trimmed)
		default:
			key, _, _ := strings.Cut(trimmed, "=")
			path := strings.TrimSpace(key)
			if section != "" {
				path = section + "." + path
			}
			out = appendComment(out, docs[path].Comment)
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n") + "\n", nil
}

func appendComment(out []string, comment string) []string {
	if comment == "" {
		return out
	}
	for _, cl := range strings.Split(comment, "\n") {
		if cl == "" {
			out = append(out, "#")
			continue
		}
		out = append(out, "# "+cl)
	}
	return out
}

// sectionName capitalizes the last segment of a dotted section header.
func sectionName(section string) string {
	parts := strings.Split(section, ".")
	last := parts[len(parts)-1]
	if last == "" {
		return ""
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
