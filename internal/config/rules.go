package config

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// RulesMode decides how Rules.Paths is interpreted.
type RulesMode int

const (
	// Blacklist activates everywhere except the listed paths.
	Blacklist RulesMode = iota
	// Whitelist activates only in the listed paths.
	Whitelist
)

func (m RulesMode) String() string {
	if m == Whitelist {
		return "whitelist"
	}
	return "blacklist"
}

// Rules filters which workspaces get a presence at all.
type Rules struct {
	Mode  RulesMode
	Paths []string
}

// GlobPrefix marks a rules entry as a doublestar pattern.
const GlobPrefix = "glob:"

// Suitable reports whether the service should run for the workspace at
// path. Plain entries match the path exactly. Entries starting with
// [GlobPrefix] match as doublestar patterns.
func (r Rules) Suitable(path string) bool {
	listed := r.matches(path)
	if r.Mode == Whitelist {
		return listed
	}
	return !listed
}

func (r Rules) matches(path string) bool {
	for _, p := range r.Paths {
		pattern, isGlob := strings.CutPrefix(p, GlobPrefix)
		if !isGlob {
			if p == path {
				return true
			}
			continue
		}
		ok, err := doublestar.Match(pattern, path)
		if err != nil {
			slog.Warn("invalid rules pattern", "pattern", pattern, "error", err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func (r *Rules) apply(obj object) {
	if s, ok := obj.str("mode"); ok {
		switch s {
		case "whitelist":
			r.Mode = Whitelist
		default:
			r.Mode = Blacklist
		}
	}
	if v, ok := obj["paths"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err != nil {
			return
		}
		r.Paths = r.Paths[:0]
		for _, item := range items {
			var s string
			if json.Unmarshal(item, &s) == nil {
				r.Paths = append(r.Paths, s)
			}
		}
	}
}
