// Package languages maps a file to the language name used for template
// lookup and icon names.
package languages

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Default is returned when nothing in the table matches.
const Default = "text"

//go:embed languages.json
var tableJSON []byte

type pattern struct {
	re       *regexp.Regexp
	language string
}

type table struct {
	filenames  map[string]string
	patterns   []pattern
	extensions map[string]string
}

var loadTable = sync.OnceValue(func() *table {
	t, err := parseTable(tableJSON)
	if err != nil {
		panic(fmt.Sprintf("languages: embedded table: %v", err))
	}
	return t
})

func parseTable(data []byte) (*table, error) {
	var raw struct {
		Filenames map[string]string `json:"filenames"`
		Patterns  []struct {
			Pattern  string `json:"pattern"`
			Language string `json:"language"`
		} `json:"patterns"`
		Extensions map[string]string `json:"extensions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	t := &table{filenames: raw.Filenames, extensions: raw.Extensions}
	for _, p := range raw.Patterns {
		re, err := regexp.Compile("(?i)" + p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p.Pattern, err)
		}
		t.patterns = append(t.patterns, pattern{re: re, language: p.Language})
	}
	return t, nil
}

// Classify returns the language for a file. ext is the extension without
// its dot. Exact filenames win over patterns, which win over extensions;
// patterns are tried against the filename and then ".ext". Unmatched files
// are [Default].
func Classify(filename, ext string) string {
	t := loadTable()
	dotExt := "." + ext

	if lang, ok := t.filenames[filename]; ok {
		return lang
	}
	for _, p := range t.patterns {
		if p.re.MatchString(filename) || p.re.MatchString(dotExt) {
			return p.language
		}
	}
	if lang, ok := t.extensions[strings.ToLower(dotExt)]; ok {
		return lang
	}
	return Default
}
