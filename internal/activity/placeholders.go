package activity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"tools.zach/dev/lspcord/internal/config"
	"tools.zach/dev/lspcord/internal/document"
)

// placeholderRe matches {name}, {name:u} and {name:lo}.
var placeholderRe = regexp.MustCompile(`\{([a-z_]+)(?::(u|lo))?\}`)

// Placeholders holds the values available to templates. Names whose source
// is missing resolve to the name itself.
type Placeholders struct {
	values   map[string]string
	language string
}

// NewPlaceholders gathers placeholder values. doc may be nil and branch
// may be empty.
func NewPlaceholders(doc *document.Snapshot, cfg *config.Configuration, workspace, branch string) *Placeholders {
	v := map[string]string{
		"workspace":      workspace,
		"base_icons_url": cfg.BaseIconsURL,
		"line_number":    "0",
	}
	for _, name := range []string{
		"filename", "language", "relative_file_path", "folder_and_file",
		"directory_name", "full_directory_name", "git_branch", "file_size",
	} {
		v[name] = name
	}

	p := &Placeholders{values: v}
	if branch != "" {
		v["git_branch"] = branch
	}
	if doc == nil {
		return p
	}

	p.language = LanguageOf(*doc)
	v["language"] = p.language
	v["filename"] = orEmpty(doc.Filename())
	v["relative_file_path"] = orEmpty(doc.RelativePath())
	v["folder_and_file"] = orEmpty(doc.FolderAndFile())
	v["directory_name"] = orEmpty(doc.DirectoryName())
	v["full_directory_name"] = orEmpty(doc.FullDirectoryName())
	if n, ok := doc.Line(); ok {
		v["line_number"] = strconv.FormatUint(uint64(n)+1, 10)
	}
	if size, err := doc.Size(); err == nil {
		v["file_size"] = FormatFileSize(size)
	} else {
		v["file_size"] = "unknown"
	}
	return p
}

// Replace expands every recognized placeholder in text in a single pass.
// Substituted values are never rescanned, and unknown names are left as
// written.
func (p *Placeholders) Replace(text string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := placeholderRe.FindStringSubmatch(m)
		val, ok := p.values[sub[1]]
		if !ok {
			return m
		}
		switch sub[2] {
		case "u":
			return capitalizeFirst(val)
		case "lo":
			return strings.ToLower(val)
		}
		return val
	})
}

// FormatFileSize renders a byte count as "N bytes", "1.5 KB" or "2.0 MB".
func FormatFileSize(n int64) string {
	const (
		kb = 1024
		mb = kb * 1024
	)
	switch {
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/kb)
	case n == 1:
		return "1 byte"
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// capitalizeFirst upper-cases the first rune and leaves the rest alone.
func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func orEmpty(s string, err error) string {
	if err != nil {
		return ""
	}
	return s
}
