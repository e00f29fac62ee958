// Package activity turns presence templates into the text and image
// fields sent to Discord.
//
// Resolution is pure: it reads the document snapshot, configuration,
// workspace name and branch it is given and touches nothing else except
// a stat of the document for {file_size}.
package activity

import (
	"strings"

	"tools.zach/dev/lspcord/internal/config"
	"tools.zach/dev/lspcord/internal/document"
	"tools.zach/dev/lspcord/internal/languages"
)

// Fields is a resolved presence. Empty fields are omitted on the wire.
type Fields struct {
	State      string
	Details    string
	LargeImage string
	LargeText  string
	SmallImage string
	SmallText  string
}

// Resolve picks the template set for doc's language, falling back to the
// default set, and expands its placeholders. doc may be nil.
func Resolve(doc *document.Snapshot, cfg *config.Configuration, workspace, branch string) Fields {
	p := NewPlaceholders(doc, cfg, workspace, branch)
	tmpl := cfg.Activity
	if doc != nil {
		tmpl = cfg.Template(p.language)
	}
	return p.expand(tmpl)
}

// ResolveIdle expands the idle template set. Idle templates are global and
// never take a per-language override; doc only feeds placeholders.
func ResolveIdle(doc *document.Snapshot, cfg *config.Configuration, workspace, branch string) Fields {
	return NewPlaceholders(doc, cfg, workspace, branch).expand(cfg.Idle.Template)
}

func (p *Placeholders) expand(t config.Activity) Fields {
	return Fields{
		State:      p.Replace(t.State),
		Details:    p.Replace(t.Details),
		LargeImage: p.Replace(t.LargeImage),
		LargeText:  p.Replace(t.LargeText),
		SmallImage: p.Replace(t.SmallImage),
		SmallText:  p.Replace(t.SmallText),
	}
}

// LanguageOf classifies a document by its filename and extension.
func LanguageOf(doc document.Snapshot) string {
	name, err := doc.Filename()
	if err != nil {
		name = "unknown"
	}
	return strings.ToLower(languages.Classify(name, doc.Extension()))
}
