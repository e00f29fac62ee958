// Package config holds the presence configuration sent by the editor in
// initializationOptions, and the daemon settings file kept in the data
// directory.
//
// The presence [Configuration] is built once during initialize from
// [Default] plus the editor's JSON, and is read-only afterwards. The
// [Settings] file controls logging, the update check, and git watching.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrConfig wraps malformed initialization options.
var ErrConfig = errors.New("invalid configuration")

// ///////////////////////////////////////////////
// Defaults
// ///////////////////////////////////////////////

const (
	// DefaultApplicationID is the public Discord application used when the
	// editor does not supply one.
	DefaultApplicationID = "1263505205522337886"
	// DefaultIconsURL hosts the per-language icon set.
	DefaultIconsURL = "https://raw.githubusercontent.com/xhyrom/zed-discord-presence/main/assets/icons"
	// DefaultIdleTimeout is how long the editor may stay quiet before the
	// idle presence is shown.
	DefaultIdleTimeout = 300 * time.Second
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Activity is a set of presence templates. An empty field is absent and is
// not sent to Discord.
type Activity struct {
	State      string
	Details    string
	LargeImage string
	LargeText  string
	SmallImage string
	SmallText  string
}

// IdleAction selects what happens when the idle window elapses.
type IdleAction int

const (
	// IdleChangeActivity shows the idle templates.
	IdleChangeActivity IdleAction = iota
	// IdleClearActivity removes the presence.
	IdleClearActivity
)

func (a IdleAction) String() string {
	if a == IdleClearActivity {
		return "clear_activity"
	}
	return "change_activity"
}

// Idle holds the idle window and its presentation.
type Idle struct {
	Timeout  time.Duration
	Action   IdleAction
	Template Activity
}

// Configuration is the complete presence configuration.
type Configuration struct {
	ApplicationID string
	BaseIconsURL  string
	// Activity is the default template set for documents.
	Activity Activity
	// Languages overrides Activity per lowercased language name.
	Languages      map[string]Activity
	Idle           Idle
	Rules          Rules
	GitIntegration bool
}

// Default returns the configuration used when the editor sends no options.
func Default() *Configuration {
	return &Configuration{
		ApplicationID: DefaultApplicationID,
		BaseIconsURL:  DefaultIconsURL,
		Activity: Activity{
			State:      "Working on {filename}",
			Details:    "In {workspace}",
			LargeImage: "{base_icons_url}/{language:lo}.png",
			LargeText:  "{language:u}",
			SmallImage: "{base_icons_url}/zed.png",
			SmallText:  "Zed",
		},
		Languages: map[string]Activity{},
		Idle: Idle{
			Timeout: DefaultIdleTimeout,
			Action:  IdleChangeActivity,
			Template: Activity{
				State:      "Idling",
				Details:    "In Zed",
				LargeImage: "{base_icons_url}/zed.png",
				LargeText:  "Zed",
				SmallImage: "{base_icons_url}/idle.png",
				SmallText:  "Idle",
			},
		},
		Rules:          Rules{Mode: Blacklist},
		GitIntegration: true,
	}
}

// Template returns the template set for language, falling back to the
// default set when no override exists.
func (c *Configuration) Template(language string) Activity {
	if a, ok := c.Languages[strings.ToLower(language)]; ok {
		return a
	}
	return c.Activity
}

// ///////////////////////////////////////////////
// Parsing
// ///////////////////////////////////////////////

// object is a JSON object with its values left undecoded so that a present
// null can be told apart from a missing key.
type object map[string]json.RawMessage

// Parse builds a Configuration from initializationOptions. Missing or null
// options yield [Default]. Unknown keys are ignored. A language override
// that is not an object is logged and skipped.
func Parse(raw json.RawMessage, log *slog.Logger) (*Configuration, error) {
	cfg := Default()
	if isNull(raw) {
		log.Debug("no initialization options, using defaults")
		return cfg, nil
	}

	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: initialization options: %w", ErrConfig, err)
	}

	if s, ok := obj.str("application_id"); ok && s != "" {
		cfg.ApplicationID = s
	}
	if s, ok := obj.str("base_icons_url"); ok {
		cfg.BaseIconsURL = s
	}
	cfg.Activity.apply(obj)

	if v, ok := obj["git_integration"]; ok {
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			b = true
		}
		cfg.GitIntegration = b
	}

	if sub, ok := obj.object("rules"); ok {
		cfg.Rules.apply(sub)
	}
	if sub, ok := obj.object("idle"); ok {
		cfg.Idle.apply(sub)
	}

	if sub, ok := obj.object("languages"); ok {
		for name, v := range sub {
			var override object
			if err := json.Unmarshal(v, &override); err != nil || override == nil {
				log.Warn("skipping language override", "language", name,
					"error", fmt.Errorf("%w: languages.%s must be an object", ErrConfig, name))
				continue
			}
			a := cfg.Activity
			a.apply(override)
			cfg.Languages[strings.ToLower(name)] = a
		}
	}

	log.Info("configuration loaded",
		"application_id", cfg.ApplicationID,
		"languages", len(cfg.Languages),
		"idle_timeout", cfg.Idle.Timeout,
		"idle_action", cfg.Idle.Action,
		"rules_mode", cfg.Rules.Mode,
		"git_integration", cfg.GitIntegration)
	return cfg, nil
}

func (a *Activity) apply(obj object) {
	for key, dst := range map[string]*string{
		"state":       &a.State,
		"details":     &a.Details,
		"large_image": &a.LargeImage,
		"large_text":  &a.LargeText,
		"small_image": &a.SmallImage,
		"small_text":  &a.SmallText,
	} {
		if _, ok := obj[key]; ok {
			*dst, _ = obj.str(key)
		}
	}
}

func (i *Idle) apply(obj object) {
	if v, ok := obj["timeout"]; ok {
		var secs uint64
		if err := json.Unmarshal(v, &secs); err == nil {
			i.Timeout = time.Duration(secs) * time.Second
		}
	}
	if s, ok := obj.str("action"); ok {
		switch s {
		case "clear_activity":
			i.Action = IdleClearActivity
		default:
			i.Action = IdleChangeActivity
		}
	}
	i.Template.apply(obj)
}

// str returns the string at key. A null or non-string value yields ""
// with ok still reporting whether the key was present.
func (o object) str(key string) (string, bool) {
	v, ok := o[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", true
	}
	return s, true
}

// object returns the nested object at key, or false when the key is
// missing or not an object.
func (o object) object(key string) (object, bool) {
	v, ok := o[key]
	if !ok {
		return nil, false
	}
	var sub object
	if err := json.Unmarshal(v, &sub); err != nil || sub == nil {
		return nil, false
	}
	return sub, true
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
