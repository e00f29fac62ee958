package config

// FieldDoc is the comment genconfig writes above a settings key.
type FieldDoc struct {
	Comment string
}

// SettingsDocs maps dotted settings paths ("log.level") and section names
// ("log") to the comments written into config.default.toml.
var SettingsDocs = map[string]FieldDoc{
	"log.level": {
		Comment: "Minimum level: trace, debug, info, warn, error.\nLSPCORD_LOG_LEVEL overrides this value.",
	},
	"log.output": {
		Comment: "\"file\" writes a rotating lspcord.log next to this file; \"stderr\" writes\nto the editor's language server log. LSPCORD_LOG_OUTPUT overrides it.",
	},
	"log.max_size_mb": {
		Comment: "Log file size in megabytes before it is rotated.",
	},
	"update.check": {
		Comment: "Look up the latest release on startup and log when a newer one exists.",
	},
	"git.watch_head": {
		Comment: "Refresh {git_branch} when the repository switches branches.",
	},
}
