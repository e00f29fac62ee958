// Package lspcord provides embedded assets for the lspcord language server.
//
// The root package exists solely to embed [config.default.toml] via
// [DefaultSettingsTOML], which is copied to the data directory on first run.
package lspcord

import _ "embed"

// DefaultSettingsTOML holds the raw bytes of config.default.toml.
//
//go:embed config.default.toml
var DefaultSettingsTOML []byte
