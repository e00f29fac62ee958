package main

import (
	"os"
	"path/filepath"

	"tools.zach/dev/lspcord/internal/paths"
)

// DataPaths aliases [paths.DataDir] into the main package.
type DataPaths = paths.DataDir

// defaultDataDir returns ~/.lspcord, or ./.lspcord when the home directory
// is unknown.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}
