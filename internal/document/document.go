// Package document describes the file an editor event refers to.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.lsp.dev/uri"
)

var (
	// ErrDocument is the parent of every document error.
	ErrDocument = errors.New("document error")
	// ErrOutsideWorkspace is returned when the file is not under the workspace root.
	ErrOutsideWorkspace = fmt.Errorf("%w: file is not within the workspace root", ErrDocument)
	// ErrNoFilename is returned for paths without a final element.
	ErrNoFilename = fmt.Errorf("%w: no filename", ErrDocument)
	// ErrUndecodable is returned when a name is not valid UTF-8.
	ErrUndecodable = fmt.Errorf("%w: invalid filename encoding", ErrDocument)
)

// Snapshot is an immutable view of one editor event's document.
type Snapshot struct {
	path string
	root string
	line uint32
	// hasLine distinguishes "no line" from line 0.
	hasLine bool
}

// New returns a snapshot for the file at path inside the workspace root.
func New(path, root string) Snapshot {
	return Snapshot{path: filepath.Clean(path), root: root}
}

// FromURI decodes a file:// document URI.
func FromURI(raw, root string) (Snapshot, error) {
	u, err := uri.Parse(raw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: parse %q: %w", ErrDocument, raw, err)
	}
	if !strings.HasPrefix(string(u), uri.FileScheme+"://") {
		return Snapshot{}, fmt.Errorf("%w: unsupported uri %q", ErrDocument, raw)
	}
	return New(u.Filename(), root), nil
}

// WithLine returns a copy carrying the 0-indexed line number n.
func (s Snapshot) WithLine(n uint32) Snapshot {
	s.line, s.hasLine = n, true
	return s
}

// Path returns the absolute file path.
func (s Snapshot) Path() string { return s.path }

// Line returns the 0-indexed line number, if the event carried one.
func (s Snapshot) Line() (uint32, bool) { return s.line, s.hasLine }

// Filename returns the last path element.
func (s Snapshot) Filename() (string, error) {
	name := filepath.Base(s.path)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", ErrNoFilename
	}
	if !utf8.ValidString(name) {
		return "", ErrUndecodable
	}
	return name, nil
}

// Extension returns the file extension without its dot, or "".
func (s Snapshot) Extension() string {
	return strings.TrimPrefix(filepath.Ext(s.path), ".")
}

// RelativePath returns the path relative to the workspace root.
func (s Snapshot) RelativePath() (string, error) {
	if s.root == "" {
		return "", ErrOutsideWorkspace
	}
	rel, err := filepath.Rel(s.root, s.path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideWorkspace
	}
	return rel, nil
}

// FullDirectoryName returns the absolute parent directory.
func (s Snapshot) FullDirectoryName() (string, error) {
	dir := filepath.Dir(s.path)
	if dir == s.path {
		return "", fmt.Errorf("%w: no parent directory", ErrDocument)
	}
	return dir, nil
}

// DirectoryName returns the parent directory's own name.
func (s Snapshot) DirectoryName() (string, error) {
	dir, err := s.FullDirectoryName()
	if err != nil {
		return "", err
	}
	name := filepath.Base(dir)
	if name == string(filepath.Separator) || name == "." || filepath.VolumeName(dir) == dir {
		return "", fmt.Errorf("%w: parent directory has no name", ErrDocument)
	}
	return name, nil
}

// FolderAndFile returns "<parent-name>/<filename>".
func (s Snapshot) FolderAndFile() (string, error) {
	dir, err := s.DirectoryName()
	if err != nil {
		return "", err
	}
	file, err := s.Filename()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, file), nil
}

// Size returns the file size in bytes as currently on disk.
func (s Snapshot) Size() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDocument, err)
	}
	return info.Size(), nil
}
