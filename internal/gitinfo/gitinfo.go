// Package gitinfo inspects the repository containing a workspace: the
// remote URL shown as the "View Repository" button and the current branch
// used by {git_branch}.
package gitinfo

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// shortHashLen is how much of a detached HEAD's hash is shown.
const shortHashLen = 7

// Resolve returns the browsable remote URL and the branch for the
// repository containing path. Either is "" when unavailable, including
// when path is not inside a repository.
func Resolve(path string) (remoteURL, branch string) {
	repo, err := open(path)
	if err != nil {
		return "", ""
	}
	return remoteOf(repo), branchOf(repo)
}

// Branch returns only the current branch for the repository containing path.
func Branch(path string) string {
	repo, err := open(path)
	if err != nil {
		return ""
	}
	return branchOf(repo)
}

func open(path string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
}

// remoteOf prefers "origin", then the alphabetically first remote.
func remoteOf(repo *git.Repository) string {
	if r, err := repo.Remote(git.DefaultRemoteName); err == nil {
		if urls := r.Config().URLs; len(urls) > 0 {
			return TransformURL(urls[0])
		}
	} else if !errors.Is(err, git.ErrRemoteNotFound) {
		return ""
	}

	remotes, err := repo.Remotes()
	if err != nil || len(remotes) == 0 {
		return ""
	}
	slices.SortFunc(remotes, func(a, b *git.Remote) int {
		return strings.Compare(a.Config().Name, b.Config().Name)
	})
	for _, r := range remotes {
		if urls := r.Config().URLs; len(urls) > 0 {
			return TransformURL(urls[0])
		}
	}
	return ""
}

// branchOf reads HEAD without resolving it, so an unborn branch still
// reports its name. A detached HEAD yields the short commit hash.
func branchOf(repo *git.Repository) string {
	ref, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return ""
	}
	if ref.Type() == plumbing.SymbolicReference {
		return ref.Target().Short()
	}
	if h := ref.Hash(); !h.IsZero() {
		return h.String()[:shortHashLen]
	}
	return ""
}

// gitDir returns the directory holding HEAD for the repository containing
// path.
func gitDir(path string) (string, error) {
	repo, err := open(path)
	if err != nil {
		return "", err
	}
	if fs, ok := repo.Storer.(*filesystem.Storage); ok {
		return fs.Filesystem().Root(), nil
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	return filepath.Join(wt.Filesystem.Root(), git.GitDirName), nil
}

// TransformURL rewrites scp-style SSH remotes ("git@host:owner/repo") to
// https URLs. Anything else is returned unchanged.
func TransformURL(url string) string {
	if strings.HasPrefix(url, "https://") {
		return url
	}
	if _, rest, ok := strings.Cut(url, "@"); ok {
		if host, path, ok := strings.Cut(rest, ":"); ok {
			return "https://" + host + "/" + path
		}
	}
	return url
}
