// Package main prints the SemVer build version passed to
// -ldflags "-X main.version=..." when building lspcord.
//
// Output depends on the repository state:
//
//	No tags, clean:     0.0.0-dev+05ffee5
//	No tags, dirty:     0.0.0-dev+05ffee5.dirty
//	On tag v0.1.0:      0.1.0
//	Dirty tag:          0.1.0-dirty
//	3 past v0.1.0:      0.1.0-dev.3+g1234567
//	Same but dirty:     0.1.0-dev.3+g1234567.dirty
//
// The repository is read with go-git, so no git binary is needed.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

const shortHash = 7

func main() {
	base := flag.String("base", "0.0.0", "Version used when no v* tag is reachable")
	dir := flag.String("C", ".", "Path inside the repository")
	flag.Parse()

	d, err := describe(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "buildver: %v\n", err)
		fmt.Print(*base + "-dev")
		return
	}
	fmt.Print(d.version(*base))
}

// description is the go-git equivalent of `git describe --tags --match v*
// --dirty`, with untracked files counting as dirty.
type description struct {
	tag      string // nearest v* tag without the v, or ""
	distance int    // commits between the tag and HEAD
	hash     string
	dirty    bool
}

func (d description) version(base string) string {
	dirty := ""
	if d.dirty {
		dirty = ".dirty"
	}
	switch {
	case d.tag == "":
		return fmt.Sprintf("%s-dev+%s%s", base, d.hash, dirty)
	case d.distance == 0 && d.dirty:
		return d.tag + "-dirty"
	case d.distance == 0:
		return d.tag
	}
	return fmt.Sprintf("%s-dev.%d+g%s%s", d.tag, d.distance, d.hash, dirty)
}

func describe(path string) (description, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return description{}, fmt.Errorf("open repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return description{}, fmt.Errorf("resolve HEAD: %w", err)
	}
	d := description{hash: head.Hash().String()[:shortHash]}

	tags, err := versionTags(repo)
	if err != nil {
		return description{}, err
	}
	commits, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return description{}, fmt.Errorf("walk history: %w", err)
	}
	err = commits.ForEach(func(c *object.Commit) error {
		if tag, ok := tags[c.Hash]; ok {
			d.tag = strings.TrimPrefix(tag, "v")
			return storer.ErrStop
		}
		d.distance++
		return nil
	})
	if err != nil {
		return description{}, fmt.Errorf("walk history: %w", err)
	}
	if d.tag == "" {
		d.distance = 0
	}

	if wt, err := repo.Worktree(); err == nil {
		if st, err := wt.Status(); err == nil {
			d.dirty = !st.IsClean()
		}
	}
	return d, nil
}

// versionTags maps commit hashes to the highest v* tag pointing at them.
// Annotated tags are peeled to their commit.
func versionTags(repo *git.Repository) (map[plumbing.Hash]string, error) {
	refs, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	out := make(map[plumbing.Hash]string)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if !strings.HasPrefix(name, "v") {
			return nil
		}
		target := ref.Hash()
		tag, err := repo.TagObject(target)
		switch {
		case err == nil:
			c, err := tag.Commit()
			if err != nil {
				return nil
			}
			target = c.Hash
		case !errors.Is(err, plumbing.ErrObjectNotFound):
			return fmt.Errorf("read tag %s: %w", name, err)
		}
		if prev, ok := out[target]; !ok || name > prev {
			out[target] = name
		}
		return nil
	})
	return out, err
}
