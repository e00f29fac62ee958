package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var sig = &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(1700000000, 0)}

type testRepo struct {
	t    *testing.T
	dir  string
	repo *git.Repository
	n    int
}

func newRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	return &testRepo{t: t, dir: dir, repo: repo}
}

func (r *testRepo) commit() plumbing.Hash {
	r.t.Helper()
	r.n++
	if err := os.WriteFile(filepath.Join(r.dir, "file.txt"), []byte{byte('a' + r.n)}, 0o644); err != nil {
		r.t.Fatal(err)
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		r.t.Fatal(err)
	}
	if _, err := wt.Add("file.txt"); err != nil {
		r.t.Fatal(err)
	}
	s := *sig
	s.When = s.When.Add(time.Duration(r.n) * time.Minute)
	h, err := wt.Commit("commit", &git.CommitOptions{Author: &s})
	if err != nil {
		r.t.Fatal(err)
	}
	return h
}

func (r *testRepo) tag(name string, h plumbing.Hash, annotated bool) {
	r.t.Helper()
	var opts *git.CreateTagOptions
	if annotated {
		opts = &git.CreateTagOptions{Tagger: sig, Message: name}
	}
	if _, err := r.repo.CreateTag(name, h, opts); err != nil {
		r.t.Fatal(err)
	}
}

func TestDescriptionVersion(t *testing.T) {
	tests := []struct {
		name string
		d    description
		want string
	}{
		{"no tags", description{hash: "05ffee5"}, "0.0.0-dev+05ffee5"},
		{"no tags dirty", description{hash: "05ffee5", dirty: true}, "0.0.0-dev+05ffee5.dirty"},
		{"exact tag", description{tag: "0.1.0", hash: "05ffee5"}, "0.1.0"},
		{"dirty tag", description{tag: "0.1.0", hash: "05ffee5", dirty: true}, "0.1.0-dirty"},
		{"past tag", description{tag: "0.1.0", distance: 3, hash: "1234567"}, "0.1.0-dev.3+g1234567"},
		{"past tag dirty", description{tag: "0.1.0", distance: 3, hash: "1234567", dirty: true}, "0.1.0-dev.3+g1234567.dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.version("0.0.0"); got != tt.want {
				t.Errorf("version() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescribe_NoTags(t *testing.T) {
	r := newRepo(t)
	h := r.commit()
	r.commit()
	head := r.commit()

	d, err := describe(r.dir)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if d.tag != "" || d.distance != 0 || d.dirty {
		t.Errorf("description = %+v", d)
	}
	if d.hash != head.String()[:7] || d.hash == h.String()[:7] {
		t.Errorf("hash = %q, want HEAD", d.hash)
	}
}

func TestDescribe_Tags(t *testing.T) {
	tests := []struct {
		name      string
		annotated bool
	}{
		{"lightweight", false},
		{"annotated", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRepo(t)
			tagged := r.commit()
			r.tag("v1.2.0", tagged, tt.annotated)
			r.tag("release", tagged, false)

			d, err := describe(r.dir)
			if err != nil {
				t.Fatalf("describe: %v", err)
			}
			if got := d.version("0.0.0"); got != "1.2.0" {
				t.Errorf("on tag: %q", got)
			}

			r.commit()
			head := r.commit()
			d, err = describe(r.dir)
			if err != nil {
				t.Fatalf("describe: %v", err)
			}
			if want := "1.2.0-dev.2+g" + head.String()[:7]; d.version("0.0.0") != want {
				t.Errorf("past tag: %q, want %q", d.version("0.0.0"), want)
			}
		})
	}
}

func TestDescribe_Dirty(t *testing.T) {
	r := newRepo(t)
	r.tag("v0.3.0", r.commit(), false)
	if err := os.WriteFile(filepath.Join(r.dir, "file.txt"), []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := describe(r.dir)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if got := d.version("0.0.0"); got != "0.3.0-dirty" {
		t.Errorf("version = %q", got)
	}
}

func TestDescribe_Subdirectory(t *testing.T) {
	r := newRepo(t)
	r.tag("v2.0.0", r.commit(), false)
	sub := filepath.Join(r.dir, "cmd", "lspcord")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	d, err := describe(sub)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if d.tag != "2.0.0" {
		t.Errorf("tag = %q", d.tag)
	}
}

func TestDescribe_Errors(t *testing.T) {
	if _, err := describe(t.TempDir()); !errors.Is(err, git.ErrRepositoryNotExists) {
		t.Errorf("not a repo: err = %v", err)
	}
	r := newRepo(t)
	if _, err := describe(r.dir); !errors.Is(err, plumbing.ErrReferenceNotFound) {
		t.Errorf("no commits: err = %v", err)
	}
}
