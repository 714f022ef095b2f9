// Package gitrepo builds throwaway git repositories and project archives
// for tests.
package gitrepo

import (
	"archive/zip"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	gogit "github.com/go-git/go-git/v5"
)

// RequireGit skips the test when no git binary is available.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}
}

// Run executes git in dir and fails the test on error.
func Run(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=leafsync-test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=leafsync-test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return string(out)
}

// Init creates a working tree on branch main with one committed file,
// main.tex, and a local identity so later commits succeed.
func Init(t *testing.T) string {
	t.Helper()
	RequireGit(t)

	dir := t.TempDir()
	Run(t, dir, "init", "-q")
	Run(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	Run(t, dir, "config", "user.name", "leafsync-test")
	Run(t, dir, "config", "user.email", "test@example.com")
	Run(t, dir, "config", "commit.gpgsign", "false")

	if err := os.WriteFile(filepath.Join(dir, "main.tex"), []byte("\\section{Intro}\n"), 0o600); err != nil {
		t.Fatalf("write main.tex: %v", err)
	}
	Run(t, dir, "add", ".")
	Run(t, dir, "commit", "-q", "-m", "Initial import")
	return dir
}

// InitWithRemote is Init plus a bare origin that main tracks.
func InitWithRemote(t *testing.T) (work, remote string) {
	t.Helper()
	work = Init(t)
	remote = filepath.Join(t.TempDir(), "origin.git")
	Run(t, work, "init", "-q", "--bare", remote)
	Run(t, remote, "symbolic-ref", "HEAD", "refs/heads/main")
	Run(t, work, "remote", "add", "origin", remote)
	Run(t, work, "push", "-q", "-u", "origin", "main")
	return work, remote
}

// HeadMessage returns the message of the commit HEAD points at in the
// repository at path (bare or not).
func HeadMessage(t *testing.T, path string) string {
	t.Helper()
	r, err := gogit.PlainOpen(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	ref, err := r.Head()
	if err != nil {
		t.Fatalf("head of %s: %v", path, err)
	}
	c, err := r.CommitObject(ref.Hash())
	if err != nil {
		t.Fatalf("commit %s: %v", ref.Hash(), err)
	}
	return strings.TrimSpace(c.Message)
}

// CommitCount returns the number of commits reachable from HEAD.
func CommitCount(t *testing.T, path string) int {
	t.Helper()
	r, err := gogit.PlainOpen(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	iter, err := r.Log(&gogit.LogOptions{})
	if err != nil {
		t.Fatalf("log %s: %v", path, err)
	}
	n := 0
	for {
		if _, err := iter.Next(); err != nil {
			break
		}
		n++
	}
	return n
}

// WriteZip writes an archive holding files (slash-separated name to content).
func WriteZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path) //nolint:gosec // test path
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}
