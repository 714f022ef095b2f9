package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/rs/zerolog"

	"github.com/bartekus/leafsync/internal/syncerr"
)

// ErrNotGitRepository indicates the target path is not a git repository
var ErrNotGitRepository = errors.New("not a git repository")

// Tree is a git working tree that receives extracted project archives.
type Tree struct {
	root string
	exec CommandExecutor
	log  zerolog.Logger
}

// Open validates that path is an existing git working tree.
func Open(path string, executor CommandExecutor, log zerolog.Logger) (*Tree, error) {
	root, err := ExpandPath(path)
	if err != nil {
		return nil, syncerr.Precondition("resolve working tree", err)
	}
	if err := CheckWorkingTree(root); err != nil {
		return nil, err
	}
	if executor == nil {
		executor = NewExecExecutor()
	}
	return &Tree{root: root, exec: executor, log: log}, nil
}

// CheckWorkingTree returns a KindPrecondition error unless root contains
// git metadata that go-git can open.
func CheckWorkingTree(root string) error {
	if root == "" {
		return syncerr.Precondition("validate working tree", errors.New("git repo path is empty"))
	}
	if _, err := os.Stat(filepath.Join(root, ".git")); err != nil {
		return syncerr.Precondition("validate working tree",
			fmt.Errorf("%w: %s does not contain a .git folder", ErrNotGitRepository, root))
	}
	if _, err := gogit.PlainOpen(root); err != nil {
		return syncerr.Precondition("validate working tree", fmt.Errorf("%w: %v", ErrNotGitRepository, err))
	}
	return nil
}

// ExpandPath resolves a leading ~ and makes path absolute.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

// Root returns the absolute working tree path.
func (t *Tree) Root() string { return t.root }

func (t *Tree) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = t.root
	return t.exec.ExecuteWithOutput(cmd)
}

// Diff returns the uncommitted changes of the working tree: the output of
// git diff followed by one "new file" line per untracked file.
func (t *Tree) Diff(ctx context.Context) (string, error) {
	t.log.Debug().Msg("getting git diff")

	diff, err := t.git(ctx, "diff")
	if err != nil {
		t.log.Error().Err(err).Msg("failed to get git diff")
		return "", err
	}

	untracked, err := t.git(ctx, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		t.log.Error().Err(err).Msg("failed to list untracked files")
		return "", err
	}

	var b strings.Builder
	b.WriteString(diff)
	for _, f := range strings.Split(strings.TrimSpace(untracked), "\n") {
		if f == "" {
			continue
		}
		b.WriteString("new file: " + f + "\n")
	}
	return b.String(), nil
}

// AddAll stages every change in the working tree.
func (t *Tree) AddAll(ctx context.Context) error {
	t.log.Debug().Msg("adding changes to git")
	if _, err := t.git(ctx, "add", "."); err != nil {
		t.log.Error().Err(err).Msg("failed to add changes to git")
		return err
	}
	return nil
}

// Commit records the staged changes. Having nothing to commit is
// reported as an error, the same as a failing git.
func (t *Tree) Commit(ctx context.Context, message string) error {
	t.log.Debug().Msg("committing changes to git")
	if _, err := t.git(ctx, "commit", "-m", message); err != nil {
		t.log.Error().Err(err).Msg("no changes detected or failed to commit")
		return err
	}
	t.log.Info().Msg("git commit completed successfully")
	return nil
}

// Push pushes the current branch to its configured remote.
func (t *Tree) Push(ctx context.Context) error {
	t.log.Debug().Msg("pushing changes to git")
	if _, err := t.git(ctx, "push"); err != nil {
		t.log.Error().Err(err).Msg("failed to push changes to git")
		return err
	}
	t.log.Info().Msg("git push completed successfully")
	return nil
}

// Head returns the current commit hash and branch name.
func (t *Tree) Head() (hash, branch string, err error) {
	r, err := gogit.PlainOpen(t.root)
	if err != nil {
		return "", "", fmt.Errorf("opening repository: %w", err)
	}
	ref, err := r.Head()
	if err != nil {
		return "", "", fmt.Errorf("reading HEAD: %w", err)
	}
	return ref.Hash().String(), ref.Name().Short(), nil
}
