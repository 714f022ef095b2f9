package repo

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/leafsync/internal/syncerr"
	"github.com/bartekus/leafsync/internal/testutil/gitrepo"
)

func TestExtract_OverwritesAndCreates(t *testing.T) {
	dir := gitrepo.Init(t)
	tree := openTree(t, dir, nil)

	archive := filepath.Join(t.TempDir(), "MyPaper.zip")
	gitrepo.WriteZip(t, archive, map[string]string{
		"main.tex":           "\\section{Results}\n",
		"sections/intro.tex": "Hello\n",
	})

	n, err := tree.Extract(context.Background(), archive)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(dir, "main.tex"))
	require.NoError(t, err)
	assert.Equal(t, "\\section{Results}\n", string(data))
	assert.FileExists(t, filepath.Join(dir, "sections", "intro.tex"))
}

func TestExtract_SkipsGitMetadata(t *testing.T) {
	dir := gitrepo.Init(t)
	tree := openTree(t, dir, nil)

	headBefore, err := os.ReadFile(filepath.Join(dir, ".git", "HEAD"))
	require.NoError(t, err)

	archive := filepath.Join(t.TempDir(), "p.zip")
	gitrepo.WriteZip(t, archive, map[string]string{
		".git/HEAD": "ref: refs/heads/evil\n",
		"main.tex":  "x\n",
	})

	n, err := tree.Extract(context.Background(), archive)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	headAfter, err := os.ReadFile(filepath.Join(dir, ".git", "HEAD"))
	require.NoError(t, err)
	assert.Equal(t, headBefore, headAfter)
}

func TestExtract_SkipsNestedGitMetadata(t *testing.T) {
	dir := gitrepo.Init(t)
	tree := openTree(t, dir, nil)

	archive := filepath.Join(t.TempDir(), "p.zip")
	gitrepo.WriteZip(t, archive, map[string]string{
		"vendor/.git/HEAD":   "ref: refs/heads/evil\n",
		"vendor/.git/config": "[core]\n",
		"vendor/style.sty":   "% style\n",
	})

	n, err := tree.Extract(context.Background(), archive)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.FileExists(t, filepath.Join(dir, "vendor", "style.sty"))
	assert.NoDirExists(t, filepath.Join(dir, "vendor", ".git"))
}

func TestExtract_RejectsSymlinkedDirectory(t *testing.T) {
	dir := gitrepo.Init(t)
	tree := openTree(t, dir, nil)

	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "figs")))

	archive := filepath.Join(t.TempDir(), "p.zip")
	gitrepo.WriteZip(t, archive, map[string]string{
		"figs/evil.tex": "nope\n",
	})

	_, err := tree.Extract(context.Background(), archive)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.KindTool))
	assert.Contains(t, err.Error(), "symlink")
	assert.NoFileExists(t, filepath.Join(outside, "evil.tex"))
}

func TestExtract_RejectsSymlinkedFile(t *testing.T) {
	dir := gitrepo.Init(t)
	tree := openTree(t, dir, nil)

	outside := filepath.Join(t.TempDir(), "victim.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep\n"), 0o600))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "notes.tex")))

	archive := filepath.Join(t.TempDir(), "p.zip")
	gitrepo.WriteZip(t, archive, map[string]string{
		"notes.tex": "overwritten\n",
	})

	_, err := tree.Extract(context.Background(), archive)
	require.Error(t, err)

	data, err := os.ReadFile(outside)
	require.NoError(t, err)
	assert.Equal(t, "keep\n", string(data))
}

func TestExtract_RejectsTraversal(t *testing.T) {
	dir := gitrepo.Init(t)
	tree := openTree(t, dir, nil)

	archive := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "../escape.tex", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = tree.Extract(context.Background(), archive)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.KindTool))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "escape.tex"))
}

func TestExtract_NotAZip(t *testing.T) {
	dir := gitrepo.Init(t)
	tree := openTree(t, dir, nil)

	archive := filepath.Join(t.TempDir(), "broken.zip")
	require.NoError(t, os.WriteFile(archive, []byte("not a zip"), 0o600))

	_, err := tree.Extract(context.Background(), archive)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.KindTool))
	assert.Contains(t, err.Error(), "extract archive failed")
}

func TestExtract_MissingArchive(t *testing.T) {
	dir := gitrepo.Init(t)
	tree := openTree(t, dir, nil)

	_, err := tree.Extract(context.Background(), filepath.Join(t.TempDir(), "absent.zip"))
	require.Error(t, err)
}
