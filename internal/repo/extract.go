package repo

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bartekus/leafsync/internal/syncerr"
)

// Extract unpacks the zip archive at archivePath into the working tree,
// overwriting files of the same name. It returns the number of files
// written.
func (t *Tree) Extract(ctx context.Context, archivePath string) (int, error) {
	t.log.Debug().Str("archive", archivePath).Str("dest", t.root).Msg("extracting archive")

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		t.log.Error().Err(err).Msg("failed to unzip downloaded files")
		return 0, syncerr.Tool("extract archive", "", err)
	}
	defer func() { _ = zr.Close() }()

	written := 0
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("extracting archive: %w", err)
		}

		target, err := t.entryPath(f.Name)
		if err != nil {
			t.log.Error().Err(err).Msg("failed to unzip downloaded files")
			return written, syncerr.Tool("extract archive", f.Name, err)
		}
		if target == "" {
			t.log.Warn().Str("entry", f.Name).Msg("skipping archive entry")
			continue
		}
		if err := t.checkNoSymlinks(target); err != nil {
			t.log.Error().Err(err).Msg("failed to unzip downloaded files")
			return written, syncerr.Tool("extract archive", f.Name, err)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, syncerr.Tool("extract archive", f.Name, err)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			t.log.Warn().Str("entry", f.Name).Msg("skipping non-regular archive entry")
			continue
		}

		if err := writeEntry(f, target); err != nil {
			t.log.Error().Err(err).Msg("failed to unzip downloaded files")
			return written, syncerr.Tool("extract archive", f.Name, err)
		}
		written++
	}

	t.log.Debug().Int("files", written).Msg("unzip completed successfully")
	return written, nil
}

// entryPath maps an archive entry to a path inside the tree. Entries
// with a .git component at any depth yield "".
func (t *Tree) entryPath(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes the working tree", name)
	}
	for _, part := range strings.Split(clean, string(filepath.Separator)) {
		if part == ".git" {
			return "", nil
		}
	}
	return filepath.Join(t.root, clean), nil
}

// checkNoSymlinks fails when target, or any directory between the tree
// root and target, is an existing symlink.
func (t *Tree) checkNoSymlinks(target string) error {
	rel, err := filepath.Rel(t.root, target)
	if err != nil {
		return err
	}

	cur := t.root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		fi, err := os.Lstat(cur)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("path %q is a symlink", cur)
		}
	}
	return nil
}

func writeEntry(f *zip.File, target string) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm) //nolint:gosec // G304: target and its parents were checked by checkNoSymlinks
	if err != nil {
		return err
	}
	defer func() {
		cerr := out.Close()
		if err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, rc) //nolint:gosec // G110: archives come from the operator's own project
	return err
}
