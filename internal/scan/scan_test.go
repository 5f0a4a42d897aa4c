package scan

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Genivia/ugrep-indexer/internal/config"
	"github.com/Genivia/ugrep-indexer/internal/ignore"
)

type nullReporter struct{}

func (nullReporter) Error(message, arg string, err error) {}

func catalog(t *testing.T, cfg *config.Config, ig *ignore.Stack, dir string, dirs *[]Entry, dirOnly bool) Result {
	t.Helper()
	return Catalog(cfg, nullReporter{}, ig, dir, dirs, dirOnly)
}

func TestRootEntryAlwaysInspected(t *testing.T) {
	root := Root("some/dir")
	require.Equal(t, uint64(math.MaxUint64), root.Mtime)
	require.Equal(t, "dir", root.Basename())

	dot := Root(".")
	require.Equal(t, uint64(math.MaxUint64), dot.Mtime)
}

func TestCatalogBasics(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("aaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bb"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	var ig ignore.Stack
	var dirs []Entry
	res := catalog(t, config.Default(), &ig, dir, &dirs, false)

	require.True(t, res.OK)
	require.Len(t, res.Files, 2)
	require.Len(t, dirs, 1)
	require.Equal(t, "sub", dirs[0].Basename())
	require.Zero(t, res.IndexTime)
	require.NotZero(t, res.LastTime)

	for _, f := range res.Files {
		require.LessOrEqual(t, f.Mtime, res.LastTime)
	}
}

func TestCatalogHidden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".secret"), []byte("s"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.txt"), []byte("p"), 0o644))

	var ig ignore.Stack
	var dirs []Entry
	res := catalog(t, config.Default(), &ig, dir, &dirs, false)
	require.Len(t, res.Files, 1)
	require.Equal(t, "plain.txt", res.Files[0].Basename())
	require.Empty(t, dirs)

	cfg := config.Default()
	cfg.Hidden = true
	dirs = nil
	res = catalog(t, cfg, &ig, dir, &dirs, false)
	require.Len(t, res.Files, 2)
	require.Len(t, dirs, 1)
}

func TestCatalogIndexFileExcludedAndTimed(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, config.IndexFilename)
	require.NoError(t, os.WriteFile(indexPath, []byte("UG#\x03\x00"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))

	stamp := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(indexPath, stamp, stamp))

	var ig ignore.Stack
	var dirs []Entry
	res := catalog(t, config.Default(), &ig, dir, &dirs, false)

	require.Len(t, res.Files, 1)
	require.Equal(t, "a.txt", res.Files[0].Basename())
	require.Equal(t, uint64(stamp.UnixMicro()), res.IndexTime)
}

func TestCatalogSymlinks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target.txt"), []byte("t"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "target.txt"), filepath.Join(dir, "ln_file")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "subdir"), filepath.Join(dir, "ln_dir")))

	var ig ignore.Stack
	var dirs []Entry
	res := catalog(t, config.Default(), &ig, dir, &dirs, false)
	require.Len(t, res.Files, 1, "symlinks are skipped by default")
	require.Equal(t, uint64(2), res.Links)
	require.Len(t, dirs, 1)

	cfg := config.Default()
	cfg.DereferenceFiles = true
	dirs = nil
	res = catalog(t, cfg, &ig, dir, &dirs, false)
	require.Len(t, res.Files, 2, "-S follows symlinks to files")
	require.Equal(t, uint64(1), res.Links, "symlinks to directories are never followed")
	require.Len(t, dirs, 1)
}

func TestCatalogIgnoreFrames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.log"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644))

	cfg := config.Default()
	cfg.IgnoreFiles = []string{config.DefaultIgnoreFile}

	var ig ignore.Stack
	var dirs []Entry
	res := catalog(t, cfg, &ig, dir, &dirs, false)

	require.Len(t, res.Files, 1)
	require.Equal(t, "b.txt", res.Files[0].Basename())
	require.Equal(t, int64(1), res.IgnoredFiles)

	// no subdirectories queued, so the frame drained right away
	require.Zero(t, ig.Depth())
	require.Empty(t, dirs)
}

func TestCatalogSentinelBelowSubdirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	cfg := config.Default()
	cfg.IgnoreFiles = []string{config.DefaultIgnoreFile}

	var ig ignore.Stack
	var dirs []Entry
	catalog(t, cfg, &ig, dir, &dirs, false)

	require.Equal(t, 1, ig.Depth())
	require.Len(t, dirs, 2)
	require.True(t, dirs[0].Sentinel())
	require.Equal(t, "sub", dirs[1].Basename())

	// draining the subdirectory pops the frame in lockstep
	sub := dirs[1]
	dirs = dirs[:1]
	catalog(t, cfg, &ig, sub.Pathname, &dirs, false)
	require.Zero(t, ig.Depth())
	require.Empty(t, dirs, "the sentinel drained with the frame")
}

func TestCatalogDirOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("sub\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	cfg := config.Default()
	cfg.IgnoreFiles = []string{config.DefaultIgnoreFile}

	var ig ignore.Stack
	var dirs []Entry
	res := catalog(t, cfg, &ig, dir, &dirs, true)

	require.Empty(t, res.Files, "dir-only mode catalogs no files")
	require.Zero(t, ig.Depth(), "dir-only mode loads no ignore files")
	require.Len(t, dirs, 1, "ignore globs do not apply in dir-only mode")
}

func TestCatalogMissingDirectory(t *testing.T) {
	var ig ignore.Stack
	var dirs []Entry
	res := catalog(t, config.Default(), &ig, filepath.Join(t.TempDir(), "gone"), &dirs, false)
	require.False(t, res.OK)
}
