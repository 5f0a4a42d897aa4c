// Package scan catalogs one directory at a time for the traversal driver:
// subdirectories to recurse into, regular files to consider for indexing, the
// modification time of the existing index and the newest file time.
package scan

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Genivia/ugrep-indexer/internal/config"
	"github.com/Genivia/ugrep-indexer/internal/fsio"
	"github.com/Genivia/ugrep-indexer/internal/ignore"
)

// Entry is one catalogued filesystem item. An Entry with an empty Pathname is
// a sentinel on the work stack that pops one ignore frame when drained.
type Entry struct {
	Pathname string
	Base     int    // length of the basename within Pathname
	Mtime    uint64 // modification time in microseconds
	Size     int64
}

// Basename returns the trailing path component.
func (e *Entry) Basename() string {
	return e.Pathname[len(e.Pathname)-e.Base:]
}

// Sentinel reports whether this entry marks an ignore-frame pop.
func (e *Entry) Sentinel() bool {
	return e.Pathname == ""
}

// Root builds the entry for the traversal root. Its modification time is the
// maximum value so the root directory is always inspected.
func Root(pathname string) Entry {
	base := len(pathname)
	if i := strings.LastIndexByte(pathname, byte(filepath.Separator)); i >= 0 {
		base = len(pathname) - i - 1
	}
	return Entry{
		Pathname: pathname,
		Base:     base,
		Mtime:    math.MaxUint64,
	}
}

// Reporter receives non-fatal catalog errors.
type Reporter interface {
	Error(message, arg string, err error)
}

// Result is the catalog of one directory.
type Result struct {
	OK    bool
	Files []Entry

	IndexTime uint64 // mtime of the existing index file, 0 if none
	LastTime  uint64 // newest mtime across Files, 0 if none

	Links        uint64 // symbolic links skipped
	Other        uint64 // non-regular, non-directory children
	IgnoredDirs  int64
	IgnoredFiles int64
}

// Catalog enumerates dirPath. Subdirectories are appended to the driver's
// work stack in dirs; when an ignore file is found its frame is pushed on ig
// and a sentinel entry is planted below the subdirectories, so the frame pops
// exactly when the traversal leaves this directory. With dirOnly set only
// subdirectories are catalogued and ignore files are not loaded (delete mode).
func Catalog(cfg *config.Config, rep Reporter, ig *ignore.Stack, dirPath string, dirs *[]Entry, dirOnly bool) Result {
	var res Result

	children, err := fsio.ReadDir(dirPath)
	if err != nil {
		rep.Error("cannot open directory", dirPath, err)
		drainSentinels(ig, dirs)
		return res
	}
	res.OK = true

	if !dirOnly && len(cfg.IgnoreFiles) > 0 {
		loadIgnoreFiles(cfg, ig, dirPath, dirs)
	}

	for _, child := range children {
		name := child.Name()
		pathname := joinPath(dirPath, name)

		fi, err := fsio.Lstat(pathname)
		if err != nil {
			rep.Error("cannot stat", pathname, err)
			continue
		}

		if fi.Mode().IsRegular() && name == config.IndexFilename {
			res.IndexTime = modifiedTime(fi)
			continue
		}

		// skip hidden entries unless indexing them
		if name[0] == '.' && !cfg.Hidden {
			continue
		}

		switch {
		case fi.IsDir():
			if dirOnly || ig.IncludeDir(pathname, name) {
				*dirs = append(*dirs, Entry{
					Pathname: pathname,
					Base:     len(name),
					Mtime:    modifiedTime(fi),
					Size:     fi.Size(),
				})
			} else {
				res.IgnoredDirs++
			}

		case fi.Mode().IsRegular():
			if dirOnly {
				continue
			}
			if ig.IncludeFile(pathname, name) {
				res.addFile(pathname, name, fi)
			} else {
				res.IgnoredFiles++
			}

		case fi.Mode()&os.ModeSymlink != 0:
			if dirOnly {
				continue
			}
			// follow symlinks to files under -S, never to directories
			if cfg.DereferenceFiles {
				if target, err := fsio.Stat(pathname); err == nil && target.Mode().IsRegular() {
					if ig.IncludeFile(pathname, name) {
						res.addFile(pathname, name, target)
					} else {
						res.IgnoredFiles++
					}
					continue
				}
			}
			res.Links++

		default:
			res.Other++
		}
	}

	drainSentinels(ig, dirs)

	return res
}

func (res *Result) addFile(pathname, name string, fi os.FileInfo) {
	mtime := modifiedTime(fi)
	if mtime > res.LastTime {
		res.LastTime = mtime
	}
	res.Files = append(res.Files, Entry{
		Pathname: pathname,
		Base:     len(name),
		Mtime:    mtime,
		Size:     fi.Size(),
	})
}

func loadIgnoreFiles(cfg *config.Config, ig *ignore.Stack, dirPath string, dirs *[]Entry) {
	for _, name := range cfg.IgnoreFiles {
		f, err := fsio.Open(joinPath(dirPath, name))
		if err != nil {
			continue
		}
		ig.Push(ignore.Parse(f))
		f.Close()

		// sentinel below the subdirectories pops the frame afterwards
		*dirs = append(*dirs, Entry{})
	}
}

// drainSentinels pops ignore frames for every sentinel now on top of the
// work stack: a directory that queued no subdirectories releases its frames
// the moment it is catalogued.
func drainSentinels(ig *ignore.Stack, dirs *[]Entry) {
	for ig.Depth() > 0 && len(*dirs) > 0 && (*dirs)[len(*dirs)-1].Sentinel() {
		*dirs = (*dirs)[:len(*dirs)-1]
		ig.Pop()
	}
}

func joinPath(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	if dir[len(dir)-1] == filepath.Separator {
		return dir + name
	}
	return dir + string(filepath.Separator) + name
}

func modifiedTime(fi os.FileInfo) uint64 {
	micro := fi.ModTime().UnixMicro()
	if micro < 0 {
		return 0
	}
	return uint64(micro)
}
