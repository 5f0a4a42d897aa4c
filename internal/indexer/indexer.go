// Package indexer drives the recursive traversal and reconciles each
// directory's catalog with its on-disk index, rewriting the index in place
// with minimum I/O.
package indexer

import (
	"path/filepath"

	"github.com/Genivia/ugrep-indexer/internal/config"
	"github.com/Genivia/ugrep-indexer/internal/fingerprint"
	"github.com/Genivia/ugrep-indexer/internal/fsio"
	"github.com/Genivia/ugrep-indexer/internal/ignore"
	"github.com/Genivia/ugrep-indexer/internal/scan"
)

// Indexer runs one of the three modes over a directory tree: index (default),
// check (read-only drift report) or delete (remove index files).
type Indexer struct {
	cfg *config.Config
	rep *Report
	ig  ignore.Stack
	fp  *fingerprint.Fingerprinter
	st  Stats
}

func New(cfg *config.Config) *Indexer {
	return &Indexer{
		cfg: cfg,
		rep: NewReport(cfg),
		fp:  fingerprint.New(cfg.Accuracy, cfg.IgnoreBinary),
	}
}

// Stats exposes the tallies of the last run.
func (ix *Indexer) Stats() *Stats {
	return &ix.st
}

// Run executes the configured mode and returns the process exit code: 0 on
// success, 1 when check mode detects drift.
func (ix *Indexer) Run() int {
	if ix.cfg.Delete {
		ix.deleteIndexes()
		return 0
	}
	return ix.index()
}

// index walks the tree depth-first with an explicit work stack and updates
// one directory at a time.
func (ix *Indexer) index() int {
	dirs := []scan.Entry{scan.Root(ix.cfg.Path)}

	for len(dirs) > 0 {
		visit := dirs[len(dirs)-1]
		dirs = dirs[:len(dirs)-1]

		if visit.Sentinel() {
			ix.ig.Pop()
			continue
		}

		res := scan.Catalog(ix.cfg, ix.rep, &ix.ig, visit.Pathname, &dirs, false)
		if !res.OK {
			continue
		}

		ix.st.NumDirs++
		ix.st.NumLinks += res.Links
		ix.st.NumOther += res.Other
		ix.st.IgnDirs += res.IgnoredDirs
		ix.st.IgnFiles += res.IgnoredFiles

		ix.updateDir(&visit, &res)
	}

	ix.st.printScanned(ix.rep)

	if ix.cfg.Check {
		ix.st.printCheck(ix.rep, len(ix.cfg.IgnoreFiles) > 0)
		if ix.st.Clean() {
			return 0
		}
		return 1
	}

	ix.st.printIndexed(ix.rep, len(ix.cfg.IgnoreFiles) > 0)
	return 0
}

// deleteIndexes removes every index file in the tree. Directories are
// catalogued dir-only: no ignore files, no file entries, and symbolic links
// to directories are never followed.
func (ix *Indexer) deleteIndexes() {
	ix.rep.noMessages = true

	dirs := []scan.Entry{scan.Root(ix.cfg.Path)}

	for len(dirs) > 0 {
		visit := dirs[len(dirs)-1]
		dirs = dirs[:len(dirs)-1]

		if visit.Sentinel() {
			ix.ig.Pop()
			continue
		}

		res := scan.Catalog(ix.cfg, ix.rep, &ix.ig, visit.Pathname, &dirs, true)
		if res.OK && res.IndexTime > 0 {
			fsio.Remove(filepath.Join(visit.Pathname, config.IndexFilename))
		}
	}
}
