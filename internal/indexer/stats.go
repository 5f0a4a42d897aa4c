package indexer

import "fmt"

// Stats tallies one run for the summary. The stale path in the compaction
// pass decrements AddFiles so the re-index in the append pass nets out to one
// modified file, not one added file.
type Stats struct {
	NumDirs  uint64 // directories catalogued
	NumFiles uint64 // files indexed or already up to date
	NumLinks uint64 // symbolic links skipped
	NumOther uint64 // devices and other specials skipped

	AddDirs  int64 // directories without a usable index
	AddFiles int64 // new files indexed (check mode: files left to index)
	ModFiles int64 // files whose index entry was stale
	DelFiles int64 // index entries without a file

	IgnDirs  int64 // directories excluded by ignore files
	IgnFiles int64 // files excluded by ignore files
	BinFiles int64 // binary files registered but not fingerprinted

	SumHashes int64 // index storage delta in bytes
	SumFiles  int64 // file bytes scanned
	SumNoise  float64
}

// Clean reports whether a check run found every index fresh.
func (st *Stats) Clean() bool {
	return st.AddDirs == 0 && st.AddFiles == 0 && st.ModFiles == 0 && st.DelFiles == 0
}

func (st *Stats) averageNoise() int {
	n := st.ModFiles + st.AddFiles
	if n <= 0 {
		return 0
	}
	return int(100*st.SumNoise/float64(n) + 0.5)
}

// printScanned reports the scanned byte total after the per-file output.
func (st *Stats) printScanned(rep *Report) {
	if st.SumFiles <= 0 {
		return
	}
	if rep.verbose {
		fmt.Printf(" ------------ ---\n%13d%3d%%\n", st.SumFiles, st.averageNoise())
	} else if !rep.noMessages {
		fmt.Printf("\n%13d bytes scanned and indexed with %d%% noise on average", st.SumFiles, st.averageNoise())
	}
}

// printCheck prints the check-mode summary.
func (st *Stats) printCheck(rep *Report, ignoring bool) {
	if rep.quiet {
		return
	}
	fmt.Printf("\n%13d files indexed in %d directories\n", st.NumFiles, st.NumDirs)
	fmt.Printf("%13d directories not indexed\n", st.AddDirs)
	fmt.Printf("%13d new files not indexed\n", st.AddFiles)
	fmt.Printf("%13d modified files not indexed\n", st.ModFiles)
	fmt.Printf("%13d deleted files are still indexed\n", st.DelFiles-st.IgnFiles)
	fmt.Printf("%13d binary files skipped with --ignore-binary\n", st.BinFiles)
	if ignoring {
		fmt.Printf("%13d directories ignored with --ignore-files\n", st.IgnDirs)
		fmt.Printf("%13d files ignored with --ignore-files\n", st.IgnFiles)
	}
	fmt.Printf("%13d symbolic links skipped\n%13d devices skipped\n\n", st.NumLinks, st.NumOther)

	if st.Clean() {
		fmt.Printf("Checked: indexes are fresh and up to date\n\n")
	} else {
		fmt.Printf("Warning: some indexes appear to be stale and are outdated or missing\n\n")
	}
}

// printIndexed prints the indexing summary.
func (st *Stats) printIndexed(rep *Report, ignoring bool) {
	if rep.quiet {
		return
	}
	fmt.Printf("\n%13d files indexed in %d directories\n", st.NumFiles, st.NumDirs)
	fmt.Printf("%13d new directories indexed\n", st.AddDirs)
	fmt.Printf("%13d new files indexed\n", st.AddFiles)
	fmt.Printf("%13d modified files indexed\n", st.ModFiles)
	fmt.Printf("%13d deleted files removed from indexes\n", st.DelFiles)
	fmt.Printf("%13d binary files skipped with --ignore-binary\n", st.BinFiles)
	if ignoring {
		fmt.Printf("%13d directories ignored with --ignore-files\n", st.IgnDirs)
		fmt.Printf("%13d files ignored with --ignore-files\n", st.IgnFiles)
	}
	fmt.Printf("%13d symbolic links skipped\n%13d devices skipped\n", st.NumLinks, st.NumOther)
	if st.SumHashes > 0 && st.NumFiles > 0 {
		fmt.Printf("%13d bytes indexing storage increase at %d bytes/file\n\n", st.SumHashes, st.SumHashes/int64(st.NumFiles))
	} else {
		fmt.Printf("%13d bytes indexing storage decrease\n\n", -st.SumHashes)
	}
	fmt.Printf("Indexes are fresh and up to date\n\n")
}
