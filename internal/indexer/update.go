package indexer

import (
	"io"
	"path/filepath"

	"github.com/zeebo/xxh3"
	"golang.org/x/exp/mmap"

	"github.com/Genivia/ugrep-indexer/internal/config"
	"github.com/Genivia/ugrep-indexer/internal/fingerprint"
	"github.com/Genivia/ugrep-indexer/internal/fsio"
	"github.com/Genivia/ugrep-indexer/internal/index"
	"github.com/Genivia/ugrep-indexer/internal/scan"
	"github.com/Genivia/ugrep-indexer/internal/zsource"
)

// updateDir reconciles one directory's catalog with its index: fast path
// when nothing changed, compaction of the existing records, then one appended
// record per file (or archive member) left to index.
func (ix *Indexer) updateDir(visit *scan.Entry, res *scan.Result) {
	cfg := ix.cfg
	indexPath := filepath.Join(visit.Pathname, config.IndexFilename)

	files := res.Files
	var xf *index.File

	if !cfg.Force {
		switch {
		case res.IndexTime > 0:
			// if the index is newer than every file and than the directory
			// itself, every indexed file is unchanged
			if res.LastTime <= res.IndexTime && visit.Mtime <= res.IndexTime {
				ix.st.NumFiles += uint64(len(files))
				return
			}

			var err error
			if cfg.Check {
				xf, err = index.OpenRead(indexPath)
			} else {
				xf, err = index.Open(indexPath)
			}
			if err != nil {
				ix.st.AddDirs++
				break
			}
			if !xf.CheckMagic() {
				// corrupted index, recreate from scratch
				ix.st.AddDirs++
				xf.Close()
				xf = nil
				break
			}

			var ok bool
			files, ok = ix.compact(xf, files, res.IndexTime, visit.Pathname)
			if !ok {
				xf.Close()
				return
			}

		default:
			ix.st.AddDirs++
		}
	}

	if xf == nil && !cfg.Check {
		var err error
		xf, err = index.Create(indexPath)
		if err != nil {
			ix.rep.Error("cannot create index file in", visit.Pathname, err)
			xf = nil
		}
	}

	if xf != nil && !cfg.Check {
		ix.st.NumFiles += uint64(len(files))
		ix.appendPass(xf, files, visit.Pathname)
	} else {
		ix.st.AddFiles += int64(len(files))
	}

	if xf != nil {
		xf.Close()
	}
}

// compact walks the existing records with separate read and write cursors,
// keeping records that are still current, dropping deleted and stale ones,
// and truncating the tail. Records of an archive share the archive's
// basename, so a matched archive entry is postponed rather than removed until
// a record with a different basename shows up. Returns the catalog entries
// still needing an appended record, and false when the update was abandoned.
func (ix *Indexer) compact(xf *index.File, files []scan.Entry, indexTime uint64, dirPath string) ([]scan.Entry, bool) {
	check := ix.cfg.Check

	inPos := int64(len(index.Magic))
	outPos := inPos
	postponed := ""

walk:
	for {
		rec, ok := xf.ReadHeaderAt(inPos)
		if !ok {
			break
		}

		if postponed != "" && rec.Basename != postponed {
			files = removeEntry(files, postponed)
			postponed = ""
		}

		entry := findEntry(files, rec.Basename)
		size := rec.WireSize()

		switch {
		case entry != nil && entry.Mtime <= indexTime:
			// record is still current
			ix.st.NumFiles++
			if rec.Binary() && rec.HashesSize() == 0 {
				ix.st.BinFiles++
			}

			if !check && outPos < inPos {
				if !xf.ReadHashes(rec) {
					// corrupt tail, stop at the last valid boundary
					break walk
				}
				if err := xf.WriteRecordAt(rec, outPos); err != nil {
					ix.rep.Error("cannot update index file in", dirPath, err)
					xf.Truncate(outPos)
					return nil, false
				}
			}

			if rec.Archive() {
				postponed = rec.Basename
			} else {
				files = removeEntry(files, rec.Basename)
			}
			outPos += size

		case entry == nil:
			// file was deleted, drop the record
			ix.st.DelFiles++
			if check {
				outPos += size
			} else {
				ix.st.SumHashes -= size
			}

		default:
			// file was modified, drop the record and leave the entry for
			// the append pass; the decrement nets the re-index out to one
			// modified file
			ix.st.ModFiles++
			if check {
				outPos += size
			} else {
				ix.st.AddFiles--
				ix.st.SumHashes -= size
			}
		}

		inPos += size
	}

	if postponed != "" {
		files = removeEntry(files, postponed)
	}

	if !check {
		if err := xf.Truncate(outPos); err != nil {
			ix.rep.Error("cannot update index file in", dirPath, err)
			return nil, false
		}
	}

	return files, true
}

func findEntry(files []scan.Entry, basename string) *scan.Entry {
	for i := range files {
		if files[i].Basename() == basename {
			return &files[i]
		}
	}
	return nil
}

func removeEntry(files []scan.Entry, basename string) []scan.Entry {
	for i := range files {
		if files[i].Basename() == basename {
			return append(files[:i], files[i+1:]...)
		}
	}
	return files
}

// appendPass writes one record per catalog entry left to index.
func (ix *Indexer) appendPass(xf *index.File, files []scan.Entry, dirPath string) {
	for i := range files {
		file := &files[i]

		if file.Size == 0 {
			rec := &index.Record{
				Accuracy: ix.accuracyDigit(),
				Basename: file.Basename(),
			}
			if err := xf.Append(rec); err != nil {
				ix.rep.Error("cannot write index file in", dirPath, err)
				return
			}
			ix.tally(rec, file, fingerprint.Result{Digest: xxh3.Hash128(nil).Bytes()}, true)
			continue
		}

		var ok bool
		if ix.cfg.Decompress {
			ok = ix.appendMembers(xf, file, dirPath)
		} else {
			ok = ix.appendPlain(xf, file, dirPath)
		}
		if !ok {
			return
		}
	}
}

// appendPlain fingerprints a regular file, preferring a memory mapping over
// buffered reads.
func (ix *Indexer) appendPlain(xf *index.File, file *scan.Entry, dirPath string) bool {
	var (
		res fingerprint.Result
		err error
	)

	if ra, merr := mmap.Open(file.Pathname); merr == nil {
		res, err = ix.fp.Stream(io.NewSectionReader(ra, 0, int64(ra.Len())))
		ra.Close()
	} else {
		f, oerr := fsio.Open(file.Pathname)
		if oerr != nil {
			ix.rep.Warning("cannot index", file.Pathname)
			return true
		}
		res, err = ix.fp.Stream(f)
		f.Close()
	}
	if err != nil {
		ix.rep.Error("cannot read", file.Pathname, err)
		return true
	}

	return ix.writeRecord(xf, file, res, false, false, true, dirPath)
}

// appendMembers fingerprints every member the decompression source yields,
// one record each. Directory members are drained and skipped. A source that
// fails before producing anything falls back to indexing the raw bytes.
func (ix *Indexer) appendMembers(xf *index.File, file *scan.Entry, dirPath string) bool {
	src, err := zsource.Open(file.Pathname, ix.cfg.Zmax)
	if err != nil {
		if ix.rep.verbose {
			ix.rep.Warning("cannot decompress", file.Pathname)
		}
		return ix.appendPlain(xf, file, dirPath)
	}
	defer src.Close()

	first := true
	for {
		m, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if first {
				if ix.rep.verbose {
					ix.rep.Warning("cannot decompress", file.Pathname)
				}
				return ix.appendPlain(xf, file, dirPath)
			}
			ix.rep.Error("cannot read", file.Pathname, err)
			return true
		}

		if len(m.Name) > 0 && m.Name[len(m.Name)-1] == '/' {
			// archive directory entry, drain and move on
			io.Copy(io.Discard, m.Reader)
			continue
		}

		res, err := ix.fp.Stream(m.Reader)
		if err != nil {
			ix.rep.Error("cannot read", file.Pathname, err)
			return true
		}

		if !ix.writeRecord(xf, file, res, m.Archive, m.Compressed, first, dirPath) {
			return false
		}
		first = false
	}

	if first {
		// no member produced a record (an archive of directory entries
		// or content-less entries only): register the file so later runs
		// see it indexed
		rec := &index.Record{
			Accuracy: ix.accuracyDigit(),
			Flags:    index.MakeFlags(0, false, true, false),
			Basename: file.Basename(),
		}
		if err := xf.Append(rec); err != nil {
			ix.rep.Error("cannot write index file in", dirPath, err)
			return false
		}
		ix.tallyMember(rec, file, fingerprint.Result{Digest: xxh3.Hash128(nil).Bytes()}, true, true)
	}

	return true
}

// writeRecord appends one record and updates the statistics. The scanned
// byte total counts each file once, on its first record.
func (ix *Indexer) writeRecord(xf *index.File, file *scan.Entry, res fingerprint.Result, archive, compressed, firstOfFile bool, dirPath string) bool {
	rec := &index.Record{
		Accuracy: ix.accuracyDigit(),
		Flags:    index.MakeFlags(res.LogSize(), res.Binary, archive, compressed),
		Basename: file.Basename(),
		Hashes:   res.Hashes,
	}

	if err := xf.Append(rec); err != nil {
		ix.rep.Error("cannot write index file in", dirPath, err)
		return false
	}

	ix.tallyMember(rec, file, res, archive || compressed, firstOfFile)
	return true
}

func (ix *Indexer) tally(rec *index.Record, file *scan.Entry, res fingerprint.Result, firstOfFile bool) {
	ix.tallyMember(rec, file, res, false, firstOfFile)
}

func (ix *Indexer) tallyMember(rec *index.Record, file *scan.Entry, res fingerprint.Result, packed, firstOfFile bool) {
	if res.Binary && res.Size == 0 {
		ix.st.BinFiles++
	}

	if !res.Binary || !ix.cfg.IgnoreBinary {
		mark := byte(' ')
		if packed {
			mark = 'A'
		} else if res.Binary {
			mark = 'B'
		}
		ix.rep.VerboseFile(mark, file.Size, res.Noise, res.Digest, file.Pathname)

		if firstOfFile {
			ix.st.SumFiles += file.Size
		}
		ix.st.SumNoise += res.Noise
	}

	ix.st.AddFiles++
	ix.st.SumHashes += rec.WireSize()
}

func (ix *Indexer) accuracyDigit() byte {
	return byte('0' + ix.cfg.Accuracy)
}
