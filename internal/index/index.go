// Package index reads and rewrites the per-directory binary index file: a
// 5-byte magic followed by concatenated records, each a 4-byte header, a
// basename and the fingerprint bytes. The file is self-describing and is
// mutated in place with separate read and write cursors.
package index

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/Genivia/ugrep-indexer/internal/fsio"
)

// Magic is the index file signature, including the terminating NUL.
var Magic = [5]byte{'U', 'G', '#', 0x03, 0x00}

// Record header flag bits and the logsize mask.
const (
	FlagBinary     = 0x80
	FlagArchive    = 0x40
	FlagCompressed = 0x20
	LogSizeMask    = 0x1f

	headerSize = 4

	// MaxLogSize bounds 1<<logsize to the initial fingerprint table size;
	// anything larger marks a corrupt record.
	MaxLogSize = 16
)

// Record is one (header, basename, fingerprint) triple.
type Record struct {
	Accuracy byte // ASCII digit '0'..'9'
	Flags    byte // bit 7 binary, bit 6 archive, bit 5 compressed, bits 4..0 logsize
	Basename string
	Hashes   []byte
}

// MakeFlags packs the header flag byte.
func MakeFlags(logsize int, binary, archive, compressed bool) byte {
	flags := byte(logsize & LogSizeMask)
	if binary {
		flags |= FlagBinary
	}
	if archive {
		flags |= FlagArchive
	}
	if compressed {
		flags |= FlagCompressed
	}
	return flags
}

func (r *Record) LogSize() int     { return int(r.Flags & LogSizeMask) }
func (r *Record) Binary() bool     { return r.Flags&FlagBinary != 0 }
func (r *Record) Archive() bool    { return r.Flags&FlagArchive != 0 }
func (r *Record) Compressed() bool { return r.Flags&FlagCompressed != 0 }

// HashesSize returns 1<<logsize, or 0 when there is no fingerprint.
func (r *Record) HashesSize() int {
	logsize := r.LogSize()
	if logsize == 0 {
		return 0
	}
	return 1 << logsize
}

// WireSize is the on-disk length of the record.
func (r *Record) WireSize() int64 {
	return int64(headerSize + len(r.Basename) + r.HashesSize())
}

// File wraps one open index file handle. Readers and the updater share it;
// appends go through a tracked write offset.
type File struct {
	f   *os.File
	pos int64 // append offset
}

// Create truncates or creates the index at path and writes the magic.
func Create(path string) (*File, error) {
	f, err := fsio.Create(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(Magic[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("write magic: %w", err)
	}
	return &File{f: f, pos: int64(len(Magic))}, nil
}

// Open opens an existing index read-write for an in-place update.
func Open(path string) (*File, error) {
	f, err := fsio.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &File{f: f, pos: int64(len(Magic))}, nil
}

// OpenRead opens an existing index read-only, for check mode.
func OpenRead(path string) (*File, error) {
	f, err := fsio.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{f: f, pos: int64(len(Magic))}, nil
}

func (x *File) Close() error {
	return x.f.Close()
}

// CheckMagic reads and verifies the signature at the start of the file.
func (x *File) CheckMagic() bool {
	var magic [len(Magic)]byte
	if _, err := x.f.ReadAt(magic[:], 0); err != nil {
		return false
	}
	return bytes.Equal(magic[:], Magic[:])
}

// ReadHeaderAt reads the record header and basename at pos, leaving the file
// positioned at the record's fingerprint bytes. Hashes are not read; use
// ReadHashes when they are needed. Returns false at EOF or on any malformed
// tail: the caller stops at the last valid record boundary.
func (x *File) ReadHeaderAt(pos int64) (*Record, bool) {
	if _, err := x.f.Seek(pos, io.SeekStart); err != nil {
		return nil, false
	}

	var header [headerSize]byte
	if _, err := io.ReadFull(x.f, header[:]); err != nil {
		return nil, false
	}

	if header[1]&LogSizeMask > MaxLogSize {
		return nil, false
	}

	basenameSize := int(header[2]) | int(header[3])<<8
	basename := make([]byte, basenameSize)
	if _, err := io.ReadFull(x.f, basename); err != nil {
		return nil, false
	}

	return &Record{
		Accuracy: header[0],
		Flags:    header[1],
		Basename: string(basename),
	}, true
}

// ReadHashes reads the fingerprint of the record returned by the preceding
// ReadHeaderAt call.
func (x *File) ReadHashes(rec *Record) bool {
	size := rec.HashesSize()
	if size == 0 {
		rec.Hashes = nil
		return true
	}
	rec.Hashes = make([]byte, size)
	if _, err := io.ReadFull(x.f, rec.Hashes); err != nil {
		return false
	}
	return true
}

// WriteRecordAt shifts a complete record down to pos, moving a kept record
// toward the front of the file during compaction.
func (x *File) WriteRecordAt(rec *Record, pos int64) error {
	if _, err := x.f.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	return x.writeRecord(rec)
}

// Append writes a record at the tracked append offset.
func (x *File) Append(rec *Record) error {
	if _, err := x.f.Seek(x.pos, io.SeekStart); err != nil {
		return err
	}
	if err := x.writeRecord(rec); err != nil {
		return err
	}
	x.pos += rec.WireSize()
	return nil
}

func (x *File) writeRecord(rec *Record) error {
	header := [headerSize]byte{
		rec.Accuracy,
		rec.Flags,
		byte(len(rec.Basename)),
		byte(len(rec.Basename) >> 8),
	}
	if _, err := x.f.Write(header[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(x.f, rec.Basename); err != nil {
		return err
	}
	if len(rec.Hashes) > 0 {
		if _, err := x.f.Write(rec.Hashes); err != nil {
			return err
		}
	}
	return nil
}

// Truncate cuts the file at size, dropping compacted-away records, and moves
// the append offset there.
func (x *File) Truncate(size int64) error {
	if err := x.f.Truncate(size); err != nil {
		return err
	}
	x.pos = size
	return nil
}
