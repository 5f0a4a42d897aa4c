// Package zsource exposes an archive or compressed file as a sequence of
// named member byte streams. Formats are detected by magic bytes, nested
// stages (a .tar.gz, a tarball inside a zip) are unwrapped up to a configured
// bound, and anything beyond that bound passes through undecoded.
package zsource

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/Genivia/ugrep-indexer/internal/fsio"
)

// Member is one byte stream yielded by a Source. A Name ending in / is a
// directory entry inside an archive: drain it, fingerprint nothing. The name
// is empty for the single member of a non-archive file.
type Member struct {
	Name       string
	Reader     io.Reader
	Compressed bool // some decompression was applied on the way to this member
	Archive    bool // the member came out of a multi-member container
}

// Source iterates the members of one opened file.
type Source struct {
	f       *os.File
	zmax    int
	stack   []iterator
	closers []io.Closer
}

// iterator produces the raw members of one container layer.
type iterator interface {
	next() (*Member, error) // io.EOF when the layer is exhausted
	stages() int            // decompression stages consumed up to this layer
}

// Open opens path and detects its outermost format. zmax bounds the number
// of nested decompression stages, 1..99.
func Open(path string, zmax int) (*Source, error) {
	f, err := fsio.Open(path)
	if err != nil {
		return nil, err
	}

	s := &Source{f: f, zmax: zmax}
	if err := s.expand(bufio.NewReaderSize(f, peekSize), 0, false, false, f); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Next yields the next member, io.EOF when the source is exhausted.
func (s *Source) Next() (*Member, error) {
	for {
		if len(s.stack) == 0 {
			return nil, io.EOF
		}

		it := s.stack[len(s.stack)-1]
		m, err := it.next()
		if err == io.EOF {
			s.stack = s.stack[:len(s.stack)-1]
			continue
		}
		if err != nil {
			return nil, err
		}

		// a directory entry is yielded as-is for the caller to skip
		if len(m.Name) > 0 && m.Name[len(m.Name)-1] == '/' {
			return m, nil
		}

		// a member can itself be compressed or a nested container
		if err := s.expand(bufio.NewReaderSize(m.Reader, peekSize), it.stages(), m.Compressed, m.Archive, nil); err != nil {
			return nil, err
		}
		top := s.stack[len(s.stack)-1]
		if single, ok := top.(*singleIterator); ok {
			s.stack = s.stack[:len(s.stack)-1]
			member := single.member
			member.Name = m.Name
			return member, nil
		}
	}
}

// Close releases all decoders and the underlying file.
func (s *Source) Close() error {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i].Close()
	}
	s.closers = nil
	err := s.f.Close()
	return err
}

// expand unwraps single-stream compression until a container, a plain stream
// or the stage bound is reached, then pushes the resulting iterator. outer is
// the underlying file when br reads it directly with nothing consumed, which
// lets a top-level zip use random access instead of spooling.
func (s *Source) expand(br *bufio.Reader, used int, compressed, inArchive bool, outer *os.File) error {
	for {
		if used >= s.zmax {
			// beyond zmax the contents pass through undecoded
			s.push(&singleIterator{member: &Member{Reader: br, Compressed: compressed, Archive: inArchive}, used: used})
			return nil
		}

		switch detect(br) {
		case formatGzip:
			zr, err := gzip.NewReader(br)
			if err != nil {
				return fmt.Errorf("gzip: %w", err)
			}
			s.closers = append(s.closers, zr)
			br = bufio.NewReaderSize(zr, peekSize)

		case formatZstd:
			// single goroutine keeps the traversal synchronous
			zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return fmt.Errorf("zstd: %w", err)
			}
			rc := zr.IOReadCloser()
			s.closers = append(s.closers, rc)
			br = bufio.NewReaderSize(rc, peekSize)

		case formatXz:
			xr, err := xz.NewReader(br)
			if err != nil {
				return fmt.Errorf("xz: %w", err)
			}
			br = bufio.NewReaderSize(xr, peekSize)

		case formatBzip2:
			br = bufio.NewReaderSize(bzip2.NewReader(br), peekSize)

		case formatZlib:
			zr, err := zlib.NewReader(br)
			if err != nil {
				return fmt.Errorf("zlib: %w", err)
			}
			s.closers = append(s.closers, zr)
			br = bufio.NewReaderSize(zr, peekSize)

		case formatTar:
			s.push(&tarIterator{tr: tar.NewReader(br), used: used + 1, compressed: compressed})
			return nil

		case formatZip:
			it, err := newZipIterator(br, outer, used+1)
			if err != nil {
				return fmt.Errorf("zip: %w", err)
			}
			s.push(it)
			return nil

		default:
			s.push(&singleIterator{member: &Member{Reader: br, Compressed: compressed, Archive: inArchive}, used: used})
			return nil
		}

		compressed = true
		used++
		outer = nil
	}
}

func (s *Source) push(it iterator) {
	s.stack = append(s.stack, it)
}

// singleIterator yields one member, then io.EOF.
type singleIterator struct {
	member *Member
	used   int
	done   bool
}

func (it *singleIterator) next() (*Member, error) {
	if it.done {
		return nil, io.EOF
	}
	it.done = true
	return it.member, nil
}

func (it *singleIterator) stages() int { return it.used }

type tarIterator struct {
	tr         *tar.Reader
	used       int
	compressed bool
}

func (it *tarIterator) next() (*Member, error) {
	for {
		hdr, err := it.tr.Next()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("tar: %w", err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			name := hdr.Name
			if len(name) == 0 || name[len(name)-1] != '/' {
				name += "/"
			}
			return &Member{Name: name, Reader: it.tr, Compressed: it.compressed, Archive: true}, nil
		case tar.TypeReg:
			return &Member{Name: hdr.Name, Reader: it.tr, Compressed: it.compressed, Archive: true}, nil
		default:
			// links, devices and the like carry no content
			continue
		}
	}
}

func (it *tarIterator) stages() int { return it.used }

type zipIterator struct {
	zr   *zip.Reader
	used int
	pos  int
	open io.ReadCloser
}

// newZipIterator builds a zip layer from the outer file when the archive is
// the file itself, or by spooling a nested member into memory, since zip
// needs random access.
func newZipIterator(br *bufio.Reader, outer *os.File, used int) (*zipIterator, error) {
	var (
		ra   io.ReaderAt
		size int64
	)

	if outer != nil {
		fi, err := outer.Stat()
		if err != nil {
			return nil, err
		}
		ra = outer
		size = fi.Size()
	} else {
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, err
		}
		ra = bytes.NewReader(data)
		size = int64(len(data))
	}

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, err
	}
	return &zipIterator{zr: zr, used: used}, nil
}

func (it *zipIterator) next() (*Member, error) {
	if it.open != nil {
		it.open.Close()
		it.open = nil
	}

	if it.pos >= len(it.zr.File) {
		return nil, io.EOF
	}

	zf := it.zr.File[it.pos]
	it.pos++

	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("zip member %s: %w", zf.Name, err)
	}
	it.open = rc

	return &Member{Name: zf.Name, Reader: rc, Compressed: true, Archive: true}, nil
}

func (it *zipIterator) stages() int { return it.used }
