// Package fingerprint builds the per-file index fingerprint: eight Bloom
// filters over the sliding 1..8-grams of a byte stream, packed into the bit
// planes of a single byte table, then halved in place until the measured
// noise reaches the threshold for the configured accuracy.
package fingerprint

import (
	"io"
	"math/bits"

	"github.com/zeebo/xxh3"

	"github.com/Genivia/ugrep-indexer/internal/config"
)

// Result is the fingerprint of one byte stream. Hashes aliases the
// fingerprinter's internal table and is valid until the next Stream call.
type Result struct {
	Hashes []byte  // 1<<LogSize bytes, empty when nothing was indexed
	Size   int     // len(Hashes)
	Noise  float64 // fraction of zero bits across all eight planes
	Binary bool    // prefix classified as binary
	Digest [16]byte
}

// LogSize returns log2 of the table size, 0 when there is no fingerprint.
func (r *Result) LogSize() int {
	logsize := 0
	for k := r.Size; k > 1; k >>= 1 {
		logsize++
	}
	return logsize
}

// Fingerprinter indexes byte streams one at a time, reusing its table and
// read buffer across files.
type Fingerprinter struct {
	accuracy     int
	ignoreBinary bool

	hashes [config.MaxHashes]byte
	buffer [config.BufSize]byte
}

func New(accuracy int, ignoreBinary bool) *Fingerprinter {
	return &Fingerprinter{accuracy: accuracy, ignoreBinary: ignoreBinary}
}

// indexhash is the rolling 16-bit fingerprint hash, h*61 + b.
func indexhash(h uint16, b byte) uint16 {
	return (h << 6) - h - h - h + uint16(b)
}

// Stream indexes r. A zero-length stream and, under the ignore-binary
// policy, a binary stream yield an empty fingerprint.
func (f *Fingerprinter) Stream(r io.Reader) (Result, error) {
	var res Result

	digest := xxh3.New()

	buflen, err := f.fill(r)
	if err != nil {
		return res, err
	}
	if buflen == 0 {
		res.Digest = digest.Sum128().Bytes()
		return res, nil
	}
	digest.Write(f.buffer[:buflen])

	res.Binary = IsBinary(f.buffer[:buflen])
	if res.Binary && f.ignoreBinary {
		// drain so digests cover the whole stream even when skipping
		for {
			n, err := f.fill(r)
			if err != nil {
				return res, err
			}
			if n == 0 {
				break
			}
			digest.Write(f.buffer[:n])
		}
		res.Digest = digest.Sum128().Bytes()
		return res, nil
	}

	var window [8]byte
	winlen := buflen
	if winlen > len(window) {
		winlen = len(window)
	}
	copy(window[:], f.buffer[:winlen])
	pos := winlen
	rem := buflen - winlen

	size := config.MaxHashes
	hashes := f.hashes[:]
	for i := range hashes {
		hashes[i] = 0xff
	}

	if rem > 0 {
		for {
			h := uint16(window[0])
			hashes[h] &^= 0x01
			h = indexhash(h, window[1])
			hashes[h] &^= 0x02
			h = indexhash(h, window[2])
			hashes[h] &^= 0x04
			h = indexhash(h, window[3])
			hashes[h] &^= 0x08
			h = indexhash(h, window[4])
			hashes[h] &^= 0x10
			h = indexhash(h, window[5])
			hashes[h] &^= 0x20
			h = indexhash(h, window[6])
			hashes[h] &^= 0x40
			h = indexhash(h, window[7])
			hashes[h] &^= 0x80

			// shift the window and append the next byte from the stream
			copy(window[:], window[1:])
			window[7] = f.buffer[pos]
			pos++
			rem--

			if rem == 0 {
				n, err := f.fill(r)
				if err != nil {
					return res, err
				}
				if n == 0 {
					break
				}
				digest.Write(f.buffer[:n])
				pos = 0
				rem = n
			}
		}
	}

	// record the truncated n-grams at the tail of the stream
	for i := 0; i < winlen; i++ {
		h := uint16(window[i])
		hashes[h] &^= 0x01
		k := byte(0x02)
		for j := i + 1; j < winlen; j++ {
			h = indexhash(h, window[j])
			hashes[h] &^= k
			k <<= 1
		}
	}

	zero := 0
	for i := 0; i < size; i++ {
		zero += bits.OnesCount8(^hashes[i])
	}
	noise := float64(zero) / float64(8*size)

	// compress the table in place until max noise is reached or exceeded
	for size > config.MinHashes {
		half := size / 2
		zero = 0
		for i := 0; i < half; i++ {
			zero += bits.OnesCount8(^(hashes[i] & hashes[i+half]))
		}
		halfNoise := float64(zero) / float64(8*half)

		// stop at accuracy 0 -> 80% and 9 -> 10%, default 5 -> 41.1%
		if 100*halfNoise >= 10+70*float64(9-f.accuracy)/9 {
			break
		}

		for i := 0; i < half; i++ {
			hashes[i] &= hashes[i+half]
		}
		size = half
		noise = halfNoise
	}

	res.Hashes = hashes[:size]
	res.Size = size
	res.Noise = noise
	res.Digest = digest.Sum128().Bytes()

	return res, nil
}

// fill reads up to one buffer of input, treating EOF as a zero-length read.
func (f *Fingerprinter) fill(r io.Reader) (int, error) {
	n, err := io.ReadFull(r, f.buffer[:])
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	return n, err
}
