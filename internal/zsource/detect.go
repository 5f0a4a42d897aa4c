package zsource

import "bufio"

type format int

const (
	formatPlain format = iota
	formatGzip
	formatZstd
	formatXz
	formatBzip2
	formatZlib
	formatTar
	formatZip
)

// peekSize covers the tar magic at offset 257.
const peekSize = 4096

// detect sniffs the stream head without consuming it.
func detect(br *bufio.Reader) format {
	head, _ := br.Peek(265)
	if len(head) < 2 {
		return formatPlain
	}

	switch {
	case head[0] == 0x1f && head[1] == 0x8b:
		return formatGzip
	case len(head) >= 4 && head[0] == 0x28 && head[1] == 0xb5 && head[2] == 0x2f && head[3] == 0xfd:
		return formatZstd
	case len(head) >= 6 && head[0] == 0xfd && head[1] == 0x37 && head[2] == 0x7a &&
		head[3] == 0x58 && head[4] == 0x5a && head[5] == 0x00:
		return formatXz
	case len(head) >= 3 && head[0] == 'B' && head[1] == 'Z' && head[2] == 'h':
		return formatBzip2
	case len(head) >= 4 && head[0] == 'P' && head[1] == 'K' && head[2] == 0x03 && head[3] == 0x04:
		return formatZip
	case len(head) >= 262 && head[257] == 'u' && head[258] == 's' &&
		head[259] == 't' && head[260] == 'a' && head[261] == 'r':
		return formatTar
	case head[0] == 0x78 && (uint16(head[0])<<8|uint16(head[1]))%31 == 0:
		// zlib last: a bare 0x78 prefix is otherwise easy to mistake
		return formatZlib
	}

	return formatPlain
}
