package transport

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadLine reads one reply line without its terminator.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// MaxBlockLength bounds the payload a block header may announce. The
// largest full-pair transfer (100001 points, four columns, 16 bytes per
// complex value) is about 6.4 MB.
const MaxBlockLength = 64 << 20

// ReadBlock reads an IEEE-488.2 binary block "#<n><length><data>" and
// returns data. A line terminator following a definite block is consumed;
// ReadBlock waits for it as long as the reader does.
//
// "#0" marks an indefinite block, which ends at the first newline. Only
// text payloads can be sent that way since binary data may contain 0x0A.
func ReadBlock(r *bufio.Reader) ([]byte, error) {
	data, err := readBlockBody(r)
	if err != nil {
		return nil, err
	}
	_ = consumeTerminator(r)
	return data, nil
}

func readBlockBody(r *bufio.Reader) ([]byte, error) {
	hash, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if hash != '#' {
		return nil, fmt.Errorf("block must start with '#', got %q", hash)
	}

	nd, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if nd < '0' || nd > '9' {
		return nil, fmt.Errorf("invalid block header digit %q", nd)
	}

	if nd == '0' {
		data, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		return []byte(strings.TrimRight(string(data), "\r\n")), nil
	}

	digits := make([]byte, int(nd-'0'))
	if _, err := io.ReadFull(r, digits); err != nil {
		return nil, fmt.Errorf("block length: %w", err)
	}
	length, err := strconv.Atoi(string(digits))
	if err != nil || length < 0 {
		return nil, fmt.Errorf("invalid block length %q", digits)
	}
	if length > MaxBlockLength {
		return nil, fmt.Errorf("block length %d exceeds %d bytes", length, MaxBlockLength)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("block payload (%d bytes): %w", length, err)
	}
	return data, nil
}

// consumeTerminator reads an optional "\n" or "\r\n" after a block. A
// missing terminator at end of input is fine; any other read error is
// returned with nothing consumed past the block.
func consumeTerminator(r *bufio.Reader) error {
	b, err := r.Peek(1)
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	switch b[0] {
	case '\r':
		_, _ = r.ReadByte()
		next, err := r.Peek(1)
		switch {
		case err == nil && next[0] == '\n':
			_, _ = r.ReadByte()
		case err != nil && err != io.EOF:
			return err
		}
	case '\n':
		_, _ = r.ReadByte()
	}
	return nil
}

// FormatBlock frames data as a definite-length block.
func FormatBlock(data []byte) []byte {
	length := strconv.Itoa(len(data))
	out := make([]byte, 0, 2+len(length)+len(data))
	out = append(out, '#', byte('0'+len(length)))
	out = append(out, length...)
	return append(out, data...)
}
