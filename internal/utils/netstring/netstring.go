/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package netstring

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
)

// Postfix refuses socketmap replies above this size, we apply the same limit to requests
const MAX_LENGTH = 100000

var (
	ErrMissingColon  = errors.New("netstring: missing colon")
	ErrBadLength     = errors.New("netstring: invalid length")
	ErrTooLong       = errors.New("netstring: exceeds maximum length")
	ErrMissingComma  = errors.New("netstring: missing comma terminator")
	ErrUnexpectedEOF = errors.New("netstring: unexpected EOF")
)

type Scanner struct {
	*bufio.Scanner
}

func NewScanner(r io.Reader) *Scanner {
	s := &Scanner{
		Scanner: bufio.NewScanner(r),
	}
	s.Scanner.Buffer(make([]byte, 0, 4096), MAX_LENGTH+16)
	s.Scanner.Split(split)
	return s
}

func split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if len(data) == 0 {
		return 0, nil, nil
	}

	colonPos := bytes.IndexByte(data, ':')
	if colonPos == -1 {
		if len(data) > 7 {
			return 0, nil, ErrBadLength
		}
		if atEOF {
			return 0, nil, ErrMissingColon
		}
		return 0, nil, nil
	}

	length, err := parseLength(data[:colonPos])
	if err != nil {
		return 0, nil, err
	}

	commaPos := colonPos + 1 + length
	if commaPos >= len(data) {
		if atEOF {
			return 0, nil, ErrUnexpectedEOF
		}
		return 0, nil, nil
	}
	if data[commaPos] != ',' {
		return 0, nil, ErrMissingComma
	}
	return commaPos + 1, data[colonPos+1 : commaPos], nil
}

func parseLength(b []byte) (int, error) {
	if len(b) == 0 || len(b) > 1 && b[0] == '0' {
		return 0, ErrBadLength
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, ErrBadLength
		}
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, ErrBadLength
	}
	if n > MAX_LENGTH {
		return 0, ErrTooLong
	}
	return n, nil
}

// Marshal encodes s as "<len>:<s>,".
func Marshal(s string) []byte {
	b := make([]byte, 0, len(s)+8)
	b = strconv.AppendInt(b, int64(len(s)), 10)
	b = append(b, ':')
	b = append(b, s...)
	return append(b, ',')
}
