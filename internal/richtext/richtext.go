// Package richtext extracts plain text from the attributedBody column of
// chat.db. The column holds an NSKeyedArchiver "streamtyped" blob; real
// decoding would need a full typedstream parser, so this is a best-effort
// literal scan used only when the primary text column is NULL.
package richtext

import (
	"bytes"
	"unicode/utf8"
)

var (
	header     = []byte("streamtyped")
	stringCell = []byte("NSString")
	// The archiver writes the string payload as an inline "+" cell:
	// 0x01 separator, '+' type code, then a length-prefixed byte run.
	payloadTag = []byte{0x01, 0x2b}
)

// Decode attempts to pull the message body out of a typedstream blob.
// Returns false on any structural or encoding failure; it never errors,
// since the caller always has "no text" as an acceptable outcome.
func Decode(blob []byte) (string, bool) {
	if len(blob) == 0 || !bytes.Contains(blob, header) {
		return "", false
	}

	i := bytes.Index(blob, stringCell)
	if i < 0 {
		return "", false
	}
	rest := blob[i+len(stringCell):]

	j := bytes.Index(rest, payloadTag)
	if j < 0 {
		return "", false
	}
	rest = rest[j+len(payloadTag):]

	n, ok := readLength(&rest)
	if !ok || n > len(rest) {
		return "", false
	}
	text := rest[:n]

	if !utf8.Valid(text) {
		return "", false
	}
	return string(text), true
}

// readLength consumes the typedstream length prefix: a single byte for
// runs under 128, or 0x81 followed by a uint16 little-endian for longer
// ones. Advances *rest past the prefix.
func readLength(rest *[]byte) (int, bool) {
	b := *rest
	if len(b) == 0 {
		return 0, false
	}
	if b[0] == 0x81 {
		if len(b) < 3 {
			return 0, false
		}
		n := int(b[1]) | int(b[2])<<8
		*rest = b[3:]
		return n, true
	}
	if b[0] >= 0x80 {
		return 0, false
	}
	*rest = b[1:]
	return int(b[0]), true
}
