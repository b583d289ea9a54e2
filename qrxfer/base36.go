package qrxfer

import (
	"strconv"
	"strings"
)

// EncodeBase36 renders a non-negative ordinal with digits 0-9 and A-Z.
// Chunk and batch numbers use it to stay short next to the chunk data.
func EncodeBase36(n int) string {
	return strings.ToUpper(strconv.FormatUint(uint64(n), 36))
}

// DecodeBase36 parses an ordinal written by EncodeBase36. Lower case digits
// are accepted; signs, blanks and empty input are not.
func DecodeBase36(s string) (int, error) {
	if s == "" {
		return 0, malformed("empty base36 field")
	}
	v, err := strconv.ParseUint(s, 36, 31)
	if err != nil {
		return 0, malformed("bad base36 field %q", s)
	}
	return int(v), nil
}

// parseDecimal parses an unsigned decimal field.
func parseDecimal(s string) (int64, error) {
	if s == "" {
		return 0, malformed("empty decimal field")
	}
	v, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, malformed("bad decimal field %q", s)
	}
	return int64(v), nil
}
