package utils

import (
	"encoding/hex"
	"strings"
)

// HexPreview returns the hex dump of the first 16 bytes of data, without the
// offset column.
func HexPreview(data []byte) string {
	if len(data) == 0 {
		return "<empty>"
	}

	return strings.TrimPrefix(
		strings.SplitN(hex.Dump(data), "\n", 2)[0],
		"00000000  ",
	)
}
