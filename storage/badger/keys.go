package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for different data types. The count and dims keys share the
// family prefix so a single DropPrefix clears them with the rows.
const (
	corpusFamily  = "corpus"
	corpusPrefix  = corpusFamily + ":"
	corpusCount   = corpusFamily + "#count"
	vectorFamily  = "vector"
	vectorPrefix  = vectorFamily + ":"
	vectorDims    = vectorFamily + "#dims"
	manifestKey   = "manifest"
	rowKeyPayload = 8
)

// makeRowKey generates a key for a row under prefix.
// Format: prefix + 8 byte big-endian row, so prefix scans visit rows in order.
func makeRowKey(prefix string, row int) []byte {
	buf := make([]byte, len(prefix)+rowKeyPayload)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(row))
	return buf
}

// parseRowKey extracts the row from a key built by makeRowKey.
func parseRowKey(prefix string, key []byte) (int, error) {
	if len(key) != len(prefix)+rowKeyPayload {
		return 0, fmt.Errorf("malformed row key %q", key)
	}
	return int(binary.BigEndian.Uint64(key[len(prefix):])), nil
}

func makeEntryKey(row int) []byte {
	return makeRowKey(corpusPrefix, row)
}

func makeVectorKey(row int) []byte {
	return makeRowKey(vectorPrefix, row)
}

func encodeCount(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

func decodeCount(val []byte) (int, error) {
	if len(val) != 8 {
		return 0, fmt.Errorf("malformed counter of %d bytes", len(val))
	}
	return int(binary.BigEndian.Uint64(val)), nil
}
