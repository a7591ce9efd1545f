package models

import (
	"fmt"
	"math"
	"strconv"
)

// Hash identifies a manifest definition. The manifest publishes hashes as
// unsigned 32-bit integers.
type Hash uint32

// ParseHash parses a hash from its decimal form. Both the unsigned hash and
// the signed row id used by the SQLite manifest are accepted.
func ParseHash(s string) (Hash, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if n < math.MinInt32 || n > math.MaxUint32 {
		return 0, fmt.Errorf("hash %q out of range", s)
	}
	return Hash(uint32(n)), nil
}

// RowID returns the signed 32-bit reinterpretation of the hash, which is how
// manifest tables key their rows.
func (h Hash) RowID() int64 {
	return int64(int32(h))
}

func (h Hash) String() string {
	return strconv.FormatUint(uint64(h), 10)
}
