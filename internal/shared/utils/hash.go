package utils

import (
	"io"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// HashString returns the xxhash64 of s as 16 lowercase hex digits
func HashString(s string) string {
	return format(xxhash.Sum64String(s))
}

// HashBytes returns the xxhash64 of b as 16 lowercase hex digits
func HashBytes(b []byte) string {
	return format(xxhash.Sum64(b))
}

// HashReader streams r through xxhash64 and returns the digest with the byte count
func HashReader(r io.Reader) (string, int64, error) {
	d := xxhash.New()
	n, err := io.Copy(d, r)
	if err != nil {
		return "", n, err
	}
	return format(d.Sum64()), n, nil
}

func format(sum uint64) string {
	s := strconv.FormatUint(sum, 16)
	for len(s) < 16 {
		s = "0" + s
	}
	return s
}
