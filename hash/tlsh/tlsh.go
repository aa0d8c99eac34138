// Package tlsh wraps github.com/glaslos/tlsh to produce the Trend Micro
// Locality Sensitive Hash digest of normalized signature bytes, and to
// compare two digests for similarity (lower distance = more similar).
package tlsh

import (
	"github.com/glaslos/tlsh"
)

// Hexdigest returns the TLSH digest of data, or "" if data is shorter than
// minimumByteSize (the configured floor below which TLSH is statistically
// unreliable; default 50).
func Hexdigest(data []byte, minimumByteSize int) string {
	if len(data) < minimumByteSize {
		return ""
	}
	h, err := tlsh.HashBytes(data)
	if err != nil {
		return ""
	}
	return h.String()
}

// Distance returns the non-negative pairwise distance between two TLSH
// digests; lower means more similar. An error is returned if either digest
// fails to parse.
func Distance(a, b string) (int, error) {
	ah, err := tlsh.ParseStringToTlsh(a)
	if err != nil {
		return 0, err
	}
	bh, err := tlsh.ParseStringToTlsh(b)
	if err != nil {
		return 0, err
	}
	return ah.Diff(bh), nil
}
