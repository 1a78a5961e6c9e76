package serialization

import (
	"bytes"
	"crypto/sha256"
	"io"
)

// ComputeChecksum computes the SHA-256 checksum of a body.
func ComputeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// readBody reads exactly size bytes from r, hashing them as they stream in.
// The buffer grows with the bytes actually read, so a header that overstates
// the body size costs no more memory than the stream holds.
func readBody(r io.Reader, size uint64) ([]byte, [ChecksumSize]byte, error) {
	var sum [ChecksumSize]byte
	h := sha256.New()
	var body bytes.Buffer
	n, err := body.ReadFrom(io.TeeReader(io.LimitReader(r, int64(size)), h)) //nolint:gosec // size <= MaxBodySize
	if err != nil {
		return nil, sum, truncated("body", err)
	}
	if uint64(n) != size { //nolint:gosec // n >= 0
		return nil, sum, truncated("body", io.ErrUnexpectedEOF)
	}
	copy(sum[:], h.Sum(nil))
	return body.Bytes(), sum, nil
}

// ValidateChecksum compares a computed checksum against the stored one.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored [ChecksumSize]byte) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}
