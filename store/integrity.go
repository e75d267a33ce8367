package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const hashBufferSize = 512 * 1024

// ChecksumReader returns the lowercase hex SHA-256 of everything read from r
// and the number of bytes read.
func ChecksumReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	buf := make([]byte, hashBufferSize)
	n, err := io.CopyBuffer(h, r, buf)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Checksum streams f and returns its SHA-256 in hex.
func Checksum(f File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", f.Filename(), err)
	}
	defer rc.Close()
	sum, _, err := ChecksumReader(rc)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", f.Filename(), err)
	}
	return sum, nil
}

// ChecksumPath hashes the file at p.
func ChecksumPath(p string) (string, int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return ChecksumReader(f)
}

// VerifyFile recomputes the checksum of f and compares it with want.
func VerifyFile(f File, want string) error {
	got, err := Checksum(f)
	if err != nil {
		return NewError(KindIO, "verify", "", f.Filename(), err)
	}
	if got != want {
		return NewError(KindIO, "verify", "", f.Filename(), fmt.Errorf("checksum mismatch: expected %s, got %s", want, got))
	}
	return nil
}
