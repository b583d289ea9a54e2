package qrxfer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Digest names the 256-bit hash used for the end-to-end checksum.
// Both ends of a transfer must agree on it; the frame does not carry it.
type Digest string

const (
	// DigestSHA256 is the default and matches other implementations of the format.
	DigestSHA256 Digest = "sha256"

	// DigestBLAKE2b256 is BLAKE2b with a 32-byte output.
	DigestBLAKE2b256 Digest = "blake2b-256"
)

// ChecksumLen is the length of a checksum in hex characters.
const ChecksumLen = 64

// ParseDigest resolves a digest name. The empty string selects DigestSHA256.
func ParseDigest(name string) (Digest, error) {
	switch Digest(strings.ToLower(strings.TrimSpace(name))) {
	case "", DigestSHA256:
		return DigestSHA256, nil
	case DigestBLAKE2b256, "blake2b":
		return DigestBLAKE2b256, nil
	default:
		return "", NewError(ErrInvalidConfig, fmt.Sprintf("unknown digest %q", name))
	}
}

// Sum returns the lowercase hex digest of data.
func (d Digest) Sum(data []byte) string {
	switch d {
	case DigestBLAKE2b256:
		sum := blake2b.Sum256(data)
		return hex.EncodeToString(sum[:])
	default:
		return Checksum(data)
	}
}

// Checksum returns the SHA-256 of the raw file bytes as lowercase hex.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// validChecksum reports whether s looks like a hex encoded 256-bit digest.
func validChecksum(s string) bool {
	if len(s) != ChecksumLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
