package utils

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
)

const jobIDLength = 12

// ContentHash is the SHA-256 hex digest of content, used for change detection.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// JobID derives a short stable identifier from a posting URL.
func JobID(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])[:jobIDLength]
}

// SameHash reports whether both hashes are set and equal.
func SameHash(a, b string) bool {
	return a != "" && b != "" && a == b
}
