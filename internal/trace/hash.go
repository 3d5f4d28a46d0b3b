package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainLayout = "prepdeck/layout/v1"
	DomainTrace  = "prepdeck/trace/v1"
)

// HashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash computes the content-addressed digest of a trace
// snapshot. Two runs with identical event sequences hash identically.
func SnapshotHash(s *Snapshot) (string, error) {
	canonical, err := MarshalCanonical(s.toCanonicalMap())
	if err != nil {
		return "", fmt.Errorf("snapshot hash: %w", err)
	}
	return HashWithDomain(DomainTrace, canonical), nil
}
