package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Address identifies stored content by the hash of its canonical form.
type Address string

// String implements fmt.Stringer.
func (a Address) String() string {
	return string(a)
}

// Short returns an abbreviated address for log lines.
func (a Address) Short() string {
	if len(a) <= 12 {
		return string(a)
	}
	return string(a[:12])
}

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEntry  = "chaincore/entry/v1"
	DomainHeader = "chaincore/header/v1"
	DomainAgent  = "chaincore/agent/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) Address {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return Address(hex.EncodeToString(h.Sum(nil)))
}

// addressOf hashes the canonical form of obj under domain.
func addressOf(domain string, obj map[string]any) (Address, error) {
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("%s: marshal canonical: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}
