package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// The version suffix leaves room for algorithm migration.
const (
	DomainInput   = "markout/input/v1"
	DomainMatches = "markout/matches/v1"
	DomainConfig  = "markout/config/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InputDigest computes the digest of one group's input events in order.
// Two runs over inputs with equal digests must produce equal MatchDigests.
func InputDigest(events []Event) (string, error) {
	arr := make(IRArray, len(events))
	for i, ev := range events {
		arr[i] = ev.IR()
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("InputDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainInput, canonical), nil
}

// MatchDigest computes the digest of a match record sequence in order.
func MatchDigest(records []MatchRecord) (string, error) {
	arr := make(IRArray, len(records))
	for i, m := range records {
		arr[i] = m.IR()
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("MatchDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainMatches, canonical), nil
}

// ConfigDigest computes the digest of a canonical configuration object.
func ConfigDigest(obj IRObject) (string, error) {
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ConfigDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConfig, canonical), nil
}

// MustMatchDigest is like MatchDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustMatchDigest(records []MatchRecord) string {
	d, err := MatchDigest(records)
	if err != nil {
		panic(err)
	}
	return d
}
