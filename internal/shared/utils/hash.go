package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
)

// Hasher provides extensible hashing functionality
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{
		algorithm: algorithm,
	}
}

// DefaultHasher returns a hasher with the default algorithm
func DefaultHasher() *Hasher {
	return NewHasher(SHA256)
}

// Hash computes a hash of the input data
func (h *Hasher) Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashString computes a hash of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// HashJSON computes a hash of a JSON-serializable object
// The hash is deterministic (same object = same hash)
func (h *Hasher) HashJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return h.Hash(data), nil
}

// HashFields computes a hash from multiple fields
// Fields are concatenated with a delimiter for consistent hashing
func (h *Hasher) HashFields(fields ...string) string {
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)

	combined := strings.Join(sorted, "|")
	return h.HashString(combined)
}

// PayloadDigest identifies fetched content for change detection. Two
// fetches of byte-identical content produce the same digest, letting the
// ingest layer skip redundant change events.
type PayloadDigest struct {
	hasher *Hasher
}

// NewPayloadDigest creates a payload digest helper
func NewPayloadDigest(hasher *Hasher) *PayloadDigest {
	if hasher == nil {
		hasher = DefaultHasher()
	}
	return &PayloadDigest{hasher: hasher}
}

// Digest hashes raw fetched bytes
func (pd *PayloadDigest) Digest(raw []byte) string {
	return pd.hasher.Hash(raw)
}

// ShortDigest returns a short (8-character) digest for logs and derived IDs
func (pd *PayloadDigest) ShortDigest(full string) string {
	if len(full) < 8 {
		return full
	}
	return full[:8]
}

// SourceFingerprint derives a stable identifier fragment from a source's
// canonical identity tuple, used when a declaration carries no explicit ID
func (pd *PayloadDigest) SourceFingerprint(key string) string {
	return pd.ShortDigest(pd.hasher.HashString(key))
}
