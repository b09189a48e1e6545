package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	WorkspaceHash Hash
	ModelHash     Hash
)

// Constructors
func NewWorkspaceHash(data []byte) WorkspaceHash { return WorkspaceHash(NewHash(data)) }
func NewModelHash(data []byte) ModelHash         { return ModelHash(NewHash(data)) }

// String conversions
func (h WorkspaceHash) String() string { return Hash(h).String() }
func (h ModelHash) String() string     { return Hash(h).String() }

// ComputeParameterSetHash fingerprints an ordered parameter layout so that a
// rebuilt model can be checked against the one a stored result was fit with.
func ComputeParameterSetHash(names []string, inits []float64) ModelHash {
	var data strings.Builder
	for i, name := range names {
		data.WriteString(name)
		if i < len(inits) {
			data.WriteString(fmt.Sprintf("|%.17g", inits[i]))
		}
		data.WriteString(";")
	}
	return NewModelHash([]byte(data.String()))
}
