// Package chain implements the hash-chain commit-reveal oracle. A chain of
// secrets s0 → s1 → … → sn is generated up front with tail_i = H(s_i) and
// revealed in reverse, so each accepted reveal proves knowledge of the
// committed chain without exposing future values.
package chain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"
)

// ErrWrongChainParent indicates a reveal whose hash does not match the
// current tail. The play attempt is fatal; chain state is unchanged.
var ErrWrongChainParent = errors.New("chain: wrong parent")

// Hash is a 256-bit chain link.
type Hash [32]byte

// String renders the hash as 0x-prefixed hex.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// ParseHash decodes a 0x-prefixed hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("chain: invalid hash %q: %w", s, err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("chain: invalid hash length %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Digest computes the chain commitment function (Keccak-256).
func Digest(h Hash) Hash {
	var out Hash
	d := sha3.NewLegacyKeccak256()
	d.Write(h[:])
	d.Sum(out[:0])
	return out
}

// Oracle holds the most recently accepted commitment. The tail only
// advances on a successful reveal; rejected reveals leave it untouched.
type Oracle struct {
	mu   sync.Mutex
	tail Hash
}

// NewOracle creates an oracle with an unset tail. SetTail must seed the
// chain before any play is accepted.
func NewOracle() *Oracle {
	return &Oracle{}
}

// SetTail seeds or reseeds the chain. Call sites gate this on the CEO role.
func (o *Oracle) SetTail(tail Hash) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tail = tail
}

// Tail returns the current commitment.
func (o *Oracle) Tail() Hash {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tail
}

// VerifyAndAdvance checks that the reveal is the preimage of the current
// tail. On success the tail advances to the reveal and the reveal is
// returned as the round seed. On failure nothing changes.
func (o *Oracle) VerifyAndAdvance(reveal Hash) (Hash, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if Digest(reveal) != o.tail {
		return Hash{}, fmt.Errorf("%w: hash(%s) != tail %s", ErrWrongChainParent, reveal, o.tail)
	}
	o.tail = reveal
	return reveal, nil
}

// Generate derives a chain of n secrets from a master secret. The returned
// slice is in reveal order: element 0 is the commitment to seed the oracle
// with via SetTail, and elements 1..n are submitted one per play.
func Generate(master Hash, n int) []Hash {
	secrets := make([]Hash, n)
	s := Digest(master)
	for i := n - 1; i >= 0; i-- {
		secrets[i] = s
		s = Digest(s)
	}
	out := make([]Hash, 0, n+1)
	out = append(out, s)
	out = append(out, secrets...)
	return out
}
