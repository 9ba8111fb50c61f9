package service

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync/atomic"

	keysDomain "github.com/allisson/caresync/internal/keys/domain"
)

// NonceSequence produces unique 12-byte nonces as a 4-byte random prefix
// followed by an 8-byte big-endian counter.
//
// The random prefix separates sequences created by different processes using
// the same key, and the monotonic counter guarantees uniqueness within a
// process. Nonce reuse under the same key breaks both GCM and Poly1305, so
// uniqueness here is a hard requirement, not an optimization.
//
// The counter is atomic; a single sequence is safe for concurrent use from
// multiple goroutines.
type NonceSequence struct {
	prefix  [4]byte
	counter atomic.Uint64
}

// NewNonceSequence creates a sequence with a fresh random prefix.
func NewNonceSequence() (*NonceSequence, error) {
	seq := &NonceSequence{}
	if _, err := rand.Read(seq.prefix[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce prefix: %w", err)
	}
	return seq, nil
}

// Next returns the next unique nonce in the sequence.
func (n *NonceSequence) Next() ([]byte, error) {
	count := n.counter.Add(1)

	nonce := make([]byte, keysDomain.NonceSize)
	copy(nonce, n.prefix[:])
	binary.BigEndian.PutUint64(nonce[4:], count)

	return nonce, nil
}
