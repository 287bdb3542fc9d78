// Package mcrand provides the deterministic random streams consumed by the
// samplers. Entropy comes from a keyed PRNG; keys for parallel chains are
// derived from a single master seed with a domain-separated SHAKE-256
// expansion, so chains are independent and reproducible.
package mcrand

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tuneinsight/lattigo/v4/utils"
	"golang.org/x/crypto/sha3"
	"golang.org/x/exp/rand"
)

const (
	// ChainKeyLen is the byte length of a derived chain key.
	ChainKeyLen = 32

	chainKeyLabel = "crwm/chain-key"
)

// DeriveChainKeys expands a master seed into n independent chain keys.
func DeriveChainKeys(master []byte, n int) ([][]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("mcrand: need at least one chain, got %d", n)
	}
	keys := make([][]byte, n)
	var idx [8]byte
	for i := range keys {
		h := sha3.NewShake256()
		h.Write([]byte(chainKeyLabel))
		h.Write(master)
		binary.LittleEndian.PutUint64(idx[:], uint64(i))
		h.Write(idx[:])
		key := make([]byte, ChainKeyLen)
		if _, err := h.Read(key); err != nil {
			return nil, fmt.Errorf("mcrand: shake read: %w", err)
		}
		keys[i] = key
	}
	return keys, nil
}

// Source adapts a keyed PRNG to the rand.Source interface, 8 bytes per
// Uint64 draw.
type Source struct {
	prng utils.PRNG
	buf  [8]byte
}

// NewSource builds a Source keyed with the given chain key.
func NewSource(key []byte) (*Source, error) {
	prng, err := utils.NewKeyedPRNG(key)
	if err != nil {
		return nil, fmt.Errorf("mcrand: keyed prng: %w", err)
	}
	return &Source{prng: prng}, nil
}

// Uint64 reads the next 8 bytes from the keyed PRNG.
func (s *Source) Uint64() uint64 {
	if _, err := io.ReadFull(s.prng, s.buf[:]); err != nil {
		// The keyed PRNG is an in-memory XOF and cannot fail to read.
		panic(fmt.Errorf("mcrand: prng read: %w", err))
	}
	return binary.LittleEndian.Uint64(s.buf[:])
}

// Seed is a no-op: a Source is keyed at construction and cannot be reseeded.
func (s *Source) Seed(uint64) {}

// Stream is the per-chain draw interface handed to a sampler. It embeds a
// rand.Rand so gonum distributions can consume it directly.
type Stream struct {
	*rand.Rand
	src *Source
}

// NewStream builds a Stream keyed with the given chain key.
func NewStream(key []byte) (*Stream, error) {
	src, err := NewSource(key)
	if err != nil {
		return nil, err
	}
	return &Stream{Rand: rand.New(src), src: src}, nil
}

// Source exposes the underlying rand.Source for gonum distribution structs.
func (s *Stream) Source() rand.Source { return s.src }

// Uniform draws u ~ U[0, 1).
func (s *Stream) Uniform() float64 { return s.Float64() }

// Norm draws a standard normal variate.
func (s *Stream) Norm() float64 { return s.NormFloat64() }

// NormVec fills dst with independent standard normal draws.
func (s *Stream) NormVec(dst []float64) {
	for i := range dst {
		dst[i] = s.NormFloat64()
	}
}
