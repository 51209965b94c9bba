package util

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Rand is the entropy source used for order salts and auth nonces.
// Injected so callers can substitute a deterministic source in tests;
// the default is backed by the OS CSPRNG.
type Rand interface {
	Uint64() (uint64, error)
}

type CryptoRand struct{}

func (CryptoRand) Uint64() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("failed to read entropy: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// SeqRand returns fixed values in order, repeating the last one once
// exhausted. Test helper.
type SeqRand struct {
	Values []uint64
	i      int
}

func (s *SeqRand) Uint64() (uint64, error) {
	if len(s.Values) == 0 {
		return 0, nil
	}
	v := s.Values[s.i]
	if s.i < len(s.Values)-1 {
		s.i++
	}
	return v, nil
}
