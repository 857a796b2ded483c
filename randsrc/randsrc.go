// Package randsrc wraps the CSPRNG collaborator the cipher engine consumes
// as a black box. The shape mirrors the teacher's kcp.Entropy interface
// (Init/Fill around crypto/rand) so the cipher's random inputs (master seed,
// nonce, salt, IV) stay swappable and testable behind one seam.
package randsrc

import (
	"crypto/rand"
	"io"

	"github.com/evpix/quantum-cipher/cerrors"
)

// Source fills buf with uniformly random bytes.
type Source interface {
	Fill(buf []byte) error
}

type cryptoSource struct{}

// Default returns the CSPRNG-backed Source used by the CLI and by
// quantumkey.Generate / container.Encrypt in production.
func Default() Source { return cryptoSource{} }

func (cryptoSource) Fill(buf []byte) error {
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return cerrors.Wrap(cerrors.RandomnessFailure, err, "CSPRNG refused to produce bytes")
	}
	return nil
}

// Bytes allocates and fills an n-byte slice from src.
func Bytes(src Source, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := src.Fill(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// fixedByteSource fills every request with a single repeated byte value. It
// exists for the fixed-nonce/IV/salt scenarios in §8's test vectors, where
// "all-zero bytes" must be reproducible without touching crypto/rand.
type fixedByteSource struct{ b byte }

// Fixed returns a Source that always fills with the given repeated byte.
func Fixed(b byte) Source { return fixedByteSource{b: b} }

func (s fixedByteSource) Fill(buf []byte) error {
	for i := range buf {
		buf[i] = s.b
	}
	return nil
}
