package container

import (
	"bytes"
	"testing"
	"time"

	"github.com/evpix/quantum-cipher/cerrors"
	"github.com/evpix/quantum-cipher/quantumkey"
	"github.com/evpix/quantum-cipher/randsrc"
)

func testKey(seedByte byte, keyLength uint64) *quantumkey.QuantumKey {
	var seed [64]byte
	for i := range seed {
		seed[i] = seedByte
	}
	k, err := quantumkey.FromSeed(seed, keyLength, time.Unix(0, 0).UTC())
	if err != nil {
		panic(err)
	}
	return k
}

// TestTinyFile is §8 scenario 1.
func TestTinyFile(t *testing.T) {
	key := testKey(0x00, 1024)
	plaintext := []byte("Hello World")
	out, err := Encrypt(key, plaintext, randsrc.Fixed(0))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if got := len(out) - headerSize - tagSize; got != 64 {
		t.Fatalf("ciphertext region is %d bytes, want 64", got)
	}
	if got := len(out); got != minFileSize+64 {
		t.Fatalf("container is %d bytes, want %d", got, minFileSize+64)
	}

	recovered, err := Decrypt(key, out)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(recovered, plaintext) {
		t.Fatalf("round trip mismatch: got %q, want %q", recovered, plaintext)
	}
}

// TestBlockBoundary is §8 scenario 2.
func TestBlockBoundary(t *testing.T) {
	key := testKey(0x00, 1024)
	plaintext := make([]byte, 64)
	out, err := Encrypt(key, plaintext, randsrc.Fixed(0))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if got := len(out) - headerSize - tagSize; got != 64 {
		t.Fatalf("ciphertext region is %d bytes, want 64 (no extra padding block)", got)
	}
	recovered, err := Decrypt(key, out)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(recovered, plaintext) {
		t.Fatal("round trip mismatch")
	}
}

// TestMultiBlock is §8 scenario 3.
func TestMultiBlock(t *testing.T) {
	key := testKey(0x00, 1024)
	plaintext := bytes.Repeat([]byte{0xAB}, 200)
	out, err := Encrypt(key, plaintext, randsrc.Fixed(0))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if got := len(out) - headerSize - tagSize; got != 256 {
		t.Fatalf("ciphertext region is %d bytes, want 256", got)
	}
	recovered, err := Decrypt(key, out)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(recovered, plaintext) {
		t.Fatal("round trip mismatch")
	}
}

// TestTamperDetection is §8 scenario 4.
func TestTamperDetection(t *testing.T) {
	key := testKey(0x00, 1024)
	plaintext := bytes.Repeat([]byte{0xAB}, 200)
	out, err := Encrypt(key, plaintext, randsrc.Fixed(0))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tampered := append([]byte(nil), out...)
	tampered[150] ^= 0x01

	_, err = Decrypt(key, tampered)
	if !cerrors.Is(err, cerrors.IntegrityFailure) {
		t.Fatalf("got %v, want IntegrityFailure", err)
	}
}

// TestWrongKey is §8 scenario 5.
func TestWrongKey(t *testing.T) {
	keyA := testKey(0x01, 1024)
	keyB := testKey(0x02, 1024)
	plaintext := []byte("some secret data")

	out, err := Encrypt(keyA, plaintext, randsrc.Fixed(0))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	_, err = Decrypt(keyB, out)
	if !cerrors.Is(err, cerrors.WrongKey) {
		t.Fatalf("got %v, want WrongKey", err)
	}
}

func TestEncryptRejectsEmptyInput(t *testing.T) {
	key := testKey(0x00, 1024)
	_, err := Encrypt(key, nil, randsrc.Fixed(0))
	if !cerrors.Is(err, cerrors.InvalidInput) {
		t.Fatalf("got %v, want InvalidInput", err)
	}
}

func TestLengthFidelity(t *testing.T) {
	key := testKey(0x00, 1024)
	for _, n := range []int{1, 63, 64, 65, 127, 128, 500} {
		plaintext := bytes.Repeat([]byte{0x42}, n)
		out, err := Encrypt(key, plaintext, randsrc.Fixed(7))
		if err != nil {
			t.Fatalf("n=%d: Encrypt: %v", n, err)
		}
		recovered, err := Decrypt(key, out)
		if err != nil {
			t.Fatalf("n=%d: Decrypt: %v", n, err)
		}
		if len(recovered) != n {
			t.Fatalf("n=%d: decrypted length %d", n, len(recovered))
		}
	}
}

func TestDecryptParallelMatchesSequential(t *testing.T) {
	key := testKey(0x00, 4096)
	plaintext := bytes.Repeat([]byte{0x5A}, 5000)
	out, err := Encrypt(key, plaintext, randsrc.Fixed(3))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	sequential, err := Decrypt(key, out)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	for _, workers := range []int{0, 1, 3, 8} {
		parallel, err := DecryptParallel(key, out, workers)
		if err != nil {
			t.Fatalf("workers=%d: DecryptParallel: %v", workers, err)
		}
		if !bytes.Equal(parallel, sequential) {
			t.Fatalf("workers=%d: parallel decrypt diverged from sequential decrypt", workers)
		}
	}
}

func TestDecryptRejectsShortFile(t *testing.T) {
	key := testKey(0x00, 1024)
	if _, err := Decrypt(key, []byte{1, 2, 3}); !cerrors.Is(err, cerrors.CorruptContainer) {
		t.Fatalf("got %v, want CorruptContainer", err)
	}
}
