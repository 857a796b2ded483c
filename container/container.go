// Package container implements the two on-disk framing formats from §4.4 and
// §4.5: the ciphertext container (CBC mode plus authenticated framing) sits
// here; the key container lives alongside the key type in quantumkey, since
// it has no CBC/transform logic of its own.
package container

import (
	"bytes"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"

	"github.com/evpix/quantum-cipher/cerrors"
	"github.com/evpix/quantum-cipher/engine"
	"github.com/evpix/quantum-cipher/randsrc"
)

var cipherMagic = [6]byte{0x51, 0x43, 0x52, 0x59, 0x50, 0x54}

const (
	cipherVersion = 1
	headerSize    = 143 // offset where ciphertext begins
	tagSize       = 64
	minFileSize   = headerSize + tagSize // 207, per §4.4
)

// Key is the minimal surface Encrypt/Decrypt need from a loaded key;
// *quantumkey.QuantumKey satisfies it. Depending on the interface rather
// than the concrete type keeps this package decoupled from key storage and
// makes it easy to drive with lightweight fakes in tests.
type Key interface {
	NewCipher() *engine.QCipher
	Checksum() [64]byte
	Fingerprint() [32]byte
}

// header holds the fixed-size fields parsed out of a ciphertext container,
// shared between the sequential and parallel decrypt paths.
type header struct {
	nonce        [32]byte
	iv           [32]byte
	originalSize uint64
}

// validateAndSplit runs §4.4's ordered decrypt-side checks and returns the
// parsed header plus the ciphertext region once every check has passed.
func validateAndSplit(key Key, data []byte) (header, []byte, error) {
	if len(data) < minFileSize {
		return header{}, nil, cerrors.Newf(cerrors.CorruptContainer, "ciphertext file too short: %d bytes, need at least %d", len(data), minFileSize)
	}
	if !bytes.Equal(data[0:6], cipherMagic[:]) {
		return header{}, nil, cerrors.New(cerrors.CorruptContainer, "ciphertext file magic mismatch")
	}
	if data[6] != cipherVersion {
		return header{}, nil, cerrors.Newf(cerrors.CorruptContainer, "unsupported ciphertext file version %d", data[6])
	}

	storedFingerprint := data[7:39]
	expectedFingerprint := key.Fingerprint()
	if subtle.ConstantTimeCompare(storedFingerprint, expectedFingerprint[:]) != 1 {
		return header{}, nil, cerrors.New(cerrors.WrongKey, "ciphertext was not encrypted with the loaded key")
	}

	var h header
	copy(h.nonce[:], data[39:71])
	copy(h.iv[:], data[103:135])
	h.originalSize = binary.LittleEndian.Uint64(data[135:143])

	if h.originalSize > 2*uint64(len(data)) {
		return header{}, nil, cerrors.Newf(cerrors.CorruptContainer, "original_size %d implausible for file of size %d", h.originalSize, len(data))
	}

	ciphertext := data[headerSize : len(data)-tagSize]
	storedTag := data[len(data)-tagSize:]

	checksum := key.Checksum()
	expectedTag := authTag(ciphertext, checksum)
	if subtle.ConstantTimeCompare(storedTag, expectedTag[:]) != 1 {
		return header{}, nil, cerrors.New(cerrors.IntegrityFailure, "authentication tag mismatch")
	}

	return h, ciphertext, nil
}

func corruptTruncated(gotLen int, originalSize uint64) error {
	return cerrors.Newf(cerrors.CorruptContainer, "decrypted length %d shorter than stated original_size %d", gotLen, originalSize)
}

// Encrypt produces a complete ciphertext container for plaintext under key,
// per §4.3/§4.4. Nonce, salt, and IV are drawn from src; src may be a fixed
// test double to reproduce §8's concrete scenarios byte-for-byte.
func Encrypt(key Key, plaintext []byte, src randsrc.Source) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, cerrors.New(cerrors.InvalidInput, "refusing to encrypt an empty input")
	}

	nonceB, err := randsrc.Bytes(src, 32)
	if err != nil {
		return nil, err
	}
	saltB, err := randsrc.Bytes(src, 32)
	if err != nil {
		return nil, err
	}
	ivB, err := randsrc.Bytes(src, 32)
	if err != nil {
		return nil, err
	}
	var nonce, iv [32]byte
	copy(nonce[:], nonceB)
	copy(iv[:], ivB)

	cipher := key.NewCipher()
	ciphertext := cbcEncrypt(cipher, plaintext, nonce, iv)

	fingerprint := key.Fingerprint()
	checksum := key.Checksum()

	out := make([]byte, 0, headerSize+len(ciphertext)+tagSize)
	out = append(out, cipherMagic[:]...)
	out = append(out, cipherVersion)
	out = append(out, fingerprint[:]...)
	out = append(out, nonce[:]...)
	out = append(out, saltB...)
	out = append(out, iv[:]...)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(plaintext)))
	out = append(out, ciphertext...)

	tag := authTag(ciphertext, checksum)
	out = append(out, tag[:]...)
	return out, nil
}

// Decrypt validates and decrypts a ciphertext container per §4.4's ordered
// checks, then CBC-decrypts (§4.3) and truncates to the stored original
// size.
func Decrypt(key Key, data []byte) ([]byte, error) {
	h, ciphertext, err := validateAndSplit(key, data)
	if err != nil {
		return nil, err
	}

	cipher := key.NewCipher()
	plaintext := cbcDecrypt(cipher, ciphertext, h.nonce, h.iv)

	if uint64(len(plaintext)) < h.originalSize {
		return nil, corruptTruncated(len(plaintext), h.originalSize)
	}
	return plaintext[:h.originalSize], nil
}

func authTag(ciphertext []byte, checksum [64]byte) [64]byte {
	buf := make([]byte, 0, len(ciphertext)+64)
	buf = append(buf, ciphertext...)
	buf = append(buf, checksum[:]...)
	return sha512.Sum512(buf)
}

// cbcEncrypt implements §4.3's encrypt side: PKCS7-style tail padding (only
// on the final block), first-block XOR against the 32-byte IV repeated
// modulo 32, subsequent blocks XORed against the previous ciphertext block.
func cbcEncrypt(cipher *engine.QCipher, plaintext []byte, nonce, iv [32]byte) []byte {
	padded := padPKCS7(plaintext)
	numBlocks := len(padded) / engine.BlockSize

	out := make([]byte, 0, len(padded))
	var prevCiphertext [engine.BlockSize]byte

	for i := 0; i < numBlocks; i++ {
		var block [engine.BlockSize]byte
		copy(block[:], padded[i*engine.BlockSize:(i+1)*engine.BlockSize])

		for j := 0; j < engine.BlockSize; j++ {
			if i == 0 {
				block[j] ^= iv[j%32]
			} else {
				block[j] ^= prevCiphertext[j]
			}
		}

		ct := cipher.EncryptBlock(block, uint64(i), nonce)
		out = append(out, ct[:]...)
		prevCiphertext = ct
	}
	return out
}

// cbcDecrypt implements §4.3's decrypt side. prev starts as the 32-byte IV
// (chained against modulo its length) and becomes the raw previous
// ciphertext block — never the decrypted output — once block 0 completes.
func cbcDecrypt(cipher *engine.QCipher, ciphertext []byte, nonce, iv [32]byte) []byte {
	numBlocks := (len(ciphertext) + engine.BlockSize - 1) / engine.BlockSize
	out := make([]byte, 0, numBlocks*engine.BlockSize)

	prev := append([]byte(nil), iv[:]...)

	for i := 0; i < numBlocks; i++ {
		var block [engine.BlockSize]byte
		start := i * engine.BlockSize
		end := start + engine.BlockSize
		if end > len(ciphertext) {
			end = len(ciphertext)
		}
		copy(block[:], ciphertext[start:end])

		d := cipher.DecryptBlock(block, uint64(i), nonce)

		p := make([]byte, engine.BlockSize)
		for j := 0; j < engine.BlockSize; j++ {
			p[j] = d[j] ^ prev[j%len(prev)]
		}
		out = append(out, p...)

		prev = append([]byte(nil), block[:]...)
	}
	return out
}

// padPKCS7 pads plaintext to a multiple of the block size, per §4.3:
// full-length input gets no extra padding block; any other length gets a
// single short final block padded with bytes of value (block_size -
// short_len).
func padPKCS7(plaintext []byte) []byte {
	short := len(plaintext) % engine.BlockSize
	if short == 0 {
		return plaintext
	}
	padLen := engine.BlockSize - short
	out := make([]byte, len(plaintext)+padLen)
	copy(out, plaintext)
	for i := len(plaintext); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}
