package engine

import (
	"crypto/sha256"
	"math"
)

// QCipher is the runtime cipher engine: a QuantumKey's derived tables bound
// together for block-level encrypt/decrypt. It is stateless with respect to
// plaintext and safe to share (read-only) across goroutines, per §5.
type QCipher struct {
	superpositionKey []byte
	measurementBases []byte
	lattice          [][]int64
	latticeDim       int
	roundKeys        [Rounds][64]byte
	sbox             [256]byte
	inverseSBox      [256]byte
}

// NewQCipher builds a QCipher from a master seed plus the tables a
// QuantumKey already carries (superposition key, measurement bases, lattice
// basis). The sbox, inverse sbox, and round keys are pure functions of the
// seed alone, so they're (re)derived here rather than stored on the key.
func NewQCipher(seed [MasterSeedSize]byte, superpositionKey, measurementBases []byte, lattice [][]int64, latticeDim int) *QCipher {
	sbox, inv := DeriveSBox(seed)
	return &QCipher{
		superpositionKey: superpositionKey,
		measurementBases: measurementBases,
		lattice:          lattice,
		latticeDim:       latticeDim,
		roundKeys:        DeriveRoundKeys(seed),
		sbox:             sbox,
		inverseSBox:      inv,
	}
}

func (c *QCipher) keyLen() int {
	if len(c.superpositionKey) == 0 {
		return 1
	}
	return len(c.superpositionKey)
}

func (c *QCipher) basesLen() int {
	if len(c.measurementBases) == 0 {
		return 1
	}
	return len(c.measurementBases)
}

func (c *QCipher) superpositionByte(pos int) byte {
	if len(c.superpositionKey) == 0 {
		return 0
	}
	return c.superpositionKey[pos%len(c.superpositionKey)]
}

func (c *QCipher) basisByte(pos int) byte {
	if len(c.measurementBases) == 0 {
		return 0
	}
	return c.measurementBases[pos%len(c.measurementBases)]
}

// quantumValue implements §4.2's quantum_value(seed, index, round) -> byte.
// It is defined entirely in terms of IEEE-754 double arithmetic so that it
// is byte-identical across platforms, per §5's determinism requirement.
func quantumValue(seed []byte, index uint64, round uint64) byte {
	input := make([]byte, 0, len(seed)+3)
	input = append(input, seed...)
	input = append(input, byte(index&0xFF), byte((index>>8)&0xFF), byte(round&0xFF))
	h := sha256.Sum256(input)

	alpha := float64(h[0]) / 255.0
	beta := float64(h[1]) / 255.0
	basis := h[2] & 0x03
	n := math.Sqrt(alpha*alpha + beta*beta)

	if n < 0.0001 {
		return h[3]
	}

	var p float64
	switch basis {
	case 0:
		v := alpha / n
		p = v * v
	case 1:
		p = 0.5 + 0.25*(alpha*beta)/(n*n)
	case 2:
		p = 0.5 - 0.25*(alpha*beta)/(n*n)
	case 3:
		p = alpha / n
	}

	// Clamp before the floor as a guard on the float -> byte conversion below.
	// Basis 1/2 values lie in [0.375, 0.625] (alpha*beta/n^2 <= 0.5) and basis
	// 0/3 values in [0, 1], so the clamp only matters if p ever leaves [0,1].
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	return byte(math.Floor(p * 255))
}

// latticeXOR computes the lattice-layer XOR byte for position i of round r,
// shared identically by the forward and inverse transforms (XOR is its own
// inverse).
func (c *QCipher) latticeXOR(nonce [32]byte, i, r int, blockIndex uint64) byte {
	noiseSeed := make([]byte, 0, 32+3)
	noiseSeed = append(noiseSeed, nonce[:]...)
	noiseSeed = append(noiseSeed, byte(i), byte(r), byte(blockIndex%256))
	h := sha256.Sum256(noiseSeed)
	row := int(h[0]) % c.latticeDim
	col := int(h[1]) % c.latticeDim
	return byte(c.lattice[row][col] & 0xFF)
}

// quantumXOR computes the quantum-layer XOR byte for position i of round r,
// shared identically by the forward and inverse transforms.
func (c *QCipher) quantumXOR(nonce [32]byte, keyPos, i, r int, blockIndex uint64) byte {
	qseed := make([]byte, 0, 32+1)
	qseed = append(qseed, nonce[:]...)
	qseed = append(qseed, c.basisByte(keyPos+i))
	return quantumValue(qseed, blockIndex*BlockSize+uint64(i), uint64(r))
}

// EncryptBlock runs the forward 16-round transform over one 64-byte block.
func (c *QCipher) EncryptBlock(block [BlockSize]byte, blockIndex uint64, nonce [32]byte) [BlockSize]byte {
	keyPos := int(blockIndex % uint64(c.keyLen()))
	x := block

	for r := 0; r < Rounds; r++ {
		// 1. key whitening
		for i := 0; i < BlockSize; i++ {
			x[i] ^= c.roundKeys[r][i%64] ^ c.superpositionByte(keyPos+i)
		}
		// 2. substitution
		for i := 0; i < BlockSize; i++ {
			x[i] = c.sbox[x[i]]
		}
		// 3. quantum byte XOR
		for i := 0; i < BlockSize; i++ {
			x[i] ^= c.quantumXOR(nonce, keyPos, i, r, blockIndex)
		}
		// 4. lattice XOR
		if r%4 == 0 && c.latticeDim > 0 {
			for i := 0; i < BlockSize; i++ {
				x[i] ^= c.latticeXOR(nonce, i, r, blockIndex)
			}
		}
		// 5. diffusion (right rotation by shift)
		shift := int(c.roundKeys[r][0]) % BlockSize
		if shift > 0 {
			var out [BlockSize]byte
			for i := 0; i < BlockSize; i++ {
				out[(i+shift)%BlockSize] = x[i]
			}
			x = out
		}
	}
	return x
}

// DecryptBlock runs the inverse 16-round transform over one 64-byte block,
// applying the inverse of each forward step in reverse order (5,4,3,2,1).
func (c *QCipher) DecryptBlock(block [BlockSize]byte, blockIndex uint64, nonce [32]byte) [BlockSize]byte {
	keyPos := int(blockIndex % uint64(c.keyLen()))
	x := block

	for r := Rounds - 1; r >= 0; r-- {
		// inverse of 5: diffusion (left rotation by shift)
		shift := int(c.roundKeys[r][0]) % BlockSize
		if shift > 0 {
			var out [BlockSize]byte
			for i := 0; i < BlockSize; i++ {
				out[i] = x[(i+shift)%BlockSize]
			}
			x = out
		}
		// inverse of 4: lattice XOR (self-inverse)
		if r%4 == 0 && c.latticeDim > 0 {
			for i := 0; i < BlockSize; i++ {
				x[i] ^= c.latticeXOR(nonce, i, r, blockIndex)
			}
		}
		// inverse of 3: quantum XOR (self-inverse)
		for i := 0; i < BlockSize; i++ {
			x[i] ^= c.quantumXOR(nonce, keyPos, i, r, blockIndex)
		}
		// inverse of 2: substitution
		for i := 0; i < BlockSize; i++ {
			x[i] = c.inverseSBox[x[i]]
		}
		// inverse of 1: key whitening (self-inverse XOR)
		for i := 0; i < BlockSize; i++ {
			x[i] ^= c.roundKeys[r][i%64] ^ c.superpositionByte(keyPos+i)
		}
	}
	return x
}
