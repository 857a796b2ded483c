// Package quantumkey owns the QuantumKey type: generation of a fresh key
// from randomness, and the derived-table bookkeeping a QCipher needs. Key
// generation and loading both funnel through buildTables so the two paths
// can never disagree on what the tables mean.
package quantumkey

import (
	"time"

	"github.com/evpix/quantum-cipher/cerrors"
	"github.com/evpix/quantum-cipher/engine"
	"github.com/evpix/quantum-cipher/randsrc"
)

const (
	// MinKeyLength is the smallest accepted superposition-key length in
	// bytes, per §3's key container invariants.
	MinKeyLength = 1024
	// MaxKeyLength is the largest accepted superposition-key length in
	// bytes (1 GiB), per §3.
	MaxKeyLength = 1 << 30
)

// QuantumKey is a fully-expanded key: the master seed plus every table
// derived from it. Generate, FromSeed and Load are the only constructors; all
// three call buildTables so the derived fields are always internally
// consistent with MasterSeed and KeyLength.
type QuantumKey struct {
	MasterSeed [engine.MasterSeedSize]byte
	KeyLength  uint64
	CreatedAt  time.Time

	superpositionKey []byte
	measurementBases []byte
	lattice          [][]int64
	latticeDim       int
	checksum         [64]byte
}

// Generate creates a brand-new QuantumKey of the given length, drawing its
// master seed from src (normally randsrc.Default()).
func Generate(src randsrc.Source, keyLength uint64) (*QuantumKey, error) {
	if keyLength < MinKeyLength || keyLength > MaxKeyLength {
		return nil, cerrors.Newf(cerrors.InvalidKeyLength,
			"key length %d outside [%d, %d]", keyLength, MinKeyLength, MaxKeyLength)
	}
	seedBytes, err := randsrc.Bytes(src, engine.MasterSeedSize)
	if err != nil {
		return nil, err
	}
	var seed [engine.MasterSeedSize]byte
	copy(seed[:], seedBytes)

	k := &QuantumKey{
		MasterSeed: seed,
		KeyLength:  keyLength,
		CreatedAt:  time.Now().UTC(),
	}
	if err := k.buildTables(); err != nil {
		return nil, err
	}
	return k, nil
}

// FromSeed builds a QuantumKey from an already-known master seed rather than
// fresh randomness. It exists for the fixed-seed scenarios in §8 (the
// self-check suite and this package's own tests) where byte-exact
// reproducibility requires bypassing the CSPRNG entirely.
func FromSeed(seed [engine.MasterSeedSize]byte, keyLength uint64, createdAt time.Time) (*QuantumKey, error) {
	if keyLength < MinKeyLength || keyLength > MaxKeyLength {
		return nil, cerrors.Newf(cerrors.InvalidKeyLength,
			"key length %d outside [%d, %d]", keyLength, MinKeyLength, MaxKeyLength)
	}
	k := &QuantumKey{
		MasterSeed: seed,
		KeyLength:  keyLength,
		CreatedAt:  createdAt,
	}
	if err := k.buildTables(); err != nil {
		return nil, err
	}
	return k, nil
}

// buildTables (re)populates every derived field from MasterSeed and
// KeyLength, following §4.1's chaining: superposition key, entanglement
// pairs (chained from the superposition chain's final seed), measurement
// bases (chained from the entanglement chain's final seed), and the lattice
// basis, which chains independently from MasterSeed, so deriving it last
// yields the same tables as the §4.1 step order.
// Generate and Load both call this so neither path can drift from the other.
func (k *QuantumKey) buildTables() (err error) {
	defer func() {
		// A panic raised while deriving the tables (such as a rejected slice
		// allocation) is reported as IOFailure, the closest existing category
		// for a resource failure. The Go runtime's out-of-memory condition is
		// a fatal error rather than a panic, so it is not caught here.
		if r := recover(); r != nil {
			err = cerrors.Newf(cerrors.IOFailure, "failed to allocate key tables: %v", r)
		}
	}()

	superKey, finalSeed := engine.DeriveSuperpositionKey(k.MasterSeed, k.KeyLength)
	_, entChainSeed := engine.DeriveEntanglementPairs(finalSeed[:], k.KeyLength)
	bases := engine.DeriveMeasurementBases(entChainSeed, k.KeyLength)
	lattice, dim := engine.DeriveLatticeBasis(k.MasterSeed, k.KeyLength)

	k.superpositionKey = superKey
	k.measurementBases = bases
	k.lattice = lattice
	k.latticeDim = dim
	k.checksum = engine.Checksum(k.MasterSeed, k.superpositionKey)
	return nil
}

// Fingerprint returns the 32-byte identifier ciphertext containers use to
// name the key they were encrypted under.
func (k *QuantumKey) Fingerprint() [32]byte {
	return engine.Fingerprint(k.MasterSeed)
}

// Checksum returns the stored integrity checksum over the master seed and
// the (possibly truncated) superposition key, as written to the key file.
func (k *QuantumKey) Checksum() [64]byte {
	return k.checksum
}

// NewCipher builds the QCipher this key drives. Safe to call repeatedly;
// cheap relative to Generate/Load since it only re-derives the sbox and
// round keys (§O(1) in key length).
func (k *QuantumKey) NewCipher() *engine.QCipher {
	return engine.NewQCipher(k.MasterSeed, k.superpositionKey, k.measurementBases, k.lattice, k.latticeDim)
}

// LatticeDim returns the dimension of the derived lattice basis matrix.
func (k *QuantumKey) LatticeDim() int {
	return k.latticeDim
}

// BasesLength returns the length, in bytes, of the measurement bases array.
func (k *QuantumKey) BasesLength() int {
	return len(k.measurementBases)
}

// PairCount returns min(key_length/128, 1024), the entanglement-pair count
// an `info` display reports. buildTables derives the pairs only for their
// chaining seed (see engine.DeriveEntanglementPairs) and then discards them;
// QuantumKey does not retain them.
func (k *QuantumKey) PairCount() uint64 {
	count := k.KeyLength / 128
	if count > engine.MaxEntanglementPairs {
		count = engine.MaxEntanglementPairs
	}
	return count
}

// SuperpositionKeyLen returns the length of the derived superposition key.
func (k *QuantumKey) SuperpositionKeyLen() int {
	return len(k.superpositionKey)
}

// MeasurementBases returns the derived (or file-loaded) measurement bases.
func (k *QuantumKey) MeasurementBases() []byte {
	return k.measurementBases
}

// Lattice returns the derived lattice basis matrix.
func (k *QuantumKey) Lattice() [][]int64 {
	return k.lattice
}

// SuperpositionKey returns the derived superposition key material.
func (k *QuantumKey) SuperpositionKey() []byte {
	return k.superpositionKey
}
