package quantumkey

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/evpix/quantum-cipher/cerrors"
	"github.com/evpix/quantum-cipher/engine"
)

var keyMagic = [4]byte{0x51, 0x4B, 0x45, 0x59} // "QKEY"

const keyVersion = 1

// keyHeaderSize is the fixed-size prefix before the variable-length
// measurement-bases field: magic(4) + version(1) + key_length(8) +
// created_at(8) + master_seed(64) + checksum(64) + bases_length(4).
const keyHeaderSize = 4 + 1 + 8 + 8 + 64 + 64 + 4

// Save serialises k into the §4.5 key container format.
//
// The reference reader this format is modelled on skips an extra byte
// before key_length, one offset ahead of where its own writer placed the
// field. There is no independent producer of this format to stay
// bug-compatible with, so this writer and Load agree on the corrected,
// gap-free offsets: magic, version, key_length, created_at, master_seed,
// checksum, bases_length, measurement_bases, back to back.
func (k *QuantumKey) Save() ([]byte, error) {
	buf := make([]byte, 0, keyHeaderSize+len(k.measurementBases))
	buf = append(buf, keyMagic[:]...)
	buf = append(buf, keyVersion)
	buf = binary.LittleEndian.AppendUint64(buf, k.KeyLength)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(k.CreatedAt.Unix()))
	buf = append(buf, k.MasterSeed[:]...)
	buf = append(buf, k.checksum[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(k.measurementBases)))
	buf = append(buf, k.measurementBases...)
	return buf, nil
}

// Load parses data per §4.5 and regenerates every derived table from
// master_seed and key_length, per §4.1. The measurement bases are trusted
// verbatim from the file rather than recomputed, exactly as the format
// intends ("the consumer need not depend on the §4.1 chaining seed
// state"); the checksum, however, is independently recomputed and verified
// against the stored value.
func Load(data []byte) (*QuantumKey, error) {
	if len(data) < keyHeaderSize {
		return nil, cerrors.Newf(cerrors.CorruptContainer,
			"key file too short: %d bytes, need at least %d", len(data), keyHeaderSize)
	}
	if !bytes.Equal(data[0:4], keyMagic[:]) {
		return nil, cerrors.New(cerrors.CorruptContainer, "key file magic mismatch")
	}
	if data[4] != keyVersion {
		return nil, cerrors.Newf(cerrors.CorruptContainer, "unsupported key file version %d", data[4])
	}

	keyLength := binary.LittleEndian.Uint64(data[5:13])
	if keyLength < MinKeyLength || keyLength > MaxKeyLength {
		return nil, cerrors.Newf(cerrors.CorruptContainer,
			"key file declares key_length %d outside [%d, %d]", keyLength, MinKeyLength, MaxKeyLength)
	}
	createdAtRaw := binary.LittleEndian.Uint64(data[13:21])

	var seed [engine.MasterSeedSize]byte
	copy(seed[:], data[21:85])

	var storedChecksum [64]byte
	copy(storedChecksum[:], data[85:149])

	basesLength := binary.LittleEndian.Uint32(data[149:153])
	if uint64(basesLength) > 2*uint64(len(data)) {
		return nil, cerrors.Newf(cerrors.CorruptContainer, "bases_length %d implausible for file of size %d", basesLength, len(data))
	}
	end := keyHeaderSize + int(basesLength)
	if len(data) < end {
		return nil, cerrors.Newf(cerrors.CorruptContainer,
			"key file truncated: need %d bytes for measurement bases, have %d", end, len(data))
	}
	storedBases := append([]byte(nil), data[keyHeaderSize:end]...)

	k := &QuantumKey{
		MasterSeed: seed,
		KeyLength:  keyLength,
		CreatedAt:  time.Unix(int64(createdAtRaw), 0).UTC(),
	}
	if err := k.buildTables(); err != nil {
		return nil, err
	}
	// measurement_bases is authoritative from the file, not the recomputed
	// chain, per §4.5's closing note.
	k.measurementBases = storedBases

	if !bytes.Equal(k.checksum[:], storedChecksum[:]) {
		return nil, cerrors.New(cerrors.CorruptContainer, "key file checksum mismatch")
	}
	return k, nil
}
