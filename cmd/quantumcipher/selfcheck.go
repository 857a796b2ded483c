package main

import (
	"bytes"
	"reflect"
	"time"

	"github.com/fatih/color"

	"github.com/evpix/quantum-cipher/cerrors"
	"github.com/evpix/quantum-cipher/container"
	"github.com/evpix/quantum-cipher/quantumkey"
	"github.com/evpix/quantum-cipher/randsrc"
)

// runSelfCheck exercises §8 scenarios 1-3 and 6 in-process (tiny file,
// block boundary, multi-block, key reload), printing PASS/FAIL per
// scenario the way the teacher's SNMP logger reports per-counter state.
// It returns false if any scenario failed.
func runSelfCheck() bool {
	var seed [64]byte // fixed all-zero master seed, per the scenarios' fixed inputs
	createdAt := time.Unix(0, 0).UTC()

	key, err := quantumkey.FromSeed(seed, 1024, createdAt)
	if err != nil {
		report("key setup", err)
		return false
	}
	zero := randsrc.Fixed(0)

	ok := true
	ok = report("tiny file", checkTinyFile(key, zero)) && ok
	ok = report("block boundary", checkBlockBoundary(key, zero)) && ok
	ok = report("multi-block", checkMultiBlock(key, zero)) && ok
	ok = report("key reload", checkKeyReload(key)) && ok
	return ok
}

func report(name string, err error) bool {
	if err != nil {
		color.Red("FAIL %-16s %v", name, err)
		return false
	}
	color.Green("PASS %-16s", name)
	return true
}

// checkTinyFile is scenario 1: an 11-byte input must round-trip through a
// single padded 64-byte ciphertext block.
func checkTinyFile(key *quantumkey.QuantumKey, src randsrc.Source) error {
	plaintext := []byte("Hello World")
	out, err := container.Encrypt(key, plaintext, src)
	if err != nil {
		return err
	}
	const headerSize, tagSize = 143, 64
	if got := len(out) - headerSize - tagSize; got != 64 {
		return cerrors.Newf(cerrors.CorruptContainer, "ciphertext region is %d bytes, want 64", got)
	}
	recovered, err := container.Decrypt(key, out)
	if err != nil {
		return err
	}
	if !bytes.Equal(recovered, plaintext) {
		return cerrors.New(cerrors.CorruptContainer, "round trip mismatch")
	}
	return nil
}

// checkBlockBoundary is scenario 2: exactly one block of zero bytes must
// produce no extra padding block.
func checkBlockBoundary(key *quantumkey.QuantumKey, src randsrc.Source) error {
	plaintext := make([]byte, 64)
	out, err := container.Encrypt(key, plaintext, src)
	if err != nil {
		return err
	}
	const headerSize, tagSize = 143, 64
	if got := len(out) - headerSize - tagSize; got != 64 {
		return cerrors.Newf(cerrors.CorruptContainer, "ciphertext region is %d bytes, want 64", got)
	}
	recovered, err := container.Decrypt(key, out)
	if err != nil {
		return err
	}
	if !bytes.Equal(recovered, plaintext) {
		return cerrors.New(cerrors.CorruptContainer, "round trip mismatch")
	}
	return nil
}

// checkMultiBlock is scenario 3: 200 bytes spans four blocks.
func checkMultiBlock(key *quantumkey.QuantumKey, src randsrc.Source) error {
	plaintext := bytes.Repeat([]byte{0xAB}, 200)
	out, err := container.Encrypt(key, plaintext, src)
	if err != nil {
		return err
	}
	const headerSize, tagSize = 143, 64
	if got := len(out) - headerSize - tagSize; got != 256 {
		return cerrors.Newf(cerrors.CorruptContainer, "ciphertext region is %d bytes, want 256", got)
	}
	recovered, err := container.Decrypt(key, out)
	if err != nil {
		return err
	}
	if !bytes.Equal(recovered, plaintext) {
		return cerrors.New(cerrors.CorruptContainer, "round trip mismatch")
	}
	return nil
}

// checkKeyReload is scenario 6: generate, save, load must reproduce every
// derived table bit-for-bit.
func checkKeyReload(key *quantumkey.QuantumKey) error {
	data, err := key.Save()
	if err != nil {
		return err
	}
	reloaded, err := quantumkey.Load(data)
	if err != nil {
		return err
	}
	if reloaded.MasterSeed != key.MasterSeed {
		return cerrors.New(cerrors.CorruptContainer, "master_seed mismatch")
	}
	if reloaded.Checksum() != key.Checksum() {
		return cerrors.New(cerrors.CorruptContainer, "checksum mismatch")
	}
	if !bytes.Equal(reloaded.MeasurementBases(), key.MeasurementBases()) {
		return cerrors.New(cerrors.CorruptContainer, "measurement_bases mismatch")
	}
	if !bytes.Equal(reloaded.SuperpositionKey(), key.SuperpositionKey()) {
		return cerrors.New(cerrors.CorruptContainer, "superposition_key mismatch")
	}
	if !reflect.DeepEqual(reloaded.Lattice(), key.Lattice()) {
		return cerrors.New(cerrors.CorruptContainer, "lattice mismatch")
	}
	return nil
}
