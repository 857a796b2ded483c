package engine

import "testing"

func fixedSeed(b byte) [MasterSeedSize]byte {
	var s [MasterSeedSize]byte
	for i := range s {
		s[i] = b
	}
	return s
}

func TestDeriveSuperpositionKeyLength(t *testing.T) {
	seed := fixedSeed(0x11)
	for _, n := range []uint64{1, 63, 64, 65, 1024, 1500} {
		key, _ := DeriveSuperpositionKey(seed, n)
		if uint64(len(key)) != n {
			t.Fatalf("length %d: got %d bytes", n, len(key))
		}
	}
}

func TestDeriveSuperpositionKeyDeterministic(t *testing.T) {
	seed := fixedSeed(0x22)
	k1, f1 := DeriveSuperpositionKey(seed, 2048)
	k2, f2 := DeriveSuperpositionKey(seed, 2048)
	if string(k1) != string(k2) || f1 != f2 {
		t.Fatal("DeriveSuperpositionKey is not deterministic for identical inputs")
	}
}

func TestDeriveRoundKeysDeterministic(t *testing.T) {
	seed := fixedSeed(0x33)
	r1 := DeriveRoundKeys(seed)
	r2 := DeriveRoundKeys(seed)
	if r1 != r2 {
		t.Fatal("DeriveRoundKeys is not deterministic for identical inputs")
	}
}

func TestDeriveSBoxIsPermutation(t *testing.T) {
	seed := fixedSeed(0x44)
	sbox, inv := DeriveSBox(seed)

	var seen [256]bool
	for _, v := range sbox {
		if seen[v] {
			t.Fatalf("sbox is not a bijection: value %d appears twice", v)
		}
		seen[v] = true
	}
	for i := 0; i < 256; i++ {
		if inv[sbox[i]] != byte(i) {
			t.Fatalf("inverse_sbox[sbox[%d]] = %d, want %d", i, inv[sbox[i]], i)
		}
	}
}

func TestLatticeDim(t *testing.T) {
	cases := map[uint64]int{
		0:       0,
		7:       0,
		8:       1,
		1024:    128,
		100_000: 256,
		1 << 30: 256,
	}
	for keyLength, want := range cases {
		if got := LatticeDim(keyLength); got != want {
			t.Errorf("LatticeDim(%d) = %d, want %d", keyLength, got, want)
		}
	}
}

func TestDeriveLatticeBasisBounds(t *testing.T) {
	seed := fixedSeed(0x55)
	matrix, dim := DeriveLatticeBasis(seed, 4096)
	if dim != LatticeDim(4096) {
		t.Fatalf("dim %d != LatticeDim(4096) %d", dim, LatticeDim(4096))
	}
	if len(matrix) != dim {
		t.Fatalf("matrix has %d rows, want %d", len(matrix), dim)
	}
	for _, row := range matrix {
		if len(row) != dim {
			t.Fatalf("row has %d entries, want %d", len(row), dim)
		}
		for _, v := range row {
			if v < 1 || v > 65536 {
				t.Fatalf("lattice entry %d out of range [1,65536]", v)
			}
		}
	}
}

func TestFingerprintChangesWithSeed(t *testing.T) {
	a := fixedSeed(0x01)
	b := fixedSeed(0x02)
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("fingerprints collided for distinct master seeds")
	}
}

func TestChecksumDeterministic(t *testing.T) {
	seed := fixedSeed(0x66)
	key, _ := DeriveSuperpositionKey(seed, 2048)
	c1 := Checksum(seed, key)
	c2 := Checksum(seed, key)
	if c1 != c2 {
		t.Fatal("Checksum is not deterministic for identical inputs")
	}
}

func TestDeriveEntanglementPairsCount(t *testing.T) {
	seed := fixedSeed(0x77)
	_, finalSeed := DeriveSuperpositionKey(seed, 1024)
	pairs, chainSeed := DeriveEntanglementPairs(finalSeed[:], 1024)
	if len(pairs) != 8 { // 1024/128
		t.Fatalf("got %d pairs, want 8", len(pairs))
	}
	if len(chainSeed) != 32 {
		t.Fatalf("chain seed is %d bytes, want 32", len(chainSeed))
	}
}
