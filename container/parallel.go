package container

import (
	"runtime"
	"sync"

	"github.com/evpix/quantum-cipher/engine"
)

// DecryptParallel is equivalent to Decrypt but fans the per-block decrypt
// step out across a bounded worker pool, per §5: each ciphertext block's
// plaintext depends only on its own block, the previous ciphertext block,
// and the immutable cipher — never on another block's plaintext — so the
// block-decrypt step (unlike encrypt) parallelises safely. workers <= 0
// defaults to runtime.NumCPU(), mirroring the teacher's connections sized
// off the host rather than a fixed pool.
func DecryptParallel(key Key, data []byte, workers int) ([]byte, error) {
	h, ciphertext, err := validateAndSplit(key, data)
	if err != nil {
		return nil, err
	}

	numBlocks := (len(ciphertext) + engine.BlockSize - 1) / engine.BlockSize
	if numBlocks == 0 {
		if h.originalSize > 0 {
			return nil, corruptTruncated(0, h.originalSize)
		}
		return nil, nil
	}
	decrypted := make([][engine.BlockSize]byte, numBlocks)

	cipher := key.NewCipher()

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > numBlocks {
		workers = numBlocks
	}

	indices := make(chan int, numBlocks)
	for i := 0; i < numBlocks; i++ {
		indices <- i
	}
	close(indices)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				var block [engine.BlockSize]byte
				start := i * engine.BlockSize
				end := start + engine.BlockSize
				if end > len(ciphertext) {
					end = len(ciphertext)
				}
				copy(block[:], ciphertext[start:end])
				decrypted[i] = cipher.DecryptBlock(block, uint64(i), h.nonce)
			}
		}()
	}
	wg.Wait()

	// The CBC-unmasking pass that follows is a tight sequential chain over
	// already-decrypted blocks (prev is the raw ciphertext, not plaintext),
	// so it stays single-threaded; only the expensive 16-round transform
	// above was worth parallelising.
	out := make([]byte, 0, numBlocks*engine.BlockSize)
	prev := append([]byte(nil), h.iv[:]...)
	for i := 0; i < numBlocks; i++ {
		start := i * engine.BlockSize
		end := start + engine.BlockSize
		if end > len(ciphertext) {
			end = len(ciphertext)
		}
		var rawBlock [engine.BlockSize]byte
		copy(rawBlock[:], ciphertext[start:end])

		d := decrypted[i]
		p := make([]byte, engine.BlockSize)
		for j := 0; j < engine.BlockSize; j++ {
			p[j] = d[j] ^ prev[j%len(prev)]
		}
		out = append(out, p...)
		prev = append([]byte(nil), rawBlock[:]...)
	}

	if uint64(len(out)) < h.originalSize {
		return nil, corruptTruncated(len(out), h.originalSize)
	}
	return out[:h.originalSize], nil
}
