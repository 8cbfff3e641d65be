// Package fingerprint computes content fingerprints of media objects.
//
// A Fingerprint is the SHA-256 of an object's exact byte stream. Input is
// consumed incrementally through a pooled buffer, so objects of any size can
// be hashed without holding them in memory, and the result does not depend
// on how the stream happens to be chunked.
package fingerprint

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/mediacatalog/internal/common"
	"github.com/minio/sha256-simd"
)

// ShortHashLen is the number of leading hex characters of the full hash
// embedded in object keys.
const ShortHashLen = 10

const bufferSize = 64 * 1024

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, bufferSize)
		return &b
	},
}

// Fingerprint identifies an object by content.
type Fingerprint struct {
	FullHash  string // 64 lowercase hex characters
	ShortHash string // FullHash[:ShortHashLen]
}

// FromHex builds a Fingerprint from an already computed full hex digest.
func FromHex(full string) Fingerprint {
	short := full
	if len(short) > ShortHashLen {
		short = short[:ShortHashLen]
	}
	return Fingerprint{FullHash: full, ShortHash: short}
}

// FromReader streams r to EOF and returns its fingerprint. A read error
// aborts hashing and is reported wrapped in common.ErrorHashing.
func FromReader(r io.Reader) (Fingerprint, error) {
	h := sha256.New()

	bp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bp)

	if _, err := io.CopyBuffer(h, r, *bp); err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %w", common.ErrorHashing, err)
	}
	return FromHex(hex.EncodeToString(h.Sum(nil))), nil
}

// FromFile hashes the file at path.
func FromFile(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: open %s: %w", common.ErrorHashing, path, err)
	}
	defer f.Close()

	return FromReader(f)
}

// Matches reports whether short is a prefix of the fingerprint's full hash.
func (f Fingerprint) Matches(short string) bool {
	return short != "" && len(short) <= len(f.FullHash) && f.FullHash[:len(short)] == short
}
