// Package fingerprint computes a content hash of an assembled image,
// giving the assembler's determinism guarantee (spec §8 invariant 6 —
// the same input text produces byte-identical output) a concrete,
// printable artifact to compare across builds.
package fingerprint

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Of returns the hex-encoded BLAKE2b-256 digest of image.
func Of(image []byte) string {
	sum := blake2b.Sum256(image)
	return hex.EncodeToString(sum[:])
}
