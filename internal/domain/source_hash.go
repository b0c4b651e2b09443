package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// SourceHash fingerprints a document's name and extracted text. Reprocessing
// compares it against the stored hash and skips unchanged documents unless
// forced.
func SourceHash(name, text string) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
