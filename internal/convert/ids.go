package convert

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Domain prefix for content-addressed query identity.
// Version suffix enables future algorithm migration.
const DomainQuery = "kgbridge/query/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// QueryID returns a stable identifier for raw query text. The text is NFC
// normalized first so equivalent Unicode spellings share an ID.
func QueryID(text string) string {
	return hashWithDomain(DomainQuery, []byte(norm.NFC.String(text)))
}
