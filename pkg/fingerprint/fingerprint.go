// Package fingerprint derives stable identifiers from record content.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// separator cannot appear in UTF-8 text, so field boundaries stay unambiguous.
const separator = "\xff"

// Of returns the hex SHA-256 of the given fields joined in order.
func Of(fields ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(fields, separator)))

	return hex.EncodeToString(hash[:])
}

// Short returns the first n hex characters of Of(fields...).
func Short(n int, fields ...string) string {
	full := Of(fields...)
	if n <= 0 || n >= len(full) {
		return full
	}

	return full[:n]
}
