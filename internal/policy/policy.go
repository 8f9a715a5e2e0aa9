// Package policy identifies the consent policy currently in force.
//
// The banner compares the hash stored with a visitor's consent against the
// current policy hash; any change to the policy text produces a new hash and
// asks every visitor again.
package policy

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns the hex BLAKE2b-256 digest of the policy text.
// Line endings are normalized so the same document checked out on different
// platforms yields the same hash.
func Fingerprint(text []byte) string {
	normalized := strings.ReplaceAll(string(text), "\r\n", "\n")
	sum := blake2b.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// CurrentHash returns hash when set, otherwise the fingerprint of the file at path.
func CurrentHash(hash, path string) (string, error) {
	if hash = strings.TrimSpace(hash); hash != "" {
		return hash, nil
	}
	if path == "" {
		return "", fmt.Errorf("no policy hash or policy file configured")
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read policy file: %w", err)
	}
	return Fingerprint(text), nil
}
