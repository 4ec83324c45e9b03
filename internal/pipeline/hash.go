package pipeline

import (
	"crypto/md5" // #nosec G501 - identity fingerprint, not a security boundary
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// HashAlgorithm names the function used for artifact identities.
type HashAlgorithm string

const (
	HashMD5    HashAlgorithm = "md5"
	HashSHA256 HashAlgorithm = "sha256"
	HashBLAKE3 HashAlgorithm = "blake3"
)

// ParseHashAlgorithm accepts md5 (default when empty), sha256 or blake3.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch HashAlgorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", HashMD5:
		return HashMD5, nil
	case HashSHA256:
		return HashSHA256, nil
	case HashBLAKE3:
		return HashBLAKE3, nil
	default:
		return "", fmt.Errorf("unknown pipeline hash %q (want md5, sha256 or blake3)", s)
	}
}

// Sum returns the lowercase hex digest of data.
func (h HashAlgorithm) Sum(data []byte) string {
	switch h {
	case HashSHA256:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	case HashBLAKE3:
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:])
	default:
		sum := md5.Sum(data) // #nosec G401
		return hex.EncodeToString(sum[:])
	}
}

// Identity hashes the concatenated links followed by salt.
func Identity(h HashAlgorithm, links []string, salt string) string {
	return h.Sum([]byte(strings.Join(links, "") + salt))
}
