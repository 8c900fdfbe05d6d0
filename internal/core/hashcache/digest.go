package hashcache

import (
	"crypto/sha1"
	"encoding/base32"
	"encoding/hex"
	"hash"
	"strings"
)

// DigestPrefix tags digests produced here
const DigestPrefix = "sha1:"

func newHash() hash.Hash { return sha1.New() }

// FormatSHA1 renders a raw SHA-1 sum as "sha1:" plus unpadded base32
func FormatSHA1(sum []byte) string {
	return DigestPrefix + base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum)
}

// Canonical normalises a declared digest into the form FormatSHA1 produces
// Hex-encoded SHA-1 values are converted to base32. ok is false when the digest
// uses another algorithm or cannot be parsed, in which case it cannot be compared.
func Canonical(declared string) (string, bool) {
	d := strings.TrimSpace(declared)
	algo, val, found := strings.Cut(d, ":")
	if !found || !strings.EqualFold(algo, "sha1") {
		return "", false
	}
	switch len(val) {
	case 32:
		v := strings.ToUpper(val)
		if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(v); err != nil {
			return "", false
		}
		return DigestPrefix + v, true
	case 40:
		sum, err := hex.DecodeString(val)
		if err != nil {
			return "", false
		}
		return FormatSHA1(sum), true
	default:
		return "", false
	}
}
