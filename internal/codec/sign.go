package codec

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
)

// Hash selects the digest algorithm used by a signing scheme.
type Hash int

const (
	// MD5 selects the MD5 digest.
	MD5 Hash = iota
	// SHA1 selects the SHA-1 digest.
	SHA1
	// SHA256 selects the SHA-256 digest.
	SHA256
	// SHA512 selects the SHA-512 digest.
	SHA512
)

func (h Hash) constructor() func() hash.Hash {
	switch h {
	case MD5:
		return md5.New
	case SHA1:
		return sha1.New
	case SHA256:
		return sha256.New
	case SHA512:
		return sha512.New
	default:
		return sha256.New
	}
}

// HexHash returns the lowercase hex digest of payload.
func HexHash(h Hash, payload string) string {
	digest := h.constructor()()
	_, _ = digest.Write([]byte(payload))
	return hex.EncodeToString(digest.Sum(nil))
}

// HexHMAC returns the lowercase hex HMAC of payload under secret.
func HexHMAC(h Hash, payload, secret string) string {
	mac := hmac.New(h.constructor(), []byte(secret))
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
