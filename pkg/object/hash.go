package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// HashLength is the length of a hex-encoded Hash.
const HashLength = 40

// HashObject computes the SHA-1 of the envelope "type len\0content", exactly
// as git does.
func HashObject(objType ObjectType, body []byte) Hash {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", objType, len(body))
	h.Write(body)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// HashRaw computes the hash of an already-encoded object.
func HashRaw(raw []byte) Hash {
	sum := sha1.Sum(raw)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashOf encodes obj and returns its hash.
func HashOf(obj Object) Hash {
	return HashRaw(Encode(obj))
}

// ValidateHash checks that h is 40 lowercase hex characters.
func ValidateHash(h Hash) error {
	if len(h) != HashLength {
		return &ValidationError{Kind: "hash", Value: string(h), Reason: fmt.Sprintf("want %d hex characters, got %d", HashLength, len(h))}
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return &ValidationError{Kind: "hash", Value: string(h), Reason: fmt.Sprintf("invalid character %q at %d", c, i)}
		}
	}
	return nil
}

func hashFromBytes(b []byte) Hash {
	return Hash(hex.EncodeToString(b))
}

func hashToBytes(h Hash) ([]byte, error) {
	if err := ValidateHash(h); err != nil {
		return nil, err
	}
	return hex.DecodeString(string(h))
}
