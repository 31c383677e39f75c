// Package checksum signs and verifies gateway payloads.
//
// A signature is hex(sha256(payload || route || key)) followed by "###" and
// the key version, which is the scheme the gateway applies to requests it
// receives and to the notifications it sends.
package checksum

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

const separator = "###"

var (
	ErrMissingKey         = errors.New("checksum: secret key is not set")
	ErrInvalidKeyVersion  = errors.New("checksum: key version must be positive")
	ErrSignatureMismatch  = errors.New("checksum: signature mismatch")
	ErrMalformedSignature = errors.New("checksum: malformed signature")
)

type Engine struct {
	key     string
	version int
}

func New(key string, version int) (*Engine, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	if version < 1 {
		return nil, ErrInvalidKeyVersion
	}
	return &Engine{key: key, version: version}, nil
}

func (e *Engine) Sign(payload []byte, route string) string {
	return e.digest(payload, route) + separator + strconv.Itoa(e.version)
}

// Verify checks signature against payload and route using the engine's key.
func (e *Engine) Verify(payload []byte, route, signature string) error {
	digest, version, ok := strings.Cut(signature, separator)
	if !ok || digest == "" {
		return ErrMalformedSignature
	}
	if version != strconv.Itoa(e.version) {
		return ErrSignatureMismatch
	}
	want := e.digest(payload, route)
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(digest)), []byte(want)) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}

func (e *Engine) digest(payload []byte, route string) string {
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte(route))
	h.Write([]byte(e.key))
	return hex.EncodeToString(h.Sum(nil))
}
