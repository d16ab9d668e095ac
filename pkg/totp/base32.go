package totp

import (
	"encoding/base32"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// symbols per 5 byte block
const blockSize = 8

var rawEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// strip whitespace and padding, upper case what's left
func stripSecret(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '=' || unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, text)
}

// DecodeSecret decodes a base32 secret.  Case, whitespace and padding are ignored.
func DecodeSecret(text string) ([]byte, error) {
	var symbols = stripSecret(text)
	for i, r := range symbols {
		if !strings.ContainsRune(base32Alphabet, r) {
			return nil, newError(InvalidEncoding, errors.Errorf("illegal symbol %q at offset %d", r, i))
		}
	}

	// 1, 3 and 6 trailing symbols leave a partial byte
	switch len(symbols) % blockSize {
	case 1, 3, 6:
		return nil, newError(InvalidEncoding, errors.Errorf("%d symbols do not form whole bytes", len(symbols)))
	}

	// bits past the last whole byte must be zero or the encoding is not canonical
	if extra := (5 * len(symbols)) % 8; extra != 0 {
		var last = strings.IndexByte(base32Alphabet, symbols[len(symbols)-1])
		if last&(1<<uint(extra)-1) != 0 {
			return nil, newError(InvalidEncoding, errors.Errorf("trailing bits of %q are not zero", symbols[len(symbols)-1]))
		}
	}

	key, err := rawEncoding.DecodeString(symbols)
	if err != nil {
		return nil, newError(InvalidEncoding, err)
	}
	return key, nil
}

// EncodeSecret returns the padded upper case base32 form of secret
func EncodeSecret(secret []byte) string {
	return base32.StdEncoding.EncodeToString(secret)
}

// NormalizeSecret returns text in the form EncodeSecret produces, without validating it
func NormalizeSecret(text string) string {
	var symbols = stripSecret(text)
	if len(symbols)%blockSize != 0 {
		symbols += strings.Repeat("=", blockSize-(len(symbols)%blockSize))
	}
	return symbols
}
