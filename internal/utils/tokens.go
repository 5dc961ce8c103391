package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode"
)

// LinkCodeLen is the length of a Telegram link code in hex characters.
const LinkCodeLen = 32

// NewLinkCode returns LinkCodeLen upper-case hex characters.
func NewLinkCode() (string, error) {
	b := make([]byte, LinkCodeLen/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// NormalizeLinkCode extracts a link code from chat input that may carry
// quotes, punctuation or spaces pasted along with it.
func NormalizeLinkCode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`“”«»<>.,;:()[]{}\\")
	s = strings.ToUpper(strings.TrimSpace(s))

	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Hex_Digit, r) {
			b.WriteRune(r)
		}
	}
	code := b.String()
	if len(code) != LinkCodeLen {
		return "", false
	}
	return code, true
}
