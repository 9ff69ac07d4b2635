// Package address derives gateway recipient identifiers (JIDs) from raw
// phone-number strings.
package address

import "strings"

const (
	// DomainSuffix is the fixed domain appended to every normalized number.
	DomainSuffix = "@s.whatsapp.net"

	// DefaultCountryCode is prepended to bare national numbers when no
	// country code is configured.
	DefaultCountryCode = "966"

	// bareNationalLength is the digit count of a national number carrying
	// no country code.
	bareNationalLength = 9

	// minDigits is the minimum viable digit count after normalization.
	minDigits = 10
)

// JID is a normalized recipient identifier. Immutable once constructed;
// used only as a lookup key for existence checks and dispatch.
type JID string

// String returns the JID as a plain string.
func (j JID) String() string { return string(j) }

// User returns the digit portion of the JID, without the domain suffix.
func (j JID) User() string {
	return strings.TrimSuffix(string(j), DomainSuffix)
}

// Normalizer derives JIDs using a configured default country code.
type Normalizer struct {
	countryCode string
}

// NewNormalizer creates a Normalizer. An empty countryCode falls back to
// DefaultCountryCode.
func NewNormalizer(countryCode string) *Normalizer {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	return &Normalizer{countryCode: countryCode}
}

// Normalize derives a JID from a raw phone-number string: strips every
// non-digit character, prepends the default country code when the stripped
// digits match a bare national number, and rejects anything still shorter
// than the minimum viable length. Normalization is idempotent: feeding a
// normalized JID back in yields the same JID.
func (n *Normalizer) Normalize(raw string) (JID, bool) {
	digits := stripNonDigits(raw)

	if len(digits) == bareNationalLength {
		digits = n.countryCode + digits
	}

	if len(digits) < minDigits {
		return "", false
	}

	return JID(digits + DomainSuffix), true
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
