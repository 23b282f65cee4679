package domain

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// AccountIDLen is the raw length of an account identity in bytes.
const AccountIDLen = 32

// AccountID is an opaque 32-byte account identity supplied by the host
// environment. It is comparable and usable as a map key.
type AccountID [AccountIDLen]byte

// ParseAccountID decodes a base58 account string (Bitcoin alphabet).
func ParseAccountID(s string) (AccountID, error) {
	var id AccountID

	raw, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("decode account id: %w", err)
	}
	if len(raw) != AccountIDLen {
		return id, fmt.Errorf("account id must be %d bytes, got %d", AccountIDLen, len(raw))
	}

	copy(id[:], raw)
	return id, nil
}

// String returns the base58 text form.
func (id AccountID) String() string {
	return base58.Encode(id[:])
}

// IsZero reports whether the ID is the all-zero value.
func (id AccountID) IsZero() bool {
	return id == AccountID{}
}

// IsOnCurve reports whether the ID is a valid ed25519 curve point.
// Host environments that derive account keys from ed25519 keypairs can
// use this to reject malformed identities; the ledger itself does not
// require it.
func (id AccountID) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(id[:])
	return err == nil
}

// MarshalText implements encoding.TextMarshaler (base58 form).
func (id AccountID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *AccountID) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
