package model

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressLength is the byte length of every identity in the store.
const AddressLength = 32

// ErrInvalidAddress is returned when an identity cannot be parsed or is null where one is required.
var ErrInvalidAddress = errors.New("invalid address")

// Address is a 32-byte identity for mints, pools, vaults, configs and owners.
// The zero value is the null identity.
type Address [AddressLength]byte

// ZeroAddress is the null identity.
var ZeroAddress Address

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a[:])
	return out
}

// String returns the base58 form.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Less orders addresses bytewise.
func (a Address) Less(other Address) bool {
	return bytes.Compare(a[:], other[:]) < 0
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress decodes a base58 identity. The empty string decodes to the null identity.
func ParseAddress(input string) (Address, error) {
	if input == "" {
		return ZeroAddress, nil
	}
	raw, err := base58.Decode(input)
	if err != nil {
		return ZeroAddress, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, input, err)
	}
	if len(raw) != AddressLength {
		return ZeroAddress, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddress, input, len(raw))
	}
	var out Address
	copy(out[:], raw)
	return out, nil
}

// AddressFromBytes copies a 32-byte slice into an Address.
func AddressFromBytes(raw []byte) (Address, error) {
	if len(raw) != AddressLength {
		return ZeroAddress, fmt.Errorf("%w: length %d", ErrInvalidAddress, len(raw))
	}
	var out Address
	copy(out[:], raw)
	return out, nil
}
