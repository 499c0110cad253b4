package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidIdentifier is returned when an account or asset id does not
// have the two-part "<name><delim><domain>" shape.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// DomainID names a ledger domain (e.g. "test").
type DomainID string

// AccountID identifies an account as "<name>@<domain>".
type AccountID string

// AssetID identifies an asset as "<name>#<domain>".
type AssetID string

// RoleID names a role (e.g. "user").
type RoleID string

// NewAccountID joins an account name and a domain.
func NewAccountID(name string, domain DomainID) AccountID {
	return AccountID(name + "@" + string(domain))
}

// NewAssetID joins an asset name and a domain.
func NewAssetID(name string, domain DomainID) AssetID {
	return AssetID(name + "#" + string(domain))
}

// ParseAccountID splits an account id into its name and domain.
// Only structure is checked; charset rules are the ledger's business.
func ParseAccountID(s string) (string, DomainID, error) {
	name, domain, err := splitID(s, "@")
	return name, DomainID(domain), err
}

// ParseAssetID splits an asset id into its name and domain.
func ParseAssetID(s string) (string, DomainID, error) {
	name, domain, err := splitID(s, "#")
	return name, DomainID(domain), err
}

// Name returns the part before '@', or "" if the id is malformed.
func (a AccountID) Name() string {
	name, _, _ := ParseAccountID(string(a))
	return name
}

// Domain returns the part after '@', or "" if the id is malformed.
func (a AccountID) Domain() DomainID {
	_, domain, _ := ParseAccountID(string(a))
	return domain
}

// Validate checks the two-part structure of the id.
func (a AccountID) Validate() error {
	_, _, err := ParseAccountID(string(a))
	return err
}

// Name returns the part before '#', or "" if the id is malformed.
func (a AssetID) Name() string {
	name, _, _ := ParseAssetID(string(a))
	return name
}

// Domain returns the part after '#', or "" if the id is malformed.
func (a AssetID) Domain() DomainID {
	_, domain, _ := ParseAssetID(string(a))
	return domain
}

// Validate checks the two-part structure of the id.
func (a AssetID) Validate() error {
	_, _, err := ParseAssetID(string(a))
	return err
}

func splitID(s, delim string) (string, string, error) {
	if strings.Count(s, delim) != 1 {
		return "", "", fmt.Errorf("%w: %q: expected exactly one %q", ErrInvalidIdentifier, s, delim)
	}
	name, domain, _ := strings.Cut(s, delim)
	if name == "" || domain == "" {
		return "", "", fmt.Errorf("%w: %q: empty name or domain", ErrInvalidIdentifier, s)
	}
	return name, domain, nil
}
