// Package identity models the two ways a caller can name an account: a
// self-minted ZenID or an external wallet address. Both are 0x-prefixed
// 40-character hex strings and both resolve to the same user row.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var ErrInvalidAddress = errors.New("invalid address: expected 0x followed by 40 hex characters")

var addressRe = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// AccountIdentifier is either a ZenID or a Wallet.
type AccountIdentifier interface {
	String() string
	isAccountIdentifier()
}

type ZenID string

func (z ZenID) String() string     { return string(z) }
func (ZenID) isAccountIdentifier() {}

type Wallet string

func (w Wallet) String() string     { return string(w) }
func (Wallet) isAccountIdentifier() {}

// NewZenID mints a fresh pseudo-address: the low 20 bytes of the Keccak-256
// digest of 32 random bytes, the same shape as an Ethereum address.
func NewZenID() (ZenID, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("identity: read random seed: %w", err)
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(seed)
	sum := h.Sum(nil)
	return ZenID("0x" + hex.EncodeToString(sum[len(sum)-20:])), nil
}

func normalize(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !addressRe.MatchString(s) {
		return "", ErrInvalidAddress
	}
	return s, nil
}

// ParseZenID validates s and returns it lower-cased.
func ParseZenID(s string) (ZenID, error) {
	n, err := normalize(s)
	if err != nil {
		return "", err
	}
	return ZenID(n), nil
}

// ParseWallet validates s and returns it lower-cased.
func ParseWallet(s string) (Wallet, error) {
	n, err := normalize(s)
	if err != nil {
		return "", err
	}
	return Wallet(n), nil
}

// Short renders an identifier as 0x1234...abcd for display fallbacks.
func Short(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:6] + "..." + id[len(id)-4:]
}

// PlaceholderName is the display name given to auto-provisioned wallet accounts.
func PlaceholderName(w Wallet) string {
	s := string(w)
	if len(s) < 8 {
		return "user_" + strings.TrimPrefix(s, "0x")
	}
	return "user_" + s[2:8]
}
