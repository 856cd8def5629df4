// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const MaxIdentityLen = 64

var (
	ErrIdentityEmpty   = errors.New("identity empty")
	ErrIdentityTooLong = errors.New("identity too long")
)

// Identity is the stable key for a monitored party. It is supplied by
// the client at registration time and trusted as given; gating which
// identities may register belongs to the auth service, not this core.
type Identity string

// ParseIdentity validates a raw identity string from the wire.
func ParseIdentity(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == 0 {
		return "", ErrIdentityEmpty
	}
	if len(raw) > MaxIdentityLen {
		return "", ErrIdentityTooLong
	}
	return Identity(raw), nil
}
