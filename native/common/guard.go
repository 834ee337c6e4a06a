package common

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Capability is an unforgeable token gating privileged module operations.
// Modules check possession only; who may hold the capability is the access
// control layer's concern.
type Capability struct {
	token [16]byte
	valid bool
}

// NewCapability mints a fresh capability backed by a random nonce.
func NewCapability() (Capability, error) {
	var c Capability
	if _, err := rand.Read(c.token[:]); err != nil {
		return Capability{}, err
	}
	c.valid = true
	return c, nil
}

// Valid reports whether the capability was minted by NewCapability. The
// zero value is never valid.
func (c Capability) Valid() bool {
	return c.valid
}

// Equals compares two capabilities in constant time.
func (c Capability) Equals(other Capability) bool {
	if !c.valid || !other.valid {
		return false
	}
	return subtle.ConstantTimeCompare(c.token[:], other.token[:]) == 1
}
