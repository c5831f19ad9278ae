// Package chainutils holds small helpers shared by the chain-facing packages.
package chainutils

import (
	"fmt"

	"github.com/ChainSafe/gossamer/lib/crypto/sr25519"
	"github.com/vedhavyas/go-subkey"
)

// ValidateSS58 checks that address decodes to a valid sr25519 public key.
func ValidateSS58(address string) error {
	if address == "" {
		return fmt.Errorf("empty ss58 address")
	}
	_, pubKeyBytes, err := subkey.SS58Decode(address)
	if err != nil {
		return fmt.Errorf("decode ss58 address %q: %w", address, err)
	}
	if _, err := sr25519.NewPublicKey(pubKeyBytes); err != nil {
		return fmt.Errorf("ss58 address %q is not an sr25519 key: %w", address, err)
	}
	return nil
}
