package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidateMint checks that s is a well-formed mint address: base58 with
// exactly 32 decoded bytes. Curve membership is not required; mints
// created under program-derived authorities sit off the ed25519 curve.
func ValidateMint(s string) error {
	if s == "" {
		return fmt.Errorf("empty mint address")
	}

	decoded, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("mint %q is not base58: %w", s, err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("mint %q decodes to %d bytes, want 32", s, len(decoded))
	}
	return nil
}

// OnCurve reports whether the address decodes to a canonical ed25519
// point. Informational only: an off-curve mint is still tradable.
func OnCurve(s string) bool {
	decoded, err := base58.Decode(s)
	if err != nil || len(decoded) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}
