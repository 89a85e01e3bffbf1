package trade

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/otcmesh/otcmesh/pkg/derivative"
)

// Verify checks a remotely received order before it enters the book. The
// whole envelope is untrusted: the derivative must re-hash to the claimed
// derivative hash and the position addresses must re-derive from it, the
// order hash must match the struct's recomputed EIP-712 hash, and the
// signature must recover the claimed maker.
func (so *SignedOrder) Verify() error {
	if len(so.Derivative.Params) != 3 {
		return fmt.Errorf("derivative must carry 3 params, got %d", len(so.Derivative.Params))
	}
	if got := so.Derivative.Hash(); got != so.DerivativeHash {
		return fmt.Errorf("derivative hash mismatch: claimed %x, computed %x", so.DerivativeHash, got)
	}
	if long := derivative.PositionAddress(so.DerivativeHash, derivative.Long); long != so.LongPosition {
		return fmt.Errorf("long position mismatch: claimed %s, derived %s", so.LongPosition.Hex(), long.Hex())
	}
	if short := derivative.PositionAddress(so.DerivativeHash, derivative.Short); short != so.ShortPosition {
		return fmt.Errorf("short position mismatch: claimed %s, derived %s", so.ShortPosition.Hex(), short.Hex())
	}

	want, err := so.Order.Hash(so.ChainID)
	if err != nil {
		return fmt.Errorf("recompute order hash: %w", err)
	}
	if want != so.OrderHash {
		return fmt.Errorf("order hash mismatch: claimed %s, computed %s", so.OrderHash.Hex(), want.Hex())
	}

	if len(so.Signature) != 65 {
		return fmt.Errorf("signature must be 65 bytes, got %d", len(so.Signature))
	}
	sig := make([]byte, 65)
	copy(sig, so.Signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.Ecrecover(so.OrderHash.Bytes(), sig)
	if err != nil {
		return fmt.Errorf("recover signer: %w", err)
	}
	signer := crypto.Keccak256(pub[1:])[12:]
	if !bytes.Equal(signer, so.Order.Maker.Bytes()) {
		return fmt.Errorf("signature recovers %x, order claims maker %s", signer, so.Order.Maker.Hex())
	}
	return nil
}
