// Package lop binds the node to the on-chain limit order protocol: canonical
// order struct encoding, EIP-712 order hashing and typed-data payloads for
// wallet signing, and fill calldata with embedded interactions.
package lop

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// RouterAddress is the limit order protocol entry point (same on all
// supported chains).
var RouterAddress = common.HexToAddress("0x111111125421cA6dc452d289314280a0f8842A65")

const (
	domainName    = "1inch Aggregation Router"
	domainVersion = "6"
)

// Order is the v4 limit order struct as the router hashes and fills it.
type Order struct {
	Salt         *big.Int
	Maker        common.Address
	Receiver     common.Address
	MakerAsset   common.Address
	TakerAsset   common.Address
	MakingAmount *big.Int
	TakingAmount *big.Int
	MakerTraits  *big.Int
}

// maker traits bit layout (low 200 bits are allowed-sender/expiration/nonce).
const (
	makerTraitsExpirationShift = 80  // 40-bit unix timestamp
	makerTraitsNonceShift      = 120 // 40-bit nonce
)

// BuildMakerTraits packs an expiration timestamp and nonce into the maker
// traits word. Zero expiration means the order never expires.
func BuildMakerTraits(expiration int64, nonce uint64) *big.Int {
	traits := new(big.Int)
	if expiration > 0 {
		e := new(big.Int).Lsh(big.NewInt(expiration), makerTraitsExpirationShift)
		traits.Or(traits, e)
	}
	n := new(big.Int).Lsh(new(big.Int).SetUint64(nonce&((1<<40)-1)), makerTraitsNonceShift)
	traits.Or(traits, n)
	return traits
}

// Expiration extracts the expiration timestamp from maker traits; zero means
// no expiry.
func (o *Order) Expiration() int64 {
	e := new(big.Int).Rsh(o.MakerTraits, makerTraitsExpirationShift)
	e.And(e, big.NewInt((1<<40)-1))
	return e.Int64()
}

// NewSalt draws a random 96-bit order salt.
func NewSalt() (*big.Int, error) {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	return new(big.Int).SetBytes(b[:]), nil
}

var orderTypes = []apitypes.Type{
	{Name: "salt", Type: "uint256"},
	{Name: "maker", Type: "address"},
	{Name: "receiver", Type: "address"},
	{Name: "makerAsset", Type: "address"},
	{Name: "takerAsset", Type: "address"},
	{Name: "makingAmount", Type: "uint256"},
	{Name: "takingAmount", Type: "uint256"},
	{Name: "makerTraits", Type: "uint256"},
}

// TypedData returns the EIP-712 payload a wallet signs for this order.
func (o *Order) TypedData(chainID int64) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": orderTypes,
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              domainName,
			Version:           domainVersion,
			ChainId:           (*math.HexOrDecimal256)(big.NewInt(chainID)),
			VerifyingContract: RouterAddress.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"salt":         o.Salt.String(),
			"maker":        o.Maker.Hex(),
			"receiver":     o.Receiver.Hex(),
			"makerAsset":   o.MakerAsset.Hex(),
			"takerAsset":   o.TakerAsset.Hex(),
			"makingAmount": o.MakingAmount.String(),
			"takingAmount": o.TakingAmount.String(),
			"makerTraits":  o.MakerTraits.String(),
		},
	}
}

// Hash computes the EIP-712 order hash the router uses to identify the order.
func (o *Order) Hash(chainID int64) (common.Hash, error) {
	td := o.TypedData(chainID)

	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash domain: %w", err)
	}
	structHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash order struct: %w", err)
	}

	raw := make([]byte, 0, 2+len(domainSeparator)+len(structHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, structHash...)
	return crypto.Keccak256Hash(raw), nil
}
