package derivative

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// Side distinguishes the two position tokens minted for a derivative.
type Side int

const (
	Long Side = iota
	Short
)

func (s Side) Tag() string {
	if s == Short {
		return "S"
	}
	return "L"
}

func (s Side) String() string {
	if s == Short {
		return "SHORT"
	}
	return "LONG"
}

// Position token factory and the ERC20 implementation it clones. Every node
// must agree on these for derived addresses to line up.
var (
	positionFactory        = common.HexToAddress("0x328bC74ccA6578349B262D21563d5581DAA43a16")
	positionImplementation = common.HexToAddress("0x6E797659154AD0D6f199feaFA2E2086Ce0239Fbf")
)

// EIP-1167 minimal proxy bytecode split around the implementation address.
var (
	proxyPrefix = common.Hex2Bytes("3d602d80600a3d3981f3363d3d373d3d3d363d73")
	proxySuffix = common.Hex2Bytes("5af43d82803e903d91602b57fd5bf3")
)

// PositionAddress derives the deterministic address of the long or short
// position token for a derivative. salt = keccak256(derivativeHash || sideTag),
// address = CREATE2(factory, salt, keccak256(minimalProxyInitCode)). Pure:
// no chain call, reproducible bit-for-bit on every node.
func PositionAddress(derivativeHash [32]byte, side Side) common.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write(derivativeHash[:])
	h.Write([]byte(side.Tag()))
	var salt [32]byte
	copy(salt[:], h.Sum(nil))

	initCode := make([]byte, 0, len(proxyPrefix)+common.AddressLength+len(proxySuffix))
	initCode = append(initCode, proxyPrefix...)
	initCode = append(initCode, positionImplementation.Bytes()...)
	initCode = append(initCode, proxySuffix...)

	return crypto.CreateAddress2(positionFactory, salt, crypto.Keccak256(initCode))
}
