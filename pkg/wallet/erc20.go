package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
  {"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"allowance","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const faucetABIJSON = `[
  {"type":"function","name":"claim","inputs":[],"outputs":[]}
]`

var (
	erc20ABI  abi.ABI
	faucetABI abi.ABI
)

func init() {
	var err error
	if erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON)); err != nil {
		panic(fmt.Errorf("parse erc20 abi: %w", err))
	}
	if faucetABI, err = abi.JSON(strings.NewReader(faucetABIJSON)); err != nil {
		panic(fmt.Errorf("parse faucet abi: %w", err))
	}
}

// BalanceOracle is the read-only view of token balances and allowances.
type BalanceOracle interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	AllowanceOf(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// ERC20Reader implements BalanceOracle over any Wallet's CallContract.
type ERC20Reader struct {
	Caller interface {
		CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	}
}

func (r ERC20Reader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	out, err := r.Caller.CallContract(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s: %w", token.Hex(), err)
	}
	return unpackUint256(erc20ABI, "balanceOf", out)
}

func (r ERC20Reader) AllowanceOf(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("pack allowance: %w", err)
	}
	out, err := r.Caller.CallContract(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("allowance %s: %w", token.Hex(), err)
	}
	return unpackUint256(erc20ABI, "allowance", out)
}

func unpackUint256(parsed abi.ABI, method string, out []byte) (*big.Int, error) {
	vals, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", method, vals[0])
	}
	return v, nil
}

var _ BalanceOracle = ERC20Reader{}

// ApproveInstruction builds an ERC20 approve(spender, amount) instruction.
func ApproveInstruction(token, spender common.Address, amount *big.Int) (Instruction, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return Instruction{}, fmt.Errorf("pack approve: %w", err)
	}
	return Instruction{To: token, Data: data}, nil
}

// ClaimInstruction builds a faucet claim() instruction (test networks only).
func ClaimInstruction(faucet common.Address) (Instruction, error) {
	data, err := faucetABI.Pack("claim")
	if err != nil {
		return Instruction{}, fmt.Errorf("pack claim: %w", err)
	}
	return Instruction{To: faucet, Data: data}, nil
}

// MaxApproval is the conventional unlimited allowance (2^256 - 1).
var MaxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
