// Package wallet is the boundary to key custody and chain I/O. The matching
// core never touches private key material directly; it talks to the Wallet
// interface and the read-only balance oracle.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Instruction is a settlement instruction to submit on chain.
type Instruction struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Wallet signs typed data and submits instructions. Implementations may be
// local keys, hardware, or delegated custody; the core only sees this surface.
type Wallet interface {
	Address() common.Address
	ChainID() int64
	SignTypedData(payload apitypes.TypedData) ([]byte, error)
	SendInstruction(ctx context.Context, ins Instruction) (common.Hash, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// LocalWallet holds a secp256k1 key in process and talks to an EVM node over
// JSON-RPC. Suitable for dev and test networks.
type LocalWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID int64
	client  *ethclient.Client
}

// NewLocalWallet builds a wallet from a hex private key. An empty key
// generates an ephemeral one. client may be nil for offline use (signing
// only); chain calls then fail with ErrNoChainClient.
func NewLocalWallet(privateKeyHex string, chainID int64, client *ethclient.Client) (*LocalWallet, error) {
	var key *ecdsa.PrivateKey
	var err error
	if privateKeyHex == "" {
		key, err = crypto.GenerateKey()
	} else {
		key, err = crypto.HexToECDSA(privateKeyHex)
	}
	if err != nil {
		return nil, fmt.Errorf("wallet key: %w", err)
	}
	return &LocalWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		client:  client,
	}, nil
}

var ErrNoChainClient = errors.New("wallet has no chain client")

func (w *LocalWallet) Address() common.Address { return w.address }
func (w *LocalWallet) ChainID() int64          { return w.chainID }

// SignTypedData hashes an EIP-712 payload and signs the digest. Returns a
// 65-byte [R || S || V] signature with V in {27, 28}.
func (w *LocalWallet) SignTypedData(payload apitypes.TypedData) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(payload)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	sig, err := crypto.Sign(digest, w.key)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

func (w *LocalWallet) SendInstruction(ctx context.Context, ins Instruction) (common.Hash, error) {
	if w.client == nil {
		return common.Hash{}, ErrNoChainClient
	}

	nonce, err := w.client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}
	value := ins.Value
	if value == nil {
		value = big.NewInt(0)
	}
	gas, err := w.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    &ins.To,
		Value: value,
		Data:  ins.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, ins.To, value, gas, gasPrice, ins.Data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(w.chainID)), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := w.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}
	return signed.Hash(), nil
}

func (w *LocalWallet) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if w.client == nil {
		return nil, ErrNoChainClient
	}
	return w.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

var _ Wallet = (*LocalWallet)(nil)
