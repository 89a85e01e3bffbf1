package p2p

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/otcmesh/otcmesh/pkg/trade"
)

// Wire format for gossiped orders. Large integers travel as base-10 strings
// tagged by field name so every receiver reconstructs exact fixed-point
// values; JSON numbers would round them.

type orderStructWire struct {
	Salt         string `json:"salt"`
	Maker        string `json:"maker"`
	Receiver     string `json:"receiver"`
	MakerAsset   string `json:"makerAsset"`
	TakerAsset   string `json:"takerAsset"`
	MakingAmount string `json:"makingAmount"`
	TakingAmount string `json:"takingAmount"`
	MakerTraits  string `json:"makerTraits"`
}

type derivativeWire struct {
	Margin      string   `json:"margin"`
	EndTime     int64    `json:"endTime"`
	Params      []string `json:"params"`
	OracleID    string   `json:"oracleId"`
	Token       string   `json:"token"`
	SyntheticID string   `json:"syntheticId"`
}

type orderWire struct {
	ChainID        int64           `json:"chainId"`
	Order          orderStructWire `json:"order"`
	OrderHash      string          `json:"orderHash"`
	Signature      string          `json:"signature"`
	Derivative     derivativeWire  `json:"derivative"`
	DerivativeHash string          `json:"derivativeHash"`
	LongPosition   string          `json:"longPositionAddress"`
	ShortPosition  string          `json:"shortPositionAddress"`
}

// EncodeOrder serializes a signed order for the gossip topic.
func EncodeOrder(so *trade.SignedOrder) ([]byte, error) {
	params := make([]string, len(so.Derivative.Params))
	for i, p := range so.Derivative.Params {
		params[i] = p.String()
	}
	w := orderWire{
		ChainID: so.ChainID,
		Order: orderStructWire{
			Salt:         so.Order.Salt.String(),
			Maker:        so.Order.Maker.Hex(),
			Receiver:     so.Order.Receiver.Hex(),
			MakerAsset:   so.Order.MakerAsset.Hex(),
			TakerAsset:   so.Order.TakerAsset.Hex(),
			MakingAmount: so.Order.MakingAmount.String(),
			TakingAmount: so.Order.TakingAmount.String(),
			MakerTraits:  so.Order.MakerTraits.String(),
		},
		OrderHash: so.OrderHash.Hex(),
		Signature: hexutil.Encode(so.Signature),
		Derivative: derivativeWire{
			Margin:      so.Derivative.Margin.String(),
			EndTime:     so.Derivative.EndTime,
			Params:      params,
			OracleID:    so.Derivative.OracleID.Hex(),
			Token:       so.Derivative.Token.Hex(),
			SyntheticID: so.Derivative.SyntheticID.Hex(),
		},
		DerivativeHash: hexutil.Encode(so.DerivativeHash[:]),
		LongPosition:   so.LongPosition.Hex(),
		ShortPosition:  so.ShortPosition.Hex(),
	}
	return json.Marshal(w)
}

// DecodeOrder reconstructs a signed order from its wire form.
func DecodeOrder(data []byte) (*trade.SignedOrder, error) {
	var w orderWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode order wire: %w", err)
	}

	salt, err := parseBig(w.Order.Salt, "salt")
	if err != nil {
		return nil, err
	}
	making, err := parseBig(w.Order.MakingAmount, "makingAmount")
	if err != nil {
		return nil, err
	}
	taking, err := parseBig(w.Order.TakingAmount, "takingAmount")
	if err != nil {
		return nil, err
	}
	traits, err := parseBig(w.Order.MakerTraits, "makerTraits")
	if err != nil {
		return nil, err
	}
	margin, err := parseBig(w.Derivative.Margin, "margin")
	if err != nil {
		return nil, err
	}
	// The derivative record always carries [strike, collateralization,
	// fixed premium]; anything else is a malformed envelope.
	if len(w.Derivative.Params) != 3 {
		return nil, fmt.Errorf("derivative must carry 3 params, got %d", len(w.Derivative.Params))
	}
	params := make([]*big.Int, len(w.Derivative.Params))
	for i, s := range w.Derivative.Params {
		if params[i], err = parseBig(s, "params"); err != nil {
			return nil, err
		}
	}
	sig, err := hexutil.Decode(w.Signature)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	dhBytes, err := hexutil.Decode(w.DerivativeHash)
	if err != nil || len(dhBytes) != 32 {
		return nil, fmt.Errorf("decode derivative hash %q", w.DerivativeHash)
	}

	so := &trade.SignedOrder{
		ChainID:   w.ChainID,
		OrderHash: common.HexToHash(w.OrderHash),
		Signature: sig,
	}
	so.Order.Salt = salt
	so.Order.Maker = common.HexToAddress(w.Order.Maker)
	so.Order.Receiver = common.HexToAddress(w.Order.Receiver)
	so.Order.MakerAsset = common.HexToAddress(w.Order.MakerAsset)
	so.Order.TakerAsset = common.HexToAddress(w.Order.TakerAsset)
	so.Order.MakingAmount = making
	so.Order.TakingAmount = taking
	so.Order.MakerTraits = traits
	so.Derivative.Margin = margin
	so.Derivative.EndTime = w.Derivative.EndTime
	so.Derivative.Params = params
	so.Derivative.OracleID = common.HexToAddress(w.Derivative.OracleID)
	so.Derivative.Token = common.HexToAddress(w.Derivative.Token)
	so.Derivative.SyntheticID = common.HexToAddress(w.Derivative.SyntheticID)
	copy(so.DerivativeHash[:], dhBytes)
	so.LongPosition = common.HexToAddress(w.LongPosition)
	so.ShortPosition = common.HexToAddress(w.ShortPosition)
	return so, nil
}

func parseBig(s, field string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("field %s: %q is not a base-10 integer", field, s)
	}
	return v, nil
}
