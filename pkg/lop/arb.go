package lop

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultArbitrageContract is the settlement helper that executes two nested
// fills atomically: it fills the outer order and, through the fill's
// interaction callback, the inner one — both legs settle or the whole
// transaction reverts.
var DefaultArbitrageContract = common.HexToAddress("0x657c8DBC3dC8D0C3d8cE06fC499D0d4ec8Ff934a")

const arbitrageABIJSON = `[
  {"type":"function","name":"create","inputs":[{"name":"data","type":"bytes"}],"outputs":[]}
]`

var arbitrageABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(arbitrageABIJSON))
	if err != nil {
		panic(fmt.Errorf("parse arbitrage abi: %w", err))
	}
	arbitrageABI = parsed
}

// ArbitrageCreateCalldata wraps a fill calldata bundle into the helper's
// create(bytes) entry point.
func ArbitrageCreateCalldata(fillCalldata []byte) ([]byte, error) {
	data, err := arbitrageABI.Pack("create", fillCalldata)
	if err != nil {
		return nil, fmt.Errorf("pack create: %w", err)
	}
	return data, nil
}
