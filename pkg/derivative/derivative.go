package derivative

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/otcmesh/otcmesh/pkg/util"
)

var (
	ErrInvalidInstrument = errors.New("invalid instrument name")
	ErrUnsupportedAsset  = errors.New("unsupported asset")
	ErrInvalidOptionType = errors.New("invalid option type")
)

// Wad is the fixed-point scale (18 decimals) used for quantities, margins and
// strike prices throughout the module.
var Wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Derivative is the canonical record of an options-like contract. Two
// instruments are the same contract iff their Hash() values are equal.
// Immutable after Parse.
type Derivative struct {
	Margin      *big.Int   // nominal margin per contract, 18 decimals
	EndTime     int64      // maturity, Unix seconds (08:00 UTC cutover)
	Params      []*big.Int // [strike, collateralization, fixed premium], 18 decimals
	OracleID    common.Address
	Token       common.Address // settlement token
	SyntheticID common.Address
}

// Encode packs the tuple (margin, endTime, params..., oracleId, token,
// syntheticId) the way the settlement contracts expect it. The encoding must
// stay stable across nodes and implementations.
func (d Derivative) Encode() []byte {
	var buf []byte
	buf = append(buf, common.LeftPadBytes(d.Margin.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(big.NewInt(d.EndTime).Bytes(), 32)...)
	for _, p := range d.Params {
		buf = append(buf, common.LeftPadBytes(p.Bytes(), 32)...)
	}
	buf = append(buf, d.OracleID.Bytes()...)
	buf = append(buf, d.Token.Bytes()...)
	buf = append(buf, d.SyntheticID.Bytes()...)
	return buf
}

// Hash computes the 32-byte content hash of the packed encoding. It keys the
// order book and deduplicates network messages.
func (d Derivative) Hash() [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(d.Encode()))
	return out
}

const (
	OptionCall = "C"
	OptionPut  = "P"
)

// Per-asset chain references (Arbitrum One).
var (
	tokenByAsset = map[string]common.Address{
		"ETH": common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"),
	}
	oracleByAsset = map[string]common.Address{
		"ETH": common.HexToAddress("0xAF5F031b8D5F12AD80d5E5f13C99249d82AfFfe2"),
	}
	syntheticByType = map[string]common.Address{
		OptionCall: common.HexToAddress("0x61EFdF8c52b49A347E69dEe7A62e0921A3545cF7"),
		OptionPut:  common.HexToAddress("0x6E797659154AD0D6f199feaFA2E2086Ce0239Fbf"),
	}
	decimalsByToken = map[common.Address]uint8{
		tokenByAsset["ETH"]: 18,
	}
)

// TokenDecimals reports the native decimal precision of a settlement token.
func TokenDecimals(token common.Address) (uint8, error) {
	dec, ok := decimalsByToken[token]
	if !ok {
		return 0, fmt.Errorf("%w: no decimals for token %s", ErrUnsupportedAsset, token.Hex())
	}
	return dec, nil
}

// Parse builds a Derivative from an instrument name of the form
// ASSET-DMMMYY-STRIKE-{C|P}, e.g. "ETH-28FEB25-4000-C". Maturity is
// normalized to 08:00 UTC of the named day; strike is scaled to 18 decimals.
func Parse(instrument string) (Derivative, error) {
	parts := strings.Split(instrument, "-")
	if len(parts) != 4 {
		return Derivative{}, fmt.Errorf("%w: %q", ErrInvalidInstrument, instrument)
	}
	for _, p := range parts {
		if p == "" {
			return Derivative{}, fmt.Errorf("%w: %q", ErrInvalidInstrument, instrument)
		}
	}
	asset, maturity, strike, optType := parts[0], parts[1], parts[2], parts[3]

	token, ok := tokenByAsset[asset]
	if !ok {
		return Derivative{}, fmt.Errorf("%w: %q", ErrUnsupportedAsset, asset)
	}
	synthetic, ok := syntheticByType[optType]
	if !ok {
		return Derivative{}, fmt.Errorf("%w: %q", ErrInvalidOptionType, optType)
	}

	endTime, err := parseMaturity(maturity)
	if err != nil {
		return Derivative{}, fmt.Errorf("%w: %v", ErrInvalidInstrument, err)
	}

	strikeWad, err := util.ParseDecimal(strike, 18)
	if err != nil || strikeWad.Sign() <= 0 {
		return Derivative{}, fmt.Errorf("%w: bad strike %q", ErrInvalidInstrument, strike)
	}

	return Derivative{
		Margin:  new(big.Int).Set(Wad), // 1.0 nominal
		EndTime: endTime,
		Params: []*big.Int{
			strikeWad,
			new(big.Int).Set(Wad), // 100% collateralization
			big.NewInt(0),         // no fixed premium
		},
		OracleID:    oracleByAsset[asset],
		Token:       token,
		SyntheticID: synthetic,
	}, nil
}

// parseMaturity interprets "28FEB25" as 2025-02-28 08:00:00 UTC.
func parseMaturity(s string) (int64, error) {
	if len(s) < 5 {
		return 0, fmt.Errorf("maturity %q too short", s)
	}
	// Go's reference layout wants "Feb", instrument names carry "FEB".
	monthStart := len(s) - 5
	norm := s[:monthStart] + strings.ToUpper(s[monthStart:monthStart+1]) + strings.ToLower(s[monthStart+1:len(s)-2]) + s[len(s)-2:]
	day, err := time.Parse("2Jan06", norm)
	if err != nil {
		return 0, fmt.Errorf("maturity %q: %w", s, err)
	}
	cut := time.Date(day.Year(), day.Month(), day.Day(), 8, 0, 0, 0, time.UTC)
	return cut.Unix(), nil
}

// InitialMargin returns the margin each side must post per unit, scaled to 18
// decimals. Long side posts nothing; short side posts nominal margin adjusted
// by the collateralization ratio.
func (d Derivative) InitialMargin() (long, short *big.Int) {
	long = big.NewInt(0)
	short = new(big.Int).Mul(d.Margin, d.Collateralization())
	short.Quo(short, Wad)
	return long, short
}

// Strike returns the strike price param, 18 decimals.
func (d Derivative) Strike() *big.Int { return d.Params[0] }

// Collateralization returns the collateralization ratio param, 18 decimals.
func (d Derivative) Collateralization() *big.Int { return d.Params[1] }
