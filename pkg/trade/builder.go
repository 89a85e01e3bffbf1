package trade

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/otcmesh/otcmesh/pkg/derivative"
	"github.com/otcmesh/otcmesh/pkg/lop"
	"github.com/otcmesh/otcmesh/pkg/util"
	"github.com/otcmesh/otcmesh/pkg/wallet"
)

var (
	ErrInsufficientFunds     = errors.New("insufficient settlement-token balance")
	ErrInsufficientAllowance = errors.New("insufficient settlement-token allowance")
)

// BuildResult carries the unsigned order plus the amounts derived from the
// quote, so callers can log and preflight without re-deriving.
type BuildResult struct {
	Order        lop.Order
	TotalPremium *big.Int // token decimals
	TotalMargin  *big.Int // token decimals
	Required     *big.Int // maker balance needed at settlement
}

// BuildOrder computes exact maker/taker amounts for a quote and produces an
// unsigned order. Buyers pay the total premium for position tokens; sellers
// give position tokens for margin minus premium (margin is posted, premium
// collected). All math is integer fixed point; the quote's decimal strings
// are converted once here.
func BuildOrder(d derivative.Derivative, long, short common.Address, q Quote, maker common.Address, expiration time.Time) (BuildResult, error) {
	_, shortMargin := d.InitialMargin()

	dec, err := derivative.TokenDecimals(d.Token)
	if err != nil {
		return BuildResult{}, err
	}

	qty, err := parsePositive(q.Quantity, 18)
	if err != nil {
		return BuildResult{}, fmt.Errorf("quantity: %w", err)
	}
	price, err := parsePositive(q.Price, dec)
	if err != nil {
		return BuildResult{}, fmt.Errorf("price: %w", err)
	}

	totalMargin := mulWad(shortMargin, qty)
	totalPremium := mulWad(price, qty)

	salt, err := lop.NewSalt()
	if err != nil {
		return BuildResult{}, err
	}
	nonce, err := randNonce()
	if err != nil {
		return BuildResult{}, err
	}

	order := lop.Order{
		Salt:        salt,
		Maker:       maker,
		MakerTraits: lop.BuildMakerTraits(expiration.Unix(), nonce),
	}
	required := new(big.Int)

	if q.Buy {
		order.MakerAsset = d.Token
		order.TakerAsset = long
		order.MakingAmount = totalPremium
		order.TakingAmount = qty
		required.Set(totalPremium)
	} else {
		net := new(big.Int).Sub(totalMargin, totalPremium)
		if net.Sign() < 0 {
			return BuildResult{}, fmt.Errorf("quoted premium %s exceeds margin %s", totalPremium, totalMargin)
		}
		order.MakerAsset = short
		order.TakerAsset = d.Token
		order.MakingAmount = qty
		order.TakingAmount = net
		required.Set(totalMargin) // seller posts full margin to mint positions
	}

	return BuildResult{
		Order:        order,
		TotalPremium: totalPremium,
		TotalMargin:  totalMargin,
		Required:     required,
	}, nil
}

// Preflight verifies the maker can actually settle: enough token balance
// (with a single faucet top-up attempt on test networks) and enough allowance
// granted to the settlement router (with a single approve attempt). Neither
// path retries; failures surface as ErrInsufficientFunds /
// ErrInsufficientAllowance.
func Preflight(ctx context.Context, w wallet.Wallet, oracle wallet.BalanceOracle, token common.Address, required *big.Int, faucet common.Address) error {
	owner := w.Address()

	balance, err := oracle.BalanceOf(ctx, token, owner)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if balance.Cmp(required) < 0 {
		if faucet == (common.Address{}) {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, balance, required)
		}
		claim, err := wallet.ClaimInstruction(faucet)
		if err != nil {
			return err
		}
		if _, err := w.SendInstruction(ctx, claim); err != nil {
			return fmt.Errorf("%w: faucet claim failed: %v", ErrInsufficientFunds, err)
		}
		if balance, err = oracle.BalanceOf(ctx, token, owner); err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		if balance.Cmp(required) < 0 {
			return fmt.Errorf("%w: have %s after top-up, need %s", ErrInsufficientFunds, balance, required)
		}
	}

	allowance, err := oracle.AllowanceOf(ctx, token, owner, lop.RouterAddress)
	if err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}
	if allowance.Cmp(required) < 0 {
		approve, err := wallet.ApproveInstruction(token, lop.RouterAddress, wallet.MaxApproval)
		if err != nil {
			return err
		}
		if _, err := w.SendInstruction(ctx, approve); err != nil {
			return fmt.Errorf("%w: approve failed: %v", ErrInsufficientAllowance, err)
		}
		if allowance, err = oracle.AllowanceOf(ctx, token, owner, lop.RouterAddress); err != nil {
			return fmt.Errorf("read allowance: %w", err)
		}
		if allowance.Cmp(required) < 0 {
			return fmt.Errorf("%w: have %s after approve, need %s", ErrInsufficientAllowance, allowance, required)
		}
	}

	return nil
}

func parsePositive(s string, decimals uint8) (*big.Int, error) {
	v, err := util.ParseDecimal(s, decimals)
	if err != nil {
		return nil, err
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("value %q must be positive", s)
	}
	return v, nil
}

// mulWad multiplies two fixed-point numbers where b is 18-decimal, keeping
// a's scale: floor(a * b / 1e18).
func mulWad(a, b *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, derivative.Wad)
}

func randNonce() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("nonce: %w", err)
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
