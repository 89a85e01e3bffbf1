package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/otcmesh/otcmesh/pkg/derivative"
	"github.com/otcmesh/otcmesh/pkg/p2p"
	"github.com/otcmesh/otcmesh/pkg/trade"
	"github.com/otcmesh/otcmesh/pkg/wallet"
)

func main() {
	var (
		instrument = flag.String("instrument", "ETH-28FEB25-4000-C", "instrument name ASSET-DMMMYY-STRIKE-{C|P}")
		quantity   = flag.String("quantity", "1", "contract quantity (decimal)")
		price      = flag.String("price", "0.05", "premium per contract (decimal)")
		side       = flag.String("side", "buy", "buy or sell")
		chainID    = flag.Int64("chain", 42161, "EVM chain id")
		key        = flag.String("key", "", "hex private key (empty generates an ephemeral one)")
		ttl        = flag.Duration("ttl", 2*time.Minute, "order time to live")
	)
	flag.Parse()

	if *side != "buy" && *side != "sell" {
		fmt.Fprintf(os.Stderr, "side must be buy or sell, got %q\n", *side)
		os.Exit(1)
	}

	w, err := wallet.NewLocalWallet(*key, *chainID, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wallet: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Maker: %s\n\n", w.Address().Hex())

	d, err := derivative.Parse(*instrument)
	if err != nil {
		fmt.Fprintf(os.Stderr, "instrument: %v\n", err)
		os.Exit(1)
	}
	dh := d.Hash()
	long := derivative.PositionAddress(dh, derivative.Long)
	short := derivative.PositionAddress(dh, derivative.Short)

	fmt.Println("Derivative:")
	fmt.Printf("  Hash:           %s\n", common.Hash(dh).Hex())
	fmt.Printf("  Maturity:       %s\n", time.Unix(d.EndTime, 0).UTC().Format(time.RFC3339))
	fmt.Printf("  Strike:         %s\n", d.Strike().String())
	fmt.Printf("  Long position:  %s\n", long.Hex())
	fmt.Printf("  Short position: %s\n\n", short.Hex())

	res, err := trade.BuildOrder(d, long, short, trade.Quote{
		Quantity: *quantity,
		Price:    *price,
		Buy:      *side == "buy",
	}, w.Address(), time.Now().Add(*ttl))
	if err != nil {
		fmt.Fprintf(os.Stderr, "build order: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Order:")
	fmt.Printf("  Side:          %s\n", *side)
	fmt.Printf("  Making amount: %s\n", res.Order.MakingAmount.String())
	fmt.Printf("  Taking amount: %s\n", res.Order.TakingAmount.String())
	fmt.Printf("  Total premium: %s\n", res.TotalPremium.String())
	fmt.Printf("  Total margin:  %s\n", res.TotalMargin.String())
	fmt.Printf("  Required:      %s\n\n", res.Required.String())

	orderHash, err := res.Order.Hash(*chainID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "order hash: %v\n", err)
		os.Exit(1)
	}
	sig, err := w.SignTypedData(res.Order.TypedData(*chainID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		os.Exit(1)
	}

	so := &trade.SignedOrder{
		ChainID:        *chainID,
		Order:          res.Order,
		OrderHash:      orderHash,
		Signature:      sig,
		Derivative:     d,
		DerivativeHash: dh,
		LongPosition:   long,
		ShortPosition:  short,
	}

	if err := so.Verify(); err != nil {
		fmt.Fprintf(os.Stderr, "signature verification failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Order hash: %s\nSignature verified.\n\n", orderHash.Hex())

	// Print the exact bytes a node would gossip.
	encoded, err := p2p.EncodeOrder(so)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Signed order (wire JSON):")
	fmt.Println(string(encoded))
}
