package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/otcmesh/otcmesh/params"
	"github.com/otcmesh/otcmesh/pkg/api"
	"github.com/otcmesh/otcmesh/pkg/book"
	"github.com/otcmesh/otcmesh/pkg/engine"
	"github.com/otcmesh/otcmesh/pkg/p2p"
	"github.com/otcmesh/otcmesh/pkg/storage"
	"github.com/otcmesh/otcmesh/pkg/util"
	"github.com/otcmesh/otcmesh/pkg/wallet"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Chain client & wallet ----
	// The node still runs without an RPC endpoint: orders build, match and
	// propagate; settlement submission fails until one is configured.
	var client *ethclient.Client
	if cfg.Chain.RPCURL != "" {
		client, err = ethclient.DialContext(ctx, cfg.Chain.RPCURL)
		if err != nil {
			sugar.Warnw("rpc_dial_failed", "url", cfg.Chain.RPCURL, "err", err)
			client = nil
		}
	}
	w, err := wallet.NewLocalWallet(cfg.Chain.PrivateKey, cfg.Chain.ChainID, client)
	if err != nil {
		sugar.Fatalw("wallet_init_failed", "err", err)
	}
	sugar.Infow("wallet_ready", "address", w.Address().Hex(), "chain_id", cfg.Chain.ChainID)

	var oracle wallet.BalanceOracle
	if client != nil {
		oracle = wallet.ERC20Reader{Caller: w}
	}

	// ---- Order store & book ----
	store, err := storage.NewOrderStore(cfg.Node.DataDir)
	if err != nil {
		sugar.Fatalw("order_store_open_failed", "dir", cfg.Node.DataDir, "err", err)
	}
	defer store.Close()

	b := book.New(util.RealClock{}, sugar)

	// ---- P2P order network ----
	net, err := p2p.NewOrderNet(ctx, p2p.Config{
		ListenAddr: cfg.Network.ListenAddr,
		Bootstrap:  cfg.Network.Bootstrap,
		Topic:      cfg.Network.Topic,
		QueueSize:  cfg.Network.QueueSize,
		Logger:     sugar,
	})
	if err != nil {
		sugar.Fatalw("ordernet_init_failed", "err", err)
	}
	defer net.Close()

	// ---- Matching engine ----
	eng := engine.New(w, oracle, b, net, store, util.RealClock{}, sugar, engine.Config{
		OrderTTL: cfg.Node.OrderTTL,
	})
	if err := eng.Rehydrate(); err != nil {
		sugar.Fatalw("rehydrate_failed", "err", err)
	}

	// ---- API server ----
	apiServer := api.NewServer(eng, sugar)
	go func() {
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("node_started",
		"peer", net.Host().ID().String(),
		"api", cfg.Node.APIAddr,
		"topic", cfg.Network.Topic)

	// Run loop: consume remote orders and sweep the book. Blocks until
	// interrupted.
	eng.Run(ctx, net.Inbound(), cfg.Node.ArbScanTick)
}
