package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Network struct {
	ListenAddr string   // libp2p multiaddr to listen on
	Bootstrap  []string // bootstrap peer multiaddrs
	Topic      string   // gossipsub topic carrying orders
	QueueSize  int      // inbound remote-order queue capacity
}

type Chain struct {
	RPCURL     string // EVM JSON-RPC endpoint
	ChainID    int64
	PrivateKey string // hex-encoded maker key; empty generates an ephemeral one
}

type Node struct {
	APIAddr     string
	DataDir     string // pebble order store location
	LogFile     string
	OrderTTL    time.Duration // maker order expiration window
	ArbScanTick time.Duration // period of the crossed-book arbitrage scan
}

type Config struct {
	Network Network
	Chain   Chain
	Node    Node
}

func Default() Config {
	return Config{
		Network: Network{
			ListenAddr: "/ip4/0.0.0.0/tcp/0",
			Bootstrap:  nil,
			Topic:      "orderbook",
			QueueSize:  256,
		},
		Chain: Chain{
			RPCURL:  "http://localhost:8545",
			ChainID: 42161, // Arbitrum One
		},
		Node: Node{
			APIAddr:     ":8080",
			DataDir:     "data/orders",
			LogFile:     "data/node.log",
			OrderTTL:    2 * time.Minute,
			ArbScanTick: 5 * time.Second,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("LISTEN"); v != "" {
		cfg.Network.ListenAddr = v
	}
	if v := os.Getenv("BOOTSTRAP"); v != "" {
		cfg.Network.Bootstrap = strings.Split(v, ",")
	}
	if v := os.Getenv("TOPIC"); v != "" {
		cfg.Network.Topic = v
	}
	if v := os.Getenv("QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Network.QueueSize = n
		}
	}

	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.Chain.RPCURL = v
	}
	if v := os.Getenv("CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Chain.ChainID = id
		}
	}
	if v := os.Getenv("PRIVATE_KEY"); v != "" {
		cfg.Chain.PrivateKey = v
	}

	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("ORDER_TTL_S"); v != "" {
		if s, err := strconv.Atoi(v); err == nil && s > 0 {
			cfg.Node.OrderTTL = time.Duration(s) * time.Second
		}
	}
	if v := os.Getenv("ARB_SCAN_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Node.ArbScanTick = time.Duration(ms) * time.Millisecond
		}
	}

	return cfg
}
