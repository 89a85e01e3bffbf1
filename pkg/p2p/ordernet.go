// Package p2p replicates signed orders across nodes over libp2p gossipsub.
// There is no coordinator: the order book is an eventually consistent
// replicated set, and duplicate delivery is handled by the book itself.
package p2p

import (
	"context"
	"fmt"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/otcmesh/otcmesh/pkg/trade"
)

const DefaultTopic = "orderbook"

type Config struct {
	ListenAddr string
	Bootstrap  []string
	Topic      string
	QueueSize  int
	Logger     *zap.SugaredLogger
}

type OrderNet struct {
	h     host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription
	log   *zap.SugaredLogger

	// Bounded: a slow consumer drops messages instead of stalling the
	// subscription reader. Gossip redelivers through other peers.
	inbound chan *trade.SignedOrder
}

func NewOrderNet(ctx context.Context, cfg Config) (*OrderNet, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("listen addr: %w", err)
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}

	topicName := cfg.Topic
	if topicName == "" {
		topicName = DefaultTopic
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	n := &OrderNet{
		h:       h,
		ps:      ps,
		log:     cfg.Logger,
		inbound: make(chan *trade.SignedOrder, queueSize),
	}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	if n.topic, err = ps.Join(topicName); err != nil {
		return nil, fmt.Errorf("join topic %s: %w", topicName, err)
	}
	if n.sub, err = n.topic.Subscribe(); err != nil {
		return nil, fmt.Errorf("subscribe topic %s: %w", topicName, err)
	}

	go n.readLoop(ctx)

	if cfg.Logger != nil {
		cfg.Logger.Infow("ordernet_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr, "topic", topicName)
	}
	return n, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

func (n *OrderNet) Host() host.Host { return n.h }

// Inbound delivers remotely received orders. Consumed by the engine's
// single-writer loop.
func (n *OrderNet) Inbound() <-chan *trade.SignedOrder { return n.inbound }

// Publish broadcasts a locally created order. Having no subscribed peers yet
// is not an error: the order stays in the local book and later peers learn of
// it through gossip of newer orders or re-publication.
func (n *OrderNet) Publish(ctx context.Context, so *trade.SignedOrder) error {
	data, err := EncodeOrder(so)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	if len(n.topic.ListPeers()) == 0 && n.log != nil {
		n.log.Warnw("no_subscribed_peers", "hash", so.OrderHash.Hex())
	}
	return n.topic.Publish(ctx, data)
}

func (n *OrderNet) readLoop(ctx context.Context) {
	for {
		msg, err := n.sub.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == n.h.ID() {
			continue // our own broadcast echoed back
		}
		so, err := DecodeOrder(msg.Data)
		if err != nil {
			if n.log != nil {
				n.log.Warnw("order_decode_failed", "from", msg.ReceivedFrom.String(), "err", err)
			}
			continue
		}
		select {
		case n.inbound <- so:
		default:
			if n.log != nil {
				n.log.Warnw("inbound_queue_full_dropping", "hash", so.OrderHash.Hex())
			}
		}
	}
}

func (n *OrderNet) Close() error {
	n.sub.Cancel()
	if err := n.topic.Close(); err != nil {
		return err
	}
	return n.h.Close()
}
