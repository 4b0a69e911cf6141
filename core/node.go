package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"farmmarket/config"
	"farmmarket/core/events"
	"farmmarket/core/state"
	"farmmarket/crypto"
	"farmmarket/integrations/webhooks"
	"farmmarket/native/market"
	"farmmarket/observability"
	"farmmarket/observability/eventlog"
	"farmmarket/observability/metrics"
	"farmmarket/storage"
)

// Node is the central controller, wiring storage, the marketplace engine and
// its event sinks together.
type Node struct {
	db       storage.Database
	state    *state.Manager
	engine   *market.Engine
	journal  *eventlog.Journal
	webhooks *webhooks.Dispatcher
	sweeper  *market.Sweeper
	logger   *slog.Logger
}

// NewNode opens the configured backend and prepares the engine. cfg must
// already be validated.
func NewNode(cfg *config.Config, logger *slog.Logger) (*Node, error) {
	if cfg == nil {
		return nil, errors.New("core: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Node.Backend != "memory" {
		if err := os.MkdirAll(cfg.Node.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("core: create data dir: %w", err)
		}
	}
	db, err := storage.Open(cfg.Node.Backend, cfg.StoragePath())
	if err != nil {
		return nil, err
	}
	n := &Node{db: db, state: state.NewManager(db), logger: logger}
	if err := n.state.EnsureStateVersion(); err != nil {
		n.Close()
		return nil, err
	}

	n.journal, err = eventlog.Open(cfg.EventLog.DSN)
	if err != nil {
		n.Close()
		return nil, fmt.Errorf("core: open event journal: %w", err)
	}
	n.journal.SetLogger(logger.With("component", "eventlog"))

	emitters := events.Multi{observability.Events(), n.journal}
	if cfg.Webhook.URL != "" {
		n.webhooks, err = webhooks.NewDispatcher(cfg.Webhook.URL, []byte(cfg.WebhookSecret()),
			webhooks.WithLogger(logger.With("component", "webhooks")),
			webhooks.WithQueueSize(cfg.Webhook.QueueSize),
			webhooks.WithDrainTimeout(cfg.WebhookDrainTimeout()))
		if err != nil {
			n.Close()
			return nil, err
		}
		emitters = append(emitters, n.webhooks)
	}

	n.engine = market.NewEngine(n.state)
	n.engine.SetLogger(logger.With("component", "market"))
	n.engine.SetMetrics(metrics.Market())
	n.engine.SetEmitter(emitters)
	n.engine.SetSettings(market.Settings{LockOrderOnDispute: cfg.Market.LockOrderOnDispute})
	n.engine.SetMaxAttempts(cfg.Market.MaxCommitAttempts)

	if cfg.Node.Deployer != "" {
		deployer, err := crypto.ParseAddress(cfg.Node.Deployer)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("core: deployer: %w", err)
		}
		capability, err := n.engine.Init(deployer)
		switch {
		case err == nil:
			logger.Info("marketplace initialized", "capId", fmt.Sprintf("%x", capability.ID), "owner", cfg.Node.Deployer)
		case errors.Is(err, market.ErrAlreadyInitialized):
		default:
			n.Close()
			return nil, err
		}
	}

	if cfg.Market.KeeperAddress != "" {
		keeper, err := crypto.ParseAddress(cfg.Market.KeeperAddress)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("core: keeper: %w", err)
		}
		n.sweeper = market.NewSweeper(n.engine, keeper, cfg.SweepInterval())
	}
	return n, nil
}

func (n *Node) Engine() *market.Engine { return n.engine }

func (n *Node) Journal() *eventlog.Journal { return n.journal }

// Sweeper is nil when no keeper address is configured.
func (n *Node) Sweeper() *market.Sweeper { return n.sweeper }

// Run blocks until ctx is cancelled, sweeping expired orders when a keeper is
// configured.
func (n *Node) Run(ctx context.Context) {
	if n.sweeper == nil {
		<-ctx.Done()
		return
	}
	n.sweeper.Run(ctx)
}

// Close releases the node's resources. Queued webhook deliveries are drained
// first, bounded by the webhook drain timeout.
func (n *Node) Close() {
	if n == nil {
		return
	}
	if n.webhooks != nil {
		n.webhooks.Close()
	}
	if n.journal != nil {
		if err := n.journal.Close(); err != nil {
			n.logger.Warn("close event journal", "error", err)
		}
	}
	if n.db != nil {
		n.db.Close()
	}
}
