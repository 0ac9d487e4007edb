// Package collector implements transaction acquisition: a live Ethereum
// JSON-RPC collector and a synthetic generator for demos and tests. Both
// deliver finite batches shaped for the scoring pipeline.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/safescore/internal/domain"
)

// weiPerEth converts transfer values to whole-token amounts.
var weiPerEth = new(big.Float).SetFloat64(1e18)

// EthConfig holds the parameters for one collection pass over recent blocks.
type EthConfig struct {
	// RPCURLs are tried in order; the first endpoint that answers
	// eth_blockNumber is used for the pass.
	RPCURLs []string
	// BlocksBack bounds how many blocks behind the head are walked.
	BlocksBack int
	// MaxTxs caps the batch size.
	MaxTxs int
	// MinAmount drops transfers below this many ETH.
	MinAmount float64
	// Chain labels the produced records.
	Chain string
}

// EthCollector reads value transfers from the most recent blocks of an
// Ethereum endpoint. Each Collect call dials fresh, so a dead endpoint in one
// tick does not poison the next.
type EthCollector struct {
	cfg    EthConfig
	logger *slog.Logger
}

// NewEthCollector creates an EthCollector.
func NewEthCollector(cfg EthConfig, logger *slog.Logger) *EthCollector {
	if cfg.BlocksBack <= 0 {
		cfg.BlocksBack = 20
	}
	if cfg.MaxTxs <= 0 {
		cfg.MaxTxs = 50
	}
	if cfg.Chain == "" {
		cfg.Chain = "ETH"
	}
	return &EthCollector{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "eth_collector")),
	}
}

// Name implements domain.Collector.
func (c *EthCollector) Name() string { return "eth" }

// Collect walks up to BlocksBack recent blocks newest-first and converts their
// transactions into transfer records until MaxTxs is reached. Individual block
// fetch failures are logged and skipped; only a totally unreachable endpoint
// set is an error.
func (c *EthCollector) Collect(ctx context.Context) ([]domain.Transaction, error) {
	client, latest, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("collector: chain id: %w", err)
	}
	signer := types.LatestSignerForChainID(chainID)

	out := make([]domain.Transaction, 0, c.cfg.MaxTxs)
	for n := int64(latest); n > int64(latest)-int64(c.cfg.BlocksBack) && n >= 0; n-- {
		if len(out) >= c.cfg.MaxTxs {
			break
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		block, err := client.BlockByNumber(ctx, big.NewInt(n))
		if err != nil {
			c.logger.Warn("block fetch failed",
				slog.Int64("block", n),
				slog.String("error", err.Error()),
			)
			continue
		}

		ts := time.Unix(int64(block.Time()), 0).UTC().Format(time.RFC3339)
		for _, tx := range block.Transactions() {
			if len(out) >= c.cfg.MaxTxs {
				break
			}
			amount, _ := new(big.Float).Quo(new(big.Float).SetInt(tx.Value()), weiPerEth).Float64()
			if amount < c.cfg.MinAmount {
				continue
			}

			from, err := types.Sender(signer, tx)
			if err != nil {
				continue
			}
			to := ""
			if tx.To() != nil {
				to = strings.ToLower(tx.To().Hex())
			}
			method := "CALL"
			if amount > 0 {
				method = "TRANSFER"
			}

			out = append(out, domain.Transaction{
				ID:        tx.Hash().Hex(),
				Timestamp: ts,
				From:      strings.ToLower(from.Hex()),
				To:        to,
				Amount:    amount,
				Token:     "ETH",
				Method:    method,
				Chain:     c.cfg.Chain,
			})
		}
	}

	c.logger.Info("eth batch collected",
		slog.Uint64("head", latest),
		slog.Int("transactions", len(out)),
	)
	return out, nil
}

// dial returns a client for the first endpoint that answers, plus the current
// head block number.
func (c *EthCollector) dial(ctx context.Context) (*ethclient.Client, uint64, error) {
	var lastErr error
	for _, url := range c.cfg.RPCURLs {
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			lastErr = err
			continue
		}
		latest, err := client.BlockNumber(ctx)
		if err != nil {
			client.Close()
			lastErr = err
			continue
		}
		return client, latest, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no endpoints configured")
	}
	return nil, 0, fmt.Errorf("collector: no reachable eth endpoint: %w", lastErr)
}
