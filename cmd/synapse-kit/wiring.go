package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/fil-demos/synapse-kit/internal/blockchain"
	"github.com/fil-demos/synapse-kit/internal/config"
	"github.com/fil-demos/synapse-kit/internal/providers"
	"github.com/fil-demos/synapse-kit/internal/quota"
	"github.com/fil-demos/synapse-kit/internal/repository"
	"github.com/fil-demos/synapse-kit/internal/synapse"
	"github.com/fil-demos/synapse-kit/pkg/logger"
)

// openLedger opens the quota ledger database. The returned closer must be called.
func openLedger(cfg *config.Config, log *logger.Logger) (*quota.Ledger, func(), error) {
	if err := cfg.ValidateLedger(); err != nil {
		return nil, nil, cli.Exit(err.Error(), 1)
	}
	db, err := repository.NewLedgerDB(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open quota ledger: %w", err)
	}
	closer := func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close quota ledger", "error", err)
		}
	}
	return quota.NewLedger(db, log), closer, nil
}

// chain is a connected node plus the payments client of one wallet.
type chain struct {
	node     *blockchain.Node
	key      *blockchain.Key
	payments *blockchain.Payments
}

func (c *chain) Close() {
	_ = c.node.Close()
}

// connectChain connects to the RPC endpoint and binds the payments contract to the
// wallet of privateKey. keyEnv names the variable the key came from, for the hint.
func connectChain(ctx context.Context, cfg *config.Config, log *logger.Logger, privateKey, keyEnv string) (*chain, error) {
	if err := cfg.ValidateChain(); err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	if privateKey == "" {
		return nil, cli.Exit(fmt.Sprintf("%s is required: export the wallet's private key first", keyEnv), 1)
	}
	key, err := blockchain.NewKey(privateKey)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("invalid %s: %v", keyEnv, err), 1)
	}

	node := blockchain.NewNode(cfg.RPCURL, nil, log)
	if err := node.Connect(ctx); err != nil {
		return nil, err
	}
	return &chain{
		node:     node,
		key:      key,
		payments: blockchain.NewPayments(node, key, cfg.PaymentsAddress, cfg.USDFCAddress),
	}, nil
}

// openCatalog returns the health catalog of the configured providers. Stop must be called.
func openCatalog(cfg *config.Config, log *logger.Logger) (*providers.Catalog, error) {
	if err := cfg.ValidateStorage(); err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	return providers.NewCatalog(log, cfg.ProviderURLs), nil
}

// openStorage selects the first healthy configured provider. key and chainID are only
// needed to create data sets and may be zero values otherwise.
func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger, key *blockchain.Key, chainID uint64) (*synapse.Storage, error) {
	catalog, err := openCatalog(cfg, log)
	if err != nil {
		return nil, err
	}
	defer catalog.Stop()

	pdp, err := catalog.Select(ctx)
	if err != nil {
		return nil, err
	}
	log = log.With("provider", pdp.BaseURL())
	log.Info("Using storage provider")

	return synapse.NewStorage(pdp, storageOptions(cfg, key, chainID), log), nil
}

func storageOptions(cfg *config.Config, key *blockchain.Key, chainID uint64) synapse.StorageOptions {
	return synapse.StorageOptions{
		Key:             key,
		ChainID:         chainID,
		WarmStorage:     cfg.WarmStorageAddress,
		Payee:           cfg.ProviderPayee,
		VerifyDownloads: true,
	}
}

// checkPaymentsReady is the guard run before paid storage operations: the payment
// account must hold funds and the storage operator must be approved.
func checkPaymentsReady(ctx context.Context, ch *chain, operator string) error {
	available, err := ch.payments.Balance(ctx)
	if err != nil {
		return fmt.Errorf("failed to read payment account: %w", err)
	}
	if available.Sign() <= 0 {
		return cli.Exit(fmt.Sprintf("payment account of %s has no available funds: run `synapse-kit payments setup` to deposit USDFC", ch.key.Address()), 1)
	}

	approval, err := ch.payments.ServiceApproval(ctx, operator)
	if err != nil {
		return fmt.Errorf("failed to read operator approval: %w", err)
	}
	if !approval.IsApproved {
		return cli.Exit(fmt.Sprintf("storage operator %s is not approved for %s: run `synapse-kit payments setup`", operator, ch.key.Address()), 1)
	}
	return nil
}
