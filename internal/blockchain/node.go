package blockchain

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/filecoin-project/go-state-types/big"
	"golang.org/x/xerrors"

	"github.com/fil-demos/synapse-kit/pkg/logger"
)

// nodeAPI is the Ethereum compatible JSON-RPC surface of a Filecoin node.
type nodeAPI struct {
	Internal struct {
		EthChainId               func(ctx context.Context) (EthUint64, error)
		EthBlockNumber           func(ctx context.Context) (EthUint64, error)
		EthCall                  func(ctx context.Context, tx EthCall, blkParam string) (EthBytes, error)
		EthEstimateGas           func(ctx context.Context, tx EthCall) (EthUint64, error)
		EthGetBalance            func(ctx context.Context, address string, blkParam string) (EthBigInt, error)
		EthGetTransactionCount   func(ctx context.Context, sender string, blkParam string) (EthUint64, error)
		EthMaxPriorityFeePerGas  func(ctx context.Context) (EthBigInt, error)
		EthGasPrice              func(ctx context.Context) (EthBigInt, error)
		EthSendRawTransaction    func(ctx context.Context, rawTx EthBytes) (string, error)
		EthGetTransactionReceipt func(ctx context.Context, txHash string) (*EthTxReceipt, error)
	}
}

// Node is a client of a Lotus compatible RPC endpoint.
type Node struct {
	logger *logger.Logger
	apiURL string
	header http.Header

	mu     sync.RWMutex
	api    *nodeAPI
	closer jsonrpc.ClientCloser

	chainID      uint64
	pollInterval time.Duration
}

// NewNode creates a new Node instance. Call Connect before use.
func NewNode(apiURL string, header http.Header, logger *logger.Logger) *Node {
	return &Node{apiURL: apiURL, header: header, logger: logger, pollInterval: 5 * time.Second}
}

// Connect opens the RPC client and caches the chain id.
func (n *Node) Connect(ctx context.Context) error {
	var api nodeAPI
	closer, err := jsonrpc.NewClient(ctx, n.apiURL, "Filecoin", &api.Internal, n.header)
	if err != nil {
		return xerrors.Errorf("failed to connect to the RPC endpoint %s: %w", n.apiURL, err)
	}

	chainID, err := api.Internal.EthChainId(ctx)
	if err != nil {
		closer()
		return xerrors.Errorf("failed to get chain id: %w", err)
	}

	n.mu.Lock()
	n.api, n.closer, n.chainID = &api, closer, uint64(chainID)
	n.mu.Unlock()

	n.logger.Debug("Connected to chain", "url", n.apiURL, "chain_id", uint64(chainID))
	return nil
}

func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closer != nil {
		n.closer()
		n.closer = nil
	}
	return nil
}

func (n *Node) client() (*nodeAPI, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.api == nil {
		return nil, xerrors.New("not connected to the RPC endpoint")
	}
	return n.api, nil
}

func (n *Node) ChainID() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.chainID
}

// Call executes a read-only contract call against the latest state.
func (n *Node) Call(ctx context.Context, to string, data []byte) ([]byte, error) {
	api, err := n.client()
	if err != nil {
		return nil, err
	}
	out, err := api.Internal.EthCall(ctx, EthCall{To: to, Data: data}, BlockLatest)
	if err != nil {
		return nil, xerrors.Errorf("eth_call to %s failed: %w", to, err)
	}
	return out, nil
}

// Balance returns the native FIL balance of address in attoFIL.
func (n *Node) Balance(ctx context.Context, address string) (big.Int, error) {
	api, err := n.client()
	if err != nil {
		return big.Zero(), err
	}
	bal, err := api.Internal.EthGetBalance(ctx, address, BlockLatest)
	if err != nil {
		return big.Zero(), xerrors.Errorf("failed to get balance: %w", err)
	}
	return bal.Amount(), nil
}

// Head returns the current epoch.
func (n *Node) Head(ctx context.Context) (uint64, error) {
	api, err := n.client()
	if err != nil {
		return 0, err
	}
	h, err := api.Internal.EthBlockNumber(ctx)
	return uint64(h), err
}

// GetTransactionReceipt returns nil without error while the transaction is pending.
func (n *Node) GetTransactionReceipt(ctx context.Context, txHash string) (*EthTxReceipt, error) {
	api, err := n.client()
	if err != nil {
		return nil, err
	}
	receipt, err := api.Internal.EthGetTransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, xerrors.Errorf("failed to get transaction receipt: %w", err)
	}
	return receipt, nil
}

// WaitReceipt polls until the transaction is included or ctx ends.
func (n *Node) WaitReceipt(ctx context.Context, txHash string) (*EthTxReceipt, error) {
	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := n.GetTransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			if !receipt.Succeeded() {
				return receipt, xerrors.Errorf("transaction %s reverted", txHash)
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, xerrors.Errorf("waiting for transaction %s: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}
