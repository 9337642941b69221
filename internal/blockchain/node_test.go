package blockchain

import (
	"context"
	"encoding/hex"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/filecoin-project/go-jsonrpc"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/stretchr/testify/require"

	"github.com/fil-demos/synapse-kit/pkg/logger"
)

// fakeNode answers Eth RPC calls. Contract reads are looked up by selector.
type fakeNode struct {
	mu       sync.Mutex
	calls    map[string][]byte
	sent     []EthBytes
	reverted bool
}

func newFakeNode() *fakeNode {
	return &fakeNode{calls: map[string][]byte{}}
}

func (f *fakeNode) onCall(signature string, result []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[hex.EncodeToString(Selector(signature))] = result
}

func (f *fakeNode) EthChainId(context.Context) (EthUint64, error) { return 314159, nil }

func (f *fakeNode) EthBlockNumber(context.Context) (EthUint64, error) { return 1000, nil }

func (f *fakeNode) EthCall(_ context.Context, tx EthCall, _ string) (EthBytes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(tx.Data) < 4 {
		return nil, jsonrpcError("empty call data")
	}
	out, ok := f.calls[hex.EncodeToString(tx.Data[:4])]
	if !ok {
		return nil, jsonrpcError("execution reverted")
	}
	return out, nil
}

func (f *fakeNode) EthEstimateGas(context.Context, EthCall) (EthUint64, error) { return 50000, nil }

func (f *fakeNode) EthGetBalance(context.Context, string, string) (EthBigInt, error) {
	return EthBigInt(big.NewInt(5)), nil
}

func (f *fakeNode) EthGetTransactionCount(context.Context, string, string) (EthUint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return EthUint64(len(f.sent)), nil
}

func (f *fakeNode) EthMaxPriorityFeePerGas(context.Context) (EthBigInt, error) {
	return EthBigInt(big.NewInt(100)), nil
}

func (f *fakeNode) EthGasPrice(context.Context) (EthBigInt, error) {
	return EthBigInt(big.NewInt(1000)), nil
}

func (f *fakeNode) EthSendRawTransaction(_ context.Context, raw EthBytes) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, raw)
	return EthBytes(Keccak256(raw)).String(), nil
}

func (f *fakeNode) EthGetTransactionReceipt(_ context.Context, hash string) (*EthTxReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := EthUint64(1)
	if f.reverted {
		status = 0
	}
	return &EthTxReceipt{TransactionHash: hash, BlockNumber: 1001, Status: status}, nil
}

func (f *fakeNode) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type jsonrpcError string

func (e jsonrpcError) Error() string { return string(e) }

func startFakeNode(t *testing.T, f *fakeNode) *Node {
	t.Helper()
	rpcServer := jsonrpc.NewServer()
	rpcServer.Register("Filecoin", f)
	srv := httptest.NewServer(rpcServer)
	t.Cleanup(srv.Close)

	n := NewNode("ws://"+srv.Listener.Addr().String(), nil, logger.NewNop())
	n.pollInterval = 10 * time.Millisecond
	// the websocket lives as long as the Connect context
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, n.Connect(ctx))
	t.Cleanup(func() { n.Close() })
	return n
}
