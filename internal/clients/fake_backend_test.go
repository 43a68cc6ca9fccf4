package clients

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// fakeBackend in-memory ChainBackend
type fakeBackend struct {
	mu sync.Mutex

	head     uint64
	headErr  error
	nonce    uint64
	nonceErr error
	gasPrice *big.Int

	estimate    uint64
	estimateErr error
	sendErr     error

	receiptStatus uint64
	receiptBlock  uint64

	logs       []ethtypes.Log
	logsErr    error
	lastQuery  ethereum.FilterQuery
	lastCall   ethereum.CallMsg
	sent       []*ethtypes.Transaction
	chainID    *big.Int
	nonceCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		head:          100,
		nonce:         7,
		gasPrice:      big.NewInt(20_000_000),
		estimate:      100_000,
		receiptStatus: ethtypes.ReceiptStatusSuccessful,
		receiptBlock:  99,
		chainID:       big.NewInt(5000),
	}
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() == txHash {
			return &ethtypes.Receipt{
				Status:      f.receiptStatus,
				TxHash:      txHash,
				BlockNumber: new(big.Int).SetUint64(f.receiptBlock),
				GasUsed:     f.estimate,
			}, nil
		}
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, f.headErr
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	return f.logs, nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCalls++
	return f.nonce, f.nonceErr
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCall = msg
	return f.estimate, f.estimateErr
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

var errRPCDown = errors.New("connection refused")
