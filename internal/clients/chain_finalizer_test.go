package clients

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/config"
	"github.com/FishIT-Mantle/fishit-sub000/internal/logging"
	"github.com/FishIT-Mantle/fishit-sub000/internal/types"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func newTestFinalizer(t *testing.T, backend *fakeBackend) *EthChainFinalizer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	f, err := NewEthChainFinalizer(backend, config.ChainConfig{
		ChainID:                    5000,
		ContractAddress:            testContract,
		PrivateKey:                 "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
		GasMultiplier:              1.5,
		Confirmations:              2,
		ConfirmationTimeoutSeconds: 5,
	}, logging.Discard())
	require.NoError(t, err)
	f.SetPollInterval(10 * time.Millisecond)
	return f
}

func TestClassifyFinalizeError(t *testing.T) {
	cases := []struct {
		msg  string
		want types.FinalizeErrorKind
	}{
		{"execution reverted: URI already set", types.FinalizeAlreadyDone},
		{"execution reverted: ERC721: invalid token ID", types.FinalizeAlreadyDone},
		{"execution reverted: nonexistent token", types.FinalizeAlreadyDone},
		{"nonce too low: next nonce 8, tx nonce 7", types.FinalizeSequencingConflict},
		{"replacement transaction underpriced", types.FinalizeSequencingConflict},
		{"already known", types.FinalizeSequencingConflict},
		{"insufficient funds for gas * price + value", types.FinalizeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyFinalizeError(errors.New(tc.msg)))
		})
	}

	assert.Equal(t, types.FinalizeErrorKind(""), ClassifyFinalizeError(nil))

	wrapped := fmt.Errorf("outer: %w", &types.ChainFinalizeError{Kind: types.FinalizeSequencingConflict, Err: errors.New("x")})
	assert.Equal(t, types.FinalizeSequencingConflict, ClassifyFinalizeError(wrapped))
}

func TestNewEthChainFinalizerRejectsBadConfig(t *testing.T) {
	_, err := NewEthChainFinalizer(newFakeBackend(), config.ChainConfig{ContractAddress: "nope"}, logging.Discard())
	assert.True(t, types.IsConfigurationError(err))

	_, err = NewEthChainFinalizer(newFakeBackend(), config.ChainConfig{ContractAddress: testContract, PrivateKey: "zz"}, logging.Discard())
	assert.True(t, types.IsConfigurationError(err))
}

func TestFinalizeSubmitsSignedSetTokenURI(t *testing.T) {
	backend := newFakeBackend()
	f := newTestFinalizer(t, backend)

	txHash, err := f.Finalize(context.Background(), 42, "ipfs://QmMetaCID")
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	tx := backend.sent[0]
	assert.Equal(t, tx.Hash().Hex(), txHash)
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(150_000), tx.Gas())
	assert.Equal(t, backend.gasPrice, tx.GasPrice())
	assert.Equal(t, common.HexToAddress(testContract), *tx.To())

	sender, err := ethtypes.Sender(ethtypes.NewEIP155Signer(big.NewInt(5000)), tx)
	require.NoError(t, err)
	assert.Equal(t, f.From(), sender)

	parsed, err := FishNFTABI()
	require.NoError(t, err)
	want, err := parsed.Pack(setTokenURIMethod, big.NewInt(42), "ipfs://QmMetaCID")
	require.NoError(t, err)
	assert.Equal(t, want, tx.Data())
	assert.Equal(t, want, backend.lastCall.Data)
}

func TestFinalizeEstimateRevertAlreadyDone(t *testing.T) {
	backend := newFakeBackend()
	backend.estimateErr = errors.New("execution reverted: URI already set")
	f := newTestFinalizer(t, backend)

	_, err := f.Finalize(context.Background(), 42, "ipfs://x")
	assert.True(t, types.IsAlreadyDone(err))
	assert.Empty(t, backend.sent)
}

func TestFinalizeNonceConflict(t *testing.T) {
	backend := newFakeBackend()
	backend.sendErr = errors.New("nonce too low")
	f := newTestFinalizer(t, backend)

	_, err := f.Finalize(context.Background(), 42, "ipfs://x")
	assert.True(t, types.IsSequencingConflict(err))
}

func TestFinalizeRevertedReceipt(t *testing.T) {
	backend := newFakeBackend()
	backend.receiptStatus = ethtypes.ReceiptStatusFailed
	f := newTestFinalizer(t, backend)

	_, err := f.Finalize(context.Background(), 42, "ipfs://x")
	var finErr *types.ChainFinalizeError
	require.ErrorAs(t, err, &finErr)
	assert.Equal(t, types.FinalizeUnknown, finErr.Kind)
	assert.Equal(t, backend.sent[0].Hash().Hex(), finErr.TxHash)
}

func TestFinalizeNonceReadFailureIsTransient(t *testing.T) {
	backend := newFakeBackend()
	backend.nonceErr = errRPCDown
	f := newTestFinalizer(t, backend)

	_, err := f.Finalize(context.Background(), 42, "ipfs://x")
	assert.True(t, types.IsTransient(err))
}

func TestFinalizeWaitsForConfirmationDepth(t *testing.T) {
	backend := newFakeBackend()
	backend.receiptBlock = 100
	backend.head = 100
	f := newTestFinalizer(t, backend)

	go func() {
		time.Sleep(50 * time.Millisecond)
		backend.mu.Lock()
		backend.head = 101
		backend.mu.Unlock()
	}()

	start := time.Now()
	_, err := f.Finalize(context.Background(), 42, "ipfs://x")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
