package clients

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/config"
	"github.com/FishIT-Mantle/fishit-sub000/internal/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// token fragments are matched against lowercased RPC and revert messages
var (
	alreadyDoneTokens = []string{
		"uri already set",
		"already finalized",
		"invalid token",
		"nonexistent token",
	}
	sequencingConflictTokens = []string{
		"nonce too low",
		"nonce too high",
		"replacement transaction underpriced",
		"already known",
	}
)

// ClassifyFinalizeError maps a raw chain error to a finalize error kind
func ClassifyFinalizeError(err error) types.FinalizeErrorKind {
	if err == nil {
		return ""
	}
	if kind := types.FinalizeKind(err); kind != "" {
		return kind
	}
	msg := strings.ToLower(err.Error())
	for _, token := range alreadyDoneTokens {
		if strings.Contains(msg, token) {
			return types.FinalizeAlreadyDone
		}
	}
	for _, token := range sequencingConflictTokens {
		if strings.Contains(msg, token) {
			return types.FinalizeSequencingConflict
		}
	}
	return types.FinalizeUnknown
}

func finalizeError(err error, txHash string) error {
	return &types.ChainFinalizeError{Kind: ClassifyFinalizeError(err), TxHash: txHash, Err: err}
}

// EthChainFinalizer calls setTokenURI(tokenId, uri) and waits for confirmations
type EthChainFinalizer struct {
	backend  ChainBackend
	log      *logrus.Logger
	abi      abi.ABI
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int

	gasMultiplier       float64
	confirmations       uint64
	confirmationTimeout time.Duration
	pollInterval        time.Duration

	// nonce read and send are serialised so concurrent items do not race the same nonce
	sendMu sync.Mutex
}

// NewEthChainFinalizer builds the finalizer from chain config
func NewEthChainFinalizer(backend ChainBackend, cfg config.ChainConfig, log *logrus.Logger) (*EthChainFinalizer, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, &types.ConfigurationError{Field: "chain.contractAddress", Reason: "not a hex address"}
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
	if err != nil {
		return nil, &types.ConfigurationError{Field: "chain.privateKey", Reason: err.Error()}
	}
	parsed, err := FishNFTABI()
	if err != nil {
		return nil, err
	}

	confirmations := cfg.Confirmations
	if confirmations == 0 {
		confirmations = 1
	}
	multiplier := cfg.GasMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	timeout := cfg.ConfirmationTimeout()
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}

	return &EthChainFinalizer{
		backend:             backend,
		log:                 log,
		abi:                 parsed,
		contract:            common.HexToAddress(cfg.ContractAddress),
		key:                 key,
		from:                crypto.PubkeyToAddress(key.PublicKey),
		chainID:             big.NewInt(cfg.ChainID),
		gasMultiplier:       multiplier,
		confirmations:       confirmations,
		confirmationTimeout: timeout,
		pollInterval:        2 * time.Second,
	}, nil
}

// SetPollInterval confirmation depth polling interval
func (f *EthChainFinalizer) SetPollInterval(d time.Duration) {
	f.pollInterval = d
}

// From signer address
func (f *EthChainFinalizer) From() common.Address {
	return f.from
}

// Finalize submits setTokenURI and blocks until the receipt is confirmations deep
func (f *EthChainFinalizer) Finalize(ctx context.Context, itemID uint64, uri string) (string, error) {
	data, err := f.abi.Pack(setTokenURIMethod, new(big.Int).SetUint64(itemID), uri)
	if err != nil {
		return "", fmt.Errorf("failed to pack setTokenURI: %w", err)
	}

	tx, err := f.send(ctx, data)
	if err != nil {
		return "", err
	}
	txHash := tx.Hash().Hex()
	entry := f.log.WithFields(logrus.Fields{"item_id": itemID, "tx_hash": txHash, "nonce": tx.Nonce()})
	entry.Info("📤 setTokenURI submitted")

	waitCtx, cancel := context.WithTimeout(ctx, f.confirmationTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, f.backend, tx)
	if err != nil {
		return "", &types.ChainFinalizeError{Kind: types.FinalizeUnknown, TxHash: txHash, Err: fmt.Errorf("wait mined: %w", err)}
	}
	if receipt.Status == ethtypes.ReceiptStatusFailed {
		return "", &types.ChainFinalizeError{Kind: types.FinalizeUnknown, TxHash: txHash, Err: errors.New("transaction reverted")}
	}

	if err := f.waitConfirmations(waitCtx, receipt.BlockNumber.Uint64()); err != nil {
		return "", &types.ChainFinalizeError{Kind: types.FinalizeUnknown, TxHash: txHash, Err: err}
	}

	entry.WithFields(logrus.Fields{
		"block":    receipt.BlockNumber.Uint64(),
		"gas_used": receipt.GasUsed,
	}).Info("✅ setTokenURI confirmed")
	return txHash, nil
}

// send estimates gas, signs and submits the transaction
func (f *EthChainFinalizer) send(ctx context.Context, data []byte) (*ethtypes.Transaction, error) {
	f.sendMu.Lock()
	defer f.sendMu.Unlock()

	nonce, err := f.backend.PendingNonceAt(ctx, f.from)
	if err != nil {
		return nil, types.NewTransientNetworkError("eth_getTransactionCount", err)
	}
	gasPrice, err := f.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, types.NewTransientNetworkError("eth_gasPrice", err)
	}

	estimated, err := f.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     f.from,
		To:       &f.contract,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return nil, finalizeError(fmt.Errorf("estimate gas: %w", err), "")
	}
	gasLimit := uint64(float64(estimated) * f.gasMultiplier)

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &f.contract,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(f.chainID), f.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := f.backend.SendTransaction(ctx, signed); err != nil {
		return nil, finalizeError(fmt.Errorf("send transaction: %w", err), signed.Hash().Hex())
	}
	return signed, nil
}

// waitConfirmations polls the head until block has the configured depth.
// The inclusion block counts as the first confirmation.
func (f *EthChainFinalizer) waitConfirmations(ctx context.Context, block uint64) error {
	target := block + f.confirmations - 1
	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()

	for {
		head, err := f.backend.BlockNumber(ctx)
		if err == nil && head >= target {
			return nil
		}
		if err != nil {
			f.log.WithError(err).Warn("⚠️ Head query failed while waiting for confirmations")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d confirmations of block %d: %w", f.confirmations, block, ctx.Err())
		case <-ticker.C:
		}
	}
}
