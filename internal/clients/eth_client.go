package clients

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/config"
	"github.com/FishIT-Mantle/fishit-sub000/internal/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// ChainBackend the ethclient methods the minter uses. *ethclient.Client
// satisfies it.
type ChainBackend interface {
	bind.DeployBackend
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

var _ ChainBackend = (*ethclient.Client)(nil)

// DialEthClient tries each endpoint in order and keeps the first one that
// answers NetworkID. A chain id mismatch is a configuration error.
func DialEthClient(ctx context.Context, cfg config.ChainConfig, log *logrus.Logger) (*ethclient.Client, error) {
	if len(cfg.RPCEndpoints) == 0 {
		return nil, &types.ConfigurationError{Field: "chain.rpcEndpoints", Reason: "at least one endpoint required"}
	}

	timeout := cfg.RPCTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var lastErr error
	for i, endpoint := range cfg.RPCEndpoints {
		entry := log.WithFields(logrus.Fields{"endpoint": endpoint, "attempt": i + 1, "total": len(cfg.RPCEndpoints)})

		client, err := ethclient.DialContext(ctx, endpoint)
		if err != nil {
			entry.WithError(err).Warn("❌ RPC dial failed")
			lastErr = err
			continue
		}

		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		networkID, err := client.NetworkID(checkCtx)
		if err == nil && cfg.ChainID > 0 {
			var chainID *big.Int
			chainID, err = client.ChainID(checkCtx)
			if err == nil && chainID.Int64() != cfg.ChainID {
				cancel()
				client.Close()
				return nil, &types.ConfigurationError{
					Field:  "chain.chainId",
					Reason: fmt.Sprintf("endpoint %s serves chain %s, expected %d", endpoint, chainID, cfg.ChainID),
				}
			}
		}
		cancel()
		if err != nil {
			entry.WithError(err).Warn("❌ RPC connection check failed")
			client.Close()
			lastErr = err
			continue
		}

		entry.WithField("network_id", networkID.String()).Info("✅ Connected to RPC endpoint")
		return client, nil
	}
	return nil, types.NewTransientNetworkError("dial rpc", fmt.Errorf("all %d RPC endpoints failed: %w", len(cfg.RPCEndpoints), lastErr))
}
