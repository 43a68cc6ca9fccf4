package clients

import (
	"context"
	"fmt"
	"math/big"

	"github.com/FishIT-Mantle/fishit-sub000/internal/interfaces"
	"github.com/FishIT-Mantle/fishit-sub000/internal/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// EthLogReader reads chain head and FishMinted logs
type EthLogReader struct {
	backend  ChainBackend
	log      *logrus.Logger
	contract common.Address
	event    abi.Event
}

// NewEthLogReader creates a log reader for the FishNFT contract
func NewEthLogReader(backend ChainBackend, contract string, log *logrus.Logger) (*EthLogReader, error) {
	if !common.IsHexAddress(contract) {
		return nil, &types.ConfigurationError{Field: "chain.contractAddress", Reason: "not a hex address"}
	}
	parsed, err := FishNFTABI()
	if err != nil {
		return nil, err
	}
	return &EthLogReader{
		backend:  backend,
		log:      log,
		contract: common.HexToAddress(contract),
		event:    parsed.Events[fishMintedEvent],
	}, nil
}

// BlockNumber current chain head
func (r *EthLogReader) BlockNumber(ctx context.Context) (uint64, error) {
	head, err := r.backend.BlockNumber(ctx)
	if err != nil {
		return 0, types.NewTransientNetworkError("eth_blockNumber", err)
	}
	return head, nil
}

// FilterFishMinted returns decoded FishMinted events in [fromBlock, toBlock].
// Logs that cannot be decoded are skipped with a warning.
func (r *EthLogReader) FilterFishMinted(ctx context.Context, fromBlock, toBlock uint64) ([]interfaces.FishMintedEvent, error) {
	logs, err := r.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{r.contract},
		Topics:    [][]common.Hash{{r.event.ID}},
	})
	if err != nil {
		return nil, types.NewTransientNetworkError(fmt.Sprintf("eth_getLogs %d-%d", fromBlock, toBlock), err)
	}

	events := make([]interfaces.FishMintedEvent, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		ev, err := r.decode(lg)
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"tx_hash":   lg.TxHash.Hex(),
				"block":     lg.BlockNumber,
				"log_index": lg.Index,
			}).WithError(err).Warn("⚠️ Skipping undecodable FishMinted log")
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// decode owner and tokenId come from topics, the rest from data
func (r *EthLogReader) decode(lg ethtypes.Log) (interfaces.FishMintedEvent, error) {
	if len(lg.Topics) != 3 || lg.Topics[0] != r.event.ID {
		return interfaces.FishMintedEvent{}, fmt.Errorf("unexpected topics count %d", len(lg.Topics))
	}
	tokenID := new(big.Int).SetBytes(lg.Topics[2].Bytes())
	if !tokenID.IsUint64() {
		return interfaces.FishMintedEvent{}, fmt.Errorf("token id %s exceeds 64 bits", tokenID)
	}

	values, err := r.event.Inputs.NonIndexed().Unpack(lg.Data)
	if err != nil {
		return interfaces.FishMintedEvent{}, fmt.Errorf("unpack data: %w", err)
	}
	if len(values) != 4 {
		return interfaces.FishMintedEvent{}, fmt.Errorf("expected 4 values, got %d", len(values))
	}
	tier, ok1 := values[0].(uint8)
	zone, ok2 := values[1].(uint8)
	bait, ok3 := values[2].(uint8)
	seed, ok4 := values[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return interfaces.FishMintedEvent{}, fmt.Errorf("unexpected value types %T %T %T %T", values[0], values[1], values[2], values[3])
	}

	return interfaces.FishMintedEvent{
		ItemID:       tokenID.Uint64(),
		OwnerAddress: common.BytesToAddress(lg.Topics[1].Bytes()).Hex(),
		Tier:         tier,
		Zone:         zone,
		BaitType:     bait,
		RandomSeed:   seed,
		TxHash:       lg.TxHash.Hex(),
		BlockNumber:  lg.BlockNumber,
		LogIndex:     lg.Index,
	}, nil
}
