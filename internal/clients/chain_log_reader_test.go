package clients

import (
	"context"
	"math/big"
	"testing"

	"github.com/FishIT-Mantle/fishit-sub000/internal/logging"
	"github.com/FishIT-Mantle/fishit-sub000/internal/types"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fishMintedLog(t *testing.T, owner common.Address, tokenID uint64, tier, zone, bait uint8, seed int64, block uint64, index uint) ethtypes.Log {
	t.Helper()
	parsed, err := FishNFTABI()
	require.NoError(t, err)
	event := parsed.Events[fishMintedEvent]

	data, err := event.Inputs.NonIndexed().Pack(tier, zone, bait, big.NewInt(seed))
	require.NoError(t, err)

	return ethtypes.Log{
		Address: common.HexToAddress(testContract),
		Topics: []common.Hash{
			event.ID,
			common.BytesToHash(owner.Bytes()),
			common.BigToHash(new(big.Int).SetUint64(tokenID)),
		},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(int64(block))),
		Index:       index,
	}
}

func TestFilterFishMintedDecodesLogs(t *testing.T) {
	owner := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	good := fishMintedLog(t, owner, 42, 3, 1, 2, 777, 120, 4)

	removed := fishMintedLog(t, owner, 43, 0, 0, 0, 1, 121, 0)
	removed.Removed = true

	malformed := fishMintedLog(t, owner, 44, 0, 0, 0, 1, 122, 0)
	malformed.Topics = malformed.Topics[:2]

	backend := newFakeBackend()
	backend.logs = []ethtypes.Log{good, removed, malformed}

	reader, err := NewEthLogReader(backend, testContract, logging.Discard())
	require.NoError(t, err)

	events, err := reader.FilterFishMinted(context.Background(), 100, 200)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, uint64(42), ev.ItemID)
	assert.Equal(t, owner.Hex(), ev.OwnerAddress)
	assert.Equal(t, uint8(3), ev.Tier)
	assert.Equal(t, uint8(1), ev.Zone)
	assert.Equal(t, uint8(2), ev.BaitType)
	assert.Equal(t, "777", ev.RandomSeed.String())
	assert.Equal(t, uint64(120), ev.BlockNumber)
	assert.Equal(t, uint(4), ev.LogIndex)

	q := backend.lastQuery
	assert.Equal(t, int64(100), q.FromBlock.Int64())
	assert.Equal(t, int64(200), q.ToBlock.Int64())
	assert.Equal(t, []common.Address{common.HexToAddress(testContract)}, q.Addresses)
	assert.Equal(t, good.Topics[0], q.Topics[0][0])
}

func TestFilterFishMintedRPCErrorIsTransient(t *testing.T) {
	backend := newFakeBackend()
	backend.logsErr = errRPCDown
	reader, err := NewEthLogReader(backend, testContract, logging.Discard())
	require.NoError(t, err)

	_, err = reader.FilterFishMinted(context.Background(), 1, 2)
	assert.True(t, types.IsTransient(err))

	backend.headErr = errRPCDown
	_, err = reader.BlockNumber(context.Background())
	assert.True(t, types.IsTransient(err))
}
