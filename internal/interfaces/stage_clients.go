package interfaces

import (
	"context"
	"math/big"

	"github.com/FishIT-Mantle/fishit-sub000/internal/models"
)

// These interfaces sit between the pipeline services and the clients package
// so services can be tested with fakes.

// ImageGenerator renders the fish image for an item
type ImageGenerator interface {
	// Generate returns raw image bytes. Deterministic for a seed when the backend supports it.
	Generate(ctx context.Context, tier, zone uint8, seed string) ([]byte, error)
}

// StoragePublisher pins the image then the metadata JSON that references it.
// metadata.Image is filled in by the publisher once the image CID is known.
type StoragePublisher interface {
	Publish(ctx context.Context, image []byte, metadata models.NFTMetadata) (models.StorageRefs, error)
}

// ChainFinalizer writes the metadata URI for a token on chain
type ChainFinalizer interface {
	// Finalize returns the transaction hash once the configured confirmation depth is reached
	Finalize(ctx context.Context, itemID uint64, uri string) (string, error)
}

// FishMintedEvent decoded FishMinted log
type FishMintedEvent struct {
	ItemID       uint64
	OwnerAddress string
	Tier         uint8
	Zone         uint8
	BaitType     uint8
	RandomSeed   *big.Int
	TxHash       string
	BlockNumber  uint64
	LogIndex     uint
}

// ChainLogReader read side of the chain used by the event watcher
type ChainLogReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterFishMinted(ctx context.Context, fromBlock, toBlock uint64) ([]FishMintedEvent, error)
}

// StatusNotifier receives every committed status change
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, itemID uint64, from, to models.MintStatus, lastError string)
}
