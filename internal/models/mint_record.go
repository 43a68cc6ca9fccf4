package models

import (
	"errors"
	"fmt"
	"time"
)

// MintStatus status of a mint record in the pipeline
type MintStatus string

const (
	MintStatusPending    MintStatus = "pending"    // created from the chain event
	MintStatusGenerating MintStatus = "generating" // image generation in progress
	MintStatusGenerated  MintStatus = "generated"  // image artifact stored
	MintStatusUploading  MintStatus = "uploading"  // pinning image and metadata
	MintStatusUploaded   MintStatus = "uploaded"   // metadata URI stored, artifact cleared
	MintStatusFinalizing MintStatus = "finalizing" // setTokenURI submitted
	MintStatusCompleted  MintStatus = "completed"  // terminal
	MintStatusFailed     MintStatus = "failed"     // last attempt failed, resumable
)

// AllMintStatuses lists every status in forward order, failed last
var AllMintStatuses = []MintStatus{
	MintStatusPending,
	MintStatusGenerating,
	MintStatusGenerated,
	MintStatusUploading,
	MintStatusUploaded,
	MintStatusFinalizing,
	MintStatusCompleted,
	MintStatusFailed,
}

// MintStatusOrder forward position of each stage status. failed has no position.
var MintStatusOrder = map[MintStatus]int{
	MintStatusPending:    0,
	MintStatusGenerating: 1,
	MintStatusGenerated:  2,
	MintStatusUploading:  3,
	MintStatusUploaded:   4,
	MintStatusFinalizing: 5,
	MintStatusCompleted:  6,
}

// mintTransitions is the only place allowed status edges are defined.
// Self edges on the in-progress states cover resume after a crash mid-stage.
var mintTransitions = map[MintStatus][]MintStatus{
	MintStatusPending:    {MintStatusGenerating, MintStatusFailed},
	MintStatusGenerating: {MintStatusGenerating, MintStatusGenerated, MintStatusPending, MintStatusFailed},
	MintStatusGenerated:  {MintStatusUploading, MintStatusFailed},
	MintStatusUploading:  {MintStatusUploading, MintStatusUploaded, MintStatusGenerated, MintStatusFailed},
	MintStatusUploaded:   {MintStatusFinalizing, MintStatusFailed},
	MintStatusFinalizing: {MintStatusFinalizing, MintStatusCompleted, MintStatusUploaded, MintStatusFailed},
	MintStatusFailed:     {MintStatusGenerating, MintStatusUploading, MintStatusFinalizing},
	MintStatusCompleted:  {},
}

// ErrInvalidTransition returned when a status change is not in the transition table
var ErrInvalidTransition = errors.New("invalid mint status transition")

// IsValid reports whether s is one of the defined statuses
func (s MintStatus) IsValid() bool {
	_, ok := mintTransitions[s]
	return ok
}

// IsTerminal only completed is terminal
func (s MintStatus) IsTerminal() bool {
	return s == MintStatusCompleted
}

// Before reports whether s comes strictly before other in forward order.
// failed is never before or after anything.
func (s MintStatus) Before(other MintStatus) bool {
	a, ok1 := MintStatusOrder[s]
	b, ok2 := MintStatusOrder[other]
	return ok1 && ok2 && a < b
}

// CanTransitionTo checks the transition table
func (s MintStatus) CanTransitionTo(next MintStatus) bool {
	for _, allowed := range mintTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition wrapped with both statuses
func ValidateTransition(from, to MintStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// NonTerminalMintStatuses statuses eligible for the retry sweep
func NonTerminalMintStatuses() []MintStatus {
	out := make([]MintStatus, 0, len(AllMintStatuses)-1)
	for _, s := range AllMintStatuses {
		if !s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}

// MintRecord one FishIT NFT moving through generation, pinning and finalization
type MintRecord struct {
	ItemID uint64 `json:"item_id" gorm:"primaryKey;autoIncrement:false"` // token id from FishMinted

	// Event attributes, immutable
	OwnerAddress string `json:"owner_address" gorm:"type:varchar(42);not null;index"`
	Tier         uint8  `json:"tier" gorm:"not null"`
	Zone         uint8  `json:"zone" gorm:"not null"`
	BaitType     uint8  `json:"bait_type" gorm:"not null"`
	RandomSeed   string `json:"random_seed" gorm:"type:varchar(78);not null"` // uint256 decimal
	MintTxHash   string `json:"mint_tx_hash" gorm:"type:varchar(66)"`
	BlockNumber  uint64 `json:"block_number" gorm:"index"`

	Status MintStatus `json:"status" gorm:"type:varchar(20);not null;default:pending;index"`

	// Stage artifacts
	ImageArtifact      []byte `json:"-"`                                               // cleared after upload
	StorageImageCID    string `json:"storage_image_cid" gorm:"column:storage_image_cid;type:varchar(100)"`       // pinned image
	StorageMetadataCID string `json:"storage_metadata_cid" gorm:"column:storage_metadata_cid;type:varchar(100)"` // pinned metadata JSON
	StorageMetadataURI string `json:"storage_metadata_uri" gorm:"type:text"`         // ipfs://<metadata cid>
	FinalizeTxHash     string `json:"finalize_tx_hash" gorm:"type:varchar(66)"`

	// Retry
	RetryCount int    `json:"retry_count" gorm:"not null;default:0"`
	LastError  string `json:"last_error" gorm:"type:text"`

	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TableName specifies table name
func (MintRecord) TableName() string {
	return "mint_records"
}

func (r *MintRecord) HasImageArtifact() bool {
	return len(r.ImageArtifact) > 0
}

func (r *MintRecord) HasMetadataURI() bool {
	return r.StorageMetadataURI != ""
}

// StorageRefs result of a successful storage publish
type StorageRefs struct {
	ImageCID    string
	MetadataCID string
	MetadataURI string
}
