package dto

import (
	"time"

	"github.com/FishIT-Mantle/fishit-sub000/internal/models"
)

// ==================== Mint DTOs ====================

// MintRecordResponse mint record as exposed by the ops API. Image bytes are
// never returned.
type MintRecordResponse struct {
	ItemID             uint64            `json:"item_id"`
	OwnerAddress       string            `json:"owner_address"`
	Tier               uint8             `json:"tier"`
	TierName           string            `json:"tier_name"`
	Zone               uint8             `json:"zone"`
	ZoneName           string            `json:"zone_name"`
	BaitType           uint8             `json:"bait_type"`
	BaitName           string            `json:"bait_name"`
	RandomSeed         string            `json:"random_seed"`
	MintTxHash         string            `json:"mint_tx_hash"`
	BlockNumber        uint64            `json:"block_number"`
	Status             models.MintStatus `json:"status"`
	HasImageArtifact   bool              `json:"has_image_artifact"`
	StorageImageCID    string            `json:"storage_image_cid,omitempty"`
	StorageMetadataCID string            `json:"storage_metadata_cid,omitempty"`
	StorageMetadataURI string            `json:"storage_metadata_uri,omitempty"`
	FinalizeTxHash     string            `json:"finalize_tx_hash,omitempty"`
	RetryCount         int               `json:"retry_count"`
	LastError          string            `json:"last_error,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
}

// NewMintRecordResponse converts a stored record
func NewMintRecordResponse(r *models.MintRecord) MintRecordResponse {
	return MintRecordResponse{
		ItemID:             r.ItemID,
		OwnerAddress:       r.OwnerAddress,
		Tier:               r.Tier,
		TierName:           models.TierName(r.Tier),
		Zone:               r.Zone,
		ZoneName:           models.ZoneName(r.Zone),
		BaitType:           r.BaitType,
		BaitName:           models.BaitName(r.BaitType),
		RandomSeed:         r.RandomSeed,
		MintTxHash:         r.MintTxHash,
		BlockNumber:        r.BlockNumber,
		Status:             r.Status,
		HasImageArtifact:   r.HasImageArtifact(),
		StorageImageCID:    r.StorageImageCID,
		StorageMetadataCID: r.StorageMetadataCID,
		StorageMetadataURI: r.StorageMetadataURI,
		FinalizeTxHash:     r.FinalizeTxHash,
		RetryCount:         r.RetryCount,
		LastError:          r.LastError,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		CompletedAt:        r.CompletedAt,
	}
}

// ListMintsResponse GET /api/mints
type ListMintsResponse struct {
	Items []MintRecordResponse `json:"items"`
	Count int                  `json:"count"`
}

// MintStatsResponse GET /api/mints/stats
type MintStatsResponse struct {
	Counts map[models.MintStatus]int64 `json:"counts"`
	Total  int64                       `json:"total"`
}

// ProcessMintResponse POST /api/admin/mints/:itemId/process
type ProcessMintResponse struct {
	Success bool               `json:"success"`
	Error   string             `json:"error,omitempty"`
	Record  MintRecordResponse `json:"record"`
}
