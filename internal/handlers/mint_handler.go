package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/FishIT-Mantle/fishit-sub000/internal/dto"
	"github.com/FishIT-Mantle/fishit-sub000/internal/models"
	"github.com/FishIT-Mantle/fishit-sub000/internal/repository"
	"github.com/FishIT-Mantle/fishit-sub000/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// MintHandler read API over mint records plus the admin process trigger
type MintHandler struct {
	repo      repository.MintRecordRepository
	processor services.ItemProcessor
	log       *logrus.Logger
}

// NewMintHandler creates the handler
func NewMintHandler(repo repository.MintRecordRepository, processor services.ItemProcessor, log *logrus.Logger) *MintHandler {
	return &MintHandler{repo: repo, processor: processor, log: log}
}

func parseItemID(c *gin.Context) (uint64, bool) {
	itemID, err := strconv.ParseUint(c.Param("itemId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "itemId must be an unsigned integer",
			"code":    "INVALID_ITEM_ID",
		})
		return 0, false
	}
	return itemID, true
}

// GetMintHandler GET /api/mints/:itemId
func (h *MintHandler) GetMintHandler(c *gin.Context) {
	itemID, ok := parseItemID(c)
	if !ok {
		return
	}

	rec, err := h.repo.Get(c.Request.Context(), itemID)
	if errors.Is(err, repository.ErrMintRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Mint record not found",
			"code":    "NOT_FOUND",
		})
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("item_id", itemID).Error("❌ Failed to load mint record")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to load mint record",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    dto.NewMintRecordResponse(rec),
	})
}

// ListMintsHandler GET /api/mints?status=&limit=
func (h *MintHandler) ListMintsHandler(c *gin.Context) {
	status := models.MintStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Unknown status",
			"code":    "INVALID_STATUS",
		})
		return
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "limit must be a positive integer",
				"code":    "INVALID_LIMIT",
			})
			return
		}
		limit = n
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	records, err := h.repo.ListByStatus(c.Request.Context(), status, limit)
	if err != nil {
		h.log.WithError(err).Error("❌ Failed to list mint records")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list mint records",
		})
		return
	}

	items := make([]dto.MintRecordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, dto.NewMintRecordResponse(rec))
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    dto.ListMintsResponse{Items: items, Count: len(items)},
	})
}

// MintStatsHandler GET /api/mints/stats
func (h *MintHandler) MintStatsHandler(c *gin.Context) {
	counts, err := h.repo.CountByStatus(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("❌ Failed to count mint records")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to count mint records",
		})
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    dto.MintStatsResponse{Counts: counts, Total: total},
	})
}

// ProcessMintHandler POST /api/admin/mints/:itemId/process
func (h *MintHandler) ProcessMintHandler(c *gin.Context) {
	itemID, ok := parseItemID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	h.log.WithFields(logrus.Fields{
		"item_id": itemID,
		"admin":   c.GetString("admin_username"),
	}).Info("🔧 Manual mint processing triggered")

	processErr := h.processor.Process(ctx, itemID)
	if errors.Is(processErr, repository.ErrMintRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Mint record not found",
			"code":    "NOT_FOUND",
		})
		return
	}

	rec, err := h.repo.Get(ctx, itemID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to reload mint record",
		})
		return
	}

	resp := dto.ProcessMintResponse{Success: processErr == nil, Record: dto.NewMintRecordResponse(rec)}
	status := http.StatusOK
	if processErr != nil {
		resp.Error = processErr.Error()
		status = http.StatusBadGateway
	}
	c.JSON(status, resp)
}
