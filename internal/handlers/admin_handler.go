package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"claim-oracle/internal/models"
	"claim-oracle/internal/snapshot"
	"claim-oracle/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	defaultIssuanceLimit = 50
	maxIssuanceLimit     = 500
)

// StatusSource service facts shown on the admin status page
type StatusSource interface {
	SignerAddress() common.Address
	Contract() common.Address
	Decimals() uint8
}

// SnapshotStats allocation snapshot facts
type SnapshotStats interface {
	Stats() snapshot.Stats
}

// IssuanceLister read side of the issuance audit log
type IssuanceLister interface {
	ListRecent(ctx context.Context, address string, limit int) ([]models.Issuance, error)
}

// AdminHandler admin read-only endpoints
type AdminHandler struct {
	status    StatusSource
	snapshot  SnapshotStats
	issuances IssuanceLister // nil when the audit log is disabled
	chainID   int64
	startedAt time.Time
	logger    *logrus.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(status StatusSource, snapshotStats SnapshotStats, issuances IssuanceLister, chainID int64, logger *logrus.Logger) *AdminHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AdminHandler{
		status:    status,
		snapshot:  snapshotStats,
		issuances: issuances,
		chainID:   chainID,
		startedAt: time.Now(),
		logger:    logger,
	}
}

// StatusHandler signer, contract and snapshot facts. Never the key.
// GET /admin/status
func (h *AdminHandler) StatusHandler(c *gin.Context) {
	stats := h.snapshot.Stats()
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"signer":         h.status.SignerAddress().Hex(),
		"contract":       utils.LowerHex(h.status.Contract()),
		"chain_id":       h.chainID,
		"decimals":       h.status.Decimals(),
		"snapshot":       gin.H{"addresses": stats.Addresses, "pairs": stats.Pairs},
		"audit_log":      h.issuances != nil,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// IssuancesHandler most recent issued signatures, optionally for one address
// GET /admin/issuances?address=&limit=
func (h *AdminHandler) IssuancesHandler(c *gin.Context) {
	if h.issuances == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "Issuance audit log is not configured",
			"code":    "AUDIT_LOG_DISABLED",
		})
		return
	}

	address := strings.TrimSpace(c.Query("address"))
	if address != "" {
		normalized, err := utils.NormalizeAddress(address)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   err.Error(),
				"code":    "INVALID_ADDRESS",
			})
			return
		}
		address = normalized
	}

	limit := defaultIssuanceLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "limit must be a positive integer",
				"code":    "INVALID_LIMIT",
			})
			return
		}
		limit = min(parsed, maxIssuanceLimit)
	}

	records, err := h.issuances.ListRecent(c.Request.Context(), address, limit)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err.Error(),
		}).Error("❌ Failed to list issuances")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to list issuances",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"count":     len(records),
		"issuances": records,
	})
}
