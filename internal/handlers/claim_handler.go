package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"claim-oracle/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Wire sentinels. Every claim endpoint answers 200; failures are signalled in the body.
const (
	SentinelError = "error"
	SentinelZero  = "0"
)

// RequestIDKey gin context key holding the request id
const RequestIDKey = "request_id"

// ClaimService operations behind the claim endpoints
type ClaimService interface {
	MaxBN(ctx context.Context, req services.PairRequest) (*services.AmountResult, error)
	MaxBNReduced(ctx context.Context, req services.PairRequest) (*services.AmountResult, error)
	Max(ctx context.Context, req services.PairRequest) (*services.AllocationResult, error)
	Authorize(ctx context.Context, req services.ClaimRequest) (*services.AuthorizeResult, error)
}

// PairBody body of the query endpoints
type PairBody struct {
	Address string `json:"address"`
	Token   string `json:"token"`
}

// ClaimBody body of the authorize endpoint. Amount stays raw so that only JSON strings are accepted.
type ClaimBody struct {
	Address string          `json:"address"`
	Token   string          `json:"token"`
	Amount  json.RawMessage `json:"amount"`
}

// AmountResponse {amount} response of the query endpoints
type AmountResponse struct {
	Amount interface{} `json:"amount"`
}

// AuthorizeResponse {hash, signature} response of the authorize endpoint
type AuthorizeResponse struct {
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
}

var rejectedAuthorization = AuthorizeResponse{Hash: SentinelError, Signature: SentinelError}

// ClaimHandler serves the claim endpoints
type ClaimHandler struct {
	service ClaimService
	logger  *logrus.Logger
}

// NewClaimHandler creates a new ClaimHandler
func NewClaimHandler(service ClaimService, logger *logrus.Logger) *ClaimHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ClaimHandler{service: service, logger: logger}
}

// MaxBNHandler full allocation in smallest units
// POST /maxBN
func (h *ClaimHandler) MaxBNHandler(c *gin.Context) {
	req, ok := h.bindPair(c)
	if !ok {
		c.JSON(http.StatusOK, AmountResponse{Amount: SentinelError})
		return
	}

	result, err := h.service.MaxBN(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusOK, AmountResponse{Amount: SentinelError})
		return
	}
	c.JSON(http.StatusOK, AmountResponse{Amount: amountString(result)})
}

// MaxBNReducedHandler allocation left after withdrawals, in smallest units
// POST /maxBNReduced
func (h *ClaimHandler) MaxBNReducedHandler(c *gin.Context) {
	req, ok := h.bindPair(c)
	if !ok {
		c.JSON(http.StatusOK, AmountResponse{Amount: SentinelError})
		return
	}

	result, err := h.service.MaxBNReduced(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusOK, AmountResponse{Amount: SentinelError})
		return
	}
	c.JSON(http.StatusOK, AmountResponse{Amount: amountString(result)})
}

// MaxHandler allocation as written in the snapshot, as a JSON number
// POST /max
func (h *ClaimHandler) MaxHandler(c *gin.Context) {
	req, ok := h.bindPair(c)
	if !ok {
		c.JSON(http.StatusOK, AmountResponse{Amount: SentinelError})
		return
	}

	result, err := h.service.Max(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusOK, AmountResponse{Amount: SentinelError})
		return
	}
	if !result.Present {
		c.JSON(http.StatusOK, AmountResponse{Amount: 0})
		return
	}
	c.JSON(http.StatusOK, AmountResponse{Amount: result.Amount})
}

// AuthorizeHandler signs a claim when it fits the remaining allowance
// POST /
func (h *ClaimHandler) AuthorizeHandler(c *gin.Context) {
	var body ClaimBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": c.GetString(RequestIDKey),
			"error":      err.Error(),
		}).Info("Malformed authorize request")
		c.JSON(http.StatusOK, rejectedAuthorization)
		return
	}

	var amount string
	if len(body.Amount) == 0 || body.Amount[0] != '"' || json.Unmarshal(body.Amount, &amount) != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": c.GetString(RequestIDKey),
			"amount":     string(body.Amount),
		}).Info("Authorize request amount is not a JSON string")
		c.JSON(http.StatusOK, rejectedAuthorization)
		return
	}

	result, err := h.service.Authorize(c.Request.Context(), services.ClaimRequest{
		RequestID: c.GetString(RequestIDKey),
		Address:   body.Address,
		Token:     body.Token,
		Amount:    amount,
	})
	if err != nil {
		c.JSON(http.StatusOK, rejectedAuthorization)
		return
	}

	c.JSON(http.StatusOK, AuthorizeResponse{
		Hash:      result.Hash,
		Signature: result.Signature,
	})
}

func (h *ClaimHandler) bindPair(c *gin.Context) (services.PairRequest, bool) {
	var body PairBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": c.GetString(RequestIDKey),
			"path":       c.Request.URL.Path,
			"error":      err.Error(),
		}).Info("Malformed claim query")
		return services.PairRequest{}, false
	}
	return services.PairRequest{
		RequestID: c.GetString(RequestIDKey),
		Address:   body.Address,
		Token:     body.Token,
	}, true
}

func amountString(result *services.AmountResult) string {
	if !result.Present || result.Amount == nil {
		return SentinelZero
	}
	return result.Amount.String()
}
