package http_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fil-demos/synapse-kit/internal/metrics"
	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/internal/quota"
	"github.com/fil-demos/synapse-kit/internal/routing"
	"github.com/fil-demos/synapse-kit/pkg/validation"
)

// PaymentRequest represents the JSON body for crediting a payment
type PaymentRequest struct {
	Address   string  `json:"address" binding:"required"`
	Chain     string  `json:"chain"`
	Email     string  `json:"email" binding:"omitempty,email"`
	AmountUSD float64 `json:"amount_usd" binding:"gte=0"`
	TxHash    string  `json:"tx_hash" binding:"required"`
}

// PaymentResponse represents the success response for a credited payment
type PaymentResponse struct {
	Success      bool   `json:"success"`
	Address      string `json:"address"`
	GrantedBytes int64  `json:"granted_bytes"`
	QuotaBytes   int64  `json:"quota_bytes"`
	UsedBytes    int64  `json:"used_bytes"`
}

// UploadCheckRequest asks whether the quota covers an upload
type UploadCheckRequest struct {
	Address string `json:"address" binding:"required"`
	Size    int64  `json:"size" binding:"gte=0"`
}

// UploadCheckResponse is the answer to an UploadCheckRequest
type UploadCheckResponse struct {
	CanUpload      bool  `json:"can_upload"`
	RemainingBytes int64 `json:"remaining_bytes"`
}

// UploadRequest records a completed upload
type UploadRequest struct {
	Address  string `json:"address" binding:"required"`
	PieceCID string `json:"piece_cid" binding:"required"`
	Size     int64  `json:"size" binding:"gte=0"`
}

// RouteRequest asks who pays for an upload
type RouteRequest struct {
	Address         string `json:"address" binding:"required"`
	Size            int64  `json:"size" binding:"gte=0"`
	WalletConnected bool   `json:"wallet_connected"`
}

// RouteResponse carries the payment path for an upload
type RouteResponse struct {
	Disposition routing.Disposition `json:"disposition"`
	Hint        string              `json:"hint"`
}

// grantQuota is a handler for the /payments endpoint.
// A transaction hash that was already credited is answered with 409.
func (s *HTTPServer) grantQuota(c *gin.Context) {
	var req PaymentRequest

	// Parse and validate JSON request body
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	if err := validation.ValidateAddress(req.Address); err != nil {
		s.logger.Debug("Invalid payer address", "error", err, "address", req.Address)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid address: " + err.Error(),
		})
		return
	}
	if err := validation.ValidateTxHash(req.TxHash); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid tx_hash: " + err.Error(),
		})
		return
	}

	grant, err := s.ledger.GrantQuota(c.Request.Context(), models.PaymentRequest{
		Address:   req.Address,
		Chain:     req.Chain,
		Email:     req.Email,
		AmountUSD: req.AmountUSD,
		TxHash:    req.TxHash,
	})
	if err != nil {
		switch {
		case errors.Is(err, quota.ErrDuplicatePayment):
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error":   "Payment already processed",
			})
		case errors.Is(err, quota.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   err.Error(),
			})
		default:
			s.logger.Error("Failed to grant quota", "error", err, "address", req.Address, "tx_hash", req.TxHash)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "Failed to grant quota",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, PaymentResponse{
		Success:      true,
		Address:      grant.User.Address,
		GrantedBytes: grant.GrantedBytes,
		QuotaBytes:   grant.User.QuotaBytes,
		UsedBytes:    grant.User.UsedBytes,
	})
}

// quotaStatus is a handler for the /quota endpoint.
func (s *HTTPServer) quotaStatus(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}
	if err := validation.ValidateAddress(address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address format: " + err.Error()})
		return
	}

	status, err := s.ledger.Status(c.Request.Context(), address)
	if err != nil {
		if errors.Is(err, quota.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		} else {
			s.logger.Error("Failed to get quota status", "error", err, "address", address)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get quota status"})
		}
		return
	}

	c.JSON(http.StatusOK, status)
}

// checkUpload is a handler for the /uploads/check endpoint.
// Unknown users get can_upload=false rather than 404.
func (s *HTTPServer) checkUpload(c *gin.Context) {
	var req UploadCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := validation.ValidateAddress(req.Address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address format: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	ok, err := s.ledger.CanUpload(ctx, req.Address, req.Size)
	if err != nil {
		s.logger.Error("Failed to check quota", "error", err, "address", req.Address)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check quota"})
		return
	}

	var remaining int64
	user, err := s.ledger.GetUser(ctx, req.Address)
	switch {
	case err == nil:
		remaining = user.RemainingBytes()
	case !errors.Is(err, quota.ErrUserNotFound):
		s.logger.Error("Failed to get user", "error", err, "address", req.Address)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}

	c.JSON(http.StatusOK, UploadCheckResponse{CanUpload: ok, RemainingBytes: remaining})
}

// recordUpload is a handler for the /uploads endpoint. The upload is charged
// even when it exceeds the remaining quota; callers check first.
func (s *HTTPServer) recordUpload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := validation.ValidateAddress(req.Address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address format: " + err.Error()})
		return
	}

	user, err := s.ledger.RecordUpload(c.Request.Context(), req.Address, req.PieceCID, req.Size)
	if err != nil {
		if errors.Is(err, quota.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		} else {
			s.logger.Error("Failed to record upload", "error", err, "address", req.Address)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record upload"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"address":         user.Address,
		"quota_bytes":     user.QuotaBytes,
		"used_bytes":      user.UsedBytes,
		"remaining_bytes": user.RemainingBytes(),
	})
}

// routeUpload is a handler for the /uploads/route endpoint.
func (s *HTTPServer) routeUpload(c *gin.Context) {
	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := validation.ValidateAddress(req.Address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address format: " + err.Error()})
		return
	}

	user, err := s.ledger.GetUser(c.Request.Context(), req.Address)
	if err != nil && !errors.Is(err, quota.ErrUserNotFound) {
		s.logger.Error("Failed to get user", "error", err, "address", req.Address)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}

	disposition := routing.Decide(routing.AccountFromUser(user, req.WalletConnected), req.Size)
	metrics.RouteDecisions.WithLabelValues(string(disposition)).Inc()
	s.logger.Debug("Upload routed", "address", req.Address, "size", req.Size, "disposition", disposition)

	c.JSON(http.StatusOK, RouteResponse{Disposition: disposition, Hint: disposition.Hint()})
}

// listProviders is a handler for the /providers endpoint.
func (s *HTTPServer) listProviders(c *gin.Context) {
	if s.providers == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no storage providers configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"providers": s.providers.Providers()})
}
