package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/abdoElHodaky/energyauction/internal/auctionerr"
)

type submitBidRequest struct {
	Trader string `json:"trader" binding:"required"`
	Energy uint64 `json:"energy" validate:"amount"`
	Price  uint64 `json:"price" validate:"price"`
	Value  uint64 `json:"value" validate:"amount"`
}

type submitAskRequest struct {
	Trader string `json:"trader" binding:"required"`
	Energy uint64 `json:"energy" validate:"amount"`
	Price  uint64 `json:"price" validate:"price"`
}

type rollRequest struct {
	Caller string `json:"caller" binding:"required"`
}

type markDeliveredRequest struct {
	Caller string `json:"caller" binding:"required"`
}

func (s *Server) handleSubmitBid(c *gin.Context) {
	var req submitBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validator.Validate(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offerID, err := s.engine.SubmitBid(req.Trader, req.Energy, req.Price, req.Value)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"offer_id": offerID})
}

func (s *Server) handleSubmitAsk(c *gin.Context) {
	var req submitAskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validator.Validate(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offerID, err := s.engine.SubmitAsk(req.Trader, req.Energy, req.Price)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"offer_id": offerID})
}

func (s *Server) handleRoll(c *gin.Context) {
	var req rollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.Roll(req.Caller); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"current_bucket_id": s.engine.CurrentBucketID()})
}

func (s *Server) handleMarkDelivered(c *gin.Context) {
	bucketID, tradeID, ok := parseBucketTrade(c)
	if !ok {
		return
	}
	var req markDeliveredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.MarkDelivered(req.Caller, bucketID, tradeID); err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "supplied"})
}

func (s *Server) handleBucketStatus(c *gin.Context) {
	bucketID, ok := parseUintParam(c, "bucketID")
	if !ok {
		return
	}
	status, err := s.engine.BucketStatus(bucketID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bucket_id": bucketID, "status": status.String()})
}

func (s *Server) handleTradeBucket(c *gin.Context) {
	bucketID, ok := parseUintParam(c, "bucketID")
	if !ok {
		return
	}
	tb, err := s.engine.TradeBucketOf(bucketID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bucket_id":      bucketID,
		"clearing_price": tb.ClearingPrice,
		"trades":         tb.Trades,
	})
}

func (s *Server) handleLastTradeBucket(c *gin.Context) {
	id, tb, ok := s.engine.LastTradeBucket()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no bucket has been rolled yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bucket_id":      id,
		"clearing_price": tb.ClearingPrice,
		"trade_count":    len(tb.Trades),
	})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	snap := s.engine.Snapshot()

	buckets := make([]gin.H, 0, len(snap.Buckets))
	for _, b := range snap.Buckets {
		buckets = append(buckets, gin.H{
			"bucket_id":      b.BucketID,
			"status":         b.Status.String(),
			"clearing_price": b.ClearingPrice,
			"trade_count":    b.TradeCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"owner":             snap.Owner,
		"current_bucket_id": snap.CurrentBucketID,
		"escrow_held":       snap.EscrowHeld,
		"buckets":           buckets,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseUintParam(c *gin.Context, name string) (uint64, bool) {
	v, err := parseUint(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a non-negative integer"})
		return 0, false
	}
	return v, true
}

func parseBucketTrade(c *gin.Context) (uint64, uint64, bool) {
	bucketID, ok := parseUintParam(c, "bucketID")
	if !ok {
		return 0, 0, false
	}
	tradeID, ok := parseUintParam(c, "tradeID")
	if !ok {
		return 0, 0, false
	}
	return bucketID, tradeID, true
}

func writeEngineError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch auctionerr.CodeOf(err) {
	case auctionerr.InvalidOrder, auctionerr.InvalidTrade:
		status = http.StatusBadRequest
	case auctionerr.Unauthorized:
		status = http.StatusForbidden
	case auctionerr.TooEarly, auctionerr.AlreadySupplied, auctionerr.RollInProgress:
		status = http.StatusConflict
	case auctionerr.NotFound:
		status = http.StatusNotFound
	case auctionerr.LedgerFailure:
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
