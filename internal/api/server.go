// Package api exposes the engine's external interface (spec §6) over HTTP
// using gin, the way the rest of the stack fronts its services with a gin
// router wired through fx.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/abdoElHodaky/energyauction/internal/auction"
	"github.com/abdoElHodaky/energyauction/internal/config"
	"github.com/abdoElHodaky/energyauction/internal/validation"
)

// Server is the gin-backed HTTP surface over the auction engine.
type Server struct {
	engine    *auction.Engine
	router    *gin.Engine
	http      *http.Server
	validator *validation.Validator
}

// NewServer builds the gin router and registers every route named in spec
// §6's external-interface list.
func NewServer(cfg *config.Config, engine *auction.Engine) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Content-Type", "X-Trader"},
	}))

	limiter := newTraderLimiter(rate.Limit(5), 10)

	s := &Server{engine: engine, router: router, validator: validation.NewValidator()}

	router.GET("/health", s.handleHealth)
	router.GET("/snapshot", s.handleSnapshot)
	router.POST("/bids", limiter.middleware(), s.handleSubmitBid)
	router.POST("/asks", limiter.middleware(), s.handleSubmitAsk)
	router.POST("/roll", s.handleRoll)
	router.POST("/buckets/:bucketID/trades/:tradeID/deliver", s.handleMarkDelivered)
	router.GET("/buckets/:bucketID/status", s.handleBucketStatus)
	router.GET("/buckets/:bucketID/trades", s.handleTradeBucket)
	router.GET("/buckets/last", s.handleLastTradeBucket)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Router exposes the underlying gin engine, e.g. for tests that drive
// requests with httptest.
func (s *Server) Router() *gin.Engine { return s.router }

// RegisterLifecycle hooks the HTTP server into fx's start/stop sequence.
func RegisterLifecycle(lc fx.Lifecycle, s *Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("addr", s.http.Addr))
			go func() {
				if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			logger.Info("stopping HTTP server")
			return s.http.Shutdown(shutdownCtx)
		},
	})
}

// Module wires the HTTP server into an fx application.
var Module = fx.Options(
	fx.Provide(NewServer),
	fx.Invoke(RegisterLifecycle),
)
