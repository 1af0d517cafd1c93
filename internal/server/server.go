// Package server exposes the credit engine over HTTP: balance and gate
// reads, allocation management, checkout, and generation recovery.
package server

import (
	"context"
	"net/http"
	"time"

	allocationdomain "github.com/Tao119/eurekode-sub004/internal/allocation/domain"
	checkoutdomain "github.com/Tao119/eurekode-sub004/internal/checkout/domain"
	"github.com/Tao119/eurekode-sub004/internal/config"
	creditdomain "github.com/Tao119/eurekode-sub004/internal/credit/domain"
	gendomain "github.com/Tao119/eurekode-sub004/internal/generation/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log.Named("http")))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	creditSvc     creditdomain.Service
	allocationSvc allocationdomain.Service
	checkoutSvc   checkoutdomain.Service
	generationSvc gendomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	CreditSvc     creditdomain.Service
	AllocationSvc allocationdomain.Service
	CheckoutSvc   checkoutdomain.Service
	GenerationSvc gendomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		creditSvc:     p.CreditSvc,
		allocationSvc: p.AllocationSvc,
		checkoutSvc:   p.CheckoutSvc,
		generationSvc: p.GenerationSvc,
	}

	svc.registerCreditRoutes()
	svc.registerConversationRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerCreditRoutes() {
	credits := s.engine.Group("/credits", ActorRequired())

	credits.GET("/balance", s.GetBalance)

	credits.GET("/allocation", s.ListAllocations)
	credits.POST("/allocation", s.AllocateDirect)
	credits.GET("/allocation/request", s.ListAllocationRequests)
	credits.POST("/allocation/request", s.CreateAllocationRequest)
	credits.PATCH("/allocation/request", s.ReviewAllocationRequest)

	credits.GET("/checkout", s.ListCheckoutPacks)
	credits.POST("/checkout", s.CreateCheckoutSession)

	// Provider webhook boundary; the ref is the shared secret.
	s.engine.POST("/credits/checkout/:ref/complete", s.CompleteCheckoutSession)
}

func (s *Server) registerConversationRoutes() {
	conversations := s.engine.Group("/conversations", ActorRequired())

	conversations.GET("/:id/recovery", s.GetGenerationRecovery)
}
