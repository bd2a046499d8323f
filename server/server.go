// Package server exposes option pricing, strategy listings and backtest runs
// over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tantralabs/optionlab/logger"
)

const ShutdownTimeout = 5 * time.Second

type Server struct {
	engine  *gin.Engine
	server  *http.Server
	handler *Handler
}

func NewServer(addr string, handler *Handler) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(loggerMiddleware())

	s := &Server{
		engine:  engine,
		handler: handler,
		server: &http.Server{
			Addr:    addr,
			Handler: engine,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	h := s.handler

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api/v1")
	{
		api.POST("/options/price", h.Price)
		api.POST("/options/greeks", h.Greeks)
		api.POST("/options/implied-volatility", h.ImpliedVolatility)

		api.GET("/strategies", h.ListStrategies)
		api.GET("/strategies/:id", h.GetStrategy)

		api.POST("/backtests/run", h.RunBacktest)
		api.GET("/backtests", h.ListBacktests)
		api.GET("/backtests/:id", h.GetBacktest)
		api.GET("/backtests/:id/status", h.GetBacktestStatus)
		api.GET("/backtests/:id/equity-curve", h.GetEquityCurve)
		api.GET("/backtests/:id/trades", h.GetTrades)
		api.DELETE("/backtests/:id", h.DeleteBacktest)

		api.GET("/market-data/volatility/:symbol", h.GetVolatility)
	}
}

// Handler returns the routed engine, mostly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks until the server stops. A clean shutdown returns nil.
func (s *Server) Start() error {
	logger.Infof("API listening on %s\n", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running backtests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.handler.Close()
	return err
}

func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Infof("%s %s %d %v\n", c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
