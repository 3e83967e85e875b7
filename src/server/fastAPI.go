package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"market-pipeline/src/interfaces"
	"market-pipeline/src/logger"
	"market-pipeline/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// FastAPIServer
// -----------------------------------------------------------------------------

type FastAPIServer struct {
	Config   *models.MConfig
	Logger   *logger.Logger
	Pipeline interfaces.IPipeline
	engine   *gin.Engine
	http     *http.Server

	// WebSocket clients, owned by the hub loop
	clients     map[*Client]struct{}
	broadcast   chan *models.MRefreshBundle // Buffered queue
	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	done        chan struct{}
	stopOnce    sync.Once
	connections int
	connMutex   sync.RWMutex
}

var _ interfaces.IDataExchanger = (*FastAPIServer)(nil)

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewFastAPIServer(cfg *models.MConfig, pipeline interfaces.IPipeline, logger *logger.Logger) *FastAPIServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &FastAPIServer{
		Config:   cfg,
		Logger:   logger,
		Pipeline: pipeline,
		engine:   gin.New(),
		clients:  make(map[*Client]struct{}),
		// Queue size of 256 absorbs a refresh burst across symbols
		broadcast:  make(chan *models.MRefreshBundle, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		done:       make(chan struct{}),
	}
	s.engine.Use(gin.Recovery())

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	go s.handleWebsockets()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *FastAPIServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/config", s.getConfig)
	api.GET("/metrics", s.getMetrics)
	api.GET("/markets", s.getMarkets)
	api.GET("/bundle", s.getBundle)
	api.GET("/heatmap", s.getHeatmap)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mostly for tests.
func (s *FastAPIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *FastAPIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.http = &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	s.Logger.Info("Starting server on %s", addr)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		if s.http == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.http.Shutdown(ctx)
	})
	return err
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHealth(c *gin.Context) {
	var latest int64
	for _, symbol := range s.Pipeline.Symbols() {
		if b, ok := s.Pipeline.Latest(symbol); ok && b.Timestamp > latest {
			latest = b.Timestamp
		}
	}

	s.connMutex.RLock()
	connections := s.connections
	s.connMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"connections":   connections,
		"symbols":       s.Pipeline.Symbols(),
		"latest_update": latest,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"symbols":           s.Pipeline.Symbols(),
		"default_symbol":    s.Config.Exchange.DefaultSymbol,
		"periods":           models.AllPeriods(),
		"heatmap_timeframe": s.Config.Heatmap.Timeframe,
		"daily_timeframe":   s.Config.Pipeline.DailyTimeframe,
		"ma_windows":        s.Config.Pipeline.MAWindows,
		"refresh_interval":  s.Config.Pipeline.RefreshIntervalSeconds,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Pipeline.Metrics())
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getMarkets(c *gin.Context) {
	markets, err := s.Pipeline.Markets(c.Request.Context())
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, markets)
}

// -----------------------------------------------------------------------------

// getBundle returns the latest bundle, building one when the symbol is not
// refreshed on the schedule.
func (s *FastAPIServer) getBundle(c *gin.Context) {
	symbol := s.symbolParam(c)
	if b, ok := s.Pipeline.Latest(symbol); ok {
		c.JSON(http.StatusOK, b)
		return
	}

	b, err := s.Pipeline.Refresh(c.Request.Context(), symbol)
	if err != nil {
		s.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHeatmap(c *gin.Context) {
	symbol := s.symbolParam(c)
	period := c.DefaultQuery("period", string(models.Period1Month))

	res, err := s.Pipeline.Heatmap(c.Request.Context(), symbol, period)
	if err != nil {
		s.abort(c, err)
		return
	}

	code := http.StatusOK
	if res.Status == models.StatusFailed {
		code = http.StatusBadGateway
	}
	c.JSON(code, res)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) symbolParam(c *gin.Context) string {
	if symbol := normalizeSymbol(c.Query("symbol")); symbol != "" {
		return symbol
	}
	return s.Config.Exchange.DefaultSymbol
}

func (s *FastAPIServer) abort(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.Logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

// Methods for the websocket side live in hub.go
