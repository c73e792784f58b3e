package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"klinecollector/internal/collector"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server serves the control API and the progress feed.
type Server struct {
	addr   string
	router *gin.Engine
	logger *zap.Logger
}

type ServerConfig struct {
	Addr       string
	Collection Collection
	Symbols    SymbolCatalogue
	Defaults   func() collector.Config
	// Feed is mounted at /ws when set.
	Feed   http.Handler
	Logger *zap.Logger
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Collection == nil {
		return nil, errors.New("api server requires a collection")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Feed != nil {
		router.GET("/ws", gin.WrapH(cfg.Feed))
	}
	apiRouter := &Router{
		Collection: cfg.Collection,
		Symbols:    cfg.Symbols,
		Defaults:   cfg.Defaults,
		Logger:     logger,
	}
	apiRouter.Register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router, logger: logger}, nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("dur", time.Since(start)))
	}
}

func (s *Server) Addr() string {
	return s.addr
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
