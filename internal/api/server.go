package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ringlink/ringlink/internal/auth"
	"github.com/ringlink/ringlink/internal/config"
	"github.com/ringlink/ringlink/internal/errors"
	"github.com/ringlink/ringlink/internal/events"
	"github.com/ringlink/ringlink/internal/logging"
	"github.com/ringlink/ringlink/internal/metrics"
	"github.com/ringlink/ringlink/internal/nodes"
	"github.com/ringlink/ringlink/internal/store"
	"github.com/ringlink/ringlink/internal/subscription"
)

// Server represents the HTTP server: webhook ingress, OAuth callback, and
// the operator surface.
type Server struct {
	router      *gin.Engine
	config      config.ServerConfig
	store       store.Store
	registry    *nodes.Registry
	dispatcher  *events.Dispatcher
	authManager *auth.Manager
	subs        *subscription.Manager
	metrics     *metrics.Metrics
	logger      *logging.Logger
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
	tlsConfig   config.TLSConfig

	shutdownHooks []func(ctx context.Context) error
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates the HTTP server around the assembled components.
func NewServer(cfg config.ServerConfig, st store.Store, registry *nodes.Registry,
	dispatcher *events.Dispatcher, authManager *auth.Manager,
	subs *subscription.Manager, m *metrics.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)

	logger := logging.NewLogger()
	rateLimiter := newIPRateLimiter(time.Minute/1000, 100)

	server := &Server{
		router:      gin.New(),
		config:      cfg,
		store:       st,
		registry:    registry,
		dispatcher:  dispatcher,
		authManager: authManager,
		subs:        subs,
		metrics:     m,
		logger:      logger,
		rateLimiter: rateLimiter,
		tlsConfig:   cfg.TLS,
	}
	server.router.HandleMethodNotAllowed = true

	server.router.Use(gin.Recovery())
	server.router.Use(rateLimitMiddleware(rateLimiter))
	server.router.Use(bodyLimitMiddleware(1 << 20))
	server.router.Use(metrics.Middleware(m, logger))
	server.router.Use(loggingMiddleware(logger))

	server.setupRoutes()
	return server
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}

		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := time.Since(start).Seconds()
		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", duration,
		)
	}
}

// AddShutdownHook registers extra work for Shutdown (webhook unsubscribe,
// poller stop). Hooks run concurrently with the store close.
func (s *Server) AddShutdownHook(hook func(ctx context.Context) error) {
	s.shutdownHooks = append(s.shutdownHooks, hook)
}

func (s *Server) setupRoutes() {
	// Webhook ingress and reachability probes. The push service calls
	// POST /event; GET /test and GET / answer external reachability checks.
	s.router.POST("/event", s.dispatcher.Handle)
	s.router.GET("/test", s.handleTest)
	s.router.GET("/", s.handleRoot)

	// OAuth authorization-code callback.
	s.router.GET("/oauth/callback", s.handleOAuthCallback)

	// Operator surface.
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/nodes", s.handleListNodes)
	s.router.GET("/devices", s.handleListDevices)
	s.router.POST("/nodes/:address/cmd/:cmd", s.handleNodeCommand)
}

// Run starts the HTTP or HTTPS server based on TLS configuration
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	if s.tlsConfig.Enabled {
		return s.RunTLS()
	}

	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// RunTLS starts the HTTPS server with TLS configuration
func (s *Server) RunTLS() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	s.logger.Info("starting HTTPS server", "addr", addr, "cert_file", s.tlsConfig.CertFile, "min_version", s.tlsConfig.MinVersion)

	srv, err := NewHTTPSServerWithConfig(addr, s.tlsConfig.CertFile, s.tlsConfig.KeyFile, s.tlsConfig.MinVersion, s.router)
	if err != nil {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	s.httpServer = srv

	return s.httpServer.ListenAndServe()
}

// StartWithServer starts the server with a pre-configured http.Server
func (s *Server) StartWithServer(srv *http.Server) error {
	s.httpServer = srv
	s.logger.Info("starting HTTP server", "addr", srv.Addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server and its components.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	var wg sync.WaitGroup
	errs := make(chan error, len(s.shutdownHooks)+2)

	if s.httpServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info("shutting down HTTP server")
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.logger.Error("HTTP server shutdown error", "error", err.Error())
				errs <- &errors.ErrServerShutdown{Err: err}
			}
		}()
	}

	for _, hook := range s.shutdownHooks {
		wg.Add(1)
		go func(hook func(ctx context.Context) error) {
			defer wg.Done()
			if err := hook(ctx); err != nil {
				errs <- err
			}
		}(hook)
	}

	if s.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.Close(); err != nil {
				errs <- fmt.Errorf("store close: %w", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(errs)
	var errList []error
	for err := range errs {
		if err != nil {
			errList = append(errList, err)
		}
	}
	if len(errList) > 0 {
		return fmt.Errorf("shutdown errors: %v", errList)
	}

	s.logger.Info("graceful shutdown completed")
	return nil
}

// handleRoot answers reachability checks from the push service.
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"service": "ringlink", "status": "ok"})
}

// handleTest answers the external reachability probe used during setup.
func (s *Server) handleTest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleHealth returns health status
func (s *Server) handleHealth(c *gin.Context) {
	_, subscribed := s.subs.Active()
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"nodes":      s.registry.DeviceNodeCount(),
		"subscribed": subscribed,
		"authorized": !s.authManager.CodeExpected(),
	})
}

// handleOAuthCallback completes the browser authorization flow.
func (s *Server) handleOAuthCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	if err := s.authManager.ExchangeAuthCode(c.Request.Context(), code, state); err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "authorization failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "authorized"})
}

// handleListNodes returns the registered nodes.
func (s *Server) handleListNodes(c *gin.Context) {
	type nodeInfo struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Kind    string `json:"kind"`
	}
	out := []nodeInfo{}
	s.registry.Each(func(n nodes.Node) {
		out = append(out, nodeInfo{Address: n.Address(), Name: n.Name(), Kind: n.Kind()})
	})
	c.JSON(http.StatusOK, out)
}

// handleListDevices returns the cached device listing from discovery.
func (s *Server) handleListDevices(c *gin.Context) {
	devices, err := s.store.ListDevices()
	if err != nil {
		s.logger.ErrorWithContext(c.Request.Context(), "device listing failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, devices)
}

// handleNodeCommand routes one command into a node's dispatch table.
func (s *Server) handleNodeCommand(c *gin.Context) {
	address := c.Param("address")
	cmd := nodes.Command(c.Param("cmd"))

	err := s.registry.Dispatch(c.Request.Context(), address, cmd)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.IsNodeNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.IsUnknownCommand(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.ErrorWithContext(c.Request.Context(), "node command failed",
			"address", address, "cmd", string(cmd), "error", err.Error())
		s.metrics.RecordError("node_command", "/nodes/:address/cmd/:cmd", "POST")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
