package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ringlink/ringlink/internal/api"
	"github.com/ringlink/ringlink/internal/auth"
	"github.com/ringlink/ringlink/internal/config"
	"github.com/ringlink/ringlink/internal/events"
	"github.com/ringlink/ringlink/internal/logging"
	"github.com/ringlink/ringlink/internal/metrics"
	"github.com/ringlink/ringlink/internal/nodes"
	"github.com/ringlink/ringlink/internal/notify"
	"github.com/ringlink/ringlink/internal/poll"
	"github.com/ringlink/ringlink/internal/ring"
	"github.com/ringlink/ringlink/internal/store"
	"github.com/ringlink/ringlink/internal/subscription"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the RingLink bridge",
	Long: `Start the RingLink bridge in main mode.

This command starts the HTTP server that receives Ring webhook events,
runs device discovery and polling, and manages the OAuth credential
lifecycle.

Example:
  ringlink serve --config config.yaml --db ./data/ringlink.db

The server will start listening on the address configured in the config file.`,
	RunE: runServe,
}

var serveFlags struct {
	Host       string
	Port       int
	Timeout    time.Duration
	TLS        bool
	TLSCert    string
	TLSKey     string
	TLSVersion string
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
	serveCmd.Flags().DurationVar(&serveFlags.Timeout, "timeout", envDuration("SHUTDOWN_TIMEOUT", 30*time.Second), "Shutdown timeout")
	serveCmd.Flags().BoolVar(&serveFlags.TLS, "tls", false, "Enable TLS/HTTPS")
	serveCmd.Flags().StringVar(&serveFlags.TLSCert, "cert", "", "TLS certificate file path")
	serveCmd.Flags().StringVar(&serveFlags.TLSKey, "key", "", "TLS key file path")
	serveCmd.Flags().StringVar(&serveFlags.TLSVersion, "tls-version", "1.3", "Minimum TLS version (1.2 or 1.3)")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if globalFlags.Verbose {
		log.Println("Starting RingLink bridge...")
		log.Printf("Config path: %s", globalFlags.Config)
		log.Printf("Database path: %s", globalFlags.DBPath)
	}

	// Load configuration
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.SetDefaults(logging.LogLevel(cfg.Server.LogLevel), cfg.Server.LogFormat)

	// Apply CLI flags to config
	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}
	if serveFlags.TLS {
		cfg.Server.TLS.Enabled = true
	}
	if serveFlags.TLSCert != "" {
		cfg.Server.TLS.CertFile = serveFlags.TLSCert
	}
	if serveFlags.TLSKey != "" {
		cfg.Server.TLS.KeyFile = serveFlags.TLSKey
	}
	if serveFlags.TLSVersion != "" {
		cfg.Server.TLS.MinVersion = serveFlags.TLSVersion
	}
	// Shutdown timeout precedence: flag, then SHUTDOWN_TIMEOUT (the flag
	// default), then config.
	if cmd.Flags().Changed("timeout") || os.Getenv("SHUTDOWN_TIMEOUT") != "" {
		cfg.Server.ShutdownTimeout = serveFlags.Timeout
	}

	if cfg.Server.TLS.Enabled {
		if err := validateTLSConfig(cfg.Server.TLS); err != nil {
			return fmt.Errorf("TLS validation failed: %w", err)
		}
	}

	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = globalFlags.DBPath
	}
	sqliteStore, err := store.NewSQLiteStoreWithRetention(dbPath, cfg.Store.RetentionDays)
	if err != nil {
		return fmt.Errorf("failed to create SQLite store: %w", err)
	}

	if globalFlags.Verbose {
		log.Printf("Database initialized at: %s", dbPath)
	}

	// Notices: Telegram when configured, log-only otherwise.
	var board *notify.Board
	if cfg.Notify.Telegram.Enabled {
		board = notify.NewBoard(notify.TelegramSender(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID))
	} else {
		board = notify.NewBoard(nil)
	}

	// Credential lifecycle.
	creds := auth.NewCredentialStore(sqliteStore.Settings())
	authManager := auth.NewManager(cfg.OAuth, creds, board)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	if cfg.OAuth.TokenFile != "" {
		importer := auth.NewTokenImporter(cfg.OAuth.TokenFile, authManager)
		if err := importer.Watch(runCtx); err != nil {
			log.Printf("Token file watcher warning: %v", err)
		}
	}

	// Ring API and webhook subscription.
	client := ring.NewClient(cfg.Ring.BaseURL, authManager, ring.WithTimeout(cfg.Ring.Timeout))
	subs := subscription.NewManager(client, cfg.PostbackURL())

	// Node layer.
	m := metrics.NewMetrics("ringlink")
	reporter := nodes.NewLogReporter(m)
	registry := nodes.NewRegistry()
	discovery := nodes.NewDiscovery(client, registry, reporter, sqliteStore,
		cfg.Motion.DebounceWindow, subs.Subscribe)
	registry.Add(nodes.NewControllerNode(reporter, discovery.Run))

	// HTTP surface.
	dispatcher := events.NewDispatcher(registry, subs, sqliteStore, m)
	server := api.NewServer(cfg.Server, sqliteStore, registry, dispatcher, authManager, subs, m)
	server.AddShutdownHook(func(ctx context.Context) error {
		subs.Unsubscribe(ctx)
		registry.Each(func(n nodes.Node) {
			if mn, ok := n.(*nodes.MotionNode); ok {
				mn.Stop()
			}
		})
		return nil
	})

	// Initial discovery; the credential prompt flow handles the
	// unauthorized case, so a failure here is not fatal.
	if err := discovery.Run(runCtx); err != nil {
		log.Printf("Initial discovery warning: %v", err)
	}

	// Polling.
	poller := poll.NewPoller(registry, client,
		func(ctx context.Context) error { return subs.Subscribe(ctx, registry.DeviceNodeCount()) },
		cfg.Poll.ShortInterval, cfg.Poll.LongInterval, m,
		poll.WithLockWait(cfg.Poll.LockTimeout))
	poller.Start(runCtx)

	setupGracefulShutdown(server, cancelRun, cfg.Server.ShutdownTimeout)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	if cfg.Server.TLS.Enabled {
		log.Printf("Starting RingLink HTTPS server on %s", addr)
	} else {
		log.Printf("Starting RingLink HTTP server on %s", addr)
	}
	log.Printf("Database: %s (WAL mode enabled)", dbPath)

	if err := server.Run(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// validateTLSConfig validates TLS configuration
func validateTLSConfig(tls config.TLSConfig) error {
	if tls.CertFile == "" {
		return fmt.Errorf("TLS certificate file is required when TLS is enabled")
	}
	if tls.KeyFile == "" {
		return fmt.Errorf("TLS key file is required when TLS is enabled")
	}

	if _, err := os.Stat(tls.CertFile); os.IsNotExist(err) {
		return fmt.Errorf("TLS certificate file does not exist: %s", tls.CertFile)
	}
	if _, err := os.Stat(tls.KeyFile); os.IsNotExist(err) {
		return fmt.Errorf("TLS key file does not exist: %s", tls.KeyFile)
	}

	if tls.MinVersion != "" && tls.MinVersion != "1.2" && tls.MinVersion != "1.3" {
		return fmt.Errorf("TLS min_version must be either \"1.2\" or \"1.3\", got: %s", tls.MinVersion)
	}

	return nil
}

// setupGracefulShutdown handles graceful shutdown of all components
func setupGracefulShutdown(server *api.Server, cancelRun context.CancelFunc, timeout time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)

		// Stop pollers and watchers first so nothing schedules new work.
		cancelRun()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		log.Println("Shutting down server...")
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error during server shutdown: %v", err)
		}

		log.Println("Graceful shutdown completed")
		os.Exit(0)
	}()
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	return fallback
}
