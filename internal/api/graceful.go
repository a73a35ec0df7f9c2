package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// NewHTTPServer builds the ingress listener. Webhook deliveries are small,
// so a slow read means a stuck sender, not a big payload.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// NewHTTPSServer creates an HTTPS ingress listener with TLS 1.2 as floor.
func NewHTTPSServer(addr string, certFile, keyFile string, handler http.Handler) (*http.Server, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS13,
	}

	return &http.Server{
		Addr:      addr,
		Handler:   handler,
		TLSConfig: tlsConfig,
	}, nil
}

// NewHTTPSServerWithConfig creates an HTTPS ingress listener honoring the
// configured minimum TLS version. Anything other than "1.2" floors at 1.3.
func NewHTTPSServerWithConfig(addr string, certFile, keyFile, minVersion string, handler http.Handler) (*http.Server, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
	}

	switch minVersion {
	case "1.2":
		tlsConfig.MinVersion = tls.VersionTLS12
	default:
		tlsConfig.MinVersion = tls.VersionTLS13
	}

	return &http.Server{
		Addr:      addr,
		Handler:   handler,
		TLSConfig: tlsConfig,
	}, nil
}

// GracefulShutdown drains the HTTP server within the timeout.
func GracefulShutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return srv.Shutdown(ctx)
}

// SetupSignalHandler sets up OS signal handling for SIGINT and SIGTERM
func SetupSignalHandler() chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}

// WaitForSignal blocks until a termination signal arrives.
func WaitForSignal(ch chan os.Signal) os.Signal {
	return <-ch
}

// Shutdownable is anything the bridge must drain on the way down: the
// subscription, motion timers, the store.
type Shutdownable interface {
	Shutdown(ctx context.Context) error
}

// ShutdownWithComponents drains the server first so no new webhook work
// arrives, then shuts each component down with a share of the timeout.
func ShutdownWithComponents(srv *http.Server, timeout time.Duration, components []Shutdownable) error {
	if err := GracefulShutdown(srv, timeout); err != nil {
		return err
	}

	for _, comp := range components {
		ctx, cancel := context.WithTimeout(context.Background(), timeout/time.Duration(len(components)+1))
		if err := comp.Shutdown(ctx); err != nil {
			cancel()
			return err
		}
		cancel()
	}

	return nil
}
