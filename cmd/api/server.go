package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/liamhowell4/budget-master-sub001/internal/interfaces/scheduler"
	"github.com/liamhowell4/budget-master-sub001/internal/shared/config"
	"github.com/liamhowell4/budget-master-sub001/internal/shared/middleware"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Handler      http.Handler
	Addr         string
	TLSEnabled   bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
	AllowedHosts []string
}

// StartServers creates and starts the main server and optional redirect server.
// Returns the main server and redirect server (nil if not enabled).
func StartServers(scfg ServerConfig) (*http.Server, *http.Server) {
	srv := newServer(scfg.Addr, scfg.Handler)

	var redirectSrv *http.Server
	if scfg.TLSEnabled && scfg.RedirectHTTP {
		redirectSrv = newServer(":80", middleware.RedirectHTTPS(scfg.AllowedHosts))
		go func() {
			log.Println("HTTP redirect server starting on :80")
			if err := redirectSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("HTTP redirect server error: %v", err)
			}
		}()
	}

	go func() {
		var err error
		if scfg.TLSEnabled {
			log.Printf("HTTPS server starting on %s", scfg.Addr)
			err = srv.ListenAndServeTLS(scfg.CertPath, scfg.KeyPath)
		} else {
			log.Printf("HTTP server starting on %s", scfg.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	return srv, redirectSrv
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// GracefulShutdown stops accepting requests, drains the scheduler and then
// releases dependencies and telemetry.
func GracefulShutdown(srv, redirectSrv *http.Server, sched *scheduler.Scheduler, deps *Dependencies, shutdownTelemetry func(context.Context) error, timeout time.Duration) {
	log.Println("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if redirectSrv != nil {
		if err := redirectSrv.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down HTTP redirect server: %v", err)
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down main server: %v", err)
	}

	if sched != nil {
		sched.Shutdown(timeout)
	}

	deps.Close()

	if shutdownTelemetry != nil {
		if err := shutdownTelemetry(ctx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}

	log.Println("Server stopped")
}

// NewServerConfigFromConfig creates ServerConfig from application config.
func NewServerConfigFromConfig(handler http.Handler, cfg *config.Config) ServerConfig {
	return ServerConfig{
		Handler:      handler,
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		TLSEnabled:   cfg.TLS.Enabled,
		CertPath:     cfg.TLS.CertPath,
		KeyPath:      cfg.TLS.KeyPath,
		RedirectHTTP: cfg.TLS.RedirectHTTP,
		AllowedHosts: cfg.Server.AllowedHosts,
	}
}
