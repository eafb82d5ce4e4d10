package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Rickardjd/Easy-IP/internal/logging"
	"github.com/Rickardjd/Easy-IP/internal/tracker"
)

// Config holds the server configuration
type Config struct {
	ListenAddr string

	// AutoScan enables the background scan schedule.
	AutoScan bool

	// AutoScanInterval is the schedule period, e.g. "5m".
	AutoScanInterval string
}

// Server serves the device inventory API.
type Server struct {
	config  *Config
	tracker *tracker.Tracker
	httpSrv *http.Server
	hub     *hub
	cron    *cron.Cron

	// mu guards the runtime auto-scan toggle and its cron entry.
	mu        sync.Mutex
	autoScan  bool
	cronEntry cron.EntryID
}

// New creates a new Server instance
func New(config *Config, tr *tracker.Tracker) (*Server, error) {
	if config.ListenAddr == "" {
		return nil, fmt.Errorf("listen address is required")
	}

	s := &Server{
		config:  config,
		tracker: tr,
		hub:     newHub(),
		cron:    cron.New(),
	}
	s.httpSrv = &http.Server{
		Addr:         config.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	if config.AutoScan {
		if err := s.scheduleAutoScan(config.AutoScanInterval); err != nil {
			return nil, err
		}
		s.autoScan = true
	}

	return s, nil
}

// Start starts the server and blocks until shutdown
func (s *Server) Start() error {
	logging.Info("Starting device inventory server",
		zap.String("addr", s.config.ListenAddr),
		zap.Bool("auto_scan", s.config.AutoScan),
		zap.String("auto_scan_interval", s.config.AutoScanInterval),
	)

	go s.hub.run()
	s.cron.Start()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(ctx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	cronCtx := s.cron.Stop()
	s.hub.close()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		logging.Error("HTTP shutdown error", zap.Error(err))
	}

	// Let a running scheduled scan finish within the deadline
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, a scheduled scan may have been cut short")
	}

	logging.Sync()
	return nil
}

// scheduleAutoScan registers the background scan job.
func (s *Server) scheduleAutoScan(interval string) error {
	if interval == "" {
		interval = "5m"
	}
	id, err := s.cron.AddFunc("@every "+interval, s.runScheduledScan)
	if err != nil {
		return fmt.Errorf("invalid auto-scan interval %q: %w", interval, err)
	}
	s.cronEntry = id
	return nil
}

// runScheduledScan performs one background scan. Losing the
// single-flight race to a manual scan is expected and quiet.
func (s *Server) runScheduledScan() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	report, err := s.tracker.Scan(ctx)
	if err != nil {
		if errors.Is(err, tracker.ErrScanInProgress) {
			logging.Debug("Skipping scheduled scan, another scan is running")
			return
		}
		logging.Error("Scheduled scan failed", zap.Error(err))
		return
	}

	logging.Info("Scheduled scan complete",
		zap.String("scan_id", report.Summary.ScanID),
		zap.Int("devices", report.DeviceCount),
	)
	s.hub.broadcastScan(report)
}

// setAutoScan enables or disables the schedule at runtime.
func (s *Server) setAutoScan(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled == s.autoScan {
		return nil
	}
	if enabled {
		if err := s.scheduleAutoScan(s.config.AutoScanInterval); err != nil {
			return err
		}
	} else {
		s.cron.Remove(s.cronEntry)
	}
	s.autoScan = enabled
	logging.Info("Auto-scan setting changed", zap.Bool("enabled", enabled))
	return nil
}
