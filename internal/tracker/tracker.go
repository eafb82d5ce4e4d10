// Package tracker orchestrates discovery scans against the registry.
// It enforces single-flight scanning: concurrent triggers (CLI, web
// API, scheduler) never overlap, the loser gets ErrScanInProgress.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Rickardjd/Easy-IP/internal/discovery"
	"github.com/Rickardjd/Easy-IP/internal/logging"
	"github.com/Rickardjd/Easy-IP/internal/registry"
)

// ErrScanInProgress reports a scan trigger that lost the single-flight
// race. The caller should surface it, not retry.
var ErrScanInProgress = errors.New("tracker: scan already in progress")

// Scanner runs one discovery pass. *discovery.Session implements it.
type Scanner interface {
	Run(ctx context.Context) (*discovery.Result, error)
}

// Report is the outcome of one tracked scan.
type Report struct {
	Summary      *registry.ChangeSummary `json:"summary"`
	DeviceCount  int                     `json:"device_count"`
	DecodeErrors int                     `json:"decode_errors"`
	Elapsed      time.Duration           `json:"elapsed"`
	StartedAt    time.Time               `json:"started_at"`
}

// Tracker serializes scans and feeds their results to the registry.
type Tracker struct {
	registry *registry.Registry
	scanner  Scanner

	mu       sync.Mutex
	scanning bool
	last     *Report
}

// New creates a tracker over reg using scanner for discovery passes.
func New(reg *registry.Registry, scanner Scanner) *Tracker {
	return &Tracker{registry: reg, scanner: scanner}
}

// Scan runs one discovery pass and reconciles the results. Only one
// scan runs at a time; the flag is held across the whole pass but the
// mutex itself is never held during I/O.
func (t *Tracker) Scan(ctx context.Context) (*Report, error) {
	t.mu.Lock()
	if t.scanning {
		t.mu.Unlock()
		return nil, ErrScanInProgress
	}
	t.scanning = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.scanning = false
		t.mu.Unlock()
	}()

	started := time.Now()
	result, err := t.scanner.Run(ctx)
	if err != nil {
		logging.Error("Discovery pass failed", zap.Error(err))
		return nil, err
	}

	summary, err := t.registry.Reconcile(result.Devices, started)
	if err != nil {
		logging.Error("Reconciliation failed", zap.Error(err))
		return nil, err
	}

	report := &Report{
		Summary:      summary,
		DeviceCount:  len(result.Devices),
		DecodeErrors: result.Errors,
		Elapsed:      time.Since(started),
		StartedAt:    started,
	}

	t.mu.Lock()
	t.last = report
	t.mu.Unlock()

	return report, nil
}

// Scanning reports whether a scan is currently running.
func (t *Tracker) Scanning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scanning
}

// LastReport returns the most recent completed report, or nil before
// the first scan finishes.
func (t *Tracker) LastReport() *Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Registry exposes the underlying registry for read paths.
func (t *Tracker) Registry() *registry.Registry {
	return t.registry
}
