package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Rickardjd/Easy-IP/internal/discovery"
	"github.com/Rickardjd/Easy-IP/internal/registry"
)

type memStore struct {
	records map[string]*registry.DeviceRecord
}

func (m *memStore) Load() (map[string]*registry.DeviceRecord, error) { return m.records, nil }
func (m *memStore) Save(records map[string]*registry.DeviceRecord) error {
	m.records = records
	return nil
}

// fakeScanner returns canned devices, optionally blocking until
// release is closed so tests can hold a scan open.
type fakeScanner struct {
	devices []*discovery.Device
	err     error
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (f *fakeScanner) Run(ctx context.Context) (*discovery.Result, error) {
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &discovery.Result{Devices: f.devices}, nil
}

func newTestTracker(t *testing.T, s Scanner) *Tracker {
	t.Helper()
	reg, err := registry.Open(&memStore{}, registry.DefaultMissingThreshold)
	if err != nil {
		t.Fatal(err)
	}
	return New(reg, s)
}

func TestScanReconciles(t *testing.T) {
	scanner := &fakeScanner{
		devices: []*discovery.Device{
			{MAC: "00:80:45:00:00:01", Kind: discovery.KindCamera, IP: "192.168.0.10"},
			{MAC: "00:80:45:00:00:02", Kind: discovery.KindCamera, IP: "192.168.0.11"},
		},
	}
	tr := newTestTracker(t, scanner)

	report, err := tr.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if report.DeviceCount != 2 {
		t.Errorf("DeviceCount = %d, want 2", report.DeviceCount)
	}
	if len(report.Summary.New) != 2 {
		t.Errorf("Summary.New = %v, want 2 entries", report.Summary.New)
	}
	if got := tr.LastReport(); got != report {
		t.Error("LastReport() did not return the latest report")
	}
	if tr.Scanning() {
		t.Error("Scanning() = true after scan completed")
	}
}

func TestScanSingleFlight(t *testing.T) {
	scanner := &fakeScanner{
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	tr := newTestTracker(t, scanner)

	done := make(chan error, 1)
	go func() {
		_, err := tr.Scan(context.Background())
		done <- err
	}()
	<-scanner.started

	if !tr.Scanning() {
		t.Error("Scanning() = false while a scan is held open")
	}
	if _, err := tr.Scan(context.Background()); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("concurrent Scan() error = %v, want ErrScanInProgress", err)
	}

	close(scanner.release)
	if err := <-done; err != nil {
		t.Fatalf("first Scan() error = %v", err)
	}

	// The flag must clear once the scan finishes.
	if _, err := tr.Scan(context.Background()); err != nil {
		t.Errorf("follow-up Scan() error = %v", err)
	}
}

func TestScanPropagatesScannerError(t *testing.T) {
	scanErr := errors.New("socket error")
	tr := newTestTracker(t, &fakeScanner{err: scanErr})

	if _, err := tr.Scan(context.Background()); !errors.Is(err, scanErr) {
		t.Errorf("Scan() error = %v, want %v", err, scanErr)
	}
	if tr.Scanning() {
		t.Error("Scanning() = true after failed scan")
	}
	if tr.LastReport() != nil {
		t.Error("LastReport() set after failed scan")
	}

	// A failed scan must not poison the single-flight flag.
	tr2 := newTestTracker(t, &fakeScanner{})
	if _, err := tr2.Scan(context.Background()); err != nil {
		t.Errorf("Scan() after failure error = %v", err)
	}
}

func TestScanTimestamps(t *testing.T) {
	tr := newTestTracker(t, &fakeScanner{
		devices: []*discovery.Device{{MAC: "00:80:45:00:00:01", IP: "192.168.0.10"}},
	})

	before := time.Now()
	report, err := tr.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.StartedAt.Before(before) {
		t.Errorf("StartedAt = %v, before test start %v", report.StartedAt, before)
	}

	rec, err := tr.Registry().Get("00:80:45:00:00:01")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.FirstSeen.Equal(report.StartedAt) {
		t.Errorf("record FirstSeen = %v, want scan start %v", rec.FirstSeen, report.StartedAt)
	}
}
