package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/Rickardjd/Easy-IP/internal/discovery"
)

// memStore is an in-memory Store with an injectable save failure.
type memStore struct {
	records map[string]*DeviceRecord
	saveErr error
	saves   int
}

func (m *memStore) Load() (map[string]*DeviceRecord, error) {
	return m.records, nil
}

func (m *memStore) Save(records map[string]*DeviceRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.records = records
	return nil
}

func newTestRegistry(t *testing.T) (*Registry, *memStore) {
	t.Helper()
	st := &memStore{}
	r, err := Open(st, DefaultMissingThreshold)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return r, st
}

func camera(mac, ip string) *discovery.Device {
	return &discovery.Device{
		MAC:        mac,
		Kind:       discovery.KindCamera,
		ModelName:  "WV-S1234",
		DeviceName: "Camera",
		IP:         ip,
		SubnetMask: "255.255.255.0",
		Gateway:    "192.168.0.1",
		HTTPPort:   80,
		Mode:       discovery.ModeDHCP,
	}
}

func TestReconcileNewDevice(t *testing.T) {
	r, st := newTestRegistry(t)
	now := time.Now()

	sum, err := r.Reconcile([]*discovery.Device{camera("00:80:45:00:00:01", "192.168.0.10")}, now)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(sum.New) != 1 || sum.New[0] != "00:80:45:00:00:01" {
		t.Errorf("New = %v, want one entry", sum.New)
	}
	if sum.ScanID == "" {
		t.Error("ScanID is empty")
	}
	if st.saves != 1 {
		t.Errorf("store saves = %d, want 1", st.saves)
	}

	rec, err := r.Get("00:80:45:00:00:01")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !rec.FirstSeen.Equal(now) || !rec.LastSeen.Equal(now) {
		t.Errorf("FirstSeen/LastSeen = %v/%v, want %v", rec.FirstSeen, rec.LastSeen, now)
	}
	if rec.TotalDiscoveries != 1 {
		t.Errorf("TotalDiscoveries = %d, want 1", rec.TotalDiscoveries)
	}
	if len(rec.IPHistory) != 1 {
		t.Fatalf("IPHistory length = %d, want 1", len(rec.IPHistory))
	}
	if rec.IPHistory[0].PreviousIP != nil {
		t.Errorf("first history entry PreviousIP = %v, want nil", *rec.IPHistory[0].PreviousIP)
	}
	if got := r.StatusOf(rec, now); got != StatusActive {
		t.Errorf("StatusOf = %q, want %q", got, StatusActive)
	}
}

func TestReconcileUnchangedDevice(t *testing.T) {
	r, _ := newTestRegistry(t)
	t0 := time.Now()
	t1 := t0.Add(time.Hour)

	dev := camera("00:80:45:00:00:01", "192.168.0.10")
	if _, err := r.Reconcile([]*discovery.Device{dev}, t0); err != nil {
		t.Fatal(err)
	}
	sum, err := r.Reconcile([]*discovery.Device{dev}, t1)
	if err != nil {
		t.Fatal(err)
	}

	if len(sum.Updated) != 1 || len(sum.New) != 0 || len(sum.IPChanged) != 0 {
		t.Errorf("summary = %+v, want one updated", sum)
	}

	rec, _ := r.Get("00:80:45:00:00:01")
	if !rec.FirstSeen.Equal(t0) {
		t.Errorf("FirstSeen changed to %v", rec.FirstSeen)
	}
	if !rec.LastSeen.Equal(t1) {
		t.Errorf("LastSeen = %v, want %v", rec.LastSeen, t1)
	}
	if rec.TotalDiscoveries != 2 {
		t.Errorf("TotalDiscoveries = %d, want 2", rec.TotalDiscoveries)
	}
	if len(rec.IPHistory) != 1 {
		t.Errorf("IPHistory length = %d, want 1 for unchanged IP", len(rec.IPHistory))
	}
}

func TestReconcileIPChange(t *testing.T) {
	r, _ := newTestRegistry(t)
	t0 := time.Now()
	t1 := t0.Add(time.Hour)

	if _, err := r.Reconcile([]*discovery.Device{camera("00:80:45:00:00:01", "192.168.0.10")}, t0); err != nil {
		t.Fatal(err)
	}
	sum, err := r.Reconcile([]*discovery.Device{camera("00:80:45:00:00:01", "192.168.0.99")}, t1)
	if err != nil {
		t.Fatal(err)
	}

	if len(sum.IPChanged) != 1 {
		t.Fatalf("IPChanged = %v, want one entry", sum.IPChanged)
	}
	ch := sum.IPChanged[0]
	if ch.PreviousIP != "192.168.0.10" || ch.CurrentIP != "192.168.0.99" {
		t.Errorf("IPChange = %+v", ch)
	}

	rec, _ := r.Get("00:80:45:00:00:01")
	if rec.IP != "192.168.0.99" {
		t.Errorf("IP = %q, want 192.168.0.99", rec.IP)
	}
	if len(rec.IPHistory) != 2 {
		t.Fatalf("IPHistory length = %d, want 2", len(rec.IPHistory))
	}
	last := rec.IPHistory[1]
	if last.PreviousIP == nil || *last.PreviousIP != "192.168.0.10" {
		t.Errorf("history PreviousIP = %v, want 192.168.0.10", last.PreviousIP)
	}
	if got := r.StatusOf(rec, t1); got != StatusIPChanged {
		t.Errorf("StatusOf = %q, want %q", got, StatusIPChanged)
	}
}

func TestStatusThreshold(t *testing.T) {
	r, _ := newTestRegistry(t)
	t0 := time.Now()

	if _, err := r.Reconcile([]*discovery.Device{camera("00:80:45:00:00:01", "192.168.0.10")}, t0); err != nil {
		t.Fatal(err)
	}
	// An empty follow-up scan pushes the device out of the latest scan.
	if _, err := r.Reconcile(nil, t0.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	rec, _ := r.Get("00:80:45:00:00:01")
	tests := []struct {
		name string
		now  time.Time
		want Status
	}{
		{"just missed", t0.Add(2 * time.Minute), StatusOffline},
		{"just inside threshold", t0.Add(24*time.Hour - time.Minute), StatusOffline},
		{"exactly at threshold", t0.Add(24 * time.Hour), StatusOffline},
		{"past threshold", t0.Add(24*time.Hour + time.Minute), StatusMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.StatusOf(rec, tt.now); got != tt.want {
				t.Errorf("StatusOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReconcileRollbackOnSaveFailure(t *testing.T) {
	r, st := newTestRegistry(t)
	t0 := time.Now()

	if _, err := r.Reconcile([]*discovery.Device{camera("00:80:45:00:00:01", "192.168.0.10")}, t0); err != nil {
		t.Fatal(err)
	}

	st.saveErr = errors.New("disk full")
	_, err := r.Reconcile([]*discovery.Device{
		camera("00:80:45:00:00:01", "192.168.0.99"),
		camera("00:80:45:00:00:02", "192.168.0.11"),
	}, t0.Add(time.Hour))
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Reconcile() error = %v, want ErrPersistence", err)
	}

	// Registry state must be exactly as before the failed scan.
	rec, err := r.Get("00:80:45:00:00:01")
	if err != nil {
		t.Fatal(err)
	}
	if rec.IP != "192.168.0.10" {
		t.Errorf("IP = %q after rollback, want 192.168.0.10", rec.IP)
	}
	if rec.TotalDiscoveries != 1 {
		t.Errorf("TotalDiscoveries = %d after rollback, want 1", rec.TotalDiscoveries)
	}
	if _, err := r.Get("00:80:45:00:00:02"); !errors.Is(err, ErrNotFound) {
		t.Errorf("new device visible after rollback, err = %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Get("de:ad:be:ef:00:00"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestListSorting(t *testing.T) {
	r, _ := newTestRegistry(t)
	t0 := time.Now()

	batch := []*discovery.Device{
		camera("00:80:45:00:00:02", "192.168.0.20"),
		camera("00:80:45:00:00:01", "192.168.0.100"),
		camera("00:80:45:00:00:03", "192.168.0.9"),
	}
	if _, err := r.Reconcile(batch, t0); err != nil {
		t.Fatal(err)
	}

	byMAC := r.List(SortByMAC)
	if byMAC[0].MAC != "00:80:45:00:00:01" || byMAC[2].MAC != "00:80:45:00:00:03" {
		t.Errorf("SortByMAC order wrong: %s, %s, %s", byMAC[0].MAC, byMAC[1].MAC, byMAC[2].MAC)
	}

	// Numeric, not lexicographic: .9 < .20 < .100
	byIP := r.List(SortByIP)
	if byIP[0].IP != "192.168.0.9" || byIP[1].IP != "192.168.0.20" || byIP[2].IP != "192.168.0.100" {
		t.Errorf("SortByIP order wrong: %s, %s, %s", byIP[0].IP, byIP[1].IP, byIP[2].IP)
	}
}

func TestStats(t *testing.T) {
	r, _ := newTestRegistry(t)
	t0 := time.Now()

	recorder := camera("00:80:45:00:00:03", "192.168.0.10")
	recorder.Kind = discovery.KindRecorder
	recorder.Recorder = &discovery.RecorderInfo{Channels: 16}

	batch := []*discovery.Device{
		camera("00:80:45:00:00:01", "192.168.0.10"), // same IP as recorder
		camera("00:80:45:00:00:02", "192.168.0.11"),
		recorder,
	}
	if _, err := r.Reconcile(batch, t0); err != nil {
		t.Fatal(err)
	}

	// Second scan: one device moved, everything seen twice.
	t1 := t0.Add(time.Minute)
	batch[1] = camera("00:80:45:00:00:02", "192.168.0.99")
	if _, err := r.Reconcile(batch, t1); err != nil {
		t.Fatal(err)
	}

	st := r.Stats(t1)
	if st.Total != 3 || st.Cameras != 2 || st.Recorders != 1 {
		t.Errorf("counts = %d/%d/%d, want 3/2/1", st.Total, st.Cameras, st.Recorders)
	}
	if st.ByStatus[StatusActive] != 2 || st.ByStatus[StatusIPChanged] != 1 {
		t.Errorf("by_status = %v, want 2 active, 1 ip_changed", st.ByStatus)
	}
	if st.TotalDiscoveries != 6 {
		t.Errorf("TotalDiscoveries = %d, want 6", st.TotalDiscoveries)
	}
	if st.AvgDiscoveries != 2 {
		t.Errorf("AvgDiscoveries = %v, want 2", st.AvgDiscoveries)
	}
	if st.DevicesWithIPChanges != 1 {
		t.Errorf("DevicesWithIPChanges = %d, want 1", st.DevicesWithIPChanges)
	}
	macs, ok := st.IPConflicts["192.168.0.10"]
	if !ok || len(macs) != 2 {
		t.Errorf("IPConflicts = %v, want two claimants for 192.168.0.10", st.IPConflicts)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Reconcile([]*discovery.Device{camera("00:80:45:00:00:01", "192.168.0.10")}, time.Now()); err != nil {
		t.Fatal(err)
	}

	snap := r.Snapshot()
	snap["00:80:45:00:00:01"].IP = "10.0.0.1"

	rec, _ := r.Get("00:80:45:00:00:01")
	if rec.IP != "192.168.0.10" {
		t.Error("mutating a snapshot leaked into the registry")
	}
}
