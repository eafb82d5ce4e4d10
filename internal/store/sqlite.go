package store

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Rickardjd/Easy-IP/internal/registry"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore persists the registry in a SQLite database. Snapshots
// are replaced wholesale inside one transaction, matching the
// registry's all-or-nothing reconciliation contract.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &SQLiteStore{db: db, path: path}
	if err := st.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return st, nil
}

func (st *SQLiteStore) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = st.db.Exec(string(schema))
	return err
}

// Close closes the database connection.
func (st *SQLiteStore) Close() error {
	return st.db.Close()
}

// Load reads every device record and its IP history.
func (st *SQLiteStore) Load() (map[string]*registry.DeviceRecord, error) {
	rows, err := st.db.Query(`
		SELECT mac, kind, serial_number, model_name, device_name, firmware,
		       ip, subnet_mask, gateway, http_port, network_mode,
		       channels, capacity, first_seen, last_seen, total_discoveries
		FROM devices
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	records := make(map[string]*registry.DeviceRecord)
	for rows.Next() {
		var rec registry.DeviceRecord
		var firstSeen, lastSeen string
		if err := rows.Scan(
			&rec.MAC, &rec.Kind, &rec.SerialNumber, &rec.ModelName, &rec.DeviceName, &rec.Firmware,
			&rec.IP, &rec.SubnetMask, &rec.Gateway, &rec.HTTPPort, &rec.Mode,
			&rec.Channels, &rec.Capacity, &firstSeen, &lastSeen, &rec.TotalDiscoveries,
		); err != nil {
			return nil, fmt.Errorf("failed to scan device row: %w", err)
		}
		if rec.FirstSeen, err = time.Parse(time.RFC3339Nano, firstSeen); err != nil {
			return nil, fmt.Errorf("bad first_seen for %s: %w", rec.MAC, err)
		}
		if rec.LastSeen, err = time.Parse(time.RFC3339Nano, lastSeen); err != nil {
			return nil, fmt.Errorf("bad last_seen for %s: %w", rec.MAC, err)
		}
		records[rec.MAC] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}

	if err := st.loadHistory(records); err != nil {
		return nil, err
	}
	return records, nil
}

func (st *SQLiteStore) loadHistory(records map[string]*registry.DeviceRecord) error {
	rows, err := st.db.Query(`
		SELECT mac, ip, timestamp, previous_ip
		FROM ip_history
		ORDER BY mac, id
	`)
	if err != nil {
		return fmt.Errorf("failed to query ip history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var mac, ip, ts string
		var prev sql.NullString
		if err := rows.Scan(&mac, &ip, &ts, &prev); err != nil {
			return fmt.Errorf("failed to scan history row: %w", err)
		}
		rec, ok := records[mac]
		if !ok {
			continue // orphan row, skip
		}
		entry := registry.IPHistoryEntry{IP: ip}
		if entry.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return fmt.Errorf("bad history timestamp for %s: %w", mac, err)
		}
		if prev.Valid {
			p := prev.String
			entry.PreviousIP = &p
		}
		rec.IPHistory = append(rec.IPHistory, entry)
	}
	return rows.Err()
}

// Save replaces the stored snapshot inside one transaction.
func (st *SQLiteStore) Save(records map[string]*registry.DeviceRecord) error {
	tx, err := st.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM ip_history`); err != nil {
		return fmt.Errorf("failed to clear ip history: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM devices`); err != nil {
		return fmt.Errorf("failed to clear devices: %w", err)
	}

	devStmt, err := tx.Prepare(`
		INSERT INTO devices (
			mac, kind, serial_number, model_name, device_name, firmware,
			ip, subnet_mask, gateway, http_port, network_mode,
			channels, capacity, first_seen, last_seen, total_discoveries
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare device insert: %w", err)
	}
	defer devStmt.Close()

	histStmt, err := tx.Prepare(`
		INSERT INTO ip_history (mac, ip, timestamp, previous_ip)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare history insert: %w", err)
	}
	defer histStmt.Close()

	for _, rec := range records {
		_, err := devStmt.Exec(
			rec.MAC, string(rec.Kind), rec.SerialNumber, rec.ModelName, rec.DeviceName, rec.Firmware,
			rec.IP, rec.SubnetMask, rec.Gateway, rec.HTTPPort, string(rec.Mode),
			rec.Channels, rec.Capacity,
			rec.FirstSeen.UTC().Format(time.RFC3339Nano),
			rec.LastSeen.UTC().Format(time.RFC3339Nano),
			rec.TotalDiscoveries,
		)
		if err != nil {
			return fmt.Errorf("failed to insert device %s: %w", rec.MAC, err)
		}

		for _, entry := range rec.IPHistory {
			var prev interface{}
			if entry.PreviousIP != nil {
				prev = *entry.PreviousIP
			}
			if _, err := histStmt.Exec(rec.MAC, entry.IP, entry.Timestamp.UTC().Format(time.RFC3339Nano), prev); err != nil {
				return fmt.Errorf("failed to insert history for %s: %w", rec.MAC, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}
