// Package store provides storage backends for RetailPipe.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/RetailPipe/RetailPipe/internal/models"
	"github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
	// DefaultBusyTimeoutMS bounds how long a statement blocks on a busy
	// database before surfacing as a failure.
	DefaultBusyTimeoutMS = 5000
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is the SQLite implementation of Store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given options.
// The DSN should be a file path to the SQLite database file; the
// directory is created if it doesn't exist. ":memory:" is accepted for
// hermetic tests.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Error("Failed to create database directory", "error", err, "dir", dir)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	connDSN := fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL", dsn, DefaultBusyTimeoutMS)
	inMemory := dsn == ":memory:"
	if inMemory {
		connDSN = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite3", connDSN)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if inMemory {
		// A pooled second connection to :memory: would see an empty
		// database; pin the pool to one connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// isSQLiteConstraint reports whether the error is a unique-constraint
// violation.
func isSQLiteConstraint(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return false
}

func (s *SQLiteStore) ListRetailers() ([]models.Retailer, error) {
	rows, err := s.db.Query("SELECT " + retailerSelect() + " FROM retailers ORDER BY id")
	if err != nil {
		slog.Error("SQLiteStore ListRetailers query failed", "error", err)
		return nil, fmt.Errorf("failed to query retailers: %w", err)
	}
	defer rows.Close()

	var retailers []models.Retailer
	for rows.Next() {
		r, err := scanRetailer(rows)
		if err != nil {
			slog.Error("SQLiteStore ListRetailers scan failed", "error", err)
			return nil, err
		}
		retailers = append(retailers, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate retailer rows: %w", err)
	}
	slog.Debug("SQLiteStore ListRetailers succeeded", "count", len(retailers))
	return retailers, nil
}

func (s *SQLiteStore) GetRetailer(name string) (*models.Retailer, error) {
	rows, err := s.db.Query("SELECT "+retailerSelect()+" FROM retailers WHERE retailer = ? COLLATE NOCASE LIMIT 1", name)
	if err != nil {
		slog.Error("SQLiteStore GetRetailer query failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to query retailer %s: %w", name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		slog.Debug("SQLiteStore GetRetailer not found", "name", name)
		return nil, rows.Err()
	}
	r, err := scanRetailer(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) AddRetailer(r models.Retailer) error {
	if strings.TrimSpace(r.Name) == "" {
		return models.ErrEmptyName
	}
	cols := []string{"retailer"}
	placeholders := []string{"?"}
	args := []interface{}{r.Name}
	for _, col := range retailerColumns {
		if v, ok := r.Fields[col]; ok {
			cols = append(cols, col)
			placeholders = append(placeholders, "?")
			args = append(args, v)
		}
	}
	query := fmt.Sprintf("INSERT INTO retailers (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.Exec(query, args...); err != nil {
		if isSQLiteConstraint(err) {
			slog.Warn("SQLiteStore AddRetailer duplicate", "name", r.Name)
			return models.ErrDuplicate
		}
		slog.Error("SQLiteStore AddRetailer failed", "error", err, "name", r.Name)
		return fmt.Errorf("failed to insert retailer %s: %w", r.Name, err)
	}
	slog.Debug("SQLiteStore AddRetailer succeeded", "name", r.Name)
	return nil
}

func (s *SQLiteStore) UpdateRetailerFields(name string, updates []models.FieldUpdate) (int, error) {
	changed := 0
	for _, u := range updates {
		if !IsRetailerColumn(u.Column) {
			continue
		}
		// Column names come from the fixed allow-list above, never from
		// user input, so interpolating the identifier is safe.
		query := fmt.Sprintf("UPDATE retailers SET %s = ? WHERE retailer = ? COLLATE NOCASE", u.Column)
		res, err := s.db.Exec(query, u.Value, name)
		if err != nil {
			slog.Error("SQLiteStore UpdateRetailerFields failed", "error", err, "name", name, "column", u.Column)
			return changed, fmt.Errorf("failed to update %s for %s: %w", u.Column, name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			changed++
		}
	}
	slog.Debug("SQLiteStore UpdateRetailerFields succeeded", "name", name, "changed", changed)
	return changed, nil
}

func (s *SQLiteStore) ListTroubleshooting() ([]models.TroubleshootingEntry, error) {
	rows, err := s.db.Query("SELECT question, answer FROM troubleshooting ORDER BY id")
	if err != nil {
		slog.Error("SQLiteStore ListTroubleshooting query failed", "error", err)
		return nil, fmt.Errorf("failed to query troubleshooting: %w", err)
	}
	defer rows.Close()

	var entries []models.TroubleshootingEntry
	for rows.Next() {
		var e models.TroubleshootingEntry
		if err := rows.Scan(&e.Question, &e.Answer); err != nil {
			return nil, fmt.Errorf("failed to scan troubleshooting row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) AddScanEvent(e models.ScanEvent) error {
	if e.Count <= 0 {
		return models.ErrInvalidCount
	}
	_, err := s.db.Exec(
		"INSERT INTO scan_events (retailer, scan_date, scan_count) VALUES (?, ?, ?)",
		e.Retailer, e.Date.Format(dateLayout), e.Count,
	)
	if err != nil {
		slog.Error("SQLiteStore AddScanEvent failed", "error", err, "retailer", e.Retailer)
		return fmt.Errorf("failed to insert scan event for %s: %w", e.Retailer, err)
	}
	slog.Debug("SQLiteStore AddScanEvent succeeded", "retailer", e.Retailer, "count", e.Count)
	return nil
}

func (s *SQLiteStore) ScanEventsInRange(retailer string, from, to time.Time) ([]models.ScanEvent, error) {
	query := "SELECT retailer, scan_date, scan_count FROM scan_events WHERE retailer = ? COLLATE NOCASE"
	args := []interface{}{retailer}
	if !from.IsZero() {
		query += " AND scan_date >= ?"
		args = append(args, from.Format(dateLayout))
	}
	if !to.IsZero() {
		query += " AND scan_date <= ?"
		args = append(args, to.Format(dateLayout))
	}
	query += " ORDER BY scan_date"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ScanEventsInRange query failed", "error", err, "retailer", retailer)
		return nil, fmt.Errorf("failed to query scan events for %s: %w", retailer, err)
	}
	defer rows.Close()

	var events []models.ScanEvent
	for rows.Next() {
		var e models.ScanEvent
		var raw string
		if err := rows.Scan(&e.Retailer, &raw, &e.Count); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if e.Date, err = parseEventDate(raw); err != nil {
			return nil, fmt.Errorf("bad scan_date %q: %w", raw, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) AddDevice(d models.Device) error {
	if !models.IsValidDeviceStatus(d.Status) {
		d.Status = models.DeviceInHouse
	}
	_, err := s.db.Exec(`
		INSERT INTO inventory (type, number, serial_number, model, ios_version, status, asset_tag, location, assigned_to, notes, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		d.Type, nilIfEmpty(d.Number), d.SerialNumber, nilIfEmpty(d.Model), nilIfEmpty(d.IOSVersion),
		d.Status, nilIfEmpty(d.AssetTag), nilIfEmpty(d.Location), nilIfEmpty(d.AssignedTo), nilIfEmpty(d.Notes),
	)
	if err != nil {
		if isSQLiteConstraint(err) {
			slog.Warn("SQLiteStore AddDevice duplicate", "serial", d.SerialNumber, "asset_tag", d.AssetTag)
			return models.ErrDuplicate
		}
		slog.Error("SQLiteStore AddDevice failed", "error", err, "serial", d.SerialNumber)
		return fmt.Errorf("failed to insert device %s: %w", d.SerialNumber, err)
	}
	slog.Debug("SQLiteStore AddDevice succeeded", "type", d.Type, "serial", d.SerialNumber)
	return nil
}

const deviceSelect = `SELECT id, type, number, serial_number, model, ios_version, status, asset_tag, location, assigned_to, notes, last_updated FROM inventory`

func (s *SQLiteStore) LookupDevice(code string) (*models.Device, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	rows, err := s.db.Query(deviceSelect+" WHERE asset_tag = ? OR number = ? OR serial_number = ? LIMIT 1", code, code, code)
	if err != nil {
		slog.Error("SQLiteStore LookupDevice query failed", "error", err, "code", code)
		return nil, fmt.Errorf("failed to look up device %s: %w", code, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	d, err := scanDevice(rows)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLiteStore) SetDeviceState(id int64, status models.DeviceStatus, assignedTo, location, notes string) error {
	_, err := s.db.Exec(`
		UPDATE inventory
		SET status = ?,
		    assigned_to = ?,
		    location = COALESCE(?, location),
		    notes = COALESCE(?, notes),
		    last_updated = CURRENT_TIMESTAMP
		WHERE id = ?`,
		status, nilIfEmpty(assignedTo), nilIfEmpty(location), nilIfEmpty(notes), id,
	)
	if err != nil {
		slog.Error("SQLiteStore SetDeviceState failed", "error", err, "id", id, "status", status)
		return fmt.Errorf("failed to update device %d: %w", id, err)
	}
	slog.Debug("SQLiteStore SetDeviceState succeeded", "id", id, "status", status)
	return nil
}

func (s *SQLiteStore) ListDevicesByStatus(status models.DeviceStatus, limit int) ([]models.Device, error) {
	rows, err := s.db.Query(deviceSelect+" WHERE status = ? ORDER BY type, id DESC LIMIT ?", status, limit)
	if err != nil {
		slog.Error("SQLiteStore ListDevicesByStatus query failed", "error", err, "status", status)
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (s *SQLiteStore) ListDeviceCodes() ([]string, error) {
	rows, err := s.db.Query(`SELECT COALESCE(asset_tag, number, serial_number) FROM inventory WHERE status != ?`, models.DeviceRetired)
	if err != nil {
		return nil, fmt.Errorf("failed to query device codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var c sql.NullString
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		if c.Valid && c.String != "" {
			codes = append(codes, c.String)
		}
	}
	return codes, rows.Err()
}

func (s *SQLiteStore) InventorySummary() (map[string]InventoryCounts, error) {
	rows, err := s.db.Query(`
		SELECT type,
		       SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		       COUNT(*)
		FROM inventory
		WHERE status != ?
		GROUP BY type`,
		models.DeviceInHouse, models.DeviceAssigned, models.DeviceRetired,
	)
	if err != nil {
		slog.Error("SQLiteStore InventorySummary query failed", "error", err)
		return nil, fmt.Errorf("failed to query inventory summary: %w", err)
	}
	defer rows.Close()

	out := make(map[string]InventoryCounts)
	for rows.Next() {
		var t string
		var c InventoryCounts
		if err := rows.Scan(&t, &c.Available, &c.Assigned, &c.Total); err != nil {
			return nil, err
		}
		out[t] = c
	}
	return out, rows.Err()
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
