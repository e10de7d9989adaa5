// Package store provides storage backends for RetailPipe.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "embed"

	"github.com/RetailPipe/RetailPipe/internal/models"
	"github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is the PostgreSQL implementation of Store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// isPostgresUniqueViolation reports whether the error is a
// unique-constraint violation (SQLSTATE 23505).
func isPostgresUniqueViolation(err error) bool {
	var perr *pq.Error
	if errors.As(err, &perr) {
		return perr.Code == "23505"
	}
	return false
}

func (s *PostgresStore) ListRetailers() ([]models.Retailer, error) {
	rows, err := s.db.Query("SELECT " + retailerSelect() + " FROM retailers ORDER BY id")
	if err != nil {
		slog.Error("PostgresStore ListRetailers query failed", "error", err)
		return nil, fmt.Errorf("failed to query retailers: %w", err)
	}
	defer rows.Close()

	var retailers []models.Retailer
	for rows.Next() {
		r, err := scanRetailer(rows)
		if err != nil {
			return nil, err
		}
		retailers = append(retailers, r)
	}
	return retailers, rows.Err()
}

func (s *PostgresStore) GetRetailer(name string) (*models.Retailer, error) {
	rows, err := s.db.Query("SELECT "+retailerSelect()+" FROM retailers WHERE LOWER(retailer) = LOWER($1) LIMIT 1", name)
	if err != nil {
		slog.Error("PostgresStore GetRetailer query failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to query retailer %s: %w", name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	r, err := scanRetailer(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) AddRetailer(r models.Retailer) error {
	if strings.TrimSpace(r.Name) == "" {
		return models.ErrEmptyName
	}
	cols := []string{"retailer"}
	args := []interface{}{r.Name}
	for _, col := range retailerColumns {
		if v, ok := r.Fields[col]; ok {
			cols = append(cols, col)
			args = append(args, v)
		}
	}
	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO retailers (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.Exec(query, args...); err != nil {
		if isPostgresUniqueViolation(err) {
			return models.ErrDuplicate
		}
		slog.Error("PostgresStore AddRetailer failed", "error", err, "name", r.Name)
		return fmt.Errorf("failed to insert retailer %s: %w", r.Name, err)
	}
	return nil
}

func (s *PostgresStore) UpdateRetailerFields(name string, updates []models.FieldUpdate) (int, error) {
	changed := 0
	for _, u := range updates {
		if !IsRetailerColumn(u.Column) {
			continue
		}
		query := fmt.Sprintf("UPDATE retailers SET %s = $1 WHERE LOWER(retailer) = LOWER($2)", u.Column)
		res, err := s.db.Exec(query, u.Value, name)
		if err != nil {
			slog.Error("PostgresStore UpdateRetailerFields failed", "error", err, "name", name, "column", u.Column)
			return changed, fmt.Errorf("failed to update %s for %s: %w", u.Column, name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			changed++
		}
	}
	return changed, nil
}

func (s *PostgresStore) ListTroubleshooting() ([]models.TroubleshootingEntry, error) {
	rows, err := s.db.Query("SELECT question, answer FROM troubleshooting ORDER BY id")
	if err != nil {
		slog.Error("PostgresStore ListTroubleshooting query failed", "error", err)
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

func (s *PostgresStore) AddScanEvent(e models.ScanEvent) error {
	if e.Count <= 0 {
		return models.ErrInvalidCount
	}
	_, err := s.db.Exec(
		"INSERT INTO scan_events (retailer, scan_date, scan_count) VALUES ($1, $2, $3)",
		e.Retailer, e.Date.Format(dateLayout), e.Count,
	)
	if err != nil {
		slog.Error("PostgresStore AddScanEvent failed", "error", err, "retailer", e.Retailer)
		return fmt.Errorf("failed to insert scan event for %s: %w", e.Retailer, err)
	}
	return nil
}

func (s *PostgresStore) ScanEventsInRange(retailer string, from, to time.Time) ([]models.ScanEvent, error) {
	query := "SELECT retailer, scan_date, scan_count FROM scan_events WHERE LOWER(retailer) = LOWER($1)"
	args := []interface{}{retailer}
	if !from.IsZero() {
		args = append(args, from.Format(dateLayout))
		query += fmt.Sprintf(" AND scan_date >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to.Format(dateLayout))
		query += fmt.Sprintf(" AND scan_date <= $%d", len(args))
	}
	query += " ORDER BY scan_date"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ScanEventsInRange query failed", "error", err, "retailer", retailer)
		return nil, fmt.Errorf("failed to query scan events for %s: %w", retailer, err)
	}
	defer rows.Close()

	var events []models.ScanEvent
	for rows.Next() {
		var e models.ScanEvent
		if err := rows.Scan(&e.Retailer, &e.Date, &e.Count); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) AddDevice(d models.Device) error {
	if !models.IsValidDeviceStatus(d.Status) {
		d.Status = models.DeviceInHouse
	}
	_, err := s.db.Exec(`
		INSERT INTO inventory (type, number, serial_number, model, ios_version, status, asset_tag, location, assigned_to, notes, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
		d.Type, nilIfEmpty(d.Number), d.SerialNumber, nilIfEmpty(d.Model), nilIfEmpty(d.IOSVersion),
		d.Status, nilIfEmpty(d.AssetTag), nilIfEmpty(d.Location), nilIfEmpty(d.AssignedTo), nilIfEmpty(d.Notes),
	)
	if err != nil {
		if isPostgresUniqueViolation(err) {
			return models.ErrDuplicate
		}
		slog.Error("PostgresStore AddDevice failed", "error", err, "serial", d.SerialNumber)
		return fmt.Errorf("failed to insert device %s: %w", d.SerialNumber, err)
	}
	return nil
}

func (s *PostgresStore) LookupDevice(code string) (*models.Device, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	rows, err := s.db.Query(deviceSelect+" WHERE asset_tag = $1 OR number = $1 OR serial_number = $1 LIMIT 1", code)
	if err != nil {
		slog.Error("PostgresStore LookupDevice query failed", "error", err, "code", code)
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

func (s *PostgresStore) SetDeviceState(id int64, status models.DeviceStatus, assignedTo, location, notes string) error {
	_, err := s.db.Exec(`
		UPDATE inventory
		SET status = $1,
		    assigned_to = $2,
		    location = COALESCE($3, location),
		    notes = COALESCE($4, notes),
		    last_updated = NOW()
		WHERE id = $5`,
		status, nilIfEmpty(assignedTo), nilIfEmpty(location), nilIfEmpty(notes), id,
	)
	if err != nil {
		slog.Error("PostgresStore SetDeviceState failed", "error", err, "id", id, "status", status)
		return fmt.Errorf("failed to update device %d: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) ListDevicesByStatus(status models.DeviceStatus, limit int) ([]models.Device, error) {
	rows, err := s.db.Query(deviceSelect+" WHERE status = $1 ORDER BY type, id DESC LIMIT $2", status, limit)
	if err != nil {
		slog.Error("PostgresStore ListDevicesByStatus query failed", "error", err, "status", status)
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

func (s *PostgresStore) ListDeviceCodes() ([]string, error) {
	rows, err := s.db.Query("SELECT COALESCE(asset_tag, number, serial_number) FROM inventory WHERE status != $1", models.DeviceRetired)
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

func (s *PostgresStore) InventorySummary() (map[string]InventoryCounts, error) {
	rows, err := s.db.Query(`
		SELECT type,
		       SUM(CASE WHEN status = $1 THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = $2 THEN 1 ELSE 0 END),
		       COUNT(*)
		FROM inventory
		WHERE status != $3
		GROUP BY type`,
		models.DeviceInHouse, models.DeviceAssigned, models.DeviceRetired,
	)
	if err != nil {
		slog.Error("PostgresStore InventorySummary query failed", "error", err)
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

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
