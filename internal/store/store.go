// Package store provides storage backends for RetailPipe.
//
// It defines the persistence contract consumed by the dispatcher and
// ships SQLite and PostgreSQL implementations behind one interface.
package store

import (
	"strings"
	"time"

	"github.com/RetailPipe/RetailPipe/internal/models"
)

// Opts holds configuration options for store construction.
type Opts struct {
	// DSN is the database connection string: a file path for SQLite, a
	// connection URL for Postgres.
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for everything else (file paths and :memory:).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// Open constructs the store matching the DSN type.
func Open(dsn string) (Store, error) {
	if DetectDSNType(dsn) == "postgres" {
		return NewPostgresStore(WithDSN(dsn))
	}
	return NewSQLiteStore(WithDSN(dsn))
}

// InventoryCounts summarizes one device type's availability.
type InventoryCounts struct {
	Available int `json:"available"`
	Assigned  int `json:"assigned"`
	Total     int `json:"total"`
}

// Store is the persistence contract. All operations are synchronous, one
// statement at a time; a busy database blocks up to a bounded timeout
// before surfacing as a failure, and nothing is retried automatically.
type Store interface {
	// Retailer records. Names are unique case-insensitively.
	ListRetailers() ([]models.Retailer, error)
	GetRetailer(name string) (*models.Retailer, error)
	AddRetailer(r models.Retailer) error
	// UpdateRetailerFields applies the given (column, value) pairs to one
	// retailer row and returns the number of applied updates. Column
	// allow-listing is the caller's responsibility.
	UpdateRetailerFields(name string, updates []models.FieldUpdate) (int, error)

	// Troubleshooting corpus, static after load.
	ListTroubleshooting() ([]models.TroubleshootingEntry, error)

	// Scan events, append-only.
	AddScanEvent(e models.ScanEvent) error
	// ScanEventsInRange returns events for a retailer ordered by date.
	// Zero from/to bounds mean unbounded.
	ScanEventsInRange(retailer string, from, to time.Time) ([]models.ScanEvent, error)

	// Inventory devices.
	AddDevice(d models.Device) error
	// LookupDevice matches a scanned code against asset tag, number, and
	// serial number. Returns nil, nil when nothing matches.
	LookupDevice(code string) (*models.Device, error)
	// SetDeviceState updates status, assignment, and location of a device.
	// Empty location/notes preserve the stored values.
	SetDeviceState(id int64, status models.DeviceStatus, assignedTo, location, notes string) error
	ListDevicesByStatus(status models.DeviceStatus, limit int) ([]models.Device, error)
	ListDeviceCodes() ([]string, error)
	InventorySummary() (map[string]InventoryCounts, error)

	Close() error
}

// retailerColumns is the fixed set of non-key retailer columns, in
// display order. Both backends select and scan them positionally.
var retailerColumns = []string{
	"account_number",
	"arlin",
	"ri_app_username",
	"ri_app_password",
	"email",
	"email_password",
	"ipad_number",
	"system_model",
	"serial_number",
	"ios_version",
	"app_version",
	"sensor_serial",
	"last_scan",
	"ri_2024",
	"ri_2025",
	"tm",
	"street",
	"city",
	"state",
	"zip_code",
	"country",
	"phone",
	"fitter",
	"returning_equipment",
	"notes",
	"jane_notes",
}

// RetailerColumns returns a copy of the known retailer column names.
func RetailerColumns() []string {
	cols := make([]string, len(retailerColumns))
	copy(cols, retailerColumns)
	return cols
}

// IsRetailerColumn reports whether the given name is a known column.
func IsRetailerColumn(name string) bool {
	for _, c := range retailerColumns {
		if c == name {
			return true
		}
	}
	return false
}
