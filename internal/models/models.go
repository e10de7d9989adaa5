// Package models defines the core data structures for RetailPipe.
//
// It includes retailer records, troubleshooting entries, scan events,
// inventory devices, and the tagged reply union shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// Confidence thresholds shared by the resolvers and the dispatcher.
const (
	// RetailerHigh is the fuzzy score above which a retailer match is auto-selected.
	RetailerHigh = 70
	// RetailerMedium is the fuzzy score below which the dispatcher asks for confirmation.
	RetailerMedium = 40
	// FieldHigh is the cosine similarity above which a field guess is auto-applied.
	FieldHigh = 0.75
	// FieldMedium is the cosine similarity above which a field guess is considered confident.
	FieldMedium = 0.60
	// TroubleThreshold is the minimum cosine similarity for a troubleshooting answer.
	TroubleThreshold = 0.40
)

// Error variables for conditions callers branch on.
var (
	ErrDuplicate    = errors.New("record already exists")
	ErrNotFound     = errors.New("record not found")
	ErrUnknownForm  = errors.New("unknown form submission")
	ErrUnknownFlow  = errors.New("unknown flow id")
	ErrNoSession    = errors.New("no active flow session")
	ErrEmptyName    = errors.New("retailer name cannot be empty")
	ErrInvalidCount = errors.New("scan count must be a positive integer")
)

// Role identifies the privilege level of the caller on a request.
type Role string

const (
	// RoleUser is the default unprivileged role.
	RoleUser Role = "user"
	// RoleAdmin is required for mutating inventory actions.
	RoleAdmin Role = "admin"
)

// IsAdmin reports whether the role carries admin privileges.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Retailer represents one row of the retailers table. Name is the unique
// key (case-insensitive); all remaining columns are kept in Fields so the
// resolvers can address them generically by column name.
type Retailer struct {
	ID     int64             `json:"id"`
	Name   string            `json:"retailer"`
	Fields map[string]string `json:"fields"`
}

// Field returns the value stored under the given column name, and whether
// a non-blank value is on file.
func (r *Retailer) Field(column string) (string, bool) {
	if r.Fields == nil {
		return "", false
	}
	v, ok := r.Fields[column]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// SetField stores a value under the given column name.
func (r *Retailer) SetField(column, value string) {
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Fields[column] = value
}

// TroubleshootingEntry is one (question, answer) pair, static after load.
type TroubleshootingEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ScanEvent is one timestamped occurrence of a retailer being scanned.
// Events are append-only and aggregated by month for history and prediction.
type ScanEvent struct {
	Retailer string    `json:"retailer"`
	Date     time.Time `json:"date"`
	Count    int       `json:"count"`
}

// MonthCount is an aggregated scan count for one calendar month.
type MonthCount struct {
	Month time.Time `json:"month"`
	Count int       `json:"count"`
}

// FieldUpdate is one (column, value) pair extracted from a batch-update
// utterance or a form submission.
type FieldUpdate struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// DeviceStatus is the lifecycle status of an inventory device.
type DeviceStatus string

const (
	// DeviceInHouse means the device is available for assignment.
	DeviceInHouse DeviceStatus = "in_house"
	// DeviceAssigned means the device is checked out to a retailer or person.
	DeviceAssigned DeviceStatus = "assigned"
	// DeviceRetired means the device is removed from circulation.
	DeviceRetired DeviceStatus = "retired"
)

// IsValidDeviceStatus checks if the given status is supported.
func IsValidDeviceStatus(s DeviceStatus) bool {
	switch s {
	case DeviceInHouse, DeviceAssigned, DeviceRetired:
		return true
	default:
		return false
	}
}

// Device represents one row of the inventory table.
type Device struct {
	ID           int64        `json:"id"`
	Type         string       `json:"type"`
	Number       string       `json:"number,omitempty"`
	SerialNumber string       `json:"serial_number"`
	Model        string       `json:"model,omitempty"`
	IOSVersion   string       `json:"ios_version,omitempty"`
	Status       DeviceStatus `json:"status"`
	AssetTag     string       `json:"asset_tag,omitempty"`
	Location     string       `json:"location,omitempty"`
	AssignedTo   string       `json:"assigned_to,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	LastUpdated  time.Time    `json:"last_updated"`
}

// ScanCode returns the identifier a physical scan of the device produces:
// asset tag first, then device number, then serial.
func (d *Device) ScanCode() string {
	for _, c := range []string{d.AssetTag, d.Number, d.SerialNumber} {
		if s := strings.TrimSpace(c); s != "" {
			return s
		}
	}
	return ""
}

// AvailabilityLabel renders the device's status for display.
func (d *Device) AvailabilityLabel() string {
	if d.Status == DeviceInHouse {
		return "Available"
	}
	if d.Status == DeviceRetired {
		return "Retired"
	}
	who := strings.TrimSpace(d.AssignedTo)
	if who == "" {
		who = "Unknown"
	}
	return "Assigned to " + who
}
