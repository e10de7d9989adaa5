package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/RetailPipe/RetailPipe/internal/models"
)

// dateLayout is the canonical wire format for scan event dates.
const dateLayout = "2006-01-02"

// retailerSelect builds the shared SELECT column list for retailer rows.
func retailerSelect() string {
	return "id, retailer, " + strings.Join(retailerColumns, ", ")
}

// scanRetailer scans one retailer row into the generic field map.
func scanRetailer(rows *sql.Rows) (models.Retailer, error) {
	var r models.Retailer
	vals := make([]sql.NullString, len(retailerColumns))
	dest := make([]interface{}, 0, len(retailerColumns)+2)
	dest = append(dest, &r.ID, &r.Name)
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return r, fmt.Errorf("scan retailer row failed: %w", err)
	}
	r.Fields = make(map[string]string, len(retailerColumns))
	for i, col := range retailerColumns {
		if vals[i].Valid {
			r.Fields[col] = vals[i].String
		}
	}
	return r, nil
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanDevice scans one inventory row.
func scanDevice(rows *sql.Rows) (models.Device, error) {
	var d models.Device
	var number, model, iosVersion, assetTag, location, assignedTo, notes sql.NullString
	var lastUpdated sql.NullTime
	err := rows.Scan(
		&d.ID, &d.Type, &number, &d.SerialNumber, &model, &iosVersion,
		&d.Status, &assetTag, &location, &assignedTo, &notes, &lastUpdated,
	)
	if err != nil {
		return d, fmt.Errorf("scan device row failed: %w", err)
	}
	d.Number = number.String
	d.Model = model.String
	d.IOSVersion = iosVersion.String
	d.AssetTag = assetTag.String
	d.Location = location.String
	d.AssignedTo = assignedTo.String
	d.Notes = notes.String
	if lastUpdated.Valid {
		d.LastUpdated = lastUpdated.Time
	}
	return d, nil
}

// parseEventDate accepts both bare dates and full timestamps coming back
// from the drivers.
func parseEventDate(raw string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
