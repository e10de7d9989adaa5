// Package inventory manages the device pool: dashboard summaries,
// add/retire, and check-out/check-in by scanned code.
package inventory

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/RetailPipe/RetailPipe/internal/models"
	"github.com/RetailPipe/RetailPipe/internal/store"
	"github.com/sahilm/fuzzy"
)

// DefaultLocation is where checked-in devices land when none is given.
const DefaultLocation = "HQ"

// maxSuggestions bounds the fuzzy device-code suggestion list.
const maxSuggestions = 3

// Manager provides inventory operations over the store.
type Manager struct {
	store store.Store
}

// NewManager creates an inventory Manager.
func NewManager(st store.Store) *Manager {
	return &Manager{store: st}
}

// Summary returns per-type availability counts, always including the
// common device types even when absent from the table.
func (m *Manager) Summary() (map[string]store.InventoryCounts, error) {
	out, err := m.store.InventorySummary()
	if err != nil {
		return nil, err
	}
	for _, t := range []string{"iPad", "Sensor"} {
		if _, ok := out[t]; !ok {
			out[t] = store.InventoryCounts{}
		}
	}
	return out, nil
}

// ReadyToShip lists in-house devices.
func (m *Manager) ReadyToShip(limit int) ([]models.Device, error) {
	if limit <= 0 {
		limit = 50
	}
	return m.store.ListDevicesByStatus(models.DeviceInHouse, limit)
}

// Lookup finds a device by scanned code. When the exact lookup misses,
// it returns fuzzy code suggestions the caller can offer the user.
func (m *Manager) Lookup(code string) (*models.Device, []string, error) {
	dev, err := m.store.LookupDevice(code)
	if err != nil {
		return nil, nil, err
	}
	if dev != nil {
		return dev, nil, nil
	}
	codes, err := m.store.ListDeviceCodes()
	if err != nil {
		return nil, nil, err
	}
	matches := fuzzy.Find(code, codes)
	var suggestions []string
	for i, match := range matches {
		if i >= maxSuggestions {
			break
		}
		suggestions = append(suggestions, match.Str)
	}
	slog.Debug("Inventory Lookup miss", "code", code, "suggestions", len(suggestions))
	return nil, suggestions, nil
}

// Add inserts a new device in-house.
func (m *Manager) Add(d models.Device) (string, error) {
	d.Type = strings.TrimSpace(d.Type)
	d.SerialNumber = strings.TrimSpace(d.SerialNumber)
	if d.Type == "" || d.SerialNumber == "" {
		return "Please provide at least a device type and serial number.", nil
	}
	if d.Status == "" {
		d.Status = models.DeviceInHouse
	}
	if err := m.store.AddDevice(d); err != nil {
		if err == models.ErrDuplicate {
			return fmt.Sprintf("A %s with that serial or asset tag already exists.", d.Type), nil
		}
		return "", err
	}
	return fmt.Sprintf("Added %s %s to inventory.", d.Type, d.SerialNumber), nil
}

// CheckOut marks a device as assigned.
func (m *Manager) CheckOut(code, assignedTo, location, notes string) (string, error) {
	code = strings.TrimSpace(code)
	assignedTo = strings.TrimSpace(assignedTo)
	if code == "" || assignedTo == "" {
		return "Please scan a device and enter who it's assigned to.", nil
	}
	dev, suggestions, err := m.Lookup(code)
	if err != nil {
		return "", err
	}
	if dev == nil {
		return notFoundMessage(code, suggestions), nil
	}
	if dev.Status != models.DeviceInHouse {
		return fmt.Sprintf("%s %s is not in-house (currently: %s).", dev.Type, dev.ScanCode(), dev.AvailabilityLabel()), nil
	}
	if err := m.store.SetDeviceState(dev.ID, models.DeviceAssigned, assignedTo, location, notes); err != nil {
		return "", err
	}
	slog.Info("Inventory check-out", "device", dev.ScanCode(), "assigned_to", assignedTo)
	return fmt.Sprintf("Checked out %s %s to %s.", dev.Type, dev.ScanCode(), assignedTo), nil
}

// CheckIn marks a device as in-house and clears its assignment.
func (m *Manager) CheckIn(code, location, notes string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "Please scan a device.", nil
	}
	if strings.TrimSpace(location) == "" {
		location = DefaultLocation
	}
	dev, suggestions, err := m.Lookup(code)
	if err != nil {
		return "", err
	}
	if dev == nil {
		return notFoundMessage(code, suggestions), nil
	}
	if err := m.store.SetDeviceState(dev.ID, models.DeviceInHouse, "", location, notes); err != nil {
		return "", err
	}
	slog.Info("Inventory check-in", "device", dev.ScanCode(), "location", location)
	return fmt.Sprintf("Checked in %s %s at %s.", dev.Type, dev.ScanCode(), location), nil
}

// Retire removes a device from circulation.
func (m *Manager) Retire(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "Please scan a device.", nil
	}
	dev, suggestions, err := m.Lookup(code)
	if err != nil {
		return "", err
	}
	if dev == nil {
		return notFoundMessage(code, suggestions), nil
	}
	if err := m.store.SetDeviceState(dev.ID, models.DeviceRetired, "", "", ""); err != nil {
		return "", err
	}
	slog.Info("Inventory retire", "device", dev.ScanCode())
	return fmt.Sprintf("Retired %s %s.", dev.Type, dev.ScanCode()), nil
}

func notFoundMessage(code string, suggestions []string) string {
	if len(suggestions) == 0 {
		return fmt.Sprintf("Device not found for code: %s", code)
	}
	return fmt.Sprintf("Device not found for code: %s. Did you mean %s?", code, strings.Join(suggestions, ", "))
}
