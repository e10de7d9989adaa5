package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RetailPipe/RetailPipe/internal/models"
)

// InMemoryStore is a mutex-guarded in-memory Store, used by tests and
// as a dependency-free fallback.
type InMemoryStore struct {
	mu        sync.Mutex
	retailers []models.Retailer
	trouble   []models.TroubleshootingEntry
	scans     []models.ScanEvent
	devices   []models.Device
	nextID    int64
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

// SeedTroubleshooting replaces the troubleshooting corpus.
func (s *InMemoryStore) SeedTroubleshooting(entries []models.TroubleshootingEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trouble = append([]models.TroubleshootingEntry(nil), entries...)
}

func (s *InMemoryStore) ListRetailers() ([]models.Retailer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Retailer, len(s.retailers))
	for i, r := range s.retailers {
		out[i] = copyRetailer(r)
	}
	return out, nil
}

func (s *InMemoryStore) GetRetailer(name string) (*models.Retailer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.retailers {
		if strings.EqualFold(r.Name, name) {
			c := copyRetailer(r)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) AddRetailer(r models.Retailer) error {
	if strings.TrimSpace(r.Name) == "" {
		return models.ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.retailers {
		if strings.EqualFold(existing.Name, r.Name) {
			return models.ErrDuplicate
		}
	}
	r.ID = s.nextID
	s.nextID++
	s.retailers = append(s.retailers, copyRetailer(r))
	return nil
}

func (s *InMemoryStore) UpdateRetailerFields(name string, updates []models.FieldUpdate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.retailers {
		if !strings.EqualFold(r.Name, name) {
			continue
		}
		n := 0
		for _, u := range updates {
			if !IsRetailerColumn(u.Column) {
				continue
			}
			s.retailers[i].SetField(u.Column, u.Value)
			n++
		}
		return n, nil
	}
	return 0, models.ErrNotFound
}

func (s *InMemoryStore) ListTroubleshooting() ([]models.TroubleshootingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TroubleshootingEntry(nil), s.trouble...), nil
}

func (s *InMemoryStore) AddScanEvent(e models.ScanEvent) error {
	if e.Count <= 0 {
		return models.ErrInvalidCount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans = append(s.scans, e)
	return nil
}

func (s *InMemoryStore) ScanEventsInRange(retailer string, from, to time.Time) ([]models.ScanEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScanEvent
	for _, e := range s.scans {
		if !strings.EqualFold(e.Retailer, retailer) {
			continue
		}
		if !from.IsZero() && e.Date.Before(from) {
			continue
		}
		if !to.IsZero() && e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *InMemoryStore) AddDevice(d models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.devices {
		if d.AssetTag != "" && strings.EqualFold(existing.AssetTag, d.AssetTag) {
			return models.ErrDuplicate
		}
		if strings.EqualFold(existing.Type, d.Type) && strings.EqualFold(existing.SerialNumber, d.SerialNumber) {
			return models.ErrDuplicate
		}
	}
	d.ID = s.nextID
	s.nextID++
	if d.LastUpdated.IsZero() {
		d.LastUpdated = time.Now()
	}
	s.devices = append(s.devices, d)
	return nil
}

func (s *InMemoryStore) LookupDevice(code string) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if strings.EqualFold(d.AssetTag, code) || strings.EqualFold(d.Number, code) || strings.EqualFold(d.SerialNumber, code) {
			c := d
			return &c, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) SetDeviceState(id int64, status models.DeviceStatus, assignedTo, location, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.devices {
		if d.ID != id {
			continue
		}
		s.devices[i].Status = status
		s.devices[i].AssignedTo = assignedTo
		if location != "" {
			s.devices[i].Location = location
		}
		if notes != "" {
			s.devices[i].Notes = notes
		}
		s.devices[i].LastUpdated = time.Now()
		return nil
	}
	return models.ErrNotFound
}

func (s *InMemoryStore) ListDevicesByStatus(status models.DeviceStatus, limit int) ([]models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Device
	for _, d := range s.devices {
		if d.Status != status {
			continue
		}
		out = append(out, d)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListDeviceCodes() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, d := range s.devices {
		if c := d.ScanCode(); c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *InMemoryStore) InventorySummary() (map[string]InventoryCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]InventoryCounts)
	for _, d := range s.devices {
		c := out[d.Type]
		c.Total++
		switch d.Status {
		case models.DeviceInHouse:
			c.Available++
		case models.DeviceAssigned:
			c.Assigned++
		}
		out[d.Type] = c
	}
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }

func copyRetailer(r models.Retailer) models.Retailer {
	c := r
	c.Fields = make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		c.Fields[k] = v
	}
	return c
}
