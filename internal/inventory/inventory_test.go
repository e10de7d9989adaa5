package inventory

import (
	"strings"
	"testing"

	"github.com/RetailPipe/RetailPipe/internal/models"
	"github.com/RetailPipe/RetailPipe/internal/store"
)

func seededManager(t *testing.T) *Manager {
	t.Helper()
	st := store.NewInMemoryStore()
	devices := []models.Device{
		{Type: "iPad", Number: "42", SerialNumber: "DMPX100", AssetTag: "IPAD-0042", Status: models.DeviceInHouse},
		{Type: "iPad", Number: "43", SerialNumber: "DMPX101", AssetTag: "IPAD-0043", Status: models.DeviceAssigned, AssignedTo: "Acme Corp"},
		{Type: "Sensor", SerialNumber: "SN-200", AssetTag: "SENS-0200", Status: models.DeviceInHouse},
	}
	for _, d := range devices {
		if err := st.AddDevice(d); err != nil {
			t.Fatal(err)
		}
	}
	return NewManager(st)
}

func TestSummaryIncludesCommonTypes(t *testing.T) {
	m := NewManager(store.NewInMemoryStore())
	sum, err := m.Summary()
	if err != nil {
		t.Fatal(err)
	}
	for _, typ := range []string{"iPad", "Sensor"} {
		c, ok := sum[typ]
		if !ok {
			t.Errorf("Summary missing %s row on empty inventory", typ)
		}
		if c.Total != 0 {
			t.Errorf("%s total = %d, want 0", typ, c.Total)
		}
	}
}

func TestLookup(t *testing.T) {
	m := seededManager(t)

	dev, suggestions, err := m.Lookup("IPAD-0042")
	if err != nil {
		t.Fatal(err)
	}
	if dev == nil || dev.SerialNumber != "DMPX100" {
		t.Fatalf("Lookup hit = %+v", dev)
	}
	if suggestions != nil {
		t.Errorf("exact hit should carry no suggestions, got %v", suggestions)
	}

	// near-miss gets fuzzy suggestions
	dev, suggestions, err = m.Lookup("IPAD042")
	if err != nil {
		t.Fatal(err)
	}
	if dev != nil {
		t.Fatalf("near-miss should not resolve, got %+v", dev)
	}
	if len(suggestions) == 0 {
		t.Fatal("near-miss should suggest close codes")
	}
	if len(suggestions) > 3 {
		t.Errorf("suggestions = %v, want at most 3", suggestions)
	}
}

func TestAdd(t *testing.T) {
	m := seededManager(t)

	msg, err := m.Add(models.Device{Type: "Sensor", SerialNumber: "SN-300"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "Added Sensor SN-300") {
		t.Errorf("Add message = %q", msg)
	}

	// duplicates come back as a friendly message, not an error
	msg, err = m.Add(models.Device{Type: "Sensor", SerialNumber: "sn-300"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "already exists") {
		t.Errorf("duplicate Add message = %q", msg)
	}

	msg, err = m.Add(models.Device{Type: "  ", SerialNumber: ""})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "device type and serial number") {
		t.Errorf("blank Add message = %q", msg)
	}
}

func TestCheckOutAndIn(t *testing.T) {
	m := seededManager(t)

	msg, err := m.CheckOut("IPAD-0042", "Bobs Shoes", "", "spring rollout")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "Checked out iPad") || !strings.Contains(msg, "Bobs Shoes") {
		t.Errorf("CheckOut message = %q", msg)
	}

	// already assigned
	msg, err = m.CheckOut("IPAD-0043", "Someone Else", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "not in-house") {
		t.Errorf("assigned CheckOut message = %q", msg)
	}

	// missing inputs
	msg, _ = m.CheckOut("", "", "", "")
	if !strings.Contains(msg, "scan a device") {
		t.Errorf("empty CheckOut message = %q", msg)
	}

	// check the first device back in; blank location defaults
	msg, err = m.CheckIn("IPAD-0042", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "at "+DefaultLocation) {
		t.Errorf("CheckIn message = %q, want default location", msg)
	}

	// and it is available for checkout again
	ready, err := m.ReadyToShip(0)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, d := range ready {
		if d.AssetTag == "IPAD-0042" {
			found = true
		}
	}
	if !found {
		t.Error("checked-in device missing from ReadyToShip")
	}
}

func TestRetire(t *testing.T) {
	m := seededManager(t)

	msg, err := m.Retire("SENS-0200")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "Retired Sensor") {
		t.Errorf("Retire message = %q", msg)
	}

	msg, err = m.Retire("NOPE-9999")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "Device not found") {
		t.Errorf("unknown Retire message = %q", msg)
	}
}
