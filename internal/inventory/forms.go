package inventory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RetailPipe/RetailPipe/internal/models"
)

// Form ids handled by this package.
const (
	FormAddDevice    = "inventory_add_device"
	FormRemoveDevice = "inventory_remove_device"
	FormCheckOut     = "inventory_checkout"
	FormCheckIn      = "inventory_checkin"
)

// DashboardForm builds the inventory dashboard: availability counts per
// device type plus action buttons for the mutating operations.
func (m *Manager) DashboardForm(role models.Role) (models.Reply, error) {
	summary, err := m.Summary()
	if err != nil {
		return models.Reply{}, err
	}
	types := make([]string, 0, len(summary))
	for t := range summary {
		types = append(types, t)
	}
	sort.Strings(types)

	var b strings.Builder
	b.WriteString("Inventory overview:\n")
	for _, t := range types {
		c := summary[t]
		fmt.Fprintf(&b, "%s: %d available, %d assigned, %d total\n", t, c.Available, c.Assigned, c.Total)
	}

	form := &models.Form{
		Type:   "form",
		FormID: "inventory_dashboard",
		Title:  "Inventory",
	}
	form.Buttons = append(form.Buttons,
		models.FormButton{Text: "Check Out Device", Action: FormCheckOut},
		models.FormButton{Text: "Check In Device", Action: FormCheckIn},
	)
	if role.IsAdmin() {
		form.Buttons = append(form.Buttons,
			models.FormButton{Text: "Add Device", Action: FormAddDevice},
			models.FormButton{Text: "Remove Device", Action: FormRemoveDevice},
		)
	}
	return models.FormReplyWithText(strings.TrimRight(b.String(), "\n"), form), nil
}

// BuildForm returns the form descriptor for one of this package's form ids.
func (m *Manager) BuildForm(formID string) (*models.Form, error) {
	switch formID {
	case FormAddDevice:
		return &models.Form{
			Type:   "form",
			FormID: FormAddDevice,
			Title:  "Add Device",
			Fields: []models.FormField{
				{Name: "type", Type: "select", Label: "Device Type", Options: []string{"iPad", "Sensor"}},
				{Name: "serial_number", Type: "text", Label: "Serial Number", Placeholder: "Scan or type the serial"},
				{Name: "asset_tag", Type: "text", Label: "Asset Tag"},
				{Name: "model", Type: "text", Label: "Model"},
				{Name: "ios_version", Type: "text", Label: "iOS Version"},
				{Name: "number", Type: "text", Label: "Device Number"},
			},
			SubmitLabel:    "Add",
			SuccessMessage: "Device added.",
		}, nil
	case FormRemoveDevice:
		return &models.Form{
			Type:   "form",
			FormID: FormRemoveDevice,
			Title:  "Remove Device",
			Fields: []models.FormField{
				{Name: "code", Type: "text", Label: "Device Code", Placeholder: "Scan the asset tag or serial"},
			},
			SubmitLabel: "Remove",
		}, nil
	case FormCheckOut:
		return &models.Form{
			Type:   "form",
			FormID: FormCheckOut,
			Title:  "Check Out Device",
			Fields: []models.FormField{
				{Name: "code", Type: "text", Label: "Device Code", Placeholder: "Scan the asset tag or serial"},
				{Name: "assigned_to", Type: "text", Label: "Assigned To"},
				{Name: "location", Type: "text", Label: "Location"},
				{Name: "notes", Type: "text", Label: "Notes"},
			},
			SubmitLabel: "Check Out",
		}, nil
	case FormCheckIn:
		return &models.Form{
			Type:   "form",
			FormID: FormCheckIn,
			Title:  "Check In Device",
			Fields: []models.FormField{
				{Name: "code", Type: "text", Label: "Device Code", Placeholder: "Scan the asset tag or serial"},
				{Name: "location", Type: "text", Label: "Location", Placeholder: DefaultLocation},
				{Name: "notes", Type: "text", Label: "Notes"},
			},
			SubmitLabel: "Check In",
		}, nil
	default:
		return nil, models.ErrUnknownForm
	}
}

// HandleSubmission processes one submitted inventory form. Add and
// remove are admin-only.
func (m *Manager) HandleSubmission(sub models.FormSubmission, role models.Role) (models.Reply, error) {
	get := func(k string) string { return strings.TrimSpace(sub.Data[k]) }

	switch sub.FormID {
	case FormAddDevice:
		if !role.IsAdmin() {
			return models.TextReply("Only admins can add devices."), nil
		}
		msg, err := m.Add(models.Device{
			Type:         get("type"),
			SerialNumber: get("serial_number"),
			AssetTag:     get("asset_tag"),
			Model:        get("model"),
			IOSVersion:   get("ios_version"),
			Number:       get("number"),
		})
		if err != nil {
			return models.Reply{}, err
		}
		return models.TextReply(msg), nil
	case FormRemoveDevice:
		if !role.IsAdmin() {
			return models.TextReply("Only admins can remove devices."), nil
		}
		msg, err := m.Retire(get("code"))
		if err != nil {
			return models.Reply{}, err
		}
		return models.TextReply(msg), nil
	case FormCheckOut:
		msg, err := m.CheckOut(get("code"), get("assigned_to"), get("location"), get("notes"))
		if err != nil {
			return models.Reply{}, err
		}
		return models.TextReply(msg), nil
	case FormCheckIn:
		msg, err := m.CheckIn(get("code"), get("location"), get("notes"))
		if err != nil {
			return models.Reply{}, err
		}
		return models.TextReply(msg), nil
	default:
		return models.Reply{}, models.ErrUnknownForm
	}
}

// Handles reports whether formID belongs to this package.
func Handles(formID string) bool {
	switch formID {
	case FormAddDevice, FormRemoveDevice, FormCheckOut, FormCheckIn:
		return true
	default:
		return false
	}
}
