package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/RetailPipe/RetailPipe/internal/inventory"
	"github.com/RetailPipe/RetailPipe/internal/match"
	"github.com/RetailPipe/RetailPipe/internal/models"
	"github.com/RetailPipe/RetailPipe/internal/store"
)

// scanDateLayout is the date format the add-scan form accepts.
const scanDateLayout = "01/02/2006"

// openForm returns the form descriptor for a form id requested via the
// open_form command.
func (d *Dispatcher) openForm(formID string, role models.Role) models.Reply {
	switch formID {
	case "update_retailer":
		return models.FormReply(d.updateRetailerForm())
	case "add_scan":
		return models.FormReply(d.addScanForm())
	case "add_retailer":
		return models.FormReply(d.addRetailerForm())
	case "add_note":
		return models.FormReply(d.addNoteForm())
	}
	if inventory.Handles(formID) {
		f, err := d.inventory.BuildForm(formID)
		if err != nil {
			return models.TextReply("Unknown form.")
		}
		return models.FormReply(f)
	}
	return models.TextReply("Unknown form.")
}

func (d *Dispatcher) updateRetailerForm() *models.Form {
	fields := make([]string, 0, len(match.AllowedUpdateColumns))
	for col := range match.AllowedUpdateColumns {
		fields = append(fields, col)
	}
	sort.Strings(fields)
	return &models.Form{
		Type:   "session form",
		FormID: "update_retailer",
		Title:  "Update Retailer Information",
		Fields: []models.FormField{
			{Name: "retailer", Type: "dropdown", Label: "Retailer", Options: d.retailerNames()},
		},
		DynamicFields: &models.DynamicFields{
			Label:   "Fields to update",
			Options: fields,
		},
		ValueField: "value",
		Buttons: []models.FormButton{
			{Text: "Save", Action: "submit"},
			{Text: "Exit", Action: "exit"},
		},
	}
}

func (d *Dispatcher) addScanForm() *models.Form {
	return &models.Form{
		Type:   "session form",
		FormID: "add_scan",
		Title:  "Add New Scan",
		Fields: []models.FormField{
			{Name: "retailer", Type: "text", Label: "Retailer", Placeholder: "Type to search...", Options: d.retailerNames()},
			{Name: "date", Type: "text", Label: "Date", Placeholder: "MM/DD/YYYY"},
			{Name: "count", Type: "number", Label: "Scan Count", Placeholder: "1"},
		},
		SubmitLabel:    "Add Scan",
		SuccessMessage: "Scan added successfully",
		Buttons: []models.FormButton{
			{Text: "Add Scan", Action: "submit"},
			{Text: "Cancel", Action: "exit"},
		},
	}
}

func (d *Dispatcher) addRetailerForm() *models.Form {
	return &models.Form{
		Type:   "session form",
		FormID: "add_retailer",
		Title:  "Add New Retailer",
		Fields: []models.FormField{
			{Name: "retailer", Type: "text", Label: "Retailer Name"},
			{Name: "account_number", Type: "text", Label: "Account Number"},
			{Name: "email", Type: "text", Label: "Email"},
			{Name: "phone", Type: "text", Label: "Phone"},
			{Name: "street", Type: "text", Label: "Street"},
			{Name: "city", Type: "text", Label: "City"},
			{Name: "state", Type: "text", Label: "State"},
			{Name: "zip_code", Type: "text", Label: "Zip Code"},
			{Name: "tm", Type: "text", Label: "Territory Manager"},
		},
		SubmitLabel: "Add Retailer",
		Buttons: []models.FormButton{
			{Text: "Add Retailer", Action: "submit"},
			{Text: "Cancel", Action: "exit"},
		},
	}
}

func (d *Dispatcher) addNoteForm() *models.Form {
	return &models.Form{
		Type:   "session form",
		FormID: "add_note",
		Title:  "Add Note",
		Fields: []models.FormField{
			{Name: "retailer", Type: "dropdown", Label: "Retailer", Options: d.retailerNames()},
			{Name: "note_type", Type: "select", Label: "Note Type", Options: []string{"notes", "jane_notes"}},
			{Name: "note", Type: "text", Label: "Note"},
			{Name: "author", Type: "text", Label: "Author", Placeholder: "Bot"},
		},
		SubmitLabel: "Add Note",
		Buttons: []models.FormButton{
			{Text: "Add Note", Action: "submit"},
			{Text: "Cancel", Action: "exit"},
		},
	}
}

// HandleFormSubmission processes one submitted form. Mutating inventory
// forms require the admin role; every successful retailer write
// refreshes the working copy.
func (d *Dispatcher) HandleFormSubmission(ctx context.Context, sessionID string, sub models.FormSubmission, role models.Role) models.Reply {
	slog.Debug("Form submission", "sessionID", sessionID, "formID", sub.FormID)

	switch sub.FormID {
	case "update_retailer":
		return d.applyRetailerUpdates(sub.Data)
	case "add_scan":
		return d.applyScanEntry(sub.Data)
	case "add_retailer":
		return d.addNewRetailer(sub.Data)
	case "add_note":
		return d.addNewNote(sub.Data)
	}

	if inventory.Handles(sub.FormID) {
		reply, err := d.inventory.HandleSubmission(sub, role)
		if err != nil {
			if err == models.ErrUnknownForm {
				return models.TextReply("Unknown form submission.")
			}
			slog.Error("Inventory form failed", "formID", sub.FormID, "error", err.Error())
			return models.TextReply(MsgApology)
		}
		// Mutating admin actions return to the dashboard.
		if sub.FormID == inventory.FormAddDevice || sub.FormID == inventory.FormRemoveDevice {
			if dash, err := d.inventory.DashboardForm(role); err == nil {
				return models.FormReplyWithText(reply.Text, dash.Form)
			}
		}
		return reply
	}

	return models.TextReply("Unknown form submission.")
}

// applyRetailerUpdates handles the update_retailer form: one field+value
// pair, allow-list filtered.
func (d *Dispatcher) applyRetailerUpdates(data map[string]string) models.Reply {
	retailer := strings.TrimSpace(data["retailer"])
	if retailer == "" {
		return models.TextReply("Missing retailer.")
	}
	field := strings.TrimSpace(data["field"])
	value, hasValue := data["value"]
	if field == "" || !hasValue {
		return models.TextReply("Nothing to update.")
	}
	if !match.AllowedUpdateColumns[field] {
		return models.TextReply("None of the submitted fields are allowed to be updated.")
	}
	if _, ok := d.findRetailer(retailer); !ok {
		return models.TextReply(fmt.Sprintf("Retailer '%s' not found.", retailer))
	}

	n, err := d.store.UpdateRetailerFields(retailer, []models.FieldUpdate{{Column: field, Value: value}})
	if err != nil {
		slog.Error("Retailer update failed", "retailer", retailer, "field", field, "error", err.Error())
		return models.TextReply(MsgApology)
	}
	if n == 0 {
		return models.TextReply(fmt.Sprintf("No rows updated for %s.", retailer))
	}
	d.refreshRetailers()
	return models.TextReply(fmt.Sprintf("Updated %s for %s.", strings.ReplaceAll(field, "_", " "), retailer))
}

// applyScanEntry handles the add_scan form.
func (d *Dispatcher) applyScanEntry(data map[string]string) models.Reply {
	retailer := strings.TrimSpace(data["retailer"])
	date := strings.TrimSpace(data["date"])
	count := strings.TrimSpace(data["count"])
	if retailer == "" || date == "" || count == "" {
		return models.TextReply("Please fill all fields.")
	}

	when, err := time.Parse(scanDateLayout, date)
	if err != nil {
		return models.TextReply("Invalid date format. Please use MM/DD/YYYY.")
	}
	n, err := strconv.Atoi(count)
	if err != nil || n <= 0 {
		return models.TextReply("Scan count must be a positive number.")
	}

	if err := d.store.AddScanEvent(models.ScanEvent{Retailer: retailer, Date: when, Count: n}); err != nil {
		slog.Error("Failed to add scan event", "retailer", retailer, "error", err.Error())
		return models.TextReply("Failed to add scan.")
	}
	return models.TextReply(fmt.Sprintf("Added %d scan(s) for %s on %s", n, retailer, date))
}

// addNewRetailer handles the add_retailer form.
func (d *Dispatcher) addNewRetailer(data map[string]string) models.Reply {
	name := strings.TrimSpace(data["retailer"])
	if name == "" {
		return models.TextReply("Please provide a retailer name.")
	}

	r := models.Retailer{Name: name, Fields: make(map[string]string)}
	for key, value := range data {
		if key == "retailer" || strings.TrimSpace(value) == "" {
			continue
		}
		if store.IsRetailerColumn(key) {
			r.Fields[key] = strings.TrimSpace(value)
		}
	}

	if err := d.store.AddRetailer(r); err != nil {
		if err == models.ErrDuplicate {
			return models.TextReply(fmt.Sprintf("A retailer named %s already exists.", name))
		}
		slog.Error("Failed to add retailer", "retailer", name, "error", err.Error())
		return models.TextReply(MsgApology)
	}
	d.refreshRetailers()
	return models.TextReply(fmt.Sprintf("Added retailer %s.", name))
}

// addNewNote handles the add_note form; notes always append with a
// timestamped author header.
func (d *Dispatcher) addNewNote(data map[string]string) models.Reply {
	retailer := strings.TrimSpace(data["retailer"])
	note := strings.TrimSpace(data["note"])
	if retailer == "" || note == "" {
		return models.TextReply("Please provide a retailer and a note.")
	}
	noteType := strings.TrimSpace(data["note_type"])
	if noteType != "jane_notes" {
		noteType = "notes"
	}
	author := strings.TrimSpace(data["author"])
	if author == "" {
		author = "Bot"
	}

	rec, ok := d.findRetailer(retailer)
	if !ok {
		return models.TextReply(fmt.Sprintf("Retailer '%s' not found.", retailer))
	}
	existing, _ := rec.Field(noteType)
	value := appendNote(existing, note, author, d.now())

	if _, err := d.store.UpdateRetailerFields(rec.Name, []models.FieldUpdate{{Column: noteType, Value: value}}); err != nil {
		slog.Error("Failed to add note", "retailer", retailer, "error", err.Error())
		return models.TextReply(MsgApology)
	}
	d.refreshRetailers()
	return models.TextReply(fmt.Sprintf("Note added for %s.", rec.Name))
}
