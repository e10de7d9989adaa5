package bot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RetailPipe/RetailPipe/internal/models"
	"github.com/RetailPipe/RetailPipe/internal/store"
)

var testClock = func() time.Time {
	return time.Date(2026, time.April, 15, 12, 0, 0, 0, time.UTC)
}

func seedStore(t *testing.T) *store.InMemoryStore {
	t.Helper()
	st := store.NewInMemoryStore()
	retailers := []models.Retailer{
		{
			Name: "Acme Corp",
			Fields: map[string]string{
				"account_number":  "AC-555",
				"street":          "100 Main St",
				"city":            "Denver",
				"state":           "CO",
				"zip_code":        "80202",
				"country":         "USA",
				"fitter":          "Pat",
				"ri_app_username": "acmeuser",
				"ri_app_password": "hunter2",
				"ipad_number":     "42",
				"sensor_serial":   "SN-100",
				"notes":           "Existing note.",
			},
		},
		{Name: "Meridian", Fields: map[string]string{"ri_app_password": "m3rpass"}},
		{Name: "Ghost Retailer", Fields: map[string]string{}},
	}
	for _, r := range retailers {
		if err := st.AddRetailer(r); err != nil {
			t.Fatal(err)
		}
	}
	st.SeedTroubleshooting([]models.TroubleshootingEntry{
		{Question: "iPad won't turn on", Answer: "Hold the power button for ten seconds."},
		{Question: "Sensor not pairing", Answer: "Toggle Bluetooth and retry the pairing."},
		{Question: "App keeps crashing", Answer: "Update to the latest app version."},
	})
	return st
}

func newTestDispatcher(t *testing.T, options ...Option) (*Dispatcher, *store.InMemoryStore) {
	t.Helper()
	st := seedStore(t)
	options = append([]Option{WithClock(testClock), WithDocDir(t.TempDir())}, options...)
	d, err := NewDispatcher(st, options...)
	if err != nil {
		t.Fatal(err)
	}
	return d, st
}

func say(t *testing.T, d *Dispatcher, session, input string) models.Reply {
	t.Helper()
	return d.ProcessInput(context.Background(), session, input, models.RoleUser)
}

func TestAmbiguousRetailerConfirmation(t *testing.T) {
	d, _ := newTestDispatcher(t)
	const session = "s_confirm"

	// "marigold" is close enough to Meridian to guess, but not close
	// enough to auto-select, so the bot must ask first.
	reply := say(t, d, session, "marigold")
	want := "I think you mean Meridian. Is that correct? (yes/no)"
	if reply.Text != want {
		t.Fatalf("ambiguous input reply = %q, want %q", reply.Text, want)
	}

	reply = say(t, d, session, "yes")
	if reply.Text != "Great. What information do you need for Meridian?" {
		t.Fatalf("yes reply = %q", reply.Text)
	}

	reply = say(t, d, session, "password")
	if reply.Text != "App Password for Meridian is: m3rpass" {
		t.Errorf("field answer = %q", reply.Text)
	}
}

func TestConfirmationRejected(t *testing.T) {
	d, _ := newTestDispatcher(t)
	const session = "s_reject"

	say(t, d, session, "marigold")
	reply := say(t, d, session, "no")
	if reply.Text != "Okay, please tell me the correct retailer name." {
		t.Fatalf("no reply = %q", reply.Text)
	}

	reply = say(t, d, session, "acme corp")
	if reply.Text != "Got it Acme Corp. What information do you need?" {
		t.Fatalf("corrected retailer reply = %q", reply.Text)
	}

	reply = say(t, d, session, "username")
	if reply.Text != "App Username for Acme Corp is: acmeuser" {
		t.Errorf("field answer = %q", reply.Text)
	}
}

func TestConfirmationReprompt(t *testing.T) {
	d, _ := newTestDispatcher(t)
	const session = "s_reprompt"

	say(t, d, session, "marigold")
	reply := say(t, d, session, "perhaps")
	if reply.Text != "Please answer yes or no." {
		t.Errorf("non-yes/no reply = %q", reply.Text)
	}
	// the pending confirmation is still live
	reply = say(t, d, session, "yes")
	if !strings.Contains(reply.Text, "Meridian") {
		t.Errorf("confirmation lost after re-prompt: %q", reply.Text)
	}
}

func TestSingleTurnLookup(t *testing.T) {
	d, _ := newTestDispatcher(t)

	reply := say(t, d, "s_lookup", "what is the password for acme corp")
	if reply.Text != "Acme Corp's App Password is hunter2." {
		t.Errorf("lookup reply = %q", reply.Text)
	}

	reply = say(t, d, "s_lookup", "what is the fitter for acme corp")
	if reply.Text != "Acme Corp's Fitter is Pat." {
		t.Errorf("lookup reply = %q", reply.Text)
	}
}

func TestLookupMissingValue(t *testing.T) {
	d, _ := newTestDispatcher(t)
	reply := say(t, d, "s_missing", "what is the phone number for acme corp")
	if reply.Text != "I don't have a Phone Number on file for Acme Corp." {
		t.Errorf("missing value reply = %q", reply.Text)
	}
}

func TestMultiFieldLookup(t *testing.T) {
	d, _ := newTestDispatcher(t)
	reply := say(t, d, "s_multi", "username and password for acme corp")
	if !strings.HasPrefix(reply.Text, "Here is the information for Acme Corp:") {
		t.Fatalf("multi-field reply = %q", reply.Text)
	}
	for _, want := range []string{"App Username: acmeuser", "App Password: hunter2"} {
		if !strings.Contains(reply.Text, want) {
			t.Errorf("multi-field reply missing %q: %q", want, reply.Text)
		}
	}
}

func TestAllInfoLookup(t *testing.T) {
	d, _ := newTestDispatcher(t)
	reply := say(t, d, "s_all", "all info for acme corp")
	if !strings.HasPrefix(reply.Text, "All info for Acme Corp:") {
		t.Fatalf("all-info reply = %q", reply.Text)
	}
	for _, want := range []string{"Account Number: AC-555", "City: Denver", "Trupad Number: 42"} {
		if !strings.Contains(reply.Text, want) {
			t.Errorf("all-info reply missing %q", want)
		}
	}
}

func TestBatchUpdateThenReadback(t *testing.T) {
	d, _ := newTestDispatcher(t)
	const session = "s_update"

	reply := say(t, d, session, "acme corp, ipad to 99")
	if reply.Text != "Updated ipad number for Acme Corp." {
		t.Fatalf("update reply = %q", reply.Text)
	}

	// the very next lookup must see the new value
	reply = say(t, d, session, "what is the trupad number for acme corp")
	if reply.Text != "Acme Corp's Trupad Number is 99." {
		t.Errorf("readback reply = %q", reply.Text)
	}
}

func TestNoteAdditionAppends(t *testing.T) {
	d, st := newTestDispatcher(t)

	reply := say(t, d, "s_note", "add note for acme corp, notes to call before noon")
	if reply.Text != "Updated notes for Acme Corp." {
		t.Fatalf("note reply = %q", reply.Text)
	}

	r, err := st.GetRetailer("Acme Corp")
	if err != nil {
		t.Fatal(err)
	}
	want := "Existing note.\n[2026-04-15 12:00 | Bot] call before noon"
	if r.Fields["notes"] != want {
		t.Errorf("notes = %q, want %q", r.Fields["notes"], want)
	}
}

func TestScanHistoryWindow(t *testing.T) {
	d, st := newTestDispatcher(t)

	// Three single scans in the last three calendar months. The window
	// math runs against the wall clock, so seed relative to it.
	now := time.Now().UTC()
	base := time.Date(now.Year(), now.Month(), 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ev := models.ScanEvent{Retailer: "Acme Corp", Date: base.AddDate(0, -i, 0), Count: 1}
		if err := st.AddScanEvent(ev); err != nil {
			t.Fatal(err)
		}
	}

	reply := say(t, d, "s_hist", "history for acme for 6 months")
	if !strings.HasPrefix(reply.Text, "Scan history for Acme Corp:") {
		t.Fatalf("history reply = %q", reply.Text)
	}
	if strings.Contains(reply.Text, "No scan history") {
		t.Fatalf("history reply claims no history: %q", reply.Text)
	}
	if got := strings.Count(reply.Text, ": 1"); got != 3 {
		t.Errorf("history reply has %d monthly counts of 1, want 3: %q", got, reply.Text)
	}
}

func TestScanHistoryEmpty(t *testing.T) {
	d, _ := newTestDispatcher(t)
	reply := say(t, d, "s_hist0", "scan history for ghost retailer")
	if reply.Text != "No scan history found for Ghost Retailer" {
		t.Errorf("empty history reply = %q", reply.Text)
	}
}

func TestPredictWithoutHistory(t *testing.T) {
	d, _ := newTestDispatcher(t)
	reply := say(t, d, "s_pred", "predict scans for ghost retailer")
	if reply.Text != "Not enough scan history for Ghost Retailer" {
		t.Errorf("zero-history prediction reply = %q", reply.Text)
	}
}

func TestScanEntryMode(t *testing.T) {
	d, _ := newTestDispatcher(t)
	const session = "s_entry"

	reply := say(t, d, session, "scan entry")
	if reply.Kind != models.ReplyScanEntry {
		t.Fatalf("scan entry trigger kind = %q, want %q", reply.Kind, models.ReplyScanEntry)
	}

	reply = say(t, d, session, "acme corp 04/10/2026 2")
	if reply.Text != "Scan added successfully." {
		t.Errorf("in-mode reply = %q", reply.Text)
	}

	reply = say(t, d, session, "exit")
	if reply.Text != "Scan entry complete!" {
		t.Fatalf("exit reply = %q", reply.Text)
	}

	// mode is off: normal dispatch resumes
	reply = say(t, d, session, "help")
	if !strings.Contains(reply.Text, "examples") {
		t.Errorf("post-exit reply = %q, want the help text", reply.Text)
	}
}

func TestParcelShipperWithEquipmentOnFile(t *testing.T) {
	docDir := t.TempDir()
	d, _ := newTestDispatcher(t, WithDocDir(docDir))
	const session = "s_parcel"

	reply := say(t, d, session, "make a parcel shipper for acme corp")
	if reply.Text != "Do you want to use the equipment on file for this retailer?" {
		t.Fatalf("parcel trigger reply = %q", reply.Text)
	}

	reply = say(t, d, session, "yes")
	if reply.Text != "What shipping method?" {
		t.Fatalf("equipment reply = %q", reply.Text)
	}

	reply = say(t, d, session, "pigeon")
	if reply.Text != "Please choose Ground, 2 Day, or Overnight." {
		t.Fatalf("bad method reply = %q", reply.Text)
	}

	reply = say(t, d, session, "ground")
	if reply.Kind != models.ReplyFile {
		t.Fatalf("doc reply kind = %q, want file (%q)", reply.Kind, reply.Text)
	}
	if reply.FileName != "parcel_Acme_Corp_20260415_120000.txt" {
		t.Errorf("doc file name = %q", reply.FileName)
	}
	data, err := os.ReadFile(reply.FilePath)
	if err != nil {
		t.Fatalf("reading generated doc: %v", err)
	}
	doc := string(data)
	for _, want := range []string{
		"Ship To: Acme Corp",
		"Shipment: Trupad 42 and SN-100",
		"Shipping Method: Ground",
		"Account Number: AC-555",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("generated doc missing %q", want)
		}
	}
}

func TestParcelShipperManualItems(t *testing.T) {
	d, _ := newTestDispatcher(t)
	const session = "s_parcel2"

	reply := say(t, d, session, "create shipping form")
	if reply.Text != "Which retailer is this shipment for?" {
		t.Fatalf("no-retailer trigger reply = %q", reply.Text)
	}

	reply = say(t, d, session, "meridian")
	if reply.Text != "Do you want to use the equipment on file for this retailer?" {
		t.Fatalf("retailer capture reply = %q", reply.Text)
	}

	reply = say(t, d, session, "no")
	if reply.Text != "What items are being shipped?" {
		t.Fatalf("manual items prompt = %q", reply.Text)
	}

	reply = say(t, d, session, "2 chargers and a case")
	if reply.Text != "What shipping method?" {
		t.Fatalf("items reply = %q", reply.Text)
	}

	reply = say(t, d, session, "overnight")
	if reply.Kind != models.ReplyFile {
		t.Fatalf("doc reply kind = %q (%q)", reply.Kind, reply.Text)
	}
	data, err := os.ReadFile(reply.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Shipment: 2 chargers and a case") {
		t.Errorf("doc missing manual items:\n%s", data)
	}
}

func TestNewEquipmentSwap(t *testing.T) {
	d, st := newTestDispatcher(t)
	const session = "s_equip"

	reply := say(t, d, session, "send new equipment to acme corp")
	if reply.Text != "What is the new iPad number?" {
		t.Fatalf("trigger reply = %q", reply.Text)
	}

	reply = say(t, d, session, "IP-900")
	if reply.Text != "What is the new sensor serial?" {
		t.Fatalf("ipad capture reply = %q", reply.Text)
	}

	reply = say(t, d, session, "SNX-900")
	if reply.Text != "New equipment saved for Acme Corp and old equipment moved to returning." {
		t.Fatalf("apply reply = %q", reply.Text)
	}

	r, err := st.GetRetailer("Acme Corp")
	if err != nil {
		t.Fatal(err)
	}
	if r.Fields["ipad_number"] != "IP-900" || r.Fields["sensor_serial"] != "SNX-900" {
		t.Errorf("equipment fields = %q / %q", r.Fields["ipad_number"], r.Fields["sensor_serial"])
	}
	if r.Fields["returning_equipment"] != "42 / SN-100" {
		t.Errorf("returning_equipment = %q, want old pair", r.Fields["returning_equipment"])
	}
}

func TestTroubleshootingAnswer(t *testing.T) {
	d, _ := newTestDispatcher(t)
	reply := say(t, d, "s_trouble", "app keeps crashing")
	if reply.Text != "App keeps crashing: Update to the latest app version." {
		t.Errorf("troubleshooting reply = %q", reply.Text)
	}
}

func TestTroubleTopicsList(t *testing.T) {
	d, _ := newTestDispatcher(t)
	reply := say(t, d, "s_topics", "what can you troubleshoot")
	if !strings.HasPrefix(reply.Text, "Here are the troubleshooting issues I can help with:") {
		t.Fatalf("topics reply = %q", reply.Text)
	}
	for _, q := range []string{"iPad won't turn on", "Sensor not pairing", "App keeps crashing"} {
		if !strings.Contains(reply.Text, q) {
			t.Errorf("topics reply missing %q", q)
		}
	}
}

func TestInventoryDashboardRoleGating(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	user := d.ProcessInput(ctx, "s_inv", "inventory tracker", models.RoleUser)
	if user.Kind != models.ReplyForm || user.Form == nil {
		t.Fatalf("dashboard kind = %q", user.Kind)
	}
	if !strings.Contains(user.Text, "Inventory overview:") {
		t.Errorf("dashboard text = %q", user.Text)
	}
	for _, b := range user.Form.Buttons {
		if b.Text == "Add Device" || b.Text == "Remove Device" {
			t.Errorf("non-admin dashboard carries %q button", b.Text)
		}
	}

	admin := d.ProcessInput(ctx, "s_inv", "inventory tracker", models.RoleAdmin)
	var hasAdd bool
	for _, b := range admin.Form.Buttons {
		if b.Text == "Add Device" {
			hasAdd = true
		}
	}
	if !hasAdd {
		t.Error("admin dashboard missing Add Device button")
	}
}

func TestOpenFormCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	reply := say(t, d, "s_form", "open_form update_retailer")
	if reply.Kind != models.ReplyForm || reply.Form == nil || reply.Form.FormID != "update_retailer" {
		t.Fatalf("open_form reply = %+v", reply)
	}
	if reply.Form.DynamicFields == nil || len(reply.Form.DynamicFields.Options) == 0 {
		t.Error("update form should list updatable columns")
	}

	reply = say(t, d, "s_form", "open_form no_such_form")
	if reply.Text != "Unknown form." {
		t.Errorf("unknown form reply = %q", reply.Text)
	}
}

func TestFlowSessionThroughDispatcher(t *testing.T) {
	flowsPath := filepath.Join(t.TempDir(), "flows.json")
	const doc = `{
  "login_help": {
    "triggers": ["log in", "login"],
    "start": "see_screen",
    "steps": [
      {
        "id": "see_screen",
        "type": "yes_no",
        "question": "Is {{retailer}} showing the login screen?",
        "yes": {"response": "Enter the app password {{ri_app_password}} and try again.", "end": true},
        "no": {"response": "Open the RI app first, then try again.", "end": true}
      }
    ]
  }
}`
	if err := os.WriteFile(flowsPath, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	d, _ := newTestDispatcher(t, WithFlowsPath(flowsPath))
	const session = "s_flow"

	reply := say(t, d, session, "help me log in to acme corp")
	if reply.Text != "Is Acme Corp showing the login screen?" {
		t.Fatalf("flow start reply = %q", reply.Text)
	}

	reply = say(t, d, session, "maybe")
	if reply.Text != "Please answer yes or no." {
		t.Fatalf("flow re-prompt = %q", reply.Text)
	}

	reply = say(t, d, session, "yes")
	if reply.Text != "Enter the app password hunter2 and try again." {
		t.Errorf("flow terminal reply = %q", reply.Text)
	}
}

func TestFlowPausesForRetailer(t *testing.T) {
	flowsPath := filepath.Join(t.TempDir(), "flows.json")
	const doc = `{
  "login_help": {
    "triggers": ["log in"],
    "start": "see_screen",
    "steps": [
      {
        "id": "see_screen",
        "type": "yes_no",
        "question": "Is {{retailer}} showing the login screen?",
        "no": {"response": "Open the RI app first.", "end": true}
      }
    ]
  }
}`
	if err := os.WriteFile(flowsPath, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	d, _ := newTestDispatcher(t, WithFlowsPath(flowsPath))
	const session = "s_flow2"

	reply := say(t, d, session, "i cannot log in")
	if reply.Text != "Which retailer are you trying to log into?" {
		t.Fatalf("pause reply = %q", reply.Text)
	}

	reply = say(t, d, session, "meridian")
	if reply.Text != "Is Meridian showing the login screen?" {
		t.Fatalf("resume reply = %q", reply.Text)
	}

	reply = say(t, d, session, "no")
	if reply.Text != "Open the RI app first." {
		t.Errorf("flow terminal reply = %q", reply.Text)
	}
}

func TestAutocompleteRetailers(t *testing.T) {
	d, _ := newTestDispatcher(t)

	got := d.AutocompleteRetailers("acm", 10)
	if len(got) == 0 || got[0] != "Acme Corp" {
		t.Errorf("autocomplete = %v, want Acme Corp first", got)
	}

	all := d.AutocompleteRetailers("", 2)
	if len(all) != 2 {
		t.Errorf("empty prefix should list names capped at limit, got %v", all)
	}
}

func TestEndConversationDropsState(t *testing.T) {
	d, _ := newTestDispatcher(t)
	const session = "s_end"

	say(t, d, session, "marigold")
	d.EndConversation(session)

	// with the confirmation gone, "yes" falls to the answer rule
	reply := say(t, d, session, "yes")
	if strings.Contains(reply.Text, "Meridian") {
		t.Errorf("conversation state survived EndConversation: %q", reply.Text)
	}
}
