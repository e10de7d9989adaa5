package bot

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/RetailPipe/RetailPipe/internal/flow"
	"github.com/RetailPipe/RetailPipe/internal/match"
	"github.com/RetailPipe/RetailPipe/internal/models"
	"github.com/RetailPipe/RetailPipe/internal/scan"
	"github.com/RetailPipe/RetailPipe/internal/store"
	"github.com/RetailPipe/RetailPipe/internal/textnorm"
)

// Rule 1: structured form requests bypass all free-text interpretation.
func (d *Dispatcher) ruleOpenForm(c *Conversation, input string, role models.Role) models.Reply {
	if id, ok := strings.CutPrefix(input, "open_form "); ok {
		return d.openForm(strings.TrimSpace(id), role)
	}
	if isInventoryRequest(input) {
		reply, err := d.inventory.DashboardForm(role)
		if err != nil {
			slog.Error("Inventory dashboard failed", "error", err.Error())
			return models.TextReply(MsgApology)
		}
		return reply
	}
	return models.Reply{}
}

// Rule 2: explicit update-retailer phrase emits the update form.
func (d *Dispatcher) ruleUpdateRetailerPhrase(c *Conversation, input string, role models.Role) models.Reply {
	if strings.Contains(strings.ToLower(input), "update retailer") {
		return models.FormReply(d.updateRetailerForm())
	}
	return models.Reply{}
}

// Rule 3: scan-entry mode. The trigger opens the entry form; once the
// mode is active it consumes every turn until an exit command.
func (d *Dispatcher) ruleScanEntry(c *Conversation, input string, role models.Role) models.Reply {
	if isScanEntryTrigger(input) {
		c.activeScanEntry = true
		return models.ScanEntryPrompt()
	}
	if c.activeScanEntry {
		if isExitCommand(input) {
			c.activeScanEntry = false
			return models.TextReply("Scan entry complete!")
		}
		return models.TextReply("Scan added successfully.")
	}
	return models.Reply{}
}

// Rule 4: a paused flow is waiting for a retailer name.
func (d *Dispatcher) ruleResumeFlowRetailer(c *Conversation, input string, role models.Role) models.Reply {
	if !c.awaitingFlowRetailer {
		return models.Reply{}
	}
	m := d.resolveRetailer(input, 60)
	if !m.Found() {
		return models.TextReply("Sorry, I still couldn't find that retailer. Please try again.")
	}
	c.awaitingFlowRetailer = false
	c.flowSession = flow.NewSession(d.flows, d.flowContext(m.Name))
	return models.TextReply(c.flowSession.Start(c.pendingFlowID))
}

// Rule 5: active flow turns, then flow trigger phrases. A trigger with
// no resolvable retailer pauses the flow and asks for one.
func (d *Dispatcher) ruleFlow(c *Conversation, input string, role models.Role) models.Reply {
	if c.flowActive() {
		resp, ok := c.flowSession.HandleInput(input)
		if ok {
			if !c.flowSession.Active() {
				c.flowSession = nil
			}
			return models.TextReply(resp)
		}
		c.flowSession = nil
	}

	id, ok := d.flows.MatchTrigger(textnorm.Normalize(input))
	if !ok {
		return models.Reply{}
	}
	m := d.resolveRetailer(input, 60)
	if !m.Found() {
		c.awaitingFlowRetailer = true
		c.pendingFlowID = id
		return models.TextReply("Which retailer are you trying to log into?")
	}
	c.flowSession = flow.NewSession(d.flows, d.flowContext(m.Name))
	return models.TextReply(c.flowSession.Start(id))
}

// flowContext binds the retailer and its stored credential for {{key}}
// template expansion.
func (d *Dispatcher) flowContext(retailer string) map[string]string {
	ctx := map[string]string{"retailer": retailer}
	if rec, ok := d.findRetailer(retailer); ok {
		if pw, ok := rec.Field("ri_app_password"); ok {
			ctx["ri_app_password"] = pw
		}
	}
	return ctx
}

// Rule 6: listing of known troubleshooting topics.
func (d *Dispatcher) ruleTroubleTopics(c *Conversation, input string, role models.Role) models.Reply {
	if !isTroubleListRequest(input) {
		return models.Reply{}
	}
	if d.trouble.Empty() {
		return models.TextReply("I don't have any troubleshooting topics saved yet.")
	}
	topics := d.trouble.Topics()
	var b strings.Builder
	b.WriteString("Here are the troubleshooting issues I can help with:\n\n")
	for _, t := range topics {
		b.WriteString("- " + t + "\n")
	}
	return models.TextReply(strings.TrimRight(b.String(), "\n"))
}

// Rule 7: retailer-info questions, and the await-field slot for a
// locked-in retailer. Update utterances and note additions are left for
// the batch-update rule so lookups never shadow writes.
func (d *Dispatcher) ruleRetailerInfo(c *Conversation, input string, role models.Role) models.Reply {
	if c.awaitingInfo != "" {
		return d.handleInfoRequest(c, input)
	}
	if !match.ContainsFieldAlias(input) {
		return models.Reply{}
	}
	if len(match.DetectUpdates(input)) > 0 || isNoteAddition(input) {
		return models.Reply{}
	}
	return d.handleRetailerInput(c, input)
}

// handleInfoRequest resolves a field name for the locked-in retailer.
func (d *Dispatcher) handleInfoRequest(c *Conversation, input string) models.Reply {
	retailer := c.awaitingInfo
	fm, ok := d.fields.Resolve(input)
	if !ok {
		return models.TextReply("I still couldn't tell what info you need. Try saying password, username, or account number.")
	}
	if fm.Score < models.FieldMedium {
		return models.TextReply(fmt.Sprintf("For %s, did you want %s?", retailer, strings.ToLower(match.DisplayName(fm.Column))))
	}
	c.awaitingInfo = ""
	return d.getColumnValue(c, retailer, fm.Column)
}

// handleRetailerInput resolves retailer plus requested field(s) from one
// utterance: multi-field, full record, single field, or an open "what do
// you need?" follow-up.
func (d *Dispatcher) handleRetailerInput(c *Conversation, input string) models.Reply {
	c.awaitingRetailer = false

	m := d.resolveRetailer(input, 50)
	if !m.Found() {
		c.awaitingRetailer = true
		return models.TextReply("Sorry, I still couldn't find that retailer. Please try again.")
	}

	cols := match.ParseRequestedColumns(input)
	if len(cols) > 1 {
		c.awaitingMultiInfo = m.Name
		return d.getMultipleInfo(c, input)
	}

	if match.WantsEverything(input) {
		rec, ok := d.findRetailer(m.Name)
		if !ok {
			return models.TextReply("I lost track of that retailer. Please ask again.")
		}
		return models.TextReply(fmt.Sprintf("All info for %s:\n%s", m.Name, formatRetailerRecord(rec)))
	}

	if len(cols) == 1 {
		rec, ok := d.findRetailer(m.Name)
		if !ok {
			return models.TextReply("I lost track of that retailer. Please ask again.")
		}
		label := match.DisplayName(cols[0])
		if v, ok := rec.Field(cols[0]); ok {
			return models.TextReply(fmt.Sprintf("%s's %s is %s.", m.Name, label, v))
		}
		return models.TextReply(fmt.Sprintf("I don't have a %s on file for %s.", label, m.Name))
	}

	c.awaitingInfo = m.Name
	return models.TextReply(fmt.Sprintf("Got it %s. What information do you need?", m.Name))
}

// formatRetailerRecord renders the non-blank fields of a record in
// column display order.
func formatRetailerRecord(rec models.Retailer) string {
	var lines []string
	for _, col := range store.RetailerColumns() {
		if v, ok := rec.Field(col); ok {
			lines = append(lines, fmt.Sprintf("%s: %s", match.DisplayName(col), v))
		}
	}
	return strings.Join(lines, "\n")
}

// getColumnValue answers one (retailer, column) lookup and clears the
// lookup slots.
func (d *Dispatcher) getColumnValue(c *Conversation, retailer, column string) models.Reply {
	rec, ok := d.findRetailer(retailer)
	if !ok {
		return models.TextReply(fmt.Sprintf("Sorry, I couldn't find that information for %s.", retailer))
	}
	v, ok := rec.Field(column)
	if !ok {
		return models.TextReply(fmt.Sprintf("No information stored for %s.", retailer))
	}
	c.clearLookupState()
	return models.TextReply(fmt.Sprintf("%s for %s is: %s", match.DisplayName(column), retailer, v))
}

// Rule 8: troubleshooting similarity match. Retailer-info questions are
// never troubleshooting questions.
func (d *Dispatcher) ruleTroubleshooting(c *Conversation, input string, role models.Role) models.Reply {
	if match.ContainsFieldAlias(input) {
		return models.Reply{}
	}
	if answer, ok := d.trouble.Match(input, models.TroubleThreshold); ok {
		return models.TextReply(answer)
	}
	return models.Reply{}
}

// Rule 9: bare help command.
func (d *Dispatcher) ruleHelp(c *Conversation, input string, role models.Role) models.Reply {
	if !isHelpCommand(input) {
		return models.Reply{}
	}
	examples := []string{
		"Customer info lookup: 'What is the username and password for forever me?' (try 'all info')",
		"Check scan history: 'Scan history for 3 months for images boutique'",
		"Predict future scans: 'Predict scans for 4 months for images boutique' (up to 12 months)",
		"Inventory: 'inventory tracker'",
		"Update a field: 'update retailer'",
	}
	var b strings.Builder
	b.WriteString("Here are some examples of how you can interact with me:\n\n")
	for _, ex := range examples {
		b.WriteString("- " + ex + "\n")
	}
	return models.TextReply(strings.TrimRight(b.String(), "\n"))
}

// Rule 10: pending yes/no confirmation of a fuzzy retailer guess.
func (d *Dispatcher) ruleConfirmation(c *Conversation, input string, role models.Role) models.Reply {
	if c.awaitingConfirmation == "" {
		return models.Reply{}
	}
	switch textnorm.Normalize(input) {
	case "yes", "y":
		name := c.awaitingConfirmation
		c.awaitingConfirmation = ""
		c.awaitingInfo = name
		return models.TextReply(fmt.Sprintf("Great. What information do you need for %s?", name))
	case "no", "n":
		c.awaitingConfirmation = ""
		c.awaitingRetailer = true
		return models.TextReply("Okay, please tell me the correct retailer name.")
	default:
		return models.TextReply("Please answer yes or no.")
	}
}

// Rule 11: pending multi-field request.
func (d *Dispatcher) ruleMultiInfo(c *Conversation, input string, role models.Role) models.Reply {
	if c.awaitingMultiInfo == "" {
		return models.Reply{}
	}
	return d.getMultipleInfo(c, input)
}

// getMultipleInfo answers a multi-field fetch for one retailer. The slot
// is cleared via defer so a failed turn can never wedge the session.
func (d *Dispatcher) getMultipleInfo(c *Conversation, input string) models.Reply {
	if c.awaitingMultiInfo == "" {
		m := d.resolveRetailer(input, models.RetailerHigh)
		if !m.Found() {
			return models.TextReply("I couldn't find that retailer.")
		}
		c.awaitingMultiInfo = m.Name
	}
	defer func() { c.awaitingMultiInfo = "" }()

	retailer := c.awaitingMultiInfo
	cols := match.ParseRequestedColumns(input)
	if len(cols) == 0 {
		return models.TextReply("What information do you want about them?")
	}

	rec, ok := d.findRetailer(retailer)
	if !ok {
		return models.TextReply("I lost track of that retailer. Please ask again.")
	}

	lines := make([]string, len(cols))
	for i, col := range cols {
		v, ok := rec.Field(col)
		if !ok {
			v = "Not on file"
		}
		lines[i] = fmt.Sprintf("%s: %s", match.DisplayName(col), v)
	}
	return models.TextReply(fmt.Sprintf("Here is the information for %s:\n%s", retailer, strings.Join(lines, "\n")))
}

// Rule 12: a shipment awaiting its shipping method.
func (d *Dispatcher) ruleShipping(c *Conversation, input string, role models.Role) models.Reply {
	if c.awaitingShipping == nil {
		return models.Reply{}
	}
	method, ok := parseShippingMethod(input)
	if !ok {
		return models.TextReply("Please choose Ground, 2 Day, or Overnight.")
	}
	state := c.awaitingShipping
	c.awaitingShipping = nil
	return d.generateParcelDoc(state.Retailer, state.Items, method)
}

func parseShippingMethod(input string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "ground", "g":
		return "Ground", true
	case "2 day", "two day", "2d", "two d":
		return "2 Day", true
	case "overnight":
		return "Overnight", true
	}
	return "", false
}

// Rule 13: generic "which retailer?" re-ask.
func (d *Dispatcher) ruleAwaitingRetailer(c *Conversation, input string, role models.Role) models.Reply {
	if !c.awaitingRetailer {
		return models.Reply{}
	}
	return d.handleRetailerInput(c, input)
}

// Rule 14: the parcel-shipment collector, or its trigger phrase.
func (d *Dispatcher) ruleParcel(c *Conversation, input string, role models.Role) models.Reply {
	if c.awaitingParcel != nil {
		return d.handleParcelFlow(c, input)
	}
	if !isParcelShipperRequest(input) {
		return models.Reply{}
	}
	m := d.resolveRetailer(input, 60)
	if !m.Found() {
		c.awaitingParcel = &parcelState{}
		return models.TextReply("Which retailer is this shipment for?")
	}
	c.awaitingParcel = &parcelState{Retailer: m.Name}
	return models.TextReply("Do you want to use the equipment on file for this retailer?")
}

// handleParcelFlow advances the parcel collector one answer at a time:
// retailer, equipment-on-file yes/no, manual items. Once the items are
// settled the shipment moves to the shipping-method slot.
func (d *Dispatcher) handleParcelFlow(c *Conversation, input string) models.Reply {
	state := c.awaitingParcel

	if state.Retailer == "" {
		m := d.resolveRetailer(input, 60)
		if !m.Found() {
			return models.TextReply("Sorry, I couldn't find that retailer. Which retailer is this shipment for?")
		}
		state.Retailer = m.Name
		return models.TextReply("Do you want to use the equipment on file for this retailer?")
	}

	if state.UseEquipmentOnFile == nil {
		switch textnorm.Normalize(input) {
		case "yes", "y":
			yes := true
			state.UseEquipmentOnFile = &yes
			c.awaitingShipping = &shippingState{Retailer: state.Retailer, Items: d.equipmentOnFile(state.Retailer)}
			c.awaitingParcel = nil
			return models.TextReply("What shipping method?")
		case "no", "n":
			no := false
			state.UseEquipmentOnFile = &no
			return models.TextReply("What items are being shipped?")
		default:
			return models.TextReply("Please answer yes or no.")
		}
	}

	if state.ManualItems == "" {
		state.ManualItems = input
		c.awaitingShipping = &shippingState{Retailer: state.Retailer, Items: input}
		c.awaitingParcel = nil
		return models.TextReply("What shipping method?")
	}

	c.awaitingParcel = nil
	return models.TextReply("No parcel operation in progress.")
}

// equipmentOnFile renders the stored equipment line for a shipment.
func (d *Dispatcher) equipmentOnFile(retailer string) string {
	rec, ok := d.findRetailer(retailer)
	if !ok {
		return "Equipment on file"
	}
	ipad, _ := rec.Field("ipad_number")
	sensor, _ := rec.Field("sensor_serial")
	return fmt.Sprintf("Trupad %s and %s", ipad, sensor)
}

// generateParcelDoc writes the shipping document and offers it for
// download.
func (d *Dispatcher) generateParcelDoc(retailer, items, method string) models.Reply {
	rec, ok := d.findRetailer(retailer)
	if !ok {
		return models.TextReply("I couldn't find that retailer. Please try again.")
	}
	path, name, err := d.docs.WriteParcelDoc(rec, items, method, d.now())
	if err != nil {
		slog.Error("Failed to write parcel document", "retailer", retailer, "error", err.Error())
		return models.TextReply(MsgApology)
	}
	slog.Info("Parcel document generated", "retailer", retailer, "file", name)
	return models.FileDownload(path, name)
}

// Rule 15: batch multi-field update or note addition.
func (d *Dispatcher) ruleMultiUpdate(c *Conversation, input string, role models.Role) models.Reply {
	if len(match.DetectUpdates(input)) == 0 && !isNoteAddition(input) {
		return models.Reply{}
	}
	return d.handleMultiUpdate(input, "Bot")
}

// handleMultiUpdate applies every allow-listed (column, value) pair
// extracted from the utterance. Note columns append rather than
// overwrite.
func (d *Dispatcher) handleMultiUpdate(input, author string) models.Reply {
	m := d.resolveRetailer(input, 60)
	if !m.Found() {
		return models.TextReply("I couldn't find that retailer.")
	}

	updates := match.DetectUpdates(input)
	if len(updates) == 0 {
		return models.TextReply("I couldn't detect what you want me to update.")
	}

	var applied []models.FieldUpdate
	var changed []string
	for _, u := range updates {
		if !match.AllowedUpdateColumns[u.Column] {
			continue
		}
		if u.Column == "notes" || u.Column == "jane_notes" {
			if rec, ok := d.findRetailer(m.Name); ok {
				existing, _ := rec.Field(u.Column)
				u.Value = appendNote(existing, u.Value, author, d.now())
			}
		}
		applied = append(applied, u)
		changed = append(changed, strings.ReplaceAll(u.Column, "_", " "))
	}
	if len(applied) == 0 {
		return models.TextReply(fmt.Sprintf("No updates were applied for %s.", m.Name))
	}

	n, err := d.store.UpdateRetailerFields(m.Name, applied)
	if err != nil {
		slog.Error("Batch update failed", "retailer", m.Name, "error", err.Error())
		return models.TextReply(MsgApology)
	}
	if n == 0 {
		return models.TextReply(fmt.Sprintf("No updates were applied for %s.", m.Name))
	}
	d.refreshRetailers()
	return models.TextReply(fmt.Sprintf("Updated %s for %s.", strings.Join(changed, ", "), m.Name))
}

// Rule 16: the two-step new-equipment collector (iPad number, then
// sensor serial), gated on the pending-action flag.
func (d *Dispatcher) ruleNewEquipment(c *Conversation, input string, role models.Role) models.Reply {
	if c.pendingAction == "new_equipment" && c.newIPad == "" {
		c.newIPad = input
		return models.TextReply("What is the new sensor serial?")
	}

	if c.pendingAction == "new_equipment" && c.newSensor == "" {
		c.newSensor = input
		reply := d.applyNewEquipment(c)
		c.pendingAction = ""
		c.newIPad = ""
		c.newSensor = ""
		return reply
	}

	if isNewEquipmentRequest(input) {
		c.pendingAction = "new_equipment"
		c.lastUserInput = input
		c.newIPad = ""
		c.newSensor = ""
		return models.TextReply("What is the new iPad number?")
	}
	return models.Reply{}
}

// applyNewEquipment swaps in the collected equipment and moves the old
// equipment into the returning column.
func (d *Dispatcher) applyNewEquipment(c *Conversation) models.Reply {
	m := d.resolveRetailer(c.lastUserInput, 60)
	if !m.Found() {
		return models.TextReply("I couldn't tell which retailer the new equipment is for. Please start over.")
	}
	rec, ok := d.findRetailer(m.Name)
	if !ok {
		return models.TextReply("I lost track of that retailer. Please ask again.")
	}

	oldIPad, _ := rec.Field("ipad_number")
	oldSensor, _ := rec.Field("sensor_serial")
	existing, _ := rec.Field("returning_equipment")
	moved := strings.TrimSpace(strings.Join(nonEmpty(oldIPad, oldSensor), " / "))
	returning := strings.TrimSpace(strings.Join(nonEmpty(existing, moved), " | "))

	updates := []models.FieldUpdate{
		{Column: "ipad_number", Value: c.newIPad},
		{Column: "sensor_serial", Value: c.newSensor},
		{Column: "returning_equipment", Value: returning},
	}
	if _, err := d.store.UpdateRetailerFields(m.Name, updates); err != nil {
		slog.Error("New equipment update failed", "retailer", m.Name, "error", err.Error())
		return models.TextReply(MsgApology)
	}
	d.refreshRetailers()
	return models.TextReply(fmt.Sprintf("New equipment saved for %s and old equipment moved to returning.", m.Name))
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// Rule 17: scan reporting keywords routed to history or prediction.
func (d *Dispatcher) ruleScanReport(c *Conversation, input string, role models.Role) models.Reply {
	text := strings.ToLower(input)
	if !containsAny(text, scanKeywords) {
		return models.Reply{}
	}

	m := d.resolveRetailer(text, 60)

	if containsAny(text, scanPredictKeywords) {
		if !m.Found() {
			return models.TextReply("Which retailer do you want to predict scans for?")
		}
		months := extractMonths(text)
		if months == 0 {
			months = 3
		}
		preds, err := d.predictor.Predict(m.Name, months)
		if err != nil {
			slog.Error("Scan prediction failed", "retailer", m.Name, "error", err.Error())
			return models.TextReply(MsgApology)
		}
		if scan.AllZero(preds) {
			return models.TextReply(fmt.Sprintf("Not enough scan history for %s", m.Name))
		}
		img, err := d.charts.RenderLine(fmt.Sprintf("Predicted scans for %s", m.Name), preds)
		if err != nil {
			slog.Error("Chart rendering failed", "retailer", m.Name, "error", err.Error())
			img = ""
		}
		return models.ReplyWithImage(fmt.Sprintf("Predicted scans for %s:\n%s", m.Name, scan.FormatMonthly(preds)), img)
	}

	if containsAny(text, scanHistoryKeywords) {
		if !m.Found() {
			return models.TextReply("Which retailer?")
		}
		var (
			series []models.MonthCount
			err    error
		)
		if strings.Contains(text, "last") || strings.Contains(text, "month") {
			months := extractMonths(text)
			if months == 0 {
				months = 3
			}
			series, err = d.history.LastNMonths(m.Name, months)
		} else {
			series, err = d.history.FullHistory(m.Name)
		}
		if err != nil {
			slog.Error("Scan history failed", "retailer", m.Name, "error", err.Error())
			return models.TextReply(MsgApology)
		}
		if len(series) == 0 {
			return models.TextReply(fmt.Sprintf("No scan history found for %s", m.Name))
		}
		img, err := d.charts.RenderLine(fmt.Sprintf("Scan history for %s", m.Name), series)
		if err != nil {
			slog.Error("Chart rendering failed", "retailer", m.Name, "error", err.Error())
			img = ""
		}
		return models.ReplyWithImage(fmt.Sprintf("Scan history for %s:\n%s", m.Name, scan.FormatMonthly(series)), img)
	}

	return models.Reply{}
}

// Rule 18: the fallback answer path. Always claims the turn: resolve a
// retailer, confirm an ambiguous guess, then resolve the field or enter
// the await-field state.
func (d *Dispatcher) ruleAnswer(c *Conversation, input string, role models.Role) models.Reply {
	c.lastUserInput = input

	m := d.resolveRetailer(input, models.RetailerMedium)
	if !m.Found() {
		if answer, ok := d.trouble.Match(input, models.TroubleThreshold); ok {
			return models.TextReply(answer)
		}
		return models.TextReply("Sorry, I couldn't find that retailer. Can you double-check the name?")
	}

	// Medium confidence: check with the user instead of guessing.
	if m.Score < models.RetailerHigh {
		c.awaitingConfirmation = m.Name
		return models.TextReply(fmt.Sprintf("I think you mean %s. Is that correct? (yes/no)", m.Name))
	}

	fm, ok := d.fields.Resolve(input)
	if !ok {
		c.awaitingInfo = m.Name
		return models.TextReply(fmt.Sprintf("I found %s. What information do you need?", m.Name))
	}
	if fm.Score < models.FieldMedium {
		return models.TextReply(fmt.Sprintf("For %s, did you want %s?", m.Name, strings.ToLower(match.DisplayName(fm.Column))))
	}
	return d.getColumnValue(c, m.Name, fm.Column)
}
