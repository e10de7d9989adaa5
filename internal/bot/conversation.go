package bot

import (
	"sync"
	"time"

	"github.com/RetailPipe/RetailPipe/internal/flow"
)

// parcelState is the multi-step parcel-shipment collector: which
// retailer the shipment is for, whether the equipment on file is being
// shipped, and the manually entered items when it is not.
type parcelState struct {
	Retailer           string
	UseEquipmentOnFile *bool
	ManualItems        string
}

// shippingState holds a shipment that only awaits its shipping method.
type shippingState struct {
	Retailer string
	Items    string
}

// Conversation is the per-session turn-state bag: everything remembered
// between two consecutive turns to interpret the next input in context.
// At most one slot should drive a turn; when several are set, the
// dispatcher's fixed rule order picks the winner.
//
// Conversations are keyed by caller-supplied session id, never shared
// across sessions.
type Conversation struct {
	mu sync.Mutex

	// Fuzzy retailer guess awaiting a yes/no answer.
	awaitingConfirmation string
	// Locked-in retailer awaiting a field name.
	awaitingInfo string
	// Retailer awaiting a multi-field request.
	awaitingMultiInfo string
	// Shipment awaiting only its shipping method.
	awaitingShipping *shippingState
	// Generic "which retailer?" re-ask.
	awaitingRetailer bool
	// Parcel-shipment collector.
	awaitingParcel *parcelState

	// Two-step new-equipment collector.
	pendingAction string
	newIPad       string
	newSensor     string
	lastUserInput string

	// Paused flow awaiting a retailer name.
	awaitingFlowRetailer bool
	pendingFlowID        string

	// Scan-entry mode consumes every turn until an exit command.
	activeScanEntry bool

	flowSession *flow.Session

	lastSeen time.Time
}

// clearLookupState drops the retailer/field resolution slots after a
// completed lookup.
func (c *Conversation) clearLookupState() {
	c.awaitingConfirmation = ""
	c.awaitingInfo = ""
	c.awaitingRetailer = false
}

// flowActive reports whether a scripted flow is being walked.
func (c *Conversation) flowActive() bool {
	return c.flowSession != nil && c.flowSession.Active()
}
