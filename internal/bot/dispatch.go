package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/RetailPipe/RetailPipe/internal/flow"
	"github.com/RetailPipe/RetailPipe/internal/inventory"
	"github.com/RetailPipe/RetailPipe/internal/match"
	"github.com/RetailPipe/RetailPipe/internal/models"
	"github.com/RetailPipe/RetailPipe/internal/scan"
	"github.com/RetailPipe/RetailPipe/internal/store"
	"github.com/sahilm/fuzzy"
)

// MsgApology is the generic boundary message for unexpected failures.
const MsgApology = "Sorry, something went wrong. Please try again."

// Opts holds configuration options for dispatcher construction.
type Opts struct {
	// FlowsPath is the flow definition file. Missing file means no flows.
	FlowsPath string
	// DocDir is where generated shipping documents are written.
	DocDir string
	// Charts renders monthly series as images; nil disables charts.
	Charts scan.ChartRenderer
	// Docs writes shipping documents; nil uses the plain-text writer.
	Docs ShippingDocWriter
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Option configures dispatcher construction.
type Option func(*Opts)

// WithFlowsPath sets the flow definition file path.
func WithFlowsPath(path string) Option {
	return func(o *Opts) { o.FlowsPath = path }
}

// WithDocDir sets the output directory for generated documents.
func WithDocDir(dir string) Option {
	return func(o *Opts) { o.DocDir = dir }
}

// WithChartRenderer sets the chart renderer.
func WithChartRenderer(r scan.ChartRenderer) Option {
	return func(o *Opts) { o.Charts = r }
}

// WithDocWriter sets the shipping-document writer.
func WithDocWriter(w ShippingDocWriter) Option {
	return func(o *Opts) { o.Docs = w }
}

// WithClock overrides the dispatcher clock.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// handlerFunc is one dispatch rule's body. A zero Reply means "not
// mine"; the dispatcher then tries the next rule.
type handlerFunc func(c *Conversation, input string, role models.Role) models.Reply

// rule is one entry of the ordered dispatch table.
type rule struct {
	name string
	fn   handlerFunc
}

// Dispatcher routes each utterance through a fixed, ordered rule table.
// The order is the contract: the first rule that claims a turn owns it,
// which is how overlapping turn-state slots are tie-broken.
type Dispatcher struct {
	store     store.Store
	fields    *match.FieldResolver
	trouble   *match.TroubleMatcher
	flows     flow.Set
	history   *scan.History
	predictor *scan.Predictor
	inventory *inventory.Manager
	charts    scan.ChartRenderer
	docs      ShippingDocWriter
	now       func() time.Time

	rules []rule

	mu        sync.Mutex
	retailers []models.Retailer
	convs     map[string]*Conversation
}

// NewDispatcher loads the retailer working copy, fits the matchers, and
// builds the rule table.
func NewDispatcher(st store.Store, options ...Option) (*Dispatcher, error) {
	opts := Opts{
		Charts: scan.NopRenderer{},
		Now:    time.Now,
	}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.Docs == nil {
		opts.Docs = NewTextDocWriter(opts.DocDir)
	}
	if opts.Charts == nil {
		opts.Charts = scan.NopRenderer{}
	}

	retailers, err := st.ListRetailers()
	if err != nil {
		return nil, fmt.Errorf("failed to load retailers: %w", err)
	}
	entries, err := st.ListTroubleshooting()
	if err != nil {
		return nil, fmt.Errorf("failed to load troubleshooting corpus: %w", err)
	}
	flows := flow.Set{}
	if opts.FlowsPath != "" {
		flows, err = flow.LoadFile(opts.FlowsPath)
		if err != nil {
			return nil, err
		}
	}

	d := &Dispatcher{
		store:     st,
		fields:    match.NewFieldResolver(),
		trouble:   match.NewTroubleMatcher(entries),
		flows:     flows,
		history:   scan.NewHistory(st),
		predictor: scan.NewPredictor(st),
		inventory: inventory.NewManager(st),
		charts:    opts.Charts,
		docs:      opts.Docs,
		now:       opts.Now,
		retailers: retailers,
		convs:     make(map[string]*Conversation),
	}
	d.rules = []rule{
		{"open_form", d.ruleOpenForm},
		{"update_retailer_phrase", d.ruleUpdateRetailerPhrase},
		{"scan_entry", d.ruleScanEntry},
		{"resume_flow_retailer", d.ruleResumeFlowRetailer},
		{"flow", d.ruleFlow},
		{"trouble_topics", d.ruleTroubleTopics},
		{"retailer_info", d.ruleRetailerInfo},
		{"troubleshooting", d.ruleTroubleshooting},
		{"help", d.ruleHelp},
		{"confirmation", d.ruleConfirmation},
		{"multi_info", d.ruleMultiInfo},
		{"shipping", d.ruleShipping},
		{"awaiting_retailer", d.ruleAwaitingRetailer},
		{"parcel", d.ruleParcel},
		{"multi_update", d.ruleMultiUpdate},
		{"new_equipment", d.ruleNewEquipment},
		{"scan_report", d.ruleScanReport},
		{"answer", d.ruleAnswer},
	}

	slog.Info("Dispatcher ready",
		"retailers", len(retailers),
		"troubleshooting_entries", len(entries),
		"flows", len(flows),
		"rules", len(d.rules))
	return d, nil
}

// conversation returns the turn-state for a session, creating it on
// first contact.
func (d *Dispatcher) conversation(sessionID string) *Conversation {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.convs[sessionID]
	if !ok {
		c = &Conversation{}
		d.convs[sessionID] = c
		slog.Debug("Conversation created", "sessionID", sessionID)
	}
	c.lastSeen = d.now()
	return c
}

// EndConversation drops a session's turn-state.
func (d *Dispatcher) EndConversation(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.convs, sessionID)
}

// ProcessInput runs one utterance through the rule table and returns
// the reply of the first rule that claims the turn.
func (d *Dispatcher) ProcessInput(ctx context.Context, sessionID, input string, role models.Role) models.Reply {
	input = strings.TrimSpace(input)
	c := d.conversation(sessionID)
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range d.rules {
		if err := ctx.Err(); err != nil {
			slog.Warn("Dispatch canceled", "sessionID", sessionID, "rule", r.name)
			return models.TextReply(MsgApology)
		}
		reply := r.fn(c, input, role)
		if !reply.IsZero() {
			slog.Debug("Dispatch handled", "sessionID", sessionID, "rule", r.name)
			return reply
		}
	}
	// The answer rule always claims the turn; reaching here means the
	// table is misconfigured.
	slog.Error("Dispatch fell through every rule", "sessionID", sessionID)
	return models.TextReply(MsgApology)
}

// retailerNames returns the names of the working copy, in table order.
func (d *Dispatcher) retailerNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, len(d.retailers))
	for i, r := range d.retailers {
		names[i] = r.Name
	}
	return names
}

// findRetailer returns the working-copy record with the given name.
func (d *Dispatcher) findRetailer(name string) (models.Retailer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.retailers {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return models.Retailer{}, false
}

// resolveRetailer fuzzy-matches free text against the working copy.
func (d *Dispatcher) resolveRetailer(input string, threshold int) match.RetailerMatch {
	return match.ResolveRetailer(input, threshold, d.retailerNames())
}

// refreshRetailers reloads the working copy after a successful write.
// The working copy is what every resolver queries, so skipping this
// would serve stale values until restart.
func (d *Dispatcher) refreshRetailers() {
	retailers, err := d.store.ListRetailers()
	if err != nil {
		slog.Error("Failed to refresh retailer working copy", "error", err.Error())
		return
	}
	d.mu.Lock()
	d.retailers = retailers
	d.mu.Unlock()
	slog.Debug("Retailer working copy refreshed", "count", len(retailers))
}

// AutocompleteRetailers returns up to limit retailer names fuzzily
// matching the given prefix, for front-end autocomplete.
func (d *Dispatcher) AutocompleteRetailers(prefix string, limit int) []string {
	names := d.retailerNames()
	if strings.TrimSpace(prefix) == "" {
		if limit > 0 && len(names) > limit {
			names = names[:limit]
		}
		return names
	}
	if limit <= 0 {
		limit = 10
	}
	matches := fuzzy.Find(prefix, names)
	out := make([]string, 0, limit)
	for i, m := range matches {
		if i >= limit {
			break
		}
		out = append(out, m.Str)
	}
	return out
}
