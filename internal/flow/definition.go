// Package flow implements the scripted troubleshooting flows: static
// step-graph definitions loaded at startup and the session interpreter
// that walks them one user turn at a time.
package flow

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// StepType is the closed set of step kinds a flow definition may use.
type StepType string

const (
	// StepYesNo asks a question and branches on a yes/no reply.
	StepYesNo StepType = "yes_no"
	// StepAck asks a question and advances on any reply.
	StepAck StepType = "ack"
)

// IsValidStepType checks if the given step type is supported. Unknown
// types are a load-time validation error, not a runtime fallback.
func IsValidStepType(t StepType) bool {
	return t == StepYesNo || t == StepAck
}

// Transition describes where a step goes next. It deserializes from
// either a bare step-id string or an inline object carrying its own
// response text. The duality is intentional: terminal branches embed
// their payoff message without a dedicated dead-end step, while shared
// sub-paths reference a reusable named step.
type Transition struct {
	// StepID is set when the transition is a bare step-id string.
	StepID string
	// Response is the inline object's template-rendered reply text.
	Response string
	// End destroys the session after returning Response.
	End bool
	// Next optionally advances to a named step after Response.
	Next string

	inline  bool
	present bool
}

// IsZero reports whether no transition was configured.
func (t *Transition) IsZero() bool { return t == nil || !t.present }

// Inline reports whether the transition carries an inline response.
func (t *Transition) Inline() bool { return t.present && t.inline }

type inlineTransition struct {
	Response string `json:"response" yaml:"response"`
	End      bool   `json:"end" yaml:"end"`
	Next     string `json:"next" yaml:"next"`
}

// UnmarshalJSON accepts either a string step id or an inline object.
func (t *Transition) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*t = Transition{StepID: id, present: true}
		return nil
	}
	var obj inlineTransition
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("transition must be a step id or an object: %w", err)
	}
	*t = Transition{Response: obj.Response, End: obj.End, Next: obj.Next, inline: true, present: true}
	return nil
}

// UnmarshalYAML accepts either a scalar step id or an inline mapping.
func (t *Transition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var id string
		if err := node.Decode(&id); err != nil {
			return err
		}
		*t = Transition{StepID: id, present: true}
		return nil
	}
	var obj inlineTransition
	if err := node.Decode(&obj); err != nil {
		return fmt.Errorf("transition must be a step id or a mapping: %w", err)
	}
	*t = Transition{Response: obj.Response, End: obj.End, Next: obj.Next, inline: true, present: true}
	return nil
}

// Step is one node of a flow definition.
type Step struct {
	ID       string      `json:"id" yaml:"id"`
	Type     StepType    `json:"type" yaml:"type"`
	Question string      `json:"question" yaml:"question"`
	Yes      *Transition `json:"yes,omitempty" yaml:"yes,omitempty"`
	No       *Transition `json:"no,omitempty" yaml:"no,omitempty"`
	Next     *Transition `json:"next,omitempty" yaml:"next,omitempty"`
}

// Definition is one named flow: a trigger list, a designated start step,
// and the step graph. Loaded once, read-only thereafter.
type Definition struct {
	ID       string   `json:"-" yaml:"-"`
	Triggers []string `json:"triggers" yaml:"triggers"`
	Start    string   `json:"start" yaml:"start"`
	Steps    []Step   `json:"steps" yaml:"steps"`
}

// StepByID returns the step with the given id.
func (d *Definition) StepByID(id string) (Step, bool) {
	for _, s := range d.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// Validate checks the definition at load time: the start step must
// exist, every step type must be in the closed set, and every named
// transition target must reference a declared step.
func (d *Definition) Validate() error {
	if d.Start == "" {
		return fmt.Errorf("flow %q: missing start step", d.ID)
	}
	ids := make(map[string]bool, len(d.Steps))
	for _, s := range d.Steps {
		if s.ID == "" {
			return fmt.Errorf("flow %q: step with empty id", d.ID)
		}
		if ids[s.ID] {
			return fmt.Errorf("flow %q: duplicate step id %q", d.ID, s.ID)
		}
		ids[s.ID] = true
		if !IsValidStepType(s.Type) {
			return fmt.Errorf("flow %q step %q: unsupported step type %q", d.ID, s.ID, s.Type)
		}
	}
	if !ids[d.Start] {
		return fmt.Errorf("flow %q: start step %q not declared", d.ID, d.Start)
	}
	for _, s := range d.Steps {
		for _, tr := range []*Transition{s.Yes, s.No, s.Next} {
			if tr.IsZero() {
				continue
			}
			if tr.StepID != "" && !ids[tr.StepID] {
				return fmt.Errorf("flow %q step %q: transition to unknown step %q", d.ID, s.ID, tr.StepID)
			}
			if tr.Next != "" && !ids[tr.Next] {
				return fmt.Errorf("flow %q step %q: inline next references unknown step %q", d.ID, s.ID, tr.Next)
			}
		}
	}
	return nil
}
