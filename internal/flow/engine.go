package flow

import (
	"log/slog"
	"strings"
)

// Fixed interpreter messages.
const (
	// MsgUnknownFlow is returned when a flow id has no definition.
	MsgUnknownFlow = "Sorry, I don't have troubleshooting steps for that."
	// MsgFlowEnded is returned when a step has no continuation.
	MsgFlowEnded = "Flow ended."
	// MsgYesNo re-prompts a yes_no step without advancing.
	MsgYesNo = "Please answer yes or no."
	// MsgFlowBroken is returned when the current step vanished.
	MsgFlowBroken = "Something went wrong with the troubleshooting flow."
	// MsgUnsupportedStep is the defensive runtime fallback for a step
	// type that slipped past load-time validation.
	MsgUnsupportedStep = "Unsupported step type"
)

// Session is one live walk of a flow definition for a single
// conversation: the current step id plus a context map of named
// substitution values captured at flow start.
type Session struct {
	flows   Set
	def     *Definition
	current string
	context map[string]string
}

// NewSession creates an inactive session over the given flow set. The
// context map supplies `{{key}}` template values for question and
// response rendering.
func NewSession(flows Set, context map[string]string) *Session {
	if context == nil {
		context = make(map[string]string)
	}
	return &Session{flows: flows, context: context}
}

// Active reports whether a flow is currently being walked.
func (s *Session) Active() bool { return s.def != nil }

// Start begins walking the named flow and returns its start question.
// An unknown flow id fails with a fixed apology and leaves the session
// inactive.
func (s *Session) Start(flowID string) string {
	def, ok := s.flows.Get(flowID)
	if !ok {
		slog.Warn("Flow session start failed, unknown flow", "flowID", flowID)
		return MsgUnknownFlow
	}
	s.def = &def
	s.current = def.Start
	slog.Info("Flow session started", "flowID", flowID, "start", def.Start)
	return s.askCurrent()
}

// HandleInput advances the session with one user turn. It returns
// ("", false) when no session is active, signalling "not mine" to the
// dispatcher.
func (s *Session) HandleInput(input string) (string, bool) {
	if !s.Active() {
		return "", false
	}

	step, ok := s.def.StepByID(s.current)
	if !ok {
		slog.Error("Flow session current step vanished", "flowID", s.def.ID, "step", s.current)
		s.reset()
		return MsgFlowBroken, true
	}

	answer := strings.ToLower(strings.TrimSpace(input))
	switch step.Type {
	case StepYesNo:
		switch answer {
		case "yes", "y":
			return s.follow(step.Yes), true
		case "no", "n":
			return s.follow(step.No), true
		default:
			return MsgYesNo, true
		}
	case StepAck:
		return s.follow(step.Next), true
	default:
		return MsgUnsupportedStep, true
	}
}

// follow resolves one transition: absent ends the flow, an inline object
// renders its own response (optionally ending or advancing on the same
// turn), and a bare step id advances silently.
func (s *Session) follow(tr *Transition) string {
	if tr.IsZero() {
		s.reset()
		return MsgFlowEnded
	}

	if tr.Inline() {
		response := s.render(tr.Response)
		if tr.End {
			s.reset()
			return response
		}
		s.current = tr.Next
		if tr.Next != "" {
			if _, ok := s.def.StepByID(tr.Next); ok {
				return response + "\n" + s.askCurrent()
			}
		}
		return response
	}

	s.current = tr.StepID
	return s.askCurrent()
}

// askCurrent renders the current step's question.
func (s *Session) askCurrent() string {
	step, ok := s.def.StepByID(s.current)
	if !ok {
		return MsgFlowEnded
	}
	return s.render(step.Question)
}

// render expands {{key}} placeholders from the session context. Unknown
// placeholders are left literal.
func (s *Session) render(text string) string {
	for key, value := range s.context {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}

func (s *Session) reset() {
	if s.def != nil {
		slog.Debug("Flow session reset", "flowID", s.def.ID)
	}
	s.def = nil
	s.current = ""
}
