// Package models defines the tagged reply union returned by the dispatcher.
package models

// ReplyKind discriminates the payload carried by a Reply.
type ReplyKind string

const (
	// ReplyText is a plain text answer.
	ReplyText ReplyKind = "text"
	// ReplyImage is text accompanied by a rendered chart image (data URI).
	ReplyImage ReplyKind = "image"
	// ReplyFile is a generated document offered for download.
	ReplyFile ReplyKind = "file"
	// ReplyForm is a structured form descriptor for the front end to render.
	ReplyForm ReplyKind = "form"
	// ReplyScanEntry tells the front end to open the scan entry form.
	ReplyScanEntry ReplyKind = "scan_entry_form"
)

// Reply is the single result type for every dispatch turn. Exactly the
// fields implied by Kind are populated; everything else is zero.
type Reply struct {
	Kind     ReplyKind `json:"kind"`
	Text     string    `json:"text,omitempty"`
	Image    string    `json:"image,omitempty"`
	FilePath string    `json:"file,omitempty"`
	FileName string    `json:"filename,omitempty"`
	Form     *Form     `json:"reply,omitempty"`
}

// IsZero reports whether the reply carries no payload, signalling
// "not mine" from a handler.
func (r Reply) IsZero() bool { return r.Kind == "" }

// TextReply builds a plain text reply.
func TextReply(text string) Reply {
	return Reply{Kind: ReplyText, Text: text}
}

// ReplyWithImage builds a text reply with an attached chart image.
// An empty image degrades to a plain text reply.
func ReplyWithImage(text, image string) Reply {
	if image == "" {
		return TextReply(text)
	}
	return Reply{Kind: ReplyImage, Text: text, Image: image}
}

// FileDownload builds a document-download reply.
func FileDownload(path, name string) Reply {
	return Reply{Kind: ReplyFile, FilePath: path, FileName: name}
}

// FormReply builds a reply carrying a form descriptor.
func FormReply(f *Form) Reply {
	return Reply{Kind: ReplyForm, Form: f}
}

// FormReplyWithText builds a reply carrying both a result message and a
// follow-up form descriptor (used after inventory mutations).
func FormReplyWithText(text string, f *Form) Reply {
	return Reply{Kind: ReplyForm, Text: text, Form: f}
}

// ScanEntryPrompt tells the front end to open the scan entry form.
func ScanEntryPrompt() Reply {
	return Reply{Kind: ReplyScanEntry}
}

// Form is a structured form descriptor rendered by the front end.
type Form struct {
	Type           string         `json:"type"`
	FormID         string         `json:"form_id"`
	Title          string         `json:"title"`
	Fields         []FormField    `json:"fields"`
	DynamicFields  *DynamicFields `json:"dynamic_fields,omitempty"`
	ValueField     string         `json:"value_field,omitempty"`
	SubmitLabel    string         `json:"submit_label,omitempty"`
	SubmitTemplate string         `json:"submit_template,omitempty"`
	SuccessMessage string         `json:"success_message,omitempty"`
	Buttons        []FormButton   `json:"buttons,omitempty"`
}

// FormField describes one input of a form.
type FormField struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []string `json:"options"`
}

// DynamicFields describes a repeatable field-picker section of a form.
type DynamicFields struct {
	Label   string   `json:"label"`
	Options []string `json:"options"`
}

// FormButton is one action button of a form.
type FormButton struct {
	Text   string `json:"text"`
	Action string `json:"action"`
}

// FormSubmission is the payload of a submitted form.
type FormSubmission struct {
	FormID string            `json:"form_id"`
	Data   map[string]string `json:"data"`
}
