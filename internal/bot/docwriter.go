package bot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/RetailPipe/RetailPipe/internal/models"
)

// ShippingDocWriter generates the parcel shipping document for a
// shipment. Document rendering is an external concern; the dispatcher
// only needs a file it can offer for download.
type ShippingDocWriter interface {
	WriteParcelDoc(r models.Retailer, shipment, method string, when time.Time) (path, name string, err error)
}

var reUnsafeFile = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// TextDocWriter writes parcel shipping documents as plain text files.
type TextDocWriter struct {
	dir string
}

// NewTextDocWriter creates a TextDocWriter rooted at dir.
func NewTextDocWriter(dir string) *TextDocWriter {
	if dir == "" {
		dir = "generated"
	}
	return &TextDocWriter{dir: dir}
}

// WriteParcelDoc renders the shipment header, destination address, and
// contents to a timestamped file under the writer's directory.
func (w *TextDocWriter) WriteParcelDoc(r models.Retailer, shipment, method string, when time.Time) (string, string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create document directory %s: %w", w.dir, err)
	}

	field := func(col string) string {
		v, _ := r.Field(col)
		return v
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PARCEL SHIPPER\n\n")
	fmt.Fprintf(&b, "Date: %s\n\n", when.Format("01/02/2006"))
	fmt.Fprintf(&b, "Ship To: %s\n", r.Name)
	fmt.Fprintf(&b, "Attn: %s\n", field("fitter"))
	fmt.Fprintf(&b, "%s\n", field("street"))
	fmt.Fprintf(&b, "%s, %s %s\n", field("city"), field("state"), field("zip_code"))
	fmt.Fprintf(&b, "%s\n\n", field("country"))
	fmt.Fprintf(&b, "Account Number: %s\n\n", field("account_number"))
	fmt.Fprintf(&b, "Shipment: %s\n", shipment)
	fmt.Fprintf(&b, "Shipping Method: %s\n", method)
	fmt.Fprintf(&b, "Signature Required: NO\n")

	safe := reUnsafeFile.ReplaceAllString(r.Name, "_")
	name := fmt.Sprintf("parcel_%s_%s.txt", safe, when.Format("20060102_150405"))
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write parcel document: %w", err)
	}
	return path, name, nil
}
