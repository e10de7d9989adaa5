package match

import (
	"regexp"
	"strings"

	"github.com/RetailPipe/RetailPipe/internal/models"
	"github.com/RetailPipe/RetailPipe/internal/textnorm"
)

// FieldAlias binds a canonical column name to its natural-language
// synonyms. The table is an ordered slice, not a map: the substring stage
// returns the first alias hit in table order, so ordering is a contract.
type FieldAlias struct {
	Column  string
	Aliases []string
}

// AliasTable is the canonical alias ordering. More specific credential
// phrases come before the generic location fields they could shadow.
var AliasTable = []FieldAlias{
	{"ri_app_password", []string{"password", "ri password", "app password", "ri app pass", "riapp password", "riapp pass"}},
	{"ri_app_username", []string{"riappusername", "ri app user", "ri application username", "username"}},
	{"ipad_number", []string{"trupad number", "ipad", "ipad number"}},
	{"system_model", []string{"ipad system model", "ipad model", "ipad generation", "generation", "ipad sys number"}},
	{"account_number", []string{"account number", "account num", "acc number", "acc num", "ac number", "ac num"}},
	{"sensor_serial", []string{"sensor serial number", "sensor number", "sensor serial", "sens number", "sens serial", "sen serial", "sen numb", "sensor"}},
	{"serial_number", []string{"serial number", "ipad serial number", "ipad serial"}},
	{"email", []string{"email", "electronicmail"}},
	{"email_password", []string{"email password", "password for email", "email pass"}},
	{"last_scan", []string{"last scan", "last scan date", "scan last"}},
	{"street", []string{"street"}},
	{"city", []string{"city"}},
	{"zip_code", []string{"zip code", "zip"}},
	{"tm", []string{"tm", "territory manager"}},
	{"jane_notes", []string{"jane comments", "jane notes", "notes from jane"}},
	{"fitter", []string{"fitter"}},
	{"phone", []string{"phone number", "phone"}},
	{"arlin", []string{"arlin"}},
	{"country", []string{"country"}},
	{"ri_2024", []string{"ri 2024"}},
	{"ri_2025", []string{"ri 2025"}},
	{"app_version", []string{"app version", "app vers"}},
	{"ios_version", []string{"ios version", "ios", "ipad version"}},
	{"returning_equipment", []string{"old equipment", "returned equipment"}},
	{"notes", []string{"notes", "account notes"}},
}

// DisplayNames maps column names to their user-facing labels.
var DisplayNames = map[string]string{
	"account_number":      "Account Number",
	"arlin":               "Arlin",
	"ri_app_username":     "App Username",
	"ri_app_password":     "App Password",
	"email":               "iPad Email Address",
	"email_password":      "iPad Email Password",
	"system_model":        "iPad System Model",
	"serial_number":       "iPad Serial Number",
	"ios_version":         "iOS Version",
	"app_version":         "RI App Version",
	"sensor_serial":       "Sensor Serial Number",
	"ipad_number":         "Trupad Number",
	"last_scan":           "Last Scan",
	"ri_2024":             "RI 2024",
	"ri_2025":             "RI 2025",
	"tm":                  "TM",
	"street":              "Street",
	"city":                "City",
	"state":               "State",
	"zip_code":            "Zip Code",
	"country":             "Country",
	"phone":               "Phone Number",
	"fitter":              "Fitter",
	"returning_equipment": "Returning Equipment",
	"notes":               "Notes",
	"jane_notes":          "Jane Notes",
}

// AllowedUpdateColumns is the allow-list for the batch-update and
// update-form paths.
var AllowedUpdateColumns = map[string]bool{
	"notes":           true,
	"jane_notes":      true,
	"sensor_serial":   true,
	"ipad_number":     true,
	"ri_app_username": true,
	"ri_app_password": true,
	"system_model":    true,
	"serial_number":   true,
	"app_version":     true,
	"ios_version":     true,
}

// DisplayName renders a column name for users, falling back to a
// title-cased version of the column itself.
func DisplayName(column string) string {
	if n, ok := DisplayNames[column]; ok {
		return n
	}
	words := strings.Split(strings.ReplaceAll(column, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// ResolveFieldSubstring is stage one of field resolution: exact substring
// containment of each alias against the normalized input, first hit in
// table order wins.
func ResolveFieldSubstring(input string) (string, bool) {
	text := textnorm.Normalize(input)
	if text == "" {
		return "", false
	}
	for _, fa := range AliasTable {
		for _, alias := range fa.Aliases {
			if strings.Contains(text, alias) {
				return fa.Column, true
			}
		}
	}
	return "", false
}

// ContainsFieldAlias reports whether the input mentions any known alias
// phrase, or asks for everything ("all info" / "everything").
func ContainsFieldAlias(input string) bool {
	text := textnorm.Normalize(input)
	if strings.Contains(text, "all info") || strings.Contains(text, "everything") {
		return true
	}
	_, ok := ResolveFieldSubstring(input)
	return ok
}

// WantsEverything reports whether the input asks for the full record.
func WantsEverything(input string) bool {
	text := textnorm.Normalize(input)
	return strings.Contains(text, "all info") || strings.Contains(text, "everything")
}

// ParseRequestedColumns scans the input for every alias match (not just
// the best) and returns the matched columns in alias-table order, one
// entry per column.
func ParseRequestedColumns(input string) []string {
	text := textnorm.Normalize(input)
	if text == "" {
		return nil
	}
	var cols []string
	for _, fa := range AliasTable {
		for _, alias := range fa.Aliases {
			if strings.Contains(text, alias) {
				cols = append(cols, fa.Column)
				break
			}
		}
	}
	return cols
}

// DetectUpdates extracts every `<alias> (to|is) <value>` pair from the
// input, where the value runs up to the next comma. Overlapping matches
// for the same column last-write-wins in detection order; the returned
// slice keeps one entry per column in alias-table order.
func DetectUpdates(input string) []models.FieldUpdate {
	text := strings.ToLower(input)
	var updates []models.FieldUpdate
	for _, fa := range AliasTable {
		var value string
		var matched bool
		for _, alias := range fa.Aliases {
			pattern := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(alias) + `\s*(?:to|is)\s*([^,]+)`)
			if m := pattern.FindStringSubmatch(text); m != nil {
				value = strings.TrimSpace(m[1])
				matched = true
			}
		}
		if matched {
			updates = append(updates, models.FieldUpdate{Column: fa.Column, Value: value})
		}
	}
	return updates
}
