package match

import (
	"reflect"
	"testing"

	"github.com/RetailPipe/RetailPipe/internal/models"
)

func TestResolveFieldSubstring(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"password", "what is the password for acme", "ri_app_password", true},
		{"account number", "acc num for forever me", "account_number", true},
		{"sensor", "sensor serial please", "sensor_serial", true},
		{"territory manager", "who is the territory manager", "tm", true},
		{"no alias", "hello there", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveFieldSubstring(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ResolveFieldSubstring(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

// Two aliases from different fields: the field earlier in the table
// wins regardless of position in the input text.
func TestAliasTableOrderPrecedence(t *testing.T) {
	// "email" (row 8) appears before "password" (row 1) in the input,
	// but ri_app_password is earlier in the table.
	got, ok := ResolveFieldSubstring("email and password for acme")
	if !ok || got != "ri_app_password" {
		t.Fatalf("expected ri_app_password by table order, got %q", got)
	}

	// "account number" (row 5) vs "sensor" (row 6): account_number wins
	// even when sensor is mentioned first.
	got, ok = ResolveFieldSubstring("sensor and account number")
	if !ok || got != "account_number" {
		t.Fatalf("expected account_number by table order, got %q", got)
	}
}

func TestParseRequestedColumns(t *testing.T) {
	got := ParseRequestedColumns("give me the password and the account number and the sensor serial")
	want := []string{"ri_app_password", "account_number", "sensor_serial"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseRequestedColumns = %v, want %v", got, want)
	}

	if cols := ParseRequestedColumns("nothing relevant here"); cols != nil {
		t.Errorf("expected no columns, got %v", cols)
	}
}

func TestContainsFieldAlias(t *testing.T) {
	if !ContainsFieldAlias("what is the password for acme") {
		t.Error("password should count as a field alias")
	}
	if !ContainsFieldAlias("show me all info for acme") {
		t.Error("'all info' should count")
	}
	if !ContainsFieldAlias("give me everything on acme") {
		t.Error("'everything' should count")
	}
	if ContainsFieldAlias("hello there") {
		t.Error("plain greeting should not count")
	}
}

func TestDetectUpdates(t *testing.T) {
	got := DetectUpdates("set sensor serial to 999888, app version to 2.4 for acme")
	want := []models.FieldUpdate{
		{Column: "sensor_serial", Value: "999888"},
		{Column: "app_version", Value: "2.4 for acme"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DetectUpdates = %v, want %v", got, want)
	}
}

func TestDetectUpdatesLastWriteWins(t *testing.T) {
	// Two aliases of the same column: the alias checked later in the
	// row overwrites the earlier hit.
	got := DetectUpdates("ipad to 111, trupad number to 222")
	if len(got) != 1 || got[0].Column != "ipad_number" {
		t.Fatalf("expected one ipad_number update, got %v", got)
	}
	if got[0].Value != "111" {
		t.Errorf("expected last detected value 111, got %q", got[0].Value)
	}
}

func TestDetectUpdatesNone(t *testing.T) {
	if got := DetectUpdates("tell me the password for acme"); len(got) != 0 {
		t.Errorf("lookup phrasing should not detect updates, got %v", got)
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("ri_app_password"); got != "App Password" {
		t.Errorf("DisplayName(ri_app_password) = %q", got)
	}
	if got := DisplayName("some_unknown_col"); got != "Some Unknown Col" {
		t.Errorf("fallback DisplayName = %q", got)
	}
}
