// Package bot implements the intent dispatcher: the ordered decision
// pipeline that routes one utterance to the handler that owns the turn,
// keeping per-session state across stateless requests.
package bot

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/RetailPipe/RetailPipe/internal/textnorm"
)

// Trigger phrases checked by the dispatch rules. Matching is substring
// containment over the lowered input.
var (
	scanEntryTriggers = []string{"scan entry", "add scan", "enter scan"}

	inventoryTriggers = []string{
		"inventory tracker",
		"in house inventory",
		"available ipads",
		"inventory",
		"inventory manager",
	}

	troubleListTriggers = []string{
		"known troubleshooting",
		"known issues",
		"what can you troubleshoot",
		"list troubleshooting",
		"troubleshooting topics",
	}

	parcelTriggers = []string{
		"make a parcel shipper",
		"create parcel shipper",
		"generate parcel",
		"make parcel",
		"parcel shipper for",
		"create shipping form",
	}

	newEquipmentTriggers = []string{
		"new equipment",
		"update equipment",
		"replace equipment",
		"send new equipment",
	}

	notePhrases = []string{
		"add note",
		"add jane note",
		"add jane notes",
		"note for",
		"jane note",
	}

	exitCommands = []string{"quit", "exit", "stop", "bye", "pause"}

	scanKeywords        = []string{"scan", "scans", "history", "how many", "count", "predict", "forecast", "projection"}
	scanPredictKeywords = []string{"predict", "forecast", "future", "projection"}
	scanHistoryKeywords = []string{"how many", "count", "total", "number", "past scan", "history"}
)

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func isScanEntryTrigger(input string) bool {
	return containsAny(strings.ToLower(input), scanEntryTriggers)
}

func isInventoryRequest(input string) bool {
	return containsAny(strings.ToLower(strings.TrimSpace(input)), inventoryTriggers)
}

func isTroubleListRequest(input string) bool {
	return containsAny(textnorm.Normalize(input), troubleListTriggers)
}

func isParcelShipperRequest(input string) bool {
	return containsAny(strings.ToLower(input), parcelTriggers)
}

func isNewEquipmentRequest(input string) bool {
	return containsAny(strings.ToLower(input), newEquipmentTriggers)
}

func isNoteAddition(input string) bool {
	return containsAny(strings.ToLower(input), notePhrases)
}

func isExitCommand(input string) bool {
	text := strings.ToLower(strings.TrimSpace(input))
	for _, c := range exitCommands {
		if text == c {
			return true
		}
	}
	return false
}

func isHelpCommand(input string) bool {
	switch strings.TrimSpace(strings.ToLower(input)) {
	case "help", "h", "?":
		return true
	}
	return false
}

var reMonths = regexp.MustCompile(`(\d+)\s*(month|months|mo)`)

// extractMonths pulls a month horizon from free text. Returns 0 when no
// horizon is mentioned so callers can apply their own default.
func extractMonths(input string) int {
	text := strings.ToLower(input)
	if m := reMonths.FindStringSubmatch(text); m != nil {
		n := 0
		fmt.Sscanf(m[1], "%d", &n)
		return n
	}
	if strings.Contains(text, "next month") {
		return 1
	}
	if strings.Contains(text, "year") || strings.Contains(text, "annual") {
		return 12
	}
	if strings.Contains(text, "quarter") {
		return 3
	}
	return 0
}

// appendNote prepends a timestamped author header to a new note entry
// and stacks it under the existing notes.
func appendNote(existing, note, author string, now time.Time) string {
	entry := fmt.Sprintf("[%s | %s] %s", now.Format("2006-01-02 15:04"), author, note)
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return entry
	}
	return existing + "\n" + entry
}
