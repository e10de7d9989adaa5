package flow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Set is the loaded, validated collection of flow definitions.
type Set map[string]Definition

// LoadFile reads a flow definition file mapping flow id to definition.
// JSON and YAML are both accepted, selected by file extension. A missing
// file yields an empty set and is logged, not fatal; a malformed or
// invalid file is an error.
func LoadFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Flow definition file not found, continuing with no flows", "path", path)
			return Set{}, nil
		}
		return nil, fmt.Errorf("failed to read flow file %s: %w", path, err)
	}

	raw := make(map[string]Definition)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse flow YAML %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse flow JSON %s: %w", path, err)
		}
	}

	set := make(Set, len(raw))
	for id, def := range raw {
		def.ID = id
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("invalid flow definition: %w", err)
		}
		set[id] = def
	}
	slog.Info("Flow definitions loaded", "path", path, "count", len(set))
	return set, nil
}

// Get returns the definition with the given id.
func (s Set) Get(id string) (Definition, bool) {
	def, ok := s[id]
	return def, ok
}

// MatchTrigger returns the id of the first flow whose trigger phrase is
// contained in the normalized input. Flow ids are scanned in sorted
// order so overlapping triggers resolve deterministically.
func (s Set) MatchTrigger(normalizedInput string) (string, bool) {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		def := s[id]
		for _, trig := range def.Triggers {
			if trig != "" && strings.Contains(normalizedInput, strings.ToLower(trig)) {
				return id, true
			}
		}
	}
	return "", false
}
