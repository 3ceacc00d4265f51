// Package alias maps the client-facing model names editor extensions
// hardcode (gpt-4, claude-3-sonnet, ...) onto the model ids actually
// served locally. Unknown names pass through untouched so real ids like
// "qwen2.5:0.5b" keep working.
package alias

import (
	"sort"
	"strings"
)

// DefaultInternalID is the fallback target when a request names no model
// and the table was built without an explicit default.
const DefaultInternalID = "qwen2.5-coder:1.5b"

// builtins cover the names shipped editor integrations are known to send.
var builtins = map[string]string{
	"gpt-4":                  DefaultInternalID,
	"gpt-4o":                 DefaultInternalID,
	"gpt-4-turbo":            DefaultInternalID,
	"gpt-3.5-turbo":          DefaultInternalID,
	"claude-3-opus":          DefaultInternalID,
	"claude-3-sonnet":        DefaultInternalID,
	"claude-3-haiku":         DefaultInternalID,
	"text-embedding-ada-002": "nomic-embed-text",
}

// Table is an immutable alias mapping built once at startup.
type Table struct {
	// entries are keyed by lower-cased external id
	entries   map[string]string
	defaultID string
}

// New builds a table from the built-in defaults merged with configured
// overrides. Configured entries win on collision. defaultID may be empty,
// in which case DefaultInternalID applies.
func New(overrides map[string]string, defaultID string) *Table {
	entries := make(map[string]string, len(builtins)+len(overrides))
	for ext, internal := range builtins {
		entries[strings.ToLower(ext)] = internal
	}
	for ext, internal := range overrides {
		if ext == "" || internal == "" {
			continue
		}
		entries[strings.ToLower(ext)] = internal
	}

	if defaultID == "" {
		defaultID = DefaultInternalID
	}

	return &Table{entries: entries, defaultID: defaultID}
}

// Resolve maps an external model name to an internal id. Absent or empty
// input yields the default id; a known alias (case-insensitive) yields its
// mapping; anything else is assumed to already be a valid internal id and
// passes through unchanged. Resolve never fails.
func (t *Table) Resolve(externalID string) string {
	if externalID == "" {
		return t.defaultID
	}

	if internal, ok := t.entries[strings.ToLower(externalID)]; ok {
		return internal
	}

	return externalID
}

// ReverseLookup returns every external id mapped to internalID, sorted for
// stable listing output.
func (t *Table) ReverseLookup(internalID string) []string {
	var externals []string
	for ext, internal := range t.entries {
		if internal == internalID {
			externals = append(externals, ext)
		}
	}
	sort.Strings(externals)
	return externals
}

// ExternalIDs returns every alias name in the table, sorted.
func (t *Table) ExternalIDs() []string {
	ids := make([]string, 0, len(t.entries))
	for ext := range t.entries {
		ids = append(ids, ext)
	}
	sort.Strings(ids)
	return ids
}

// DefaultID returns the table's designated default internal id.
func (t *Table) DefaultID() string {
	return t.defaultID
}
