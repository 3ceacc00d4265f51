// Package directory exposes the configured model records this service
// routes against. The records are maintained elsewhere (admin CRUD); this
// core consumes a read-only snapshot taken at startup.
package directory

import (
	"fmt"
	"strings"
)

// Provider identifies the upstream backend type for a model record. It is
// resolved once at load time and carried through resolution; downstream
// code never re-derives it from the shape of a model name.
type Provider string

const (
	Ollama    Provider = "ollama"
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
)

// ParseProvider converts a stored provider string into a typed Provider.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ollama":
		return Ollama, nil
	case "openai":
		return OpenAI, nil
	case "anthropic":
		return Anthropic, nil
	default:
		return "", fmt.Errorf("unknown provider type: %q", s)
	}
}

// ModelRecord describes one configured model.
type ModelRecord struct {
	ID              string
	DisplayName     string
	Provider        Provider
	InternalModelID string
	EndpointURL     string
	APIKeyRef       string
	IsDefault       bool
	IsActive        bool
}

// Directory is the read-only model record source.
type Directory interface {
	// Active returns the active records in stable (insertion) order.
	Active() []ModelRecord
}

// Static is a Directory over a fixed slice, used when records come from
// the config file.
type Static struct {
	records []ModelRecord
}

// NewStatic builds a Static directory. Inactive records are kept out of
// the snapshot so Active never filters at call time.
func NewStatic(records []ModelRecord) *Static {
	active := make([]ModelRecord, 0, len(records))
	for _, r := range records {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return &Static{records: active}
}

func (s *Static) Active() []ModelRecord {
	out := make([]ModelRecord, len(s.records))
	copy(out, s.records)
	return out
}
