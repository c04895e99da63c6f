package streams

import (
	_ "embed"
	"fmt"
)

const (
	// EventExtractionRequested asks a worker to run one Browser Use extraction.
	EventExtractionRequested = "extraction.requested"
	// VersionV1 is the only payload version published today.
	VersionV1 = "v1"
)

// ExtractionRequested is the payload of EventExtractionRequested.
type ExtractionRequested struct {
	JobID   string `json:"job_id"`
	URL     string `json:"url"`
	Request string `json:"request"`
}

//go:embed schemas/extraction_requested.v1.json
var extractionRequestedV1 []byte

// Definition describes a schema entry managed by the registry.
type Definition struct {
	EventType string
	Version   string
	Schema    []byte
}

var baseDefinitions = []Definition{
	{EventType: EventExtractionRequested, Version: VersionV1, Schema: extractionRequestedV1},
}

// RegisterBaseSchemas loads every known event schema into reg.
func RegisterBaseSchemas(reg *SchemaRegistry) error {
	for _, def := range baseDefinitions {
		if err := reg.Register(def.EventType, def.Version, def.Schema); err != nil {
			return fmt.Errorf("register %s@%s: %w", def.EventType, def.Version, err)
		}
	}
	return nil
}

// NewBaseRegistry returns a registry with the base schemas loaded.
func NewBaseRegistry() (*SchemaRegistry, error) {
	reg := NewSchemaRegistry()
	if err := RegisterBaseSchemas(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
