package artifact

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// SchemaRegistry compiles and caches JSON Schemas used to gate admission of
// "schema" and "ruleset" artifacts into the content-addressed store. Only
// these two kinds carry a schema body of their own in spec §3; every other
// JSON object kind is validated by its owning package instead.
type SchemaRegistry struct {
	mu       sync.Mutex
	compiler *jsonschema.Compiler
	compiled map[string]*jsonschema.Schema
}

// NewSchemaRegistry returns a registry with an empty compiled-schema cache.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{
		compiler: jsonschema.NewCompiler(),
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// RegisterSchema adds the schema document under id (its own artifact digest
// makes a natural id) and compiles it eagerly, so a bad schema fails at
// registration rather than on the first payload it was supposed to gate.
func (r *SchemaRegistry) RegisterSchema(id string, schemaDoc []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.compiler.AddResource(id, bytes.NewReader(schemaDoc)); err != nil {
		return msezerr.Wrap(msezerr.KindValidation, "MSEZ/ARTIFACT/BAD_SCHEMA",
			fmt.Sprintf("schema %s could not be added as a compiler resource", id), err)
	}
	compiled, err := r.compiler.Compile(id)
	if err != nil {
		return msezerr.Wrap(msezerr.KindValidation, "MSEZ/ARTIFACT/SCHEMA_COMPILE_FAILED",
			fmt.Sprintf("schema %s failed to compile", id), err)
	}
	r.compiled[id] = compiled
	return nil
}

// Validate checks payload against the schema registered under schemaID.
// Callers pass the decoded JSON value (map[string]interface{}, slices,
// strings, bool, json.Number/float64) exactly as produced by
// encoding/json.Unmarshal.
func (r *SchemaRegistry) Validate(schemaID string, payload interface{}) error {
	r.mu.Lock()
	schema, ok := r.compiled[schemaID]
	r.mu.Unlock()
	if !ok {
		return msezerr.New(msezerr.KindMissing, "MSEZ/ARTIFACT/SCHEMA_NOT_REGISTERED",
			"no schema registered under id: "+schemaID)
	}
	if err := schema.Validate(payload); err != nil {
		return msezerr.Wrap(msezerr.KindValidation, "MSEZ/ARTIFACT/SCHEMA_VIOLATION",
			"payload does not satisfy schema "+schemaID, err)
	}
	return nil
}

// Registered reports whether a schema has been compiled under id.
func (r *SchemaRegistry) Registered(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.compiled[id]
	return ok
}
