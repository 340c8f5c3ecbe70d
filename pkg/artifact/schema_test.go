package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePersonSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "integer", "minimum": 0}
	}
}`

func TestSchemaRegistry_RegisterAndValidate(t *testing.T) {
	r := NewSchemaRegistry()
	require.NoError(t, r.RegisterSchema("person.json", []byte(samplePersonSchema)))
	assert.True(t, r.Registered("person.json"))

	err := r.Validate("person.json", map[string]interface{}{"name": "alice", "age": 30.0})
	assert.NoError(t, err)
}

func TestSchemaRegistry_ValidateRejectsMissingRequiredField(t *testing.T) {
	r := NewSchemaRegistry()
	require.NoError(t, r.RegisterSchema("person.json", []byte(samplePersonSchema)))

	err := r.Validate("person.json", map[string]interface{}{"age": 30.0})
	require.Error(t, err)
}

func TestSchemaRegistry_ValidateRejectsNegativeAge(t *testing.T) {
	r := NewSchemaRegistry()
	require.NoError(t, r.RegisterSchema("person.json", []byte(samplePersonSchema)))

	err := r.Validate("person.json", map[string]interface{}{"name": "bob", "age": -1.0})
	require.Error(t, err)
}

func TestSchemaRegistry_ValidateUnregisteredSchemaErrors(t *testing.T) {
	r := NewSchemaRegistry()
	err := r.Validate("nope.json", map[string]interface{}{})
	require.Error(t, err)
}

func TestSchemaRegistry_RegisterRejectsMalformedSchema(t *testing.T) {
	r := NewSchemaRegistry()
	err := r.RegisterSchema("broken.json", []byte(`{not even valid json`))
	require.Error(t, err)
}
