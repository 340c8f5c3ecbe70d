package canon

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestCanonicalRoundTripProperty checks spec §8 invariant 1: for every
// artifact-shaped value, re-serializing the canonical bytes through a plain
// JSON round trip and re-canonicalizing yields byte-identical output.
func TestCanonicalRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("canonical(parse(canonical(obj))) == canonical(obj)", prop.ForAll(
		func(m map[string]string) bool {
			obj := make(map[string]interface{}, len(m))
			for k, v := range m {
				obj[k] = v
			}

			b1, err := Bytes(obj)
			if err != nil {
				return false
			}

			var reparsed interface{}
			if err := json.Unmarshal(b1, &reparsed); err != nil {
				return false
			}

			b2, err := Bytes(reparsed)
			if err != nil {
				return false
			}

			return string(b1) == string(b2)
		},
		gen.MapOf(gen.AlphaString(), gen.AlphaString()),
	))

	properties.TestingRun(t)
}
