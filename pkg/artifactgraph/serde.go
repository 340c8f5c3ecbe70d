package artifactgraph

import (
	"encoding/json"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// reportToGeneric round-trips a Report through JSON into a generic value so
// canon.Bytes can canonicalize it (canon operates on generic JSON values,
// not Go structs with tags, mirroring how the teacher's canonicalize
// package pre-marshals structs before recursive canonical encoding).
func reportToGeneric(r *Report) interface{} {
	b, err := json.Marshal(r)
	if err != nil {
		// Report is a plain data struct with no cyclic or unsupported
		// fields; a marshal failure here would indicate a programming
		// error in the struct definition itself.
		panic(err)
	}
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		panic(err)
	}
	return generic
}

func reportFromBytes(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, msezerr.Wrap(msezerr.KindValidation, "MSEZ/GRAPH/BAD_MANIFEST", "failed to parse manifest.json", err)
	}
	return &r, nil
}
