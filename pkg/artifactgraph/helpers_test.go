package artifactgraph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func sha256HexForTest(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
