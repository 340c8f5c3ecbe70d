// Package canon implements the JCS-like canonical serialization and digest
// algebra that every artifact in MSEZ is addressed by. It generalizes the
// teacher's hand-rolled JCS marshaler (no call sites for the declared but
// unused gowebpki/jcs dependency were found in the teacher tree, so this
// package follows the teacher's actual practice) with the two rules the
// spec adds on top of RFC 8785: float rejection and datetime coercion.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/momentum-sez/msez-core/pkg/msezerr"
)

// Bytes returns the canonical JSON serialization of v: lexicographically
// sorted object keys, no whitespace, UTF-8, integers and strings only.
// Floats are rejected with a Validation error; time.Time values are coerced
// to RFC 3339 Zulu; non-string map keys are coerced via fmt.Sprint.
func Bytes(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(normalize(v))
	if err != nil {
		return nil, msezerr.Wrap(msezerr.KindValidation, "MSEZ/CANON/MARSHAL_FAILED", "pre-marshal failed", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(intermediate))
	decoder.UseNumber()
	var generic interface{}
	if err := decoder.Decode(&generic); err != nil {
		return nil, msezerr.Wrap(msezerr.KindValidation, "MSEZ/CANON/DECODE_FAILED", "intermediate decode failed", err)
	}

	var buf bytes.Buffer
	if err := encodeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String returns the canonical form as a string.
func String(v interface{}) (string, error) {
	b, err := Bytes(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SHA256Hex returns the lower-case hex SHA-256 digest of raw bytes.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Digest returns the SHA-256 hex digest of the canonical bytes of v.
func Digest(v interface{}) (string, error) {
	b, err := Bytes(v)
	if err != nil {
		return "", err
	}
	return SHA256Hex(b), nil
}

// normalize walks v, coercing time.Time to RFC3339 Zulu strings so the
// later JSON round-trip never sees a time type, and rebuilding maps with
// non-string keys as map[string]interface{} keyed by fmt.Sprint of each key.
// Everything else is passed through untouched for json.Marshal to handle.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format("2006-01-02T15:04:05Z")
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Map && rv.Type().Key().Kind() != reflect.String {
			out := make(map[string]interface{}, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[fmt.Sprint(iter.Key().Interface())] = normalize(iter.Value().Interface())
			}
			return out
		}
		return v
	}
}

// StripKeys returns a shallow copy of obj with the given top-level keys
// removed. Used to build the strict-digest payload (object minus "proof",
// receipt minus "proof" and "next_root").
func StripKeys(obj map[string]interface{}, keys ...string) map[string]interface{} {
	drop := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
	}
	out := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		if _, skip := drop[k]; skip {
			continue
		}
		out[k] = v
	}
	return out
}

func encodeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		if isFloatLiteral(string(t)) {
			return msezerr.New(msezerr.KindValidation, msezerr.CodeNonCanonicalFloat,
				fmt.Sprintf("non-canonical float value %q: floats are not permitted in canonical bytes", t))
		}
		buf.WriteString(string(t))
		return nil
	case string:
		return encodeCanonicalString(buf, t)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonicalString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return msezerr.New(msezerr.KindValidation, "MSEZ/CANON/UNSUPPORTED_TYPE",
			fmt.Sprintf("unsupported type %T in canonical encoding", v))
	}
}

func encodeCanonicalString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return msezerr.Wrap(msezerr.KindValidation, "MSEZ/CANON/STRING_ENCODE_FAILED", "failed to encode string", err)
	}
	buf.Write(b)
	return nil
}

// isFloatLiteral reports whether a json.Number's literal text contains a
// decimal point or exponent, i.e. is not a plain integer.
func isFloatLiteral(s string) bool {
	for _, r := range s {
		if r == '.' || r == 'e' || r == 'E' {
			return true
		}
	}
	return false
}
