package transcript

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/crypto/sha3"
)

// Canonical encoding is the one place where cross-implementation fidelity
// must be bit-exact: JSON with keys sorted lexicographically at every object
// level, no whitespace, no HTML escaping, absent fields omitted. Any replayer
// producing the same bytes produces the same hashes.

// CanonicalJSON encodes v into its canonical JSON form
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := marshalNoEscape(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var parsed interface{}
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("canonical: reparse failed: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, parsed); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// marshalNoEscape is json.Marshal without the <,>,& -> \u00XX rewriting,
// which would diverge from other implementations
func marshalNoEscape(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(val.String())
	case string:
		s, err := marshalNoEscape(val)
		if err != nil {
			return err
		}
		buf.Write(s)
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			ks, err := marshalNoEscape(k)
			if err != nil {
				return err
			}
			buf.Write(ks)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical: unsupported value %T", v)
	}
	return nil
}

func keccak256(data []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// HashState returns keccak256 of the canonical encoding of a game state
func HashState(state interface{}) (string, error) {
	enc, err := CanonicalJSON(state)
	if err != nil {
		return "", err
	}
	return keccak256(enc), nil
}

// ChainHash links a transcript entry to the rolling hash:
// keccak256(utf8(prev || canonicalEncode(entry)))
func ChainHash(prev string, entry Entry) (string, error) {
	enc, err := CanonicalJSON(entry)
	if err != nil {
		return "", err
	}
	return keccak256(append([]byte(prev), enc...)), nil
}
