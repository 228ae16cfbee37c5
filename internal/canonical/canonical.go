// Package canonical produces the unique deterministic serialization of a
// metadata tree used as hash input. Two semantically equal trees marshal to
// byte-identical output regardless of map insertion order, which is the
// property every digest in the hash chain depends on.
//
// Encoding rules:
//   - mapping keys are sorted lexicographically by their string form
//   - array element order is preserved (it is semantically significant)
//   - strings are UTF-8, JSON-escaped
//   - integers serialize as plain decimal, floats as fixed-point with no
//     exponent notation; NaN and infinities are unserializable
//   - no insignificant whitespace
//
// The output is valid JSON, but the guarantee is byte determinism, not
// round-tripping.
package canonical

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// UnserializableValueError reports a value outside the canonical value model
// of {null, boolean, number, string, sequence, mapping}, e.g. a function
// reference or an unsupported struct. It carries the offending value so
// callers can log the Go type.
type UnserializableValueError struct {
	Value any
}

func (e *UnserializableValueError) Error() string {
	return fmt.Sprintf("canonical: unserializable value of type %T", e.Value)
}

// IsUnserializable reports whether err is an UnserializableValueError.
func IsUnserializable(err error) bool {
	var ue *UnserializableValueError
	return errors.As(err, &ue)
}

// Marshal serializes v into its canonical byte form.
func Marshal(v any) ([]byte, error) {
	var sb strings.Builder
	if err := encode(&sb, v); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func encode(sb *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		if val {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case string:
		return encodeString(sb, val)
	case int:
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case int8:
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case int16:
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case int32:
		sb.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		sb.WriteString(strconv.FormatInt(val, 10))
	case uint:
		sb.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint8:
		sb.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint16:
		sb.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint32:
		sb.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		sb.WriteString(strconv.FormatUint(val, 10))
	case float32:
		return encodeFloat(sb, float64(val))
	case float64:
		return encodeFloat(sb, val)
	case json.Number:
		// Numbers arriving via json decoding keep their literal form if it
		// is already canonical; otherwise re-encode through float rules.
		if i, err := val.Int64(); err == nil {
			sb.WriteString(strconv.FormatInt(i, 10))
			return nil
		}
		f, err := val.Float64()
		if err != nil {
			return &UnserializableValueError{Value: v}
		}
		return encodeFloat(sb, f)
	case []any:
		return encodeArray(sb, val)
	case []string:
		arr := make([]any, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return encodeArray(sb, arr)
	case map[string]any:
		return encodeMap(sb, val)
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, s := range val {
			m[k] = s
		}
		return encodeMap(sb, m)
	default:
		return &UnserializableValueError{Value: v}
	}
	return nil
}

// encodeFloat writes a number without exponent notation so output never
// depends on magnitude thresholds. Integral floats collapse to the integer
// form, keeping 2.0 and 2 byte-identical.
func encodeFloat(sb *strings.Builder, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return &UnserializableValueError{Value: f}
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		sb.WriteString(strconv.FormatInt(int64(f), 10))
		return nil
	}
	sb.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// encodeString uses encoding/json for escaping: deterministic, valid UTF-8
// output for any input string.
func encodeString(sb *strings.Builder, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return &UnserializableValueError{Value: s}
	}
	sb.Write(b)
	return nil
}

func encodeArray(sb *strings.Builder, arr []any) error {
	sb.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			sb.WriteByte(',')
		}
		if err := encode(sb, elem); err != nil {
			return err
		}
	}
	sb.WriteByte(']')
	return nil
}

func encodeMap(sb *strings.Builder, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		if err := encodeString(sb, k); err != nil {
			return err
		}
		sb.WriteByte(':')
		if err := encode(sb, m[k]); err != nil {
			return err
		}
	}
	sb.WriteByte('}')
	return nil
}
