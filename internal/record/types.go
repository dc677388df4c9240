package record

import "fmt"

// Value is a property value that can be stored on an object.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern enables exhaustive type switches in the
// canonical serializer and the store's parameter binding.
type Value interface {
	valueNode() // Marker method - seals interface to this package
}

// String is a UTF-8 string property value.
type String string

// Int is a 64-bit integer property value.
type Int int64

// Float is a 64-bit floating point property value.
type Float float64

// Bool is a boolean property value.
type Bool bool

// Null is the absent/nil property value.
type Null struct{}

// Array is an ordered list of values.
type Array []Value

// Object is a set of named property values.
type Object map[string]Value

func (String) valueNode() {}
func (Int) valueNode()    {}
func (Float) valueNode()  {}
func (Bool) valueNode()   {}
func (Null) valueNode()   {}
func (Array) valueNode()  {}
func (Object) valueNode() {}

// FromNative converts a Go native value (as produced by encoding/json,
// yaml.v3, or CUE decoding) into a Value.
//
// Supported inputs: nil, string, bool, int, int64, float64, []any,
// map[string]any, and Value itself (returned unchanged).
func FromNative(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		// JSON numbers decode as float64; keep integral values as Int so
		// canonical output is stable regardless of the decode path.
		if val == float64(int64(val)) {
			return Int(int64(val)), nil
		}
		return Float(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			rv, err := FromNative(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = rv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			rv, err := FromNative(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = rv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ObjectFromNative converts a map of Go native values into an Object.
func ObjectFromNative(m map[string]any) (Object, error) {
	v, err := FromNative(m)
	if err != nil {
		return nil, err
	}
	return v.(Object), nil
}

// Native converts a Value back to a Go native representation, suitable for
// encoding/json or yaml output.
func Native(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Null:
		return nil
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Native(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Native(elem)
		}
		return out
	default:
		return nil
	}
}
