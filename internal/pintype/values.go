package pintype

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// DecodeJSON decodes a JSON document into a value of the given type. An empty
// document yields a null value. For "any" the type is implied from the JSON.
func DecodeJSON(raw json.RawMessage, ty cty.Type) (cty.Value, error) {
	if len(raw) == 0 {
		return cty.NullVal(ty), nil
	}

	if ty == cty.DynamicPseudoType {
		implied, err := ctyjson.ImpliedType(raw)
		if err != nil {
			return cty.NilVal, fmt.Errorf("inferring type of %s: %w", string(raw), err)
		}
		ty = implied
	}

	val, err := ctyjson.Unmarshal(raw, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("decoding %s as %s: %w", string(raw), Format(ty), err)
	}
	return val, nil
}

// EncodeJSON renders a value as JSON. Null and unknown values encode as null.
func EncodeJSON(val cty.Value) (json.RawMessage, error) {
	if val == cty.NilVal || val.IsNull() || !val.IsWhollyKnown() {
		return json.RawMessage("null"), nil
	}
	out, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Convert converts a value to the given type. Values bound for "any" pass
// through unchanged.
func Convert(val cty.Value, ty cty.Type) (cty.Value, error) {
	if ty == cty.DynamicPseudoType {
		return val, nil
	}
	out, err := convert.Convert(val, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot use %s value as %s: %w", val.Type().FriendlyName(), Format(ty), err)
	}
	return out, nil
}

// Decode stores the value into target, which must be a pointer. A target of
// type *any receives the plain Go representation produced by ToGo, and a
// *cty.Value target receives the value itself.
func Decode(val cty.Value, target any) error {
	switch t := target.(type) {
	case *cty.Value:
		*t = val
		return nil
	case *any:
		out, err := ToGo(val)
		if err != nil {
			return err
		}
		*t = out
		return nil
	}

	if !val.IsWhollyKnown() {
		return fmt.Errorf("value is not known")
	}

	ty, err := gocty.ImpliedType(target)
	if err != nil {
		return fmt.Errorf("unsupported target %T: %w", target, err)
	}
	converted, err := convert.Convert(val, ty)
	if err != nil {
		return fmt.Errorf("cannot convert %s to %T: %w", val.Type().FriendlyName(), target, err)
	}
	return gocty.FromCtyValue(converted, target)
}

// ToGo converts a cty.Value into plain Go values: string, float64, bool,
// map[string]any and []any. Null and unknown values become nil.
func ToGo(val cty.Value) (any, error) {
	if val == cty.NilVal || !val.IsKnown() || val.IsNull() {
		return nil, nil
	}

	ty := val.Type()
	if ty.IsPrimitiveType() {
		switch ty {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			f, _ := val.AsBigFloat().Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", ty.FriendlyName())
		}
	}

	if ty.IsObjectType() || ty.IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			elem, err := ToGo(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = elem
		}
		return out, nil
	}

	if ty.IsTupleType() || ty.IsListType() || ty.IsSetType() {
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			elem, err := ToGo(v)
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	}

	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", ty.FriendlyName())
}

// FromGo converts a Go value into a cty.Value. cty.Value inputs pass through,
// loosely typed maps and slices become objects and tuples, and anything else
// goes through gocty with its implied type.
func FromGo(v any) (cty.Value, error) {
	switch val := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return val, nil
	case string:
		return cty.StringVal(val), nil
	case bool:
		return cty.BoolVal(val), nil
	case int:
		return cty.NumberIntVal(int64(val)), nil
	case int64:
		return cty.NumberIntVal(val), nil
	case float64:
		return cty.NumberFloatVal(val), nil
	case *big.Float:
		return cty.NumberVal(val), nil
	case json.Number:
		return cty.ParseNumberVal(val.String())
	case map[string]any:
		attrs := make(map[string]cty.Value, len(val))
		for k, item := range val {
			converted, err := FromGo(item)
			if err != nil {
				return cty.NilVal, fmt.Errorf("attribute %q: %w", k, err)
			}
			attrs[k] = converted
		}
		return cty.ObjectVal(attrs), nil
	case []any:
		if len(val) == 0 {
			return cty.EmptyTupleVal, nil
		}
		items := make([]cty.Value, len(val))
		for i, item := range val {
			converted, err := FromGo(item)
			if err != nil {
				return cty.NilVal, fmt.Errorf("element %d: %w", i, err)
			}
			items[i] = converted
		}
		return cty.TupleVal(items), nil
	}

	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unsupported Go value %T: %w", v, err)
	}
	return gocty.ToCtyValue(v, ty)
}

// Elements returns the elements of a list, set or tuple value in order.
// Maps and objects yield their values ordered by key.
func Elements(val cty.Value) ([]cty.Value, error) {
	if val == cty.NilVal || val.IsNull() {
		return nil, nil
	}
	if !val.IsKnown() {
		return nil, fmt.Errorf("collection is not known")
	}

	ty := val.Type()
	switch {
	case ty.IsListType(), ty.IsSetType(), ty.IsTupleType():
		out := make([]cty.Value, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			out = append(out, v)
		}
		return out, nil
	case ty.IsMapType(), ty.IsObjectType():
		byKey := make(map[string]cty.Value)
		keys := make([]string, 0)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			byKey[k.AsString()] = v
			keys = append(keys, k.AsString())
		}
		sort.Strings(keys)
		out := make([]cty.Value, 0, len(keys))
		for _, k := range keys {
			out = append(out, byKey[k])
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s is not a collection", ty.FriendlyName())
	}
}
