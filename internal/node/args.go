package node

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Args are the configuration arguments of one node instance, as loaded from a
// graph description.
type Args map[string]cty.Value

func (a Args) lookup(name string, want cty.Type) (cty.Value, bool, error) {
	v, ok := a[name]
	if !ok || v.IsNull() {
		return cty.NilVal, false, nil
	}
	if !v.IsKnown() {
		return cty.NilVal, false, fmt.Errorf("argument %q is not known", name)
	}
	converted, err := convert.Convert(v, want)
	if err != nil {
		return cty.NilVal, false, fmt.Errorf("argument %q: %w", name, err)
	}
	return converted, true, nil
}

// Float returns a numeric argument, or def when it is absent.
func (a Args) Float(name string, def float64) (float64, error) {
	v, ok, err := a.lookup(name, cty.Number)
	if err != nil || !ok {
		return def, err
	}
	var f float64
	if err := gocty.FromCtyValue(v, &f); err != nil {
		return def, fmt.Errorf("argument %q: %w", name, err)
	}
	return f, nil
}

// Int returns an integer argument, or def when it is absent.
func (a Args) Int(name string, def int) (int, error) {
	v, ok, err := a.lookup(name, cty.Number)
	if err != nil || !ok {
		return def, err
	}
	var i int
	if err := gocty.FromCtyValue(v, &i); err != nil {
		return def, fmt.Errorf("argument %q: %w", name, err)
	}
	return i, nil
}

// String returns a string argument, or def when it is absent.
func (a Args) String(name string, def string) (string, error) {
	v, ok, err := a.lookup(name, cty.String)
	if err != nil || !ok {
		return def, err
	}
	return v.AsString(), nil
}

// Bool returns a boolean argument, or def when it is absent.
func (a Args) Bool(name string, def bool) (bool, error) {
	v, ok, err := a.lookup(name, cty.Bool)
	if err != nil || !ok {
		return def, err
	}
	return v.True(), nil
}

// Any converts an argument to its plain Go form (see ToGo).
func (a Args) Any(name string) (any, error) {
	v, ok := a[name]
	if !ok {
		return nil, nil
	}
	return ToGo(v)
}

// ToGo converts a cty.Value to plain Go values: strings, float64, bool,
// map[string]any and []any. Null and unknown values become nil.
func ToGo(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
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
