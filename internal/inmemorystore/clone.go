package inmemorystore

import (
	"maps"
	"reflect"
	"slices"
)

// cloneValue returns a shallow copy of slice and map values so the
// previous-tick buffer does not alias storage a kernel may reuse. Other
// values are returned as is.
func cloneValue(v any) any {
	switch x := v.(type) {
	case []float64:
		return slices.Clone(x)
	case []any:
		return slices.Clone(x)
	case map[string]any:
		return maps.Clone(x)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		c := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(c, rv)
		return c.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		c := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		it := rv.MapRange()
		for it.Next() {
			c.SetMapIndex(it.Key(), it.Value())
		}
		return c.Interface()
	}
	return v
}
