// Package deepsize estimates how much memory a value holds by walking
// everything reachable from it with reflection.
package deepsize

import "reflect"

// mapOverhead approximates the runtime map header and bucket metadata not
// visible through reflection.
const mapOverhead = 48

// Of returns the inline size of v plus every heap allocation reachable from
// it. Each pointer target is counted once, so shared and cyclic structures
// terminate.
func Of(v any) int64 {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	w := walker{seen: make(map[uintptr]struct{})}
	return int64(rv.Type().Size()) + w.heap(rv)
}

type walker struct {
	seen map[uintptr]struct{}
}

// visit reports whether p is seen for the first time.
func (w *walker) visit(p uintptr) bool {
	if _, ok := w.seen[p]; ok {
		return false
	}
	w.seen[p] = struct{}{}
	return true
}

// heap returns the bytes v refers to outside its own inline storage. The
// caller has already counted v's inline size.
func (w *walker) heap(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() || !w.visit(v.Pointer()) {
			return 0
		}
		return int64(v.Type().Elem().Size()) + w.heap(v.Elem())

	case reflect.String:
		return int64(v.Len())

	case reflect.Slice:
		if v.IsNil() {
			return 0
		}
		return int64(v.Cap())*int64(v.Type().Elem().Size()) + w.elems(v)

	case reflect.Array:
		return w.elems(v)

	case reflect.Struct:
		var n int64
		for i := 0; i < v.NumField(); i++ {
			n += w.heap(v.Field(i))
		}
		return n

	case reflect.Map:
		if v.IsNil() {
			return 0
		}
		t := v.Type()
		n := int64(mapOverhead)
		iter := v.MapRange()
		for iter.Next() {
			n += int64(t.Key().Size()) + w.heap(iter.Key())
			n += int64(t.Elem().Size()) + w.heap(iter.Value())
		}
		return n

	case reflect.Interface:
		if v.IsNil() {
			return 0
		}
		e := v.Elem()
		return int64(e.Type().Size()) + w.heap(e)
	}
	// Scalars hold nothing outside their inline storage. Funcs and channels
	// are not followed.
	return 0
}

// elems sums the heap bytes of the elements of a slice or array. Element
// inline storage is part of the backing array and not counted here.
func (w *walker) elems(v reflect.Value) int64 {
	if !mayReference(v.Type().Elem()) {
		return 0
	}
	var n int64
	for i := 0; i < v.Len(); i++ {
		n += w.heap(v.Index(i))
	}
	return n
}

// mayReference reports whether values of t can point at heap memory.
func mayReference(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.String, reflect.Interface:
		return true
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if mayReference(t.Field(i).Type) {
				return true
			}
		}
	case reflect.Array:
		return mayReference(t.Elem())
	}
	return false
}
