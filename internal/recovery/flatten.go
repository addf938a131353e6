package recovery

import (
	"errors"
	"reflect"
)

const (
	// maxFlattenDepth bounds recursion for pathological wrap chains.
	maxFlattenDepth = 32
	// maxFlattenNodes bounds the total number of errors visited in one call.
	maxFlattenNodes = 1024
)

// Flatten expands an error into its ordered leaf causes.
//
// Errors implementing Unwrap() []error (errors.Join, fmt.Errorf with several %w)
// are replaced by their members. Any other error is emitted itself, followed by
// the flattening of its single Unwrap() cause. Every error instance is visited
// once, so shared and self-referential graphs terminate.
func Flatten(err error) []error {
	w := &walker{seen: make(map[any]struct{})}
	w.walk(err, 0)
	return w.out
}

type walker struct {
	seen  map[any]struct{}
	nodes int
	out   []error
}

func (w *walker) walk(err error, depth int) {
	if err == nil || depth > maxFlattenDepth || w.nodes >= maxFlattenNodes {
		return
	}
	w.nodes++

	if !w.visit(err) {
		return
	}

	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range multi.Unwrap() {
			w.walk(inner, depth+1)
		}
		return
	}

	w.out = append(w.out, err)
	w.walk(errors.Unwrap(err), depth+1)
}

// visit marks err as seen and reports whether it was new. Values with no
// usable identity are always new; the node budget bounds them.
func (w *walker) visit(err error) bool {
	key, ok := identity(err)
	if !ok {
		return true
	}
	if _, dup := w.seen[key]; dup {
		return false
	}
	w.seen[key] = struct{}{}
	return true
}

// refKey identifies reference-kind values by their backing storage.
type refKey struct {
	typ reflect.Type
	ptr uintptr
	len int
}

func identity(err error) (key any, ok bool) {
	v := reflect.ValueOf(err)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return refKey{typ: v.Type(), ptr: v.Pointer()}, true
	case reflect.Slice:
		return refKey{typ: v.Type(), ptr: v.Pointer(), len: v.Len()}, true
	}
	if !v.Type().Comparable() {
		return nil, false
	}
	// Comparable structs can still hold non-comparable values in interface
	// fields, which panic when hashed.
	defer func() {
		if recover() != nil {
			key, ok = nil, false
		}
	}()
	scratch := map[any]struct{}{}
	scratch[err] = struct{}{}
	return err, true
}
