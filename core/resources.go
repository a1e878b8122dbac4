package core

import (
	"reflect"

	"github.com/edwinsyarief/lazyecs"
)

// Resources are stored in the world's resource map keyed by their Go type,
// one instance per type per loop. Store pointer types for anything a system
// mutates in place.

// SetResource stores v as the loop-wide resource of type T.
func SetResource[T any](w *lazyecs.World, v T) {
	w.Resources.Store(resourceKey[T](), v)
}

// GetResource returns the loop-wide resource of type T.
func GetResource[T any](w *lazyecs.World) (T, bool) {
	var zero T
	raw, ok := w.Resources.Load(resourceKey[T]())
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// RemoveResource drops the loop-wide resource of type T.
func RemoveResource[T any](w *lazyecs.World) {
	w.Resources.Delete(resourceKey[T]())
}

func resourceKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
