package xstage

import (
	"fmt"
	"iter"
	"reflect"
)

// Meta is a typed payload attached to a Params, such as a device pose
// sample. Items are looked up by the type or interface they satisfy with
// LookupMeta and FindMeta; MetaName only serves diagnostics.
type Meta interface {
	MetaName() string
}

// MetaList is the ordered metadata container of a Params.
//
// Items keep insertion order. When several items satisfy the same lookup
// the earliest one attached wins.
//
// MetaList is not safe for concurrent mutation.
type MetaList struct {
	items []Meta
}

// Add appends m. A nil item, including a typed nil pointer, is rejected
// with ErrInvalidParam and the list is left unchanged.
func (l *MetaList) Add(m Meta) error {
	if isNil(m) {
		return fmt.Errorf("%w: nil metadata", ErrInvalidParam)
	}
	l.items = append(l.items, m)
	return nil
}

// Len returns the number of attached items.
func (l *MetaList) Len() int {
	return len(l.items)
}

// All iterates over the items in insertion order.
func (l *MetaList) All() iter.Seq[Meta] {
	return func(yield func(Meta) bool) {
		for _, m := range l.items {
			if !yield(m) {
				return
			}
		}
	}
}

// LookupMeta returns the first item in l that is a T. T may be a concrete
// type or an interface describing a capability.
func LookupMeta[T any](l *MetaList) (T, bool) {
	var zero T
	if l == nil {
		return zero, false
	}
	for _, m := range l.items {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	return zero, false
}

// FindMeta returns the first metadata item of p that is a T.
func FindMeta[T any](p *Params) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return LookupMeta[T](&p.metas)
}

func isNil(m Meta) bool {
	if m == nil {
		return true
	}
	v := reflect.ValueOf(m)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
