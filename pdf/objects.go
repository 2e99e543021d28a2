// Package pdf holds the raw PDF object model and a document parser. Objects
// are kept deliberately close to the wire format: pass-through pages travel
// from input to output as untouched object graphs.
package pdf

import (
	"fmt"
	"sort"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the union of raw PDF value types: Name, Integer, Real, Boolean,
// String, Null, *Array, *Dict, *Stream and Ref.
type Object interface{ pdfObject() }

type Name string

func (Name) pdfObject() {}

type Integer int64

func (Integer) pdfObject() {}

type Real float64

func (Real) pdfObject() {}

type Boolean bool

func (Boolean) pdfObject() {}

// String is a PDF string; Hex records which wire form it was read in.
type String struct {
	Data []byte
	Hex  bool
}

func (String) pdfObject() {}

type Null struct{}

func (Null) pdfObject() {}

type Array struct {
	Items []Object
}

func (*Array) pdfObject() {}

func (a *Array) Append(objs ...Object) { a.Items = append(a.Items, objs...) }
func (a *Array) Len() int              { return len(a.Items) }

type Dict struct {
	kv map[Name]Object
}

func (*Dict) pdfObject() {}

func NewDict() *Dict { return &Dict{kv: make(map[Name]Object)} }

func (d *Dict) Get(key Name) (Object, bool) {
	obj, ok := d.kv[key]
	return obj, ok
}

func (d *Dict) Set(key Name, value Object) {
	if d.kv == nil {
		d.kv = make(map[Name]Object)
	}
	d.kv[key] = value
}

func (d *Dict) Delete(key Name) { delete(d.kv, key) }

func (d *Dict) Len() int { return len(d.kv) }

// Keys returns the dictionary keys in sorted order for deterministic output.
func (d *Dict) Keys() []Name {
	keys := make([]Name, 0, len(d.kv))
	for k := range d.kv {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Stream pairs a dictionary with raw (still encoded) payload bytes.
type Stream struct {
	Dict *Dict
	Data []byte
}

func (*Stream) pdfObject() {}

type Ref ObjectRef

func (Ref) pdfObject() {}

// Helper accessors used throughout the pipeline. They deliberately do not
// resolve indirect references; see Document.Resolve for that.

func AsName(obj Object) (Name, bool) {
	n, ok := obj.(Name)
	return n, ok
}

func AsInt(obj Object) (int64, bool) {
	switch v := obj.(type) {
	case Integer:
		return int64(v), true
	case Real:
		return int64(v), true
	default:
		return 0, false
	}
}

func AsFloat(obj Object) (float64, bool) {
	switch v := obj.(type) {
	case Integer:
		return float64(v), true
	case Real:
		return float64(v), true
	default:
		return 0, false
	}
}
