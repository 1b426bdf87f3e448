package keystore

import (
	"sort"

	"github.com/systmms/vaultstore/pkg/storage"
)

// PayloadField holds the content of a managed resource
const PayloadField = "data"

// RawValueField holds the content of a raw secret created through the store
const RawValueField = "value"

// Kind classifies what a path resolves to
type Kind int

const (
	// KindMissing: nothing at the path or at its parent
	KindMissing Kind = iota
	// KindManaged: a secret carrying PayloadField and its metadata
	KindManaged
	// KindRaw: a plain secret of named fields
	KindRaw
	// KindField: one field of a raw secret stored at the parent path
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindManaged:
		return "managed"
	case KindRaw:
		return "raw"
	case KindField:
		return "field"
	default:
		return "missing"
	}
}

// Object is the resolved view of a path. Which fields are set depends on
// Kind; use the constructors.
type Object struct {
	Kind    Kind
	Path    storage.Path
	Address string

	// Managed, Raw
	Fields map[string]string
	// Raw: more than one field
	MultiField bool

	// Field: the raw parent and the field name inside it
	Parent    *Object
	FieldName string

	// Missing: the error of the direct read
	Err error
}

func managedObject(path storage.Path, address string, fields map[string]string) *Object {
	return &Object{Kind: KindManaged, Path: path, Address: address, Fields: fields}
}

func rawObject(path storage.Path, address string, fields map[string]string) *Object {
	return &Object{Kind: KindRaw, Path: path, Address: address, Fields: fields, MultiField: len(fields) > 1}
}

func fieldObject(path storage.Path, parent *Object, name string) *Object {
	return &Object{Kind: KindField, Path: path, Address: parent.Address, Parent: parent, FieldName: name}
}

func missingObject(path storage.Path, err error) *Object {
	return &Object{Kind: KindMissing, Path: path, Err: err}
}

// classify turns a successful read into a managed or raw object
func classify(path storage.Path, address string, fields map[string]string) *Object {
	if _, ok := fields[PayloadField]; ok {
		return managedObject(path, address, fields)
	}
	return rawObject(path, address, fields)
}

// Exists reports whether something is stored for the object. A field view
// exists only when its parent carries the field.
func (o *Object) Exists() bool {
	switch o.Kind {
	case KindManaged, KindRaw:
		return true
	case KindField:
		_, ok := o.Parent.Fields[o.FieldName]
		return ok
	default:
		return false
	}
}

// IsLeaf reports whether the object reads as a single resource
func (o *Object) IsLeaf() bool {
	switch o.Kind {
	case KindManaged:
		return true
	case KindRaw:
		return !o.MultiField
	case KindField:
		return o.Exists()
	default:
		return false
	}
}

// IsDirectory reports whether the object is a multi-field raw secret,
// whose fields are listed as children
func (o *Object) IsDirectory() bool {
	return o.Kind == KindRaw && o.MultiField
}

// Value returns the content of a raw leaf or field view
func (o *Object) Value() (string, bool) {
	switch o.Kind {
	case KindField:
		v, ok := o.Parent.Fields[o.FieldName]
		return v, ok
	case KindRaw:
		if o.MultiField {
			return "", false
		}
		for _, v := range o.Fields {
			return v, true
		}
		// a secret without fields reads as empty content
		return "", true
	default:
		return "", false
	}
}

// ErrorMessage returns the text of the read error of a missing object
func (o *Object) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// FieldNames returns the sorted field names of a raw or managed object
func (o *Object) FieldNames() []string {
	names := make([]string, 0, len(o.Fields))
	for k := range o.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
