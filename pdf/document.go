package pdf

// Document is the root container for parsed objects. The trailer (or the
// xref stream dictionary standing in for it) names the catalog.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer *Dict
	Version string
}

// Resolve follows indirect references until a direct object is reached.
// Unresolvable references yield Null.
func (d *Document) Resolve(obj Object) Object {
	for i := 0; i < 32; i++ { // reference chains are short; bound against cycles
		ref, ok := obj.(Ref)
		if !ok {
			return obj
		}
		next, ok := d.Objects[ObjectRef(ref)]
		if !ok {
			return Null{}
		}
		obj = next
	}
	return Null{}
}

// ResolveDict resolves obj and returns it as a dictionary, unwrapping streams.
func (d *Document) ResolveDict(obj Object) (*Dict, bool) {
	switch v := d.Resolve(obj).(type) {
	case *Dict:
		return v, true
	case *Stream:
		return v.Dict, true
	default:
		return nil, false
	}
}

// ResolveArray resolves obj and returns it as an array.
func (d *Document) ResolveArray(obj Object) (*Array, bool) {
	arr, ok := d.Resolve(obj).(*Array)
	return arr, ok
}

// DictGet resolves the value stored under key in dict.
func (d *Document) DictGet(dict *Dict, key Name) Object {
	if dict == nil {
		return Null{}
	}
	obj, ok := dict.Get(key)
	if !ok {
		return Null{}
	}
	return d.Resolve(obj)
}

// Catalog returns the document catalog named by the trailer.
func (d *Document) Catalog() (*Dict, bool) {
	if d.Trailer == nil {
		return nil, false
	}
	root, ok := d.Trailer.Get("Root")
	if !ok {
		return nil, false
	}
	return d.ResolveDict(root)
}

// Page is one page of a source document: its dictionary plus the document
// whose object table resolves the dictionary's references. Pages are handed
// to the output writer, which copies the reachable object graph.
type Page struct {
	Dict   *Dict
	Ref    ObjectRef
	Source *Document
}
