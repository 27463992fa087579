package machine

import (
	"github.com/dolthub/swiss"
	"github.com/mna/lumen/lang/compiler"
	"github.com/mna/lumen/lang/gc"
)

// Object kind tags (§3's per-kind heap objects). gc.Kind is opaque to the
// heap; these values are only meaningful within this package.
const (
	KindString gc.Kind = iota + 1
	KindArrayObj
	KindDictObj
	KindRangeObj
	KindUpvalueObj
	KindClosureObj
	KindClassObj
	KindInstanceObj
	KindBoundMethodObj
	KindNativeObj
)

// ObjString is an immutable, interned byte buffer (§3).
type ObjString struct {
	hdr  gc.Header
	Data string
	Hash uint32
}

func (o *ObjString) Header() *gc.Header          { return &o.hdr }
func (o *ObjString) VisitRefs(func(*gc.Ref))      {}

func fnvHash(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// ObjArray is a homogeneous, growable sequence (§3). ElemSet reports
// whether the element kind has been pinned yet (by the first append).
type ObjArray struct {
	hdr     gc.Header
	ElemSet bool
	ElemKind Kind
	Values  []Value
}

func (o *ObjArray) Header() *gc.Header { return &o.hdr }
func (o *ObjArray) VisitRefs(visit func(*gc.Ref)) {
	for i := range o.Values {
		visitValue(&o.Values[i], visit)
	}
}

// ObjDict is an insertion-ordered string-keyed map (§3): Entries gives
// O(1) lookup, Order gives deterministic for-each iteration.
type ObjDict struct {
	hdr     gc.Header
	Entries *swiss.Map[string, Value]
	Order   []string
}

func NewObjDict() *ObjDict {
	return &ObjDict{Entries: swiss.NewMap[string, Value](8)}
}

func (o *ObjDict) Header() *gc.Header { return &o.hdr }
func (o *ObjDict) VisitRefs(visit func(*gc.Ref)) {
	next := swiss.NewMap[string, Value](uint32(len(o.Order)) + 1)
	for _, k := range o.Order {
		v, _ := o.Entries.Get(k)
		visitValue(&v, visit)
		next.Put(k, v)
	}
	o.Entries = next
}

func (o *ObjDict) Get(key string) (Value, bool) { return o.Entries.Get(key) }

func (o *ObjDict) Set(key string, v Value) {
	if _, exists := o.Entries.Get(key); !exists {
		o.Order = append(o.Order, key)
	}
	o.Entries.Put(key, v)
}

// ObjRange is a finite, consumable iterable (§3): Current advances in
// place as FOR_EACH consumes it, so a range bound to a variable is
// exhausted after one for-loop — unlike Array/Dict, which are not
// consumable and may be iterated repeatedly.
type ObjRange struct {
	hdr     gc.Header
	Current float64
	Start   float64
	End     float64
}

func (o *ObjRange) Header() *gc.Header         { return &o.hdr }
func (o *ObjRange) VisitRefs(func(*gc.Ref))      {}

// ObjUpvalue is either open (Location indexes the owning Thread's value
// stack) or closed (Closed holds its own cell). Using a stack index
// rather than a raw pointer means a stack grow-and-copy never needs a
// separate pointer-rebasing pass — the index stays valid regardless of
// where the backing array is reallocated, an idiomatic-Go substitute
// for the pointer-rebasing scheme described for a systems language.
type ObjUpvalue struct {
	hdr      gc.Header
	Location int // valid only while Open
	Open     bool
	Closed   Value
}

func (o *ObjUpvalue) Header() *gc.Header { return &o.hdr }
func (o *ObjUpvalue) VisitRefs(visit func(*gc.Ref)) {
	if !o.Open {
		visitValue(&o.Closed, visit)
	}
}

// ObjClosure pairs a compiled function with the upvalues it captured at
// creation time (§3); a fresh ObjClosure is allocated on every CLOSURE
// instruction, even for the same Funcode.
type ObjClosure struct {
	hdr      gc.Header
	Fn       *compiler.Funcode
	Upvalues []gc.Ref // each names an ObjUpvalue
}

func (o *ObjClosure) Header() *gc.Header { return &o.hdr }
func (o *ObjClosure) VisitRefs(visit func(*gc.Ref)) {
	for i := range o.Upvalues {
		visit(&o.Upvalues[i])
	}
}

// ObjClass holds method and field-default tables (§3). Methods map to
// ObjClosure refs; Fields map each declared field name to its default
// Value, and ConstFields records which of those fields are const.
type ObjClass struct {
	hdr     gc.Header
	Name    string
	Methods map[string]gc.Ref
	Fields  map[string]Value
	// ConstFields marks which field names were declared `const var`: once
	// DEFINE_PROPERTY records a name here, SET_PROPERTY refuses every
	// write to it on any instance, mirroring how a const global can never
	// be reassigned after its single defining instruction.
	ConstFields map[string]bool
}

func NewObjClass(name string) *ObjClass {
	return &ObjClass{
		Name:        name,
		Methods:     map[string]gc.Ref{},
		Fields:      map[string]Value{},
		ConstFields: map[string]bool{},
	}
}

func (o *ObjClass) Header() *gc.Header { return &o.hdr }
func (o *ObjClass) VisitRefs(visit func(*gc.Ref)) {
	for k, ref := range o.Methods {
		visit(&ref)
		o.Methods[k] = ref
	}
	for k, v := range o.Fields {
		visitValue(&v, visit)
		o.Fields[k] = v
	}
}

// ObjInstance is a class instance whose field map is seeded from the
// class's defaults and methods at construction (§3).
type ObjInstance struct {
	hdr    gc.Header
	Class  gc.Ref
	Fields map[string]Value
}

func (o *ObjInstance) Header() *gc.Header { return &o.hdr }
func (o *ObjInstance) VisitRefs(visit func(*gc.Ref)) {
	visit(&o.Class)
	for k, v := range o.Fields {
		visitValue(&v, visit)
		o.Fields[k] = v
	}
}

// ObjBoundMethod pairs a receiver with the closure to invoke it against
// (§3), produced by GET_PROPERTY/GET_SUPER for method access.
type ObjBoundMethod struct {
	hdr      gc.Header
	Receiver Value
	Method   gc.Ref
}

func (o *ObjBoundMethod) Header() *gc.Header { return &o.hdr }
func (o *ObjBoundMethod) VisitRefs(visit func(*gc.Ref)) {
	visitValue(&o.Receiver, visit)
	visit(&o.Method)
}

// NativeFn is a Go-implemented callable. recv is the zero Value for
// plain globals (clock); for builtin array/dict methods it is the
// receiver the method was bound to by GET_PROPERTY.
type NativeFn func(t *Thread, recv Value, args []Value) (Value, error)

// ObjNative wraps a Go function as a callable lumen value (§6's
// "Global native: clock()" plus the array/dict builtin methods).
type ObjNative struct {
	hdr  gc.Header
	Name string
	Recv Value
	Fn   NativeFn
}

func (o *ObjNative) Header() *gc.Header { return &o.hdr }
func (o *ObjNative) VisitRefs(visit func(*gc.Ref)) {
	visitValue(&o.Recv, visit)
}
