// Package machine implements lumen's value model and bytecode
// interpreter: the tagged Value union, the heap object kinds built on
// top of gc.Object, and the Thread that drives a compiled Funcode to
// completion.
package machine

import (
	"fmt"
	"strconv"

	"github.com/mna/lumen/lang/gc"
)

// Kind tags a Value's active field (§3's sum type).
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObject
)

// Value is lumen's tagged union: nil, bool, number, or a reference to a
// heap object. It is plain data — comparable with ==, usable as a map
// key — because every field that participates in equality (Kind, Bool,
// Num, Ref) is itself comparable, and because strings are interned
// (§3: "string identity equals content equality"), Ref equality alone
// implements the language's equality for every object kind that needs
// identity semantics.
type Value struct {
	Kind Kind
	Bool bool
	Num  float64
	Ref  gc.Ref
}

var Nil = Value{Kind: KindNil}

func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func NumberValue(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func ObjectValue(ref gc.Ref) Value { return Value{Kind: KindObject, Ref: ref} }

func (v Value) IsNil() bool    { return v.Kind == KindNil }
func (v Value) IsObject() bool { return v.Kind == KindObject }

// Truthy implements lumen's falsiness rule: nil and false are falsy,
// everything else — including 0 and the empty string — is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNil:
		return false
	case KindBool:
		return v.Bool
	default:
		return true
	}
}

// visitValue forwards a VisitRefs callback to v's Ref field, a no-op for
// non-object values. Object kinds use this to traverse Values they hold
// without duplicating the Kind == KindObject guard everywhere.
func visitValue(v *Value, visit func(*gc.Ref)) {
	if v.Kind == KindObject {
		visit(&v.Ref)
	}
}

// TypeName returns the short name used in runtime error messages.
func TypeName(heap *gc.Heap, v Value) string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	default:
		obj := heap.Deref(v.Ref)
		if obj == nil {
			return "object"
		}
		switch obj.(type) {
		case *ObjString:
			return "string"
		case *ObjArray:
			return "array"
		case *ObjDict:
			return "dict"
		case *ObjRange:
			return "range"
		case *ObjClosure:
			return "function"
		case *ObjNative:
			return "native"
		case *ObjClass:
			return "class"
		case *ObjInstance:
			return "instance"
		case *ObjBoundMethod:
			return "bound method"
		case *ObjUpvalue:
			return "upvalue"
		default:
			return "object"
		}
	}
}

// ToDisplayString renders v the way PRINT and string concatenation do
// (§4.2: "number: shortest-round-trip; bool: true/false; nil: nil;
// string: itself").
func ToDisplayString(heap *gc.Heap, v Value) string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	default:
		obj := heap.Deref(v.Ref)
		switch o := obj.(type) {
		case *ObjString:
			return o.Data
		case *ObjArray:
			return formatArray(heap, o)
		case *ObjDict:
			return formatDict(heap, o)
		case *ObjRange:
			return fmt.Sprintf("range(%g..%g)", o.Start, o.End)
		case *ObjClosure:
			return fmt.Sprintf("<fn %s>", o.Fn.Name)
		case *ObjNative:
			return fmt.Sprintf("<native %s>", o.Name)
		case *ObjClass:
			return fmt.Sprintf("<class %s>", o.Name)
		case *ObjInstance:
			cls, _ := heap.Deref(o.Class).(*ObjClass)
			name := "instance"
			if cls != nil {
				name = cls.Name
			}
			return fmt.Sprintf("<%s instance>", name)
		case *ObjBoundMethod:
			return ToDisplayString(heap, ObjectValue(o.Method))
		default:
			return "<object>"
		}
	}
}

func formatArray(heap *gc.Heap, a *ObjArray) string {
	s := "["
	for i, v := range a.Values {
		if i > 0 {
			s += ", "
		}
		s += ToDisplayString(heap, v)
	}
	return s + "]"
}

func formatDict(heap *gc.Heap, d *ObjDict) string {
	s := "{"
	for i, k := range d.Order {
		if i > 0 {
			s += ", "
		}
		v, _ := d.Entries.Get(k)
		s += strconv.Quote(k) + ": " + ToDisplayString(heap, v)
	}
	return s + "}"
}

// Equal implements EQUAL's semantics: numbers/bools/nil compare by
// value, objects by identity except strings, which compare by
// interned identity — itself just Ref equality, since interning
// guarantees one canonical instance per content (§3).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindNumber:
		return a.Num == b.Num
	default:
		return a.Ref == b.Ref
	}
}
