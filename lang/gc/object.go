package gc

// Kind is an opaque object-kind tag defined and interpreted by the caller
// (the machine package); the heap only uses it for header bookkeeping.
type Kind uint8

// promotionAge is the survivor age at which an aging-space object is
// promoted to the old generation on its next minor collection (§3).
const promotionAge = 2

// Header is the common prefix of every heap object (§3's "kind, marked,
// dirty, age, size-in-bytes, forwarding-pointer-or-null").
type Header struct {
	Kind     Kind
	Marked   bool
	Dirty    bool
	Age      uint8
	Size     uint32
	forward  Ref
	forwards bool
}

// An Object is anything the heap can store, relocate and scan. Concrete
// object kinds (string, array, closure, ...) live in the machine package;
// the heap only ever touches them through this interface.
type Object interface {
	// Header returns the object's mutable header; the heap reads and writes
	// Marked/Dirty/Age/forwarding fields directly through it.
	Header() *Header

	// VisitRefs calls visit once for every outgoing reference this object
	// holds, allowing the collector to both traverse and rewrite them
	// in place during a fixup pass.
	VisitRefs(visit func(*Ref))
}
