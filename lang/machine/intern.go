package machine

import "github.com/mna/lumen/lang/gc"

// internTable is the process-global string table (§3: "all strings are
// interned... construction returns the canonical instance if content
// matches an existing one"). It is keyed by Go string content, which
// Go already compares and hashes efficiently, rather than reimplementing
// the FNV table the original describes — ObjString still carries a
// precomputed hash for callers (e.g. a future dict keyed by object
// identity) that want it without touching Data.
type internTable struct {
	byContent map[string]gc.Ref
}

func newInternTable() *internTable {
	return &internTable{byContent: map[string]gc.Ref{}}
}

// intern returns the canonical ObjString Ref for s, allocating one on
// the heap on first sight.
func (t *Thread) intern(s string) gc.Ref {
	if ref, ok := t.interned.byContent[s]; ok {
		if obj := t.Heap.Deref(ref); obj != nil {
			return ref
		}
		delete(t.interned.byContent, s)
	}
	obj := &ObjString{Data: s, Hash: fnvHash(s)}
	ref := t.allocObject(obj, KindString, uint32(len(s))+16)
	t.interned.byContent[s] = ref
	return ref
}

// InternedString allocates (or reuses) an interned string and returns it
// as a Value, for use by the VM and by native functions.
func (t *Thread) InternedString(s string) Value {
	return ObjectValue(t.intern(s))
}

// SweepInterned implements gc.InternSweeper: after a major GC's mark
// phase, drop every interned entry whose string is no longer reachable
// from any root so it is not resurrected by future interning (§4.3
// point 4).
func (t *Thread) SweepInterned(alive func(gc.Ref) bool) {
	for k, ref := range t.interned.byContent {
		if !alive(ref) {
			delete(t.interned.byContent, k)
		}
	}
}
