package machine

import (
	"io"
	"os"

	"github.com/mna/lumen/lang/gc"
)

const maxFrames = 256
const maxForEachNesting = 64

// Frame is one call's activation record (§3): Slots is the index into
// Thread.Stack where this call's local slot 0 begins; IP is the next
// instruction offset into Closure's function chunk.
type Frame struct {
	Closure gc.Ref // ObjClosure
	IP      int
	Slots   int
}

// Thread is a single lumen call stack plus the VM-owned state the
// collector must treat as roots: the value stack, frames, open-upvalue
// list, globals, and per-nesting-level for-each state (§3's Call frame
// and Iteration queue, §4.2's root set).
type Thread struct {
	Heap *gc.Heap

	Stdout io.Writer

	// TraceOut, when non-nil, receives a disassembled dump of every
	// instruction as it is dispatched (the `-trace` driver flag).
	TraceOut io.Writer

	Stack  []Value
	Frames []Frame

	// openUpvalues holds every still-open ObjUpvalue ref, sorted by
	// strictly decreasing Location so closing everything above a
	// threshold is a prefix scan (§3, §8).
	openUpvalues []gc.Ref

	Globals      map[string]Value
	GlobalConst  map[string]bool

	queued [maxForEachNesting]Value
	cursor [maxForEachNesting]int
	nestingLevel int // -1 when no for-each is active

	interned *internTable

	// MaxFrames bounds call-stack depth (§4.2); internal/config.VM
	// overrides it from the environment, defaulting to maxFrames.
	MaxFrames int

	// lastError is not set by Run; a runtime error is returned from Run
	// directly.
	lastError error
}

// NewThread builds an empty thread over a fresh heap configured by cfg.
func NewThread(cfg gc.Config) *Thread {
	t := &Thread{
		Stdout:       os.Stdout,
		Globals:      map[string]Value{},
		GlobalConst:  map[string]bool{},
		interned:     newInternTable(),
		nestingLevel: -1,
		MaxFrames:    maxFrames,
	}
	t.Heap = gc.NewHeap(cfg, t)
	return t
}

// VisitRoots implements gc.RootSource (§4.2's root set: "stack, frames,
// open-upvalue list, globals, constGlobals, ... per-level iteration
// queues").
func (t *Thread) VisitRoots(visit func(*gc.Ref)) {
	for i := range t.Stack {
		visitValue(&t.Stack[i], visit)
	}
	for i := range t.Frames {
		visit(&t.Frames[i].Closure)
	}
	for i := range t.openUpvalues {
		visit(&t.openUpvalues[i])
	}
	for k, v := range t.Globals {
		visitValue(&v, visit)
		t.Globals[k] = v
	}
	for i := range t.queued {
		visitValue(&t.queued[i], visit)
	}
}

// allocObject stamps a fresh header (kind, size) and hands obj to the
// heap, returning the Ref it is now reachable through.
func (t *Thread) allocObject(obj gc.Object, kind gc.Kind, size uint32) gc.Ref {
	*obj.Header() = gc.Header{Kind: kind, Size: size}
	return t.Heap.Alloc(obj)
}

func (t *Thread) push(v Value) { t.Stack = append(t.Stack, v) }

func (t *Thread) pop() Value {
	v := t.Stack[len(t.Stack)-1]
	t.Stack = t.Stack[:len(t.Stack)-1]
	return v
}

func (t *Thread) peek(distance int) Value {
	return t.Stack[len(t.Stack)-1-distance]
}

func (t *Thread) setLocal(frame *Frame, slot int, v Value) {
	t.Stack[frame.Slots+slot] = v
}

func (t *Thread) getLocal(frame *Frame, slot int) Value {
	return t.Stack[frame.Slots+slot]
}

// captureUpvalue finds or creates the open ObjUpvalue pointing at the
// given stack slot, inserting it into openUpvalues so the
// descending-address invariant holds (§3, §4.2).
func (t *Thread) captureUpvalue(slot int) gc.Ref {
	i := 0
	for ; i < len(t.openUpvalues); i++ {
		existing := t.Heap.Deref(t.openUpvalues[i]).(*ObjUpvalue)
		if existing.Location == slot {
			return t.openUpvalues[i]
		}
		if existing.Location < slot {
			break
		}
	}
	ref := t.allocObject(&ObjUpvalue{Location: slot, Open: true}, KindUpvalueObj, 24)
	t.openUpvalues = append(t.openUpvalues, gc.NilRef)
	copy(t.openUpvalues[i+1:], t.openUpvalues[i:])
	t.openUpvalues[i] = ref
	return ref
}

// closeUpvalues closes every open upvalue at or above fromSlot, copying
// the stack value into the upvalue's own cell (§4.2).
func (t *Thread) closeUpvalues(fromSlot int) {
	i := 0
	for i < len(t.openUpvalues) {
		up := t.Heap.Deref(t.openUpvalues[i]).(*ObjUpvalue)
		if up.Location < fromSlot {
			break
		}
		v := t.Stack[up.Location]
		up.Closed = v
		up.Open = false
		if v.Kind == KindObject {
			t.Heap.WriteBarrier(t.openUpvalues[i], v.Ref)
		}
		i++
	}
	t.openUpvalues = t.openUpvalues[i:]
}
