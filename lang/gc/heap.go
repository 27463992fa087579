package gc

import "github.com/dolthub/swiss"

// RootSource is implemented by the embedder (the machine package's thread)
// to let the collector enumerate and, when an object relocates, rewrite
// every outstanding reference to it (§3's "fixup must visit... stack,
// frames, open-upvalue list, per-level iteration queues, globals,
// constGlobals, string-intern table, well-known roots").
type RootSource interface {
	VisitRoots(visit func(*Ref))
}

// Heap is lumen's three-region generational heap: a bump-allocated nursery,
// copying aging semispaces, and a mark-compacted old generation (§3, §5).
//
// Objects are identified by Ref, a handle encoding a region and an index
// into that region's currently active slice. A Ref is not a raw pointer:
// when an object is promoted or compacted its Ref changes, and every
// outstanding copy of that Ref — on the stack, in a closure's upvalues, in
// the dirty set — is located and rewritten by a fixup pass before user code
// resumes, per the header's forwarding pointer (§3, §5 invariant "no live
// reference points into an abandoned semispace").
type Heap struct {
	cfg Config

	nursery    []Object
	nurseryCap int

	aging     [2][]Object
	agingFrom int // index into aging[] of the currently live semispace

	old     [2][]Object
	oldFrom int

	// dirty is the remembered set: objects in aging/old that hold a pointer
	// into a younger generation (§3 point 4).
	dirty *swiss.Map[Ref, struct{}]

	roots        RootSource
	isCollecting bool

	minorCount int
	majorCount int
}

// NewHeap creates an empty heap using cfg's thresholds. roots is consulted
// on every collection; it is typically the machine.Thread that owns this
// heap, wired up after both are constructed (see machine.NewThread).
func NewHeap(cfg Config, roots RootSource) *Heap {
	return &Heap{
		cfg:   cfg,
		roots: roots,
		dirty: swiss.NewMap[Ref, struct{}](16),
	}
}

// SetRoots binds the root source once the embedder has finished
// constructing itself (breaks the construction-order cycle between a
// thread and the heap it allocates into).
func (h *Heap) SetRoots(roots RootSource) { h.roots = roots }

func (h *Heap) agingLive() []Object { return h.aging[h.agingFrom] }
func (h *Heap) oldLive() []Object   { return h.old[h.oldFrom] }

func (h *Heap) objectAt(ref Ref) Object {
	switch ref.region() {
	case Nursery:
		return h.nursery[ref.index()]
	case Aging:
		return h.agingLive()[ref.index()]
	default:
		return h.oldLive()[ref.index()]
	}
}

// Deref resolves ref to its live Object. The caller must not hold the
// result across another Alloc call: a collection may run and relocate it.
func (h *Heap) Deref(ref Ref) Object {
	if !ref.Valid() {
		return nil
	}
	return h.objectAt(ref)
}

// Alloc places obj in the nursery, running a minor (and, if the old
// generation is over threshold, major) collection first if the nursery is
// full (§3's allocate()). It returns the Ref the object is now reachable
// through.
func (h *Heap) Alloc(obj Object) Ref {
	if h.isCollecting {
		// Growth during the collector's own bookkeeping must never recurse
		// into another collection: append directly to the nursery's current
		// slice. A minor collection empties the nursery when it finishes, so
		// an object appended while one is running does not survive it.
		idx := uint32(len(h.nursery))
		h.nursery = append(h.nursery, obj)
		return makeRef(Nursery, idx)
	}

	if h.nurseryBytes()+int(obj.Header().Size) > h.cfg.NurseryBytes {
		if !h.cfg.DisableMajorGC && h.oldBytes() > h.cfg.OldGenBytes {
			h.MajorGC()
		}
		h.MinorGC()
	}

	idx := uint32(len(h.nursery))
	h.nursery = append(h.nursery, obj)
	return makeRef(Nursery, idx)
}

func (h *Heap) nurseryBytes() int {
	total := 0
	for _, o := range h.nursery {
		total += int(o.Header().Size)
	}
	return total
}

func (h *Heap) oldBytes() int {
	total := 0
	for _, o := range h.oldLive() {
		total += int(o.Header().Size)
	}
	return total
}

// WriteBarrier must be called whenever ref is stored into a field of
// container, both already-heap-resident values: if container lives in
// aging or old-gen and ref points into a younger generation, container is
// marked dirty and remembered so the next minor collection treats it as a
// root (§3 point 4).
func (h *Heap) WriteBarrier(container, ref Ref) {
	if !container.Valid() || !ref.Valid() {
		return
	}
	if container.region() == Nursery {
		return
	}
	if ref.region() >= container.region() {
		return
	}
	hdr := h.objectAt(container).Header()
	if !hdr.Dirty {
		hdr.Dirty = true
		h.dirty.Put(container, struct{}{})
	}
}
