package gc

import "github.com/dolthub/swiss"

// MinorGC runs a copying collection over the nursery and the currently
// live aging semispace (§3 point 1-6). Survivors are evacuated into the
// other aging semispace, aging by one each cycle; survivors whose age
// reaches promotionAge go to the old generation instead. Dirty
// (remembered-set) objects are scanned as extra roots so cross-generation
// pointers are never missed, then the dirty set is cleared. A fixup pass
// (folded into the copying walk itself, since every reference is rewritten
// the moment its target is relocated) leaves no live reference pointing
// into an abandoned semispace.
func (h *Heap) MinorGC() {
	h.isCollecting = true
	defer func() { h.isCollecting = false }()
	h.minorCount++

	newAging := make([]Object, 0, len(h.agingLive()))
	var worklist []Ref

	resolveBuilt := func(ref Ref) Object {
		if ref.region() == Aging {
			return newAging[ref.index()]
		}
		return h.old[h.oldFrom][ref.index()]
	}

	place := func(obj Object) Ref {
		var ref Ref
		if obj.Header().Age >= promotionAge {
			idx := uint32(len(h.old[h.oldFrom]))
			h.old[h.oldFrom] = append(h.old[h.oldFrom], obj)
			ref = makeRef(Old, idx)
		} else {
			idx := uint32(len(newAging))
			newAging = append(newAging, obj)
			ref = makeRef(Aging, idx)
		}
		worklist = append(worklist, ref)
		return ref
	}

	evacuate := func(ref *Ref) {
		var obj Object
		switch ref.region() {
		case Nursery:
			obj = h.nursery[ref.index()]
		case Aging:
			obj = h.agingLive()[ref.index()]
		default:
			return
		}
		hdr := obj.Header()
		if hdr.forwards {
			*ref = hdr.forward
			return
		}
		hdr.Age++
		dest := place(obj)
		hdr.forward = dest
		hdr.forwards = true
		*ref = dest
	}

	h.roots.VisitRoots(evacuate)

	var dirtyContainers []Ref
	h.dirty.Iter(func(container Ref, _ struct{}) bool {
		dirtyContainers = append(dirtyContainers, container)
		return true
	})
	for _, container := range dirtyContainers {
		obj := h.objectAt(container)
		obj.VisitRefs(evacuate)
		obj.Header().Dirty = false
	}
	h.dirty = swiss.NewMap[Ref, struct{}](16)

	for len(worklist) > 0 {
		ref := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		resolveBuilt(ref).VisitRefs(evacuate)
	}

	stale := h.agingFrom
	h.agingFrom = 1 - stale
	h.aging[h.agingFrom] = newAging
	h.aging[stale] = nil
	h.nursery = h.nursery[:0]
}
