package gc

import "github.com/dolthub/swiss"

// InternSweeper is implemented by embedders that keep a string-intern table
// (§3's "remove white entries from the string-intern table so dead strings
// are not resurrected by future interning"). The gc package has no notion
// of interning, so it calls back into the embedder after marking rather
// than treating the table itself as a root.
type InternSweeper interface {
	SweepInterned(alive func(Ref) bool)
}

// MajorGC runs a mark-compact collection over the old generation, treating
// the nursery and aging space as implicitly live (they are never collected
// by a major cycle, only scanned for outgoing old-gen references) and the
// dirty set as additional roots (§3 point 1-6).
func (h *Heap) MajorGC() {
	h.isCollecting = true
	defer func() { h.isCollecting = false }()
	h.majorCount++

	for _, obj := range h.nursery {
		obj.Header().Marked = false
	}
	for _, obj := range h.agingLive() {
		obj.Header().Marked = false
	}
	for _, obj := range h.oldLive() {
		hdr := obj.Header()
		hdr.Marked = false
		hdr.forwards = false
	}

	var grey []Ref
	mark := func(ref *Ref) {
		if !ref.Valid() {
			return
		}
		obj := h.objectAt(*ref)
		hdr := obj.Header()
		if hdr.Marked {
			return
		}
		hdr.Marked = true
		grey = append(grey, *ref)
	}

	h.roots.VisitRoots(mark)
	for _, obj := range h.nursery {
		obj.VisitRefs(mark)
	}
	for _, obj := range h.agingLive() {
		obj.VisitRefs(mark)
	}
	h.dirty.Iter(func(container Ref, _ struct{}) bool {
		mark(&container)
		h.objectAt(container).VisitRefs(mark)
		return true
	})
	for len(grey) > 0 {
		ref := grey[len(grey)-1]
		grey = grey[:len(grey)-1]
		h.objectAt(ref).VisitRefs(mark)
	}

	if sweeper, ok := h.roots.(InternSweeper); ok {
		sweeper.SweepInterned(func(ref Ref) bool {
			if !ref.Valid() {
				return false
			}
			return h.objectAt(ref).Header().Marked
		})
	}

	stale := h.oldLive()
	newOld := make([]Object, 0, len(stale))
	for _, obj := range stale {
		hdr := obj.Header()
		if !hdr.Marked {
			continue
		}
		idx := uint32(len(newOld))
		newOld = append(newOld, obj)
		hdr.forward = makeRef(Old, idx)
		hdr.forwards = true
	}

	fixup := func(ref *Ref) {
		if ref.region() != Old {
			return
		}
		idx := ref.index()
		if int(idx) >= len(stale) {
			return // already rewritten to its post-compaction location
		}
		if hdr := stale[idx].Header(); hdr.forwards {
			*ref = hdr.forward
		}
	}

	h.roots.VisitRoots(fixup)
	for _, obj := range h.nursery {
		obj.VisitRefs(fixup)
	}
	for _, obj := range h.agingLive() {
		obj.VisitRefs(fixup)
	}
	for _, obj := range newOld {
		obj.VisitRefs(fixup)
	}

	newDirty := swiss.NewMap[Ref, struct{}](16)
	h.dirty.Iter(func(container Ref, _ struct{}) bool {
		fixup(&container)
		newDirty.Put(container, struct{}{})
		return true
	})
	h.dirty = newDirty

	for _, obj := range stale {
		hdr := obj.Header()
		hdr.forwards = false
	}

	h.old[h.oldFrom] = nil
	h.oldFrom = 1 - h.oldFrom
	h.old[h.oldFrom] = newOld

	staleBytes, liveBytes := 0, 0
	for _, obj := range stale {
		staleBytes += int(obj.Header().Size)
	}
	for _, obj := range newOld {
		liveBytes += int(obj.Header().Size)
	}
	h.cfg.OldGenBytes = nextGCThreshold(h.cfg.OldGenBytes, staleBytes, liveBytes)
}

// nextGCThreshold recomputes the old-gen collection threshold as a multiple
// of the surviving size: a high survival rate (little garbage collected)
// grows the threshold more aggressively than a low one (§3 point 6).
func nextGCThreshold(prevThreshold, before, after int) int {
	const floor = 1 << 20
	if before == 0 {
		if prevThreshold < floor {
			return floor
		}
		return prevThreshold
	}
	survivalRate := float64(after) / float64(before)
	factor := 2
	if survivalRate > 0.5 {
		factor = 4
	}
	next := after * factor
	if next < floor {
		next = floor
	}
	return next
}
