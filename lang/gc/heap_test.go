package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testObj is a minimal gc.Object used to exercise the heap without any
// dependency on the machine package's value model.
type testObj struct {
	hdr  Header
	name string
	refs []Ref
}

func newTestObj(name string, size uint32, refs ...Ref) *testObj {
	return &testObj{hdr: Header{Size: size}, name: name, refs: refs}
}

func (o *testObj) Header() *Header { return &o.hdr }
func (o *testObj) VisitRefs(visit func(*Ref)) {
	for i := range o.refs {
		visit(&o.refs[i])
	}
}

// fakeRoots is a RootSource backed by a plain slice of root refs, letting
// tests simulate a VM's stack/globals without building one.
type fakeRoots struct {
	roots []Ref
}

func (r *fakeRoots) VisitRoots(visit func(*Ref)) {
	for i := range r.roots {
		visit(&r.roots[i])
	}
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.NurseryBytes = 64
	cfg.OldGenBytes = 1 << 20 // keep major GC out of the way for minor-only tests
	return cfg
}

func TestAllocStaysInNurseryUnderThreshold(t *testing.T) {
	roots := &fakeRoots{}
	h := NewHeap(smallConfig(), roots)

	ref := h.Alloc(newTestObj("a", 8))
	require.Equal(t, Nursery, ref.region())
	require.Equal(t, "a", h.Deref(ref).(*testObj).name)
}

func TestMinorGCPromotesRootedSurvivorsAndDropsGarbage(t *testing.T) {
	roots := &fakeRoots{}
	h := NewHeap(smallConfig(), roots)

	survivor := h.Alloc(newTestObj("survivor", 8))
	roots.roots = append(roots.roots, survivor)
	_ = h.Alloc(newTestObj("garbage", 8)) // unrooted, must not survive

	h.MinorGC()

	require.Equal(t, 0, len(h.nursery))
	require.Equal(t, Aging, roots.roots[0].region())
	require.Equal(t, "survivor", h.Deref(roots.roots[0]).(*testObj).name)
}

func TestMinorGCFollowsReferencesTransitively(t *testing.T) {
	roots := &fakeRoots{}
	h := NewHeap(smallConfig(), roots)

	leaf := h.Alloc(newTestObj("leaf", 8))
	parent := h.Alloc(newTestObj("parent", 8, leaf))
	roots.roots = append(roots.roots, parent)

	h.MinorGC()

	parentObj := h.Deref(roots.roots[0]).(*testObj)
	require.Equal(t, Aging, parentObj.refs[0].region())
	require.Equal(t, "leaf", h.Deref(parentObj.refs[0]).(*testObj).name)
}

func TestRepeatedMinorGCPromotesToOldGen(t *testing.T) {
	roots := &fakeRoots{}
	h := NewHeap(smallConfig(), roots)

	ref := h.Alloc(newTestObj("tenured", 8))
	roots.roots = append(roots.roots, ref)

	h.MinorGC() // age 1, stays in aging
	require.Equal(t, Aging, roots.roots[0].region())

	h.MinorGC() // age 2, promoted to old-gen
	require.Equal(t, Old, roots.roots[0].region())
	require.Equal(t, "tenured", h.Deref(roots.roots[0]).(*testObj).name)
}

func TestWriteBarrierMarksCrossGenerationWrites(t *testing.T) {
	roots := &fakeRoots{}
	h := NewHeap(smallConfig(), roots)

	old := h.Alloc(newTestObj("container", 8))
	roots.roots = append(roots.roots, old)
	h.MinorGC()
	h.MinorGC() // container now in old-gen
	old = roots.roots[0]

	young := h.Alloc(newTestObj("payload", 8)) // unrooted except via write barrier

	container := h.Deref(old).(*testObj)
	container.refs = append(container.refs, young)
	h.WriteBarrier(old, young)

	_, dirty := h.dirty.Get(old)
	require.True(t, dirty)

	h.MinorGC()

	require.Equal(t, Aging, container.refs[0].region())
	require.Equal(t, "payload", h.Deref(container.refs[0]).(*testObj).name)
}

func TestMajorGCCompactsOldGenAndDropsUnreachable(t *testing.T) {
	roots := &fakeRoots{}
	h := NewHeap(smallConfig(), roots)

	kept := h.Alloc(newTestObj("kept", 8))
	dead := h.Alloc(newTestObj("dead", 8))
	roots.roots = []Ref{kept, dead}

	h.MinorGC()
	h.MinorGC() // both promoted to old-gen
	require.Equal(t, 2, len(h.oldLive()))

	roots.roots = roots.roots[:1] // dead is no longer reachable

	h.MajorGC()

	require.Equal(t, 1, len(h.oldLive()))
	require.Equal(t, Old, roots.roots[0].region())
	require.Equal(t, "kept", h.Deref(roots.roots[0]).(*testObj).name)
}

func TestAllocTriggersMinorGCWhenNurseryFull(t *testing.T) {
	roots := &fakeRoots{}
	h := NewHeap(smallConfig(), roots)

	for i := 0; i < 16; i++ {
		ref := h.Alloc(newTestObj("x", 8))
		roots.roots = []Ref{ref}
	}

	require.Less(t, h.nurseryBytes(), h.cfg.NurseryBytes+8)
}
