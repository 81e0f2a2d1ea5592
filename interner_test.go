package dwarfsynth

import "testing"

func TestInternerGetOrCreateDedups(t *testing.T) {
	tree := NewTree()
	unit := tree.NewUnit()
	in := NewInterner(tree, unit.ID(), ArchX86_64)

	term1 := PointerTerm(PrimitiveTerm("int32_t", nil))
	term2 := PointerTerm(PrimitiveTerm("int32_t", nil))

	id1 := in.GetOrCreate(term1)
	id2 := in.GetOrCreate(term2)

	if id1 != id2 {
		t.Fatalf("expected interning equal terms to return the same entry id, got %d and %d", id1, id2)
	}

	// Exactly one pointer-type entry and one base-type entry should exist.
	var pointerCount, baseCount int
	tree.Walk(unit.ID(), func(e *Entry) {
		switch e.Tag() {
		case TagPointerType:
			pointerCount++
		case TagBaseType:
			baseCount++
		}
	})
	if pointerCount != 1 || baseCount != 1 {
		t.Errorf("expected exactly 1 pointer-type and 1 base-type entry, got %d and %d", pointerCount, baseCount)
	}
}

func TestInternerSeedReconstructsExisting(t *testing.T) {
	tree := NewTree()
	unit := tree.NewUnit()

	base := tree.AddChild(unit.ID(), TagBaseType)
	base.SetAttr(AttrName, "int32_t")
	base.SetAttr(AttrByteSize, 4)

	ptr := tree.AddChild(unit.ID(), TagPointerType)
	ptr.SetAttr(AttrType, base.ID())

	in := NewInterner(tree, unit.ID(), ArchX86_64)
	in.Seed()

	// Re-interning an equal term now must reuse the seeded pointer entry,
	// not allocate a new one.
	term := PointerTerm(PrimitiveTerm("int32_t", nil))
	id := in.GetOrCreate(term)
	if id != ptr.ID() {
		t.Errorf("expected GetOrCreate to reuse seeded pointer entry %d, got %d", ptr.ID(), id)
	}

	var pointerCount int
	tree.Walk(unit.ID(), func(e *Entry) {
		if e.Tag() == TagPointerType {
			pointerCount++
		}
	})
	if pointerCount != 1 {
		t.Errorf("expected no duplicate pointer-type entry after seeding, got %d", pointerCount)
	}
}
