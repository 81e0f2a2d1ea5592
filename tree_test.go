package dwarfsynth

import "testing"

func TestTreeAddChildAndWalk(t *testing.T) {
	tree := NewTree()
	unit := tree.NewUnit()

	fn := tree.AddChild(unit.ID(), TagSubprogram)
	fn.SetAttr(AttrLowPC, uint64(0x1000))
	param := tree.AddChild(fn.ID(), TagFormalParameter)
	param.SetAttr(AttrName, "argc")

	var visited []Tag
	tree.Walk(unit.ID(), func(e *Entry) {
		visited = append(visited, e.Tag())
	})

	if len(visited) != 2 {
		t.Fatalf("expected 2 visited entries, got %d: %v", len(visited), visited)
	}
	if visited[0] != TagSubprogram || visited[1] != TagFormalParameter {
		t.Errorf("expected breadth-first order [subprogram, formal_parameter], got %v", visited)
	}
}

func TestTreeWalkSnapshotsGenerations(t *testing.T) {
	tree := NewTree()
	unit := tree.NewUnit()
	tree.AddChild(unit.ID(), TagSubprogram)

	count := 0
	tree.Walk(unit.ID(), func(e *Entry) {
		count++
		// Entries created here must not be visited within this same walk.
		tree.AddChild(e.ID(), TagVariable)
	})

	if count != 1 {
		t.Fatalf("expected only the pre-existing entry to be visited, got %d visits", count)
	}
}

func TestReplaceFormalParametersKeepsOtherChildren(t *testing.T) {
	tree := NewTree()
	unit := tree.NewUnit()
	arch := ArchX86_64
	interner := NewInterner(tree, unit.ID(), arch)

	fn := tree.AddChild(unit.ID(), TagSubprogram)
	fn.SetAttr(AttrLowPC, uint64(0x2000))
	local := tree.AddChild(fn.ID(), TagVariable)
	local.SetAttr(AttrName, "local0")
	tree.AddChild(fn.ID(), TagFormalParameter)

	replaceFormalParameters(tree, interner, fn, []Parameter{
		{Name: Present("a"), Type: Present(PrimitiveTerm("int32_t", nil)), Location: Unavailable[Location]()},
	})

	children := fn.Children()
	if len(children) != 2 {
		t.Fatalf("expected 2 children (kept local + new param), got %d", len(children))
	}
	var sawLocal, sawParam bool
	for _, id := range children {
		e := tree.Entry(id)
		switch e.Tag() {
		case TagVariable:
			sawLocal = true
		case TagFormalParameter:
			sawParam = true
			if e.Name() != "a" {
				t.Errorf("expected new parameter name 'a', got %q", e.Name())
			}
		}
	}
	if !sawLocal || !sawParam {
		t.Errorf("expected both a kept local and a new parameter, got sawLocal=%v sawParam=%v", sawLocal, sawParam)
	}
}
