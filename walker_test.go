package dwarfsynth

import "testing"

func TestWalkAndApplyMatchesExistingSubprogram(t *testing.T) {
	tree := NewTree()
	unit := tree.NewUnit()
	interner := NewInterner(tree, unit.ID(), ArchX86_64)

	fn := tree.AddChild(unit.ID(), TagSubprogram)
	fn.SetAttr(AttrLowPC, uint64(0x401000))

	hints := NewHintSet()
	hints.Functions[0x401000] = &FunctionRecord{
		Address: 0x401000,
		Name:    Present("matched"),
	}

	if err := WalkAndApply(tree, interner, unit.ID(), hints, false, false, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fn.Name() != "matched" {
		t.Errorf("expected existing subprogram to be updated in place, got name %q", fn.Name())
	}
	if len(hints.Functions) != 0 {
		t.Errorf("expected the matched hint to be consumed, %d remain", len(hints.Functions))
	}
}

func TestWalkAndApplyCreatesLeftoverEntries(t *testing.T) {
	tree := NewTree()
	unit := tree.NewUnit()
	interner := NewInterner(tree, unit.ID(), ArchX86_64)

	hints := NewHintSet()
	hints.Functions[0x402000] = &FunctionRecord{Address: 0x402000, Name: Present("new_fn")}
	hints.Variables[0x600000] = &VariableRecord{Address: 0x600000, Name: Present("new_var"), Type: PrimitiveTerm("int32_t", nil)}

	if err := WalkAndApply(tree, interner, unit.ID(), hints, false, false, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawFn, sawVar bool
	tree.Walk(unit.ID(), func(e *Entry) {
		switch e.Tag() {
		case TagSubprogram:
			if e.Name() == "new_fn" {
				sawFn = true
			}
		case TagVariable:
			if e.Name() == "new_var" {
				sawVar = true
			}
		}
	})
	if !sawFn {
		t.Error("expected a new subprogram entry to be created for the unconsumed function hint")
	}
	if !sawVar {
		t.Error("expected a new variable entry to be created for the unconsumed variable hint")
	}
}

func TestWalkAndApplyOmitFlags(t *testing.T) {
	tree := NewTree()
	unit := tree.NewUnit()
	interner := NewInterner(tree, unit.ID(), ArchX86_64)

	hints := NewHintSet()
	hints.Functions[0x403000] = &FunctionRecord{Address: 0x403000, Name: Present("skipped_fn")}
	hints.Variables[0x601000] = &VariableRecord{Address: 0x601000, Name: Present("skipped_var"), Type: PrimitiveTerm("int32_t", nil)}

	if err := WalkAndApply(tree, interner, unit.ID(), hints, true, true, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	tree.Walk(unit.ID(), func(e *Entry) {
		if e.Tag() == TagSubprogram || e.Tag() == TagVariable {
			count++
		}
	})
	if count != 0 {
		t.Errorf("expected omit flags to suppress subprogram and variable creation, got %d entries", count)
	}
}

func TestWalkAndApplyVariableAddressMatch(t *testing.T) {
	tree := NewTree()
	unit := tree.NewUnit()
	interner := NewInterner(tree, unit.ID(), ArchX86_64)

	v := tree.AddChild(unit.ID(), TagVariable)
	v.SetAttr(AttrLocation, AddressLocation(0x600000))

	hints := NewHintSet()
	hints.Variables[0x600000] = &VariableRecord{Address: 0x600000, Name: Present("g"), Type: PrimitiveTerm("int32_t", nil)}

	if err := WalkAndApply(tree, interner, unit.ID(), hints, false, false, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Name() != "g" {
		t.Errorf("expected existing variable to be updated by address match, got name %q", v.Name())
	}
	if len(hints.Variables) != 0 {
		t.Errorf("expected the matched variable hint to be consumed, %d remain", len(hints.Variables))
	}
}
