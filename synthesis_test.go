package dwarfsynth

import "testing"

func TestInitializeFunctionFromHint(t *testing.T) {
	tree := NewTree()
	unit := tree.NewUnit()
	in := NewInterner(tree, unit.ID(), ArchX86_64)

	rec := &FunctionRecord{
		Address:               0x400000,
		Name:                  Present("main"),
		ReturnAddressLocation: Unavailable[Location](),
		NoReturn:              Present(false),
		ReturnTypes:           Present([]*TypeTerm{PrimitiveTerm("int32_t", nil)}),
		Parameters: Present([]Parameter{
			{Name: Present("argc"), Type: Present(PrimitiveTerm("int32_t", nil)), Location: Unavailable[Location]()},
		}),
		DeclFile: Unavailable[string](),
		DeclLine: Unavailable[uint32](),
		Locals:   Unavailable[[]LocalVariable](),
	}

	e, err := InitializeFunctionFromHint(tree, in, unit.ID(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Name() != "main" {
		t.Errorf("expected name 'main', got %q", e.Name())
	}
	lowPC, ok := e.LowPC()
	if !ok || lowPC != 0x400000 {
		t.Errorf("expected low-pc 0x400000, got %#x (ok=%v)", lowPC, ok)
	}
	if len(e.Children()) != 1 {
		t.Fatalf("expected 1 formal parameter child, got %d", len(e.Children()))
	}
}

func TestUpdateFunctionFromHintMissingLowPC(t *testing.T) {
	tree := NewTree()
	unit := tree.NewUnit()
	in := NewInterner(tree, unit.ID(), ArchX86_64)

	e := tree.AddChild(unit.ID(), TagSubprogram)
	err := UpdateFunctionFromHint(tree, in, e, &FunctionRecord{Address: 0x1000, Name: Present("f")})
	if err == nil {
		t.Fatal("expected error updating a subprogram entry with no low-pc")
	}
}

func TestUpdateFunctionFromHintFallbackName(t *testing.T) {
	tree := NewTree()
	unit := tree.NewUnit()
	in := NewInterner(tree, unit.ID(), ArchX86_64)

	e := tree.AddChild(unit.ID(), TagSubprogram)
	e.SetAttr(AttrLowPC, uint64(0x401000))

	rec := &FunctionRecord{Address: 0x401000, Name: Absent[string]()}
	if err := UpdateFunctionFromHint(tree, in, e, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Name() != "FUN_00401000" {
		t.Errorf("expected synthesized fallback name, got %q", e.Name())
	}
}

func TestInitializeVariableFromHint(t *testing.T) {
	tree := NewTree()
	unit := tree.NewUnit()
	in := NewInterner(tree, unit.ID(), ArchX86_64)

	rec := &VariableRecord{Address: 0x600000, Name: Present("g_counter"), Type: PrimitiveTerm("int32_t", nil)}
	e := InitializeVariableFromHint(tree, in, unit.ID(), rec)

	if e.Name() != "g_counter" {
		t.Errorf("expected name 'g_counter', got %q", e.Name())
	}
	locRaw, ok := e.Attr(AttrLocation)
	if !ok {
		t.Fatal("expected a location attribute")
	}
	loc := locRaw.(Location)
	if loc.Kind != LocAddress || loc.Addr != 0x600000 {
		t.Errorf("expected address location 0x600000, got %+v", loc)
	}
}
