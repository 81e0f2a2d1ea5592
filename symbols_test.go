package dwarfsynth

import "testing"

func TestReconcileSymbolsClassification(t *testing.T) {
	existing := []ExistingSymbol{
		{Name: "main", Address: 0x401000, Kind: SymbolFunction},
		{Name: "old_name", Address: 0x402000, Kind: SymbolFunction},
		{Name: "moved", Address: 0x403000, Kind: SymbolFunction},
	}

	hints := []HintSymbol{
		{Name: "main", Address: 0x401000, Kind: SymbolFunction},       // both match: no-op
		{Name: "new_name", Address: 0x402000, Kind: SymbolFunction},   // address exists under different name: rename
		{Name: "moved", Address: 0x404000, Kind: SymbolFunction},      // name exists at different address: replace
		{Name: "brand_new", Address: 0x405000, Kind: SymbolFunction},  // neither: add
	}

	ops := ReconcileSymbols(existing, hints)

	var gotRename, gotReplace, gotAdd bool
	for _, op := range ops {
		switch op.Kind {
		case SymbolOpRename:
			gotRename = true
			if op.OldName != "old_name" || op.NewName != "new_name" || op.Address != 0x402000 {
				t.Errorf("unexpected rename op: %+v", op)
			}
		case SymbolOpReplace:
			gotReplace = true
			if op.NewName != "moved" || op.Address != 0x404000 {
				t.Errorf("unexpected replace op: %+v", op)
			}
		case SymbolOpAdd:
			gotAdd = true
			if op.NewName != "brand_new" || op.Address != 0x405000 {
				t.Errorf("unexpected add op: %+v", op)
			}
		}
	}
	if !gotRename || !gotReplace || !gotAdd {
		t.Errorf("expected rename, replace, and add ops; got %+v", ops)
	}

	for _, op := range ops {
		if op.NewName == "main" {
			t.Errorf("expected no op for a fully-matching symbol, got %+v", op)
		}
	}
	if len(ops) != 3 {
		t.Errorf("expected exactly 3 ops (no-op excluded), got %d: %+v", len(ops), ops)
	}
}

func TestReconcileSymbolsEmpty(t *testing.T) {
	if ops := ReconcileSymbols(nil, nil); len(ops) != 0 {
		t.Errorf("expected no ops for empty input, got %+v", ops)
	}
}
