package dwarfsynth

// ExistingSymbol is a snapshot of one binary-level symbol taken once before
// reconciliation begins (SPEC_FULL.md §4.8: "classify against the binary's
// existing symbols (snapshot taken once)").
type ExistingSymbol struct {
	Name    string
	Address uint64
	Kind    SymbolKind
}

// HintSymbol is one named, addressed record contributed by a hint source —
// a function or variable with both a name and an address.
type HintSymbol struct {
	Name    string
	Address uint64
	Kind    SymbolKind
}

// SymbolOpKind discriminates a SymbolOp's shape.
type SymbolOpKind uint8

const (
	SymbolOpAdd SymbolOpKind = iota
	SymbolOpRename
	SymbolOpReplace
)

// SymbolOp is one operation in the symbol delta: add a new symbol, rename
// an existing one in place, or strip-then-add to relocate a name to a new
// address (SPEC_FULL.md §3 "Symbol delta").
type SymbolOp struct {
	Kind     SymbolOpKind
	OldName  string
	NewName  string
	Address  uint64
	SymKind  SymbolKind
}

// ReconcileSymbols builds the ordered symbol delta for hint symbols against
// a snapshot of the binary's existing symbols, per the classification in
// SPEC_FULL.md §4.8:
//   - neither name nor address exists → add;
//   - address exists under a different name → rename old→new;
//   - name exists at a different address → strip name, then add(name, address);
//   - both match → no-op.
func ReconcileSymbols(existing []ExistingSymbol, hints []HintSymbol) []SymbolOp {
	byName := make(map[string]ExistingSymbol, len(existing))
	byAddr := make(map[uint64]ExistingSymbol, len(existing))
	for _, s := range existing {
		byName[s.Name] = s
		byAddr[s.Address] = s
	}

	var ops []SymbolOp
	for _, h := range hints {
		atAddr, addrExists := byAddr[h.Address]
		atName, nameExists := byName[h.Name]

		switch {
		case addrExists && atAddr.Name == h.Name:
			// both match: no-op, whether or not nameExists independently disagrees.

		case addrExists && atAddr.Name != h.Name:
			ops = append(ops, SymbolOp{
				Kind:    SymbolOpRename,
				OldName: atAddr.Name,
				NewName: h.Name,
				Address: h.Address,
				SymKind: h.Kind,
			})

		case nameExists && atName.Address != h.Address:
			ops = append(ops, SymbolOp{Kind: SymbolOpReplace, OldName: h.Name, NewName: h.Name, Address: h.Address, SymKind: h.Kind})

		default:
			ops = append(ops, SymbolOp{Kind: SymbolOpAdd, NewName: h.Name, Address: h.Address, SymKind: h.Kind})
		}
	}
	return ops
}
