package dwarfsynth

import "github.com/dwarfsynth/dwarfsynth/log"

// locationAddress extracts the address a Location attribute encodes, for
// matching a pre-existing variable entry against a hint's address. Only a
// LocAddress location carries a plain address; register/memory locations
// are not address-comparable and never match a hint's address-keyed
// lookup.
func locationAddress(loc Location) (uint64, bool) {
	if loc.Kind != LocAddress {
		return 0, false
	}
	return loc.Addr, true
}

// WalkAndApply implements the Tree Walker / Dispatcher (C7, SPEC_FULL.md
// §4.7) for one hint source against one compilation unit: it materializes
// every type term the hint set references, breadth-first walks the unit's
// pre-existing entries applying matching hints, and finally creates entries
// for any hints left unconsumed.
func WalkAndApply(tree *Tree, interner *Interner, unit EntryID, hints *HintSet, omitFunctions, omitVariables bool, logger *log.Helper) error {
	for _, term := range hints.AllTypeTerms() {
		interner.GetOrCreate(term)
	}

	var walkErr error
	tree.Walk(unit, func(e *Entry) {
		if walkErr != nil {
			return
		}
		switch e.Tag() {
		case TagSubprogram:
			if omitFunctions {
				return
			}
			lowPC, ok := e.LowPC()
			if !ok {
				return
			}
			rec, ok := hints.Functions[lowPC]
			if !ok {
				return
			}
			if err := UpdateFunctionFromHint(tree, interner, e, rec); err != nil {
				walkErr = err
				return
			}
			delete(hints.Functions, lowPC)

		case TagVariable:
			if omitVariables {
				return
			}
			locRaw, ok := e.Attr(AttrLocation)
			if !ok {
				return
			}
			loc, ok := locRaw.(Location)
			if !ok {
				return
			}
			addr, ok := locationAddress(loc)
			if !ok {
				return
			}
			rec, ok := hints.Variables[addr]
			if !ok {
				return
			}
			UpdateVariableFromHint(tree, interner, e, rec)
			delete(hints.Variables, addr)
		}
	})
	if walkErr != nil {
		return walkErr
	}

	var newFunctions, newVariables int
	if !omitFunctions {
		for addr, rec := range hints.Functions {
			if _, err := InitializeFunctionFromHint(tree, interner, unit, rec); err != nil {
				return err
			}
			delete(hints.Functions, addr)
			newFunctions++
		}
	}
	if !omitVariables {
		for addr, rec := range hints.Variables {
			InitializeVariableFromHint(tree, interner, unit, rec)
			delete(hints.Variables, addr)
			newVariables++
		}
	}

	if logger != nil {
		logger.Debugf("hint source consumed: %d new functions, %d new variables created",
			newFunctions, newVariables)
	}
	return nil
}
