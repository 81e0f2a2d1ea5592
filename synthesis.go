package dwarfsynth

import "fmt"

// InitializeFunctionFromHint allocates a new subprogram child of unit for
// rec and applies UpdateFunctionFromHint to fill in its attributes
// (SPEC_FULL.md §4.6).
func InitializeFunctionFromHint(tree *Tree, interner *Interner, unit EntryID, rec *FunctionRecord) (*Entry, error) {
	e := tree.AddChild(unit, TagSubprogram)
	e.SetAttr(AttrLowPC, rec.Address)
	if err := UpdateFunctionFromHint(tree, interner, e, rec); err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateFunctionFromHint applies one function hint record onto an existing
// subprogram entry, per the field-by-field semantics of SPEC_FULL.md §4.6.
func UpdateFunctionFromHint(tree *Tree, interner *Interner, e *Entry, rec *FunctionRecord) error {
	lowPC, ok := e.LowPC()
	if !ok {
		return fmt.Errorf("%w: subprogram entry missing low-pc", ErrMalformedExistingDebugInfo)
	}

	if name, ok := rec.Name.Get(); ok {
		e.SetAttr(AttrName, name)
	} else if e.Name() == "" {
		e.SetAttr(AttrName, fmt.Sprintf("FUN_%08x", lowPC))
	}

	if loc, ok := rec.ReturnAddressLocation.Get(); ok {
		e.SetAttr(AttrLocation, loc)
	}

	if noReturn, ok := rec.NoReturn.Get(); ok {
		e.SetAttr(AttrNoReturn, noReturn)
	}

	if rets, ok := rec.ReturnTypes.Get(); ok && len(rets) > 0 {
		e.SetAttr(AttrType, interner.GetOrCreate(rets[0]))
	}

	if params, ok := rec.Parameters.Get(); ok {
		replaceFormalParameters(tree, interner, e, params)
		e.SetAttr(AttrPrototyped, true)
	}

	if file, ok := rec.DeclFile.Get(); ok {
		e.SetAttr(AttrDeclFile, file)
	}
	if line, ok := rec.DeclLine.Get(); ok {
		e.SetAttr(AttrDeclLine, line)
	}

	if locals, ok := rec.Locals.Get(); ok {
		for _, local := range locals {
			child := tree.AddChild(e.ID(), TagVariable)
			if t, ok := local.Type.Get(); ok {
				child.SetAttr(AttrType, interner.GetOrCreate(t))
			}
			if n, ok := local.Name.Get(); ok {
				child.SetAttr(AttrName, n)
			}
		}
	}

	return nil
}

// replaceFormalParameters deletes every existing formal-parameter child of
// e (leaving any other children, such as local variables, untouched) and
// appends one new formal-parameter child per entry in params, in order —
// "parameter replacement is total per invocation" (SPEC_FULL.md §4.6).
func replaceFormalParameters(tree *Tree, interner *Interner, e *Entry, params []Parameter) {
	var kept []EntryID
	for _, id := range e.Children() {
		child := tree.Entry(id)
		if child != nil && child.Tag() != TagFormalParameter {
			kept = append(kept, id)
		}
	}
	tree.SetChildren(e.ID(), kept)

	for _, p := range params {
		child := tree.AddChild(e.ID(), TagFormalParameter)
		if loc, ok := p.Location.Get(); ok {
			child.SetAttr(AttrLocation, loc)
		}
		if t, ok := p.Type.Get(); ok {
			child.SetAttr(AttrType, interner.GetOrCreate(t))
		}
		if n, ok := p.Name.Get(); ok {
			child.SetAttr(AttrName, n)
		}
	}
}

// InitializeVariableFromHint allocates a new variable child of unit for rec,
// with a location expression that loads rec's constant address, and applies
// UpdateVariableFromHint to fill in its name/type.
func InitializeVariableFromHint(tree *Tree, interner *Interner, unit EntryID, rec *VariableRecord) *Entry {
	e := tree.AddChild(unit, TagVariable)
	e.SetAttr(AttrLocation, AddressLocation(rec.Address))
	UpdateVariableFromHint(tree, interner, e, rec)
	return e
}

// UpdateVariableFromHint overwrites an existing variable entry's name and
// type from rec (SPEC_FULL.md §4.6).
func UpdateVariableFromHint(tree *Tree, interner *Interner, e *Entry, rec *VariableRecord) {
	if name, ok := rec.Name.Get(); ok {
		e.SetAttr(AttrName, name)
	} else if e.Name() == "" {
		e.SetAttr(AttrName, fmt.Sprintf("VAR_%08x", rec.Address))
	}
	e.SetAttr(AttrType, interner.GetOrCreate(rec.Type))
}
