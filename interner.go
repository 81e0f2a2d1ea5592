package dwarfsynth

// Interner maintains the mapping from canonical TypeTerm to debug-tree
// entry id described in SPEC_FULL.md §4.5. It is constructed once per
// compilation unit, seeded from any pre-existing type entries, and mutated
// monotonically for the rest of the run.
type Interner struct {
	tree *Tree
	unit EntryID
	arch Arch

	byKey map[string]EntryID
}

// NewInterner returns an Interner over unit's type entries in tree, sized
// for arch (used to size pointer byte-size attributes).
func NewInterner(tree *Tree, unit EntryID, arch Arch) *Interner {
	return &Interner{tree: tree, unit: unit, arch: arch, byKey: make(map[string]EntryID)}
}

// GetOrCreate returns the entry id for term, materializing it (and any
// sub-terms it owns) on first use. Re-interning an equal term always
// returns the same id (SPEC_FULL.md §8 invariant 1).
func (in *Interner) GetOrCreate(term *TypeTerm) EntryID {
	k := term.key()
	if id, ok := in.byKey[k]; ok {
		return id
	}

	var tag Tag
	switch term.Kind {
	case TermPrimitive:
		tag = TagBaseType
	case TermPointer:
		tag = TagPointerType
	case TermTypedef:
		tag = TagTypedef
	case TermArray:
		tag = TagArrayType
	case TermStruct:
		tag = TagStructureType
	case TermFunction:
		tag = TagSubroutineType
	}

	entry := in.tree.AddChild(in.unit, tag)

	switch term.Kind {
	case TermPrimitive:
		entry.SetAttr(AttrName, string(term.Name))
		if size, ok := term.sizeOf(); ok {
			entry.SetAttr(AttrByteSize, size)
		}

	case TermPointer:
		pointeeID := in.GetOrCreate(term.Pointee)
		entry.SetAttr(AttrType, pointeeID)
		entry.SetAttr(AttrByteSize, in.arch.AddressSize())

	case TermTypedef:
		referentID := in.GetOrCreate(term.Referent)
		entry.SetAttr(AttrName, string(term.Name))
		entry.SetAttr(AttrType, referentID)

	case TermArray:
		elemID := in.GetOrCreate(term.Element)
		entry.SetAttr(AttrType, elemID)
		if term.Length != nil {
			sub := in.tree.AddChild(entry.ID(), TagSubrangeType)
			sub.SetAttr(AttrUpperBound, *term.Length)
		}

	case TermStruct:
		for _, field := range term.Fields {
			fieldID := in.GetOrCreate(field)
			child := in.tree.AddChild(entry.ID(), TagVariable)
			child.SetAttr(AttrType, fieldID)
		}

	case TermFunction:
		retID := in.GetOrCreate(term.Return)
		entry.SetAttr(AttrType, retID)
		for _, arg := range term.Args {
			argID := in.GetOrCreate(arg)
			child := in.tree.AddChild(entry.ID(), TagFormalParameter)
			child.SetAttr(AttrType, argID)
		}
	}

	in.byKey[k] = entry.ID()
	return entry.ID()
}

// Seed walks unit's pre-existing descendants breadth-first, reconstructing
// a canonical TypeTerm from each base-type, pointer-type, typedef,
// array-type, or subroutine-type entry's attributes and registering it,
// so that later GetOrCreate calls against semantically equal terms return
// the pre-existing entry instead of a duplicate.
//
// Pointer-type and typedef entries reference another type entry by id; if
// that pointee has not yet been reconstructed, the entry is deferred and
// retried on a later pass. Retries stop once a full pass makes no further
// progress; any entries still unresolved at that point are a non-fatal
// incompleteness (SPEC_FULL.md §4.5 Seeding).
func (in *Interner) Seed() {
	var toSeed []*Entry
	in.tree.Walk(in.unit, func(e *Entry) {
		switch e.Tag() {
		case TagBaseType, TagPointerType, TagTypedef, TagArrayType, TagSubroutineType:
			toSeed = append(toSeed, e)
		}
	})

	resolved := make(map[EntryID]*TypeTerm)
	remaining := toSeed
	for {
		progressed := false
		var stillRemaining []*Entry
		for _, e := range remaining {
			term := in.reconstruct(e, resolved)
			if term == nil {
				stillRemaining = append(stillRemaining, e)
				continue
			}
			resolved[e.ID()] = term
			in.byKey[term.key()] = e.ID()
			progressed = true
		}
		remaining = stillRemaining
		if !progressed || len(remaining) == 0 {
			break
		}
	}
}

// reconstruct builds the TypeTerm for a single pre-existing entry e, using
// resolved to look up any sub-term entries already reconstructed in this
// pass. Returns nil if a dependency is not yet resolved (caller retries).
func (in *Interner) reconstruct(e *Entry, resolved map[EntryID]*TypeTerm) *TypeTerm {
	switch e.Tag() {
	case TagBaseType:
		size, _ := e.Attr(AttrByteSize)
		var sp *int
		if s, ok := size.(int); ok {
			sp = &s
		}
		return PrimitiveTerm(CanonicalTypeName(e.Name()), sp)

	case TagPointerType:
		targetID, ok := e.Attr(AttrType)
		if !ok {
			return PointerTerm(VoidTerm())
		}
		target, ok := resolved[targetID.(EntryID)]
		if !ok {
			return nil
		}
		return PointerTerm(target)

	case TagTypedef:
		referentID, ok := e.Attr(AttrType)
		if !ok {
			return nil
		}
		referent, ok := resolved[referentID.(EntryID)]
		if !ok {
			return nil
		}
		return TypedefTerm(CanonicalTypeName(e.Name()), referent)

	case TagArrayType:
		elemID, ok := e.Attr(AttrType)
		if !ok {
			return nil
		}
		elem, ok := resolved[elemID.(EntryID)]
		if !ok {
			return nil
		}
		var length *uint64
		for _, childID := range e.Children() {
			child := in.tree.Entry(childID)
			if child == nil || child.Tag() != TagSubrangeType {
				continue
			}
			if ub, ok := child.Attr(AttrUpperBound); ok {
				u := ub.(uint64)
				length = &u
			}
		}
		return ArrayTerm(elem, length)

	case TagSubroutineType:
		retID, ok := e.Attr(AttrType)
		if !ok {
			return nil
		}
		ret, ok := resolved[retID.(EntryID)]
		if !ok {
			return nil
		}
		var args []*TypeTerm
		for _, childID := range e.Children() {
			child := in.tree.Entry(childID)
			if child == nil || child.Tag() != TagFormalParameter {
				continue
			}
			argTypeID, ok := child.Attr(AttrType)
			if !ok {
				return nil
			}
			arg, ok := resolved[argTypeID.(EntryID)]
			if !ok {
				return nil
			}
			args = append(args, arg)
		}
		return FunctionTerm(ret, args)

	default:
		return nil
	}
}
