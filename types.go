package dwarfsynth

import "fmt"

// CanonicalTypeName is the single chosen spelling for a primitive type, used
// for equality and hashing throughout the engine. Construct one only via
// Canonicalize; the zero value is not meaningful.
type CanonicalTypeName string

// aliasTable collapses the many spellings a hint source might use for a
// primitive into one canonical name. It is a closed set: this implementation
// never adds to it at runtime. Names not present here pass through
// unchanged and are treated as opaque user types (structs, enums, etc. named
// directly by the binary's own toolchain).
var aliasTable = map[string]string{
	"bool":  "bool",
	"_Bool": "bool",

	"int8_t":      "int8_t",
	"signed char": "int8_t",
	"i8":          "int8_t",

	"uint8_t":       "uint8_t",
	"unsigned char": "uint8_t",
	"u8":            "uint8_t",

	"int16_t": "int16_t",
	"short":   "int16_t",
	"i16":     "int16_t",

	"uint16_t":       "uint16_t",
	"unsigned short": "uint16_t",
	"u16":            "uint16_t",

	"int32_t": "int32_t",
	"int":     "int32_t",
	"i32":     "int32_t",

	"uint32_t": "uint32_t",
	"unsigned": "uint32_t",
	"u32":      "uint32_t",

	"int64_t":  "int64_t",
	"long long": "int64_t",
	"i64":      "int64_t",

	"uint64_t":           "uint64_t",
	"unsigned long long": "uint64_t",
	"u64":                "uint64_t",

	"int128_t": "int128_t",
	"__int128": "int128_t",
	"i128":     "int128_t",

	"uint128_t": "uint128_t",
	"__uint128": "uint128_t",
	"u128":      "uint128_t",

	"float16_t": "float16_t",
	"binary16":  "float16_t",

	"float": "float",
	"f32":   "float",

	"double": "double",
	"f64":    "double",

	"long double": "long double",

	"__float128": "__float128",

	"void": "void",
}

// primitiveSizes gives the byte size of every primitive this engine knows,
// per the testable property in SPEC_FULL.md §8 invariant 6. long double is
// fixed at 12 bytes; the ABI-dependent 10-vs-12 choice is recorded as an
// open question (see DESIGN.md).
var primitiveSizes = map[string]int{
	"bool":        1,
	"int8_t":      1,
	"uint8_t":     1,
	"int16_t":     2,
	"uint16_t":    2,
	"int32_t":     4,
	"uint32_t":    4,
	"int64_t":     8,
	"uint64_t":    8,
	"int128_t":    16,
	"uint128_t":   16,
	"float16_t":   2,
	"float":       4,
	"double":      8,
	"long double": 12,
	"__float128":  16,
	"void":        0,
}

// Canonicalize maps a raw type-name spelling to its CanonicalTypeName.
// Canonicalization is idempotent: Canonicalize(string(Canonicalize(x))) ==
// Canonicalize(x).
func Canonicalize(name string) CanonicalTypeName {
	if canon, ok := aliasTable[name]; ok {
		return CanonicalTypeName(canon)
	}
	return CanonicalTypeName(name)
}

// SizeOf returns the known byte size of a canonical primitive name. The
// second return is false for opaque/composite names, which this component
// does not size.
func SizeOf(name CanonicalTypeName) (int, bool) {
	size, ok := primitiveSizes[string(name)]
	return size, ok
}

// TypeTermKind discriminates the closed sum of TypeTerm shapes.
type TypeTermKind uint8

const (
	TermPrimitive TypeTermKind = iota
	TermPointer
	TermTypedef
	TermArray
	TermStruct
	TermFunction
)

// TypeTerm is a tagged type expression. It forms a DAG via ownership of
// sub-terms: Pointee/Referent/Element/Return own their child TypeTerm,
// Fields/Args own an ordered list of them. Equality is structural
// (TypeTerm.Equal), not pointer identity.
type TypeTerm struct {
	Kind TypeTermKind

	// Primitive
	Name CanonicalTypeName
	Size *int // optional byte size override; nil defers to SizeOf(Name)

	// Pointer / Typedef / Array / Function-return
	Pointee  *TypeTerm
	Referent *TypeTerm // Typedef only
	Element  *TypeTerm // Array only

	// Array
	Length *uint64 // optional; nil means unknown length

	// Struct
	Fields []*TypeTerm

	// Function
	Return *TypeTerm
	Args   []*TypeTerm
}

// PrimitiveTerm builds a Primitive TypeTerm for an already-canonical name.
func PrimitiveTerm(name CanonicalTypeName, size *int) *TypeTerm {
	return &TypeTerm{Kind: TermPrimitive, Name: name, Size: size}
}

// VoidTerm is the primitive term for "void", size 0.
func VoidTerm() *TypeTerm {
	zero := 0
	return PrimitiveTerm("void", &zero)
}

// PointerTerm builds a Pointer TypeTerm over pointee.
func PointerTerm(pointee *TypeTerm) *TypeTerm {
	return &TypeTerm{Kind: TermPointer, Pointee: pointee}
}

// TypedefTerm builds a Typedef TypeTerm naming referent.
func TypedefTerm(name CanonicalTypeName, referent *TypeTerm) *TypeTerm {
	return &TypeTerm{Kind: TermTypedef, Name: name, Referent: referent}
}

// ArrayTerm builds an Array TypeTerm of element, with optional length.
func ArrayTerm(element *TypeTerm, length *uint64) *TypeTerm {
	return &TypeTerm{Kind: TermArray, Element: element, Length: length}
}

// StructTerm builds an opaque Struct TypeTerm from its ordered field terms.
func StructTerm(fields []*TypeTerm) *TypeTerm {
	return &TypeTerm{Kind: TermStruct, Fields: fields}
}

// FunctionTerm builds a Function TypeTerm (used for subroutine-type
// entries created from Anvill's `(...)` opaque function syntax).
func FunctionTerm(ret *TypeTerm, args []*TypeTerm) *TypeTerm {
	return &TypeTerm{Kind: TermFunction, Return: ret, Args: args}
}

// sizeOf returns this term's effective byte size, consulting the override
// before falling back to the primitive size table. Composite terms (other
// than primitives) have no engine-computed size; callers needing one (e.g.
// pointer byte-size) use the address size of the target object, not this.
func (t *TypeTerm) sizeOf() (int, bool) {
	if t.Kind != TermPrimitive {
		return 0, false
	}
	if t.Size != nil {
		return *t.Size, true
	}
	return SizeOf(t.Name)
}

// Equal reports whether two type terms are structurally identical. This is
// the equality relation the type interner keys on.
func (t *TypeTerm) Equal(o *TypeTerm) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TermPrimitive:
		if t.Name != o.Name {
			return false
		}
		ts, tok := t.sizeOf()
		os_, ook := o.sizeOf()
		return tok == ook && (!tok || ts == os_)
	case TermPointer:
		return t.Pointee.Equal(o.Pointee)
	case TermTypedef:
		return t.Name == o.Name && t.Referent.Equal(o.Referent)
	case TermArray:
		if !t.Element.Equal(o.Element) {
			return false
		}
		if (t.Length == nil) != (o.Length == nil) {
			return false
		}
		return t.Length == nil || *t.Length == *o.Length
	case TermStruct:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Equal(o.Fields[i]) {
				return false
			}
		}
		return true
	case TermFunction:
		if !t.Return.Equal(o.Return) || len(t.Args) != len(o.Args) {
			return false
		}
		for i := range t.Args {
			if !t.Args[i].Equal(o.Args[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// key renders a stable structural string used as the type interner's map
// key. It is not meant for display; Equal is the semantic equality
// relation, key is merely a hashable projection of it.
func (t *TypeTerm) key() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TermPrimitive:
		size, ok := t.sizeOf()
		if ok {
			return fmt.Sprintf("P:%s:%d", t.Name, size)
		}
		return fmt.Sprintf("P:%s:?", t.Name)
	case TermPointer:
		return fmt.Sprintf("*%s", t.Pointee.key())
	case TermTypedef:
		return fmt.Sprintf("TD:%s:%s", t.Name, t.Referent.key())
	case TermArray:
		if t.Length != nil {
			return fmt.Sprintf("[%s x %d]", t.Element.key(), *t.Length)
		}
		return fmt.Sprintf("[%s x ?]", t.Element.key())
	case TermStruct:
		s := "{"
		for i, f := range t.Fields {
			if i > 0 {
				s += ","
			}
			s += f.key()
		}
		return s + "}"
	case TermFunction:
		s := "(" + t.Return.key() + ")("
		for i, a := range t.Args {
			if i > 0 {
				s += ","
			}
			s += a.key()
		}
		return s + ")"
	default:
		return "<invalid>"
	}
}
