package dwarfsynth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// anvillPrimitiveLetters maps Parser A's single-letter primitive codes to
// canonical type names and byte sizes, grounded on
// original_source/src/anvill/types.rs's Type::name/Type::size match arms.
var anvillPrimitiveLetters = map[byte]struct {
	name string
	size int
}{
	'b': {"int8_t", 1},
	'B': {"uint8_t", 1},
	'h': {"int16_t", 2},
	'H': {"uint16_t", 2},
	'i': {"int32_t", 4},
	'I': {"uint32_t", 4},
	'l': {"int64_t", 8},
	'L': {"uint64_t", 8},
	'o': {"int128_t", 16},
	'O': {"uint128_t", 16},
	'e': {"float16_t", 2},
	'f': {"float", 4},
	'd': {"double", 8},
	'D': {"long double", 12},
	'Q': {"__float128", 16},
	'v': {"void", 0},
}

// parseAnvillType parses Parser A's compact type-string DSL into a TypeTerm,
// following the recursive-descent rules of the original TypeVisitor
// (original_source/src/anvill/types.rs): "?" -> bool; a single recognized
// letter -> primitive; "*T" -> pointer (chained stars recurse naturally);
// "[T x N]" -> array; "<T x N>" -> vector (emitted as array, per
// SPEC_FULL.md §4.2); "{...}" -> opaque struct; "(...)" -> opaque function;
// "=NAME{...}" -> named struct, treated as an anonymous struct (the name is
// discarded — see SPEC_FULL.md §9 Open Questions).
func parseAnvillType(s string) (*TypeTerm, error) {
	switch {
	case s == "?":
		size := 1
		return PrimitiveTerm("bool", &size), nil

	case len(s) == 1:
		info, ok := anvillPrimitiveLetters[s[0]]
		if !ok {
			return nil, fmt.Errorf("%w: unrecognized primitive letter %q", ErrUnknownType, s)
		}
		size := info.size
		return PrimitiveTerm(CanonicalTypeName(info.name), &size), nil

	case strings.HasPrefix(s, "*"):
		referent, err := parseAnvillType(s[1:])
		if err != nil {
			return nil, err
		}
		return PointerTerm(referent), nil

	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		return parseAnvillArrayLike(s[1 : len(s)-1])

	case strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">"):
		return parseAnvillArrayLike(s[1 : len(s)-1])

	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
		return StructTerm(nil), nil

	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		return FunctionTerm(VoidTerm(), nil), nil

	case strings.HasPrefix(s, "=") && strings.Contains(s, "{") && strings.HasSuffix(s, "}"):
		return StructTerm(nil), nil

	default:
		return nil, fmt.Errorf("%w: unrecognized type expression %q", ErrUnknownType, s)
	}
}

// parseAnvillArrayLike parses the "T x N" body shared by array ("[...]")
// and vector ("<...>") syntax: split on the last "x" to separate the
// element-type expression from the length.
func parseAnvillArrayLike(inner string) (*TypeTerm, error) {
	idx := strings.LastIndex(inner, "x")
	if idx < 0 {
		return nil, fmt.Errorf("%w: array type missing length: %q", ErrMalformedInput, inner)
	}
	elemStr := strings.TrimSpace(inner[:idx])
	lenStr := strings.TrimSpace(inner[idx+1:])
	elem, err := parseAnvillType(elemStr)
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseUint(lenStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid array length %q", ErrMalformedInput, lenStr)
	}
	return ArrayTerm(elem, &n), nil
}

// anvillLocation is the parsed form of a (possibly flattened) Tagged or
// Untagged location: either a bare register or register+offset memory
// reference.
type anvillLocation struct {
	isMemory bool
	register string
	offset   int64
}

func (l anvillLocation) toLocation(arch Arch) Location {
	reg := Register{Arch: arch, Name: l.register}
	if l.isMemory {
		return MemoryLocation(reg, l.offset)
	}
	return RegisterLocation(reg)
}

// anvillValue is a Value<T>: a flattened location plus a "type" field.
type anvillValue struct {
	Location anvillLocation
	Type     *TypeTerm
}

func (v *anvillValue) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	typeRaw, ok := raw["type"]
	if !ok {
		return fmt.Errorf("%w: value missing \"type\"", ErrMalformedInput)
	}
	var typeStr string
	if err := json.Unmarshal(typeRaw, &typeStr); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	term, err := parseAnvillType(typeStr)
	if err != nil {
		return err
	}
	v.Type = term

	if mem, ok := raw["memory"]; ok {
		var m struct {
			Register string `json:"register"`
			Offset   int64  `json:"offset"`
		}
		if err := json.Unmarshal(mem, &m); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		v.Location = anvillLocation{isMemory: true, register: m.Register, offset: m.Offset}
		return nil
	}
	if reg, ok := raw["register"]; ok {
		var r string
		if err := json.Unmarshal(reg, &r); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		v.Location = anvillLocation{isMemory: false, register: r}
		return nil
	}
	return fmt.Errorf("%w: value has neither \"memory\" nor \"register\"", ErrMalformedInput)
}

type anvillArg struct {
	Name  *string `json:"name"`
	Value anvillValue
}

func (a *anvillArg) UnmarshalJSON(data []byte) error {
	var name struct {
		Name *string `json:"name"`
	}
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	a.Name = name.Name
	return json.Unmarshal(data, &a.Value)
}

type anvillFunction struct {
	Address       uint64        `json:"address"`
	ReturnAddress *anvillValue  `json:"return_address"`
	Parameters    []anvillArg   `json:"parameters"`
	ReturnValues  []anvillValue `json:"return_values"`
	IsVariadic    *bool         `json:"is_variadic"`
	IsNoreturn    *bool         `json:"is_noreturn"`
}

type anvillVariable struct {
	Type    *TypeTerm `json:"type"`
	Address uint64    `json:"address"`
}

// UnmarshalJSON for anvillVariable must go through the same "type" string
// DSL as anvillValue.
func (v *anvillVariable) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    string `json:"type"`
		Address uint64 `json:"address"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	term, err := parseAnvillType(raw.Type)
	if err != nil {
		return err
	}
	v.Type = term
	v.Address = raw.Address
	return nil
}

type anvillSymbol struct {
	Address uint64 `json:"address"`
	Name    string `json:"name"`
}

type anvillDoc struct {
	Arch      string           `json:"arch"`
	OS        string           `json:"os"`
	Functions []anvillFunction `json:"functions"`
	Variables []anvillVariable `json:"variables"`
	Symbols   []anvillSymbol   `json:"symbols"`
}

// ParseAnvillHints parses an Anvill-style disassembler-JSON hint file
// (Parser A, SPEC_FULL.md §4.2) into a HintSet.
func ParseAnvillHints(data []byte) (*HintSet, Arch, error) {
	var doc anvillDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ArchUnknown, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	arch := ParseArch(doc.Arch)

	symbolsByAddr := make(map[uint64]string, len(doc.Symbols))
	for _, sym := range doc.Symbols {
		symbolsByAddr[sym.Address] = sym.Name
	}

	hints := NewHintSet()

	for _, fn := range doc.Functions {
		rec := &FunctionRecord{Address: fn.Address}

		if name, ok := symbolsByAddr[fn.Address]; ok {
			rec.Name = Present(name)
		} else {
			rec.Name = Absent[string]()
		}

		if fn.ReturnAddress != nil {
			rec.ReturnAddressLocation = Present(fn.ReturnAddress.Location.toLocation(arch))
		} else {
			rec.ReturnAddressLocation = Absent[Location]()
		}

		if fn.IsNoreturn != nil {
			rec.NoReturn = Present(*fn.IsNoreturn)
		} else {
			rec.NoReturn = Absent[bool]()
		}

		if len(fn.ReturnValues) > 0 {
			rets := make([]*TypeTerm, 0, len(fn.ReturnValues))
			for _, rv := range fn.ReturnValues {
				rets = append(rets, rv.Type)
			}
			rec.ReturnTypes = Present(rets)
		} else {
			rec.ReturnTypes = Absent[[]*TypeTerm]()
		}

		if fn.Parameters != nil {
			params := make([]Parameter, 0, len(fn.Parameters))
			for _, arg := range fn.Parameters {
				p := Parameter{Type: Present(arg.Value.Type)}
				if arg.Name != nil {
					p.Name = Present(*arg.Name)
				} else {
					p.Name = Absent[string]()
				}
				p.Location = Present(arg.Value.Location.toLocation(arch))
				params = append(params, p)
			}
			rec.Parameters = Present(params)
		} else {
			rec.Parameters = Absent[[]Parameter]()
		}

		rec.DeclFile = Unavailable[string]()
		rec.DeclLine = Unavailable[uint32]()
		rec.Locals = Unavailable[[]LocalVariable]()

		hints.Functions[fn.Address] = rec
	}

	for _, v := range doc.Variables {
		rec := &VariableRecord{Address: v.Address, Type: v.Type}
		if name, ok := symbolsByAddr[v.Address]; ok {
			rec.Name = Present(name)
		} else {
			rec.Name = Absent[string]()
		}
		hints.Variables[v.Address] = rec
	}

	return hints, arch, nil
}
