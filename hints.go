package dwarfsynth

// ProvidedState discriminates Provided's three states: a hint source can
// supply a value, explicitly decline to (the field is meaningful but this
// record doesn't have one), or simply be unable to express the field at
// all (the source format has no such concept).
type ProvidedState uint8

const (
	ProvidedValue ProvidedState = iota
	ProvidedAbsent
	ProvidedUnavailable
)

// Provided is a tri-valued field, per SPEC_FULL.md §3's "each field is
// tri-valued: present, absent (hint declined), or not-applicable (source
// format cannot provide)".
type Provided[T any] struct {
	State ProvidedState
	Value T
}

// Present wraps v as a provided value.
func Present[T any](v T) Provided[T] { return Provided[T]{State: ProvidedValue, Value: v} }

// Absent represents a field the hint source could express but declined to.
func Absent[T any]() Provided[T] { return Provided[T]{State: ProvidedAbsent} }

// Unavailable represents a field the hint source's format has no concept of.
func Unavailable[T any]() Provided[T] { return Provided[T]{State: ProvidedUnavailable} }

// Get returns the wrapped value and whether it is present.
func (p Provided[T]) Get() (T, bool) {
	return p.Value, p.State == ProvidedValue
}

// IsPresent reports whether this field carries a value.
func (p Provided[T]) IsPresent() bool { return p.State == ProvidedValue }

// SymbolKind classifies a record's corresponding ELF symbol type.
type SymbolKind uint8

const (
	SymbolFunction SymbolKind = iota
	SymbolObject
)

// Parameter is one function-record argument in the intermediate form.
type Parameter struct {
	Name     Provided[string]
	Location Provided[Location]
	Type     Provided[*TypeTerm]
}

// LocalVariable is a function-record local variable.
type LocalVariable struct {
	Name Provided[string]
	Type Provided[*TypeTerm]
}

// FunctionRecord is the uniform intermediate form every hint parser
// produces for a function, per SPEC_FULL.md §3.
type FunctionRecord struct {
	Address               uint64
	Name                  Provided[string]
	HighPC                Provided[uint64]
	ReturnAddressLocation Provided[Location]
	NoReturn              Provided[bool]
	ReturnTypes           Provided[[]*TypeTerm]
	Parameters            Provided[[]Parameter]
	DeclFile              Provided[string]
	DeclLine              Provided[uint32]
	Locals                Provided[[]LocalVariable]
}

// VariableRecord is the uniform intermediate form for a global/static
// variable.
type VariableRecord struct {
	Address uint64
	Name    Provided[string]
	Type    *TypeTerm
}

// HintSet is the parsed output of one hint file: the function and variable
// records it contributed, keyed by address for O(1) lookup during the tree
// walk (SPEC_FULL.md §4.7).
type HintSet struct {
	Functions map[uint64]*FunctionRecord
	Variables map[uint64]*VariableRecord
}

// NewHintSet returns an empty HintSet.
func NewHintSet() *HintSet {
	return &HintSet{
		Functions: make(map[uint64]*FunctionRecord),
		Variables: make(map[uint64]*VariableRecord),
	}
}

// AllTypeTerms returns every distinct TypeTerm appearing in this hint set's
// function signatures and variables, for C7 step 1 ("collect the set of
// all type terms ... dedup").
func (h *HintSet) AllTypeTerms() []*TypeTerm {
	seen := make(map[string]bool)
	var out []*TypeTerm
	add := func(t *TypeTerm) {
		if t == nil {
			return
		}
		k := t.key()
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, t)
	}
	for _, fn := range h.Functions {
		if rets, ok := fn.ReturnTypes.Get(); ok {
			for _, t := range rets {
				add(t)
			}
		}
		if params, ok := fn.Parameters.Get(); ok {
			for _, p := range params {
				if t, ok := p.Type.Get(); ok {
					add(t)
				}
			}
		}
		if locals, ok := fn.Locals.Get(); ok {
			for _, l := range locals {
				if t, ok := l.Type.Get(); ok {
					add(t)
				}
			}
		}
	}
	for _, v := range h.Variables {
		add(v.Type)
	}
	return out
}
