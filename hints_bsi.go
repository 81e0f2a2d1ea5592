package dwarfsynth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// parseBSIType parses Parser B's type-suffix string syntax into a TypeTerm,
// grounded on original_source/src/str_bsi/mod.rs's `impl From<&Type> for
// DwarfType`: a trailing "*" is a pointer (recurse on the referent, so
// chained stars stack naturally); a trailing "[]" is an array without a
// known length; a trailing "[N]" is an array of length N; anything else is
// a primitive name, canonicalized at the boundary.
func parseBSIType(s string) (*TypeTerm, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "*"):
		referent, err := parseBSIType(strings.TrimSuffix(s, "*"))
		if err != nil {
			return nil, err
		}
		return PointerTerm(referent), nil

	case strings.HasSuffix(s, "[]"):
		elem, err := parseBSIType(strings.TrimSuffix(s, "[]"))
		if err != nil {
			return nil, err
		}
		return ArrayTerm(elem, nil), nil

	case strings.HasSuffix(s, "]"):
		idx := strings.LastIndex(s, "[")
		if idx < 0 {
			return nil, fmt.Errorf("%w: unbalanced array type %q", ErrMalformedInput, s)
		}
		lenStr := s[idx+1 : len(s)-1]
		n, err := strconv.ParseUint(lenStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid array length in %q", ErrMalformedInput, s)
		}
		elem, err := parseBSIType(s[:idx])
		if err != nil {
			return nil, err
		}
		return ArrayTerm(elem, &n), nil

	default:
		return PrimitiveTerm(Canonicalize(s), nil), nil
	}
}

type bsiNamedVariable struct {
	Name *string `json:"name"`
	Type *string `json:"type"`
}

type bsiUnnamedVariable struct {
	Type *string `json:"type"`
}

type bsiSourceMatch struct {
	Confidence     uint32                      `json:"confidence"`
	File           *string                     `json:"file"`
	Line           *uint64                     `json:"line"`
	Function       string                      `json:"function"`
	ReturnValue    bsiUnnamedVariable          `json:"return_value"`
	Parameters     map[string]bsiNamedVariable `json:"parameters"`
	LocalVariables map[string]bsiNamedVariable `json:"local_variables"`
}

type bsiFunction struct {
	SymbolName         *string         `json:"symbol_name"`
	CallingConvention  *string         `json:"calling_convention"`
	ReturnRegisters    []string        `json:"return_registers"`
	ClobberedRegisters []string        `json:"clobbered_registers"`
	SourceMatch        *bsiSourceMatch `json:"source_match"`
}

type bsiDoc struct {
	Functions map[string]bsiFunction `json:"functions"`
	// Header is an optional base64-encoded C-like header used to recover
	// parameter names when a bsiNamedVariable's "name" field is itself
	// absent (SPEC_FULL.md §4.2 Parser B).
	Header *string `json:"header"`
}

// parseBSIAddress parses a hex ("0x..." ) or decimal address string, per
// original_source/src/str_bsi/mod.rs's StrBsiInput::data address parsing.
func parseBSIAddress(s string) (uint64, error) {
	if hex, ok := strings.CutPrefix(s, "0x"); ok {
		n, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid hex address %q", ErrMalformedInput, s)
		}
		return n, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid address %q", ErrMalformedInput, s)
	}
	return n, nil
}

// recoverParamNames decodes a base64 C-like header and recovers funcName's
// parameter names by locating "funcName(" and splitting the argument list
// on commas, ignoring a trailing variadic "..." marker and an empty/"void"
// list. Returns nil if the function is not declared in the header.
func recoverParamNames(headerB64, funcName string) ([]string, error) {
	header, err := base64.StdEncoding.DecodeString(headerB64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 header: %v", ErrMalformedInput, err)
	}
	marker := funcName + "("
	idx := strings.Index(string(header), marker)
	if idx < 0 {
		return nil, nil
	}
	rest := string(header)[idx+len(marker):]
	end := strings.Index(rest, ")")
	if end < 0 {
		return nil, fmt.Errorf("%w: unterminated parameter list for %q", ErrMalformedInput, funcName)
	}
	argList := strings.TrimSpace(rest[:end])
	if argList == "" || argList == "void" {
		return nil, nil
	}
	parts := strings.Split(argList, ",")
	var names []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "..." || part == "" {
			continue
		}
		part = strings.TrimSuffix(part, "...")
		part = strings.TrimSpace(part)
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		name := strings.TrimLeft(fields[len(fields)-1], "*")
		names = append(names, name)
	}
	return names, nil
}

// ParseBSIHints parses a BSI-style source-match hint file (Parser B,
// SPEC_FULL.md §4.2) into a HintSet. useAllEntries corresponds to the -u
// flag: without it, only confidence == 1 entries are ingested.
func ParseBSIHints(data []byte, useAllEntries bool) (*HintSet, error) {
	var doc bsiDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	hints := NewHintSet()

	for addrStr, fn := range doc.Functions {
		sm := fn.SourceMatch
		confidence := uint32(0)
		if sm != nil {
			confidence = sm.Confidence
		}
		if !useAllEntries && confidence != 1 {
			continue
		}

		addr, err := parseBSIAddress(addrStr)
		if err != nil {
			return nil, err
		}

		rec := &FunctionRecord{Address: addr}
		if fn.SymbolName != nil {
			rec.Name = Present(*fn.SymbolName)
		} else {
			rec.Name = Absent[string]()
		}
		rec.ReturnAddressLocation = Unavailable[Location]()
		rec.NoReturn = Unavailable[bool]()

		if sm == nil {
			rec.ReturnTypes = Absent[[]*TypeTerm]()
			rec.Parameters = Absent[[]Parameter]()
			rec.DeclFile = Absent[string]()
			rec.DeclLine = Absent[uint32]()
			rec.Locals = Absent[[]LocalVariable]()
			hints.Functions[addr] = rec
			continue
		}

		if sm.ReturnValue.Type != nil {
			term, err := parseBSIType(*sm.ReturnValue.Type)
			if err != nil {
				return nil, err
			}
			rec.ReturnTypes = Present([]*TypeTerm{term})
		} else {
			rec.ReturnTypes = Absent[[]*TypeTerm]()
		}

		if sm.File != nil {
			rec.DeclFile = Present(*sm.File)
		} else {
			rec.DeclFile = Absent[string]()
		}
		if sm.Line != nil {
			rec.DeclLine = Present(uint32(*sm.Line))
		} else {
			rec.DeclLine = Absent[uint32]()
		}

		var recoveredNames []string
		if doc.Header != nil {
			recoveredNames, _ = recoverParamNames(*doc.Header, sm.Function)
		}

		if sm.Parameters != nil {
			params := make([]Parameter, 0, len(sm.Parameters))
			// Parameter keys are visited in numeric order (shorter key
			// first), so the result and the positional pairing with
			// recoveredNames do not depend on map iteration order.
			keys := make([]string, 0, len(sm.Parameters))
			for k := range sm.Parameters {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(a, b int) bool {
				if len(keys[a]) != len(keys[b]) {
					return len(keys[a]) < len(keys[b])
				}
				return keys[a] < keys[b]
			})
			for i, k := range keys {
				v := sm.Parameters[k]
				p := Parameter{Location: Unavailable[Location]()}
				if v.Name != nil {
					p.Name = Present(*v.Name)
				} else if i < len(recoveredNames) {
					p.Name = Present(recoveredNames[i])
				} else {
					p.Name = Absent[string]()
				}
				if v.Type != nil {
					term, err := parseBSIType(*v.Type)
					if err != nil {
						return nil, err
					}
					p.Type = Present(term)
				} else {
					p.Type = Absent[*TypeTerm]()
				}
				params = append(params, p)
			}
			rec.Parameters = Present(params)
		} else {
			rec.Parameters = Absent[[]Parameter]()
		}

		if sm.LocalVariables != nil {
			var locals []LocalVariable
			for _, v := range sm.LocalVariables {
				l := LocalVariable{}
				if v.Name != nil {
					l.Name = Present(*v.Name)
				} else {
					l.Name = Absent[string]()
				}
				if v.Type != nil {
					term, err := parseBSIType(*v.Type)
					if err != nil {
						return nil, err
					}
					l.Type = Present(term)
				} else {
					l.Type = Absent[*TypeTerm]()
				}
				locals = append(locals, l)
			}
			rec.Locals = Present(locals)
		} else {
			rec.Locals = Absent[[]LocalVariable]()
		}

		hints.Functions[addr] = rec
	}

	return hints, nil
}
