package dwarfsynth

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ghidraParseType parses one Ghidra-style type spelling into a TypeTerm, or
// returns (nil, nil) for an unknown type ("undefined", optionally prefixed
// with "thunk "), per original_source/src/ghidra/mod.rs's parse_type. A
// single trailing "*" denotes one level of pointer indirection; recursion
// handles chained stars.
func ghidraParseType(raw string) (*TypeTerm, error) {
	ty := strings.TrimSpace(raw)
	if ty == "undefined" || ty == "thunk undefined" {
		return nil, nil
	}
	if inner, ok := strings.CutSuffix(ty, "*"); ok {
		referent, err := ghidraParseType(inner)
		if err != nil {
			return nil, err
		}
		if referent == nil {
			return nil, nil
		}
		return PointerTerm(referent), nil
	}
	return PrimitiveTerm(Canonicalize(ty), nil), nil
}

// ghidraParseSignature splits a "Function Signature" CSV field into a
// return-type TypeTerm (nil if unknown/undefined) and an ordered parameter
// list, per original_source/src/ghidra/mod.rs's parse_signature — with one
// deliberate correction: parameter bodies
// have a trailing ")" trimmed only when present, rather than unconditionally
// dropping each comma-separated piece's last byte (which would truncate
// every parameter's name but the last).
func ghidraParseSignature(sig string) (*TypeTerm, []Parameter, error) {
	openIdx := strings.Index(sig, "(")
	if openIdx < 0 {
		return nil, nil, fmt.Errorf("%w: signature missing \"(\": %q", ErrMalformedInput, sig)
	}
	leftStr := sig[:openIdx]
	rightStr := sig[openIdx+1:]

	leftFields := strings.Fields(leftStr)
	var retStr string
	if len(leftFields) > 1 {
		retStr = strings.Join(leftFields[:len(leftFields)-1], " ")
	}

	rightStr = strings.TrimSuffix(strings.TrimSpace(rightStr), ")")

	var params []Parameter
	if rightStr != "" && rightStr != "void" {
		for _, piece := range strings.Split(rightStr, ",") {
			piece = strings.TrimSuffix(strings.TrimSpace(piece), ")")
			if piece == "" || piece == "void" {
				break
			}
			fields := strings.Fields(piece)
			if len(fields) == 0 {
				continue
			}
			name := fields[len(fields)-1]
			typeStr := strings.Join(fields[:len(fields)-1], " ")
			term, err := ghidraParseType(typeStr)
			if err != nil {
				return nil, nil, err
			}
			p := Parameter{
				Name:     Present(name),
				Location: Unavailable[Location](),
			}
			if term != nil {
				p.Type = Present(term)
			} else {
				p.Type = Absent[*TypeTerm]()
			}
			params = append(params, p)
		}
	}

	retTerm, err := ghidraParseType(retStr)
	if err != nil {
		return nil, nil, err
	}
	return retTerm, params, nil
}

// ParseGhidraHints parses a Ghidra-style CSV hint file (Parser C,
// SPEC_FULL.md §4.2) into a HintSet. Expected headers: Name, Function Size,
// Location, Function Signature.
func ParseGhidraHints(r io.Reader) (*HintSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	for _, want := range []string{"Name", "Function Size", "Location", "Function Signature"} {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("%w: missing CSV column %q", ErrMalformedInput, want)
		}
	}

	hints := NewHintSet()
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}

		name := row[col["Name"]]
		sizeStr := row[col["Function Size"]]
		locationStr := row[col["Location"]]
		signature := row[col["Function Signature"]]

		lowPC, err := strconv.ParseUint(locationStr, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid location %q: %v", ErrMalformedInput, locationStr, err)
		}
		size, err := strconv.ParseUint(sizeStr, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid function size %q: %v", ErrMalformedInput, sizeStr, err)
		}

		retTerm, params, err := ghidraParseSignature(signature)
		if err != nil {
			return nil, err
		}

		rec := &FunctionRecord{
			Address:               lowPC,
			Name:                  Present(name),
			HighPC:                Present(lowPC + size),
			ReturnAddressLocation: Unavailable[Location](),
			NoReturn:              Unavailable[bool](),
			DeclFile:              Unavailable[string](),
			DeclLine:              Unavailable[uint32](),
			Locals:                Unavailable[[]LocalVariable](),
		}
		if retTerm != nil {
			rec.ReturnTypes = Present([]*TypeTerm{retTerm})
		} else {
			rec.ReturnTypes = Absent[[]*TypeTerm]()
		}
		if params != nil {
			rec.Parameters = Present(params)
		} else {
			rec.Parameters = Absent[[]Parameter]()
		}

		hints.Functions[lowPC] = rec
	}

	return hints, nil
}
