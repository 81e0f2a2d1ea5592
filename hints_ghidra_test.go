package dwarfsynth

import "strings"
import "testing"

func TestParseGhidraHints(t *testing.T) {
	csv := "Name,Function Size,Location,Function Signature\n" +
		"do_work,1a,00401000,\"int do_work(int count, char * label)\"\n" +
		"thunk_FUN,5,00402000,undefined thunk_FUN(void)\n"

	hints, err := ParseGhidraHints(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fn, ok := hints.Functions[0x401000]
	if !ok {
		t.Fatal("expected a function record at 0x401000")
	}
	if name, _ := fn.Name.Get(); name != "do_work" {
		t.Errorf("expected name 'do_work', got %q", name)
	}
	if high, ok := fn.HighPC.Get(); !ok || high != 0x401000+0x1a {
		t.Errorf("expected high-pc %#x, got %#x (ok=%v)", 0x401000+0x1a, high, ok)
	}
	params, ok := fn.Parameters.Get()
	if !ok || len(params) != 2 {
		t.Fatalf("expected 2 parameters, got %v (ok=%v)", params, ok)
	}
	if name, _ := params[0].Name.Get(); name != "count" {
		t.Errorf("expected first parameter name 'count', got %q", name)
	}
	if name, _ := params[1].Name.Get(); name != "label" {
		t.Errorf("expected second parameter name 'label', got %q", name)
	}
	rets, ok := fn.ReturnTypes.Get()
	if !ok || len(rets) != 1 {
		t.Fatalf("expected 1 return type, got %v (ok=%v)", rets, ok)
	}

	fn2, ok := hints.Functions[0x402000]
	if !ok {
		t.Fatal("expected a function record at 0x402000")
	}
	if _, ok := fn2.ReturnTypes.Get(); ok {
		t.Error("expected an undefined return type to be Absent, not Present")
	}
}

func TestParseGhidraHintsMissingColumn(t *testing.T) {
	csv := "Name,Location\nf,00401000\n"
	if _, err := ParseGhidraHints(strings.NewReader(csv)); err == nil {
		t.Error("expected error for a CSV missing required columns")
	}
}

func TestGhidraParseSignatureVoidParams(t *testing.T) {
	ret, params, err := ghidraParseSignature("void f(void)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret == nil || ret.Kind != TermPrimitive || ret.Name != "void" {
		t.Errorf("expected a void primitive return type, got %v", ret)
	}
	if params != nil {
		t.Errorf("expected no parameters for a void parameter list, got %v", params)
	}
}

func TestGhidraParseType(t *testing.T) {
	term, err := ghidraParseType("int *")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if term == nil || term.Kind != TermPointer {
		t.Errorf("expected a pointer type term, got %+v", term)
	}

	term, err = ghidraParseType("undefined")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if term != nil {
		t.Errorf("expected nil for an undefined type, got %+v", term)
	}
}

func FuzzParseGhidraHints(f *testing.F) {
	f.Add("Name,Function Size,Location,Function Signature\nf,4,1000,void f(void)\n")
	f.Add("Name,Function Size,Location,Function Signature\n")
	f.Fuzz(func(t *testing.T, data string) {
		_, _ = ParseGhidraHints(strings.NewReader(data))
	})
}
