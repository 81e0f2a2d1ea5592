package dwarfsynth

import "testing"

func TestParseBSIHintsConfidenceFilter(t *testing.T) {
	doc := []byte(`{
		"functions": {
			"0x401000": {
				"symbol_name": "do_work",
				"source_match": {
					"confidence": 1,
					"function": "do_work",
					"return_value": {"type": "int"},
					"parameters": {
						"0": {"name": "count", "type": "int"}
					}
				}
			},
			"0x402000": {
				"symbol_name": "maybe_work",
				"source_match": {
					"confidence": 0,
					"function": "maybe_work",
					"return_value": {"type": "void"}
				}
			}
		}
	}`)

	hints, err := ParseBSIHints(doc, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := hints.Functions[0x401000]; !ok {
		t.Error("expected confidence-1 entry to be ingested")
	}
	if _, ok := hints.Functions[0x402000]; ok {
		t.Error("expected confidence-0 entry to be dropped without useAllEntries")
	}

	hints, err = ParseBSIHints(doc, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := hints.Functions[0x402000]; !ok {
		t.Error("expected confidence-0 entry to be ingested with useAllEntries")
	}
}

func TestParseBSITypeSuffixes(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"int", false},
		{"int*", false},
		{"int**", false},
		{"int[]", false},
		{"int[8]", false},
		{"int]", true},
	}
	for _, tt := range tests {
		_, err := parseBSIType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseBSIType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestRecoverParamNames(t *testing.T) {
	// base64 of: "void do_work(int count, char *label);"
	header := "dm9pZCBkb193b3JrKGludCBjb3VudCwgY2hhciAqbGFiZWwpOw=="
	names, err := recoverParamNames(header, "do_work")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "count" || names[1] != "label" {
		t.Errorf("expected [count label], got %v", names)
	}

	names, err = recoverParamNames(header, "not_declared")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if names != nil {
		t.Errorf("expected nil for an undeclared function, got %v", names)
	}
}

func TestParseBSIAddress(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"0x1000", 0x1000},
		{"4096", 4096},
	}
	for _, tt := range tests {
		got, err := parseBSIAddress(tt.in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("parseBSIAddress(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func FuzzParseBSIHints(f *testing.F) {
	f.Add([]byte(`{"functions":{"0x1000":{"symbol_name":"f","source_match":{"confidence":1,"function":"f","return_value":{"type":"int"}}}}}`), false)
	f.Add([]byte(`{}`), true)
	f.Fuzz(func(t *testing.T, data []byte, useAll bool) {
		_, _ = ParseBSIHints(data, useAll)
	})
}
