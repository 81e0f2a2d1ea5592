package dwarfsynth

import "testing"

func TestX86_64RegisterMapper(t *testing.T) {
	m := NewRegisterMapper(ArchX86_64)
	tests := []struct {
		name string
		want uint64
	}{
		{"RAX", 0}, {"rsp", 7}, {"R15", 15}, {"XMM0", 17},
	}
	for _, tt := range tests {
		got, err := m.DWARFNumber(Register{Arch: ArchX86_64, Name: tt.name})
		if err != nil {
			t.Fatalf("DWARFNumber(%q) unexpected error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("DWARFNumber(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
	if _, err := m.DWARFNumber(Register{Arch: ArchX86_64, Name: "NOTAREG"}); err == nil {
		t.Error("expected error for an unrecognized register name")
	}
}

func TestX86RegisterMapper(t *testing.T) {
	m := NewRegisterMapper(ArchX86)
	got, err := m.DWARFNumber(Register{Arch: ArchX86, Name: "EDI"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Errorf("DWARFNumber(EDI) = %d, want 7", got)
	}
}

func TestAArch64RegisterMapper(t *testing.T) {
	m := NewRegisterMapper(ArchAArch64)
	tests := []struct {
		name string
		want uint64
	}{
		{"X0", 0}, {"x30", 30}, {"SP", 31}, {"V0", 64}, {"Q5", 69},
	}
	for _, tt := range tests {
		got, err := m.DWARFNumber(Register{Arch: ArchAArch64, Name: tt.name})
		if err != nil {
			t.Fatalf("DWARFNumber(%q) unexpected error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("DWARFNumber(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestNewRegisterMapperUnknownArch(t *testing.T) {
	if NewRegisterMapper(ArchUnknown) != nil {
		t.Error("expected nil mapper for an unknown architecture")
	}
}

func TestAddressSize(t *testing.T) {
	if ArchX86.AddressSize() != 4 {
		t.Errorf("expected x86 address size 4, got %d", ArchX86.AddressSize())
	}
	if ArchX86_64.AddressSize() != 8 {
		t.Errorf("expected x86-64 address size 8, got %d", ArchX86_64.AddressSize())
	}
	if ArchAArch64.AddressSize() != 8 {
		t.Errorf("expected aarch64 address size 8, got %d", ArchAArch64.AddressSize())
	}
}
