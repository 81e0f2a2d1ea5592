package dwarfsynth

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/dwarfsynth/dwarfsynth/log"
)

// debugSectionNames lists the conventional ELF section names this engine
// reads and rewrites, in the order the teacher's data-directory table
// enumerates PE directories (file.go's ParseDataDirectories) — one fixed,
// ordered worklist rather than an ad hoc search.
var debugSectionNames = []string{
	".debug_info",
	".debug_abbrev",
	".debug_str",
	".debug_line",
}

// Envelope is the Binary Envelope (C3): it owns the mmap'd input object,
// the debug tree extracted from (or created for) it, and the re-serialized
// section blobs produced once synthesis completes. Grounded on file.go's
// File type: a memory-mapped buffer plus a handle to the backing *os.File.
type Envelope struct {
	path   string
	f      *os.File
	data   mmap.MMap
	elf    *elf.File
	arch   Arch
	is64   bool
	bigEnd bool

	Tree *Tree
	Unit EntryID

	logger *log.Helper
}

// EnvelopeOptions mirrors the teacher's Options struct (file.go): a small
// bag of knobs threaded through at construction rather than globals.
type EnvelopeOptions struct {
	Logger *log.Helper
}

// OpenEnvelope memory-maps path read-only, parses its ELF header and
// section table, and seeds a debug tree from any pre-existing DWARF debug
// sections (SPEC_FULL.md §4.3). If the object carries no compilation unit,
// one is created per the format/address-size/version-4/empty-line-program
// rule.
func OpenEnvelope(path string, opts *EnvelopeOptions) (*Envelope, error) {
	if opts == nil {
		opts = &EnvelopeOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout), log.FilterLevel(log.LevelError)))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	ef, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedBinary, err)
	}

	env := &Envelope{
		path:   path,
		f:      f,
		data:   data,
		elf:    ef,
		is64:   ef.Class == elf.ELFCLASS64,
		bigEnd: ef.Data == elf.ELFDATA2MSB,
		logger: logger,
	}
	env.arch = archFromELFMachine(ef.Machine)

	tree := NewTree()
	env.Tree = tree

	if d, err := ef.DWARF(); err == nil {
		unit, seeded := seedTreeFromDWARF(tree, d)
		env.Unit = unit
		if !seeded {
			logger.Debugf("existing debug info present but no compile unit entries found")
		}
	} else {
		logger.Debugf("no pre-existing DWARF debug info: %v", err)
	}

	if env.Unit == invalidEntryID {
		unit := tree.NewUnit()
		env.Unit = unit.ID()
		logger.Infof("no compilation unit found in %s, created an empty one (format=%s, version=4)",
			path, formatLabel(env.is64))
	}

	return env, nil
}

// archFromELFMachine maps an ELF e_machine value to this engine's Arch.
func archFromELFMachine(m elf.Machine) Arch {
	switch m {
	case elf.EM_386:
		return ArchX86
	case elf.EM_X86_64:
		return ArchX86_64
	case elf.EM_AARCH64:
		return ArchAArch64
	default:
		return ArchUnknown
	}
}

func formatLabel(is64 bool) string {
	if is64 {
		return "64-bit"
	}
	return "32-bit"
}

// seedTreeFromDWARF walks the standard library's DWARF entry reader and
// rebuilds it into the mutable C4 arena representation, returning the
// id of the last compile-unit entry read. This is the one pre-existing-debug-info
// ingestion path; subsequent interning (C5) and synthesis (C6/C7) never
// touch debug/dwarf again.
func seedTreeFromDWARF(tree *Tree, d *dwarf.Data) (EntryID, bool) {
	r := d.Reader()

	// stdlib ids (dwarf.Offset) -> this engine's EntryID, so cross-references
	// (DW_AT_type, etc.) can be relinked once every entry has been allocated.
	byOffset := make(map[dwarf.Offset]EntryID)
	var pending []struct {
		id   EntryID
		kind dwarf.Tag
		off  dwarf.Offset
	}

	var unit EntryID
	var parents []EntryID

	for {
		e, err := r.Next()
		if err != nil || e == nil {
			break
		}
		if e.Tag == 0 {
			// end of sibling list
			if len(parents) > 0 {
				parents = parents[:len(parents)-1]
			}
			continue
		}

		tag, ok := dwarfTagToTag(e.Tag)
		if !ok {
			if e.Children {
				parents = append(parents, invalidEntryID)
			}
			continue
		}

		var parent EntryID
		if len(parents) > 0 {
			parent = parents[len(parents)-1]
		}

		var entry *Entry
		if tag == TagCompileUnit {
			entry = tree.NewUnit()
			unit = entry.ID()
		} else if parent != invalidEntryID {
			entry = tree.AddChild(parent, tag)
		} else {
			entry = tree.AddChild(unit, tag)
		}

		byOffset[e.Offset] = entry.ID()
		applyDWARFAttrs(entry, e)

		if typeOff, ok := dwarfTypeOffset(e); ok {
			pending = append(pending, struct {
				id   EntryID
				kind dwarf.Tag
				off  dwarf.Offset
			}{entry.ID(), e.Tag, typeOff})
		}

		if e.Children {
			parents = append(parents, entry.ID())
		}
	}

	for _, p := range pending {
		if target, ok := byOffset[p.off]; ok {
			if e := tree.Entry(p.id); e != nil {
				e.SetAttr(AttrType, target)
			}
		}
	}

	return unit, unit != invalidEntryID
}

func dwarfTagToTag(t dwarf.Tag) (Tag, bool) {
	switch t {
	case dwarf.TagCompileUnit:
		return TagCompileUnit, true
	case dwarf.TagSubprogram:
		return TagSubprogram, true
	case dwarf.TagFormalParameter:
		return TagFormalParameter, true
	case dwarf.TagVariable:
		return TagVariable, true
	case dwarf.TagBaseType:
		return TagBaseType, true
	case dwarf.TagPointerType:
		return TagPointerType, true
	case dwarf.TagTypedef:
		return TagTypedef, true
	case dwarf.TagArrayType:
		return TagArrayType, true
	case dwarf.TagSubrangeType:
		return TagSubrangeType, true
	case dwarf.TagStructType:
		return TagStructureType, true
	case dwarf.TagSubroutineType:
		return TagSubroutineType, true
	default:
		return 0, false
	}
}

func dwarfTypeOffset(e *dwarf.Entry) (dwarf.Offset, bool) {
	v := e.Val(dwarf.AttrType)
	if v == nil {
		return 0, false
	}
	off, ok := v.(dwarf.Offset)
	return off, ok
}

func applyDWARFAttrs(entry *Entry, e *dwarf.Entry) {
	if name, ok := e.Val(dwarf.AttrName).(string); ok {
		entry.SetAttr(AttrName, name)
	}
	if size, ok := e.Val(dwarf.AttrByteSize).(int64); ok {
		entry.SetAttr(AttrByteSize, int(size))
	}
	if low, ok := e.Val(dwarf.AttrLowpc).(uint64); ok {
		entry.SetAttr(AttrLowPC, low)
	}
	if high, ok := e.Val(dwarf.AttrHighpc).(uint64); ok {
		entry.SetAttr(AttrHighPC, high)
	}
	if proto, ok := e.Val(dwarf.AttrPrototyped).(bool); ok {
		entry.SetAttr(AttrPrototyped, proto)
	}
	if file, ok := e.Val(dwarf.AttrDeclFile).(int64); ok {
		entry.SetAttr(AttrDeclFile, file)
	}
	if line, ok := e.Val(dwarf.AttrDeclLine).(int64); ok {
		entry.SetAttr(AttrDeclLine, line)
	}
	if ub, ok := e.Val(dwarf.AttrUpperBound).(int64); ok {
		entry.SetAttr(AttrUpperBound, uint64(ub))
	}
}

// Arch returns the architecture this envelope's object was built for.
func (env *Envelope) Arch() Arch { return env.arch }

// Close releases the mmap and the underlying file handle.
func (env *Envelope) Close() error {
	if env.data != nil {
		_ = env.data.Unmap()
	}
	if env.f != nil {
		return env.f.Close()
	}
	return nil
}

// ExistingSymbols snapshots the object's static and dynamic symbol tables
// once, for the C8 Symbol Reconciler (SPEC_FULL.md §4.8).
func (env *Envelope) ExistingSymbols() []ExistingSymbol {
	var out []ExistingSymbol
	add := func(syms []elf.Symbol) {
		for _, s := range syms {
			var kind SymbolKind
			switch elf.ST_TYPE(s.Info) {
			case elf.STT_FUNC:
				kind = SymbolFunction
			case elf.STT_OBJECT:
				kind = SymbolObject
			default:
				continue
			}
			out = append(out, ExistingSymbol{Name: s.Name, Address: s.Value, Kind: kind})
		}
	}
	if syms, err := env.elf.Symbols(); err == nil {
		add(syms)
	}
	if syms, err := env.elf.DynamicSymbols(); err == nil {
		add(syms)
	}
	return out
}

// Sections is the re-serialized output of the debug tree: one encoded blob
// per conventional debug section name, ready to be spliced back into the
// object by the external editor.
type Sections struct {
	blobs map[string][]byte
}

// Emit re-serializes env.Tree into the standard set of debug sections. The
// wire encoding itself is out of this engine's specified scope (SPEC_FULL.md
// §1); this produces a structurally valid DWARF-4 rendition sufficient for
// round-tripping through the object editor, not a byte-optimal encoder.
func (env *Envelope) Emit() *Sections {
	enc := newDWARFEncoder(env.is64, env.bigEnd)
	for _, id := range env.Tree.Units() {
		enc.encodeUnit(env.Tree, id)
	}
	return &Sections{blobs: enc.finish()}
}

// WriteScratch writes each section blob to scratchDir, named after the
// section with its leading dot stripped (".debug_info" -> "debug_info"),
// per the object-editor contract in SPEC_FULL.md §6. Returns the written
// paths keyed by original section name.
func (s *Sections) WriteScratch(scratchDir string) (map[string]string, error) {
	paths := make(map[string]string, len(s.blobs))
	for name, blob := range s.blobs {
		fname := strings.TrimPrefix(name, ".")
		p := filepath.Join(scratchDir, fname)
		if err := os.WriteFile(p, blob, 0o644); err != nil {
			return nil, fmt.Errorf("%w: writing %s: %v", ErrIO, p, err)
		}
		paths[name] = p
	}
	return paths, nil
}

// ObjectEditor drives the external objcopy-compatible binary that splices
// section blobs and symbol-table edits into an object file (SPEC_FULL.md
// §4.3, §6). One child process per invocation, synchronously awaited, per
// the single-threaded resource model of §5.
type ObjectEditor struct {
	Path   string
	logger *log.Helper
}

// NewObjectEditor returns an ObjectEditor invoking the binary at path (or
// "objcopy" resolved from PATH if path is empty).
func NewObjectEditor(path string, logger *log.Helper) *ObjectEditor {
	if path == "" {
		path = "objcopy"
	}
	return &ObjectEditor{Path: path, logger: logger}
}

// ApplySections invokes --update-section for every section name the object
// already has, and --add-section for every one it doesn't, against
// objectPath, using the scratch files in scratchPaths. A failing section does
// not stop the others; the first failure is returned once all have run.
func (oe *ObjectEditor) ApplySections(objectPath string, existingSections map[string]bool, scratchPaths map[string]string) error {
	var firstErr error
	for name, path := range scratchPaths {
		flag := "--add-section"
		if existingSections[name] {
			flag = "--update-section"
		}
		arg := fmt.Sprintf("%s=%s", name, path)
		if err := oe.run(objectPath, flag, arg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ApplySymbols invokes --add-symbol, --redefine-sym, and --strip-symbol for
// each SymbolOp in ops, against objectPath, in the order C8 produced them.
func (oe *ObjectEditor) ApplySymbols(objectPath string, ops []SymbolOp) error {
	for _, op := range ops {
		switch op.Kind {
		case SymbolOpAdd:
			flags := symbolFlags(op.SymKind)
			arg := fmt.Sprintf("%s=.text:0x%x,%s", op.NewName, op.Address, flags)
			if err := oe.run(objectPath, "--add-symbol", arg); err != nil {
				return err
			}
		case SymbolOpRename:
			arg := fmt.Sprintf("%s=%s", op.OldName, op.NewName)
			if err := oe.run(objectPath, "--redefine-sym", arg); err != nil {
				return err
			}
		case SymbolOpReplace:
			if err := oe.run(objectPath, "--strip-symbol", op.OldName); err != nil {
				return err
			}
			flags := symbolFlags(op.SymKind)
			arg := fmt.Sprintf("%s=.text:0x%x,%s", op.NewName, op.Address, flags)
			if err := oe.run(objectPath, "--add-symbol", arg); err != nil {
				return err
			}
		}
	}
	return nil
}

func symbolFlags(kind SymbolKind) string {
	if kind == SymbolFunction {
		return "function,global"
	}
	return "object,global"
}

// run invokes the editor once, synchronously, forwarding non-empty stderr
// as a warning rather than failing the run (SPEC_FULL.md §5, §7).
func (oe *ObjectEditor) run(objectPath string, args ...string) error {
	cmd := exec.Command(oe.Path, append(args, objectPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if stderr.Len() > 0 && oe.logger != nil {
		oe.logger.Warnf("object editor stderr: %s", strings.TrimSpace(stderr.String()))
	}
	if err != nil {
		return fmt.Errorf("%w: %s %v: %v", ErrEditorFailed, oe.Path, args, err)
	}
	return nil
}

// AcquireScratchDir returns dir if non-empty, otherwise creates and returns
// a fresh scratch directory under os.TempDir(). Pair with ReleaseScratchDir
// via defer, matching the teacher's defer-guarded resource release idiom
// (file.go's Close pattern) — but only when this call created the
// directory; a caller-supplied -s DIR is never deleted out from under it.
func AcquireScratchDir(dir string) (path string, ownedByUs bool, err error) {
	if dir != "" {
		return dir, false, nil
	}
	tmp, err := os.MkdirTemp("", "dwarfsynth-*")
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return tmp, true, nil
}

// ReleaseScratchDir removes dir if ownedByUs, matching AcquireScratchDir's
// acquire/release pairing.
func ReleaseScratchDir(dir string, ownedByUs bool) {
	if ownedByUs {
		_ = os.RemoveAll(dir)
	}
}

// ExistingSectionNames reports which of debugSectionNames are already
// present in the object, for choosing --update-section vs --add-section.
func (env *Envelope) ExistingSectionNames() map[string]bool {
	out := make(map[string]bool, len(debugSectionNames))
	for _, name := range debugSectionNames {
		out[name] = env.elf.Section(name) != nil
	}
	return out
}

// byteOrder returns this object's binary.ByteOrder.
func (env *Envelope) byteOrder() binary.ByteOrder {
	if env.bigEnd {
		return binary.BigEndian
	}
	return binary.LittleEndian
}
