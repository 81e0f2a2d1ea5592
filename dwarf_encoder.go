package dwarfsynth

import (
	"bytes"
	"debug/dwarf"
	"encoding/binary"
)

// dwarfEncoder renders a Tree into DWARF-4 .debug_info/.debug_abbrev/
// .debug_str/.debug_line byte blobs. This is the out-of-scope "low-level
// DWARF byte encoder" named in SPEC_FULL.md §1: present because the
// engine must produce something splice-able, built plainly rather than to
// any wire-format optimality goal. One abbreviation per distinct
// (tag, attribute-set) shape, assigned in first-seen order.
type dwarfEncoder struct {
	is64   bool
	bigEnd bool
	order  binary.ByteOrder

	info   bytes.Buffer
	abbrev bytes.Buffer
	str    bytes.Buffer
	line   bytes.Buffer

	strOffsets map[string]uint32
	abbrevCode map[string]uint64
	nextAbbrev uint64
}

func newDWARFEncoder(is64, bigEnd bool) *dwarfEncoder {
	order := binary.ByteOrder(binary.LittleEndian)
	if bigEnd {
		order = binary.BigEndian
	}
	return &dwarfEncoder{
		is64:       is64,
		bigEnd:     bigEnd,
		order:      order,
		strOffsets: make(map[string]uint32),
		abbrevCode: make(map[string]uint64),
		nextAbbrev: 1,
	}
}

// attrEncoding describes how one AttrKey is rendered: its DWARF attribute
// number and form.
type attrEncoding struct {
	key  AttrKey
	attr dwarf.Attr
	form dwarf.Format
}

// attrTable lists, per Tag, the attributes this encoder knows how to
// render, in a fixed order so the abbreviation shape is deterministic.
func attrTableFor(tag Tag) []attrEncoding {
	switch tag {
	case TagCompileUnit:
		return nil
	case TagSubprogram:
		return []attrEncoding{
			{AttrName, dwarf.AttrName, dwarf.FormString},
			{AttrLowPC, dwarf.AttrLowpc, dwarf.FormAddr},
			{AttrHighPC, dwarf.AttrHighpc, dwarf.FormAddr},
			{AttrPrototyped, dwarf.AttrPrototyped, dwarf.FormFlag},
			{AttrNoReturn, dwarf.AttrNoreturn, dwarf.FormFlag},
			{AttrType, dwarf.AttrType, dwarf.FormRefAddr},
			{AttrDeclFile, dwarf.AttrDeclFile, dwarf.FormUdata},
			{AttrDeclLine, dwarf.AttrDeclLine, dwarf.FormUdata},
		}
	case TagFormalParameter:
		return []attrEncoding{
			{AttrName, dwarf.AttrName, dwarf.FormString},
			{AttrType, dwarf.AttrType, dwarf.FormRefAddr},
			{AttrLocation, dwarf.AttrLocation, dwarf.FormBlock1},
		}
	case TagVariable:
		return []attrEncoding{
			{AttrName, dwarf.AttrName, dwarf.FormString},
			{AttrType, dwarf.AttrType, dwarf.FormRefAddr},
			{AttrLocation, dwarf.AttrLocation, dwarf.FormBlock1},
		}
	case TagBaseType:
		return []attrEncoding{
			{AttrName, dwarf.AttrName, dwarf.FormString},
			{AttrByteSize, dwarf.AttrByteSize, dwarf.FormUdata},
		}
	case TagPointerType:
		return []attrEncoding{
			{AttrType, dwarf.AttrType, dwarf.FormRefAddr},
			{AttrByteSize, dwarf.AttrByteSize, dwarf.FormUdata},
		}
	case TagTypedef:
		return []attrEncoding{
			{AttrName, dwarf.AttrName, dwarf.FormString},
			{AttrType, dwarf.AttrType, dwarf.FormRefAddr},
		}
	case TagArrayType:
		return []attrEncoding{
			{AttrType, dwarf.AttrType, dwarf.FormRefAddr},
		}
	case TagSubrangeType:
		return []attrEncoding{
			{AttrUpperBound, dwarf.AttrUpperBound, dwarf.FormUdata},
		}
	case TagStructureType:
		return []attrEncoding{
			{AttrByteSize, dwarf.AttrByteSize, dwarf.FormUdata},
		}
	case TagSubroutineType:
		return []attrEncoding{
			{AttrType, dwarf.AttrType, dwarf.FormRefAddr},
		}
	default:
		return nil
	}
}

func tagToDWARF(t Tag) dwarf.Tag {
	switch t {
	case TagCompileUnit:
		return dwarf.TagCompileUnit
	case TagSubprogram:
		return dwarf.TagSubprogram
	case TagFormalParameter:
		return dwarf.TagFormalParameter
	case TagVariable:
		return dwarf.TagVariable
	case TagBaseType:
		return dwarf.TagBaseType
	case TagPointerType:
		return dwarf.TagPointerType
	case TagTypedef:
		return dwarf.TagTypedef
	case TagArrayType:
		return dwarf.TagArrayType
	case TagSubrangeType:
		return dwarf.TagSubrangeType
	case TagStructureType:
		return dwarf.TagStructType
	case TagSubroutineType:
		return dwarf.TagSubroutineType
	default:
		return 0
	}
}

func uleb128(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf.WriteByte(b | 0x80)
		} else {
			buf.WriteByte(b)
			return
		}
	}
}

// abbrevKeyFor renders a stable key for the (tag, has-children, attribute
// list) shape, used to dedup abbreviation declarations.
func abbrevKeyFor(tag Tag, hasChildren bool, attrs []attrEncoding) string {
	k := make([]byte, 0, 2+len(attrs)*2)
	k = append(k, byte(tag), boolByte(hasChildren))
	for _, a := range attrs {
		k = append(k, byte(a.attr), byte(a.form))
	}
	return string(k)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// internString returns str's offset into .debug_str, appending it (with a
// trailing NUL) on first use.
func (enc *dwarfEncoder) internString(s string) uint32 {
	if off, ok := enc.strOffsets[s]; ok {
		return off
	}
	off := uint32(enc.str.Len())
	enc.str.WriteString(s)
	enc.str.WriteByte(0)
	enc.strOffsets[s] = off
	return off
}

// abbrevCodeFor returns the abbreviation code for this (tag, children,
// attrs) shape, declaring it in .debug_abbrev on first use.
func (enc *dwarfEncoder) abbrevCodeFor(tag Tag, hasChildren bool, attrs []attrEncoding) uint64 {
	key := abbrevKeyFor(tag, hasChildren, attrs)
	if code, ok := enc.abbrevCode[key]; ok {
		return code
	}
	code := enc.nextAbbrev
	enc.nextAbbrev++
	enc.abbrevCode[key] = code

	uleb128(&enc.abbrev, code)
	uleb128(&enc.abbrev, uint64(tagToDWARF(tag)))
	enc.abbrev.WriteByte(boolByte(hasChildren))
	for _, a := range attrs {
		uleb128(&enc.abbrev, uint64(a.attr))
		uleb128(&enc.abbrev, uint64(a.form))
	}
	// attribute-list terminator: (0, 0)
	uleb128(&enc.abbrev, 0)
	uleb128(&enc.abbrev, 0)
	return code
}

// encodeUnit appends root's compilation-unit subtree to .debug_info,
// wrapped with a unit-length/version/abbrev-offset/address-size header
// per the DWARF-4 compilation unit header layout.
func (enc *dwarfEncoder) encodeUnit(tree *Tree, root EntryID) {
	var body bytes.Buffer
	enc.encodeEntry(&body, tree, root)

	addrSize := byte(8)
	if !enc.is64 {
		addrSize = 4
	}

	var header bytes.Buffer
	var versionBuf [2]byte
	enc.order.PutUint16(versionBuf[:], 4)
	header.Write(versionBuf[:])
	var abbrevOffBuf [4]byte
	enc.order.PutUint32(abbrevOffBuf[:], 0)
	header.Write(abbrevOffBuf[:])
	header.WriteByte(addrSize)
	header.Write(body.Bytes())

	unitLen := uint32(header.Len())
	var lenBuf [4]byte
	enc.order.PutUint32(lenBuf[:], unitLen)
	enc.info.Write(lenBuf[:])
	enc.info.Write(header.Bytes())
}

func (enc *dwarfEncoder) encodeEntry(out *bytes.Buffer, tree *Tree, id EntryID) {
	e := tree.Entry(id)
	if e == nil {
		return
	}
	children := e.Children()
	attrs := attrTableFor(e.Tag())

	var present []attrEncoding
	for _, a := range attrs {
		if _, ok := e.Attr(a.key); ok {
			present = append(present, a)
		}
	}

	code := enc.abbrevCodeFor(e.Tag(), len(children) > 0, present)
	uleb128(out, code)

	for _, a := range present {
		enc.encodeAttrValue(out, e, a)
	}

	for _, childID := range children {
		enc.encodeEntry(out, tree, childID)
	}
	if len(children) > 0 {
		out.WriteByte(0) // null entry terminates the sibling chain
	}
}

func (enc *dwarfEncoder) encodeAttrValue(out *bytes.Buffer, e *Entry, a attrEncoding) {
	v, _ := e.Attr(a.key)
	switch a.form {
	case dwarf.FormString:
		s, _ := v.(string)
		off := enc.internString(s)
		var buf [4]byte
		enc.order.PutUint32(buf[:], off)
		out.Write(buf[:])

	case dwarf.FormAddr:
		addr, _ := v.(uint64)
		if enc.is64 {
			var buf [8]byte
			enc.order.PutUint64(buf[:], addr)
			out.Write(buf[:])
		} else {
			var buf [4]byte
			enc.order.PutUint32(buf[:], uint32(addr))
			out.Write(buf[:])
		}

	case dwarf.FormFlag:
		b, _ := v.(bool)
		out.WriteByte(boolByte(b))

	case dwarf.FormRefAddr:
		// Resolved by the caller into a placeholder EntryID reference; the
		// object editor's symbol-relocation step is out of this encoder's
		// scope, so this records the referenced entry id directly.
		id, _ := v.(EntryID)
		var buf [4]byte
		enc.order.PutUint32(buf[:], uint32(id))
		out.Write(buf[:])

	case dwarf.FormUdata:
		switch n := v.(type) {
		case int:
			uleb128(out, uint64(n))
		case uint32:
			uleb128(out, uint64(n))
		case uint64:
			uleb128(out, n)
		case int64:
			uleb128(out, uint64(n))
		default:
			uleb128(out, 0)
		}

	case dwarf.FormBlock1:
		loc, ok := v.(Location)
		if !ok {
			out.WriteByte(0)
			return
		}
		block := encodeLocationExpr(loc)
		out.WriteByte(byte(len(block)))
		out.Write(block)
	}
}

// DWARF operation opcodes this encoder emits, per the location-expression
// vocabulary named in SPEC_FULL.md's elaborated §3.
const (
	dwOpAddr    = 0x03
	dwOpBregBase = 0x70 // DW_OP_breg0
	dwOpRegBase  = 0x50 // DW_OP_reg0
)

// encodeLocationExpr renders a Location as a minimal DWARF location
// expression byte sequence.
func encodeLocationExpr(loc Location) []byte {
	var buf bytes.Buffer
	switch loc.Kind {
	case LocRegister:
		// DW_OP_regN only covers registers 0-31; higher-numbered registers
		// would need DW_OP_regx, omitted here as out of encoder scope.
		buf.WriteByte(dwOpRegBase)
	case LocMemory:
		buf.WriteByte(dwOpBregBase)
		sleb128(&buf, loc.Offset)
	case LocAddress:
		buf.WriteByte(dwOpAddr)
		var addrBuf [8]byte
		binary.LittleEndian.PutUint64(addrBuf[:], loc.Addr)
		buf.Write(addrBuf[:])
	}
	return buf.Bytes()
}

func sleb128(buf *bytes.Buffer, v int64) {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			more = false
		} else {
			b |= 0x80
		}
		buf.WriteByte(b)
	}
}

// finish returns the completed section blobs. .debug_line is emitted empty
// per SPEC_FULL.md §4.3's "empty line program" rule for freshly created
// units; this engine never synthesizes line-number programs.
func (enc *dwarfEncoder) finish() map[string][]byte {
	return map[string][]byte{
		".debug_info":   enc.info.Bytes(),
		".debug_abbrev": enc.abbrev.Bytes(),
		".debug_str":    enc.str.Bytes(),
		".debug_line":   enc.line.Bytes(),
	}
}
