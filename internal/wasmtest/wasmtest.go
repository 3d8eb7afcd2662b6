// Package wasmtest hand-assembles minimal WebAssembly binary modules for
// use as fixtures in tests that need real compilable bytes — module
// loader export/import audits and full driver instantiate-and-run
// tests — without depending on an external WASM toolchain.
//
// It implements just enough of the WebAssembly 1.0 binary format
// (sections type, import, function, memory, export, code, data)
// to build the handful of fixture shapes CAELES's tests need.
package wasmtest

import "encoding/binary"

var (
	magic   = []byte{0x00, 0x61, 0x73, 0x6d}
	version = []byte{0x01, 0x00, 0x00, 0x00}
)

const (
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11
)

const (
	externFunc   = 0x00
	externMemory = 0x02
)

const (
	valTypeI32 = 0x7f
)

const (
	opEnd         = 0x0b
	opI32Const    = 0x41
	opCall        = 0x10
	opLocalGet    = 0x20
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Store    = 0x36
)

// uleb128 encodes v as an unsigned LEB128 integer.
func uleb128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

// sleb128 encodes v as a signed LEB128 integer.
func sleb128(v int64) []byte {
	var out []byte
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
		out = append(out, b)
	}
	return out
}

func vec(items ...[]byte) []byte {
	out := uleb128(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func name(s string) []byte {
	return append(uleb128(uint32(len(s))), []byte(s)...)
}

func section(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, uleb128(uint32(len(payload)))...)
	return append(out, payload...)
}

// FuncType describes one entry of the type section: a nullary-or-not
// function signature built entirely out of i32 params/results, which is
// all these fixtures ever need.
type FuncType struct {
	Params  int
	Results int
}

func (ft FuncType) encode() []byte {
	out := []byte{0x60}
	out = append(out, uleb128(uint32(ft.Params))...)
	for i := 0; i < ft.Params; i++ {
		out = append(out, valTypeI32)
	}
	out = append(out, uleb128(uint32(ft.Results))...)
	for i := 0; i < ft.Results; i++ {
		out = append(out, valTypeI32)
	}
	return out
}

// Import describes one imported function, keyed by logical module and
// field name, with an index into the module's type section.
type Import struct {
	Module string
	Field  string
	Type   uint32
}

func (imp Import) encode() []byte {
	out := append(name(imp.Module), name(imp.Field)...)
	out = append(out, externFunc)
	out = append(out, uleb128(imp.Type)...)
	return out
}

// Export describes one exported function or memory.
type Export struct {
	Name string
	Kind byte // externFunc or externMemory
	Idx  uint32
}

func (e Export) encode() []byte {
	out := name(e.Name)
	out = append(out, e.Kind)
	out = append(out, uleb128(e.Idx)...)
	return out
}

// Func is a defined (non-imported) function: its type index and body.
type Func struct {
	Type uint32
	Body []byte
}

// Module is a builder for a minimal WebAssembly binary module.
type Module struct {
	Types     []FuncType
	Imports   []Import
	Funcs     []Func
	MemoryMin uint32
	MemoryMax uint32
	HasMemory bool
	Exports   []Export
	Data      []DataSegment
}

// DataSegment is an active data segment at a constant i32 offset into
// memory 0.
type DataSegment struct {
	Offset uint32
	Bytes  []byte
}

// Encode serializes m into a complete WebAssembly binary module.
func (m Module) Encode() []byte {
	out := append([]byte{}, magic...)
	out = append(out, version...)

	if len(m.Types) > 0 {
		items := make([][]byte, len(m.Types))
		for i, t := range m.Types {
			items[i] = t.encode()
		}
		out = append(out, section(sectionType, vec(items...))...)
	}

	if len(m.Imports) > 0 {
		items := make([][]byte, len(m.Imports))
		for i, imp := range m.Imports {
			items[i] = imp.encode()
		}
		out = append(out, section(sectionImport, vec(items...))...)
	}

	if len(m.Funcs) > 0 {
		items := make([][]byte, len(m.Funcs))
		for i, f := range m.Funcs {
			items[i] = uleb128(f.Type)
		}
		out = append(out, section(sectionFunction, vec(items...))...)
	}

	if m.HasMemory {
		limits := append([]byte{0x01}, uleb128(m.MemoryMin)...)
		limits = append(limits, uleb128(m.MemoryMax)...)
		out = append(out, section(sectionMemory, vec(limits))...)
	}

	if len(m.Exports) > 0 {
		items := make([][]byte, len(m.Exports))
		for i, e := range m.Exports {
			items[i] = e.encode()
		}
		out = append(out, section(sectionExport, vec(items...))...)
	}

	if len(m.Funcs) > 0 {
		items := make([][]byte, len(m.Funcs))
		for i, f := range m.Funcs {
			body := append(uleb128(0), f.Body...) // zero local-declaration blocks
			items[i] = append(uleb128(uint32(len(body))), body...)
		}
		out = append(out, section(sectionCode, vec(items...))...)
	}

	if len(m.Data) > 0 {
		items := make([][]byte, len(m.Data))
		for i, d := range m.Data {
			seg := []byte{0x00} // memory index 0, active segment
			seg = append(seg, opI32Const)
			seg = append(seg, sleb128(int64(d.Offset))...)
			seg = append(seg, opEnd)
			seg = append(seg, uleb128(uint32(len(d.Bytes)))...)
			seg = append(seg, d.Bytes...)
			items[i] = seg
		}
		out = append(out, section(sectionData, vec(items...))...)
	}

	return out
}

// LEUint32 is exposed for tests that need to assert on little-endian
// encodings written into a fixture's linear memory.
func LEUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
