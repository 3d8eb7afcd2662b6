package wasmtest

// ValidCapsule returns a minimal, well-formed capsule: one page of
// memory exported as "memory" and a no-op "caeles_main" entry point.
func ValidCapsule() []byte {
	m := Module{
		Types:     []FuncType{{Params: 0, Results: 0}},
		Funcs:     []Func{{Type: 0, Body: []byte{opEnd}}},
		HasMemory: true,
		MemoryMin: 1,
		MemoryMax: 2,
		Exports: []Export{
			{Name: "memory", Kind: externMemory, Idx: 0},
			{Name: "caeles_main", Kind: externFunc, Idx: 0},
		},
	}
	return m.Encode()
}

// MissingMemoryExport returns a module with a valid entry function but
// no exported memory.
func MissingMemoryExport() []byte {
	m := Module{
		Types: []FuncType{{Params: 0, Results: 0}},
		Funcs: []Func{{Type: 0, Body: []byte{opEnd}}},
		Exports: []Export{
			{Name: "caeles_main", Kind: externFunc, Idx: 0},
		},
	}
	return m.Encode()
}

// MissingEntryExport returns a module with exported memory but no
// "caeles_main" function.
func MissingEntryExport() []byte {
	m := Module{
		HasMemory: true,
		MemoryMin: 1,
		MemoryMax: 1,
		Exports: []Export{
			{Name: "memory", Kind: externMemory, Idx: 0},
		},
	}
	return m.Encode()
}

// WrongEntrySignature returns a module whose "caeles_main" export takes
// a parameter, violating the () -> () requirement.
func WrongEntrySignature() []byte {
	m := Module{
		Types:     []FuncType{{Params: 1, Results: 0}},
		Funcs:     []Func{{Type: 0, Body: []byte{opEnd}}},
		HasMemory: true,
		MemoryMin: 1,
		MemoryMax: 1,
		Exports: []Export{
			{Name: "memory", Kind: externMemory, Idx: 0},
			{Name: "caeles_main", Kind: externFunc, Idx: 0},
		},
	}
	return m.Encode()
}

// NetworkImportCapsule returns an otherwise valid capsule that also
// imports wasi_snapshot_preview1.sock_accept, a network-capable WASI
// function.
func NetworkImportCapsule() []byte {
	m := Module{
		Types: []FuncType{
			{Params: 3, Results: 1}, // import signature, arbitrary but consistent
			{Params: 0, Results: 0},
		},
		Imports: []Import{
			{Module: "wasi_snapshot_preview1", Field: "sock_accept", Type: 0},
		},
		Funcs:     []Func{{Type: 1, Body: []byte{opEnd}}},
		HasMemory: true,
		MemoryMin: 1,
		MemoryMax: 1,
		Exports: []Export{
			{Name: "memory", Kind: externMemory, Idx: 0},
			{Name: "caeles_main", Kind: externFunc, Idx: 1},
		},
	}
	return m.Encode()
}

// FileImportCapsule returns an otherwise valid capsule that imports
// wasi_snapshot_preview1.fd_write, a non-network WASI function that
// still requires the file-capability layer to be enabled.
func FileImportCapsule() []byte {
	m := Module{
		Types: []FuncType{
			{Params: 4, Results: 1},
			{Params: 0, Results: 0},
		},
		Imports: []Import{
			{Module: "wasi_snapshot_preview1", Field: "fd_write", Type: 0},
		},
		Funcs:     []Func{{Type: 1, Body: []byte{opEnd}}},
		HasMemory: true,
		MemoryMin: 1,
		MemoryMax: 1,
		Exports: []Export{
			{Name: "memory", Kind: externMemory, Idx: 0},
			{Name: "caeles_main", Kind: externFunc, Idx: 1},
		},
	}
	return m.Encode()
}

// HostCallingCapsule returns a capsule whose caeles_main calls one
// imported host function (moduleName "caeles", fieldName fn) with the
// constant arguments (0, len(payload)), after writing payload into memory at
// offset 0 via a data segment. fn must have the signature
// (ptr i32, len i32) -> () for this to type-check at instantiation.
func HostCallingCapsule(fn string, payload string) []byte {
	// type 0: the imported host function (ptr i32, len i32) -> ()
	// type 1: caeles_main () -> ()
	body := []byte{
		opI32Const,
	}
	body = append(body, sleb128(0)...) // ptr = 0
	body = append(body, opI32Const)
	body = append(body, sleb128(int64(len(payload)))...)
	body = append(body, opCall)
	body = append(body, uleb128(0)...) // call imported func index 0
	body = append(body, opEnd)

	m := Module{
		Types: []FuncType{
			{Params: 2, Results: 0},
			{Params: 0, Results: 0},
		},
		Imports: []Import{
			{Module: "caeles", Field: fn, Type: 0},
		},
		Funcs:     []Func{{Type: 1, Body: body}},
		HasMemory: true,
		MemoryMin: 1,
		MemoryMax: 1,
		Exports: []Export{
			{Name: "memory", Kind: externMemory, Idx: 0},
			{Name: "caeles_main", Kind: externFunc, Idx: 1},
		},
		Data: []DataSegment{
			{Offset: 0, Bytes: []byte(payload)},
		},
	}
	return m.Encode()
}
