// Package memio marshals strings across a WebAssembly guest's linear
// memory. It is the only component that reads guest memory; every host
// call funnels its (pointer, length) arguments through ReadString so
// decoding failures are handled uniformly.
package memio

import (
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"
)

// ReadString reads length bytes starting at ptr from mod's exported
// memory and decodes them as UTF-8. It returns ok=false (and logs nothing
// itself — callers own diagnostics) when mod has no memory, the read is
// out of bounds, or the bytes are not valid UTF-8. ReadString never
// writes to guest memory: host calls are one-way, guest-to-host only.
func ReadString(mod api.Module, ptr, length uint32) (string, bool) {
	mem := mod.Memory()
	if mem == nil {
		return "", false
	}

	data, ok := mem.Read(ptr, length)
	if !ok {
		return "", false
	}

	if !utf8.Valid(data) {
		return "", false
	}

	return string(data), true
}
