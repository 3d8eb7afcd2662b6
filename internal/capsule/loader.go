// Package capsule loads a capsule's compiled WebAssembly module and
// statically audits it against the capsule ABI before it is ever
// instantiated.
package capsule

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/tetratelabs/wazero"
)

// RequiredMemoryExport is the name of the linear memory every capsule
// must export.
const RequiredMemoryExport = "memory"

// EntryExport is the name of the capsule's nullary entry function.
const EntryExport = "caeles_main"

// networkImportPattern matches logical import module names that expose
// socket/network capabilities and are therefore gated on
// permissions.network.
var networkImportPattern = regexp.MustCompile(`^wasi:(io/socket|net|sockets)`)

// Compiled is a loaded and statically-audited capsule module, ready to be
// linked and instantiated.
type Compiled struct {
	Module wazero.CompiledModule
}

// Load reads path, asks runtime to compile it, and audits the result:
// the module must export RequiredMemoryExport and EntryExport with the
// expected types, and must not import forbidden WASI or network-capable
// functions. fileCapabilityEnabled controls whether WASI imports are
// permitted at all; networkAllowed controls whether network-capable
// imports (WASI or otherwise) are permitted.
func Load(ctx context.Context, runtime wazero.Runtime, path string, fileCapabilityEnabled, networkAllowed bool) (*Compiled, error) {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("capsule: read module %s: %w", path, err)
	}

	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("capsule: compile module %s: %w", path, err)
	}

	if err := auditExports(compiled); err != nil {
		compiled.Close(ctx)
		return nil, fmt.Errorf("capsule: %s: %w", path, err)
	}

	if err := auditImports(compiled, fileCapabilityEnabled, networkAllowed); err != nil {
		compiled.Close(ctx)
		return nil, fmt.Errorf("capsule: %s: %w", path, err)
	}

	return &Compiled{Module: compiled}, nil
}

func auditExports(compiled wazero.CompiledModule) error {
	mems := compiled.ExportedMemories()
	if _, ok := mems[RequiredMemoryExport]; !ok {
		return fmt.Errorf("module does not export memory %q", RequiredMemoryExport)
	}

	fns := compiled.ExportedFunctions()
	fn, ok := fns[EntryExport]
	if !ok {
		return fmt.Errorf("module does not export entry function %q", EntryExport)
	}
	if len(fn.ParamTypes()) != 0 || len(fn.ResultTypes()) != 0 {
		return fmt.Errorf("entry function %q must have signature () -> ()", EntryExport)
	}

	return nil
}

func auditImports(compiled wazero.CompiledModule, fileCapabilityEnabled, networkAllowed bool) error {
	for _, def := range compiled.ImportedFunctions() {
		moduleName, fieldName, _ := def.Import()

		if !fileCapabilityEnabled && strings.HasPrefix(moduleName, "wasi") {
			return fmt.Errorf("module imports WASI function %s.%s but the file-capability layer is disabled", moduleName, fieldName)
		}

		if !networkAllowed && isNetworkImport(moduleName, fieldName) {
			return fmt.Errorf("module imports network-capable function %s.%s but permissions.network = false", moduleName, fieldName)
		}
	}
	return nil
}

// isNetworkImport reports whether (moduleName, fieldName) names a socket
// or network capability under any of the recognised WASI conventions.
func isNetworkImport(moduleName, fieldName string) bool {
	if moduleName == "wasi_snapshot_preview1" {
		if strings.HasPrefix(fieldName, "sock_") ||
			strings.HasPrefix(fieldName, "tcp_") ||
			strings.HasPrefix(fieldName, "udp_") {
			return true
		}
	}
	return networkImportPattern.MatchString(moduleName)
}
