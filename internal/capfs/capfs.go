// Package capfs builds the optional File Capability Layer: the
// wazero.ModuleConfig/FSConfig pair and wasi_snapshot_preview1
// instantiation a capsule's module is linked against when the Execution
// Driver runs with its file-capability option enabled.
package capfs

import (
	"context"
	"fmt"
	"io"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/jardelva96/caeles/internal/manifest"
)

// Options carries everything the File Capability Layer needs from a
// validated manifest and its execution-time flags.
type Options struct {
	CapsuleID    string
	Env          map[string]string
	Preopens     []manifest.ValidatedPreopen
	InheritStdio bool
	Stdout       io.Writer
	Stderr       io.Writer
}

// Instantiate links wasi_snapshot_preview1 into runtime and returns the
// wazero.ModuleConfig the capsule module should be instantiated with.
// The Execution Driver invokes this only when its FileCapabilityEnabled
// option is set; CAELES never links WASI otherwise.
func Instantiate(ctx context.Context, runtime wazero.Runtime, opts Options) (wazero.ModuleConfig, error) {
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return nil, fmt.Errorf("capfs: instantiate wasi_snapshot_preview1: %w", err)
	}

	cfg := wazero.NewModuleConfig().WithName(opts.CapsuleID)
	cfg = cfg.WithArgs(opts.CapsuleID)

	for k, v := range opts.Env {
		cfg = cfg.WithEnv(k, v)
	}

	if opts.InheritStdio {
		cfg = cfg.WithStdout(opts.Stdout).WithStderr(opts.Stderr)
	} else {
		cfg = cfg.WithStdout(io.Discard).WithStderr(io.Discard)
	}

	if len(opts.Preopens) > 0 {
		fsConfig := wazero.NewFSConfig()
		for _, p := range opts.Preopens {
			if p.ReadOnly {
				fsConfig = fsConfig.WithReadOnlyDirMount(p.CanonicalHost, p.Guest)
			} else {
				fsConfig = fsConfig.WithDirMount(p.CanonicalHost, p.Guest)
			}
		}
		cfg = cfg.WithFSConfig(fsConfig)
	}

	return cfg, nil
}
