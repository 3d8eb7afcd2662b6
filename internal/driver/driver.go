// Package driver implements the Execution Driver: the state machine
// that takes a manifest path to a completed (or trapped) capsule
// execution, wiring the Manifest Loader, Module Loader, Host Function
// Table, and optional File Capability Layer together.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/sys"

	"github.com/jardelva96/caeles/internal/capfs"
	"github.com/jardelva96/caeles/internal/capsule"
	"github.com/jardelva96/caeles/internal/hostfuncs"
	"github.com/jardelva96/caeles/internal/manifest"
	"github.com/jardelva96/caeles/internal/permission"
)

// State names the observable stages of one execution, in the order the
// Driver moves through them.
type State int

const (
	Loading State = iota
	Validated
	Linked
	Instantiated
	Running
	Completed
	Trapped
	Fatal
)

func (s State) String() string {
	switch s {
	case Loading:
		return "Loading"
	case Validated:
		return "Validated"
	case Linked:
		return "Linked"
	case Instantiated:
		return "Instantiated"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Trapped:
		return "Trapped"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// DefaultEventSinkDir is used when Options.EventSinkDir is left empty.
const DefaultEventSinkDir = "./data"

// Options configures one execution. FileCapabilityEnabled toggles the
// two Execution Driver variants described in the File Capability
// Layer section: with it unset, a module importing any WASI name fails
// to load, regardless of what the manifest permits.
type Options struct {
	FileCapabilityEnabled bool
	EventSinkDir          string
	Stdout                io.Writer
	Stderr                io.Writer
	Log                   zerolog.Logger
}

// Result reports the terminal state of one execution.
type Result struct {
	State   State
	Metrics map[string]int64
}

// Run drives one capsule execution from manifestPath through to
// Completed or Trapped. A non-nil error always corresponds to Fatal or
// Trapped; Run never retries and never treats a trap as success.
func Run(ctx context.Context, manifestPath string, opts Options) (Result, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.EventSinkDir == "" {
		opts.EventSinkDir = DefaultEventSinkDir
	}

	// 1. Loading
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return Result{State: Fatal}, fmt.Errorf("driver: loading: %w", err)
	}
	env, err := m.ValidatedEnv()
	if err != nil {
		return Result{State: Fatal}, fmt.Errorf("driver: loading: %w", err)
	}
	preopens, err := m.ValidatedPreopens()
	if err != nil {
		return Result{State: Fatal}, fmt.Errorf("driver: loading: %w", err)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig())
	defer runtime.Close(ctx)

	// 2. Validated
	compiled, err := capsule.Load(ctx, runtime, m.WasmPath(), opts.FileCapabilityEnabled, m.Permissions.Network)
	if err != nil {
		return Result{State: Fatal}, fmt.Errorf("driver: validated: %w", err)
	}
	defer compiled.Module.Close(ctx)

	// 3. Linked
	gate := permission.New(permission.Flags{
		Notifications: m.Permissions.Notifications,
		Network:       m.Permissions.Network,
		Metrics:       m.Permissions.Metrics,
		Storage:       m.Permissions.Storage,
	}, opts.Stdout)
	state := hostfuncs.NewState(m.ID, opts.EventSinkDir)
	table := hostfuncs.NewTable(gate, state, opts.Stdout, opts.Log)

	hostModule, err := table.Build(ctx, runtime)
	if err != nil {
		return Result{State: Fatal}, fmt.Errorf("driver: linked: %w", err)
	}
	defer hostModule.Close(ctx)

	moduleConfig := wazero.NewModuleConfig().WithName(m.ID)
	if opts.FileCapabilityEnabled {
		moduleConfig, err = capfs.Instantiate(ctx, runtime, capfs.Options{
			CapsuleID:    m.ID,
			Env:          env,
			Preopens:     preopens,
			InheritStdio: m.Permissions.InheritStdio,
			Stdout:       opts.Stdout,
			Stderr:       opts.Stderr,
		})
		if err != nil {
			return Result{State: Fatal}, fmt.Errorf("driver: linked: %w", err)
		}
	}

	// 4. Instantiated
	guest, err := runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		return Result{State: Fatal}, fmt.Errorf("driver: instantiated: %w", err)
	}
	defer guest.Close(ctx)

	entry := guest.ExportedFunction(capsule.EntryExport)
	if entry == nil {
		return Result{State: Fatal}, fmt.Errorf("driver: instantiated: capsule does not export %q after linking", capsule.EntryExport)
	}

	// 5. Running
	if _, err := entry.Call(ctx); err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			return Result{State: Trapped}, fmt.Errorf("driver: trapped: %w", exitErr)
		}
		return Result{State: Trapped}, fmt.Errorf("driver: trapped: %w", err)
	}

	// 6. Completed
	metrics := state.MetricsSnapshot()
	hostfuncs.WriteMetricsSummary(opts.Stdout, metrics)

	return Result{State: Completed, Metrics: metrics}, nil
}
