// Package hostfuncs implements CAELES's Host Function Table: the five
// host calls a capsule may import from the logical module "caeles",
// each gated by a permission.Gate and closed over the shared
// per-execution state (metrics map, capsule id, event sink directory).
package hostfuncs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/jardelva96/caeles/internal/eventsink"
	"github.com/jardelva96/caeles/internal/memio"
	"github.com/jardelva96/caeles/internal/permission"
)

// ModuleName is the logical import module capsules link host calls
// from.
const ModuleName = "caeles"

// httpClientTimeout bounds how long host_http_get may block the
// executing thread for a single round trip.
const httpClientTimeout = 10 * time.Second

// State is the shared per-execution state every host call closes
// over: the accumulated metrics counters, the capsule identity used to
// name its event file, and where that file lives.
type State struct {
	CapsuleID    string
	EventSinkDir string

	mu      sync.Mutex
	metrics map[string]int64
}

// NewState returns an empty State for one execution.
func NewState(capsuleID, eventSinkDir string) *State {
	return &State{
		CapsuleID:    capsuleID,
		EventSinkDir: eventSinkDir,
		metrics:      make(map[string]int64),
	}
}

// MetricsSnapshot returns a defensive copy of the accumulated counters.
func (s *State) MetricsSnapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.metrics))
	for k, v := range s.metrics {
		out[k] = v
	}
	return out
}

// WriteMetricsSummary prints the sorted, human-readable metrics summary
// CAELES emits once a capsule's entry function returns cleanly. It
// writes nothing when no metric was ever incremented.
func WriteMetricsSummary(w io.Writer, metrics map[string]int64) {
	if len(metrics) == 0 {
		return
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "> Metrics summary for this execution:")
	for _, name := range names {
		fmt.Fprintf(w, "  - %s = %d\n", name, metrics[name])
	}
}

func (s *State) incrMetric(name string, delta int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[name] += delta
	return s.metrics[name]
}

// Table builds the caeles host module and registers the five host
// calls against it, ready to be instantiated alongside the capsule.
type Table struct {
	gate   *permission.Gate
	state  *State
	stdout io.Writer
	log    zerolog.Logger
}

// NewTable returns a Table bound to gate, state, and the stream host
// calls write their observable lines to.
func NewTable(gate *permission.Gate, state *State, stdout io.Writer, log zerolog.Logger) *Table {
	return &Table{gate: gate, state: state, stdout: stdout, log: log}
}

// Build registers the host functions onto a new host module builder and
// instantiates it, returning the linked api.Module.
func (t *Table) Build(ctx context.Context, runtime wazero.Runtime) (api.Module, error) {
	builder := runtime.NewHostModuleBuilder(ModuleName)

	builder.NewFunctionBuilder().WithFunc(t.hostLog).Export("host_log")
	builder.NewFunctionBuilder().WithFunc(t.hostNotify).Export("host_notify")
	builder.NewFunctionBuilder().WithFunc(t.hostHTTPGet).Export("host_http_get")
	builder.NewFunctionBuilder().WithFunc(t.hostMetricInc).Export("host_metric_inc")
	builder.NewFunctionBuilder().WithFunc(t.hostStoreEvent).Export("host_store_event")

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("hostfuncs: instantiate caeles host module: %w", err)
	}
	return mod, nil
}

func (t *Table) hostLog(_ context.Context, mod api.Module, ptr, length uint32) {
	msg, ok := memio.ReadString(mod, ptr, length)
	if !ok {
		t.log.Warn().Msg("host_log: failed to read message from guest memory")
		return
	}
	fmt.Fprintf(t.stdout, "[capsule-log] %s\n", msg)
}

func (t *Table) hostNotify(_ context.Context, mod api.Module, ptr, length uint32) {
	msg, ok := memio.ReadString(mod, ptr, length)
	if !ok {
		t.log.Warn().Msg("host_notify: failed to read message from guest memory")
		return
	}
	if !t.gate.AllowNotifications() {
		t.gate.Blocked("notify", "notifications", "Mensagem seria: "+msg)
		return
	}
	fmt.Fprintf(t.stdout, "[capsule-notify] %s\n", msg)
}

func (t *Table) hostHTTPGet(ctx context.Context, mod api.Module, ptr, length uint32) {
	url, ok := memio.ReadString(mod, ptr, length)
	if !ok {
		t.log.Warn().Msg("host_http_get: failed to read URL from guest memory")
		return
	}
	if !t.gate.AllowNetwork() {
		t.gate.Blocked("http", "network", "GET "+url)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(t.stdout, "[capsule-http ERROR] Failed GET: %s\n", err)
		return
	}

	client := &http.Client{Timeout: httpClientTimeout}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(t.stdout, "[capsule-http ERROR] Failed GET: %s\n", err)
		return
	}
	defer resp.Body.Close()

	body := make([]byte, 120)
	n, _ := io.ReadFull(resp.Body, body)
	snippet := strings.ReplaceAll(string(body[:n]), "\n", " ")
	fmt.Fprintf(t.stdout, "[capsule-http] status=%d body=%s\n", resp.StatusCode, snippet)
}

func (t *Table) hostMetricInc(_ context.Context, mod api.Module, namePtr, nameLen uint32, delta int64) {
	name, ok := memio.ReadString(mod, namePtr, nameLen)
	if !ok {
		t.log.Warn().Msg("host_metric_inc: failed to read metric name from guest memory")
		return
	}
	if !t.gate.AllowMetrics() {
		t.gate.Blocked("metric", "metrics", fmt.Sprintf("%s += %d", name, delta))
		return
	}
	total := t.state.incrMetric(name, delta)
	fmt.Fprintf(t.stdout, "[capsule-metric] %s += %d (total = %d)\n", name, delta, total)
}

func (t *Table) hostStoreEvent(_ context.Context, mod api.Module, keyPtr, keyLen, payloadPtr, payloadLen uint32) {
	key, ok := memio.ReadString(mod, keyPtr, keyLen)
	if !ok {
		t.log.Warn().Msg("host_store_event: failed to read key from guest memory")
		return
	}
	payload, ok := memio.ReadString(mod, payloadPtr, payloadLen)
	if !ok {
		t.log.Warn().Msg("host_store_event: failed to read payload from guest memory")
		return
	}
	if !t.gate.AllowStorage() {
		t.gate.Blocked("store", "storage", fmt.Sprintf("key=%s payload=%s", key, payload))
		return
	}

	path, err := eventsink.Append(t.state.EventSinkDir, t.state.CapsuleID, key, payload)
	if err != nil {
		fmt.Fprintf(t.stdout, "[capsule-store ERROR] %s\n", err)
		return
	}
	fmt.Fprintf(t.stdout, "[capsule-store] event written to %s\n", path)
}
