// Package permission implements the CAELES permission gate: the single
// decision point between a capsule's declared permission flags and the
// observable effect of a host call.
package permission

import (
	"fmt"
	"io"
)

// Flags is the boolean capability set copied from a manifest at link
// time. host_log is deliberately absent: logging can never be denied.
type Flags struct {
	Notifications bool
	Network       bool
	Metrics       bool
	Storage       bool
}

// Gate consults Flags for a single execution and writes the BLOCKED
// diagnostic line when a call is denied.
type Gate struct {
	flags  Flags
	stdout io.Writer
}

// New returns a Gate bound to flags, writing BLOCKED lines to stdout.
func New(flags Flags, stdout io.Writer) *Gate {
	return &Gate{flags: flags, stdout: stdout}
}

// AllowNotifications reports whether host_notify may perform its effect.
func (g *Gate) AllowNotifications() bool { return g.flags.Notifications }

// AllowNetwork reports whether host_http_get may perform its effect.
func (g *Gate) AllowNetwork() bool { return g.flags.Network }

// AllowMetrics reports whether host_metric_inc may perform its effect.
func (g *Gate) AllowMetrics() bool { return g.flags.Metrics }

// AllowStorage reports whether host_store_event may perform its effect.
func (g *Gate) AllowStorage() bool { return g.flags.Storage }

// Blocked writes the synthetic diagnostic line for a denied host call:
//
//	[capsule-<op> BLOCKED] Permission '<flag>' = false. <context>
func (g *Gate) Blocked(op, flag, context string) {
	fmt.Fprintf(g.stdout, "[capsule-%s BLOCKED] Permission '%s' = false. %s\n", op, flag, context)
}
