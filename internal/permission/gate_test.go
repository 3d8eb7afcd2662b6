package permission

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate_AllowFlags(t *testing.T) {
	var buf bytes.Buffer
	g := New(Flags{Notifications: true, Network: false, Metrics: true, Storage: false}, &buf)

	assert.True(t, g.AllowNotifications())
	assert.False(t, g.AllowNetwork())
	assert.True(t, g.AllowMetrics())
	assert.False(t, g.AllowStorage())
}

func TestGate_Blocked_LineShape(t *testing.T) {
	var buf bytes.Buffer
	g := New(Flags{}, &buf)

	g.Blocked("notify", "notifications", "Mensagem seria: bye")

	assert.Equal(t,
		"[capsule-notify BLOCKED] Permission 'notifications' = false. Mensagem seria: bye\n",
		buf.String(),
	)
}
