package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger() *Ledger {
	return NewLedger(Config{
		AdminUsers:         []string{"discord:admin1"},
		OperatorUsers:      []string{"op1"},
		TrustedUsers:       []string{"trusted1"},
		DefaultLevel:       Public,
		RateLimitPerMinute: 5,
		SudoTimeoutSeconds: 60,
	})
}

func TestLevelResolutionBareVsExplicit(t *testing.T) {
	l := newTestLedger()
	assert.Equal(t, Admin, l.Level("discord", "admin1"))
	assert.Equal(t, Public, l.Level("signal", "admin1")) // explicit binding, not bare
	assert.Equal(t, Operator, l.Level("discord", "op1"))
	assert.Equal(t, Operator, l.Level("signal", "op1")) // bare binding applies to all known transports
	assert.Equal(t, Public, l.Level("discord", "stranger"))
}

func TestRateLimitBoundary(t *testing.T) {
	l := newTestLedger()
	now := time.Unix(1000, 0)
	l.Now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		require.True(t, l.AllowRate("discord", "u"), "call %d should be allowed", i+1)
	}
	assert.False(t, l.AllowRate("discord", "u"), "6th call should be denied")

	now = now.Add(61 * time.Second)
	assert.True(t, l.AllowRate("discord", "u"), "allowed again after window elapses")
}

func TestSudoLifecycle(t *testing.T) {
	l := newTestLedger()
	now := time.Unix(2000, 0)
	l.Now = func() time.Time { return now }

	reqID := l.RequestSudo("discord", "u1", "restart the box", Operator)
	require.NotEmpty(t, reqID)

	assert.False(t, l.ApproveSudo(reqID, "discord", "not-an-admin"))

	require.True(t, l.ApproveSudo(reqID, "discord", "admin1"))
	assert.Equal(t, Operator, l.Level("discord", "u1"))

	now = now.Add(61 * time.Second)
	assert.Equal(t, Public, l.Level("discord", "u1"))
}

func TestApproveSudoUnknownRequest(t *testing.T) {
	l := newTestLedger()
	assert.False(t, l.ApproveSudo("nonexistent", "discord", "admin1"))
}

func TestDenySudoRemovesPending(t *testing.T) {
	l := newTestLedger()
	reqID := l.RequestSudo("discord", "u1", "do a thing", Trusted)
	require.True(t, l.DenySudo(reqID))
	assert.False(t, l.DenySudo(reqID)) // already removed
	assert.False(t, l.ApproveSudo(reqID, "discord", "admin1"))
}

func TestRevokeSudo(t *testing.T) {
	l := newTestLedger()
	reqID := l.RequestSudo("discord", "u1", "elevate", Admin)
	require.True(t, l.ApproveSudo(reqID, "discord", "admin1"))
	require.Equal(t, Admin, l.Level("discord", "u1"))

	assert.True(t, l.RevokeSudo("discord", "u1"))
	assert.Equal(t, Public, l.Level("discord", "u1"))
	assert.False(t, l.RevokeSudo("discord", "u1"))
}
