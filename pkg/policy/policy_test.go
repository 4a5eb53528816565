package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	raw := []byte(`
default_capacity: 25
periods:
  "2024-1":
    withdrawal_deadline: "2024-04-15"
  "2024-2":
    withdrawal_deadline: "2024-10-01T12:00:00Z"
capacities:
  BD101: 1
  "BD101@2024-2": 40
`)
	p, err := Parse(raw, 30)
	require.NoError(t, err)

	assert.Equal(t, 1, p.Capacity("BD101", "2024-1"))
	assert.Equal(t, 40, p.Capacity("BD101", "2024-2"))
	assert.Equal(t, 25, p.Capacity("MAT200", "2024-1"))

	deadline, ok := p.WithdrawalDeadline("2024-1")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 4, 15, 23, 59, 59, 999999999, time.UTC), deadline)

	deadline, ok = p.WithdrawalDeadline("2024-2")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC), deadline)

	_, ok = p.WithdrawalDeadline("2025-1")
	assert.False(t, ok)
}

func TestParsePolicyRejectsBadDeadline(t *testing.T) {
	_, err := Parse([]byte("periods:\n  \"2024-1\":\n    withdrawal_deadline: soon\n"), 30)
	require.Error(t, err)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	p, err := Load("", 12)
	require.NoError(t, err)
	assert.Equal(t, 12, p.Capacity("ANY", "2024-1"))
	_, ok := p.WithdrawalDeadline("2024-1")
	assert.False(t, ok)
}
