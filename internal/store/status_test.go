package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/formype/lax-qlpm/internal/model"
)

func TestDeriveStatus(t *testing.T) {
	testCases := []struct {
		name     string
		issues   []string
		note     string
		expected model.MachineStatus
	}{
		{
			name:     "critical issue yields ERROR",
			issues:   []string{"CPU"},
			expected: model.StatusError,
		},
		{
			name:     "critical among warnings still yields ERROR",
			issues:   []string{"Mouse", "Monitor"},
			expected: model.StatusError,
		},
		{
			name:     "warning issue yields MAINTENANCE",
			issues:   []string{"Mouse"},
			expected: model.StatusMaintenance,
		},
		{
			name:     "multiple warnings yield MAINTENANCE",
			issues:   []string{"Keyboard", "Network"},
			expected: model.StatusMaintenance,
		},
		{
			name:     "note without issues yields MAINTENANCE",
			note:     "slow to boot",
			expected: model.StatusMaintenance,
		},
		{
			name:     "empty form clears to ONLINE",
			issues:   []string{},
			note:     "",
			expected: model.StatusOnline,
		},
		{
			name:     "nil issues clear to ONLINE",
			expected: model.StatusOnline,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DeriveStatus(tc.issues, tc.note))
		})
	}
}

func TestIsCriticalIssue(t *testing.T) {
	assert.True(t, IsCriticalIssue("CPU"))
	assert.True(t, IsCriticalIssue("Power Supply"))
	assert.False(t, IsCriticalIssue("Mouse"))
	assert.False(t, IsCriticalIssue(""))
}
