package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerDefaultsToCEO(t *testing.T) {
	r := NewRoles("owner")
	assert.NoError(t, r.RequireCEO("owner"))
	assert.NoError(t, r.RequireWorker("owner"))
}

func TestRoleChecks(t *testing.T) {
	r := NewRoles("owner")
	require.NoError(t, r.SetWorker("owner", "worker"))

	assert.ErrorIs(t, r.RequireCEO("worker"), ErrNotCEO)
	assert.ErrorIs(t, r.RequireWorker("owner"), ErrNotWorker)
	assert.NoError(t, r.RequireWorker("worker"))
}

func TestOnlyCEOReassignsRoles(t *testing.T) {
	r := NewRoles("owner")

	assert.ErrorIs(t, r.SetWorker("mallory", "mallory"), ErrNotCEO)
	assert.ErrorIs(t, r.SetCEO("mallory", "mallory"), ErrNotCEO)

	require.NoError(t, r.SetCEO("owner", "successor"))
	assert.ErrorIs(t, r.RequireCEO("owner"), ErrNotCEO)
	assert.NoError(t, r.RequireCEO("successor"))
}
