package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferFromRequiresApproval(t *testing.T) {
	l := NewLedger()
	l.Mint("alice", 1000)

	err := l.TransferFrom("treasury", "alice", "treasury", 500)
	assert.ErrorIs(t, err, ErrSpenderNotApproved)
	assert.Equal(t, uint64(1000), l.BalanceOf("alice"))

	require.NoError(t, l.Approve("alice", "treasury", 500))
	require.NoError(t, l.TransferFrom("treasury", "alice", "treasury", 500))

	assert.Equal(t, uint64(500), l.BalanceOf("alice"))
	assert.Equal(t, uint64(500), l.BalanceOf("treasury"))
	assert.Equal(t, uint64(0), l.Allowance("alice", "treasury"))
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	l := NewLedger()
	l.Mint("alice", 1000)
	require.NoError(t, l.Approve("alice", "treasury", 600))

	require.NoError(t, l.TransferFrom("treasury", "alice", "treasury", 400))
	assert.Equal(t, uint64(200), l.Allowance("alice", "treasury"))

	err := l.TransferFrom("treasury", "alice", "treasury", 300)
	assert.ErrorIs(t, err, ErrSpenderNotApproved)
}

func TestTransferInsufficientBalance(t *testing.T) {
	l := NewLedger()
	l.Mint("alice", 100)

	err := l.Transfer("alice", "bob", 200)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(100), l.BalanceOf("alice"))
	assert.Equal(t, uint64(0), l.BalanceOf("bob"))
}

func TestApprovedTransferDoesNotTouchBalanceOnFailure(t *testing.T) {
	l := NewLedger()
	l.Mint("alice", 100)
	require.NoError(t, l.Approve("alice", "treasury", 1000))

	err := l.TransferFrom("treasury", "alice", "treasury", 500)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(1000), l.Allowance("alice", "treasury"))
}
