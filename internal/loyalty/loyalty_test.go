package loyalty

import (
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausgames/treasury/internal/access"
	"github.com/hausgames/treasury/internal/token"
)

const owner = token.Address("owner")

func newTestTracker(t *testing.T, ratio uint64) *Tracker {
	t.Helper()
	tr := NewTracker(access.NewRoles(owner))
	require.NoError(t, tr.Enable(owner, true, true))
	require.NoError(t, tr.SetRatio(owner, 0, 0, ratio))
	return tr
}

func TestNoPointsUntilEnabled(t *testing.T) {
	tr := NewTracker(access.NewRoles(owner))
	require.NoError(t, tr.SetRatio(owner, 0, 0, 10))

	points, err := tr.AddPoints("p1", 1000, 0, 0, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), points)
	assert.Equal(t, uint64(0), tr.Balance("p1"))
}

func TestSoloWagerEarnsFullRate(t *testing.T) {
	tr := newTestTracker(t, 100)

	points, err := tr.AddPoints("p1", 1000, 0, 0, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), points)
	assert.Equal(t, uint64(10), tr.Balance("p1"))
}

func TestTwoPlayerRoundScalesByPlayerBonus(t *testing.T) {
	tr := newTestTracker(t, 10)

	// 100 / 10 = 10 base points, then 2 players x 10% = 2.
	points, err := tr.AddPoints("p1", 100, 0, 0, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), points)
}

func TestWearableBonusAddsTenPercentPerItem(t *testing.T) {
	tr := newTestTracker(t, 10)

	// 1000 / 10 = 100, x 20% = 20, +10% wearable = 22.
	points, err := tr.AddPoints("p1", 1000, 0, 0, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(22), points)

	// Without the wearable the same wager earns 20.
	points, err = tr.AddPoints("p2", 1000, 0, 0, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), points)
}

func TestWearableBonusOnSoloPlay(t *testing.T) {
	tr := newTestTracker(t, 200)

	// 1000 / 200 = 5, then 4 wearables add 40%.
	points, err := tr.AddPoints("p1", 1000, 0, 0, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), points)
}

func TestZeroRatioDisablesAccrual(t *testing.T) {
	tr := newTestTracker(t, 10)

	points, err := tr.AddPoints("p1", 1000, 1, 0, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), points)
}

func TestConfigurationIsCEOGated(t *testing.T) {
	tr := NewTracker(access.NewRoles(owner))

	assert.ErrorIs(t, tr.Enable("random", true, true), access.ErrNotCEO)
	assert.ErrorIs(t, tr.SetRatio("random", 0, 0, 10), access.ErrNotCEO)
	assert.ErrorIs(t, tr.SetPlayerBonus("random", 2, 20), access.ErrNotCEO)

	require.NoError(t, tr.SetPlayerBonus(owner, 2, 20))
}

type failingPointer struct{}

func (failingPointer) AddPoints(token.Address, uint64, int, int, int, uint64) (uint64, error) {
	return 0, errors.New("pointer down")
}

func TestNotifierSwallowsErrors(t *testing.T) {
	n := NewNotifier(failingPointer{}, log.New(io.Discard))
	// Must not panic or propagate.
	n.Award("p1", 1000, 0, 0, 1, 0)
}

func TestNilNotifierIsSafe(t *testing.T) {
	var n *Notifier
	n.Award("p1", 1000, 0, 0, 1, 0)
}
