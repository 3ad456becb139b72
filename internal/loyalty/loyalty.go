// Package loyalty converts wagered value into accruable points. The
// settlement engine only depends on the Pointer interface; the Tracker is
// the reference implementation used in standalone mode and tests.
package loyalty

import (
	"sync"

	"github.com/hausgames/treasury/internal/access"
	"github.com/hausgames/treasury/internal/token"
)

// Pointer awards points for a resolved wager. Called once per player per
// settlement. Settlement treats it as best-effort: failures must never
// roll a settlement back (see Notifier).
type Pointer interface {
	AddPoints(player token.Address, raw uint64, tokenIndex, gameID, playersInRound int, wearableBonus uint64) (uint64, error)
}

// Default bonus tables. The player bonus is a per-player percentage
// applied as playersInRound * bonus; a solo wager earns the full rate.
const (
	soloMultiplier      = 100
	defaultWearableRate = 10
)

var defaultPlayerBonuses = map[int]uint64{2: 10, 3: 20, 4: 30}

type ratioKey struct {
	tokenIndex int
	gameID     int
}

// Tracker is an in-memory points accumulator.
type Tracker struct {
	mu            sync.Mutex
	roles         *access.Roles
	ratios        map[ratioKey]uint64
	playerBonuses map[int]uint64
	wearableRate  uint64
	collecting    bool
	distributing  bool
	balances      map[token.Address]uint64
}

// NewTracker creates a tracker with default bonus tables. Collection and
// distribution start disabled, matching a freshly deployed points module.
func NewTracker(roles *access.Roles) *Tracker {
	bonuses := make(map[int]uint64, len(defaultPlayerBonuses))
	for k, v := range defaultPlayerBonuses {
		bonuses[k] = v
	}
	return &Tracker{
		roles:         roles,
		ratios:        make(map[ratioKey]uint64),
		playerBonuses: bonuses,
		wearableRate:  defaultWearableRate,
		balances:      make(map[token.Address]uint64),
	}
}

// Enable switches point collection and distribution on or off. CEO-gated.
func (t *Tracker) Enable(caller token.Address, collecting, distributing bool) error {
	if err := t.roles.RequireCEO(caller); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.collecting = collecting
	t.distributing = distributing
	return nil
}

// SetRatio configures how many wagered token units buy one point for a
// (token, game) pair. CEO-gated. A zero ratio disables accrual for the pair.
func (t *Tracker) SetRatio(caller token.Address, tokenIndex, gameID int, ratio uint64) error {
	if err := t.roles.RequireCEO(caller); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ratios[ratioKey{tokenIndex, gameID}] = ratio
	return nil
}

// SetPlayerBonus configures the per-player percentage for rounds with the
// given player count. CEO-gated.
func (t *Tracker) SetPlayerBonus(caller token.Address, playersInRound int, bonus uint64) error {
	if err := t.roles.RequireCEO(caller); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.playerBonuses[playersInRound] = bonus
	return nil
}

// Balance returns a player's accrued points.
func (t *Tracker) Balance(player token.Address) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[player]
}

// AddPoints accrues points for a resolved wager. Integer division floors
// at each step; the order of operations is part of the contract, since
// reordering changes results.
func (t *Tracker) AddPoints(player token.Address, raw uint64, tokenIndex, gameID, playersInRound int, wearableBonus uint64) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.collecting || !t.distributing {
		return 0, nil
	}
	ratio := t.ratios[ratioKey{tokenIndex, gameID}]
	if ratio == 0 {
		return 0, nil
	}

	points := raw / ratio
	if playersInRound >= 2 {
		points = points * uint64(playersInRound) * t.playerBonuses[playersInRound] / 100
	} else {
		points = points * soloMultiplier / 100
	}
	points += points * t.wearableRate * wearableBonus / 100

	t.balances[player] += points
	return points, nil
}
